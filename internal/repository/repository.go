package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/assoclab/membership-billing/internal/models"
)

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser creates a new staff user in the database
func (r *Repository) CreateUser(user *models.User) error {
	query := `
		INSERT INTO membership.users (username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRow(query, user.Username, user.Email, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByEmail retrieves a staff user by email
func (r *Repository) FindUserByEmail(email string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM membership.users
		WHERE email = $1`
	err := r.db.QueryRow(query, email).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "user", Key: email}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// GetMember retrieves a member from the registry
func (r *Repository) GetMember(id string) (*models.Member, error) {
	member := &models.Member{}
	query := `
		SELECT id, full_name, email, COALESCE(customer_ref, '')
		FROM membership.members
		WHERE id = $1`
	err := r.db.QueryRow(query, id).
		Scan(&member.ID, &member.FullName, &member.Email, &member.CustomerRef)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "member", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	return member, nil
}

// CreatePlan inserts a plan and its installments in one transaction
func (r *Repository) CreatePlan(plan *models.PaymentPlan) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO membership.payment_plans (
			id, member_id, dues_schedule_id, plan_type, total_amount,
			number_of_installments, frequency, installment_amount,
			start_date, end_date, status, approval_required, approved_by,
			approval_date, total_paid, remaining_balance, last_payment_date,
			next_payment_date, consecutive_missed_payments, reason,
			payment_method, payment_account, version, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), $8, $9, $10,
			$11, $12, NULLIF($13, ''), $14, $15, $16, $17, $18, $19,
			NULLIF($20, ''), NULLIF($21, ''), NULLIF($22, ''), 1,
			CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING version, created_at, updated_at`
	err = tx.QueryRow(query,
		plan.ID, plan.MemberID, plan.MembershipDuesSchedule, string(plan.PlanType),
		plan.TotalAmount, plan.NumberOfInstallments, string(plan.Frequency),
		plan.InstallmentAmount, plan.StartDate, plan.EndDate, string(plan.Status),
		plan.ApprovalRequired, plan.ApprovedBy, plan.ApprovalDate,
		plan.TotalPaid, plan.RemainingBalance, plan.LastPaymentDate,
		plan.NextPaymentDate, plan.ConsecutiveMissedPayments, plan.Reason,
		plan.PaymentMethod, plan.PaymentAccount).
		Scan(&plan.Version, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}

	if err := insertInstallments(tx, plan); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit plan: %w", err)
	}
	return nil
}

// GetPlan retrieves a plan with its installments in sequence order
func (r *Repository) GetPlan(id string) (*models.PaymentPlan, error) {
	plan := &models.PaymentPlan{}
	var duesSchedule, frequency, approvedBy, reason, method, account sql.NullString
	var approvalDate, lastPayment, nextPayment sql.NullTime
	query := `
		SELECT id, member_id, dues_schedule_id, plan_type, total_amount,
			number_of_installments, frequency, installment_amount,
			start_date, end_date, status, approval_required, approved_by,
			approval_date, total_paid, remaining_balance, last_payment_date,
			next_payment_date, consecutive_missed_payments, reason,
			payment_method, payment_account, version, created_at, updated_at
		FROM membership.payment_plans
		WHERE id = $1`
	err := r.db.QueryRow(query, id).Scan(
		&plan.ID, &plan.MemberID, &duesSchedule, &plan.PlanType, &plan.TotalAmount,
		&plan.NumberOfInstallments, &frequency, &plan.InstallmentAmount,
		&plan.StartDate, &plan.EndDate, &plan.Status, &plan.ApprovalRequired,
		&approvedBy, &approvalDate, &plan.TotalPaid, &plan.RemainingBalance,
		&lastPayment, &nextPayment, &plan.ConsecutiveMissedPayments, &reason,
		&method, &account, &plan.Version, &plan.CreatedAt, &plan.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "payment plan", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find plan: %w", err)
	}
	plan.MembershipDuesSchedule = duesSchedule.String
	plan.Frequency = models.Frequency(frequency.String)
	plan.ApprovedBy = approvedBy.String
	plan.Reason = reason.String
	plan.PaymentMethod = method.String
	plan.PaymentAccount = account.String
	plan.ApprovalDate = timePtr(approvalDate)
	plan.LastPaymentDate = timePtr(lastPayment)
	plan.NextPaymentDate = timePtr(nextPayment)

	if err := r.loadInstallments(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// SavePlan re-saves the full aggregate. The version check rejects writes
// that raced another save of the same plan.
func (r *Repository) SavePlan(plan *models.PaymentPlan) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE membership.payment_plans SET
			dues_schedule_id = NULLIF($1, ''), plan_type = $2, total_amount = $3,
			number_of_installments = $4, frequency = NULLIF($5, ''),
			installment_amount = $6, start_date = $7, end_date = $8, status = $9,
			approval_required = $10, approved_by = NULLIF($11, ''),
			approval_date = $12, total_paid = $13, remaining_balance = $14,
			last_payment_date = $15, next_payment_date = $16,
			consecutive_missed_payments = $17, reason = NULLIF($18, ''),
			payment_method = NULLIF($19, ''), payment_account = NULLIF($20, ''),
			version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $21 AND version = $22`
	result, err := tx.Exec(query,
		plan.MembershipDuesSchedule, string(plan.PlanType), plan.TotalAmount,
		plan.NumberOfInstallments, string(plan.Frequency), plan.InstallmentAmount,
		plan.StartDate, plan.EndDate, string(plan.Status), plan.ApprovalRequired,
		plan.ApprovedBy, plan.ApprovalDate, plan.TotalPaid, plan.RemainingBalance,
		plan.LastPaymentDate, plan.NextPaymentDate, plan.ConsecutiveMissedPayments,
		plan.Reason, plan.PaymentMethod, plan.PaymentAccount,
		plan.ID, plan.Version)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return models.ErrPlanConflict
	}

	if _, err := tx.Exec(`DELETE FROM membership.installments WHERE plan_id = $1`, plan.ID); err != nil {
		return fmt.Errorf("failed to clear installments: %w", err)
	}
	if err := insertInstallments(tx, plan); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit plan: %w", err)
	}
	plan.Version++
	return nil
}

// ListPlansByMember retrieves all plan ids for one member, newest first
func (r *Repository) ListPlansByMember(memberID string) ([]string, error) {
	query := `
		SELECT id FROM membership.payment_plans
		WHERE member_id = $1
		ORDER BY created_at DESC`
	return r.listPlanIDs(query, memberID)
}

// ListSweepCandidates retrieves ids of active or pending plans that have a
// pending installment due strictly before asOf
func (r *Repository) ListSweepCandidates(asOf time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT p.id
		FROM membership.payment_plans p
		JOIN membership.installments i ON i.plan_id = p.id
		WHERE p.status IN ('Active', 'Pending Approval')
		  AND i.status = 'Pending'
		  AND i.due_date < $1`
	return r.listPlanIDs(query, asOf)
}

// PauseDuesSchedule marks a dues schedule as paused by the given plan
func (r *Repository) PauseDuesSchedule(scheduleID, planID string) error {
	query := `
		UPDATE membership.dues_schedules
		SET status = $1, paused_by_plan = $2
		WHERE id = $3`
	result, err := r.db.Exec(query, models.DuesScheduleStatusPlanActive, planID, scheduleID)
	if err != nil {
		return fmt.Errorf("failed to pause dues schedule: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return &models.NotFoundError{Resource: "dues schedule", Key: scheduleID}
	}
	return nil
}

// ResumeDuesSchedule reactivates a dues schedule, but only if this plan was
// the one that paused it
func (r *Repository) ResumeDuesSchedule(scheduleID, planID string) error {
	query := `
		UPDATE membership.dues_schedules
		SET status = $1, paused_by_plan = NULL
		WHERE id = $2 AND paused_by_plan = $3`
	if _, err := r.db.Exec(query, models.DuesScheduleStatusActive, scheduleID, planID); err != nil {
		return fmt.Errorf("failed to resume dues schedule: %w", err)
	}
	return nil
}

func (r *Repository) listPlanIDs(query string, arg any) ([]string, error) {
	rows, err := r.db.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan plan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return ids, nil
}

func (r *Repository) loadInstallments(plan *models.PaymentPlan) error {
	query := `
		SELECT installment_number, due_date, amount, status, payment_date,
			COALESCE(payment_reference, ''), COALESCE(notes, '')
		FROM membership.installments
		WHERE plan_id = $1
		ORDER BY installment_number`
	rows, err := r.db.Query(query, plan.ID)
	if err != nil {
		return fmt.Errorf("failed to load installments: %w", err)
	}
	defer rows.Close()

	plan.Installments = nil
	for rows.Next() {
		var inst models.Installment
		var paymentDate sql.NullTime
		if err := rows.Scan(&inst.InstallmentNumber, &inst.DueDate, &inst.Amount,
			&inst.Status, &paymentDate, &inst.PaymentReference, &inst.Notes); err != nil {
			return fmt.Errorf("failed to scan installment: %w", err)
		}
		inst.PaymentDate = timePtr(paymentDate)
		plan.Installments = append(plan.Installments, inst)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load installments: %w", err)
	}
	return nil
}

func insertInstallments(tx *sql.Tx, plan *models.PaymentPlan) error {
	query := `
		INSERT INTO membership.installments (
			plan_id, installment_number, due_date, amount, status,
			payment_date, payment_reference, notes)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''))`
	for i := range plan.Installments {
		inst := &plan.Installments[i]
		if _, err := tx.Exec(query, plan.ID, inst.InstallmentNumber, inst.DueDate,
			inst.Amount, string(inst.Status), inst.PaymentDate,
			inst.PaymentReference, inst.Notes); err != nil {
			return fmt.Errorf("failed to insert installment %d: %w", inst.InstallmentNumber, err)
		}
	}
	return nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
