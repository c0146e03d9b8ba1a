package service

import (
	"fmt"
	"time"

	"github.com/assoclab/membership-billing/internal/config"
	"github.com/assoclab/membership-billing/internal/models"
	"github.com/assoclab/membership-billing/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// LedgerPoster posts payment receipts to the external bookkeeping service.
type LedgerPoster interface {
	PostReceipt(customerRef string, amount decimal.Decimal, date time.Time, reference string) (string, error)
}

// Notifier delivers member-facing notifications. All sends are best-effort.
type Notifier interface {
	SendPaymentConfirmation(to, fullName string, installmentNumber int, amount, remaining decimal.Decimal, paymentDate time.Time) error
	SendOverdueNotice(to, fullName string, installmentNumber int, amount decimal.Decimal, dueDate time.Time) error
	SendSuspensionNotice(to, fullName string) error
	SendApprovalOutcome(to, fullName string, approved bool, detail string) error
}

// Service handles business logic
type Service struct {
	repo     *repository.Repository
	ledger   LedgerPoster
	notifier Notifier
	log      *logrus.Logger
	config   *config.Config
}

// NewService initializes a new service
func NewService(repo *repository.Repository, ledger LedgerPoster, notifier Notifier, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{repo: repo, ledger: ledger, notifier: notifier, log: log, config: cfg}
}

// Register creates a new staff user with hashed password
func (s *Service) Register(username, email, password string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	if err := s.repo.CreateUser(user); err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s", user.Email)
	return user, nil
}

// Login authenticates a staff user and returns a JWT token
func (s *Service) Login(email, password string) (string, error) {
	user, err := s.repo.FindUserByEmail(email)
	if err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.Email,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", user.Email)
	return tokenString, nil
}

// CreatePlanInput carries everything needed to raise a payment plan.
type CreatePlanInput struct {
	MemberID             string
	DuesScheduleID       string
	PlanType             models.PlanType
	TotalAmount          decimal.Decimal
	NumberOfInstallments int
	Frequency            models.Frequency
	StartDate            time.Time
	EndDate              time.Time
	Reason               string
	PaymentMethod        string
	PaymentAccount       string
	ApprovalRequired     bool
	Installments         []models.Installment
}

// CreatePlan validates the configuration, generates the installment
// schedule and persists a new draft plan.
func (s *Service) CreatePlan(input CreatePlanInput) (*models.PaymentPlan, error) {
	member, err := s.repo.GetMember(input.MemberID)
	if err != nil {
		if _, ok := err.(*models.NotFoundError); ok {
			return nil, models.NewValidationError("unknown member: %s", input.MemberID)
		}
		return nil, err
	}

	plan := &models.PaymentPlan{
		ID:                     uuid.NewString(),
		MemberID:               member.ID,
		MembershipDuesSchedule: input.DuesScheduleID,
		PlanType:               input.PlanType,
		TotalAmount:            input.TotalAmount,
		NumberOfInstallments:   input.NumberOfInstallments,
		Frequency:              input.Frequency,
		StartDate:              input.StartDate,
		EndDate:                input.EndDate,
		Status:                 models.PlanStatusDraft,
		ApprovalRequired:       input.ApprovalRequired,
		Reason:                 input.Reason,
		PaymentMethod:          input.PaymentMethod,
		PaymentAccount:         input.PaymentAccount,
		Installments:           input.Installments,
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if err := plan.GenerateSchedule(); err != nil {
		return nil, err
	}
	plan.Recompute(time.Now())

	if err := s.repo.CreatePlan(plan); err != nil {
		return nil, err
	}

	s.log.Infof("Payment plan %s created for member %s (%s, total %s)",
		plan.ID, plan.MemberID, plan.PlanType, plan.TotalAmount.StringFixed(2))
	return plan, nil
}

// RequestPlan raises a member-requested plan. Requested plans always go
// through the approval queue.
func (s *Service) RequestPlan(input CreatePlanInput) (*models.PaymentPlan, error) {
	input.ApprovalRequired = true
	plan, err := s.CreatePlan(input)
	if err != nil {
		return nil, err
	}
	if err := plan.RequestApproval(); err != nil {
		return nil, err
	}
	if err := s.repo.SavePlan(plan); err != nil {
		return nil, err
	}
	s.log.Infof("Payment plan %s awaiting approval", plan.ID)
	return plan, nil
}

// Submit activates a draft plan that does not need approval.
func (s *Service) Submit(planID string) error {
	plan, err := s.repo.GetPlan(planID)
	if err != nil {
		return err
	}
	if err := plan.Submit(); err != nil {
		return err
	}
	if err := s.repo.SavePlan(plan); err != nil {
		return err
	}
	if err := s.pauseDues(plan); err != nil {
		return err
	}
	s.log.Infof("Payment plan %s activated", plan.ID)
	return nil
}

// RequestApproval queues a draft plan for approval.
func (s *Service) RequestApproval(planID string) error {
	plan, err := s.repo.GetPlan(planID)
	if err != nil {
		return err
	}
	if err := plan.RequestApproval(); err != nil {
		return err
	}
	if err := s.repo.SavePlan(plan); err != nil {
		return err
	}
	s.log.Infof("Payment plan %s awaiting approval", plan.ID)
	return nil
}

// Approve activates a pending plan on behalf of the given approver.
func (s *Service) Approve(planID, approverID, notes string) error {
	plan, err := s.repo.GetPlan(planID)
	if err != nil {
		return err
	}
	if err := plan.Approve(approverID, time.Now()); err != nil {
		return err
	}
	if notes != "" {
		plan.Reason = notes
	}
	if err := s.repo.SavePlan(plan); err != nil {
		return err
	}
	if err := s.pauseDues(plan); err != nil {
		return err
	}
	s.executeEffects(plan, []models.Effect{{
		Kind:   models.EffectApprovalOutcome,
		PlanID: plan.ID,
		Detail: "approved",
	}})
	s.log.Infof("Payment plan %s approved by %s", plan.ID, approverID)
	return nil
}

// Reject cancels a pending plan.
func (s *Service) Reject(planID, reason string) error {
	plan, err := s.repo.GetPlan(planID)
	if err != nil {
		return err
	}
	if err := plan.Reject(reason); err != nil {
		return err
	}
	if err := s.repo.SavePlan(plan); err != nil {
		return err
	}
	s.executeEffects(plan, []models.Effect{{
		Kind:   models.EffectApprovalOutcome,
		PlanID: plan.ID,
		Detail: reason,
	}})
	s.log.Infof("Payment plan %s rejected: %s", plan.ID, reason)
	return nil
}

// Cancel terminates a plan and resumes a dues schedule this plan paused.
func (s *Service) Cancel(planID, reason string) error {
	plan, err := s.repo.GetPlan(planID)
	if err != nil {
		return err
	}
	if err := plan.Cancel(reason); err != nil {
		return err
	}
	if err := s.repo.SavePlan(plan); err != nil {
		return err
	}
	if plan.MembershipDuesSchedule != "" {
		if err := s.repo.ResumeDuesSchedule(plan.MembershipDuesSchedule, plan.ID); err != nil {
			return err
		}
	}
	s.log.Infof("Payment plan %s cancelled: %s", plan.ID, reason)
	return nil
}

// PaymentResult is returned to the caller after a payment is applied.
type PaymentResult struct {
	RemainingBalance decimal.Decimal   `json:"remaining_balance"`
	NextPaymentDate  *time.Time        `json:"next_payment_date,omitempty"`
	Status           models.PlanStatus `json:"status"`
}

// ApplyPayment applies a payment to one installment of a plan and performs
// the resulting side effects (ledger receipt, confirmation email)
// best-effort after the plan has been saved.
func (s *Service) ApplyPayment(planID string, installmentNumber int, amount decimal.Decimal, reference string, date time.Time) (*PaymentResult, error) {
	plan, err := s.repo.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	if plan.Status == models.PlanStatusCancelled {
		return nil, models.NewValidationError("cannot apply a payment to a cancelled plan")
	}
	if reference == "" {
		reference = uuid.NewString()
	}
	if date.IsZero() {
		date = time.Now()
	}

	effects, err := plan.ApplyPayment(installmentNumber, amount, reference, date)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SavePlan(plan); err != nil {
		return nil, err
	}
	s.executeEffects(plan, effects)

	s.log.Infof("Payment of %s applied to plan %s installment %d",
		amount.StringFixed(2), plan.ID, installmentNumber)
	return &PaymentResult{
		RemainingBalance: plan.RemainingBalance,
		NextPaymentDate:  plan.NextPaymentDate,
		Status:           plan.Status,
	}, nil
}

// PlanSummary is the reporting view of a plan.
type PlanSummary struct {
	PlanID                    string               `json:"plan_id"`
	MemberID                  string               `json:"member_id"`
	PlanType                  models.PlanType      `json:"plan_type"`
	Status                    models.PlanStatus    `json:"status"`
	TotalAmount               decimal.Decimal      `json:"total_amount"`
	TotalPaid                 decimal.Decimal      `json:"total_paid"`
	RemainingBalance          decimal.Decimal      `json:"remaining_balance"`
	ProgressPercentage        float64              `json:"progress_percentage"`
	NextPaymentDate           *time.Time           `json:"next_payment_date,omitempty"`
	ConsecutiveMissedPayments int                  `json:"consecutive_missed_payments"`
	Installments              []models.Installment `json:"installments"`
}

// GetPlanSummary reports collection progress for one plan.
func (s *Service) GetPlanSummary(planID string) (*PlanSummary, error) {
	plan, err := s.repo.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	return &PlanSummary{
		PlanID:                    plan.ID,
		MemberID:                  plan.MemberID,
		PlanType:                  plan.PlanType,
		Status:                    plan.Status,
		TotalAmount:               plan.TotalAmount,
		TotalPaid:                 plan.TotalPaid,
		RemainingBalance:          plan.RemainingBalance,
		ProgressPercentage:        plan.ProgressPercentage(),
		NextPaymentDate:           plan.NextPaymentDate,
		ConsecutiveMissedPayments: plan.ConsecutiveMissedPayments,
		Installments:              plan.Installments,
	}, nil
}

// ListMemberPlans returns all plans for one member, newest first.
func (s *Service) ListMemberPlans(memberID string) ([]*models.PaymentPlan, error) {
	ids, err := s.repo.ListPlansByMember(memberID)
	if err != nil {
		return nil, err
	}
	plans := make([]*models.PaymentPlan, 0, len(ids))
	for _, id := range ids {
		plan, err := s.repo.GetPlan(id)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// PlanPreview is a schedule calculation that is never persisted.
type PlanPreview struct {
	TotalAmount          decimal.Decimal      `json:"total_amount"`
	InstallmentAmount    decimal.Decimal      `json:"installment_amount"`
	NumberOfInstallments int                  `json:"number_of_installments"`
	Frequency            models.Frequency     `json:"frequency"`
	StartDate            time.Time            `json:"start_date"`
	EndDate              time.Time            `json:"end_date"`
	Installments         []models.Installment `json:"installments"`
}

// PreviewPlan computes the schedule a configuration would produce without
// creating anything.
func (s *Service) PreviewPlan(totalAmount decimal.Decimal, installments int, frequency models.Frequency, startDate time.Time) (*PlanPreview, error) {
	plan := &models.PaymentPlan{
		MemberID:             "preview",
		PlanType:             models.PlanTypeEqualInstallments,
		TotalAmount:          totalAmount,
		NumberOfInstallments: installments,
		Frequency:            frequency,
		StartDate:            startDate,
		Status:               models.PlanStatusDraft,
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if err := plan.GenerateSchedule(); err != nil {
		return nil, err
	}
	return &PlanPreview{
		TotalAmount:          plan.TotalAmount,
		InstallmentAmount:    plan.InstallmentAmount,
		NumberOfInstallments: plan.NumberOfInstallments,
		Frequency:            plan.Frequency,
		StartDate:            plan.StartDate,
		EndDate:              plan.EndDate,
		Installments:         plan.Installments,
	}, nil
}

func (s *Service) pauseDues(plan *models.PaymentPlan) error {
	if plan.MembershipDuesSchedule == "" {
		return nil
	}
	return s.repo.PauseDuesSchedule(plan.MembershipDuesSchedule, plan.ID)
}

// executeEffects performs the side effects an aggregate operation asked
// for. Failures are logged and dropped: a ledger or mail outage must never
// roll back a plan mutation.
func (s *Service) executeEffects(plan *models.PaymentPlan, effects []models.Effect) {
	if len(effects) == 0 {
		return
	}
	member, err := s.repo.GetMember(plan.MemberID)
	if err != nil {
		s.log.Errorf("Skipping %d side effects for plan %s: %v", len(effects), plan.ID, err)
		return
	}

	for _, effect := range effects {
		switch effect.Kind {
		case models.EffectLedgerReceipt:
			if _, err := s.ledger.PostReceipt(member.CustomerRef, effect.Amount, effect.Date, effect.Reference); err != nil {
				s.log.Errorf("Failed to post receipt for plan %s: %v", plan.ID, err)
			}
		case models.EffectPaymentConfirmation:
			if err := s.notifier.SendPaymentConfirmation(member.Email, member.FullName,
				effect.InstallmentNumber, effect.Amount, plan.RemainingBalance, effect.Date); err != nil {
				s.log.Errorf("Failed to send payment confirmation for plan %s: %v", plan.ID, err)
			}
		case models.EffectOverdueNotice:
			if err := s.notifier.SendOverdueNotice(member.Email, member.FullName,
				effect.InstallmentNumber, effect.Amount, effect.Date); err != nil {
				s.log.Errorf("Failed to send overdue notice for plan %s: %v", plan.ID, err)
			}
		case models.EffectSuspensionNotice:
			if err := s.notifier.SendSuspensionNotice(member.Email, member.FullName); err != nil {
				s.log.Errorf("Failed to send suspension notice for plan %s: %v", plan.ID, err)
			}
		case models.EffectApprovalOutcome:
			approved := effect.Detail == "approved"
			if err := s.notifier.SendApprovalOutcome(member.Email, member.FullName, approved, effect.Detail); err != nil {
				s.log.Errorf("Failed to send approval outcome for plan %s: %v", plan.ID, err)
			}
		default:
			s.log.Warnf("Unknown effect kind %q for plan %s", effect.Kind, plan.ID)
		}
	}
}
