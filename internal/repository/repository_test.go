package repository

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/assoclab/membership-billing/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var planColumns = []string{
	"id", "member_id", "dues_schedule_id", "plan_type", "total_amount",
	"number_of_installments", "frequency", "installment_amount",
	"start_date", "end_date", "status", "approval_required", "approved_by",
	"approval_date", "total_paid", "remaining_balance", "last_payment_date",
	"next_payment_date", "consecutive_missed_payments", "reason",
	"payment_method", "payment_account", "version", "created_at", "updated_at",
}

var installmentColumns = []string{
	"installment_number", "due_date", "amount", "status", "payment_date",
	"payment_reference", "notes",
}

func testPlanRow(start time.Time) []driver.Value {
	end := start.AddDate(0, 3, 0)
	now := time.Now()
	return []driver.Value{
		"plan-1", "member-1", nil, "Equal Installments", "120",
		4, "Monthly", "30",
		start, end, "Active", false, nil,
		nil, "0", "120", nil,
		start, 0, nil,
		nil, nil, int64(3), now, now,
	}
}

func expectGetPlan(mock sqlmock.Sqlmock, start time.Time) {
	mock.ExpectQuery(`SELECT (.+) FROM membership\.payment_plans`).
		WillReturnRows(sqlmock.NewRows(planColumns).AddRow(testPlanRow(start)...))
	rows := sqlmock.NewRows(installmentColumns)
	for i := 0; i < 4; i++ {
		rows.AddRow(i+1, start.AddDate(0, i, 0), "30", "Pending", nil, "", "")
	}
	mock.ExpectQuery(`SELECT (.+) FROM membership\.installments`).WillReturnRows(rows)
}

func TestGetPlan(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	expectGetPlan(mock, start)

	repo := NewRepository(db)
	plan, err := repo.GetPlan("plan-1")
	require.NoError(t, err)

	assert.Equal(t, "plan-1", plan.ID)
	assert.Equal(t, models.PlanTypeEqualInstallments, plan.PlanType)
	assert.Equal(t, models.PlanStatusActive, plan.Status)
	assert.Equal(t, models.FrequencyMonthly, plan.Frequency)
	assert.True(t, plan.TotalAmount.Equal(decimal.RequireFromString("120")))
	assert.Equal(t, int64(3), plan.Version)
	require.Len(t, plan.Installments, 4)
	assert.Equal(t, 1, plan.Installments[0].InstallmentNumber)
	assert.True(t, plan.Installments[0].Amount.Equal(decimal.RequireFromString("30")))
	assert.Equal(t, models.InstallmentStatusPending, plan.Installments[0].Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPlanNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM membership\.payment_plans`).
		WillReturnRows(sqlmock.NewRows(planColumns))

	repo := NewRepository(db)
	_, err = repo.GetPlan("missing")
	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestSavePlan(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	expectGetPlan(mock, start)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE membership\.payment_plans SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM membership\.installments`).
		WillReturnResult(sqlmock.NewResult(0, 4))
	for i := 0; i < 4; i++ {
		mock.ExpectExec(`INSERT INTO membership\.installments`).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	repo := NewRepository(db)
	plan, err := repo.GetPlan("plan-1")
	require.NoError(t, err)

	require.NoError(t, repo.SavePlan(plan))
	assert.Equal(t, int64(4), plan.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePlanConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	expectGetPlan(mock, start)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE membership\.payment_plans SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	repo := NewRepository(db)
	plan, err := repo.GetPlan("plan-1")
	require.NoError(t, err)

	err = repo.SavePlan(plan)
	require.ErrorIs(t, err, models.ErrPlanConflict)
	assert.Equal(t, int64(3), plan.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSweepCandidates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT DISTINCT p\.id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("plan-1").AddRow("plan-2"))

	repo := NewRepository(db)
	ids, err := repo.ListSweepCandidates(time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"plan-1", "plan-2"}, ids)
}

func TestPauseDuesSchedule(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE membership\.dues_schedules`).
		WithArgs(models.DuesScheduleStatusPlanActive, "plan-1", "dues-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewRepository(db)
	require.NoError(t, repo.PauseDuesSchedule("dues-1", "plan-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPauseDuesScheduleNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE membership\.dues_schedules`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewRepository(db)
	err = repo.PauseDuesSchedule("missing", "plan-1")
	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
}
