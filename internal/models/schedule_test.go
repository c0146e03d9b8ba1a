package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newEqualPlan(total string, n int, freq Frequency, start time.Time) *PaymentPlan {
	return &PaymentPlan{
		ID:                   "plan-1",
		MemberID:             "member-1",
		PlanType:             PlanTypeEqualInstallments,
		TotalAmount:          decimal.RequireFromString(total),
		NumberOfInstallments: n,
		Frequency:            freq,
		StartDate:            start,
		Status:               PlanStatusDraft,
	}
}

func TestGenerateEqualInstallments(t *testing.T) {
	plan := newEqualPlan("150", 3, FrequencyMonthly, date(2025, time.January, 1))

	require.NoError(t, plan.GenerateSchedule())

	require.Len(t, plan.Installments, 3)
	assert.True(t, plan.InstallmentAmount.Equal(decimal.RequireFromString("50")))
	assert.Equal(t, date(2025, time.March, 1), plan.EndDate)

	wantDue := []time.Time{
		date(2025, time.January, 1),
		date(2025, time.February, 1),
		date(2025, time.March, 1),
	}
	for i, inst := range plan.Installments {
		assert.Equal(t, i+1, inst.InstallmentNumber)
		assert.Equal(t, wantDue[i], inst.DueDate)
		assert.True(t, inst.Amount.Equal(decimal.RequireFromString("50")), "installment %d amount %s", i+1, inst.Amount)
		assert.Equal(t, InstallmentStatusPending, inst.Status)
	}
}

func TestGenerateRoundingDriftOnFinalInstallment(t *testing.T) {
	plan := newEqualPlan("100", 3, FrequencyMonthly, date(2025, time.January, 1))

	require.NoError(t, plan.GenerateSchedule())

	require.Len(t, plan.Installments, 3)
	assert.True(t, plan.Installments[0].Amount.Equal(decimal.RequireFromString("33.33")))
	assert.True(t, plan.Installments[1].Amount.Equal(decimal.RequireFromString("33.33")))
	assert.True(t, plan.Installments[2].Amount.Equal(decimal.RequireFromString("33.34")))
}

func TestGenerateSumConservation(t *testing.T) {
	totals := []string{"100", "99.99", "150", "1", "1234.56", "0.05"}
	counts := []int{1, 2, 3, 6, 7, 12}

	for _, total := range totals {
		for _, n := range counts {
			plan := newEqualPlan(total, n, FrequencyMonthly, date(2025, time.January, 1))
			require.NoError(t, plan.GenerateSchedule())

			sum := decimal.Zero
			for _, inst := range plan.Installments {
				sum = sum.Add(inst.Amount)
			}
			assert.True(t, sum.Equal(plan.TotalAmount),
				"total %s over %d installments: sum %s", total, n, sum)
		}
	}
}

func TestGenerateFrequencies(t *testing.T) {
	start := date(2025, time.January, 1)

	tests := []struct {
		frequency Frequency
		wantThird time.Time
		wantEnd   time.Time
	}{
		{FrequencyWeekly, date(2025, time.January, 15), date(2025, time.January, 22)},
		{FrequencyBiWeekly, date(2025, time.January, 29), date(2025, time.February, 12)},
		{FrequencyMonthly, date(2025, time.March, 1), date(2025, time.April, 1)},
	}
	for _, tt := range tests {
		t.Run(string(tt.frequency), func(t *testing.T) {
			plan := newEqualPlan("120", 4, tt.frequency, start)
			require.NoError(t, plan.GenerateSchedule())

			assert.Equal(t, start, plan.Installments[0].DueDate)
			assert.Equal(t, tt.wantThird, plan.Installments[2].DueDate)
			assert.Equal(t, tt.wantEnd, plan.EndDate)
			assert.Equal(t, tt.wantEnd, plan.Installments[3].DueDate)
		})
	}
}

func TestGenerateIdempotent(t *testing.T) {
	plan := newEqualPlan("100", 3, FrequencyMonthly, date(2025, time.January, 1))

	require.NoError(t, plan.GenerateSchedule())
	first := make([]Installment, len(plan.Installments))
	copy(first, plan.Installments)

	require.NoError(t, plan.GenerateSchedule())
	assert.Equal(t, first, plan.Installments)
	assert.Equal(t, date(2025, time.March, 1), plan.EndDate)
}

func TestGenerateDeferredPayment(t *testing.T) {
	plan := &PaymentPlan{
		ID:          "plan-1",
		MemberID:    "member-1",
		PlanType:    PlanTypeDeferredPayment,
		TotalAmount: decimal.RequireFromString("120"),
		StartDate:   date(2025, time.January, 1),
		Status:      PlanStatusDraft,
	}

	require.NoError(t, plan.GenerateSchedule())

	assert.Equal(t, 1, plan.NumberOfInstallments)
	assert.Equal(t, date(2025, time.April, 1), plan.EndDate)
	require.Len(t, plan.Installments, 1)
	assert.Equal(t, date(2025, time.April, 1), plan.Installments[0].DueDate)
	assert.True(t, plan.Installments[0].Amount.Equal(decimal.RequireFromString("120")))
}

func TestGenerateDeferredPaymentKeepsExplicitEndDate(t *testing.T) {
	plan := &PaymentPlan{
		ID:          "plan-1",
		MemberID:    "member-1",
		PlanType:    PlanTypeDeferredPayment,
		TotalAmount: decimal.RequireFromString("80"),
		StartDate:   date(2025, time.January, 1),
		EndDate:     date(2025, time.June, 15),
		Status:      PlanStatusDraft,
	}

	require.NoError(t, plan.GenerateSchedule())

	assert.Equal(t, date(2025, time.June, 15), plan.EndDate)
	assert.Equal(t, date(2025, time.June, 15), plan.Installments[0].DueDate)
}

func TestGenerateCustomScheduleKeepsCallerInstallments(t *testing.T) {
	plan := &PaymentPlan{
		ID:          "plan-1",
		MemberID:    "member-1",
		PlanType:    PlanTypeCustomSchedule,
		TotalAmount: decimal.RequireFromString("200"),
		StartDate:   date(2025, time.January, 1),
		Status:      PlanStatusDraft,
		Installments: []Installment{
			{DueDate: date(2025, time.January, 31), Amount: decimal.RequireFromString("80")},
			{DueDate: date(2025, time.March, 2), Amount: decimal.RequireFromString("70")},
			{DueDate: date(2025, time.April, 1), Amount: decimal.RequireFromString("50")},
		},
	}

	require.NoError(t, plan.GenerateSchedule())

	require.Len(t, plan.Installments, 3)
	for i, inst := range plan.Installments {
		assert.Equal(t, i+1, inst.InstallmentNumber)
		assert.Equal(t, InstallmentStatusPending, inst.Status)
	}
	// Custom sums may intentionally diverge from the plan total.
	assert.True(t, plan.Installments[0].Amount.Equal(decimal.RequireFromString("80")))
}

func TestGenerateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PaymentPlan)
	}{
		{"zero installments", func(p *PaymentPlan) { p.NumberOfInstallments = 0 }},
		{"negative installments", func(p *PaymentPlan) { p.NumberOfInstallments = -2 }},
		{"missing frequency", func(p *PaymentPlan) { p.Frequency = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := newEqualPlan("100", 3, FrequencyMonthly, date(2025, time.January, 1))
			tt.mutate(plan)

			err := plan.GenerateSchedule()
			require.Error(t, err)
			var validation *ValidationError
			assert.ErrorAs(t, err, &validation)
		})
	}
}

func TestGenerateFrozenOnceActive(t *testing.T) {
	plan := newEqualPlan("100", 3, FrequencyMonthly, date(2025, time.January, 1))
	require.NoError(t, plan.GenerateSchedule())
	plan.Status = PlanStatusActive

	err := plan.GenerateSchedule()
	require.Error(t, err)
}
