package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// deferredDefaultMonths is how far out a deferred payment falls due when no
// explicit end date is given.
const deferredDefaultMonths = 3

// GenerateSchedule builds the installment sequence for the plan's type. It
// runs on every save while the plan is still structural (Draft or Pending
// Approval); once active the schedule is frozen.
func (p *PaymentPlan) GenerateSchedule() error {
	if !p.Structural() {
		return NewValidationError("schedule is frozen once the plan is %s", p.Status)
	}
	switch p.PlanType {
	case PlanTypeEqualInstallments:
		return p.generateEqualInstallments()
	case PlanTypeDeferredPayment:
		return p.generateDeferredPayment()
	case PlanTypeCustomSchedule:
		// Installments are supplied by the caller; sums are intentionally
		// not reconciled against the total (negotiated write-downs happen).
		p.renumberInstallments()
		return nil
	default:
		return NewValidationError("unknown plan type: %s", p.PlanType)
	}
}

func (p *PaymentPlan) generateEqualInstallments() error {
	if p.NumberOfInstallments <= 0 {
		return NewValidationError("number of installments must be greater than zero")
	}
	switch p.Frequency {
	case FrequencyWeekly, FrequencyBiWeekly, FrequencyMonthly:
	default:
		return NewValidationError("frequency is required for equal installment plans")
	}

	n := p.NumberOfInstallments
	p.InstallmentAmount = p.TotalAmount.DivRound(decimal.NewFromInt(int64(n)), 2)
	p.EndDate = p.addPeriods(p.StartDate, n-1)

	installments := make([]Installment, 0, n)
	allocated := decimal.Zero
	for i := 0; i < n; i++ {
		amount := p.InstallmentAmount
		if i == n-1 {
			// Rounding drift lands on the final installment so the
			// sequence always sums to the plan total exactly.
			amount = p.TotalAmount.Sub(allocated)
		}
		allocated = allocated.Add(amount)
		installments = append(installments, Installment{
			InstallmentNumber: i + 1,
			DueDate:           p.addPeriods(p.StartDate, i),
			Amount:            amount,
			Status:            InstallmentStatusPending,
		})
	}
	p.Installments = installments
	return nil
}

func (p *PaymentPlan) generateDeferredPayment() error {
	p.NumberOfInstallments = 1
	p.InstallmentAmount = p.TotalAmount
	if p.EndDate.IsZero() {
		p.EndDate = p.StartDate.AddDate(0, deferredDefaultMonths, 0)
	}
	p.Installments = []Installment{{
		InstallmentNumber: 1,
		DueDate:           p.EndDate,
		Amount:            p.TotalAmount,
		Status:            InstallmentStatusPending,
	}}
	return nil
}

// addPeriods advances a date by i billing periods of the plan's frequency.
func (p *PaymentPlan) addPeriods(from time.Time, i int) time.Time {
	switch p.Frequency {
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7*i)
	case FrequencyBiWeekly:
		return from.AddDate(0, 0, 14*i)
	default:
		return from.AddDate(0, i, 0)
	}
}

func (p *PaymentPlan) renumberInstallments() {
	for i := range p.Installments {
		p.Installments[i].InstallmentNumber = i + 1
		if p.Installments[i].Status == "" {
			p.Installments[i].Status = InstallmentStatusPending
		}
	}
}
