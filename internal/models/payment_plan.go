package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PlanType determines how the installment schedule is generated.
type PlanType string

const (
	PlanTypeEqualInstallments PlanType = "Equal Installments"
	PlanTypeCustomSchedule    PlanType = "Custom Schedule"
	PlanTypeDeferredPayment   PlanType = "Deferred Payment"
)

// PlanStatus is the lifecycle state of a payment plan.
type PlanStatus string

const (
	PlanStatusDraft           PlanStatus = "Draft"
	PlanStatusPendingApproval PlanStatus = "Pending Approval"
	PlanStatusActive          PlanStatus = "Active"
	PlanStatusCompleted       PlanStatus = "Completed"
	PlanStatusSuspended       PlanStatus = "Suspended"
	PlanStatusCancelled       PlanStatus = "Cancelled"
)

// Frequency is the billing cadence for equal-installment plans.
type Frequency string

const (
	FrequencyWeekly   Frequency = "Weekly"
	FrequencyBiWeekly Frequency = "Bi-Weekly"
	FrequencyMonthly  Frequency = "Monthly"
)

// SuspensionThreshold is the number of consecutive missed payments after
// which an active plan is suspended.
const SuspensionThreshold = 3

// PaymentPlan converts an outstanding dues balance into a scheduled series
// of installments. It owns its installment sequence and recomputes totals
// and status after every mutation.
type PaymentPlan struct {
	ID                        string          `json:"id"`
	MemberID                  string          `json:"member_id"`
	MembershipDuesSchedule    string          `json:"membership_dues_schedule,omitempty"`
	PlanType                  PlanType        `json:"plan_type"`
	TotalAmount               decimal.Decimal `json:"total_amount"`
	NumberOfInstallments      int             `json:"number_of_installments"`
	Frequency                 Frequency       `json:"frequency,omitempty"`
	InstallmentAmount         decimal.Decimal `json:"installment_amount"`
	StartDate                 time.Time       `json:"start_date"`
	EndDate                   time.Time       `json:"end_date"`
	Status                    PlanStatus      `json:"status"`
	ApprovalRequired          bool            `json:"approval_required"`
	ApprovedBy                string          `json:"approved_by,omitempty"`
	ApprovalDate              *time.Time      `json:"approval_date,omitempty"`
	TotalPaid                 decimal.Decimal `json:"total_paid"`
	RemainingBalance          decimal.Decimal `json:"remaining_balance"`
	LastPaymentDate           *time.Time      `json:"last_payment_date,omitempty"`
	NextPaymentDate           *time.Time      `json:"next_payment_date,omitempty"`
	ConsecutiveMissedPayments int             `json:"consecutive_missed_payments"`
	Reason                    string          `json:"reason,omitempty"`
	PaymentMethod             string          `json:"payment_method,omitempty"`
	PaymentAccount            string          `json:"payment_account,omitempty"`
	Installments              []Installment   `json:"installments"`
	Version                   int64           `json:"version"`
	CreatedAt                 time.Time       `json:"created_at"`
	UpdatedAt                 time.Time       `json:"updated_at"`
}

// Validate checks the plan configuration. It is run before every save.
func (p *PaymentPlan) Validate() error {
	if p.MemberID == "" {
		return NewValidationError("member is required")
	}
	switch p.PlanType {
	case PlanTypeEqualInstallments, PlanTypeCustomSchedule, PlanTypeDeferredPayment:
	default:
		return NewValidationError("unknown plan type: %s", p.PlanType)
	}
	if !p.TotalAmount.IsPositive() {
		return NewValidationError("total amount must be positive, got %s", p.TotalAmount)
	}
	if p.StartDate.IsZero() {
		return NewValidationError("start date is required")
	}
	if p.PlanType == PlanTypeEqualInstallments {
		if p.NumberOfInstallments <= 0 {
			return NewValidationError("number of installments must be greater than zero")
		}
		switch p.Frequency {
		case FrequencyWeekly, FrequencyBiWeekly, FrequencyMonthly:
		default:
			return NewValidationError("frequency is required for equal installment plans")
		}
	}
	return nil
}

// Structural returns true while the plan may still regenerate its schedule.
func (p *PaymentPlan) Structural() bool {
	return p.Status == PlanStatusDraft || p.Status == PlanStatusPendingApproval
}

// Terminal returns true for states that end the plan's lifecycle.
func (p *PaymentPlan) Terminal() bool {
	switch p.Status {
	case PlanStatusCompleted, PlanStatusCancelled:
		return true
	}
	return false
}

// Submit activates a draft plan. Plans that require approval must already
// carry an approver; use RequestApproval for the approval flow instead.
func (p *PaymentPlan) Submit() error {
	if p.Status != PlanStatusDraft {
		return NewValidationError("only draft plans can be submitted, plan is %s", p.Status)
	}
	if p.ApprovalRequired && p.ApprovedBy == "" {
		return NewValidationError("plan requires approval before submission")
	}
	p.Status = PlanStatusActive
	return nil
}

// RequestApproval moves a draft plan into the approval queue.
func (p *PaymentPlan) RequestApproval() error {
	if p.Status != PlanStatusDraft {
		return NewValidationError("only draft plans can request approval, plan is %s", p.Status)
	}
	p.ApprovalRequired = true
	p.Status = PlanStatusPendingApproval
	return nil
}

// Approve activates a pending plan and records the approver.
func (p *PaymentPlan) Approve(approver string, at time.Time) error {
	if p.Status != PlanStatusPendingApproval {
		return NewValidationError("only pending plans can be approved, plan is %s", p.Status)
	}
	if approver == "" {
		return NewValidationError("approver is required")
	}
	p.ApprovedBy = approver
	p.ApprovalDate = &at
	p.Status = PlanStatusActive
	return nil
}

// Reject cancels a pending plan.
func (p *PaymentPlan) Reject(reason string) error {
	if p.Status != PlanStatusPendingApproval {
		return NewValidationError("only pending plans can be rejected, plan is %s", p.Status)
	}
	if reason != "" {
		p.Reason = reason
	}
	p.Status = PlanStatusCancelled
	return nil
}

// Cancel terminates the plan from any non-terminal state.
func (p *PaymentPlan) Cancel(reason string) error {
	if p.Terminal() {
		return NewValidationError("plan is already %s", p.Status)
	}
	if reason != "" {
		p.Reason = reason
	}
	p.Status = PlanStatusCancelled
	return nil
}

// ProgressPercentage reports collection progress against the total amount.
func (p *PaymentPlan) ProgressPercentage() float64 {
	if !p.TotalAmount.IsPositive() {
		return 0
	}
	pct, _ := p.TotalPaid.Div(p.TotalAmount).Mul(decimal.NewFromInt(100)).Round(1).Float64()
	return pct
}

func (p *PaymentPlan) installment(number int) (*Installment, error) {
	for i := range p.Installments {
		if p.Installments[i].InstallmentNumber == number {
			return &p.Installments[i], nil
		}
	}
	return nil, &NotFoundError{Resource: "installment", Key: fmt.Sprintf("%d", number)}
}
