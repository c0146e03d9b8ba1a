package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recompute derives the plan's cached totals and status from its
// installments. It must run after every structural or payment mutation,
// before the plan is persisted. The returned effects cover notifications
// triggered by a status change (currently suspension).
func (p *PaymentPlan) Recompute(asOf time.Time) []Effect {
	totalPaid := decimal.Zero
	var lastPayment *time.Time
	var nextDue *time.Time
	for i := range p.Installments {
		inst := &p.Installments[i]
		switch inst.Status {
		case InstallmentStatusPaid:
			totalPaid = totalPaid.Add(inst.Amount)
			if inst.PaymentDate != nil && (lastPayment == nil || inst.PaymentDate.After(*lastPayment)) {
				lastPayment = inst.PaymentDate
			}
		case InstallmentStatusPending:
			if nextDue == nil || inst.DueDate.Before(*nextDue) {
				due := inst.DueDate
				nextDue = &due
			}
		}
	}

	p.TotalPaid = totalPaid
	p.RemainingBalance = p.TotalAmount.Sub(totalPaid)
	p.LastPaymentDate = lastPayment
	p.NextPaymentDate = nextDue
	p.ConsecutiveMissedPayments = p.countConsecutiveMissed(asOf)

	return p.deriveStatus()
}

// countConsecutiveMissed scans installments in sequence order. An overdue
// installment with a past due date increments the counter; any other
// installment already due resets it. Installments not yet due are skipped,
// so a trailing run of missed payments keeps its count even when future
// installments remain.
func (p *PaymentPlan) countConsecutiveMissed(asOf time.Time) int {
	count := 0
	for i := range p.Installments {
		inst := &p.Installments[i]
		switch {
		case inst.Status == InstallmentStatusOverdue && inst.PastDue(asOf):
			count++
		case inst.PastDue(asOf) || inst.Status == InstallmentStatusPaid:
			count = 0
		}
	}
	return count
}

// deriveStatus applies the status priority rules: completion first, then
// suspension, then activation; draft and terminal states are left alone.
func (p *PaymentPlan) deriveStatus() []Effect {
	previous := p.Status
	switch {
	case p.RemainingBalance.LessThanOrEqual(decimal.Zero):
		p.Status = PlanStatusCompleted
	case p.ConsecutiveMissedPayments >= SuspensionThreshold:
		p.Status = PlanStatusSuspended
	case p.Status == PlanStatusDraft || p.Status == PlanStatusPendingApproval:
		// A structural plan keeps its state until submission or approval.
	case p.Status != PlanStatusCancelled && p.Status != PlanStatusCompleted && p.Status != PlanStatusSuspended:
		p.Status = PlanStatusActive
	}

	if p.Status == PlanStatusSuspended && previous != PlanStatusSuspended {
		return []Effect{{
			Kind:   EffectSuspensionNotice,
			PlanID: p.ID,
			Detail: "payment plan suspended after repeated missed payments",
		}}
	}
	return nil
}
