package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ApplyPayment applies a payment to one installment. A payment covering the
// installment's current amount settles it; anything over is absorbed without
// redistribution. A smaller payment reduces the installment's outstanding
// amount and leaves it pending, so it does not count toward the plan total
// until fully settled. Recompute runs before returning; the returned effects
// cover the ledger receipt and the confirmation notification.
func (p *PaymentPlan) ApplyPayment(installmentNumber int, amount decimal.Decimal, reference string, date time.Time) ([]Effect, error) {
	if !amount.IsPositive() {
		return nil, NewValidationError("payment amount must be positive, got %s", amount)
	}
	inst, err := p.installment(installmentNumber)
	if err != nil {
		return nil, err
	}
	if inst.Status == InstallmentStatusPaid {
		return nil, fmt.Errorf("installment %d: %w", installmentNumber, ErrInstallmentSettled)
	}

	if amount.GreaterThanOrEqual(inst.Amount) {
		inst.Status = InstallmentStatusPaid
		inst.PaymentDate = &date
		inst.PaymentReference = reference
	} else {
		inst.Amount = inst.Amount.Sub(amount)
		inst.appendNote(fmt.Sprintf("Partial payment of %s received on %s (ref %s), %s outstanding",
			amount.StringFixed(2), date.Format("2006-01-02"), reference, inst.Amount.StringFixed(2)))
	}

	effects := []Effect{
		{
			Kind:              EffectLedgerReceipt,
			PlanID:            p.ID,
			InstallmentNumber: installmentNumber,
			Amount:            amount,
			Date:              date,
			Reference:         reference,
		},
		{
			Kind:              EffectPaymentConfirmation,
			PlanID:            p.ID,
			InstallmentNumber: installmentNumber,
			Amount:            amount,
			Date:              date,
			Reference:         reference,
		},
	}
	effects = append(effects, p.Recompute(date)...)
	return effects, nil
}

// MarkInstallmentOverdue flags a pending, past-due installment as overdue.
// It is idempotent: an installment already overdue is left untouched.
func (p *PaymentPlan) MarkInstallmentOverdue(installmentNumber int, asOf time.Time) ([]Effect, error) {
	inst, err := p.installment(installmentNumber)
	if err != nil {
		return nil, err
	}
	if inst.Status == InstallmentStatusPaid {
		return nil, fmt.Errorf("installment %d: %w", installmentNumber, ErrInstallmentSettled)
	}
	if inst.Status == InstallmentStatusOverdue {
		return nil, nil
	}
	if !inst.PastDue(asOf) {
		return nil, NewValidationError("installment %d is not yet due", installmentNumber)
	}

	inst.Status = InstallmentStatusOverdue
	effects := []Effect{{
		Kind:              EffectOverdueNotice,
		PlanID:            p.ID,
		InstallmentNumber: installmentNumber,
		Amount:            inst.Amount,
		Date:              inst.DueDate,
	}}
	effects = append(effects, p.Recompute(asOf)...)
	return effects, nil
}

func (i *Installment) appendNote(note string) {
	if i.Notes == "" {
		i.Notes = note
		return
	}
	i.Notes += "\n" + note
}
