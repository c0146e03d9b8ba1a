package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EffectKind names a best-effort side effect requested by an aggregate
// operation.
type EffectKind string

const (
	EffectLedgerReceipt       EffectKind = "ledger_receipt"
	EffectPaymentConfirmation EffectKind = "payment_confirmation"
	EffectOverdueNotice       EffectKind = "overdue_notice"
	EffectSuspensionNotice    EffectKind = "suspension_notice"
	EffectApprovalOutcome     EffectKind = "approval_outcome"
)

// Effect describes a side effect (ledger posting, notification) for the
// service layer to perform after the plan mutation has been persisted.
// Effects never roll back the mutation that produced them; failures are
// logged and dropped.
type Effect struct {
	Kind              EffectKind
	PlanID            string
	InstallmentNumber int
	Amount            decimal.Decimal
	Date              time.Time
	Reference         string
	Detail            string
}
