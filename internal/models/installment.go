package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstallmentStatus is the settlement state of a single installment.
type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "Pending"
	InstallmentStatusPaid    InstallmentStatus = "Paid"
	InstallmentStatusOverdue InstallmentStatus = "Overdue"
)

// Installment is one scheduled obligation within a payment plan. Ordering is
// fixed by InstallmentNumber once the schedule is generated; only status,
// amount and payment details change afterwards.
type Installment struct {
	InstallmentNumber int               `json:"installment_number"`
	DueDate           time.Time         `json:"due_date"`
	Amount            decimal.Decimal   `json:"amount"`
	Status            InstallmentStatus `json:"status"`
	PaymentDate       *time.Time        `json:"payment_date,omitempty"`
	PaymentReference  string            `json:"payment_reference,omitempty"`
	Notes             string            `json:"notes,omitempty"`
}

// PastDue reports whether the installment's due date is strictly before asOf.
func (i *Installment) PastDue(asOf time.Time) bool {
	return i.DueDate.Before(truncateToDay(asOf))
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
