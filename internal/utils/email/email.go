package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/assoclab/membership-billing/internal/config"
	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// SendPaymentConfirmation confirms a received installment payment
func (s *Sender) SendPaymentConfirmation(to, fullName string, installmentNumber int, amount, remaining decimal.Decimal, paymentDate time.Time) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = "Payment Received"

	body := fmt.Sprintf(
		"Dear %s,\n\n", fullName,
	)
	body += fmt.Sprintf(
		"We have received your payment of %s EUR towards installment %d of your payment plan.\n"+
			"Payment date: %s\n"+
			"Remaining balance: %s EUR\n",
		amount.StringFixed(2), installmentNumber, paymentDate.Format("2006-01-02"), remaining.StringFixed(2),
	)
	body += "\nBest regards,\nMembership Administration"
	e.Text = []byte(body)

	return s.send(e, to)
}

// SendOverdueNotice notifies the member that an installment is overdue
func (s *Sender) SendOverdueNotice(to, fullName string, installmentNumber int, amount decimal.Decimal, dueDate time.Time) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = "Overdue Installment Notification"

	body := fmt.Sprintf(
		"Dear %s,\n\n", fullName,
	)
	body += fmt.Sprintf(
		"Installment %d of your payment plan (%s EUR) was due on %s and is now overdue.\n"+
			"Please make the payment as soon as possible. Repeated missed payments\n"+
			"lead to suspension of your payment plan and membership benefits.\n",
		installmentNumber, amount.StringFixed(2), dueDate.Format("2006-01-02"),
	)
	body += "\nBest regards,\nMembership Administration"
	e.Text = []byte(body)

	return s.send(e, to)
}

// SendSuspensionNotice tells the member their plan has been suspended
func (s *Sender) SendSuspensionNotice(to, fullName string) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = "Payment Plan Suspended"

	body := fmt.Sprintf(
		"Dear %s,\n\n", fullName,
	)
	body += "Your payment plan has been suspended after repeated missed payments.\n" +
		"Please contact the membership administration to arrange remediation\n" +
		"and reinstate your plan.\n"
	body += "\nBest regards,\nMembership Administration"
	e.Text = []byte(body)

	return s.send(e, to)
}

// SendApprovalOutcome tells the member their plan request was decided
func (s *Sender) SendApprovalOutcome(to, fullName string, approved bool, detail string) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	if approved {
		e.Subject = "Payment Plan Approved"
	} else {
		e.Subject = "Payment Plan Request Declined"
	}

	body := fmt.Sprintf(
		"Dear %s,\n\n", fullName,
	)
	if approved {
		body += "Your payment plan request has been approved and is now active.\n" +
			"You will receive a confirmation for every installment payment we receive.\n"
	} else {
		body += "Unfortunately your payment plan request has been declined.\n"
		if detail != "" {
			body += fmt.Sprintf("Reason: %s\n", detail)
		}
	}
	body += "\nBest regards,\nMembership Administration"
	e.Text = []byte(body)

	return s.send(e, to)
}

func (s *Sender) send(e *email.Email, to string) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}
