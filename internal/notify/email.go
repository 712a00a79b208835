package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/budget-service/internal/config"
	"github.com/Dan9191/budget-service/internal/models"
)

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   sendFunc
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// NotifyAccrual emails the plan owner that a missed payment was added to a debt
func (s *Sender) NotifyAccrual(ctx context.Context, to *models.User, n AccrualNotice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to == nil || to.Email == "" {
		return fmt.Errorf("no recipient for debt %s", n.DebtID)
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to.Email}
	e.Subject = fmt.Sprintf("Missed payment added to %s", n.DebtName)

	name := to.Username
	if name == "" {
		name = to.Email
	}
	body := fmt.Sprintf("Dear %s,\n\n", name)
	body += fmt.Sprintf(
		"The payment for %s (%s) was not covered in full.\n"+
			"The unpaid %s has been added to the balance, which is now %s.\n",
		n.DebtName, n.Cycle, n.Accrued.StringFixed(2), n.NewBalance.StringFixed(2),
	)
	body += "\nBest regards,\nBudget Service"
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	if err := s.send(e, addr, auth); err != nil {
		s.logger.WithFields(logrus.Fields{"to": to.Email, "debt_id": n.DebtID}).Errorf("Failed to send accrual notice: %v", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.WithField("debt_id", n.DebtID).Infof("Email sent to %s: %s", to.Email, e.Subject)
	return nil
}

var _ Notifier = (*Sender)(nil)
