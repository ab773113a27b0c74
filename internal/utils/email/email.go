package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/ledger-engine/internal/config"
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

// SendLedgerAlert notifies the operations inbox that the audit sweep found a
// broken balance chain. Carries the identifiers needed to investigate the
// statement offline; the raw amounts stay out of user-facing channels.
func (s *Sender) SendLedgerAlert(accountID, entryID int64, expected, actual string) error {
	if s.cfg.OpsEmail == "" {
		return fmt.Errorf("no ops email configured")
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{s.cfg.OpsEmail}
	e.Subject = fmt.Sprintf("Ledger inconsistency on account %d", accountID)

	body := fmt.Sprintf(
		"The ledger audit detected a balance-chain break.\n\n"+
			"Account:   %d\n"+
			"Entry:     %d\n"+
			"Recorded:  %s\n"+
			"Replayed:  %s\n"+
			"Detected:  %s\n\n"+
			"The account's charts are suppressed until the statement is corrected.\n",
		accountID, entryID, actual, expected, time.Now().Format("2006-01-02 15:04:05"),
	)
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send ledger alert for account %d: %v", accountID, err)
		return fmt.Errorf("failed to send ledger alert: %w", err)
	}

	s.logger.Infof("Ledger alert sent to %s for account %d", s.cfg.OpsEmail, accountID)
	return nil
}
