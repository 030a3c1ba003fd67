package email

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/nvoronin/ledger-service/internal/config"
	"github.com/nvoronin/ledger-service/internal/models"
	"github.com/nvoronin/ledger-service/internal/repository"
)

// Sender notifies account owners about committed transactions via SMTP.
// Delivery is best-effort: failures are logged and never surfaced to the
// transaction caller.
type Sender struct {
	cfg    *config.Config
	store  repository.Store
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, store repository.Store, logger *logrus.Logger) *Sender {
	return &Sender{cfg: cfg, store: store, logger: logger}
}

// TransactionCommitted implements service.Notifier. It is invoked after
// commit, off the request path.
func (s *Sender) TransactionCommitted(txn *models.Transaction) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if txn.FromAccount != nil {
		s.notifyOwner(ctx, *txn.FromAccount, txn, "Withdrawal")
	}
	s.notifyOwner(ctx, txn.ToAccount, txn, "Deposit")
}

func (s *Sender) notifyOwner(ctx context.Context, accountID string, txn *models.Transaction, kind string) {
	account, err := s.store.AccountByID(ctx, accountID)
	if err != nil {
		s.logger.Errorf("Failed to load account %s for notification: %v", accountID, err)
		return
	}
	if account.OwnerID == "" {
		return
	}
	user, err := s.store.UserByID(ctx, account.OwnerID)
	if err != nil {
		s.logger.Errorf("Failed to load owner of account %s for notification: %v", accountID, err)
		return
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{user.Email}
	e.Subject = fmt.Sprintf("%s Notification", kind)

	body := fmt.Sprintf("Dear %s,\n\n", user.Name)
	if kind == "Deposit" {
		body += fmt.Sprintf(
			"Your account %s has been credited with %s.\n"+
				"Transaction id: %s\n"+
				"Current balance: %s\n",
			account.ID, formatAmount(txn.Amount), txn.ID, formatAmount(account.Balance),
		)
	} else {
		body += fmt.Sprintf(
			"An amount of %s has been debited from your account %s.\n"+
				"Transaction id: %s\n"+
				"Current balance: %s\n",
			formatAmount(txn.Amount), account.ID, txn.ID, formatAmount(account.Balance),
		)
	}
	body += "\nBest regards,\nLedger Service"
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send %s notification to %s: %v", kind, user.Email, err)
		return
	}

	s.logger.Infof("Email sent to %s: %s", user.Email, e.Subject)
}

// formatAmount renders minor units as a decimal string, e.g. 1250 -> 12.50.
func formatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
