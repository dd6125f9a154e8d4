package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/warp/leave-engine/leave"
)

// SMTPConfig configures MailNotifier.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	Enabled  bool   `mapstructure:"enabled"`
}

// Dialer opens one SMTP session per batch. *gomail.Dialer satisfies it.
type Dialer interface {
	Dial() (gomail.SendCloser, error)
}

// MailNotifier sends each notification as a plain-text email.
type MailNotifier struct {
	dialer Dialer
	from   string
	logger *zap.Logger
}

// NewMailNotifier builds a notifier over a gomail SMTP dialer.
func NewMailNotifier(cfg SMTPConfig, logger *zap.Logger) *MailNotifier {
	return NewMailNotifierWithDialer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, logger)
}

func NewMailNotifierWithDialer(d Dialer, from string, logger *zap.Logger) *MailNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailNotifier{dialer: d, from: from, logger: logger.Named("mail")}
}

func (n *MailNotifier) Notify(ctx context.Context, batch []leave.Notification) error {
	var msgs []*gomail.Message
	for _, note := range batch {
		if note.Email == "" {
			n.logger.Warn("no email address, skipping", zap.String("recipient", note.RecipientID))
			continue
		}
		msgs = append(msgs, n.message(note))
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sc, err := n.dialer.Dial()
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer sc.Close()

	var errs []error
	for i, m := range msgs {
		if err := gomail.Send(sc, m); err != nil {
			errs = append(errs, fmt.Errorf("send to %v: %w", m.GetHeader("To"), err))
			continue
		}
		n.logger.Debug("email sent", zap.Strings("to", m.GetHeader("To")), zap.Int("index", i))
	}
	return errors.Join(errs...)
}

func (n *MailNotifier) message(note leave.Notification) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", note.Email)
	m.SetHeader("Subject", note.Subject)
	m.SetBody("text/plain", note.Message)
	return m
}
