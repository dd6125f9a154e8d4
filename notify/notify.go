// Package notify delivers leave.Notification batches.
//
// Delivery happens after the domain transaction committed. Failures are
// returned to the caller, which logs them; they never undo state.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
)

// LogNotifier writes every notification to the log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) Notify(_ context.Context, batch []leave.Notification) error {
	for _, msg := range batch {
		n.logger.Info("notification",
			zap.String("recipient", msg.RecipientID),
			zap.String("reason", msg.Reason),
			zap.String("application_id", msg.ApplicationID),
			zap.String("subject", msg.Subject),
		)
	}
	return nil
}

// Multi fans a batch out to every notifier and joins their errors.
type Multi []leave.Notifier

func (m Multi) Notify(ctx context.Context, batch []leave.Notification) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig returns the log notifier, fanned out to SMTP when enabled.
func FromConfig(cfg SMTPConfig, logger *zap.Logger) leave.Notifier {
	log := NewLogNotifier(logger)
	if !cfg.Enabled {
		return log
	}
	return Multi{log, NewMailNotifier(cfg, logger)}
}
