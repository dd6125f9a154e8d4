package leave

import (
	"context"
	"sync"
)

// Notification reasons.
const (
	ReasonApprovalRequested = "approval_requested"
	ReasonApproved          = "application_approved"
	ReasonRejected          = "application_rejected"
	ReasonCancelled         = "application_cancelled"
	ReasonYearStarted       = "financial_year_started"
)

// Notification is one message to be delivered to an employee.
type Notification struct {
	RecipientID   string
	Email         string
	Subject       string
	Message       string
	Reason        string
	ApplicationID string
}

// Notifier delivers notifications. Delivery happens after commit; a
// failure is logged and never undoes the state change.
type Notifier interface {
	Notify(ctx context.Context, batch []Notification) error
}

// NopNotifier drops everything.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, []Notification) error { return nil }

// RecordingNotifier keeps every batch, for tests.
type RecordingNotifier struct {
	mu   sync.Mutex
	Sent []Notification
}

func (r *RecordingNotifier) Notify(_ context.Context, batch []Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, batch...)
	return nil
}

// For returns the notifications sent to recipientID.
func (r *RecordingNotifier) For(recipientID string) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.Sent {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out
}
