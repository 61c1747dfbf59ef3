// Package notify pushes the user's current BAC to their group, either to
// everyone or to a single member.
//
// Every push is one-shot. Outcomes are reported as Toasts; failures are never
// retried and never change any other state.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mmynk/saferound/internal/calculator"
	"github.com/mmynk/saferound/internal/models"
	"github.com/mmynk/saferound/internal/remote"
	"github.com/mmynk/saferound/pkg/api"
)

// ToastDuration is how long a notice stays visible.
const ToastDuration = 2 * time.Second

var (
	// ErrNoUser means the push has no sender.
	ErrNoUser = errors.New("user id is required to notify")

	// ErrNoGroup means the sender has no active group to push to.
	ErrNoGroup = errors.New("you are not in a group")
)

// Notifier delivers a status push.
type Notifier interface {
	Notify(ctx context.Context, req api.NotifyRequest) (api.NotifyResponse, error)
}

// Toast is a transient notice for the user.
type Toast struct {
	Message string

	// OK is false for failures.
	OK bool

	ExpiresAt time.Time
}

// Expired reports whether the toast should no longer be shown at now.
func (t Toast) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Dispatcher sends pushes through a Notifier.
type Dispatcher struct {
	notifier Notifier
	clock    clockwork.Clock
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the clock used to stamp toast expiry.
func WithClock(c clockwork.Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New creates a Dispatcher.
func New(n Notifier, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		notifier: n,
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NotifyGroup tells every other member of groupID about bac. An empty groupID
// fails with ErrNoGroup without contacting the service.
func (d *Dispatcher) NotifyGroup(ctx context.Context, userID, groupID string, bac float64) Toast {
	formatted := calculator.FormatBAC(bac)
	req := api.NotifyRequest{UserID: userID, Message: formatted, GroupID: groupID}
	if _, err := d.send(ctx, req); err != nil {
		return d.failure(err, "Could not notify your group")
	}
	return d.toast(fmt.Sprintf("You notified your group: BAC status is %s", formatted), true)
}

// Alert sends bac to one member of the group.
func (d *Dispatcher) Alert(ctx context.Context, userID, groupID string, member models.Member, bac float64) Toast {
	req := api.NotifyRequest{
		UserID:      userID,
		Message:     calculator.FormatBAC(bac),
		GroupID:     groupID,
		RecipientID: member.UserID,
	}
	if _, err := d.send(ctx, req); err != nil {
		return d.failure(err, "Could not alert "+displayName(member))
	}
	return d.toast(fmt.Sprintf("Alert sent to %s.", displayName(member)), true)
}

func (d *Dispatcher) send(ctx context.Context, req api.NotifyRequest) (api.NotifyResponse, error) {
	if req.UserID == "" {
		return api.NotifyResponse{}, ErrNoUser
	}
	if req.GroupID == "" {
		return api.NotifyResponse{}, ErrNoGroup
	}
	if d.notifier == nil {
		return api.NotifyResponse{}, errors.New("notifications are not configured")
	}
	resp, err := d.notifier.Notify(ctx, req)
	if err != nil {
		d.logger.Warn("Notify failed", "user_id", req.UserID, "recipient_id", req.RecipientID, "error", err)
		return api.NotifyResponse{}, err
	}
	d.logger.Info("Notify sent", "user_id", req.UserID, "recipient_id", req.RecipientID, "notified_count", resp.NotifiedCount)
	return resp, nil
}

func (d *Dispatcher) failure(err error, prefix string) Toast {
	if detail, ok := remote.Detail(err); ok {
		return d.toast(prefix+": "+detail, false)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return d.toast(prefix+": the request timed out.", false)
	}
	return d.toast(prefix+": "+err.Error(), false)
}

func (d *Dispatcher) toast(msg string, ok bool) Toast {
	return Toast{Message: msg, OK: ok, ExpiresAt: d.clock.Now().Add(ToastDuration)}
}

func displayName(m models.Member) string {
	if m.Name != "" {
		return m.Name
	}
	if m.FirstName != "" {
		return m.FirstName
	}
	return "your friend"
}
