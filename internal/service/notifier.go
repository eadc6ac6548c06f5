package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pocketlist/pocketlist/internal/metrics"
	"github.com/pocketlist/pocketlist/pkg/idx"
)

// DefaultWarningLead is how long before access token expiry the warning
// fires when no override is configured.
const DefaultWarningLead = 30 * time.Second

// NotifyFunc delivers the expiry warning to a user, typically over the
// WebSocket hub. Delivery is best effort; the notifier logs failures and
// moves on.
type NotifyFunc func(userID idx.ID, expiresAt time.Time, lead time.Duration) error

// ExpiryNotifier keeps at most one pending expiry warning per user. Arming a
// user replaces any pending warning (last write wins), so a user who logs in
// again or refreshes before the warning fires only ever gets the warning for
// their newest token. Warnings fire at expiry minus the lead time; tokens
// whose remaining lifetime is not longer than the lead are never armed.
type ExpiryNotifier struct {
	lead    time.Duration
	notify  NotifyFunc
	logger  *slog.Logger
	metrics *metrics.Metrics

	// test seams
	now       func() time.Time
	afterFunc func(d time.Duration, f func()) *time.Timer

	mu     sync.Mutex
	timers map[idx.ID]*time.Timer
}

func NewExpiryNotifier(lead time.Duration, notify NotifyFunc, logger *slog.Logger, m *metrics.Metrics) *ExpiryNotifier {
	if lead <= 0 {
		lead = DefaultWarningLead
	}
	return &ExpiryNotifier{
		lead:      lead,
		notify:    notify,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
		afterFunc: time.AfterFunc,
		timers:    make(map[idx.ID]*time.Timer),
	}
}

// Lead returns the configured warning lead time.
func (n *ExpiryNotifier) Lead() time.Duration { return n.lead }

// Arm schedules a warning for the user at expiresAt minus the lead time,
// cancelling any warning already pending. A non-positive delay means the
// token expires within the lead window and the warning is skipped entirely.
func (n *ExpiryNotifier) Arm(userID idx.ID, expiresAt time.Time) {
	delay := expiresAt.Sub(n.now()) - n.lead

	n.mu.Lock()
	defer n.mu.Unlock()

	if pending, ok := n.timers[userID]; ok {
		pending.Stop()
		delete(n.timers, userID)
	}

	if delay <= 0 {
		if n.metrics != nil {
			n.metrics.ExpiryWarningsSkipped.Inc()
		}
		if n.logger != nil {
			n.logger.Debug("expiry warning skipped",
				slog.String("user_id", userID.String()),
				slog.Duration("delay", delay))
		}
		return
	}

	var timer *time.Timer
	timer = n.afterFunc(delay, func() {
		n.fire(userID, timer, expiresAt)
	})
	n.timers[userID] = timer
}

// Cancel drops any pending warning for the user.
func (n *ExpiryNotifier) Cancel(userID idx.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if pending, ok := n.timers[userID]; ok {
		pending.Stop()
		delete(n.timers, userID)
	}
}

// Stop cancels every pending warning. Used on shutdown.
func (n *ExpiryNotifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for userID, pending := range n.timers {
		pending.Stop()
		delete(n.timers, userID)
	}
}

// Pending reports whether a warning is currently armed for the user.
func (n *ExpiryNotifier) Pending(userID idx.ID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	_, ok := n.timers[userID]
	return ok
}

// fire runs in the timer goroutine. A timer that has been superseded or
// cancelled since it was armed must not deliver; comparing the stored timer
// pointer guarantees at most one delivery per armed warning.
func (n *ExpiryNotifier) fire(userID idx.ID, self *time.Timer, expiresAt time.Time) {
	n.mu.Lock()
	current, ok := n.timers[userID]
	if !ok || current != self {
		n.mu.Unlock()
		return
	}
	delete(n.timers, userID)
	n.mu.Unlock()

	if err := n.notify(userID, expiresAt, n.lead); err != nil {
		if n.logger != nil {
			n.logger.Warn("expiry warning delivery failed",
				slog.String("user_id", userID.String()),
				slog.Any("err", err))
		}
		return
	}

	if n.metrics != nil {
		n.metrics.ExpiryWarningsSent.Inc()
	}
	if n.logger != nil {
		n.logger.Debug("expiry warning sent", slog.String("user_id", userID.String()))
	}
}
