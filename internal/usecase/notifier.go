// Package usecase contains application business logic.
package usecase

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_engine/internal/domain"
)

// DefaultAutoDismiss is how long a focus alert stays up before the engine
// closes it on the user's behalf.
const DefaultAutoDismiss = 8 * time.Second

// dismissedHistorySize bounds the record of recently closed alert IDs kept
// to absorb duplicate or out-of-order dismissals from multiple channels.
const dismissedHistorySize = 32

// Publisher delivers outbound events to the display surface / OS bridge.
// Delivery is fire-and-forget; failures never affect decision state.
type Publisher interface {
	Publish(event domain.Event)
}

type dismissedRecord struct {
	id string
	at time.Time
}

// Notifier owns the alert lifecycle: it guarantees at most one active alert,
// deduplicates dismissals, and races the auto-dismiss timer against explicit
// dismissal so that only the first effect applies.
//
// The mutex is needed because auto-dismiss timers fire on their own
// goroutine while the engine loop raises and clears alerts.
type Notifier struct {
	mu sync.Mutex

	clock     domain.Clock
	publisher Publisher
	history   domain.HistoryStore
	logger    *zap.Logger

	active    *domain.Alert
	timer     domain.Timer
	dismissed []dismissedRecord

	// pending holds best-effort history writes that failed once and are
	// retried on the next engine tick before being dropped.
	pending []func() error
}

// NewNotifier creates a notifier. history may be nil when persistence is
// disabled; the decision protocol is unaffected.
func NewNotifier(clock domain.Clock, publisher Publisher, history domain.HistoryStore, logger *zap.Logger) *Notifier {
	return &Notifier{
		clock:     clock,
		publisher: publisher,
		history:   history,
		logger:    logger,
	}
}

// Raise creates a new active alert and emits show-alert. Any prior active
// alert is closed first (the collision policy: old cleared, new created).
// autoDismiss <= 0 falls back to DefaultAutoDismiss.
func (n *Notifier) Raise(appName, message, mediaRef string, autoDismiss time.Duration) *domain.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.active != nil && !n.active.Dismissed() {
		n.closeLocked(n.active.ID, n.clock.Now())
	}

	if autoDismiss <= 0 {
		autoDismiss = DefaultAutoDismiss
	}

	now := n.clock.Now()
	alert := &domain.Alert{
		ID:          domain.AlertID(appName, now),
		AppName:     appName,
		Message:     message,
		MediaRef:    mediaRef,
		AutoDismiss: autoDismiss,
		CreatedAt:   now,
	}
	n.active = alert

	id := alert.ID
	n.timer = n.clock.AfterFunc(autoDismiss, func() {
		// Racing an explicit dismiss: Dismiss is idempotent by ID, so a
		// timer firing after the alert closed is a no-op.
		n.Dismiss(id)
	})

	n.publisher.Publish(domain.Event{
		Type:        domain.EventShowAlert,
		AlertID:     alert.ID,
		AppName:     alert.AppName,
		Message:     alert.Message,
		MediaRef:    alert.MediaRef,
		AutoDismiss: alert.AutoDismiss,
	})
	n.logger.Info("alert raised",
		zap.String("alert_id", alert.ID),
		zap.String("app", alert.AppName))

	n.recordLocked(func() error { return n.history.RecordAlertShown(*alert) })

	return alert
}

// Dismiss closes the alert with the given ID. Dismissing a non-active ID is
// a no-op: it covers duplicate delivery of the same logical dismissal and
// delayed dismissals for alerts that have already been replaced.
func (n *Notifier) Dismiss(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.active == nil || n.active.ID != id || n.active.Dismissed() {
		for _, rec := range n.dismissed {
			if rec.id == id {
				return // duplicate delivery, absorbed
			}
		}
		n.logger.Debug("dismiss for unknown alert ignored", zap.String("alert_id", id))
		return
	}

	n.closeLocked(id, n.clock.Now())
}

// Clear dismisses the active alert, if any.
func (n *Notifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.active == nil || n.active.Dismissed() {
		return
	}
	n.closeLocked(n.active.ID, n.clock.Now())
}

// closeLocked marks the active alert dismissed, cancels its timer, emits
// clear-alert and remembers the ID in the bounded dismissal history.
// Caller must hold n.mu.
func (n *Notifier) closeLocked(id string, at time.Time) {
	alert := n.active
	alert.DismissedAt = &at

	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}

	n.dismissed = append(n.dismissed, dismissedRecord{id: id, at: at})
	if len(n.dismissed) > dismissedHistorySize {
		n.dismissed = n.dismissed[len(n.dismissed)-dismissedHistorySize:]
	}

	n.publisher.Publish(domain.Event{
		Type:    domain.EventClearAlert,
		AlertID: id,
	})
	n.logger.Info("alert cleared",
		zap.String("alert_id", id),
		zap.String("app", alert.AppName))

	n.recordLocked(func() error { return n.history.RecordAlertDismissed(id, at) })
}

// ActiveAlert returns the current undismissed alert, or nil.
func (n *Notifier) ActiveAlert() *domain.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.active == nil || n.active.Dismissed() {
		return nil
	}
	copied := *n.active
	return &copied
}

// Shutdown clears any active alert and cancels its pending timer.
// Called synchronously when the engine is disabled or stopping.
func (n *Notifier) Shutdown() {
	n.Clear()
}

// recordLocked attempts a history write; on failure the write is queued for
// exactly one retry on the next engine tick. Caller must hold n.mu.
func (n *Notifier) recordLocked(write func() error) {
	if n.history == nil {
		return
	}
	if err := write(); err != nil {
		n.logger.Warn("history write failed, will retry once", zap.Error(err))
		n.pending = append(n.pending, write)
	}
}

// RetryPending retries failed history writes once, then drops them.
// Called by the engine on its persistence tick.
func (n *Notifier) RetryPending() {
	n.mu.Lock()
	queued := n.pending
	n.pending = nil
	n.mu.Unlock()

	for _, write := range queued {
		if err := write(); err != nil {
			n.logger.Warn("history write dropped after retry (degraded mode)", zap.Error(err))
		}
	}
}
