package domain

import (
	"context"
	"time"
)

// Clock abstracts time so the engine's timers and tickers can be driven by
// a virtual clock in tests instead of wall-clock timers.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc schedules f to run in its own goroutine after d.
	AfterFunc(d time.Duration, f func()) Timer

	// NewTicker returns a ticker firing every d.
	NewTicker(d time.Duration) Ticker
}

// Timer is a cancellable scheduled callback created by Clock.AfterFunc.
type Timer interface {
	// Stop cancels the timer. Returns false if it already fired or stopped.
	Stop() bool
}

// Ticker is a cancellable repeating tick source created by Clock.NewTicker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// SettingsStore provides the read-mostly settings snapshot owned by the
// external settings surface. The engine re-reads it every evaluation tick.
type SettingsStore interface {
	// Load returns the current settings. A missing or unreadable store
	// yields empty settings and a non-nil error so callers can log
	// degraded mode; it is never fatal.
	Load() (Settings, error)

	// SetRuleTriggeredAt writes back a rule's last-fired timestamp.
	// Best-effort: the engine keeps its own copy for cooldown tracking.
	SetRuleTriggeredAt(ruleID string, t time.Time) error

	// Watch invokes onChange whenever the underlying store is edited,
	// until ctx is cancelled. Implementations that cannot watch return
	// immediately with an error.
	Watch(ctx context.Context, onChange func()) error
}

// HistoryStore persists counter snapshots and alert lifecycle rows.
// All writes are best-effort: a failing store never corrupts engine state.
type HistoryStore interface {
	// SaveSnapshot records the tracker's counters.
	SaveSnapshot(snap CounterSnapshot) error

	// RecordAlertShown records that an alert was raised.
	RecordAlertShown(alert Alert) error

	// RecordAlertDismissed marks a previously recorded alert dismissed.
	RecordAlertDismissed(alertID string, at time.Time) error

	// Close releases the underlying database.
	Close() error
}

// EngineRegistry provides engine-instance discovery for the status command.
// Implementation: JSON file with an exclusive lock.
type EngineRegistry interface {
	// Register saves the running engine's PID and session ID.
	Register(session Session) error

	// UpdateHeartbeat refreshes the liveness timestamp.
	UpdateHeartbeat() error

	// Get returns the registry state, or nil if no engine has registered.
	Get() (*RegistryEntry, error)

	// Clear removes the registry file.
	Clear() error
}

// ProcessManager handles OS process liveness checks.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// SampleSource is the inbound OS-bridge adapter: it pushes window samples
// into the channel until ctx is cancelled or the source is exhausted.
type SampleSource interface {
	Run(ctx context.Context, out chan<- WindowSample) error
}
