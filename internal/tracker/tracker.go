// Package tracker ingests window samples and maintains activity counters.
package tracker

import (
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_engine/internal/domain"
)

// maxGap caps the time credited between two consecutive samples so that a
// machine suspend or sampler stall does not inflate screen-time counters.
const maxGap = 5 * time.Second

// defaultSwitchRetention bounds how far back switch timestamps are retained
// when no rule asks for a longer window.
const defaultSwitchRetention = time.Hour

// Tracker derives app identities from window samples and owns the rolling
// counters read by the focus state machine and the rule evaluator.
// Not safe for concurrent use; the engine calls it from a single goroutine.
type Tracker struct {
	clock  domain.Clock
	logger *zap.Logger

	currentApp  string
	previousApp string
	ownerPath   string

	lastSampleAt time.Time
	dwellStart   time.Time
	dwell        time.Duration

	screenTime      time.Duration
	perApp          map[string]time.Duration
	switches        []time.Time
	switchRetention time.Duration
}

// New creates a tracker with empty counters.
func New(clock domain.Clock, logger *zap.Logger) *Tracker {
	return &Tracker{
		clock:           clock,
		logger:          logger,
		perApp:          make(map[string]time.Duration),
		switchRetention: defaultSwitchRetention,
	}
}

// SetSwitchRetention extends how long switch timestamps are retained, so
// rule windows larger than the default are counted in full. Retention never
// shrinks: a removed rule must not invalidate history another rule may
// still ask for.
func (t *Tracker) SetSwitchRetention(window time.Duration) {
	if window > t.switchRetention {
		t.switchRetention = window
	}
}

// OnSample ingests one window sample. Malformed or empty titles are not an
// error: identity derivation falls back to the raw trimmed title.
func (t *Tracker) OnSample(sample domain.WindowSample) {
	now := sample.Timestamp
	if now.IsZero() {
		now = t.clock.Now()
	}

	identity := domain.DeriveAppIdentity(sample.Title)
	if identity == "" && sample.OwnerName != "" {
		identity = sample.OwnerName
	}

	// Credit elapsed time to the app that held focus until now.
	if !t.lastSampleAt.IsZero() {
		gap := now.Sub(t.lastSampleAt)
		if gap < 0 {
			gap = 0
		}
		if gap > maxGap {
			gap = maxGap
		}
		t.screenTime += gap
		if t.currentApp != "" {
			t.perApp[t.currentApp] += gap
		}
	}

	if sample.OwnerPath != t.ownerPath {
		// App changed: dwell resets, switch recorded.
		t.ownerPath = sample.OwnerPath
		t.dwellStart = now
		t.dwell = 0
	} else if !t.dwellStart.IsZero() {
		t.dwell = now.Sub(t.dwellStart)
	}

	if identity != t.currentApp {
		// Seeing the first app at startup is not a switch.
		fromStartup := t.currentApp == ""
		t.previousApp = t.currentApp
		t.currentApp = identity
		if !fromStartup {
			t.recordSwitch(now)
		}
		t.logger.Debug("app changed",
			zap.String("from", t.previousApp),
			zap.String("to", t.currentApp))
	}

	t.lastSampleAt = now
}

func (t *Tracker) recordSwitch(now time.Time) {
	t.switches = append(t.switches, now)

	// Prune entries outside the retention window. The engine extends the
	// window to cover the largest loaded rule timeframe.
	cutoff := now.Add(-t.switchRetention)
	keep := 0
	for _, ts := range t.switches {
		if ts.After(cutoff) {
			t.switches[keep] = ts
			keep++
		}
	}
	t.switches = t.switches[:keep]
}

// CurrentApp returns the identity of the app holding focus.
func (t *Tracker) CurrentApp() string { return t.currentApp }

// PreviousApp returns the identity focused before the current one.
func (t *Tracker) PreviousApp() string { return t.previousApp }

// Dwell returns how long the current app has held focus contiguously.
func (t *Tracker) Dwell() time.Duration { return t.dwell }

// RecentSwitchCount returns how many app switches happened within window
// of the clock's current time.
func (t *Tracker) RecentSwitchCount(window time.Duration) int {
	cutoff := t.clock.Now().Add(-window)
	n := 0
	for _, ts := range t.switches {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

// CumulativeScreenTime returns total focused time since the tracker started.
func (t *Tracker) CumulativeScreenTime() time.Duration { return t.screenTime }

// PerAppTime returns cumulative focused time for one app identity.
func (t *Tracker) PerAppTime(app string) time.Duration { return t.perApp[app] }

// AllAppTimes returns a copy of the per-app time table.
func (t *Tracker) AllAppTimes() map[string]time.Duration {
	out := make(map[string]time.Duration, len(t.perApp))
	for app, d := range t.perApp {
		out[app] = d
	}
	return out
}

// Snapshot returns a persistable view of the counters.
func (t *Tracker) Snapshot() domain.CounterSnapshot {
	perApp := make(map[string]int64, len(t.perApp))
	for app, d := range t.perApp {
		perApp[app] = d.Milliseconds()
	}
	return domain.CounterSnapshot{
		TakenAt:           t.clock.Now(),
		CurrentApp:        t.currentApp,
		DwellMs:           t.dwell.Milliseconds(),
		ScreenTimeMs:      t.screenTime.Milliseconds(),
		SwitchCountWindow: t.RecentSwitchCount(t.switchRetention),
		PerAppMs:          perApp,
	}
}
