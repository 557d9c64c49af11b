// Package infra implements infrastructure concerns (clock, settings store,
// history database, registry, process liveness, sample feed).
package infra

import (
	"time"

	"github.com/eliteGoblin/focusd/focus_engine/internal/domain"
)

// RealClock implements domain.Clock on top of the time package.
type RealClock struct{}

// NewRealClock returns the wall-clock implementation.
func NewRealClock() domain.Clock {
	return RealClock{}
}

// Now returns the current wall-clock time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules f after d via time.AfterFunc.
func (RealClock) AfterFunc(d time.Duration, f func()) domain.Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

// NewTicker returns a wall-clock ticker.
func (RealClock) NewTicker(d time.Duration) domain.Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTimer struct {
	t *time.Timer
}

func (rt realTimer) Stop() bool { return rt.t.Stop() }

type realTicker struct {
	t *time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.t.C }
func (rt *realTicker) Stop()               { rt.t.Stop() }

// Ensure RealClock implements domain.Clock.
var _ domain.Clock = RealClock{}
