package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClockAdvanceFiresDueTimers(t *testing.T) {
	clock := NewFakeClock(time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC))

	var fired []string
	clock.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	clock.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	clock.AfterFunc(10*time.Second, func() { fired = append(fired, "c") })

	clock.Advance(5 * time.Second)
	assert.Equal(t, []string{"a", "b"}, fired, "due timers fire in deadline order")

	clock.Advance(5 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
}

func TestFakeClockStoppedTimerDoesNotFire(t *testing.T) {
	clock := NewFakeClock(time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC))

	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, timer.Stop())

	clock.Advance(5 * time.Second)
	assert.False(t, fired)
	assert.False(t, timer.Stop(), "stopping twice reports already stopped")
}

func TestFakeClockTimerCanRescheduleItself(t *testing.T) {
	clock := NewFakeClock(time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC))

	count := 0
	var schedule func()
	schedule = func() {
		clock.AfterFunc(time.Second, func() {
			count++
			if count < 3 {
				schedule()
			}
		})
	}
	schedule()

	// Callbacks run outside the clock lock, so each can arm the next timer.
	clock.Advance(time.Second)
	clock.Advance(time.Second)
	clock.Advance(time.Second)
	assert.Equal(t, 3, count)
}

func TestFakeClockTicker(t *testing.T) {
	clock := NewFakeClock(time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC))
	ticker := clock.NewTicker(time.Minute)
	defer ticker.Stop()

	select {
	case <-ticker.C():
		t.Fatal("ticker fired before its interval")
	default:
	}

	clock.Advance(time.Minute)
	select {
	case at := <-ticker.C():
		assert.Equal(t, clock.Now(), at)
	default:
		t.Fatal("ticker did not fire")
	}
}

func TestFakeClockNowAdvances(t *testing.T) {
	start := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)
	require.Equal(t, start, clock.Now())

	clock.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), clock.Now())
}
