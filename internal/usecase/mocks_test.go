package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/focus_engine/internal/domain"
)

// capturingPublisher implements Publisher and records published events.
type capturingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *capturingPublisher) Publish(event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturingPublisher) all() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *capturingPublisher) byType(t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, e := range p.all() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (p *capturingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// stubHistory implements domain.HistoryStore with injectable failures.
type stubHistory struct {
	mu         sync.Mutex
	failWrites bool
	shown      []domain.Alert
	dismissed  []string
	snapshots  []domain.CounterSnapshot
}

func (h *stubHistory) SaveSnapshot(snap domain.CounterSnapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failWrites {
		return errors.New("database unavailable")
	}
	h.snapshots = append(h.snapshots, snap)
	return nil
}

func (h *stubHistory) RecordAlertShown(alert domain.Alert) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failWrites {
		return errors.New("database unavailable")
	}
	h.shown = append(h.shown, alert)
	return nil
}

func (h *stubHistory) RecordAlertDismissed(alertID string, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failWrites {
		return errors.New("database unavailable")
	}
	h.dismissed = append(h.dismissed, alertID)
	return nil
}

func (h *stubHistory) Close() error { return nil }

func (h *stubHistory) setFailWrites(fail bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failWrites = fail
}

func (h *stubHistory) shownCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.shown)
}

// stubSettingsStore implements domain.SettingsStore in memory.
type stubSettingsStore struct {
	mu        sync.Mutex
	settings  domain.Settings
	loadErr   error
	triggered map[string]time.Time
}

func newStubSettingsStore(settings domain.Settings) *stubSettingsStore {
	return &stubSettingsStore{
		settings:  settings,
		triggered: make(map[string]time.Time),
	}
}

func (s *stubSettingsStore) Load() (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return domain.Settings{}, s.loadErr
	}
	return s.settings, nil
}

func (s *stubSettingsStore) SetRuleTriggeredAt(ruleID string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggered[ruleID] = t
	return nil
}

func (s *stubSettingsStore) Watch(ctx context.Context, onChange func()) error {
	<-ctx.Done()
	return nil
}

// stubCounters implements CounterSource with fixed values.
type stubCounters struct {
	switches   int
	screenTime time.Duration
	perApp     map[string]time.Duration
}

func (c *stubCounters) RecentSwitchCount(window time.Duration) int { return c.switches }
func (c *stubCounters) CumulativeScreenTime() time.Duration       { return c.screenTime }
func (c *stubCounters) AllAppTimes() map[string]time.Duration     { return c.perApp }
