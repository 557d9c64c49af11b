package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_engine/internal/domain"
	"github.com/eliteGoblin/focusd/focus_engine/internal/tracker"
	"github.com/eliteGoblin/focusd/focus_engine/internal/usecase"
)

// Config holds engine loop configuration.
type Config struct {
	RuleEvalInterval       time.Duration // How often rules are evaluated
	SettingsReloadInterval time.Duration // How often settings are re-read
	PersistInterval        time.Duration // How often counters are persisted
	HeartbeatInterval      time.Duration // How often the registry heartbeat updates
}

// DefaultConfig returns default engine configuration.
func DefaultConfig() Config {
	return Config{
		RuleEvalInterval:       20 * time.Second,
		SettingsReloadInterval: 5 * time.Second,
		PersistInterval:        30 * time.Second,
		HeartbeatInterval:      30 * time.Second,
	}
}

// Engine is the per-session decision engine. One instance is constructed
// per running session and passed by handle to all callers; there are no
// package-level singletons.
//
// All decision state is mutated from the single Run goroutine; inbound
// samples, dismissals and enable toggles arrive over channels, preserving
// arrival order.
type Engine struct {
	config   Config
	clock    domain.Clock
	tracker  *tracker.Tracker
	monitor  *usecase.FocusMonitor
	notifier *usecase.Notifier
	rules    *usecase.RuleEvaluator
	bus      *Bus

	settingsStore domain.SettingsStore
	history       domain.HistoryStore
	registry      domain.EngineRegistry
	session       domain.Session
	logger        *zap.Logger

	samples     chan domain.WindowSample
	dismissals  chan string
	enableReqs  chan bool
	settingsInv chan struct{}

	settings domain.Settings
	degraded bool

	// pendingSnapshot is a counter snapshot whose persistence failed once;
	// it is retried on the next persist tick, then dropped.
	pendingSnapshot *domain.CounterSnapshot
}

// New creates an engine. history and registry may be nil when persistence
// or the status surface is disabled; the decision protocol is unaffected.
func New(
	config Config,
	clock domain.Clock,
	settingsStore domain.SettingsStore,
	history domain.HistoryStore,
	registry domain.EngineRegistry,
	session domain.Session,
	logger *zap.Logger,
) *Engine {
	bus := NewBus(logger)
	trk := tracker.New(clock, logger)
	notifier := usecase.NewNotifier(clock, bus, history, logger)
	selector := usecase.NewActionSelector(bus, logger)
	monitor := usecase.NewFocusMonitor(notifier, selector, logger)
	rules := usecase.NewRuleEvaluator(clock, notifier, settingsStore, logger)

	return &Engine{
		config:        config,
		clock:         clock,
		tracker:       trk,
		monitor:       monitor,
		notifier:      notifier,
		rules:         rules,
		bus:           bus,
		settingsStore: settingsStore,
		history:       history,
		registry:      registry,
		session:       session,
		logger:        logger,
		samples:       make(chan domain.WindowSample, 16),
		dismissals:    make(chan string, 16),
		enableReqs:    make(chan bool, 4),
		settingsInv:   make(chan struct{}, 1),
	}
}

// Samples returns the inbound window-sample channel for the OS bridge.
func (e *Engine) Samples() chan<- domain.WindowSample { return e.samples }

// Dismiss requests dismissal of the alert with the given ID.
// Safe to call from any goroutine; duplicate delivery is absorbed.
func (e *Engine) Dismiss(id string) {
	select {
	case e.dismissals <- id:
	default:
		e.logger.Warn("dismiss queue full, dropping", zap.String("alert_id", id))
	}
}

// SetEnabled turns focus monitoring on or off.
func (e *Engine) SetEnabled(on bool) {
	select {
	case e.enableReqs <- on:
	default:
		e.logger.Warn("enable queue full, dropping", zap.Bool("enabled", on))
	}
}

// Subscribe registers an outbound event subscriber.
func (e *Engine) Subscribe() (string, <-chan domain.Event) { return e.bus.Subscribe() }

// Unsubscribe removes an outbound event subscriber.
func (e *Engine) Unsubscribe(id string) { e.bus.Unsubscribe(id) }

// Run starts the engine loop. This blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if e.registry != nil {
		if err := e.registry.Register(e.session); err != nil {
			e.logger.Warn("failed to register engine session", zap.Error(err))
		}
	}

	e.logger.Info("engine started",
		zap.Int("pid", e.session.PID),
		zap.String("session_id", e.session.SessionID))

	e.reloadSettings()

	// Settings edits are pushed between reload ticks so they take effect
	// within one tick interval at most.
	go func() {
		if err := e.settingsStore.Watch(ctx, e.invalidateSettings); err != nil && ctx.Err() == nil {
			e.logger.Warn("settings watch unavailable, relying on periodic reload", zap.Error(err))
		}
	}()

	ruleTicker := e.clock.NewTicker(e.config.RuleEvalInterval)
	reloadTicker := e.clock.NewTicker(e.config.SettingsReloadInterval)
	persistTicker := e.clock.NewTicker(e.config.PersistInterval)
	heartbeatTicker := e.clock.NewTicker(e.config.HeartbeatInterval)

	defer func() {
		ruleTicker.Stop()
		reloadTicker.Stop()
		persistTicker.Stop()
		heartbeatTicker.Stop()
		e.notifier.Shutdown()
		e.bus.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping")
			return ctx.Err()

		case sample := <-e.samples:
			e.handleSample(sample)

		case id := <-e.dismissals:
			e.notifier.Dismiss(id)

		case on := <-e.enableReqs:
			e.handleEnable(on)

		case <-e.settingsInv:
			e.reloadSettings()

		case <-reloadTicker.C():
			e.reloadSettings()

		case <-ruleTicker.C():
			e.evaluateRules()

		case <-persistTicker.C():
			e.persistCounters()
			e.notifier.RetryPending()

		case <-heartbeatTicker.C():
			if e.registry != nil {
				if err := e.registry.UpdateHeartbeat(); err != nil {
					e.logger.Warn("failed to update heartbeat", zap.Error(err))
				}
			}
		}
	}
}

// handleSample updates the tracker and feeds focus changes to the state
// machine. Samples are processed strictly in arrival order.
func (e *Engine) handleSample(sample domain.WindowSample) {
	before := e.tracker.CurrentApp()
	e.tracker.OnSample(sample)
	after := e.tracker.CurrentApp()

	if after != before {
		e.monitor.OnAppChanged(after, usecase.Snapshot{
			Whitelist:         e.settings.Whitelist,
			DimInsteadOfBlock: e.settings.DimInsteadOfBlock,
		})
	}
}

// handleEnable toggles monitoring. Disabling synchronously cancels the
// pending auto-dismiss timer and suppresses further rule firing.
func (e *Engine) handleEnable(on bool) {
	if on {
		e.monitor.Enable(e.tracker.CurrentApp(), e.settings.Whitelist)
		return
	}
	e.monitor.Disable()
}

// evaluateRules re-reads settings and runs one rule-evaluation tick.
// Rules are suppressed while the engine is disabled.
func (e *Engine) evaluateRules() {
	if !e.monitor.Enabled() {
		return
	}
	e.reloadSettings()
	e.rules.EvaluateAll(e.settings, e.tracker)
}

// reloadSettings refreshes the settings snapshot. A missing or unreadable
// store yields empty settings: monitoring becomes effectively permissive,
// logged once as degraded mode rather than surfaced as an error.
func (e *Engine) reloadSettings() {
	settings, err := e.settingsStore.Load()
	if err != nil {
		if !e.degraded {
			e.logger.Warn("settings unavailable, running in degraded mode", zap.Error(err))
			e.degraded = true
		}
		e.settings = domain.Settings{}
		return
	}
	if e.degraded {
		e.logger.Info("settings store recovered")
		e.degraded = false
	}
	e.settings = settings

	// Switch history must reach back as far as the largest rule window,
	// or long-timeframe rules undercount.
	for _, rule := range settings.Rules {
		window := time.Duration(rule.Trigger.TimeframeMinutes) * time.Minute
		e.tracker.SetSwitchRetention(window)
	}
}

func (e *Engine) invalidateSettings() {
	select {
	case e.settingsInv <- struct{}{}:
	default:
	}
}

// persistCounters publishes a counter update and saves it best-effort.
// A failed save is retried exactly once on the next tick, then dropped.
func (e *Engine) persistCounters() {
	snap := e.tracker.Snapshot()

	e.bus.Publish(domain.Event{
		Type:     domain.EventCounterUpdate,
		Snapshot: &snap,
	})

	if e.history == nil {
		return
	}

	if e.pendingSnapshot != nil {
		if err := e.history.SaveSnapshot(*e.pendingSnapshot); err != nil {
			e.logger.Warn("counter snapshot dropped after retry (degraded mode)", zap.Error(err))
		}
		e.pendingSnapshot = nil
	}

	if err := e.history.SaveSnapshot(snap); err != nil {
		e.logger.Warn("counter snapshot save failed, will retry once", zap.Error(err))
		e.pendingSnapshot = &snap
	}
}
