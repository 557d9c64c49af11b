package usecase

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_engine/internal/whitelist"
)

// FocusMonitor is the focus state machine. It decides when a transition
// between apps raises or clears an alert; the Notifier enforces
// deduplication and the ActionSelector maps raised alerts to enforcement
// requests.
//
// States: Disabled, Monitoring{wasInWhitelistedApp}.
type FocusMonitor struct {
	notifier *Notifier
	selector *ActionSelector
	logger   *zap.Logger

	enabled          bool
	wasInWhitelisted bool
}

// NewFocusMonitor creates a monitor in the Disabled state.
func NewFocusMonitor(notifier *Notifier, selector *ActionSelector, logger *zap.Logger) *FocusMonitor {
	return &FocusMonitor{
		notifier: notifier,
		selector: selector,
		logger:   logger,
	}
}

// Enable transitions to Monitoring, seeding wasInWhitelistedApp from the
// currently focused app so that enabling inside a whitelisted app does not
// immediately alert on the next change.
func (m *FocusMonitor) Enable(currentApp string, entries []string) {
	m.enabled = true
	m.wasInWhitelisted = whitelist.IsWhitelisted(currentApp, entries)
	m.logger.Info("focus monitoring enabled",
		zap.String("current_app", currentApp),
		zap.Bool("whitelisted", m.wasInWhitelisted))
}

// Disable clears any active alert and transitions to Disabled.
func (m *FocusMonitor) Disable() {
	if !m.enabled {
		return
	}
	m.enabled = false
	m.notifier.Clear()
	m.logger.Info("focus monitoring disabled")
}

// Enabled reports whether the monitor is in the Monitoring state.
func (m *FocusMonitor) Enabled() bool { return m.enabled }

// OnAppChanged processes a focus change while monitoring.
//
// A whitelisted -> non-whitelisted transition raises exactly one alert;
// dwelling in the same non-whitelisted app raises nothing further; hopping
// to a different non-whitelisted app replaces the active alert; returning
// to any whitelisted app clears.
func (m *FocusMonitor) OnAppChanged(newApp string, settings Snapshot) {
	if !m.enabled {
		return
	}

	isWL := whitelist.IsWhitelisted(newApp, settings.Whitelist)
	active := m.notifier.ActiveAlert()

	switch {
	case m.wasInWhitelisted && !isWL && newApp != "":
		m.raise(newApp, settings.DimInsteadOfBlock)

	case isWL:
		if active != nil {
			m.notifier.Clear()
		}

	case !isWL && !m.wasInWhitelisted:
		if active != nil && active.AppName != newApp && newApp != "" {
			// Already alerting, but the user hopped to a different
			// non-whitelisted app: replace the alert.
			m.raise(newApp, settings.DimInsteadOfBlock)
		}
	}

	m.wasInWhitelisted = isWL
}

func (m *FocusMonitor) raise(app string, dim bool) {
	message := fmt.Sprintf("%s is not in your focus whitelist", app)
	alert := m.notifier.Raise(app, message, "", DefaultAutoDismiss)
	m.selector.OnAlert(alert, dim)
}

// Snapshot is the slice of settings the state machine needs per change.
type Snapshot struct {
	Whitelist         []string
	DimInsteadOfBlock bool
}
