package usecase

import (
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_engine/internal/domain"
	"github.com/eliteGoblin/focusd/focus_engine/internal/whitelist"
)

// RuleCooldown is the minimum interval between two firings of the same
// rule, regardless of how many ticks re-evaluate it.
const RuleCooldown = 60 * time.Second

// CounterSource exposes the activity counters rules evaluate against.
// The tracker satisfies this.
type CounterSource interface {
	RecentSwitchCount(window time.Duration) int
	CumulativeScreenTime() time.Duration
	AllAppTimes() map[string]time.Duration
}

// RuleEvaluator periodically evaluates user-defined rules against activity
// counters, honoring per-rule schedules and the fixed cooldown. Fired rules
// emit rich alerts through the same Notifier path as focus alerts.
type RuleEvaluator struct {
	clock    domain.Clock
	notifier *Notifier
	store    domain.SettingsStore
	logger   *zap.Logger

	// lastFired is the engine's own cooldown record. It is seeded from the
	// rule's persisted LastTriggeredAt and kept authoritative locally so a
	// failing settings write-back cannot defeat the cooldown.
	lastFired map[string]time.Time
}

// NewRuleEvaluator creates a rule evaluator. store may be nil when
// LastTriggeredAt write-back is disabled.
func NewRuleEvaluator(clock domain.Clock, notifier *Notifier, store domain.SettingsStore, logger *zap.Logger) *RuleEvaluator {
	return &RuleEvaluator{
		clock:     clock,
		notifier:  notifier,
		store:     store,
		logger:    logger,
		lastFired: make(map[string]time.Time),
	}
}

// EvaluateAll runs one evaluation tick over the given rules.
// Returns the rules that fired.
func (e *RuleEvaluator) EvaluateAll(settings domain.Settings, counters CounterSource) []domain.Rule {
	now := e.clock.Now()
	var fired []domain.Rule

	for _, rule := range settings.Rules {
		if !rule.Enabled {
			continue
		}
		if rule.Schedule != nil && !rule.Schedule.ActiveAt(now) {
			continue
		}
		if !e.triggered(rule, settings.Whitelist, counters) {
			continue
		}
		if !e.cooldownElapsed(rule, now) {
			e.logger.Debug("rule in cooldown", zap.String("rule", rule.ID))
			continue
		}

		e.fire(rule, now)
		fired = append(fired, rule)
	}

	return fired
}

func (e *RuleEvaluator) triggered(rule domain.Rule, entries []string, counters CounterSource) bool {
	threshold := rule.Trigger.Threshold

	switch rule.Trigger.Type {
	case domain.TriggerTabSwitches:
		window := time.Duration(rule.Trigger.TimeframeMinutes) * time.Minute
		return counters.RecentSwitchCount(window) >= threshold

	case domain.TriggerTimeSpent:
		return counters.CumulativeScreenTime() >= time.Duration(threshold)*time.Minute

	case domain.TriggerAppUsage:
		// Any app outside the whitelist counts as a distraction app.
		limit := time.Duration(threshold) * time.Minute
		for app, spent := range counters.AllAppTimes() {
			if !whitelist.IsWhitelisted(app, entries) && spent >= limit {
				return true
			}
		}
		return false

	default:
		e.logger.Warn("unknown trigger type", zap.String("type", string(rule.Trigger.Type)))
		return false
	}
}

func (e *RuleEvaluator) cooldownElapsed(rule domain.Rule, now time.Time) bool {
	last, ok := e.lastFired[rule.ID]
	if !ok {
		last = rule.LastTriggeredAt
	}
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= RuleCooldown
}

func (e *RuleEvaluator) fire(rule domain.Rule, now time.Time) {
	e.lastFired[rule.ID] = now

	autoDismiss := time.Duration(0)
	if rule.Action.AutoDismiss && rule.Action.DismissTimeSeconds > 0 {
		autoDismiss = time.Duration(rule.Action.DismissTimeSeconds) * time.Second
	}

	// Rule alerts go through the same deduplicator/display path as focus
	// alerts but request no enforcement action.
	e.notifier.Raise(rule.Name, rule.Action.Text, rule.Action.MediaRef, autoDismiss)

	e.logger.Info("rule fired",
		zap.String("rule", rule.ID),
		zap.String("name", rule.Name),
		zap.String("trigger", string(rule.Trigger.Type)))

	if e.store != nil {
		if err := e.store.SetRuleTriggeredAt(rule.ID, now); err != nil {
			e.logger.Warn("failed to persist rule trigger time",
				zap.String("rule", rule.ID),
				zap.Error(err))
		}
	}
}
