// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// WindowSample is a single observation of the focused window, pushed by the
// OS bridge every 1-1.5s. Samples are consumed and discarded each tick.
type WindowSample struct {
	Title     string
	OwnerName string
	OwnerPath string
	Timestamp time.Time
}

// identitySeparators mark where a window title stops describing the app
// and starts describing the document/tab (e.g. "Slack | #general").
var identitySeparators = []string{" - ", " | ", ":"}

// DeriveAppIdentity normalizes a window title into an app identity.
// The title is truncated at the first of " - ", " | ", ":" or a digit run.
// A title that normalizes to nothing falls back to the raw trimmed title;
// derivation never fails.
func DeriveAppIdentity(title string) string {
	trimmed := strings.TrimSpace(title)
	cut := len(trimmed)

	for _, sep := range identitySeparators {
		if i := strings.Index(trimmed, sep); i >= 0 && i < cut {
			cut = i
		}
	}
	for i, r := range trimmed {
		if r >= '0' && r <= '9' {
			if i < cut {
				cut = i
			}
			break
		}
	}

	identity := strings.TrimSpace(trimmed[:cut])
	if identity == "" {
		return trimmed
	}
	return identity
}

// Alert is a single focus violation notification. At most one undismissed
// alert exists per engine instance at any time.
type Alert struct {
	ID          string
	AppName     string
	Message     string
	MediaRef    string
	AutoDismiss time.Duration
	CreatedAt   time.Time
	DismissedAt *time.Time
}

// Dismissed reports whether the alert has been closed (by either the
// auto-dismiss timer or an explicit dismissal).
func (a *Alert) Dismissed() bool {
	return a.DismissedAt != nil
}

// AlertID derives the deduplication key for an alert from the app name and
// creation time. Deterministic: duplicate deliveries of the same logical
// alert hash to the same ID.
func AlertID(appName string, createdAt time.Time) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(appName))
	_, _ = fmt.Fprintf(h, "|%d", createdAt.UnixNano())
	return fmt.Sprintf("%016x", h.Sum64())
}

// TriggerType identifies what a rule's trigger condition measures.
type TriggerType string

const (
	TriggerTabSwitches TriggerType = "tabSwitches"
	TriggerTimeSpent   TriggerType = "timeSpent"
	TriggerAppUsage    TriggerType = "appUsage"
)

// TriggerCondition is the threshold part of a user-defined rule.
type TriggerCondition struct {
	Type             TriggerType `json:"type"`
	Threshold        int         `json:"threshold"`
	TimeframeMinutes int         `json:"timeframeMinutes"`
}

// RuleAction describes what happens when a rule fires.
type RuleAction struct {
	Text               string `json:"text"`
	MediaRef           string `json:"media,omitempty"`
	AutoDismiss        bool   `json:"autoDismiss"`
	DismissTimeSeconds int    `json:"dismissTimeSeconds"`
}

// Schedule restricts a rule to a weekly activation window.
// Days holds weekdays 0 (Sunday) through 6 (Saturday); StartTime and EndTime
// are "HH:MM" local times, inclusive at both ends, minute granularity.
type Schedule struct {
	Days      []int  `json:"days"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// ActiveAt reports whether t falls inside the schedule window.
// A window whose start is later than its end wraps across midnight.
// Unparseable times deactivate the schedule rather than erroring.
func (s *Schedule) ActiveAt(t time.Time) bool {
	dayOK := false
	for _, d := range s.Days {
		if d == int(t.Weekday()) {
			dayOK = true
			break
		}
	}
	if !dayOK {
		return false
	}

	start, ok := parseMinuteOfDay(s.StartTime)
	if !ok {
		return false
	}
	end, ok := parseMinuteOfDay(s.EndTime)
	if !ok {
		return false
	}

	tod := t.Hour()*60 + t.Minute()
	if start <= end {
		return start <= tod && tod <= end
	}
	// Wrapping window, e.g. 22:00-06:00.
	return tod >= start || tod <= end
}

func parseMinuteOfDay(hhmm string) (int, bool) {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// Rule is a user-defined trigger evaluated periodically by the engine.
// Rules are created and edited by an external settings surface; the engine
// only reads them and writes back LastTriggeredAt.
type Rule struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Trigger         TriggerCondition `json:"triggerCondition"`
	Action          RuleAction       `json:"action"`
	Schedule        *Schedule        `json:"schedule,omitempty"`
	Enabled         bool             `json:"enabled"`
	LastTriggeredAt time.Time        `json:"lastTriggeredAt,omitempty"`
}

// Settings is the read-mostly snapshot owned by the external settings store.
type Settings struct {
	Whitelist         []string `json:"whitelist"`
	DimInsteadOfBlock bool     `json:"dimInsteadOfBlock"`
	Rules             []Rule   `json:"rules"`
}

// CounterSnapshot is a persistable view of the activity tracker's counters.
type CounterSnapshot struct {
	TakenAt           time.Time
	CurrentApp        string
	DwellMs           int64
	ScreenTimeMs      int64
	SwitchCountWindow int
	PerAppMs          map[string]int64
}

// Session identifies a running engine instance for the status surface.
type Session struct {
	PID       int
	SessionID string
	StartedAt time.Time
}

// RegistryEntry stores the state of the running engine for liveness checks.
// Persisted to a JSON file for cross-process discovery by the CLI.
type RegistryEntry struct {
	Version       int    `json:"version"`
	PID           int    `json:"pid"`
	SessionID     string `json:"session_id"`
	StartedAt     int64  `json:"started_at"`
	LastHeartbeat int64  `json:"last_heartbeat"`
}
