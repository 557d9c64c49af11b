package domain

import "time"

// EventType identifies an outbound engine event.
type EventType string

const (
	EventShowAlert              EventType = "show-alert"
	EventClearAlert             EventType = "clear-alert"
	EventApplyDimEffect         EventType = "apply-dim-effect"
	EventRequestBlockIndication EventType = "request-block-indication"
	EventCounterUpdate          EventType = "counter-update"
)

// Event is a single outbound message to the display surface / OS bridge.
// Only the fields relevant to the Type are populated.
type Event struct {
	Type EventType

	// Alert fields (show-alert, clear-alert).
	AlertID     string
	AppName     string
	Message     string
	MediaRef    string
	AutoDismiss time.Duration

	// Dim effect field (apply-dim-effect).
	DimDuration time.Duration

	// Counter field (counter-update).
	Snapshot *CounterSnapshot
}
