package events

import "time"

// ArbiterPrefix namespaces every event the arbitration engine emits.
const ArbiterPrefix = "arbiter."

// Engine telemetry names.
const (
	TurnResolved       = "turn_resolved"
	SessionBoundary    = "session_boundary"
	ScopeTypoClarifier = "scope_typo_clarifier"
	ReplayResolved     = "replay_resolved"
	ArbitrationRun     = "arbitration_run"
	FocusAnchored      = "focus_anchored"
	FocusTransition    = "focus_transition"
)

// NewArbiterEvent wraps one engine telemetry record.
func NewArbiterEvent(name string, data map[string]interface{}, at time.Time) BaseEvent {
	if at.IsZero() {
		at = time.Now()
	}
	return BaseEvent{Type: ArbiterPrefix + name, Data: data, OccurredAt: at}
}
