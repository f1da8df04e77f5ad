// Package focus tracks which scope is implicitly "in focus" across turns.
package focus

import "ai-command-arbiter/pkg/arbiter/candidate"

type State string

const (
	StateUnset    State = "unset"
	StatePending  State = "pending"
	StateResolved State = "resolved"
	StateExpired  State = "expired"
)

const DefaultPendingTTLTurns = 2

// Latch is the focus state machine:
//
//	unset -> pending(target, turn) -> resolved(target) -> unset
//	              \-> expired (after PendingTTLTurns without confirmation)
//
// Anchor may be called from any state and always lands in pending.
type Latch struct {
	State           State           `json:"state"`
	Target          candidate.Scope `json:"target"`
	CreatedAtTurn   int             `json:"created_at_turn"`
	PendingTTLTurns int             `json:"pending_ttl_turns"`
}

func NewLatch(pendingTTL int) *Latch {
	if pendingTTL <= 0 {
		pendingTTL = DefaultPendingTTLTurns
	}
	return &Latch{State: StateUnset, PendingTTLTurns: pendingTTL}
}

// Anchor re-anchors the latch on a just-opened target. The previous resolved
// value is discarded even if the UI has not registered the new target yet.
func (l *Latch) Anchor(target candidate.Scope, turn int) {
	l.State = StatePending
	l.Target = target
	l.CreatedAtTurn = turn
}

// Observe advances the latch against the snapshot taken at the start of turn.
func (l *Latch) Observe(snap candidate.Snapshot, turn int) State {
	switch l.State {
	case StatePending:
		if snap.Has(l.Target) {
			l.State = StateResolved
		} else if turn-l.CreatedAtTurn > l.ttl() {
			l.State = StateExpired
			l.Target = candidate.Scope{}
		}
	case StateResolved:
		if !snap.Has(l.Target) {
			l.Release()
		}
	}
	return l.State
}

// Release drops focus after the user switches context.
func (l *Latch) Release() {
	l.State = StateUnset
	l.Target = candidate.Scope{}
	l.CreatedAtTurn = 0
}

func (l *Latch) Reset() {
	l.Release()
}

// Scope is the latched target while pending or resolved.
func (l *Latch) Scope() candidate.Scope {
	if l.State == StatePending || l.State == StateResolved {
		return l.Target
	}
	return candidate.Scope{}
}

func (l *Latch) Expired() bool {
	return l.State == StateExpired
}

func (l *Latch) ttl() int {
	if l.PendingTTLTurns <= 0 {
		return DefaultPendingTTLTurns
	}
	return l.PendingTTLTurns
}
