// Package replay handles the turn right after a scope-typo clarifier. It is a
// one-turn side channel: whatever it decides, the pending entry is gone
// afterwards.
package replay

import (
	"fmt"

	"ai-command-arbiter/pkg/arbiter/arbiterr"
	"ai-command-arbiter/pkg/arbiter/candidate"
	"ai-command-arbiter/pkg/arbiter/normalize"
	"ai-command-arbiter/pkg/arbiter/scope"
)

const DefaultTTLTurns = 1

// MaxDepth is how many replays may be stacked on one user turn.
const MaxDepth = 1

// Pending is saved when a scope-typo clarifier is emitted.
type Pending struct {
	OriginalInput       string                `json:"original_input_without_scope_cue"`
	SuggestedScopes     []candidate.ScopeKind `json:"suggested_scopes"`
	DetectedScope       candidate.ScopeKind   `json:"detected_scope"`
	DetectedToken       string                `json:"detected_token,omitempty"`
	NamedHint           string                `json:"named_hint,omitempty"`
	CreatedAtTurn       int                   `json:"created_at_turn_count"`
	SnapshotFingerprint string                `json:"snapshot_fingerprint"`
	ClarifierMessageID  string                `json:"clarifier_message_id"`
}

type Verdict string

const (
	// VerdictStale: the pending entry expired; route the turn normally.
	VerdictStale Verdict = "stale"
	// VerdictReplay: re-run Command through the whole pipeline once.
	VerdictReplay Verdict = "replay"
	// VerdictScopeOnly: ask a narrow scope question, no new pending entry.
	VerdictScopeOnly Verdict = "scope_only"
	// VerdictPassThrough: the turn is unrelated; route it normally.
	VerdictPassThrough Verdict = "pass_through"
)

type Outcome struct {
	Verdict         Verdict               `json:"verdict"`
	Command         string                `json:"command,omitempty"`
	Scope           candidate.ScopeKind   `json:"scope,omitempty"`
	SuggestedScopes []candidate.ScopeKind `json:"suggested_scopes,omitempty"`
	ErrorKind       arbiterr.Kind         `json:"error_kind,omitempty"`
}

type Resolver struct {
	scopes   *scope.Resolver
	ttlTurns int
}

func NewResolver(scopes *scope.Resolver, ttlTurns int) *Resolver {
	if ttlTurns <= 0 {
		ttlTurns = DefaultTTLTurns
	}
	return &Resolver{scopes: scopes, ttlTurns: ttlTurns}
}

// Resolve decides what the answer to a scope clarifier means. The caller
// must already have removed p from the session.
func (r *Resolver) Resolve(p Pending, utterance string, turn int, fingerprint string) Outcome {
	if turn-p.CreatedAtTurn != r.ttlTurns || fingerprint != p.SnapshotFingerprint {
		return Outcome{Verdict: VerdictStale, ErrorKind: arbiterr.KindStaleReplay}
	}

	// a bare affirmation carries no scope; it is routed as an ordinary turn
	rest, _ := normalize.StripAffirmation(utterance)
	if rest == "" {
		return Outcome{Verdict: VerdictPassThrough}
	}

	cue := r.scopes.ResolveReplay(rest)
	switch {
	case cue.HasConflict:
		return scopeOnly(cue.SuggestedScopes)
	case cue.Ambiguous():
		return scopeOnly(cue.SuggestedScopes)
	case cue.Confidence == scope.ConfidenceHigh && cue.StrippedInput == "":
		hint := cue.NamedHint
		if hint == "" && cue.Scope == p.DetectedScope {
			hint = p.NamedHint
		}
		return r.replay(p, cue.Scope, hint)
	default:
		return Outcome{Verdict: VerdictPassThrough}
	}
}

func (r *Resolver) replay(p Pending, kind candidate.ScopeKind, hint string) Outcome {
	return Outcome{
		Verdict: VerdictReplay,
		Command: Command(p.OriginalInput, kind, hint),
		Scope:   kind,
	}
}

// CheckDepth rejects a replay nested inside another replay.
func CheckDepth(depth int) error {
	if depth > MaxDepth {
		return arbiterr.New(arbiterr.KindReplayDepth, "replay", fmt.Errorf("depth %d exceeds %d", depth, MaxDepth))
	}
	return nil
}

// Command rebuilds the original command with a corrected scope cue.
func Command(original string, kind candidate.ScopeKind, hint string) string {
	phrase := scope.Phrase(kind)
	if hint != "" && kind == candidate.ScopeWidget {
		phrase = hint + " widget"
	}
	if original == "" {
		return "from " + phrase
	}
	return original + " from " + phrase
}

func scopeOnly(suggested []candidate.ScopeKind) Outcome {
	if len(suggested) == 0 {
		suggested = []candidate.ScopeKind{candidate.ScopeChat, candidate.ScopeWidget}
	}
	return Outcome{Verdict: VerdictScopeOnly, SuggestedScopes: suggested, ErrorKind: arbiterr.KindScopeAmbiguous}
}
