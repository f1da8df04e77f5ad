package scope

import (
	"strings"

	"ai-command-arbiter/pkg/arbiter/candidate"
	"ai-command-arbiter/pkg/arbiter/normalize"
)

// Source names where a binding came from, for logs and telemetry.
type Source string

const (
	SourceExplicit  Source = "explicit"
	SourceClarifier Source = "clarifier"
	SourceLatch     Source = "latch"
	SourceSnapshot  Source = "snapshot"
	SourceDefault   Source = "default"
)

// BindInput is everything the binder may consult, in precedence order.
type BindInput struct {
	Cue      Result
	Snapshot candidate.Snapshot

	// ClarifierScope is the scope of an unanswered clarifier, if any.
	ClarifierScope candidate.Scope

	// LatchScope is the focus latch target while pending or resolved.
	LatchScope candidate.Scope

	// LatchExpired sends cue-less turns to whatever the UI reports as active.
	LatchExpired bool
}

type Binding struct {
	Scope  candidate.Scope `json:"scope"`
	Source Source          `json:"source"`
}

// Bind turns a cue result plus session context into one concrete scope.
// Callers must not call Bind for ambiguous or conflicting cues.
func Bind(in BindInput) Binding {
	if in.Cue.Explicit() {
		return Binding{Scope: bindExplicit(in.Cue, in.Snapshot), Source: SourceExplicit}
	}

	switch {
	case !in.ClarifierScope.IsZero():
		return Binding{Scope: in.ClarifierScope, Source: SourceClarifier}
	case !in.LatchScope.IsZero():
		return Binding{Scope: in.LatchScope, Source: SourceLatch}
	case in.LatchExpired:
		return Binding{Scope: in.Snapshot.ActiveScope(), Source: SourceSnapshot}
	default:
		return Binding{Scope: candidate.ChatScope(), Source: SourceDefault}
	}
}

func bindExplicit(cue Result, snap candidate.Snapshot) candidate.Scope {
	if cue.Scope == candidate.ScopeWidget && cue.NamedHint != "" {
		if id, ok := matchWidget(cue.NamedHint, snap); ok {
			return candidate.WidgetScope(id)
		}
	}
	return snap.ScopeFor(cue.Scope)
}

// matchWidget finds the open widget a hint like "links" refers to.
func matchWidget(hint string, snap candidate.Snapshot) (string, bool) {
	ids := append([]string{}, snap.OpenWidgetIDs...)
	if snap.ActiveWidgetID != "" {
		ids = append([]string{snap.ActiveWidgetID}, ids...)
	}

	var match string
	count := 0
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		name := normalize.Text(id)
		if name == hint || normalize.ContainsPhrase(name, hint) || strings.HasPrefix(name, hint) {
			match = id
			count++
		}
	}
	return match, count == 1
}
