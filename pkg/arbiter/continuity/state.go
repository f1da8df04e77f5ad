// Package continuity keeps the short, bounded, session-scoped memory that lets
// follow-ups like "that one" or "no, the other" resolve deterministically.
package continuity

import (
	"ai-command-arbiter/pkg/arbiter/candidate"
	"ai-command-arbiter/pkg/arbiter/normalize"
)

const DefaultSize = 5

// Ring is a fixed-size, newest-first, de-duplicated list of ids.
type Ring struct {
	IDs []string `json:"ids"`
	Cap int      `json:"cap"`
}

func NewRing(size int) Ring {
	if size <= 0 {
		size = DefaultSize
	}
	return Ring{IDs: []string{}, Cap: size}
}

// Push moves id to the front, evicting the oldest entry past capacity.
func (r *Ring) Push(id string) {
	if id == "" {
		return
	}
	out := make([]string, 0, r.Cap)
	out = append(out, id)
	for _, existing := range r.IDs {
		if existing != id && len(out) < r.Cap {
			out = append(out, existing)
		}
	}
	r.IDs = out
}

func (r Ring) Contains(id string) bool {
	for _, v := range r.IDs {
		if v == id {
			return true
		}
	}
	return false
}

func (r Ring) Values() []string {
	return append([]string(nil), r.IDs...)
}

func (r *Ring) Clear() {
	r.IDs = []string{}
}

// Action records one successful resolution.
type Action struct {
	CandidateID string          `json:"candidate_id"`
	Label       string          `json:"label"`
	Kind        candidate.Kind  `json:"kind"`
	Scope       candidate.Scope `json:"scope"`
	Turn        int             `json:"turn"`
}

// State is mutated only by the engine: on clarifier emission, on successful
// resolution, on explicit rejection, and on session boundary.
type State struct {
	ActiveOptionSetID    string          `json:"active_option_set_id,omitempty"`
	ActiveOptionIDs      []string        `json:"active_option_ids,omitempty"`
	ActiveScope          candidate.Scope `json:"active_scope"`
	LastResolvedAction   *Action         `json:"last_resolved_action,omitempty"`
	RecentActionTrace    []Action        `json:"recent_action_trace"`
	RecentAccepted       Ring            `json:"recent_accepted_choice_ids"`
	RecentRejected       Ring            `json:"recent_rejected_choice_ids"`
	PendingClarifierType string          `json:"pending_clarifier_type,omitempty"`
	LastSuggestedID      string          `json:"last_suggested_id,omitempty"`
	TieBreakGuard        string          `json:"tie_break_guard,omitempty"`
	Size                 int             `json:"size"`
}

func New(size int) *State {
	if size <= 0 {
		size = DefaultSize
	}
	s := &State{Size: size}
	s.Reset()
	return s
}

// Reset returns the state to empty. Used on session boundaries.
func (s *State) Reset() {
	size := s.Size
	if size <= 0 {
		size = DefaultSize
	}
	*s = State{
		Size:              size,
		RecentActionTrace: []Action{},
		RecentAccepted:    NewRing(size),
		RecentRejected:    NewRing(size),
	}
}

// OnClarifier records the option set a clarifier just offered. A new option
// set starts a new cycle: rejections and the tie-break guard from the old set
// no longer apply.
func (s *State) OnClarifier(optionSetID string, scope candidate.Scope, optionIDs []string, clarifierType, suggestedID string) {
	if optionSetID != s.ActiveOptionSetID {
		s.TieBreakGuard = ""
		s.RecentRejected.Clear()
	}
	s.ActiveOptionSetID = optionSetID
	s.ActiveScope = scope
	s.ActiveOptionIDs = append([]string(nil), optionIDs...)
	s.PendingClarifierType = clarifierType
	s.LastSuggestedID = suggestedID
}

// OnResolved records a successful execution.
func (s *State) OnResolved(a Action, optionSetID string) {
	if optionSetID != s.ActiveOptionSetID {
		s.TieBreakGuard = ""
	}
	s.ActiveOptionSetID = optionSetID
	s.ActiveScope = a.Scope
	s.LastResolvedAction = &a
	s.PendingClarifierType = ""
	s.LastSuggestedID = ""

	trace := make([]Action, 0, s.Size)
	trace = append(trace, a)
	for _, prev := range s.RecentActionTrace {
		if len(trace) >= s.Size {
			break
		}
		trace = append(trace, prev)
	}
	s.RecentActionTrace = trace
	s.RecentAccepted.Push(a.CandidateID)
}

// CloseClarifier drops an unanswered clarifier without resolving it. The
// option set is kept so a later turn over the same pool can still tie-break.
func (s *State) CloseClarifier() {
	s.PendingClarifierType = ""
	s.LastSuggestedID = ""
}

// Reject records that the user turned down id.
func (s *State) Reject(id string) {
	s.RecentRejected.Push(id)
}

// ClarifierPending reports whether the last turn ended in an unanswered
// clarifier.
func (s *State) ClarifierPending() bool {
	return s.PendingClarifierType != ""
}

// RejectionTarget is what a bare "no" refers to: the suggested option of an
// open clarifier, else the last resolved action.
func (s *State) RejectionTarget() string {
	if s.LastSuggestedID != "" {
		return s.LastSuggestedID
	}
	if s.LastResolvedAction != nil {
		return s.LastResolvedAction.CandidateID
	}
	return ""
}

// TieBreakInput is the current turn as seen by the tie-break.
type TieBreakInput struct {
	Utterance   string
	OptionSetID string
	Scope       candidate.Scope
	Pool        candidate.Pool
}

// TieBreak resolves a command-like follow-up to the single candidate left
// after removing rejections, provided the turn is looking at the same option
// set and scope the state remembers. The same winner is not produced twice
// within one option set.
func (s *State) TieBreak(in TieBreakInput) (string, bool) {
	if normalize.Text(in.Utterance) == "" || normalize.IsQuestion(in.Utterance) {
		return "", false
	}
	if s.ActiveOptionSetID == "" || s.ActiveOptionSetID != in.OptionSetID || !s.ActiveScope.Equal(in.Scope) {
		return "", false
	}

	remaining := in.Pool.Without(s.RecentRejected.Values())
	if remaining.Len() != 1 {
		return "", false
	}

	winner := remaining.Candidates[0].ID
	key := in.OptionSetID + ":" + winner
	if s.TieBreakGuard == key {
		return "", false
	}
	s.TieBreakGuard = key
	return winner, true
}
