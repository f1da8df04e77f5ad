package session

import (
	"testing"

	"ai-command-arbiter/pkg/arbiter/candidate"
	"ai-command-arbiter/pkg/arbiter/continuity"
	"ai-command-arbiter/pkg/arbiter/focus"
	"ai-command-arbiter/pkg/arbiter/replay"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	s := New("user-1", Config{})
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, continuity.DefaultSize, s.Continuity.Size)
	assert.Equal(t, focus.StateUnset, s.Focus.State)
	assert.Equal(t, focus.DefaultPendingTTLTurns, s.Focus.PendingTTLTurns)
}

func TestTurnsAndPending(t *testing.T) {
	s := New("user-1", Config{RingSize: 3})
	assert.Equal(t, 1, s.NextTurn())
	assert.Equal(t, 2, s.NextTurn())

	s.PendingTypo = &replay.Pending{OriginalInput: "second", CreatedAtTurn: 2}
	p := s.TakePending()
	require.NotNil(t, p)
	assert.Equal(t, "second", p.OriginalInput)
	assert.Nil(t, s.PendingTypo)
	assert.Nil(t, s.TakePending())
}

func TestBoundary(t *testing.T) {
	s := New("user-1", Config{})
	s.NextTurn()
	s.Continuity.Reject("2")
	s.Continuity.OnResolved(continuity.Action{CandidateID: "1", Scope: candidate.ChatScope(), Turn: 1}, "fp")
	s.Focus.Anchor(candidate.WidgetScope("w1"), 1)
	s.PendingTypo = &replay.Pending{OriginalInput: "x"}
	s.Memo.Record("fp", "links", 1)

	s.Boundary()

	assert.Equal(t, 1, s.TurnCount, "turn counter is monotonic")
	assert.Equal(t, 1, s.Epoch)
	assert.Nil(t, s.PendingTypo)
	assert.Nil(t, s.Continuity.LastResolvedAction)
	assert.Empty(t, s.Continuity.RecentRejected.Values())
	assert.Equal(t, focus.StateUnset, s.Focus.State)
	assert.Empty(t, s.Memo.Fingerprint)
}

func TestViewIsACopy(t *testing.T) {
	s := New("user-1", Config{})
	s.Continuity.OnResolved(continuity.Action{CandidateID: "1", Label: "Links Panel D", Scope: candidate.ChatScope(), Turn: 1}, "fp")
	s.PendingTypo = &replay.Pending{SuggestedScopes: []candidate.ScopeKind{candidate.ScopeWidget}}

	v := s.View()
	before := s.View()

	v.Continuity.RecentAccepted.IDs[0] = "mutated"
	v.Continuity.LastResolvedAction.Label = "mutated"
	v.PendingReplay.SuggestedScopes[0] = candidate.ScopeChat

	if diff := cmp.Diff(before, s.View()); diff != "" {
		t.Fatalf("view mutation leaked into session (-before +after):\n%s", diff)
	}
}
