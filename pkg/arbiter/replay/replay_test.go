package replay

import (
	"testing"

	"ai-command-arbiter/pkg/arbiter/arbiterr"
	"ai-command-arbiter/pkg/arbiter/candidate"
	"ai-command-arbiter/pkg/arbiter/scope"

	"github.com/stretchr/testify/assert"
)

func pending() Pending {
	return Pending{
		OriginalInput:       "links panel d",
		SuggestedScopes:     []candidate.ScopeKind{candidate.ScopeWidget},
		DetectedScope:       candidate.ScopeWidget,
		DetectedToken:       "widgetss",
		CreatedAtTurn:       3,
		SnapshotFingerprint: "fp",
		ClarifierMessageID:  "msg-1",
	}
}

func TestResolve(t *testing.T) {
	r := NewResolver(scope.NewResolver(scope.DefaultConfig()), DefaultTTLTurns)

	tests := []struct {
		name        string
		utterance   string
		turn        int
		fingerprint string
		want        Outcome
	}{
		{
			name:        "affirmation with corrected scope replays",
			utterance:   "yes from active widget",
			turn:        4,
			fingerprint: "fp",
			want:        Outcome{Verdict: VerdictReplay, Command: "links panel d from active widget", Scope: candidate.ScopeWidget},
		},
		{
			name:        "bare yes is routed normally",
			utterance:   "yes",
			turn:        4,
			fingerprint: "fp",
			want:        Outcome{Verdict: VerdictPassThrough},
		},
		{
			name:        "one edit trigger correction",
			utterance:   "rom chat",
			turn:        4,
			fingerprint: "fp",
			want:        Outcome{Verdict: VerdictReplay, Command: "links panel d from chat", Scope: candidate.ScopeChat},
		},
		{
			name:        "bare scope phrase",
			utterance:   "the active widget",
			turn:        4,
			fingerprint: "fp",
			want:        Outcome{Verdict: VerdictReplay, Command: "links panel d from active widget", Scope: candidate.ScopeWidget},
		},
		{
			name:        "still misspelled asks scope only",
			utterance:   "yes from active wdget",
			turn:        4,
			fingerprint: "fp",
			want:        Outcome{Verdict: VerdictScopeOnly, SuggestedScopes: []candidate.ScopeKind{candidate.ScopeWidget}, ErrorKind: arbiterr.KindScopeAmbiguous},
		},
		{
			name:        "conflicting answer asks scope only",
			utterance:   "from chat and from widget",
			turn:        4,
			fingerprint: "fp",
			want:        Outcome{Verdict: VerdictScopeOnly, SuggestedScopes: []candidate.ScopeKind{candidate.ScopeChat, candidate.ScopeWidget}, ErrorKind: arbiterr.KindScopeAmbiguous},
		},
		{
			name:        "turn delta expired",
			utterance:   "yes from active widget",
			turn:        5,
			fingerprint: "fp",
			want:        Outcome{Verdict: VerdictStale, ErrorKind: arbiterr.KindStaleReplay},
		},
		{
			name:        "snapshot drift",
			utterance:   "yes from active widget",
			turn:        4,
			fingerprint: "other",
			want:        Outcome{Verdict: VerdictStale, ErrorKind: arbiterr.KindStaleReplay},
		},
		{
			name:        "new command passes through",
			utterance:   "open recent notes from chat",
			turn:        4,
			fingerprint: "fp",
			want:        Outcome{Verdict: VerdictPassThrough},
		},
		{
			name:        "affirmed new command passes through",
			utterance:   "ok Links Panel D",
			turn:        4,
			fingerprint: "fp",
			want:        Outcome{Verdict: VerdictPassThrough},
		},
		{
			name:        "unrelated text passes through",
			utterance:   "show me the weather",
			turn:        4,
			fingerprint: "fp",
			want:        Outcome{Verdict: VerdictPassThrough},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(pending(), tt.utterance, tt.turn, tt.fingerprint)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveKeepsNamedHint(t *testing.T) {
	r := NewResolver(scope.NewResolver(scope.DefaultConfig()), 0)
	p := pending()
	p.NamedHint = "links"

	got := r.Resolve(p, "yes the widget", 4, "fp")
	assert.Equal(t, VerdictReplay, got.Verdict)
	assert.Equal(t, "links panel d from links widget", got.Command)
}

func TestCheckDepth(t *testing.T) {
	assert.NoError(t, CheckDepth(0))
	assert.NoError(t, CheckDepth(MaxDepth))

	err := CheckDepth(MaxDepth + 1)
	assert.ErrorIs(t, err, arbiterr.ErrReplayDepth)
	assert.Equal(t, arbiterr.KindReplayDepth, arbiterr.KindOf(err))
}

func TestCommand(t *testing.T) {
	assert.Equal(t, "from dashboard", Command("", candidate.ScopeDashboard, ""))
	assert.Equal(t, "second from chat", Command("second", candidate.ScopeChat, "links"))
}
