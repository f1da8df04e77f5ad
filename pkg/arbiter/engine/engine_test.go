package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-command-arbiter/internal/pkg/logger"
	"ai-command-arbiter/pkg/arbiter/arbiterr"
	"ai-command-arbiter/pkg/arbiter/arbitration"
	"ai-command-arbiter/pkg/arbiter/candidate"
	"ai-command-arbiter/pkg/arbiter/clarifier"
	"ai-command-arbiter/pkg/arbiter/focus"
	"ai-command-arbiter/pkg/arbiter/gate"
	"ai-command-arbiter/pkg/arbiter/replay"
	"ai-command-arbiter/pkg/arbiter/scope"
	"ai-command-arbiter/pkg/arbiter/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeHost struct {
	mu       sync.Mutex
	snap     candidate.Snapshot
	pools    map[string][]candidate.Candidate
	executed []string
	fetched  []candidate.Scope
	execErr  error
	opened   candidate.Scope
	snapErr  error
}

func (h *fakeHost) GetCandidatePool(_ context.Context, s candidate.Scope) ([]candidate.Candidate, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fetched = append(h.fetched, s)
	return h.pools[s.String()], nil
}

func (h *fakeHost) GetActiveSnapshot(context.Context) (candidate.Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap, h.snapErr
}

func (h *fakeHost) ExecuteCandidate(_ context.Context, c candidate.Candidate, _ candidate.Scope) (ExecResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.execErr != nil {
		return ExecResult{}, h.execErr
	}
	h.executed = append(h.executed, c.ID)
	return ExecResult{OpenedScope: h.opened}, nil
}

func (h *fakeHost) lastFetched() candidate.Scope {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fetched[len(h.fetched)-1]
}

// scripted replays canned model answers in order and counts calls.
type scripted struct {
	responses []arbitration.Response
	calls     atomic.Int32
}

func (s *scripted) Call(_ context.Context, _ arbitration.Request) (arbitration.Response, error) {
	n := int(s.calls.Add(1))
	if n > len(s.responses) {
		return arbitration.Response{Decision: arbitration.DecisionNeedMoreInfo}, nil
	}
	return s.responses[n-1], nil
}

type recordedTelemetry struct {
	mu    sync.Mutex
	names []string
}

func (r *recordedTelemetry) Emit(_ context.Context, name string, _ map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
}

func linksCandidates() []candidate.Candidate {
	return []candidate.Candidate{
		{ID: "1", Label: "Links Panel D", Kind: candidate.KindChatOption},
		{ID: "2", Label: "Links Panel E", Kind: candidate.KindChatOption},
		{ID: "3", Label: "Links Panels", Kind: candidate.KindChatOption},
	}
}

func newHost() *fakeHost {
	return &fakeHost{
		pools: map[string][]candidate.Candidate{"chat": linksCandidates()},
	}
}

func newEngine(host Host, boundary arbitration.Boundary, mutate ...func(*Config)) (*Engine, *session.Session) {
	cfg := DefaultConfig()
	cfg.LLMTimeout = time.Second
	for _, m := range mutate {
		m(&cfg)
	}
	e := New(host, boundary, nil, cfg, logger.NewNopLogger())
	return e, session.New("user-1", cfg.SessionConfig())
}

func resolve(t *testing.T, e *Engine, sess *session.Session, utterance string) Result {
	t.Helper()
	res, err := e.ResolveTurn(context.Background(), sess, utterance)
	require.NoError(t, err)
	return res
}

func TestExactLabelExecutesWithoutModel(t *testing.T) {
	host := newHost()
	b := &scripted{}
	e, sess := newEngine(host, b)

	res := resolve(t, e, sess, "Links Panel D")

	assert.Equal(t, ActionExecute, res.Action)
	assert.Equal(t, "1", res.CandidateID)
	assert.Equal(t, gate.ConfidenceHigh, res.Confidence)
	assert.Equal(t, string(gate.ReasonExactLabel), res.Reason)
	assert.Equal(t, int32(0), b.calls.Load())
	assert.Equal(t, []string{"1"}, host.executed)
	require.NotNil(t, sess.Continuity.LastResolvedAction)
	assert.Equal(t, "1", sess.Continuity.LastResolvedAction.CandidateID)
}

func TestVerbosePhrasingGoesThroughModel(t *testing.T) {
	t.Run("select passes the post-check", func(t *testing.T) {
		host := newHost()
		b := &scripted{responses: []arbitration.Response{{Decision: arbitration.DecisionSelect, CandidateID: "1", Confidence: 0.9}}}
		e, sess := newEngine(host, b)

		res := resolve(t, e, sess, "pls show the Links Panel D thank you")
		assert.Equal(t, ActionExecute, res.Action)
		assert.Equal(t, "1", res.CandidateID)
		assert.Equal(t, ReasonArbitrationSelect, res.Reason)
		assert.Equal(t, 1, res.LLMCalls)
	})

	t.Run("abstain ends in a clarifier", func(t *testing.T) {
		host := newHost()
		b := &scripted{responses: []arbitration.Response{{Decision: arbitration.DecisionNeedMoreInfo}}}
		e, sess := newEngine(host, b)

		res := resolve(t, e, sess, "pls show the Links Panel D thank you")
		assert.Equal(t, ActionClarify, res.Action)
		assert.Equal(t, arbiterr.KindLLMAbstain, res.ErrorKind)
		require.NotNil(t, res.Clarifier)
		assert.Equal(t, "1", res.Clarifier.Options[0].CandidateID, "soft match is listed first")
		assert.Empty(t, host.executed)
	})

	t.Run("strict mode never executes a model pick", func(t *testing.T) {
		host := newHost()
		b := &scripted{responses: []arbitration.Response{{Decision: arbitration.DecisionSelect, CandidateID: "1", Confidence: 0.9}}}
		e, sess := newEngine(host, b, func(c *Config) { c.Mode = gate.ModeStrict })

		res := resolve(t, e, sess, "pls show the Links Panel D thank you")
		assert.Equal(t, ActionClarify, res.Action)
		assert.Equal(t, arbiterr.KindSelectRejected, res.ErrorKind)
		assert.Equal(t, "1", res.Clarifier.SuggestedID)
		assert.True(t, res.Clarifier.Options[0].Suggested)

		confirmed := resolve(t, e, sess, "yes")
		assert.Equal(t, ActionExecute, confirmed.Action)
		assert.Equal(t, "1", confirmed.CandidateID)
		assert.Equal(t, ReasonConfirmedSuggestion, confirmed.Reason)
		assert.Equal(t, int32(1), b.calls.Load())
	})
}

func TestTieBreakAfterRejections(t *testing.T) {
	host := newHost()
	b := &scripted{}
	e, sess := newEngine(host, b)

	pool := candidate.NewPool(candidate.ChatScope(), linksCandidates())
	sess.Continuity.OnClarifier(candidate.Fingerprint(pool), pool.Source, pool.IDs(), string(clarifier.TypeCandidateChoice), "")
	sess.Continuity.Reject("2")
	sess.Continuity.Reject("3")

	res := resolve(t, e, sess, "whichever remains")

	assert.Equal(t, ActionExecute, res.Action)
	assert.Equal(t, "1", res.CandidateID)
	assert.Equal(t, ReasonTieBreak, res.Reason)
	assert.Equal(t, scope.SourceClarifier, res.Binding)
	assert.Equal(t, int32(0), b.calls.Load())
}

func TestScopeTypoThenReplay(t *testing.T) {
	host := newHost()
	host.snap = candidate.Snapshot{ActiveWidgetID: "w1"}
	host.pools["widget:w1"] = []candidate.Candidate{
		{ID: "wd", Label: "Links Panel D", Kind: candidate.KindWidgetItem},
		{ID: "wx", Label: "Budget", Kind: candidate.KindWidgetItem},
	}
	tel := &recordedTelemetry{}
	cfg := DefaultConfig()
	e := New(host, &scripted{}, tel, cfg, logger.NewNopLogger())
	sess := session.New("user-1", cfg.SessionConfig())

	first := resolve(t, e, sess, "links panel d from active widgetss")
	assert.Equal(t, ActionClarify, first.Action)
	assert.Equal(t, ReasonScopeTypo, first.Reason)
	assert.Equal(t, clarifier.TypeScopeTypo, first.Clarifier.Type)
	require.NotNil(t, sess.PendingTypo)
	assert.Equal(t, "links panel d", sess.PendingTypo.OriginalInput)
	assert.Equal(t, first.Clarifier.ID, sess.PendingTypo.ClarifierMessageID)
	assert.Empty(t, host.executed)

	second := resolve(t, e, sess, "yes from active widget")
	assert.Equal(t, ActionExecute, second.Action)
	assert.True(t, second.Replayed)
	assert.Equal(t, "wd", second.CandidateID)
	assert.Equal(t, candidate.WidgetScope("w1"), second.Scope)
	assert.Nil(t, sess.PendingTypo)

	third := resolve(t, e, sess, "yes from active widget")
	assert.False(t, third.Replayed, "replay fires exactly once")

	assert.Contains(t, tel.names, "scope_typo_clarifier")
	assert.Contains(t, tel.names, "replay_resolved")
	assert.Contains(t, tel.names, "turn_resolved")
}

func TestScopeTypoExpiresAfterOneTurn(t *testing.T) {
	host := newHost()
	host.snap = candidate.Snapshot{ActiveWidgetID: "w1"}
	e, sess := newEngine(host, &scripted{})

	resolve(t, e, sess, "links panel d from active widgetss")
	require.NotNil(t, sess.PendingTypo)

	host.snap = candidate.Snapshot{ActiveWidgetID: "w2"}
	res := resolve(t, e, sess, "yes from active widget")

	assert.False(t, res.Replayed)
	assert.Nil(t, sess.PendingTypo, "every exit clears the pending entry")
}

func TestScopeTypoAnswersThatDoNotReplay(t *testing.T) {
	t.Run("bare yes is routed as an ordinary turn", func(t *testing.T) {
		host := newHost()
		host.snap = candidate.Snapshot{ActiveWidgetID: "w1"}
		host.pools["widget:w1"] = []candidate.Candidate{{ID: "a1", Label: "Links Panel D", Kind: candidate.KindWidgetItem}}
		e, sess := newEngine(host, &scripted{})

		first := resolve(t, e, sess, "Links Panel D from active widgetss")
		require.Equal(t, ReasonScopeTypo, first.Reason)

		res := resolve(t, e, sess, "yes")
		assert.NotEqual(t, ActionExecute, res.Action)
		assert.False(t, res.Replayed)
		assert.Empty(t, host.executed)
		assert.Nil(t, sess.PendingTypo)
	})

	t.Run("affirmed new command runs as typed", func(t *testing.T) {
		host := newHost()
		host.snap = candidate.Snapshot{ActiveWidgetID: "w1"}
		host.pools["widget:w1"] = []candidate.Candidate{{ID: "a1", Label: "Stuff", Kind: candidate.KindWidgetItem}}
		e, sess := newEngine(host, &scripted{})

		resolve(t, e, sess, "open stuff from active widgetss")
		res := resolve(t, e, sess, "ok Links Panel D")

		assert.Equal(t, ActionExecute, res.Action)
		assert.Equal(t, "1", res.CandidateID)
		assert.False(t, res.Replayed)
		assert.Nil(t, sess.PendingTypo)
	})

	t.Run("pool drift makes the pending entry stale", func(t *testing.T) {
		host := newHost()
		host.snap = candidate.Snapshot{ActiveWidgetID: "w1"}
		host.pools["widget:w1"] = []candidate.Candidate{{ID: "a1", Label: "Links Panel D", Kind: candidate.KindWidgetItem}}
		e, sess := newEngine(host, &scripted{})

		resolve(t, e, sess, "links panel d from active widgetss")
		require.NotNil(t, sess.PendingTypo)

		host.mu.Lock()
		host.pools["widget:w1"] = []candidate.Candidate{{ID: "z9", Label: "Links Panel D", Kind: candidate.KindWidgetItem}}
		host.mu.Unlock()

		res := resolve(t, e, sess, "yes from active widget")
		assert.False(t, res.Replayed)
		assert.NotContains(t, host.executed, "z9")
		assert.Nil(t, sess.PendingTypo)
	})
}

func TestNestedReplayIsRejected(t *testing.T) {
	host := newHost()
	e, sess := newEngine(host, &scripted{})
	tr := &turn{sess: sess, n: sess.NextTurn()}

	res := e.route(context.Background(), tr, "links panel d from chat", replay.MaxDepth+1)

	assert.Equal(t, ActionClarify, res.Action)
	assert.Equal(t, ReasonReplayDepth, res.Reason)
	assert.Equal(t, arbiterr.KindReplayDepth, res.ErrorKind)
	assert.Equal(t, clarifier.TypeScopeOnly, res.Clarifier.Type)
	assert.Empty(t, host.executed)
	assert.Nil(t, sess.PendingTypo)
}

func TestScopeOnlyFollowUpDoesNotSavePending(t *testing.T) {
	host := newHost()
	host.snap = candidate.Snapshot{ActiveWidgetID: "w1"}
	e, sess := newEngine(host, &scripted{})

	resolve(t, e, sess, "links panel d from active widgetss")
	res := resolve(t, e, sess, "yes from active wdget")

	assert.Equal(t, ActionClarify, res.Action)
	assert.Equal(t, clarifier.TypeScopeOnly, res.Clarifier.Type)
	assert.Nil(t, sess.PendingTypo)
}

func TestArbitrationNeverRepeatsOverSameEvidence(t *testing.T) {
	host := newHost()
	b := &scripted{responses: []arbitration.Response{
		{Decision: arbitration.DecisionRequestContext, EvidenceType: arbitration.EvidenceItemList},
	}}
	e, sess := newEngine(host, b)

	first := resolve(t, e, sess, "links")
	assert.Equal(t, ActionClarify, first.Action)
	assert.Equal(t, arbiterr.KindNoNewEvidence, first.ErrorKind)
	assert.Equal(t, 1, first.LLMCalls)

	second := resolve(t, e, sess, "links")
	assert.Equal(t, ActionClarify, second.Action)
	assert.Equal(t, arbiterr.KindNoNewEvidence, second.ErrorKind)
	assert.Equal(t, 0, second.LLMCalls)
	assert.Equal(t, int32(1), b.calls.Load())
}

func TestFocusFollowsNewlyOpenedWidget(t *testing.T) {
	host := newHost()
	host.snap = candidate.Snapshot{ActiveWidgetID: "A", OpenWidgetIDs: []string{"A"}}
	host.pools["chat"] = append(host.pools["chat"], candidate.Candidate{
		ID: "open-b", Label: "Widget B", Kind: candidate.KindWidget, Ref: candidate.EntityRef{EntityID: "B"},
	})
	host.pools["widget:A"] = []candidate.Candidate{{ID: "a1", Label: "Alpha", Kind: candidate.KindWidgetItem}}
	host.pools["widget:B"] = []candidate.Candidate{
		{ID: "b1", Label: "Budget", Kind: candidate.KindWidgetItem},
		{ID: "b2", Label: "Backlog", Kind: candidate.KindWidgetItem},
	}
	e, sess := newEngine(host, &scripted{})

	require.NoError(t, e.OnScopeOpened(context.Background(), sess, candidate.WidgetScope("A")))
	assert.Equal(t, focus.StatePending, sess.Focus.State)

	opened := resolve(t, e, sess, "Widget B from chat")
	require.Equal(t, ActionExecute, opened.Action)
	assert.Equal(t, focus.StatePending, sess.Focus.State)
	assert.Equal(t, candidate.WidgetScope("B"), sess.Focus.Target)

	// the UI has not caught up yet; the ambiguous command still goes to B
	next := resolve(t, e, sess, "the items")
	assert.Equal(t, candidate.WidgetScope("B"), next.Scope)
	assert.Equal(t, scope.SourceLatch, next.Binding)
	assert.Equal(t, candidate.WidgetScope("B"), host.lastFetched())

	host.snap = candidate.Snapshot{ActiveWidgetID: "B", OpenWidgetIDs: []string{"A", "B"}}
	resolve(t, e, sess, "the items")
	assert.Equal(t, focus.StateResolved, sess.Focus.State)
}

func TestFocusReleasedWhenUserActsElsewhere(t *testing.T) {
	host := newHost()
	host.snap = candidate.Snapshot{ActiveWidgetID: "A", OpenWidgetIDs: []string{"A"}}
	host.pools["widget:A"] = []candidate.Candidate{{ID: "a1", Label: "Alpha", Kind: candidate.KindWidgetItem}}
	e, sess := newEngine(host, &scripted{})
	require.NoError(t, e.OnScopeOpened(context.Background(), sess, candidate.WidgetScope("A")))

	inside := resolve(t, e, sess, "alpha")
	require.Equal(t, ActionExecute, inside.Action)
	assert.Equal(t, focus.StateResolved, sess.Focus.State, "a pick inside the focused widget keeps focus")

	res := resolve(t, e, sess, "Links Panel D from chat")
	require.Equal(t, ActionExecute, res.Action)
	assert.Equal(t, focus.StateUnset, sess.Focus.State)
	assert.True(t, sess.Focus.Scope().IsZero())
}

func TestFocusExpiresToSnapshot(t *testing.T) {
	host := newHost()
	host.snap = candidate.Snapshot{ActiveWidgetID: "A"}
	host.pools["widget:A"] = []candidate.Candidate{{ID: "a1", Label: "Alpha", Kind: candidate.KindWidgetItem}}
	e, sess := newEngine(host, &scripted{})

	sess.NextTurn()
	require.NoError(t, e.OnScopeOpened(context.Background(), sess, candidate.WidgetScope("ghost")))

	resolve(t, e, sess, "alpha")
	resolve(t, e, sess, "alpha")
	res := resolve(t, e, sess, "alpha")

	assert.Equal(t, focus.StateExpired, sess.Focus.State)
	assert.Equal(t, scope.SourceSnapshot, res.Binding)
	assert.Equal(t, ActionExecute, res.Action)
	assert.Equal(t, "a1", res.CandidateID)
}

func TestEveryOpeningPathReanchors(t *testing.T) {
	tests := []struct {
		name   string
		cand   candidate.Candidate
		opened candidate.Scope
		want   candidate.Scope
	}{
		{
			name: "widget",
			cand: candidate.Candidate{ID: "x", Label: "Open It", Kind: candidate.KindWidget, Ref: candidate.EntityRef{EntityID: "w9"}},
			want: candidate.WidgetScope("w9"),
		},
		{
			name: "panel",
			cand: candidate.Candidate{ID: "x", Label: "Open It", Kind: candidate.KindPanel, Ref: candidate.EntityRef{EntityID: "p4"}},
			want: candidate.WidgetScope("p4"),
		},
		{
			name: "dashboard view",
			cand: candidate.Candidate{ID: "x", Label: "Open It", Kind: candidate.KindDashboardView, Ref: candidate.EntityRef{EntityID: "d2"}},
			want: candidate.DashboardScope("d2"),
		},
		{
			name:   "host reports what it opened",
			cand:   candidate.Candidate{ID: "x", Label: "Open It", Kind: candidate.KindChatOption},
			opened: candidate.WorkspaceScope("ws"),
			want:   candidate.WorkspaceScope("ws"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := &fakeHost{pools: map[string][]candidate.Candidate{"chat": {tt.cand}}, opened: tt.opened}
			e, sess := newEngine(host, &scripted{})
			sess.Focus.Anchor(candidate.WidgetScope("old"), 0)
			sess.Focus.State = focus.StateResolved

			res := resolve(t, e, sess, "open it from chat")
			require.Equal(t, ActionExecute, res.Action)
			assert.Equal(t, focus.StatePending, sess.Focus.State)
			assert.Equal(t, tt.want, sess.Focus.Target)
			assert.Equal(t, res.Turn, sess.Focus.CreatedAtTurn)
		})
	}

	t.Run("selection inside a scope does not re-anchor", func(t *testing.T) {
		host := newHost()
		e, sess := newEngine(host, &scripted{})
		res := resolve(t, e, sess, "Links Panel D")
		require.Equal(t, ActionExecute, res.Action)
		assert.Equal(t, focus.StateUnset, sess.Focus.State)
	})

	t.Run("host callback outranks an unanswered clarifier", func(t *testing.T) {
		host := newHost()
		host.snap = candidate.Snapshot{ActiveWidgetID: "A", OpenWidgetIDs: []string{"A"}}
		host.pools["widget:A"] = []candidate.Candidate{
			{ID: "a1", Label: "Alpha One", Kind: candidate.KindWidgetItem},
			{ID: "a2", Label: "Alpha Two", Kind: candidate.KindWidgetItem},
		}
		host.pools["widget:B"] = []candidate.Candidate{
			{ID: "b1", Label: "Budget", Kind: candidate.KindWidgetItem},
			{ID: "b2", Label: "Backlog", Kind: candidate.KindWidgetItem},
		}
		e, sess := newEngine(host, &scripted{})
		require.NoError(t, e.OnScopeOpened(context.Background(), sess, candidate.WidgetScope("A")))

		first := resolve(t, e, sess, "alpha")
		require.Equal(t, ActionClarify, first.Action)
		require.Equal(t, candidate.WidgetScope("A"), first.Scope)

		require.NoError(t, e.OnScopeOpened(context.Background(), sess, candidate.WidgetScope("B")))
		assert.False(t, sess.Continuity.ClarifierPending())

		res := resolve(t, e, sess, "the b one")
		assert.Equal(t, candidate.WidgetScope("B"), res.Scope)
		assert.Equal(t, scope.SourceLatch, res.Binding)
		assert.Equal(t, candidate.WidgetScope("B"), host.lastFetched())
	})

	t.Run("host callback", func(t *testing.T) {
		e, sess := newEngine(newHost(), &scripted{})
		require.NoError(t, e.OnScopeOpened(context.Background(), sess, candidate.DashboardScope("d1")))
		assert.Equal(t, focus.StatePending, sess.Focus.State)
		assert.Equal(t, candidate.DashboardScope("d1"), sess.Focus.Target)
		assert.Error(t, e.OnScopeOpened(context.Background(), sess, candidate.Scope{Kind: "nowhere"}))
	})
}

func TestClarifierUsesEnrichedPool(t *testing.T) {
	host := newHost()
	b := &scripted{responses: []arbitration.Response{
		{Decision: arbitration.DecisionRequestContext, EvidenceType: arbitration.EvidenceRecent},
		{Decision: arbitration.DecisionNeedMoreInfo},
	}}
	e, sess := newEngine(host, b)

	resolve(t, e, sess, "Links Panel D")
	res := resolve(t, e, sess, "links")

	require.Equal(t, ActionClarify, res.Action)
	assert.Equal(t, 2, res.LLMCalls)

	sublabels := map[string]string{}
	for _, o := range res.Clarifier.Options {
		sublabels[o.CandidateID] = o.Sublabel
	}
	assert.Equal(t, "(recently used)", sublabels["1"])
	assert.Empty(t, sublabels["2"])

	pool := candidate.NewPool(candidate.ChatScope(), linksCandidates())
	assert.Equal(t, candidate.Fingerprint(pool), res.Clarifier.OptionSetID)
}

func TestNegationFeedsTieBreak(t *testing.T) {
	host := newHost()
	b := &scripted{}
	e, sess := newEngine(host, b)

	resolve(t, e, sess, "Links Panel D")

	no := resolve(t, e, sess, "no, not that one")
	assert.Equal(t, ActionClarify, no.Action)
	assert.Equal(t, ReasonNegation, no.Reason)
	assert.Equal(t, []string{"2", "3"}, no.Clarifier.OptionIDs())
	assert.True(t, sess.Continuity.RecentRejected.Contains("1"))

	res := resolve(t, e, sess, "not Links Panel E")
	assert.Equal(t, ActionExecute, res.Action)
	assert.Equal(t, "3", res.CandidateID)
	assert.Equal(t, ReasonTieBreak, res.Reason)
	assert.Equal(t, int32(0), b.calls.Load())
}

func TestClarifierPaths(t *testing.T) {
	t.Run("empty widget pool never borrows from chat", func(t *testing.T) {
		host := newHost()
		host.snap = candidate.Snapshot{ActiveWidgetID: "w1"}
		e, sess := newEngine(host, &scripted{})

		res := resolve(t, e, sess, "first from active widget")
		assert.Equal(t, ActionClarify, res.Action)
		assert.Equal(t, clarifier.TypePoolEmpty, res.Clarifier.Type)
		assert.Equal(t, arbiterr.KindPoolEmpty, res.ErrorKind)
		assert.Empty(t, res.Clarifier.Options)
		assert.Equal(t, candidate.WidgetScope("w1"), res.Scope)
	})

	t.Run("conflicting scopes", func(t *testing.T) {
		e, sess := newEngine(newHost(), &scripted{})
		res := resolve(t, e, sess, "links from chat and from widget")
		assert.Equal(t, clarifier.TypeScopeConflict, res.Clarifier.Type)
		assert.Equal(t, ReasonScopeConflict, res.Reason)
	})

	t.Run("bare scope cue lists that scope", func(t *testing.T) {
		host := newHost()
		host.snap = candidate.Snapshot{ActiveWidgetID: "w1"}
		host.pools["widget:w1"] = []candidate.Candidate{{ID: "a", Label: "Alpha"}, {ID: "b", Label: "Beta"}}
		e, sess := newEngine(host, &scripted{})

		res := resolve(t, e, sess, "from active widget")
		assert.Equal(t, ReasonEmptyCommand, res.Reason)
		assert.Equal(t, "What would you like from the active widget?", res.Clarifier.Prompt)
		assert.Equal(t, []string{"a", "b"}, res.Clarifier.OptionIDs())
	})

	t.Run("second option after a clarifier", func(t *testing.T) {
		b := &scripted{responses: []arbitration.Response{{Decision: arbitration.DecisionSelect, CandidateID: "3", Confidence: 0.9}}}
		e, sess := newEngine(newHost(), b)

		first := resolve(t, e, sess, "links")
		require.Equal(t, ActionClarify, first.Action)
		shown := first.Clarifier.OptionIDs()

		res := resolve(t, e, sess, "the second one")
		assert.Equal(t, ActionExecute, res.Action)
		assert.Equal(t, shown[1], res.CandidateID)
	})
}

func TestExecutionFailures(t *testing.T) {
	t.Run("host error", func(t *testing.T) {
		host := newHost()
		host.execErr = errors.New("panel is locked")
		e, sess := newEngine(host, &scripted{})

		res := resolve(t, e, sess, "Links Panel D")
		assert.Equal(t, ActionClarify, res.Action)
		assert.Equal(t, arbiterr.KindExecutionFailed, res.ErrorKind)
		assert.Equal(t, ReasonExecutionFailed, res.Reason)
		assert.Nil(t, sess.Continuity.LastResolvedAction)
	})

	t.Run("unknown kind is never executed", func(t *testing.T) {
		host := &fakeHost{pools: map[string][]candidate.Candidate{
			"chat": {{ID: "m", Label: "Mystery", Kind: candidate.Kind("mystery")}},
		}}
		e, sess := newEngine(host, &scripted{})

		res := resolve(t, e, sess, "Mystery")
		assert.Equal(t, arbiterr.KindExecutionFailed, res.ErrorKind)
		assert.Empty(t, host.executed)
	})

	t.Run("snapshot failure is returned", func(t *testing.T) {
		host := newHost()
		host.snapErr = errors.New("ui gone")
		e, sess := newEngine(host, &scripted{})

		_, err := e.ResolveTurn(context.Background(), sess, "Links Panel D")
		assert.Error(t, err)
	})
}

// blockingBoundary waits for cancellation.
type blockingBoundary struct {
	started chan struct{}
}

func (b *blockingBoundary) Call(ctx context.Context, _ arbitration.Request) (arbitration.Response, error) {
	close(b.started)
	<-ctx.Done()
	return arbitration.Response{}, ctx.Err()
}

func TestSessionBoundaryDiscardsInFlightTurn(t *testing.T) {
	host := newHost()
	b := &blockingBoundary{started: make(chan struct{})}
	e, sess := newEngine(host, b, func(c *Config) { c.LLMTimeout = 5 * time.Second })

	done := make(chan Result, 1)
	go func() {
		res, _ := e.ResolveTurn(context.Background(), sess, "links")
		done <- res
	}()

	<-b.started
	assert.True(t, e.CancelInFlight(sess.ID))

	res := <-done
	assert.Equal(t, ActionDiscard, res.Action)
	assert.Equal(t, arbiterr.KindStaleResponse, res.ErrorKind)
	assert.Empty(t, sess.Continuity.ActiveOptionSetID, "a discarded turn records nothing")

	e.OnSessionBoundary(context.Background(), sess)
	assert.Equal(t, 1, sess.Epoch)
	assert.False(t, e.CancelInFlight(sess.ID))
}

func TestResolveTurnIsDeterministicAndSafe(t *testing.T) {
	utterances := []string{
		"Links Panel D",
		"links panel e please",
		"the second one",
		"links",
		"open links panels",
		"what is links panel d?",
		"from chat",
		"xyzzy",
		"last",
	}
	pool := candidate.NewPool(candidate.ChatScope(), linksCandidates())

	for _, u := range utterances {
		t.Run(u, func(t *testing.T) {
			run := func() Result {
				e, sess := newEngine(newHost(), &scripted{responses: []arbitration.Response{
					{Decision: arbitration.DecisionSelect, CandidateID: "2", Confidence: 0.95},
				}})
				return resolve(t, e, sess, u)
			}
			a, b := run(), run()

			assert.Equal(t, a.Action, b.Action)
			assert.Equal(t, a.CandidateID, b.CandidateID)
			assert.Equal(t, a.Reason, b.Reason)
			assert.Equal(t, a.Confidence, b.Confidence)

			if a.Action == ActionExecute {
				assert.Equal(t, gate.ConfidenceHigh, a.Confidence)
				assert.True(t, pool.Contains(a.CandidateID))
			} else {
				assert.NotEqual(t, gate.ConfidenceHigh, a.Confidence)
			}
		})
	}
}
