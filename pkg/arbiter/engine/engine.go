// Package engine wires the arbitration components into ResolveTurn. It is the
// single writer of session state and the single place where a candidate is
// executed.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"ai-command-arbiter/internal/pkg/logger"
	"ai-command-arbiter/pkg/arbiter/arbiterr"
	"ai-command-arbiter/pkg/arbiter/arbitration"
	"ai-command-arbiter/pkg/arbiter/candidate"
	"ai-command-arbiter/pkg/arbiter/clarifier"
	"ai-command-arbiter/pkg/arbiter/continuity"
	"ai-command-arbiter/pkg/arbiter/focus"
	"ai-command-arbiter/pkg/arbiter/gate"
	"ai-command-arbiter/pkg/arbiter/normalize"
	"ai-command-arbiter/pkg/arbiter/replay"
	"ai-command-arbiter/pkg/arbiter/scope"
	"ai-command-arbiter/pkg/arbiter/session"
)

const module = "ENGINE"

type Action string

const (
	ActionExecute Action = "execute"
	ActionClarify Action = "clarify"
	// ActionDiscard means the turn was overtaken by a session boundary and
	// nothing was recorded.
	ActionDiscard Action = "discard"
)

// Reasons beyond the gate's own.
const (
	ReasonTieBreak            = "tie_break"
	ReasonConfirmedSuggestion = "confirmed_suggestion"
	ReasonArbitrationSelect   = "arbitration_select"
	ReasonArbitrationFallback = arbiterr.ReasonFallback
	ReasonNegation            = "negation"
	ReasonEmptyCommand        = "empty_command"
	ReasonScopeConflict       = "scope_conflict"
	ReasonScopeTypo           = "scope_typo"
	ReasonScopeOnly           = "scope_only"
	ReasonPoolEmpty           = "pool_empty"
	ReasonExecutionFailed     = "execution_failed"
	ReasonStaleResponse       = "stale_response"
	ReasonReplayDepth         = "replay_depth"
)

// Result is what the host receives for one turn.
type Result struct {
	Action      Action               `json:"action"`
	CandidateID string               `json:"candidate_id,omitempty"`
	Candidate   *candidate.Candidate `json:"candidate,omitempty"`
	Scope       candidate.Scope      `json:"scope"`
	Binding     scope.Source         `json:"binding,omitempty"`
	Confidence  gate.Confidence      `json:"confidence"`
	Reason      string               `json:"reason"`
	ErrorKind   arbiterr.Kind        `json:"error_kind,omitempty"`
	Clarifier   *clarifier.Message   `json:"clarifier,omitempty"`
	Replayed    bool                 `json:"replayed"`
	Turn        int                  `json:"turn"`
	LLMCalls    int                  `json:"llm_calls"`
}

type Engine struct {
	host      Host
	boundary  arbitration.Boundary
	telemetry Telemetry
	cfg       Config
	logger    logger.ILogger

	scopes     *scope.Resolver
	replays    *replay.Resolver
	clarifiers *clarifier.Builder
	pools      *candidate.Builder

	mu       sync.Mutex
	inflight map[string]*flight
}

type flight struct {
	cancel context.CancelFunc
	stale  atomic.Bool
}

// turn carries the per-turn inputs through the pipeline.
type turn struct {
	sess *session.Session
	snap candidate.Snapshot
	n    int
}

func New(host Host, boundary arbitration.Boundary, telemetry Telemetry, cfg Config, log logger.ILogger) *Engine {
	if telemetry == nil {
		telemetry = nopTelemetry{}
	}
	scopes := scope.NewResolver(cfg.Scope)
	return &Engine{
		host:       host,
		boundary:   boundary,
		telemetry:  telemetry,
		cfg:        cfg,
		logger:     log,
		scopes:     scopes,
		replays:    replay.NewResolver(scopes, cfg.ReplayTTLTurns),
		clarifiers: clarifier.NewBuilder(cfg.MaxClarifierOptions),
		pools:      candidate.NewBuilder(host, cfg.MaxPoolSize),
		inflight:   make(map[string]*flight),
	}
}

// ResolveTurn resolves one utterance. Callers must not run two turns for the
// same session concurrently. The only error is a failure to read the host
// snapshot; everything else ends in a Result.
func (e *Engine) ResolveTurn(ctx context.Context, sess *session.Session, utterance string) (Result, error) {
	n := sess.NextTurn()

	ctx, span := otel.Tracer("arbiter").Start(ctx, "arbiter.resolve_turn")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sess.ID), attribute.Int("turn", n))

	snap, err := e.host.GetActiveSnapshot(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error(module, "Failed to read active snapshot", map[string]interface{}{
			"session_id": sess.ID,
			"error":      err.Error(),
		})
		return Result{Turn: n}, fmt.Errorf("get active snapshot: %w", err)
	}

	t := &turn{sess: sess, snap: snap, n: n}
	e.observeFocus(ctx, t)

	var res Result
	if p := sess.TakePending(); p != nil {
		res = e.replayTurn(ctx, t, *p, utterance)
	} else {
		res = e.route(ctx, t, utterance, 0)
	}

	span.SetAttributes(
		attribute.String("action", string(res.Action)),
		attribute.String("reason", res.Reason),
		attribute.Bool("replayed", res.Replayed),
	)
	e.report(ctx, sess, utterance, res)
	return res, nil
}

// OnSessionBoundary cancels any in-flight model call for the session and
// clears its conversational state.
func (e *Engine) OnSessionBoundary(ctx context.Context, sess *session.Session) {
	cancelled := e.CancelInFlight(sess.ID)
	sess.Boundary()

	e.logger.Info(module, "Session boundary", map[string]interface{}{
		"session_id": sess.ID,
		"epoch":      sess.Epoch,
		"cancelled":  cancelled,
	})
	e.telemetry.Emit(ctx, "session_boundary", map[string]interface{}{
		"session_id": sess.ID,
		"epoch":      sess.Epoch,
		"cancelled":  cancelled,
	})
}

// OnScopeOpened re-anchors focus on a target the host opened on its own.
func (e *Engine) OnScopeOpened(ctx context.Context, sess *session.Session, target candidate.Scope) error {
	if !target.Kind.Valid() {
		return fmt.Errorf("scope opened: invalid scope %q", target.String())
	}
	e.anchor(ctx, sess, target, sess.TurnCount)
	return nil
}

// CancelInFlight marks the session's in-flight model call stale and cancels
// it. It is safe to call without holding the session.
func (e *Engine) CancelInFlight(sessionID string) bool {
	e.mu.Lock()
	f, ok := e.inflight[sessionID]
	delete(e.inflight, sessionID)
	e.mu.Unlock()

	if ok {
		f.stale.Store(true)
		f.cancel()
	}
	return ok
}

func (e *Engine) replayTurn(ctx context.Context, t *turn, p replay.Pending, utterance string) Result {
	out := e.replays.Resolve(p, utterance, t.n, e.evidenceFingerprint(ctx, t.snap, p.SuggestedScopes))

	e.logger.Info("REPLAY", "Pending scope clarifier resolved", map[string]interface{}{
		"session_id": t.sess.ID,
		"verdict":    string(out.Verdict),
		"command":    out.Command,
		"message_id": p.ClarifierMessageID,
	})
	e.telemetry.Emit(ctx, "replay_resolved", map[string]interface{}{
		"session_id": t.sess.ID,
		"turn":       t.n,
		"verdict":    string(out.Verdict),
		"error_kind": string(out.ErrorKind),
	})

	switch out.Verdict {
	case replay.VerdictReplay:
		res := e.route(ctx, t, out.Command, 1)
		res.Replayed = true
		return res
	case replay.VerdictScopeOnly:
		base := Result{Turn: t.n, Confidence: gate.ConfidenceNone}
		return e.clarify(t, base, e.clarifiers.ScopeOnly(out.SuggestedScopes), ReasonScopeOnly)
	default:
		return e.route(ctx, t, utterance, 0)
	}
}

// route is the main pipeline: scope cue, binding, pool, gate, tie-break,
// arbitration, clarifier.
func (e *Engine) route(ctx context.Context, t *turn, text string, depth int) Result {
	sess := t.sess
	base := Result{Turn: t.n, Confidence: gate.ConfidenceNone}

	if err := replay.CheckDepth(depth); err != nil {
		e.logger.Warn("REPLAY", "Nested replay rejected", map[string]interface{}{
			"session_id": sess.ID,
			"depth":      depth,
			"error":      err.Error(),
		})
		msg := e.clarifiers.ScopeOnly(nil)
		msg.ErrorKind = arbiterr.KindOf(err)
		return e.clarify(t, base, msg, ReasonReplayDepth)
	}

	cue := e.scopes.Resolve(text)
	switch {
	case cue.HasConflict:
		return e.clarify(t, base, e.clarifiers.Conflict(cue.SuggestedScopes), ReasonScopeConflict)
	case cue.Ambiguous():
		if depth > 0 {
			return e.clarify(t, base, e.clarifiers.ScopeOnly(cue.SuggestedScopes), ReasonScopeOnly)
		}
		msg := e.clarifiers.ScopeTypo(cue.SuggestedScopes, cue.DetectedToken)
		sess.PendingTypo = &replay.Pending{
			OriginalInput:       cue.StrippedInput,
			SuggestedScopes:     cue.SuggestedScopes,
			DetectedScope:       cue.Scope,
			DetectedToken:       cue.DetectedToken,
			NamedHint:           cue.NamedHint,
			CreatedAtTurn:       t.n,
			SnapshotFingerprint: e.evidenceFingerprint(ctx, t.snap, cue.SuggestedScopes),
			ClarifierMessageID:  msg.ID,
		}
		e.telemetry.Emit(ctx, "scope_typo_clarifier", map[string]interface{}{
			"session_id": sess.ID,
			"turn":       t.n,
			"token":      cue.DetectedToken,
			"confidence": string(cue.Confidence),
		})
		return e.clarify(t, base, msg, ReasonScopeTypo)
	}

	command := cue.StrippedInput
	rest, negated := normalize.StripNegation(command)
	namesRejected := negated && rest != "" && hasToken(command, "not")
	if negated {
		command = rest
	}
	confirmation := false
	if r, affirmed := normalize.StripAffirmation(command); affirmed {
		command = r
		confirmation = r == ""
	}

	var clarifierScope candidate.Scope
	if sess.Continuity.PendingClarifierType == string(clarifier.TypeCandidateChoice) {
		clarifierScope = sess.Continuity.ActiveScope
	}
	binding := scope.Bind(scope.BindInput{
		Cue:            cue,
		Snapshot:       t.snap,
		ClarifierScope: clarifierScope,
		LatchScope:     sess.Focus.Scope(),
		LatchExpired:   sess.Focus.Expired(),
	})
	base.Scope = binding.Scope
	base.Binding = binding.Source

	pool, err := e.pools.Build(ctx, binding.Scope)
	if err != nil {
		if arbiterr.KindOf(err) != arbiterr.KindPoolEmpty {
			e.logger.Warn(module, "Candidate pool unavailable", map[string]interface{}{
				"scope": binding.Scope.String(),
				"error": err.Error(),
			})
		}
		return e.clarify(t, base, e.clarifiers.PoolEmpty(binding.Scope), ReasonPoolEmpty)
	}

	fp := candidate.Fingerprint(pool)
	if clarifierScope.Equal(pool.Source) && sess.Continuity.ActiveOptionSetID == fp {
		pool = pool.Ordered(sess.Continuity.ActiveOptionIDs)
	}

	if negated {
		target := ""
		if namesRejected {
			if d := gate.Evaluate(command, pool, e.cfg.Mode); d.Executable() {
				target = d.MatchedCandidateID
				command = ""
			}
		}
		if target == "" {
			target = sess.Continuity.RejectionTarget()
		}
		if target != "" {
			sess.Continuity.Reject(target)
			e.logger.Info("CONTINUITY", "Choice rejected", map[string]interface{}{
				"session_id":   sess.ID,
				"candidate_id": target,
			})
		}
	}

	if confirmation {
		id := sess.Continuity.LastSuggestedID
		if id != "" && sess.Continuity.ActiveOptionSetID == fp && pool.Contains(id) {
			return e.execute(ctx, t, base, pool, id, ReasonConfirmedSuggestion)
		}
	}

	if command == "" {
		if id, ok := e.tieBreak(t, text, pool, fp); ok {
			return e.execute(ctx, t, base, pool, id, ReasonTieBreak)
		}
		reason := ReasonEmptyCommand
		if negated {
			reason = ReasonNegation
		}
		return e.clarify(t, base, e.clarifiers.Candidates(clarifier.CandidateRequest{
			Pool:         pool,
			Exclude:      sess.Continuity.RecentRejected.Values(),
			EmptyCommand: cue.Explicit() && !negated,
		}), reason)
	}

	d := gate.Evaluate(command, pool, e.cfg.Mode)
	if err := d.Validate(); err != nil {
		e.logger.Error(module, "Gate produced an invalid decision", map[string]interface{}{"error": err.Error()})
		return e.clarify(t, base, e.clarifiers.Candidates(clarifier.CandidateRequest{Pool: pool}), string(d.Reason))
	}
	base.Confidence = d.Confidence

	switch d.Outcome {
	case gate.OutcomeExecute:
		return e.execute(ctx, t, base, pool, d.MatchedCandidateID, string(d.Reason))
	case gate.OutcomeClarify:
		return e.clarify(t, base, e.clarifiers.Candidates(clarifier.CandidateRequest{
			Pool:      pool,
			Preferred: d.MatchedIDs,
			Exclude:   sess.Continuity.RecentRejected.Values(),
		}), string(d.Reason))
	}

	if id, ok := e.tieBreak(t, text, pool, fp); ok {
		return e.execute(ctx, t, base, pool, id, ReasonTieBreak)
	}
	return e.arbitrate(ctx, t, base, pool, fp, text, command, d)
}

func (e *Engine) arbitrate(ctx context.Context, t *turn, base Result, pool candidate.Pool, fp, text, command string, d gate.Decision) Result {
	sess := t.sess
	key := normalize.Text(command)
	request := clarifier.CandidateRequest{
		Pool:      pool,
		Preferred: d.MatchedIDs,
		Exclude:   sess.Continuity.RecentRejected.Values(),
	}
	if d.MatchedCandidateID != "" && len(d.MatchedIDs) == 0 {
		request.Preferred = []string{d.MatchedCandidateID}
	}

	if sess.Memo.Blocks(fp, key, t.n) {
		sess.Memo.Record(fp, key, t.n)
		e.logger.Info(module, "Arbitration skipped, same question over same evidence", map[string]interface{}{
			"session_id":  sess.ID,
			"fingerprint": fp,
		})
		request.Kind = arbiterr.KindNoNewEvidence
		return e.clarify(t, base, e.clarifiers.Candidates(request), ReasonArbitrationFallback)
	}
	if e.boundary == nil {
		request.Kind = arbiterr.KindLLMTransportError
		return e.clarify(t, base, e.clarifiers.Candidates(request), ReasonArbitrationFallback)
	}

	callCtx, f := e.begin(ctx, sess.ID)
	defer e.end(sess.ID, f)

	loop := arbitration.NewLoop(e.boundary, e.enricherFor(sess), arbitration.Config{
		Timeout:           e.cfg.LLMTimeout,
		MinConfidence:     e.cfg.MinConfidence,
		EvidenceAllowlist: e.cfg.EvidenceAllowlist,
		Mode:              e.cfg.Mode,
	}, e.logger)
	ar := loop.Run(callCtx, arbitration.Input{
		Utterance: command,
		Pool:      pool,
		Rejected:  sess.Continuity.RecentRejected.Values(),
		Stale:     f.stale.Load,
	})
	base.LLMCalls = ar.Calls

	e.telemetry.Emit(ctx, "arbitration_run", map[string]interface{}{
		"session_id":  sess.ID,
		"turn":        t.n,
		"outcome":     string(ar.Outcome),
		"error_kind":  string(ar.ErrorKind),
		"calls":       ar.Calls,
		"fingerprint": ar.Fingerprint,
	})

	if ar.ErrorKind == arbiterr.KindStaleResponse || f.stale.Load() {
		base.Action = ActionDiscard
		base.Reason = ReasonStaleResponse
		base.ErrorKind = arbiterr.KindStaleResponse
		return base
	}

	// the loop may have decided over an enriched pool; act on that one
	if !ar.Pool.IsEmpty() {
		request.Pool = ar.Pool
		request.OptionSetID = fp
	}
	if ar.Outcome == arbitration.OutcomeExecute {
		return e.execute(ctx, t, base, request.Pool, ar.CandidateID, ReasonArbitrationSelect)
	}
	if ar.NeedMoreInfo {
		if id, ok := e.tieBreak(t, text, pool, fp); ok {
			return e.execute(ctx, t, base, request.Pool, id, ReasonTieBreak)
		}
	}

	sess.Memo.Record(fp, key, t.n)
	request.Suggested = ar.SuggestedID
	request.Kind = ar.ErrorKind
	return e.clarify(t, base, e.clarifiers.Candidates(request), ReasonArbitrationFallback)
}

// execute is the only place a candidate is acted upon.
func (e *Engine) execute(ctx context.Context, t *turn, base Result, pool candidate.Pool, id, reason string) Result {
	sess := t.sess
	c, ok := pool.Get(id)
	if !ok {
		e.logger.Error(module, "Refusing to execute a candidate outside the pool", map[string]interface{}{
			"candidate_id": id,
			"scope":        pool.Source.String(),
		})
		base.Confidence = gate.ConfidenceNone
		return e.clarify(t, base, e.clarifiers.Candidates(clarifier.CandidateRequest{
			Pool: pool,
			Kind: arbiterr.KindSelectRejected,
		}), reason)
	}

	opened, err := e.dispatch(ctx, c, pool.Source)
	if err != nil {
		e.logger.Warn(module, "Execution failed", map[string]interface{}{
			"candidate_id": c.ID,
			"kind":         string(c.Kind),
			"error":        err.Error(),
		})
		msg := e.clarifiers.Candidates(clarifier.CandidateRequest{Pool: pool, Kind: arbiterr.KindExecutionFailed})
		base.Action = ActionClarify
		base.Confidence = gate.ConfidenceNone
		base.Reason = ReasonExecutionFailed
		base.ErrorKind = arbiterr.KindExecutionFailed
		base.Clarifier = &msg
		return base
	}

	sess.Continuity.OnResolved(continuity.Action{
		CandidateID: c.ID,
		Label:       c.Label,
		Kind:        c.Kind,
		Scope:       pool.Source,
		Turn:        t.n,
	}, candidate.Fingerprint(pool))
	sess.Memo.Clear()
	switch {
	case !opened.IsZero():
		e.anchor(ctx, sess, opened, t.n)
	case base.Binding == scope.SourceExplicit && sess.Focus.State == focus.StateResolved && !sess.Focus.Target.Equal(pool.Source):
		e.release(ctx, sess, t.n)
	}

	base.Action = ActionExecute
	base.CandidateID = c.ID
	base.Candidate = &c
	base.Scope = pool.Source
	base.Confidence = gate.ConfidenceHigh
	base.Reason = reason
	return base
}

// dispatch switches over every candidate kind. Kinds that open something
// report the scope they open so focus can follow.
func (e *Engine) dispatch(ctx context.Context, c candidate.Candidate, s candidate.Scope) (candidate.Scope, error) {
	var opens candidate.Scope
	switch c.Kind {
	case candidate.KindChatOption, candidate.KindWidgetItem, candidate.KindWorkspaceItem:
	case candidate.KindWidget, candidate.KindPanel:
		opens = candidate.WidgetScope(c.Ref.EntityID)
	case candidate.KindDashboardView:
		opens = candidate.DashboardScope(c.Ref.EntityID)
	default:
		return candidate.Scope{}, arbiterr.New(arbiterr.KindExecutionFailed, "dispatch",
			fmt.Errorf("unknown candidate kind %q", c.Kind))
	}

	res, err := e.host.ExecuteCandidate(ctx, c, s)
	if err != nil {
		return candidate.Scope{}, fmt.Errorf("execute %s: %w", c.ID, err)
	}
	if !res.OpenedScope.IsZero() {
		opens = res.OpenedScope
	}
	return opens, nil
}

// clarify records the emitted option set and returns the clarifier result.
func (e *Engine) clarify(t *turn, base Result, msg clarifier.Message, reason string) Result {
	t.sess.Continuity.OnClarifier(msg.OptionSetID, msg.Scope, msg.OptionIDs(), string(msg.Type), msg.SuggestedID)

	base.Action = ActionClarify
	base.Clarifier = &msg
	base.Reason = reason
	base.ErrorKind = msg.ErrorKind
	if base.Confidence == gate.ConfidenceHigh {
		base.Confidence = gate.ConfidenceNone
	}
	if !msg.Scope.IsZero() {
		base.Scope = msg.Scope
	}
	return base
}

func (e *Engine) tieBreak(t *turn, text string, pool candidate.Pool, fp string) (string, bool) {
	id, ok := t.sess.Continuity.TieBreak(continuity.TieBreakInput{
		Utterance:   text,
		OptionSetID: fp,
		Scope:       pool.Source,
		Pool:        pool,
	})
	if ok {
		e.logger.Info("CONTINUITY", "Tie-break resolved", map[string]interface{}{
			"session_id":   t.sess.ID,
			"candidate_id": id,
		})
	}
	return id, ok
}

func (e *Engine) observeFocus(ctx context.Context, t *turn) {
	before := t.sess.Focus.State
	after := t.sess.Focus.Observe(t.snap, t.n)
	if before == after {
		return
	}
	e.logger.Info("FOCUS", "Focus latch moved", map[string]interface{}{
		"session_id": t.sess.ID,
		"from":       string(before),
		"to":         string(after),
	})
	e.telemetry.Emit(ctx, "focus_transition", map[string]interface{}{
		"session_id": t.sess.ID,
		"turn":       t.n,
		"from":       string(before),
		"to":         string(after),
	})
}

// anchor re-anchors focus and closes any unanswered clarifier, whose scope
// would otherwise outrank the new latch.
func (e *Engine) anchor(ctx context.Context, sess *session.Session, target candidate.Scope, n int) {
	sess.Focus.Anchor(target, n)
	sess.Continuity.CloseClarifier()
	e.logger.Info("FOCUS", "Focus re-anchored", map[string]interface{}{
		"session_id": sess.ID,
		"target":     target.String(),
		"turn":       n,
	})
	e.telemetry.Emit(ctx, "focus_anchored", map[string]interface{}{
		"session_id": sess.ID,
		"target":     target.String(),
		"turn":       n,
	})
}

// release drops a resolved latch once the user acted somewhere else.
func (e *Engine) release(ctx context.Context, sess *session.Session, n int) {
	from := sess.Focus.Target
	sess.Focus.Release()
	e.logger.Info("FOCUS", "Focus released", map[string]interface{}{
		"session_id": sess.ID,
		"from":       from.String(),
		"turn":       n,
	})
	e.telemetry.Emit(ctx, "focus_transition", map[string]interface{}{
		"session_id": sess.ID,
		"turn":       n,
		"from":       string(focus.StateResolved),
		"to":         string(focus.StateUnset),
	})
}

// evidenceFingerprint hashes the snapshot together with the pools a scope-typo
// replay could bind to, so a replay never runs against a pool that changed.
func (e *Engine) evidenceFingerprint(ctx context.Context, snap candidate.Snapshot, kinds []candidate.ScopeKind) string {
	pools := make([]candidate.Pool, 0, len(kinds))
	for _, k := range kinds {
		// an unavailable pool hashes as empty
		pool, _ := e.pools.Build(ctx, snap.ScopeFor(k))
		pools = append(pools, pool)
	}
	return candidate.SnapshotFingerprint(snap, pools...)
}

func (e *Engine) begin(ctx context.Context, sessionID string) (context.Context, *flight) {
	callCtx, cancel := context.WithCancel(ctx)
	f := &flight{cancel: cancel}

	e.mu.Lock()
	prev, ok := e.inflight[sessionID]
	e.inflight[sessionID] = f
	e.mu.Unlock()

	if ok {
		prev.stale.Store(true)
		prev.cancel()
	}
	return callCtx, f
}

func (e *Engine) end(sessionID string, f *flight) {
	e.mu.Lock()
	if e.inflight[sessionID] == f {
		delete(e.inflight, sessionID)
	}
	e.mu.Unlock()
	f.cancel()
}

func (e *Engine) report(ctx context.Context, sess *session.Session, utterance string, res Result) {
	fields := map[string]interface{}{
		"session_id":   sess.ID,
		"user_id":      sess.UserID,
		"turn":         res.Turn,
		"epoch":        sess.Epoch,
		"utterance":    utterance,
		"action":       string(res.Action),
		"candidate_id": res.CandidateID,
		"scope":        res.Scope.String(),
		"binding":      string(res.Binding),
		"confidence":   string(res.Confidence),
		"reason":       res.Reason,
		"error_kind":   string(res.ErrorKind),
		"replayed":     res.Replayed,
		"llm_calls":    res.LLMCalls,
	}
	e.logger.Info(module, "Turn resolved", fields)
	e.telemetry.Emit(ctx, "turn_resolved", fields)
}

func hasToken(text, tok string) bool {
	for _, t := range normalize.Tokens(text) {
		if t == tok {
			return true
		}
	}
	return false
}
