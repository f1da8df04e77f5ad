package arbitration

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"ai-command-arbiter/internal/pkg/logger"
	"ai-command-arbiter/pkg/arbiter/arbiterr"
	"ai-command-arbiter/pkg/arbiter/candidate"
	"ai-command-arbiter/pkg/arbiter/gate"
	"ai-command-arbiter/pkg/arbiter/normalize"
	"ai-command-arbiter/pkg/llm"
)

const module = "ARBITRATION"

// State is a node of the loop's state machine.
type State string

const (
	StateInit     State = "init"
	StateCall1    State = "llm_call_1"
	StateEnrich   State = "enrich"
	StateCall2    State = "llm_call_2"
	StateResolved State = "resolved"
	StateExecute  State = "terminal_execute"
	StateClarify  State = "terminal_clarify"
)

const (
	maxCalls       = 2
	defaultTimeout = 4 * time.Second
)

type Outcome string

const (
	OutcomeExecute Outcome = "execute"
	OutcomeClarify Outcome = "clarify"
)

type Config struct {
	Timeout           time.Duration
	MinConfidence     float64
	EvidenceAllowlist []string
	Mode              gate.Mode
}

// Input is one run of the loop.
type Input struct {
	Utterance string
	Pool      candidate.Pool
	Rejected  []string

	// Stale reports whether the session moved on while a call was in flight.
	Stale func() bool
}

type Result struct {
	Outcome      Outcome        `json:"outcome"`
	CandidateID  string         `json:"candidate_id,omitempty"`
	SuggestedID  string         `json:"suggested_id,omitempty"`
	ErrorKind    arbiterr.Kind  `json:"error_kind,omitempty"`
	NeedMoreInfo bool           `json:"need_more_info"`
	Calls        int            `json:"calls"`
	Fingerprint  string         `json:"fingerprint"`
	Pool         candidate.Pool `json:"-"`
	Trace        []State        `json:"trace"`
}

// Fallback reports whether the run ended on one of the normalized model
// failure kinds.
func (r Result) Fallback() bool {
	return arbiterr.IsFallback(r.ErrorKind)
}

type Loop struct {
	boundary Boundary
	enricher Enricher
	cfg      Config
	logger   logger.ILogger
}

func NewLoop(boundary Boundary, enricher Enricher, cfg Config, log logger.ILogger) *Loop {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if len(cfg.EvidenceAllowlist) == 0 {
		cfg.EvidenceAllowlist = DefaultEvidenceAllowlist
	}
	return &Loop{boundary: boundary, enricher: enricher, cfg: cfg, logger: log}
}

// Run drives init -> llm_call_1 -> {resolved | enrich -> llm_call_2 ->
// resolved} -> terminal. It never returns an error: every failure becomes a
// clarify result carrying its kind.
func (l *Loop) Run(ctx context.Context, in Input) Result {
	res := Result{Pool: in.Pool, Trace: []State{StateInit}}
	pool := in.Pool
	res.Fingerprint = candidate.Fingerprint(pool)

	for attempt := 1; attempt <= maxCalls; attempt++ {
		if attempt == 1 {
			res.Trace = append(res.Trace, StateCall1)
		} else {
			res.Trace = append(res.Trace, StateCall2)
		}

		resp, err := l.call(ctx, l.request(in, pool, attempt))
		res.Calls++
		if err != nil {
			return l.clarify(res, classify(err), "", err)
		}
		if in.Stale != nil && in.Stale() {
			return l.clarify(res, arbiterr.KindStaleResponse, "", nil)
		}

		switch resp.Decision {
		case DecisionSelect:
			res.Trace = append(res.Trace, StateResolved)
			return l.checkSelect(res, in.Utterance, pool, resp)

		case DecisionNeedMoreInfo:
			res.NeedMoreInfo = true
			return l.clarify(res, arbiterr.KindLLMAbstain, "", nil)

		case DecisionRequestContext:
			if attempt == maxCalls {
				return l.clarify(res, arbiterr.KindRetryBudgetExhausted, "", nil)
			}
			if !l.allowed(resp.EvidenceType) {
				return l.clarify(res, arbiterr.KindLLMAbstain, "", nil)
			}

			res.Trace = append(res.Trace, StateEnrich)
			enriched, ok := l.enrich(ctx, pool, resp.EvidenceType)
			fp := candidate.Fingerprint(enriched)
			if !ok || fp == res.Fingerprint {
				l.logger.Info(module, "Retry skipped, evidence unchanged", map[string]interface{}{
					"fingerprint": res.Fingerprint,
					"evidence":    resp.EvidenceType,
				})
				return l.clarify(res, arbiterr.KindNoNewEvidence, "", nil)
			}
			pool = enriched
			res.Pool = enriched
			res.Fingerprint = fp

		default:
			return l.clarify(res, arbiterr.KindLLMAbstain, "", nil)
		}
	}

	return l.clarify(res, arbiterr.KindRetryBudgetExhausted, "", nil)
}

// checkSelect treats the model's choice as advisory. It executes only when the
// lightly normalized utterance equals exactly one label in the pool and that
// label belongs to the selected candidate.
func (l *Loop) checkSelect(res Result, utterance string, pool candidate.Pool, resp Response) Result {
	if resp.CandidateID == "" || !pool.Contains(resp.CandidateID) {
		return l.clarify(res, arbiterr.KindLLMAbstain, "", nil)
	}
	if resp.Confidence < l.cfg.MinConfidence {
		return l.clarify(res, arbiterr.KindLLMLowConfidence, resp.CandidateID, nil)
	}
	if l.cfg.Mode == gate.ModeStrict {
		return l.clarify(res, arbiterr.KindSelectRejected, resp.CandidateID, nil)
	}

	light := normalize.Light(utterance)
	var match string
	count := 0
	for _, c := range pool.Candidates {
		if light != "" && normalize.Text(c.Label) == light {
			match = c.ID
			count++
		}
	}
	if count != 1 || match != resp.CandidateID {
		return l.clarify(res, arbiterr.KindSelectRejected, resp.CandidateID, nil)
	}

	res.Outcome = OutcomeExecute
	res.CandidateID = match
	res.Trace = append(res.Trace, StateExecute)
	return res
}

func (l *Loop) clarify(res Result, kind arbiterr.Kind, suggested string, cause error) Result {
	res.Outcome = OutcomeClarify
	res.ErrorKind = kind
	res.SuggestedID = suggested
	res.Trace = append(res.Trace, StateClarify)

	details := map[string]interface{}{
		"kind":  string(kind),
		"calls": res.Calls,
	}
	if cause != nil {
		details["error"] = cause.Error()
	}
	l.logger.Info(module, "Arbitration ended in clarifier", details)
	return res
}

// call runs one boundary call under its own timeout. The result channel is
// buffered so the worker exits even when nobody is waiting.
func (l *Loop) call(ctx context.Context, req Request) (Response, error) {
	ctx, span := otel.Tracer("arbiter").Start(ctx, "arbiter.llm_call")
	defer span.End()
	span.SetAttributes(
		attribute.Int("attempt", req.Attempt),
		attribute.Int("candidates", len(req.Candidates)),
	)

	callCtx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	type outcome struct {
		resp Response
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := l.boundary.Call(callCtx, req)
		done <- outcome{resp, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			span.RecordError(out.err)
			span.SetStatus(codes.Error, out.err.Error())
		}
		return out.resp, out.err
	case <-callCtx.Done():
		span.SetStatus(codes.Error, "timeout")
		return Response{}, callCtx.Err()
	}
}

func (l *Loop) request(in Input, pool candidate.Pool, attempt int) Request {
	rejected := make([]CandidateBrief, 0, len(in.Rejected))
	for _, id := range in.Rejected {
		if c, ok := pool.Get(id); ok {
			rejected = append(rejected, CandidateBrief{ID: c.ID, Label: c.Label, Sublabel: c.Sublabel, Kind: string(c.Kind)})
		}
	}
	req := Request{
		Utterance:  normalize.Light(in.Utterance),
		Scope:      pool.Source.String(),
		Candidates: briefs(pool),
		Rejected:   rejected,
		Attempt:    attempt,
	}
	if attempt < maxCalls {
		req.AllowedEvidence = l.cfg.EvidenceAllowlist
	}
	if req.Utterance == "" {
		req.Utterance = normalize.Text(in.Utterance)
	}
	return req
}

func (l *Loop) enrich(ctx context.Context, pool candidate.Pool, evidence string) (candidate.Pool, bool) {
	if l.enricher == nil {
		return pool, false
	}
	enriched, err := l.enricher.Enrich(ctx, pool, evidence)
	if err != nil {
		l.logger.Warn(module, "Enrichment failed", map[string]interface{}{
			"evidence": evidence,
			"error":    err.Error(),
		})
		return pool, false
	}
	// re-bind: enrichment may never widen the source
	return candidate.NewPool(pool.Source, enriched.Candidates), true
}

func (l *Loop) allowed(evidence string) bool {
	for _, e := range l.cfg.EvidenceAllowlist {
		if e == evidence {
			return true
		}
	}
	return false
}

// classify normalizes boundary failures onto the error taxonomy.
func classify(err error) arbiterr.Kind {
	if k := arbiterr.KindOf(err); k != arbiterr.KindNone {
		return k
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return arbiterr.KindLLMTimeout
	case errors.Is(err, context.Canceled):
		return arbiterr.KindStaleResponse
	case errors.Is(err, llm.ErrRateLimited):
		return arbiterr.KindLLMRateLimited
	default:
		return arbiterr.KindLLMTransportError
	}
}
