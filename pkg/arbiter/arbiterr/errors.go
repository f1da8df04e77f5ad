package arbiterr

import (
	"errors"
	"fmt"
)

// Kind classifies every recoverable failure the engine can hit during a turn.
type Kind string

const (
	KindNone                 Kind = ""
	KindScopeAmbiguous       Kind = "SCOPE_AMBIGUOUS"
	KindPoolEmpty            Kind = "POOL_EMPTY"
	KindLLMTimeout           Kind = "LLM_TIMEOUT"
	KindLLMTransportError    Kind = "LLM_TRANSPORT_ERROR"
	KindLLMRateLimited       Kind = "LLM_RATE_LIMITED"
	KindLLMAbstain           Kind = "LLM_ABSTAIN"
	KindLLMLowConfidence     Kind = "LLM_LOW_CONFIDENCE"
	KindNoNewEvidence        Kind = "NO_NEW_EVIDENCE"
	KindRetryBudgetExhausted Kind = "RETRY_BUDGET_EXHAUSTED"
	KindStaleReplay          Kind = "STALE_REPLAY"
	KindStaleResponse        Kind = "STALE_RESPONSE"
	KindSelectRejected       Kind = "SELECT_REJECTED"
	KindExecutionFailed      Kind = "EXECUTION_FAILED"
	KindReplayDepth          Kind = "REPLAY_DEPTH"
)

// ReasonFallback is the single reason every LLM-side failure collapses into.
const ReasonFallback = "arbitration_fallback"

var (
	ErrPoolEmpty   = &Error{Kind: KindPoolEmpty}
	ErrReplayDepth = &Error{Kind: KindReplayDepth}
)

// Error carries a Kind plus the operation and cause that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so errors.Is(err, ErrPoolEmpty) works for wrapped values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an Error of the given kind.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// KindOf extracts the Kind from err, or KindNone.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

// IsFallback reports whether kind is one of the LLM failures that collapse
// into the single fallback reason.
func IsFallback(kind Kind) bool {
	switch kind {
	case KindLLMTimeout, KindLLMTransportError, KindLLMRateLimited, KindLLMAbstain, KindLLMLowConfidence:
		return true
	}
	return false
}
