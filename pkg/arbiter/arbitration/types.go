// Package arbitration is the bounded language-model consultation used when the
// deterministic gate is inconclusive: one call, at most one evidence-justified
// retry, and a post-decision safety check before anything may execute.
package arbitration

import (
	"context"

	"ai-command-arbiter/pkg/arbiter/candidate"
)

type DecisionKind string

const (
	DecisionSelect         DecisionKind = "select"
	DecisionNeedMoreInfo   DecisionKind = "need_more_info"
	DecisionRequestContext DecisionKind = "request_context"
)

// Evidence types an enricher knows how to supply.
const (
	EvidenceItemList  = "item_list"
	EvidenceSublabels = "sublabels"
	EvidenceRecent    = "recent_actions"
)

// DefaultEvidenceAllowlist is what the model may ask for.
var DefaultEvidenceAllowlist = []string{EvidenceItemList, EvidenceSublabels, EvidenceRecent}

// CandidateBrief is the only view of a candidate the model ever sees.
type CandidateBrief struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Sublabel string `json:"sublabel,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

// Request is the bounded payload sent to the model.
type Request struct {
	Utterance       string           `json:"utterance"`
	Scope           string           `json:"scope"`
	Candidates      []CandidateBrief `json:"candidates"`
	Rejected        []CandidateBrief `json:"rejected,omitempty"`
	AllowedEvidence []string         `json:"allowed_evidence,omitempty"`
	Attempt         int              `json:"attempt"`
}

type Response struct {
	Decision     DecisionKind `json:"decision"`
	CandidateID  string       `json:"candidate_id,omitempty"`
	Confidence   float64      `json:"confidence"`
	EvidenceType string       `json:"evidence_type,omitempty"`
}

// Boundary is the language-model boundary. Implementations must honour ctx.
type Boundary interface {
	Call(ctx context.Context, req Request) (Response, error)
}

// BoundaryFunc adapts a function to Boundary.
type BoundaryFunc func(ctx context.Context, req Request) (Response, error)

func (f BoundaryFunc) Call(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Enricher supplies additional bounded evidence for the same scope. The
// returned pool is re-bound to the original source; anything from another
// source is dropped.
type Enricher interface {
	Enrich(ctx context.Context, pool candidate.Pool, evidenceType string) (candidate.Pool, error)
}

func briefs(pool candidate.Pool) []CandidateBrief {
	out := make([]CandidateBrief, 0, pool.Len())
	for _, c := range pool.Candidates {
		out = append(out, CandidateBrief{ID: c.ID, Label: c.Label, Sublabel: c.Sublabel, Kind: string(c.Kind)})
	}
	return out
}
