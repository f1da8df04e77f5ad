// Package gate is the deterministic confidence gate: a pure classification of
// how well an utterance matches a bounded candidate pool.
package gate

import "fmt"

type Outcome string

const (
	OutcomeExecute Outcome = "execute"
	OutcomeLLM     Outcome = "llm"
	OutcomeClarify Outcome = "clarify"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

type Reason string

const (
	ReasonExactLabel        Reason = "exact_label"
	ReasonExactSublabel     Reason = "exact_sublabel"
	ReasonExactCanonical    Reason = "exact_canonical"
	ReasonOrdinal           Reason = "ordinal"
	ReasonSoftContains      Reason = "soft_contains"
	ReasonSoftStartsWith    Reason = "soft_starts_with"
	ReasonSoftLabelContains Reason = "soft_label_contains"
	ReasonMultipleExact     Reason = "multiple_exact"
	ReasonMultipleSoft      Reason = "multiple_soft"
	ReasonNoMatch           Reason = "no_match"
	ReasonEmptyPool         Reason = "empty_pool"
)

// Mode selects the gate policy. ModeStrict only lets literal matches execute.
type Mode int

const (
	ModeDefault Mode = iota
	ModeStrict
)

// Decision is the gate's output. Construct it with the helpers below so the
// execute/high pairing cannot be broken.
type Decision struct {
	Outcome            Outcome    `json:"outcome"`
	Confidence         Confidence `json:"confidence"`
	Reason             Reason     `json:"reason"`
	MatchedCandidateID string     `json:"matched_candidate_id,omitempty"`
	MatchedIDs         []string   `json:"matched_ids,omitempty"`
}

func execute(reason Reason, id string) Decision {
	return Decision{Outcome: OutcomeExecute, Confidence: ConfidenceHigh, Reason: reason, MatchedCandidateID: id}
}

func consult(conf Confidence, reason Reason, id string, ids []string) Decision {
	return Decision{Outcome: OutcomeLLM, Confidence: conf, Reason: reason, MatchedCandidateID: id, MatchedIDs: ids}
}

func clarify(reason Reason) Decision {
	return Decision{Outcome: OutcomeClarify, Confidence: ConfidenceNone, Reason: reason}
}

// Validate checks outcome == execute <=> confidence == high.
func (d Decision) Validate() error {
	if (d.Outcome == OutcomeExecute) != (d.Confidence == ConfidenceHigh) {
		return fmt.Errorf("gate: invalid decision %s/%s (%s)", d.Outcome, d.Confidence, d.Reason)
	}
	if d.Outcome == OutcomeExecute && d.MatchedCandidateID == "" {
		return fmt.Errorf("gate: execute decision without candidate (%s)", d.Reason)
	}
	return nil
}

// Executable reports whether d may be acted upon without further arbitration.
func (d Decision) Executable() bool {
	return d.Validate() == nil && d.Outcome == OutcomeExecute
}
