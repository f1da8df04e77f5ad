package gate

import (
	"strings"

	"ai-command-arbiter/pkg/arbiter/candidate"
	"ai-command-arbiter/pkg/arbiter/normalize"
)

// minSoftLen keeps one- and two-letter fragments out of the soft tiers.
const minSoftLen = 3

// Evaluate classifies input against pool. It is the only place a decision is
// derived from text, and every decision it returns satisfies Validate.
func Evaluate(input string, pool candidate.Pool, mode Mode) Decision {
	if pool.IsEmpty() {
		return clarify(ReasonEmptyPool)
	}

	text := normalize.Text(input)

	if d, ok := exactTier(text, pool); ok {
		return d
	}
	if idx, ok := MatchOrdinal(normalize.Tokens(input), pool.Len(), mode); ok {
		return execute(ReasonOrdinal, pool.Candidates[idx].ID)
	}
	if d, ok := canonicalTier(input, pool, mode); ok {
		return d
	}
	if d, ok := softTier(text, normalize.Light(input), pool); ok {
		return d
	}
	return consult(ConfidenceNone, ReasonNoMatch, "", nil)
}

func exactTier(text string, pool candidate.Pool) (Decision, bool) {
	if text == "" {
		return Decision{}, false
	}

	for _, field := range []struct {
		reason Reason
		get    func(candidate.Candidate) string
	}{
		{ReasonExactLabel, func(c candidate.Candidate) string { return c.Label }},
		{ReasonExactSublabel, func(c candidate.Candidate) string { return c.Sublabel }},
	} {
		var ids []string
		for _, c := range pool.Candidates {
			if v := field.get(c); v != "" && normalize.Text(v) == text {
				ids = append(ids, c.ID)
			}
		}
		switch len(ids) {
		case 0:
			continue
		case 1:
			return execute(field.reason, ids[0]), true
		default:
			return consult(ConfidenceLow, ReasonMultipleExact, "", ids), true
		}
	}
	return Decision{}, false
}

func canonicalTier(input string, pool candidate.Pool, mode Mode) (Decision, bool) {
	want := normalize.CanonicalTokens(input)
	if len(want) == 0 {
		return Decision{}, false
	}

	var ids []string
	for _, c := range pool.Candidates {
		if normalize.SameSet(want, normalize.LabelTokens(c.Label)) {
			ids = append(ids, c.ID)
		}
	}

	switch {
	case len(ids) == 0:
		return Decision{}, false
	case len(ids) > 1:
		return consult(ConfidenceLow, ReasonMultipleExact, "", ids), true
	case mode == ModeStrict:
		return consult(ConfidenceMedium, ReasonExactCanonical, ids[0], ids), true
	default:
		return execute(ReasonExactCanonical, ids[0]), true
	}
}

func softTier(text, light string, pool candidate.Pool) (Decision, bool) {
	var (
		ids     []string
		reasons []Reason
	)
	for _, c := range pool.Candidates {
		if r, ok := softMatch(text, light, normalize.Text(c.Label)); ok {
			ids = append(ids, c.ID)
			reasons = append(reasons, r)
		}
	}

	switch len(ids) {
	case 0:
		return Decision{}, false
	case 1:
		return consult(ConfidenceMedium, reasons[0], ids[0], ids), true
	default:
		return consult(ConfidenceLow, ReasonMultipleSoft, "", ids), true
	}
}

func softMatch(text, light, label string) (Reason, bool) {
	if label == "" {
		return "", false
	}
	if normalize.ContainsPhrase(text, label) {
		return ReasonSoftContains, true
	}
	if len(light) < minSoftLen {
		return "", false
	}
	if strings.HasPrefix(label, light) {
		return ReasonSoftStartsWith, true
	}
	if normalize.ContainsPhrase(label, light) {
		return ReasonSoftLabelContains, true
	}
	return "", false
}
