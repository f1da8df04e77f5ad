package gate

import (
	"testing"

	"ai-command-arbiter/pkg/arbiter/candidate"
	"ai-command-arbiter/pkg/arbiter/normalize"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linksPool() candidate.Pool {
	return candidate.NewPool(candidate.ChatScope(), []candidate.Candidate{
		{ID: "1", Label: "Links Panel D", Kind: candidate.KindPanel},
		{ID: "2", Label: "Links Panel E", Kind: candidate.KindPanel},
		{ID: "3", Label: "Links Panels", Sublabel: "all link panels", Kind: candidate.KindPanel},
	})
}

func TestEvaluate(t *testing.T) {
	pool := linksPool()

	tests := []struct {
		name       string
		input      string
		mode       Mode
		outcome    Outcome
		confidence Confidence
		reason     Reason
		matched    string
	}{
		{"exact label", "Links Panel D", ModeDefault, OutcomeExecute, ConfidenceHigh, ReasonExactLabel, "1"},
		{"exact label with noise case", "  links   panel d ", ModeDefault, OutcomeExecute, ConfidenceHigh, ReasonExactLabel, "1"},
		{"exact sublabel", "All link panels", ModeDefault, OutcomeExecute, ConfidenceHigh, ReasonExactSublabel, "3"},
		{"polite verbose is soft", "pls show the Links Panel D thank you", ModeDefault, OutcomeLLM, ConfidenceMedium, ReasonSoftContains, "1"},
		{"canonical", "show me the links panel e", ModeDefault, OutcomeExecute, ConfidenceHigh, ReasonExactCanonical, "2"},
		{"canonical disabled in strict", "show me the links panel e", ModeStrict, OutcomeLLM, ConfidenceMedium, ReasonExactCanonical, "2"},
		{"ordinal", "the second one", ModeDefault, OutcomeExecute, ConfidenceHigh, ReasonOrdinal, "2"},
		{"ordinal last strict", "the last one", ModeStrict, OutcomeExecute, ConfidenceHigh, ReasonOrdinal, "3"},
		{"multiple soft", "link", ModeDefault, OutcomeLLM, ConfidenceLow, ReasonMultipleSoft, ""},
		{"starts with", "links panel d", ModeDefault, OutcomeExecute, ConfidenceHigh, ReasonExactLabel, "1"},
		{"no match", "weather report", ModeDefault, OutcomeLLM, ConfidenceNone, ReasonNoMatch, ""},
		{"empty input", "", ModeDefault, OutcomeLLM, ConfidenceNone, ReasonNoMatch, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.input, pool, tt.mode)
			require.NoError(t, d.Validate())
			assert.Equal(t, tt.outcome, d.Outcome)
			assert.Equal(t, tt.confidence, d.Confidence)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, tt.matched, d.MatchedCandidateID)
		})
	}
}

func TestEvaluateEmptyPoolClarifies(t *testing.T) {
	d := Evaluate("Links Panel D", candidate.NewPool(candidate.ChatScope(), nil), ModeDefault)
	assert.Equal(t, OutcomeClarify, d.Outcome)
	assert.Equal(t, ConfidenceNone, d.Confidence)
	assert.NoError(t, d.Validate())
}

func TestEvaluateDuplicateLabelsNeverExecute(t *testing.T) {
	pool := candidate.NewPool(candidate.ChatScope(), []candidate.Candidate{
		{ID: "a", Label: "Budget"},
		{ID: "b", Label: "budget"},
	})
	d := Evaluate("budget", pool, ModeDefault)
	assert.Equal(t, OutcomeLLM, d.Outcome)
	assert.Equal(t, ReasonMultipleExact, d.Reason)
	assert.ElementsMatch(t, []string{"a", "b"}, d.MatchedIDs)
}

func TestEvaluateSoftTiers(t *testing.T) {
	pool := candidate.NewPool(candidate.ChatScope(), []candidate.Candidate{
		{ID: "q", Label: "Quarterly Revenue Report"},
		{ID: "t", Label: "Team Roster"},
	})

	d := Evaluate("quarterly rev", pool, ModeDefault)
	assert.Equal(t, ReasonSoftStartsWith, d.Reason)
	assert.Equal(t, "q", d.MatchedCandidateID)

	d = Evaluate("the revenue report please", pool, ModeDefault)
	assert.Equal(t, ReasonSoftLabelContains, d.Reason)
	assert.Equal(t, ConfidenceMedium, d.Confidence)
}

// Every decision the gate can produce keeps execute <=> high.
func TestEvaluateInvariantHolds(t *testing.T) {
	pool := linksPool()
	inputs := []string{
		"", "a", "d", "links", "Links Panel", "links panels", "panel d please",
		"first", "the first one", "number 3", "#2", "option 9", "last", "open my last note from jon",
		"what is links panel d?", "from chat", "LINKS PANEL E", "all link panels", "yes",
	}
	for _, mode := range []Mode{ModeDefault, ModeStrict} {
		for _, in := range inputs {
			d := Evaluate(in, pool, mode)
			require.NoError(t, d.Validate(), "input %q mode %d", in, mode)
			if d.Outcome == OutcomeExecute {
				assert.True(t, pool.Contains(d.MatchedCandidateID))
			}
		}
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	pool := linksPool()
	for _, in := range []string{"pls show the Links Panel D thank you", "second", "link"} {
		assert.Equal(t, Evaluate(in, pool, ModeDefault), Evaluate(in, pool, ModeDefault))
	}
}

func TestMatchOrdinal(t *testing.T) {
	tests := []struct {
		input string
		mode  Mode
		want  int
		ok    bool
	}{
		{"first", ModeDefault, 0, true},
		{"pick the third option please", ModeDefault, 2, true},
		{"number 2", ModeStrict, 1, true},
		{"#3", ModeStrict, 2, true},
		{"2", ModeDefault, 1, true},
		{"2", ModeStrict, 0, false},
		{"the last one", ModeDefault, 2, true},
		{"open my last note", ModeDefault, 0, false},
		{"pick the second one", ModeStrict, 0, false},
		{"first or second", ModeDefault, 0, false},
		{"fifth", ModeDefault, 0, false},
		{"lastly", ModeDefault, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := MatchOrdinal(normalize.Tokens(tt.input), 3, tt.mode)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
