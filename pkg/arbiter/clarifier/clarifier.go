// Package clarifier builds the structured "did you mean" message returned
// whenever a turn cannot be resolved safely.
package clarifier

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ai-command-arbiter/pkg/arbiter/arbiterr"
	"ai-command-arbiter/pkg/arbiter/candidate"
	"ai-command-arbiter/pkg/arbiter/scope"
)

type Type string

const (
	TypeCandidateChoice Type = "candidate_choice"
	TypeScopeTypo       Type = "scope_typo"
	TypeScopeOnly       Type = "scope_only"
	TypeScopeConflict   Type = "scope_conflict"
	TypePoolEmpty       Type = "pool_empty"
)

const DefaultMaxOptions = 5

// Option is one selectable pill. Candidate options carry the candidate id;
// scope options carry the scope kind.
type Option struct {
	CandidateID string              `json:"candidate_id,omitempty"`
	Label       string              `json:"label"`
	Sublabel    string              `json:"sublabel,omitempty"`
	Kind        candidate.Kind      `json:"kind,omitempty"`
	Scope       candidate.ScopeKind `json:"scope,omitempty"`
	Suggested   bool                `json:"suggested,omitempty"`
}

type Message struct {
	ID          string          `json:"id"`
	Type        Type            `json:"type"`
	Prompt      string          `json:"prompt"`
	Options     []Option        `json:"options"`
	OptionSetID string          `json:"option_set_id"`
	Scope       candidate.Scope `json:"scope"`
	ErrorKind   arbiterr.Kind   `json:"error_kind,omitempty"`
	SuggestedID string          `json:"suggested_id,omitempty"`
}

// OptionIDs returns the candidate ids offered, in order.
func (m Message) OptionIDs() []string {
	ids := make([]string, 0, len(m.Options))
	for _, o := range m.Options {
		if o.CandidateID != "" {
			ids = append(ids, o.CandidateID)
		}
	}
	return ids
}

type Builder struct {
	maxOptions int
}

func NewBuilder(maxOptions int) *Builder {
	if maxOptions <= 0 {
		maxOptions = DefaultMaxOptions
	}
	return &Builder{maxOptions: maxOptions}
}

// CandidateRequest describes a candidate clarifier.
type CandidateRequest struct {
	Pool candidate.Pool

	// Preferred ids are listed first (gate matches), in pool order.
	Preferred []string

	// Suggested is pinned first and flagged.
	Suggested string

	// Exclude ids are never offered (rejected choices). The option set is
	// still identified by the whole pool.
	Exclude []string

	Kind arbiterr.Kind

	// OptionSetID replaces the pool fingerprint as the set identity. Set it
	// when Pool carries enrichment the next turn will not rebuild.
	OptionSetID string

	// EmptyCommand marks a bare scope cue with nothing to act on.
	EmptyCommand bool
}

// Candidates builds a candidate-choice clarifier. Options only ever come from
// req.Pool.
func (b *Builder) Candidates(req CandidateRequest) Message {
	order := make([]candidate.Candidate, 0, req.Pool.Len())
	seen := make(map[string]bool, req.Pool.Len())
	for _, id := range req.Exclude {
		seen[id] = true
	}
	add := func(c candidate.Candidate) {
		if !seen[c.ID] {
			seen[c.ID] = true
			order = append(order, c)
		}
	}

	if c, ok := req.Pool.Get(req.Suggested); ok {
		add(c)
	}
	for _, c := range req.Pool.Subset(req.Preferred).Candidates {
		add(c)
	}
	for _, c := range req.Pool.Candidates {
		add(c)
	}
	if len(order) > b.maxOptions {
		order = order[:b.maxOptions]
	}

	opts := make([]Option, 0, len(order))
	for _, c := range order {
		opts = append(opts, Option{
			CandidateID: c.ID,
			Label:       c.Label,
			Sublabel:    c.Sublabel,
			Kind:        c.Kind,
			Suggested:   c.ID == req.Suggested,
		})
	}

	suggested := suggestedIfOffered(req.Suggested, opts)
	setID := req.OptionSetID
	if setID == "" {
		setID = candidate.Fingerprint(req.Pool)
	}
	return Message{
		ID:          uuid.NewString(),
		Type:        TypeCandidateChoice,
		Prompt:      candidatePrompt(req, suggested),
		Options:     opts,
		OptionSetID: setID,
		Scope:       req.Pool.Source,
		ErrorKind:   req.Kind,
		SuggestedID: suggested,
	}
}

// ScopeTypo asks whether a misspelled scope cue meant one of suggested.
func (b *Builder) ScopeTypo(suggested []candidate.ScopeKind, token string) Message {
	opts := scopeOptions(suggested)
	prompt := fmt.Sprintf("Did you mean %s?", joinOr(opts))
	if token != "" {
		prompt = fmt.Sprintf("I'm not sure what %q refers to. Did you mean %s?", token, joinOr(opts))
	}
	return b.scopeMessage(TypeScopeTypo, prompt, opts, arbiterr.KindScopeAmbiguous)
}

// ScopeOnly is the narrow follow-up when the answer to a scope clarifier was
// itself unclear. It never creates a new pending replay.
func (b *Builder) ScopeOnly(suggested []candidate.ScopeKind) Message {
	opts := scopeOptions(suggested)
	return b.scopeMessage(TypeScopeOnly, fmt.Sprintf("Which one: %s?", joinOr(opts)), opts, arbiterr.KindScopeAmbiguous)
}

// Conflict is returned when two different scopes were named explicitly.
func (b *Builder) Conflict(kinds []candidate.ScopeKind) Message {
	opts := scopeOptions(kinds)
	return b.scopeMessage(TypeScopeConflict, fmt.Sprintf("You mentioned more than one place. Should I look %s?", joinOr(opts)), opts, arbiterr.KindScopeAmbiguous)
}

// PoolEmpty reports that the bound scope has nothing to pick from. It never
// offers candidates from another scope.
func (b *Builder) PoolEmpty(s candidate.Scope) Message {
	return Message{
		ID:        uuid.NewString(),
		Type:      TypePoolEmpty,
		Prompt:    fmt.Sprintf("There is nothing to pick from in the %s right now.", scope.Phrase(s.Kind)),
		Options:   []Option{},
		Scope:     s,
		ErrorKind: arbiterr.KindPoolEmpty,
	}
}

func (b *Builder) scopeMessage(t Type, prompt string, opts []Option, kind arbiterr.Kind) Message {
	ids := make([]string, 0, len(opts))
	for _, o := range opts {
		ids = append(ids, string(o.Scope))
	}
	if len(opts) > b.maxOptions {
		opts = opts[:b.maxOptions]
	}
	return Message{
		ID:          uuid.NewString(),
		Type:        t,
		Prompt:      prompt,
		Options:     opts,
		OptionSetID: "scopes:" + strings.Join(ids, ","),
		ErrorKind:   kind,
	}
}

func candidatePrompt(req CandidateRequest, suggested string) string {
	where := scope.Phrase(req.Pool.Source.Kind)
	switch {
	case req.EmptyCommand:
		return fmt.Sprintf("What would you like from the %s?", where)
	case req.Kind == arbiterr.KindExecutionFailed:
		return "That didn't work. Which one should I try?"
	case suggested != "":
		return "Did you mean this one?"
	default:
		return "Which one did you mean?"
	}
}

func scopeOptions(kinds []candidate.ScopeKind) []Option {
	opts := make([]Option, 0, len(kinds))
	for _, k := range kinds {
		opts = append(opts, Option{Label: "from " + scope.Phrase(k), Scope: k})
	}
	return opts
}

func joinOr(opts []Option) string {
	labels := make([]string, 0, len(opts))
	for _, o := range opts {
		labels = append(labels, fmt.Sprintf("%q", o.Label))
	}
	switch len(labels) {
	case 0:
		return "another place"
	case 1:
		return labels[0]
	default:
		return strings.Join(labels[:len(labels)-1], ", ") + " or " + labels[len(labels)-1]
	}
}

func suggestedIfOffered(id string, opts []Option) string {
	for _, o := range opts {
		if o.CandidateID == id && id != "" {
			return id
		}
	}
	return ""
}
