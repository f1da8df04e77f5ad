// Package scope finds explicit scope cues ("from the active widget") in an
// utterance and binds the turn to exactly one source.
package scope

import (
	"github.com/agnivade/levenshtein"

	"ai-command-arbiter/pkg/arbiter/candidate"
	"ai-command-arbiter/pkg/arbiter/normalize"
)

type Confidence string

const (
	ConfidenceHigh      Confidence = "high"
	ConfidenceLowTypo   Confidence = "low_typo"
	ConfidenceUncertain Confidence = "scope_uncertain"
	ConfidenceNone      Confidence = "none"
)

// maxLookahead bounds how far after a trigger the scope word may appear.
const maxLookahead = 4

// Config holds the edit-distance policy. Values are tuning knobs, not
// semantics: the typo tier must stay tighter than the uncertain tier.
type Config struct {
	TypoDistance      int
	UncertainDistance int
}

func DefaultConfig() Config {
	return Config{TypoDistance: 1, UncertainDistance: 2}
}

// Result is produced fresh per turn and never persisted.
type Result struct {
	Scope           candidate.ScopeKind   `json:"scope"`
	Confidence      Confidence            `json:"confidence"`
	StrippedInput   string                `json:"stripped_input"`
	NamedHint       string                `json:"named_hint,omitempty"`
	HasConflict     bool                  `json:"has_conflict"`
	SuggestedScopes []candidate.ScopeKind `json:"suggested_scopes,omitempty"`
	DetectedToken   string                `json:"detected_token,omitempty"`
}

// Ambiguous is true for the typo tiers, which must always clarify.
func (r Result) Ambiguous() bool {
	return r.Confidence == ConfidenceLowTypo || r.Confidence == ConfidenceUncertain
}

// Explicit is true when a single scope was named with high confidence.
func (r Result) Explicit() bool {
	return r.Confidence == ConfidenceHigh && r.Scope.Valid() && !r.HasConflict
}

type cue struct {
	start, end int
	kinds      []candidate.ScopeKind
	hint       string
	token      string
}

type Resolver struct {
	cfg Config
}

func NewResolver(cfg Config) *Resolver {
	if cfg.TypoDistance <= 0 {
		cfg.TypoDistance = DefaultConfig().TypoDistance
	}
	if cfg.UncertainDistance < cfg.TypoDistance {
		cfg.UncertainDistance = cfg.TypoDistance
	}
	return &Resolver{cfg: cfg}
}

// Resolve parses scope cues out of input.
func (r *Resolver) Resolve(input string) Result {
	return r.resolve(normalize.Tokens(input), false)
}

// ResolveReplay is Resolve for the answer to a scope clarifier. It accepts a
// one-edit trigger correction ("rom widget") and a bare scope phrase
// ("the active widget") as high confidence.
func (r *Resolver) ResolveReplay(input string) Result {
	return r.resolve(normalize.Tokens(input), true)
}

func (r *Resolver) resolve(toks []string, replay bool) Result {
	exact, typo, uncertain := r.findCues(toks, replay)

	switch {
	case len(exact) > 0:
		kinds := distinctKinds(exact)
		if len(kinds) > 1 {
			return Result{
				Scope:           candidate.ScopeNone,
				Confidence:      ConfidenceNone,
				StrippedInput:   strip(toks, exact),
				HasConflict:     true,
				SuggestedScopes: kinds,
			}
		}
		return Result{
			Scope:         kinds[0],
			Confidence:    ConfidenceHigh,
			StrippedInput: strip(toks, exact),
			NamedHint:     exact[0].hint,
			DetectedToken: exact[0].token,
		}
	case len(typo) > 0:
		return ambiguous(toks, typo, ConfidenceLowTypo)
	case len(uncertain) > 0:
		return ambiguous(toks, uncertain, ConfidenceUncertain)
	}

	if replay {
		if res, ok := barePhrase(toks); ok {
			return res
		}
	}
	return Result{Scope: candidate.ScopeNone, Confidence: ConfidenceNone, StrippedInput: normalize.Join(toks)}
}

func ambiguous(toks []string, cues []cue, conf Confidence) Result {
	kinds := distinctKinds(cues)
	return Result{
		Scope:           kinds[0],
		Confidence:      conf,
		StrippedInput:   strip(toks, cues),
		NamedHint:       cues[0].hint,
		SuggestedScopes: kinds,
		DetectedToken:   cues[0].token,
	}
}

func (r *Resolver) findCues(toks []string, replay bool) (exact, typo, uncertain []cue) {
	for i := 0; i < len(toks); i++ {
		trigExact := triggers[toks[i]]
		trigDist := 0
		if !trigExact {
			var ok bool
			if trigDist, ok = r.fuzzyTrigger(toks[i]); !ok {
				continue
			}
		}

		hint := ""
		for j := i + 1; j < len(toks) && j <= i+maxLookahead; j++ {
			w := toks[j]
			if kind, ok := vocabulary[w]; ok {
				c := cue{start: i, end: j, kinds: []candidate.ScopeKind{kind}, hint: hint, token: w}
				switch {
				case trigExact:
					exact = append(exact, c)
				case replay && trigDist <= r.cfg.TypoDistance:
					exact = append(exact, c)
				default:
					uncertain = append(uncertain, c)
				}
				i = j
				break
			}
			if kinds := near(w, r.cfg.TypoDistance); len(kinds) > 0 && trigExact {
				typo = append(typo, cue{start: i, end: j, kinds: kinds, hint: hint, token: w})
				i = j
				break
			}
			if kinds := near(w, r.cfg.UncertainDistance); len(kinds) > 0 {
				uncertain = append(uncertain, cue{start: i, end: j, kinds: kinds, hint: hint, token: w})
				i = j
				break
			}
			if modifiers[w] {
				continue
			}
			if hint == "" && !triggers[w] {
				hint = w
				continue
			}
			break
		}
	}
	return exact, typo, uncertain
}

// fuzzyTrigger matches misspellings of "from". "in" is too short to correct.
func (r *Resolver) fuzzyTrigger(tok string) (int, bool) {
	if len(tok) < 3 || stopwords[tok] || modifiers[tok] {
		return 0, false
	}
	if _, ok := vocabulary[tok]; ok {
		return 0, false
	}
	d := levenshtein.ComputeDistance(tok, fromTrigger)
	return d, d <= r.cfg.UncertainDistance
}

// near returns the scope kinds whose vocabulary words are within maxDist of
// w. Exact vocabulary words never reach here.
func near(w string, maxDist int) []candidate.ScopeKind {
	if len(w) < 3 || stopwords[w] || modifiers[w] || triggers[w] {
		return nil
	}
	hit := make(map[candidate.ScopeKind]bool)
	for v, kind := range vocabulary {
		if levenshtein.ComputeDistance(w, v) <= maxDist {
			hit[kind] = true
		}
	}
	return ordered(hit)
}

// barePhrase accepts "widget", "the active widget", "my links widget".
func barePhrase(toks []string) (Result, bool) {
	var (
		kind  candidate.ScopeKind
		token string
		hint  string
		found int
	)
	for _, t := range toks {
		if k, ok := vocabulary[t]; ok {
			kind, token = k, t
			found++
			continue
		}
		if modifiers[t] {
			continue
		}
		if hint == "" {
			hint = t
			continue
		}
		return Result{}, false
	}
	if found != 1 {
		return Result{}, false
	}
	return Result{
		Scope:         kind,
		Confidence:    ConfidenceHigh,
		NamedHint:     hint,
		DetectedToken: token,
	}, true
}

func distinctKinds(cues []cue) []candidate.ScopeKind {
	hit := make(map[candidate.ScopeKind]bool)
	for _, c := range cues {
		for _, k := range c.kinds {
			hit[k] = true
		}
	}
	return ordered(hit)
}

func ordered(hit map[candidate.ScopeKind]bool) []candidate.ScopeKind {
	if len(hit) == 0 {
		return nil
	}
	out := make([]candidate.ScopeKind, 0, len(hit))
	for _, k := range kindOrder {
		if hit[k] {
			out = append(out, k)
		}
	}
	return out
}

func strip(toks []string, cues []cue) string {
	drop := make([]bool, len(toks))
	for _, c := range cues {
		for k := c.start; k <= c.end; k++ {
			drop[k] = true
		}
	}
	kept := make([]string, 0, len(toks))
	for i, t := range toks {
		if !drop[i] {
			kept = append(kept, t)
		}
	}
	return normalize.Join(kept)
}
