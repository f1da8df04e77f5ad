// Package normalize turns raw utterances and candidate labels into comparable
// token streams. Everything here is pure and allocation-light; the gate, the
// scope resolver and the replay resolver all share it so they agree on what
// "the same words" means.
package normalize

import (
	"sort"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var articles = set("a", "an", "the")

// commandVerbs are stripped from the front of an utterance before canonical
// comparison. Politeness is deliberately absent: "pls ... thank you" must
// not canonicalize to a bare label.
var commandVerbs = set(
	"open", "show", "go", "to", "display", "select", "pick", "choose",
	"view", "switch", "launch", "take", "me", "bring", "up",
)

// lightFiller is trimmed from both ends by Light.
var lightFiller = set(
	"please", "pls", "plz", "kindly", "can", "could", "would", "you", "show",
	"open", "me", "the", "a", "an", "go", "to", "thanks", "thank", "thx",
	"now", "for", "just", "display", "select", "pick", "choose", "view",
)

// Text applies NFKC, case folding, punctuation-to-space and whitespace
// collapse. "#3" becomes "number 3" so ordinals survive punctuation removal.
func Text(s string) string {
	// A Caser is stateful, so one per call.
	s = cases.Fold().String(norm.NFKC.String(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '#':
			b.WriteString(" number ")
		case r == '\'' || r == '’':
			// don't -> dont
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens is Text split on whitespace.
func Tokens(s string) []string {
	return strings.Fields(Text(s))
}

// Join is the inverse of Tokens for already-normalized tokens.
func Join(tokens []string) string {
	return strings.Join(tokens, " ")
}

// CanonicalTokens returns the sorted, de-duplicated, singularized token set of
// an utterance with articles removed everywhere and a leading run of command
// verbs removed.
func CanonicalTokens(s string) []string {
	toks := Tokens(s)
	i := 0
	for i < len(toks) && (commandVerbs[toks[i]] || articles[toks[i]]) {
		i++
	}
	return canonicalSet(toks[i:])
}

// LabelTokens is CanonicalTokens for a candidate label: only articles are
// removed, a label that starts with a verb keeps it.
func LabelTokens(label string) []string {
	return canonicalSet(Tokens(label))
}

func canonicalSet(toks []string) []string {
	seen := make(map[string]bool, len(toks))
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		if articles[t] {
			continue
		}
		t = inflection.Singular(t)
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// SameSet reports whether two canonical token sets are equal.
func SameSet(a, b []string) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Light is the normalization handed to the language model and reused by the
// post-decision canonical check: Text plus trimming of politeness and command
// filler from both ends.
func Light(s string) string {
	toks := Tokens(s)
	start, end := 0, len(toks)
	for start < end && lightFiller[toks[start]] {
		start++
	}
	for end > start && lightFiller[toks[end-1]] {
		end--
	}
	return Join(toks[start:end])
}

// ContainsPhrase reports whether phrase occurs in text on token boundaries.
// Both arguments must already be normalized.
func ContainsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
