package normalize

import (
	"strconv"
	"strings"
)

// LastOrdinal is the value OrdinalValue returns for "last".
const LastOrdinal = -1

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"1st": 1, "2nd": 2, "3rd": 3, "4th": 4, "5th": 5,
	"6th": 6, "7th": 7, "8th": 8, "9th": 9, "10th": 10,
	"last": LastOrdinal,
}

// ordinalMarkers introduce a bare number: "number 2", "option 2", "item 2".
var ordinalMarkers = set("number", "option", "item", "choice", "no")

var affirmations = set(
	"yes", "yeah", "yep", "yup", "ya", "y", "ok", "okay", "k", "sure",
	"correct", "right", "confirm", "confirmed", "affirmative",
)

var negations = set("no", "nope", "nah", "not", "wrong")

// referents stand for "the thing you just offered".
var referents = set("that", "this", "it", "one", "them", "those")

var questionWords = set(
	"what", "which", "why", "how", "where", "when", "who", "whose",
	"is", "are", "does", "did", "do", "can", "could",
)

// OrdinalValue parses a single ordinal token. "last" yields LastOrdinal.
func OrdinalValue(tok string) (int, bool) {
	v, ok := ordinalWords[tok]
	return v, ok
}

// NumberAfterMarker parses "number 3" style pairs starting at toks[i]. It
// returns the value and how many tokens were consumed.
func NumberAfterMarker(toks []string, i int) (int, int, bool) {
	if i+1 >= len(toks) || !ordinalMarkers[toks[i]] {
		return 0, 0, false
	}
	n, err := strconv.Atoi(toks[i+1])
	if err != nil || n <= 0 {
		return 0, 0, false
	}
	return n, 2, true
}

// IsAffirmation reports whether tok is a confirmation word.
func IsAffirmation(tok string) bool {
	return affirmations[tok]
}

// StripAffirmation removes a leading run of affirmation and politeness tokens.
// The remainder is returned normalized.
func StripAffirmation(s string) (string, bool) {
	toks := Tokens(s)
	i := 0
	for i < len(toks) && (affirmations[toks[i]] || toks[i] == "please" || toks[i] == "pls") {
		i++
	}
	affirmed := false
	for _, t := range toks[:i] {
		if affirmations[t] {
			affirmed = true
			break
		}
	}
	return Join(toks[i:]), affirmed
}

// StripNegation removes a leading "no / not that one" run. The remainder is
// what the user named instead, if anything.
func StripNegation(s string) (string, bool) {
	toks := Tokens(s)
	if len(toks) == 0 || !negations[toks[0]] {
		return Join(toks), false
	}
	// "no 2" is an ordinal marker, not a rejection
	if toks[0] == "no" && len(toks) == 2 {
		if _, err := strconv.Atoi(toks[1]); err == nil {
			return Join(toks), false
		}
	}

	i := 0
	for i < len(toks) && (negations[toks[i]] || referents[toks[i]] || articles[toks[i]]) {
		i++
	}
	return Join(toks[i:]), true
}

// IsReferent reports whether every token of s is a referent or article
// ("that one", "this").
func IsReferent(s string) bool {
	toks := Tokens(s)
	if len(toks) == 0 {
		return false
	}
	for _, t := range toks {
		if !referents[t] && !articles[t] {
			return false
		}
	}
	return true
}

// IsQuestion reports whether the raw utterance reads as a question rather
// than a command.
func IsQuestion(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	toks := Tokens(trimmed)
	return len(toks) > 0 && questionWords[toks[0]]
}

// IsArticle reports whether tok is an article.
func IsArticle(tok string) bool {
	return articles[tok]
}
