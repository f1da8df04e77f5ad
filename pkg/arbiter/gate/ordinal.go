package gate

import (
	"strconv"

	"ai-command-arbiter/pkg/arbiter/normalize"
)

// ordinalFiller may surround an ordinal in default mode ("pick the second one
// please"). Anything else next to the ordinal makes it incidental.
var ordinalFiller = map[string]bool{
	"the": true, "a": true, "one": true, "option": true, "item": true,
	"entry": true, "choice": true, "result": true, "please": true, "pls": true,
	"select": true, "pick": true, "choose": true, "open": true, "show": true,
	"go": true, "to": true, "take": true, "me": true, "i": true, "want": true,
	"like": true, "id": true, "lets": true, "use": true, "with": true,
}

// MatchOrdinal resolves an ordinal reference to a zero-based pool index.
// Ordinals are whole tokens only. In strict mode the utterance, minus
// articles and "one", must be nothing but the ordinal.
func MatchOrdinal(toks []string, size int, mode Mode) (int, bool) {
	if size == 0 || len(toks) == 0 {
		return 0, false
	}

	value, found := 0, 0
	for i := 0; i < len(toks); i++ {
		if v, ok := normalize.OrdinalValue(toks[i]); ok {
			value, found = v, found+1
			continue
		}
		if v, used, ok := normalize.NumberAfterMarker(toks, i); ok {
			value, found = v, found+1
			i += used - 1
			continue
		}
		if len(toks) == 1 && mode == ModeDefault {
			if n, err := strconv.Atoi(toks[0]); err == nil && n > 0 {
				value, found = n, found+1
				continue
			}
		}

		tok := toks[i]
		if mode == ModeStrict {
			if normalize.IsArticle(tok) || tok == "one" {
				continue
			}
			return 0, false
		}
		if !ordinalFiller[tok] {
			return 0, false
		}
	}

	if found != 1 {
		return 0, false
	}
	if value == normalize.LastOrdinal {
		return size - 1, true
	}
	if value < 1 || value > size {
		return 0, false
	}
	return value - 1, true
}
