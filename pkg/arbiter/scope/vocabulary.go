package scope

import "ai-command-arbiter/pkg/arbiter/candidate"

const fromTrigger = "from"

var triggers = map[string]bool{fromTrigger: true, "in": true}

var modifiers = map[string]bool{
	"the": true, "active": true, "current": true, "this": true, "that": true,
	"my": true, "open": true, "focused": true,
}

// vocabulary is the closed set of scope words, singular and plural.
var vocabulary = map[string]candidate.ScopeKind{
	"chat":         candidate.ScopeChat,
	"chats":        candidate.ScopeChat,
	"conversation": candidate.ScopeChat,
	"widget":       candidate.ScopeWidget,
	"widgets":      candidate.ScopeWidget,
	"dashboard":    candidate.ScopeDashboard,
	"dashboards":   candidate.ScopeDashboard,
	"workspace":    candidate.ScopeWorkspace,
	"workspaces":   candidate.ScopeWorkspace,
}

// kindOrder fixes the order of suggestions so clarifiers are stable.
var kindOrder = []candidate.ScopeKind{
	candidate.ScopeChat,
	candidate.ScopeWidget,
	candidate.ScopeDashboard,
	candidate.ScopeWorkspace,
}

// stopwords are never treated as misspelled scope or trigger words: they are
// common English within edit distance of "chat" or "from".
var stopwords = map[string]bool{
	"that": true, "this": true, "what": true, "them": true, "then": true,
	"than": true, "with": true, "when": true, "each": true, "it": true,
	"its": true, "cat": true, "chap": true, "char": true, "chart": true,
	"charts": true, "wide": true, "for": true, "form": true, "forms": true,
	"frog": true, "prom": true, "room": true, "roam": true, "fro": true,
}

// Phrase is the canonical wording used when a resolved scope is appended
// back onto a command.
func Phrase(kind candidate.ScopeKind) string {
	switch kind {
	case candidate.ScopeWidget:
		return "active widget"
	case candidate.ScopeDashboard:
		return "dashboard"
	case candidate.ScopeWorkspace:
		return "workspace"
	default:
		return "chat"
	}
}
