package candidate

import "strings"

// ScopeKind is the closed set of sources a command can be bound to.
type ScopeKind string

const (
	ScopeNone      ScopeKind = "none"
	ScopeChat      ScopeKind = "chat"
	ScopeWidget    ScopeKind = "widget"
	ScopeDashboard ScopeKind = "dashboard"
	ScopeWorkspace ScopeKind = "workspace"
)

// Valid reports whether k names a bindable source.
func (k ScopeKind) Valid() bool {
	switch k {
	case ScopeChat, ScopeWidget, ScopeDashboard, ScopeWorkspace:
		return true
	}
	return false
}

// Scope is a bound source: a kind plus, for widget/dashboard/workspace, the
// concrete target id.
type Scope struct {
	Kind ScopeKind `json:"kind"`
	ID   string    `json:"id,omitempty"`
}

func ChatScope() Scope {
	return Scope{Kind: ScopeChat}
}

func WidgetScope(id string) Scope {
	return Scope{Kind: ScopeWidget, ID: id}
}

func DashboardScope(id string) Scope {
	return Scope{Kind: ScopeDashboard, ID: id}
}

func WorkspaceScope(id string) Scope {
	return Scope{Kind: ScopeWorkspace, ID: id}
}

// String renders the scope as "kind" or "kind:id".
func (s Scope) String() string {
	if s.ID == "" {
		return string(s.Kind)
	}
	return string(s.Kind) + ":" + s.ID
}

func (s Scope) IsZero() bool {
	return s.Kind == "" || s.Kind == ScopeNone
}

func (s Scope) Equal(o Scope) bool {
	return s.Kind == o.Kind && s.ID == o.ID
}

// ParseScope is the inverse of Scope.String.
func ParseScope(raw string) Scope {
	kind, id, _ := strings.Cut(strings.TrimSpace(raw), ":")
	return Scope{Kind: ScopeKind(strings.ToLower(kind)), ID: id}
}

// Kind is the closed variant of selectable entity types. Every execution site
// must switch over it exhaustively.
type Kind string

const (
	KindChatOption    Kind = "chat_option"
	KindWidgetItem    Kind = "widget_item"
	KindWidget        Kind = "widget"
	KindPanel         Kind = "panel"
	KindDashboardView Kind = "dashboard_view"
	KindWorkspaceItem Kind = "workspace_item"
)

func (k Kind) Valid() bool {
	switch k {
	case KindChatOption, KindWidgetItem, KindWidget, KindPanel, KindDashboardView, KindWorkspaceItem:
		return true
	}
	return false
}

// EntityRef is the typed identity of the underlying entity, carried with the
// candidate from creation so nothing has to parse a composite key later.
type EntityRef struct {
	ScopeID  string `json:"scope_id"`
	EntityID string `json:"entity_id"`
}

// Candidate is one selectable entity for the current turn.
type Candidate struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Sublabel string    `json:"sublabel,omitempty"`
	Kind     Kind      `json:"kind"`
	Source   Scope     `json:"source"`
	Ref      EntityRef `json:"ref"`
}

// Snapshot is the host's view of what is currently active in the UI.
type Snapshot struct {
	ActiveWidgetID    string   `json:"active_widget_id,omitempty"`
	ActivePanelID     string   `json:"active_panel_id,omitempty"`
	ActiveDashboardID string   `json:"active_dashboard_id,omitempty"`
	ActiveWorkspaceID string   `json:"active_workspace_id,omitempty"`
	OpenWidgetIDs     []string `json:"open_widget_ids,omitempty"`
}

// Has reports whether the snapshot shows target as present.
func (s Snapshot) Has(target Scope) bool {
	switch target.Kind {
	case ScopeWidget:
		if target.ID == "" {
			return s.ActiveWidgetID != ""
		}
		if s.ActiveWidgetID == target.ID {
			return true
		}
		for _, id := range s.OpenWidgetIDs {
			if id == target.ID {
				return true
			}
		}
		return false
	case ScopeDashboard:
		return matchesActive(s.ActiveDashboardID, target.ID)
	case ScopeWorkspace:
		return matchesActive(s.ActiveWorkspaceID, target.ID)
	case ScopeChat:
		return true
	}
	return false
}

func matchesActive(active, want string) bool {
	if active == "" {
		return false
	}
	return want == "" || active == want
}

// ActiveScope is the live UI's notion of "currently active": the active
// widget, then the dashboard hosting the active panel, then the workspace,
// then chat.
func (s Snapshot) ActiveScope() Scope {
	switch {
	case s.ActiveWidgetID != "":
		return WidgetScope(s.ActiveWidgetID)
	case s.ActiveDashboardID != "":
		return DashboardScope(s.ActiveDashboardID)
	case s.ActiveWorkspaceID != "":
		return WorkspaceScope(s.ActiveWorkspaceID)
	default:
		return ChatScope()
	}
}

// ScopeFor binds a bare scope kind to the snapshot's concrete target.
func (s Snapshot) ScopeFor(kind ScopeKind) Scope {
	switch kind {
	case ScopeWidget:
		return WidgetScope(s.ActiveWidgetID)
	case ScopeDashboard:
		return DashboardScope(s.ActiveDashboardID)
	case ScopeWorkspace:
		return WorkspaceScope(s.ActiveWorkspaceID)
	default:
		return ChatScope()
	}
}
