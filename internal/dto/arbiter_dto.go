package dto

import (
	"time"

	"ai-command-arbiter/pkg/arbiter/session"

	"github.com/google/uuid"
)

type ScopeDto struct {
	Kind string `json:"kind" validate:"required,oneof=chat widget dashboard workspace"`
	Id   string `json:"id"`
}

type CandidateDto struct {
	Id       string `json:"id" validate:"required"`
	Label    string `json:"label" validate:"required"`
	Sublabel string `json:"sublabel,omitempty"`
	Kind     string `json:"kind" validate:"required"`
	EntityId string `json:"entity_id,omitempty"`
}

// PoolDto is the host's candidate list for one scope, sent with the turn.
type PoolDto struct {
	Scope      ScopeDto       `json:"scope"`
	Candidates []CandidateDto `json:"candidates" validate:"dive"`
}

type SnapshotDto struct {
	ActiveWidgetId    string   `json:"active_widget_id"`
	ActivePanelId     string   `json:"active_panel_id"`
	ActiveDashboardId string   `json:"active_dashboard_id"`
	ActiveWorkspaceId string   `json:"active_workspace_id"`
	OpenWidgetIds     []string `json:"open_widget_ids"`
}

type SessionResponse struct {
	session.View
}

type SubmitTurnRequest struct {
	SessionId string
	UserId    string
	Utterance string      `json:"utterance" validate:"max=2000"`
	Snapshot  SnapshotDto `json:"snapshot"`
	Pools     []PoolDto   `json:"pools" validate:"max=16,dive"`
}

type ClarifierOptionDto struct {
	CandidateId string `json:"candidate_id,omitempty"`
	Label       string `json:"label"`
	Sublabel    string `json:"sublabel,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Scope       string `json:"scope,omitempty"`
	Suggested   bool   `json:"suggested,omitempty"`
}

type ClarifierDto struct {
	Id          string               `json:"id"`
	Type        string               `json:"type"`
	Prompt      string               `json:"prompt"`
	Options     []ClarifierOptionDto `json:"options"`
	OptionSetId string               `json:"option_set_id"`
}

type TurnResponse struct {
	Action      string        `json:"action"`
	CandidateId string        `json:"candidate_id,omitempty"`
	Candidate   *CandidateDto `json:"candidate,omitempty"`
	Scope       ScopeDto      `json:"scope"`
	Binding     string        `json:"binding,omitempty"`
	Confidence  string        `json:"confidence"`
	Clarifier   *ClarifierDto `json:"clarifier,omitempty"`
	Reason      string        `json:"reason"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	Replayed    bool          `json:"replayed"`
	Turn        int           `json:"turn"`
}

type ScopeOpenedRequest struct {
	SessionId string
	UserId    string
	Scope     ScopeDto `json:"scope"`
}

// --- Turn log DTOs ---

type TurnLogResponse struct {
	Id          uuid.UUID `json:"id"`
	SessionId   string    `json:"session_id"`
	Turn        int       `json:"turn"`
	Action      string    `json:"action"`
	CandidateId string    `json:"candidate_id,omitempty"`
	Scope       string    `json:"scope"`
	Reason      string    `json:"reason"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	LLMCalls    int       `json:"llm_calls"`
	Utterance   string    `json:"utterance"`
	Replayed    bool      `json:"replayed"`
	CreatedAt   time.Time `json:"created_at"`
}

type TurnLogPageResponse struct {
	Items  []*TurnLogResponse `json:"items"`
	Total  int64              `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

type TelemetryLogResponse struct {
	Id        string                 `json:"id"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}
