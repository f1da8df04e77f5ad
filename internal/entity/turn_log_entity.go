package entity

import (
	"time"

	"github.com/google/uuid"
)

// TurnLog is the audit record of one resolved turn.
type TurnLog struct {
	Id          uuid.UUID
	SessionId   string
	UserId      string
	Turn        int
	Epoch       int
	Utterance   string
	Action      string
	CandidateId string
	Scope       string
	Binding     string
	Confidence  string
	Reason      string
	ErrorKind   string
	Replayed    bool
	LLMCalls    int
	Details     map[string]interface{}
	CreatedAt   time.Time
}
