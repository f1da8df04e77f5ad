package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type TurnLog struct {
	Id          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId   string         `gorm:"type:varchar(64);not null;index:idx_turn_logs_session_turn,priority:1"`
	UserId      string         `gorm:"type:varchar(64);not null;index"`
	Turn        int            `gorm:"not null;index:idx_turn_logs_session_turn,priority:2"`
	Epoch       int            `gorm:"not null;default:0"`
	Utterance   string         `gorm:"type:text;not null"`
	Action      string         `gorm:"type:varchar(20);not null;index"`
	CandidateId *string        `gorm:"type:varchar(128)"`
	Scope       string         `gorm:"type:varchar(128);not null"`
	Binding     string         `gorm:"type:varchar(20)"`
	Confidence  string         `gorm:"type:varchar(20)"`
	Reason      string         `gorm:"type:varchar(64);not null"`
	ErrorKind   *string        `gorm:"type:varchar(64)"`
	Replayed    bool           `gorm:"not null;default:false"`
	LLMCalls    int            `gorm:"column:llm_calls;not null;default:0"`
	Details     datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;index"`
}

func (TurnLog) TableName() string {
	return "arbiter_turn_logs"
}
