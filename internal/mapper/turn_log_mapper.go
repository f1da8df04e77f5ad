package mapper

import (
	"encoding/json"

	"ai-command-arbiter/internal/entity"
	"ai-command-arbiter/internal/model"

	"gorm.io/datatypes"
)

type TurnLogMapper struct{}

func NewTurnLogMapper() *TurnLogMapper {
	return &TurnLogMapper{}
}

func (m *TurnLogMapper) ToEntity(t *model.TurnLog) *entity.TurnLog {
	if t == nil {
		return nil
	}

	var details map[string]interface{}
	if len(t.Details) > 0 {
		// a malformed column leaves Details nil rather than failing the read
		_ = json.Unmarshal(t.Details, &details)
	}

	return &entity.TurnLog{
		Id:          t.Id,
		SessionId:   t.SessionId,
		UserId:      t.UserId,
		Turn:        t.Turn,
		Epoch:       t.Epoch,
		Utterance:   t.Utterance,
		Action:      t.Action,
		CandidateId: deref(t.CandidateId),
		Scope:       t.Scope,
		Binding:     t.Binding,
		Confidence:  t.Confidence,
		Reason:      t.Reason,
		ErrorKind:   deref(t.ErrorKind),
		Replayed:    t.Replayed,
		LLMCalls:    t.LLMCalls,
		Details:     details,
		CreatedAt:   t.CreatedAt,
	}
}

func (m *TurnLogMapper) ToModel(t *entity.TurnLog) (*model.TurnLog, error) {
	if t == nil {
		return nil, nil
	}

	var details datatypes.JSON
	if t.Details != nil {
		raw, err := json.Marshal(t.Details)
		if err != nil {
			return nil, err
		}
		details = datatypes.JSON(raw)
	}

	return &model.TurnLog{
		Id:          t.Id,
		SessionId:   t.SessionId,
		UserId:      t.UserId,
		Turn:        t.Turn,
		Epoch:       t.Epoch,
		Utterance:   t.Utterance,
		Action:      t.Action,
		CandidateId: ref(t.CandidateId),
		Scope:       t.Scope,
		Binding:     t.Binding,
		Confidence:  t.Confidence,
		Reason:      t.Reason,
		ErrorKind:   ref(t.ErrorKind),
		Replayed:    t.Replayed,
		LLMCalls:    t.LLMCalls,
		Details:     details,
		CreatedAt:   t.CreatedAt,
	}, nil
}

func (m *TurnLogMapper) ToEntities(models []*model.TurnLog) []*entity.TurnLog {
	out := make([]*entity.TurnLog, len(models))
	for i, t := range models {
		out[i] = m.ToEntity(t)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
