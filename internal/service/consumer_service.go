package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-command-arbiter/internal/entity"
	"ai-command-arbiter/internal/pkg/logger"
	"ai-command-arbiter/internal/repository/contract"
	"ai-command-arbiter/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// EventPublisher forwards events off the process. *nats.Publisher satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber   message.Subscriber
	topicName    string
	turnLogs     contract.TurnLogRepository
	forwarder    EventPublisher
	telemetryLog logger.ILogger
	logger       logger.ILogger
}

// NewConsumerService drains the telemetry topic. turnLogs and forwarder are
// optional; a nil one is skipped.
func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	turnLogs contract.TurnLogRepository,
	forwarder EventPublisher,
	telemetryLog logger.ILogger,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber:   subscriber,
		topicName:    topicName,
		turnLogs:     turnLogs,
		forwarder:    forwarder,
		telemetryLog: telemetryLog,
		logger:       log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage always acks: telemetry is best effort and a redelivery loop
// against a dead database would only pile up.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var payload TelemetryMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("TELEMETRY", "Failed to unmarshal telemetry message", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		return
	}

	cs.telemetryLog.Info(events.ArbiterPrefix+payload.Name, payload.Name, payload.Fields)

	if payload.Name == events.TurnResolved && cs.turnLogs != nil {
		if err := cs.turnLogs.Create(ctx, turnLogFromFields(payload.Fields, payload.OccurredAt)); err != nil {
			cs.logger.Error("TELEMETRY", "Failed to persist turn log", map[string]interface{}{
				"session_id": payload.Fields["session_id"],
				"error":      err.Error(),
			})
		}
	}

	if cs.forwarder != nil {
		fwdCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := cs.forwarder.Publish(fwdCtx, events.NewArbiterEvent(payload.Name, payload.Fields, payload.OccurredAt)); err != nil {
			cs.logger.Warn("TELEMETRY", "Failed to forward telemetry event", map[string]interface{}{
				"event": payload.Name,
				"error": err.Error(),
			})
		}
	}
}

func turnLogFromFields(f map[string]interface{}, at time.Time) *entity.TurnLog {
	return &entity.TurnLog{
		Id:          uuid.New(),
		SessionId:   stringField(f, "session_id"),
		UserId:      stringField(f, "user_id"),
		Turn:        intField(f, "turn"),
		Epoch:       intField(f, "epoch"),
		Utterance:   stringField(f, "utterance"),
		Action:      stringField(f, "action"),
		CandidateId: stringField(f, "candidate_id"),
		Scope:       stringField(f, "scope"),
		Binding:     stringField(f, "binding"),
		Confidence:  stringField(f, "confidence"),
		Reason:      stringField(f, "reason"),
		ErrorKind:   stringField(f, "error_kind"),
		Replayed:    boolField(f, "replayed"),
		LLMCalls:    intField(f, "llm_calls"),
		Details:     f,
		CreatedAt:   at,
	}
}

func stringField(f map[string]interface{}, key string) string {
	s, _ := f[key].(string)
	return s
}

// intField accepts float64 because fields have been through JSON.
func intField(f map[string]interface{}, key string) int {
	switch v := f[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func boolField(f map[string]interface{}, key string) bool {
	b, _ := f[key].(bool)
	return b
}
