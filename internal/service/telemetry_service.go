package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-command-arbiter/internal/pkg/logger"
	"ai-command-arbiter/pkg/arbiter/engine"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const TelemetryTopic = "arbiter.telemetry"

// TelemetryMessage is the payload carried on the in-process bus.
type TelemetryMessage struct {
	Name       string                 `json:"name"`
	Fields     map[string]interface{} `json:"fields"`
	OccurredAt time.Time              `json:"occurred_at"`
}

type ITelemetryService interface {
	engine.Telemetry
}

type telemetryService struct {
	publisher message.Publisher
	topic     string
	logger    logger.ILogger
}

func NewTelemetryService(publisher message.Publisher, topic string, log logger.ILogger) ITelemetryService {
	if topic == "" {
		topic = TelemetryTopic
	}
	return &telemetryService{publisher: publisher, topic: topic, logger: log}
}

// Emit never blocks the turn on a subscriber and never fails it.
func (s *telemetryService) Emit(_ context.Context, name string, fields map[string]interface{}) {
	payload, err := json.Marshal(TelemetryMessage{Name: name, Fields: fields, OccurredAt: time.Now()})
	if err != nil {
		s.logger.Warn("TELEMETRY", "Failed to encode telemetry event", map[string]interface{}{
			"event": name,
			"error": err.Error(),
		})
		return
	}

	if err := s.publisher.Publish(s.topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		s.logger.Warn("TELEMETRY", "Failed to publish telemetry event", map[string]interface{}{
			"event": name,
			"error": err.Error(),
		})
	}
}
