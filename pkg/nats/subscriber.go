package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"ai-command-arbiter/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventHandler is a function that processes an event.
type EventHandler func(ctx context.Context, event events.Event) error

// Subscriber handles listening for events from NATS.
type Subscriber struct {
	nc   *nats.Conn
	js   jetstream.JetStream
	cons jetstream.ConsumeContext
}

func NewSubscriber(url string) (*Subscriber, error) {
	nc, js, err := connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{nc: nc, js: js}, nil
}

// Decode parses an envelope written by Publisher.Publish.
func Decode(data []byte) (events.BaseEvent, error) {
	var event events.BaseEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return events.BaseEvent{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return event, nil
}

// Subscribe registers a handler for a subject pattern. An empty durableName
// creates an ephemeral consumer that only sees new messages.
func (s *Subscriber) Subscribe(ctx context.Context, subject string, durableName string, handler EventHandler) error {
	cfg := jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	if durableName == "" {
		cfg.DeliverPolicy = jetstream.DeliverNewPolicy
	}

	consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, cfg)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		event, err := Decode(msg.Data())
		if err != nil {
			log.Printf("[ERROR] %s: %v", msg.Subject(), err)
			_ = msg.Term()
			return
		}

		if err := handler(ctx, event); err != nil {
			log.Printf("[ERROR] Handler failed for event %s: %v", msg.Subject(), err)
			_ = msg.Nak()
			return
		}

		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	s.cons = cons

	log.Printf("[INFO] Subscribed to %s (durable=%q)", subject, durableName)
	return nil
}

// Close stops consuming and closes the connection.
func (s *Subscriber) Close() {
	if s.cons != nil {
		s.cons.Stop()
	}
	if s.nc != nil {
		s.nc.Close()
	}
}
