package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
	platformrabbitmq "github.com/Apurer/costume-order-engine/internal/platform/rabbitmq"
)

var _ ports.EventPublisher = (*EventPublisher)(nil)

// Envelope is the message body published for every domain event.
type Envelope struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// EventPublisher publishes domain events to a topic exchange, routed by event name.
type EventPublisher struct {
	mu       sync.Mutex
	channel  platformrabbitmq.Channel
	exchange string
}

// NewEventPublisher publishes on an already declared exchange.
func NewEventPublisher(channel platformrabbitmq.Channel, exchange string) *EventPublisher {
	return &EventPublisher{channel: channel, exchange: exchange}
}

// Publish serializes one event. Channels are not safe for concurrent publishing.
func (p *EventPublisher) Publish(ctx context.Context, event domain.Event) error {
	if p == nil || p.channel == nil {
		return errors.New("rabbitmq publisher not configured")
	}
	if event == nil {
		return errors.New("event is nil")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.EventName(), err)
	}
	envelope := Envelope{
		ID:         eventID(event),
		Name:       event.EventName(),
		OccurredAt: event.OccurredAt().UTC(),
		Payload:    payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, p.exchange, envelope.Name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    envelope.ID,
		Timestamp:    envelope.OccurredAt,
		Type:         envelope.Name,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", envelope.Name, err)
	}
	return nil
}

// Close releases the channel.
func (p *EventPublisher) Close() error {
	if p == nil || p.channel == nil {
		return nil
	}
	return p.channel.Close()
}

func eventID(event domain.Event) string {
	switch e := event.(type) {
	case domain.OrderTransitioned:
		if e.ID != "" {
			return e.ID
		}
	case domain.LogisticsHandedOff:
		if e.ID != "" {
			return e.ID
		}
	}
	return uuid.NewString()
}
