package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	platformrabbitmq "github.com/Apurer/costume-order-engine/internal/platform/rabbitmq"
)

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return m.Called(name, kind, durable, autoDelete, internal, noWait, args).Error(0)
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(ctx, exchange, key, mandatory, immediate, msg).Error(0)
}

func (m *mockChannel) Close() error {
	return m.Called().Error(0)
}

func TestEventPublisher_PublishesEnvelope(t *testing.T) {
	ch := &mockChannel{}
	var published amqp.Publishing
	ch.On("PublishWithContext", mock.Anything, "orders.events", "orders.order.approve", false, false, mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(5).(amqp.Publishing) }).
		Return(nil).Once()

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	event := domain.OrderTransitioned{
		BaseEvent:  domain.BaseEvent{ID: "evt-1", Timestamp: at},
		Ref:        domain.OrderRef{ID: "o1"},
		Transition: domain.TransitionApprove,
		FromStatus: domain.StatusPending,
		ToStatus:   domain.StatusApproved,
		ActorID:    "admin-1",
	}
	require.NoError(t, NewEventPublisher(ch, "orders.events").Publish(context.Background(), event))
	ch.AssertExpectations(t)

	require.Equal(t, "evt-1", published.MessageId)
	require.Equal(t, amqp.Persistent, published.DeliveryMode)
	var envelope Envelope
	require.NoError(t, json.Unmarshal(published.Body, &envelope))
	require.Equal(t, "orders.order.approve", envelope.Name)
	require.Equal(t, at, envelope.OccurredAt)

	var payload domain.OrderTransitioned
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	require.Equal(t, "admin-1", payload.ActorID)
}

func TestEventPublisher_WrapsBrokerErrors(t *testing.T) {
	ch := &mockChannel{}
	ch.On("PublishWithContext", mock.Anything, "orders.events", "orders.logistics.handed_off", false, false, mock.Anything).
		Return(errors.New("channel closed")).Once()

	err := NewEventPublisher(ch, "orders.events").Publish(context.Background(), domain.LogisticsHandedOff{Ref: domain.OrderRef{ID: "o1"}})
	require.ErrorContains(t, err, "channel closed")

	require.Error(t, (*EventPublisher)(nil).Publish(context.Background(), domain.LogisticsHandedOff{}))
}

func TestDeclareTopicExchange(t *testing.T) {
	ch := &mockChannel{}
	ch.On("ExchangeDeclare", "orders.events", amqp.ExchangeTopic, true, false, false, false, amqp.Table(nil)).Return(nil).Once()

	require.NoError(t, platformrabbitmq.DeclareTopicExchange(ch, "orders.events"))
	require.Error(t, platformrabbitmq.DeclareTopicExchange(ch, " "))
	ch.AssertExpectations(t)
}
