package memory

import (
	"context"
	"sync"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

var _ ports.EventPublisher = (*EventRecorder)(nil)

// EventRecorder keeps published events in memory. Used when no broker is configured.
type EventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
	limit  int
}

// NewEventRecorder keeps at most limit events; zero keeps everything.
func NewEventRecorder(limit int) *EventRecorder {
	return &EventRecorder{limit: limit}
}

func (r *EventRecorder) Publish(_ context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = r.events[len(r.events)-r.limit:]
	}
	return nil
}

// Events returns a copy of the recorded events, oldest first.
func (r *EventRecorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}
