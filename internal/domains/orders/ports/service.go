package ports

import (
	"context"
	"time"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
)

// Lifecycle exposes the admin order transitions to adapters.
type Lifecycle interface {
	Approve(ctx context.Context, orderID, approverID string) (*domain.OrderResult, error)
	MarkReady(ctx context.Context, orderID string) (*domain.OrderResult, error)
	MarkShipped(ctx context.Context, orderID string) (*domain.OrderResult, error)
	Delete(ctx context.Context, orderID string) (*domain.OrderResult, error)
}

// Cycle is the outcome of one fetch, merge and resolve pass.
type Cycle struct {
	Orders   []*domain.Order
	Payments map[domain.Key]domain.PaymentStatus
	// Dropped counts records without identity.
	Dropped int
	// Failed lists sources whose fetch failed; their last good records were reused.
	Failed     []Source
	FinishedAt time.Time
}

// CycleRunner performs one reconciliation pass.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*Cycle, error)
}

// EventPublisher fans domain events out to interested systems.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
