package ports

import (
	"context"
	"errors"
	"time"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
)

// ErrHandoffConflict indicates the key was already used for a different payload.
var ErrHandoffConflict = errors.New("logistics hand-off conflict")

// LogisticsNotifier hands a ready order to the logistics collaborator.
type LogisticsNotifier interface {
	NotifyLogistics(ctx context.Context, order *domain.Order) error
}

// HandoffRecord remembers that an order was handed to logistics.
type HandoffRecord struct {
	Key         string
	RequestHash string
	OrderRef    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HandoffStore persists hand-off records so each order is handed off once.
type HandoffStore interface {
	// Get returns the stored record for the key, or nil when unknown.
	Get(ctx context.Context, key string) (*HandoffRecord, error)
	// Save persists the record; if the key exists with the same hash the stored record is returned.
	// When the key exists with a different hash, ErrHandoffConflict is returned with the stored record.
	Save(ctx context.Context, record HandoffRecord) (*HandoffRecord, error)
}
