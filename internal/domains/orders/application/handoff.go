package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

type normalizedHandoff struct {
	Key         string           `json:"key"`
	OrderNumber string           `json:"orderNumber"`
	Kind        string           `json:"kind"`
	Email       string           `json:"email"`
	Items       []normalizedItem `json:"items,omitempty"`
	Quantity    int              `json:"quantity,omitempty"`
	StartDate   *time.Time       `json:"startDate,omitempty"`
	EndDate     *time.Time       `json:"endDate,omitempty"`
}

type normalizedItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Mode     string `json:"mode"`
}

// HandoffKey is the idempotency key of an order's logistics hand-off.
func HandoffKey(order *domain.Order) string {
	key, _ := order.Key()
	return "logistics-handoff:" + key.String()
}

// FingerprintHandoff builds a deterministic hash of what logistics receives for the order.
func FingerprintHandoff(order *domain.Order) (string, error) {
	key, ok := order.Key()
	if !ok {
		return "", domain.ErrMissingIdentity
	}
	normalized := normalizedHandoff{
		Key:         key.String(),
		OrderNumber: order.OrderNumber,
		Kind:        string(order.Kind),
		Email:       order.Customer.Email,
	}
	for _, item := range order.Items() {
		normalized.Items = append(normalized.Items, normalizedItem{Name: item.Name, Quantity: item.Quantity, Mode: string(item.Mode)})
	}
	if order.Custom != nil {
		normalized.Quantity = order.Custom.Quantity
	}
	if order.Rental != nil {
		start, end := order.Rental.StartDate.UTC(), order.Rental.EndDate.UTC()
		normalized.StartDate, normalized.EndDate = &start, &end
	}
	payload, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// HandoffCoordinator notifies logistics at most once per order using a hand-off record store.
type HandoffCoordinator struct {
	notifier ports.LogisticsNotifier
	store    ports.HandoffStore
	events   ports.EventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

type HandoffOption func(*HandoffCoordinator)

func WithHandoffLogger(logger *slog.Logger) HandoffOption {
	return func(h *HandoffCoordinator) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithHandoffEvents(publisher ports.EventPublisher) HandoffOption {
	return func(h *HandoffCoordinator) {
		h.events = publisher
	}
}

func NewHandoffCoordinator(notifier ports.LogisticsNotifier, store ports.HandoffStore, opts ...HandoffOption) *HandoffCoordinator {
	h := &HandoffCoordinator{
		notifier: notifier,
		store:    store,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// HandedOff reports whether a hand-off record exists for the order.
func (h *HandoffCoordinator) HandedOff(ctx context.Context, order *domain.Order) (bool, error) {
	record, err := h.store.Get(ctx, HandoffKey(order))
	if err != nil {
		return false, err
	}
	return record != nil, nil
}

// Ensure notifies logistics unless a hand-off was already recorded for the order.
func (h *HandoffCoordinator) Ensure(ctx context.Context, order *domain.Order) error {
	if h == nil || h.notifier == nil || h.store == nil {
		return errors.New("logistics hand-off not configured")
	}
	key := HandoffKey(order)
	hash, err := FingerprintHandoff(order)
	if err != nil {
		return err
	}
	existing, err := h.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.RequestHash != hash {
			h.logger.WarnContext(ctx, "order changed after logistics hand-off", slog.String("handoff.key", key))
		}
		return nil
	}
	if err := h.notifier.NotifyLogistics(ctx, order); err != nil {
		return err
	}
	_, err = h.store.Save(ctx, ports.HandoffRecord{Key: key, RequestHash: hash, OrderRef: order.Ref().String()})
	if errors.Is(err, ports.ErrHandoffConflict) {
		h.logger.WarnContext(ctx, "concurrent logistics hand-off recorded a different payload", slog.String("handoff.key", key))
		return nil
	}
	if err != nil {
		return err
	}
	h.logger.InfoContext(ctx, "order handed to logistics", slog.String("handoff.key", key))
	if h.events != nil {
		event := domain.LogisticsHandedOff{
			BaseEvent: domain.BaseEvent{ID: uuid.NewString(), Timestamp: h.now()},
			Ref:       order.Ref(),
		}
		if err := h.events.Publish(ctx, event); err != nil {
			h.logger.WarnContext(ctx, "failed to publish hand-off event", slog.String("error", err.Error()))
		}
	}
	return nil
}
