package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

// Controller drives admin lifecycle transitions. Guards are checked against the
// current snapshot before any write, and concurrent calls for the same transition
// and order share a single in-flight write.
type Controller struct {
	writer    ports.OrderWriter
	ledger    ports.InvoiceLedger
	snapshots *SnapshotStore
	handoff   *HandoffCoordinator
	events    ports.EventPublisher
	logger    *slog.Logger
	now       func() time.Time

	writeTimeout time.Duration
	flights      singleflight.Group
}

// DefaultWriteTimeout bounds a shared transition once it no longer follows the
// context of the caller that started it.
const DefaultWriteTimeout = 30 * time.Second

type ControllerOption func(*Controller)

func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLogisticsHandoff enables the logistics notification after MarkReady.
func WithLogisticsHandoff(h *HandoffCoordinator) ControllerOption {
	return func(c *Controller) {
		c.handoff = h
	}
}

func WithEventPublisher(publisher ports.EventPublisher) ControllerOption {
	return func(c *Controller) {
		c.events = publisher
	}
}

func WithWriteTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

func WithControllerClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func NewController(writer ports.OrderWriter, ledger ports.InvoiceLedger, snapshots *SnapshotStore, opts ...ControllerOption) *Controller {
	c := &Controller{
		writer:    writer,
		ledger:    ledger,
		snapshots: snapshots,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,

		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Approve moves a paid pending order to approved.
func (c *Controller) Approve(ctx context.Context, orderID, approverID string) (*domain.OrderResult, error) {
	return c.once(ctx, domain.TransitionApprove, orderID, func(ctx context.Context, id string) (*domain.OrderResult, error) {
		entry, noop, err := c.guard(domain.TransitionApprove, id)
		if err != nil || noop != nil {
			return noop, err
		}
		if entry.Payment != domain.PaymentPaid {
			return nil, &TransitionGuardViolation{Transition: domain.TransitionApprove, OrderID: id, From: entry.Order.Status, Err: ErrPaymentRequired}
		}
		// The snapshot may be a poll interval old; confirm payment against the ledger right before writing.
		paid, err := c.confirmPaid(ctx, entry.Order)
		if err != nil {
			return nil, err
		}
		if !paid {
			return nil, &TransitionGuardViolation{Transition: domain.TransitionApprove, OrderID: id, From: entry.Order.Status, Err: ErrPaymentRequired}
		}
		return c.write(ctx, domain.TransitionApprove, id, entry, approverID, func(ctx context.Context) (*domain.OrderResult, error) {
			return c.writer.ApproveOrder(ctx, entry.Order.Ref(), approverID)
		})
	})
}

// MarkReady moves an approved order to ready and hands it to logistics once.
func (c *Controller) MarkReady(ctx context.Context, orderID string) (*domain.OrderResult, error) {
	return c.once(ctx, domain.TransitionMarkReady, orderID, func(ctx context.Context, id string) (*domain.OrderResult, error) {
		entry, noop, err := c.guard(domain.TransitionMarkReady, id)
		if err != nil {
			return nil, err
		}
		if noop != nil {
			// An earlier call may have written the status but failed to notify logistics.
			if err := c.ensureHandoff(ctx, id, entry.Order); err != nil {
				return nil, err
			}
			return noop, nil
		}
		result, err := c.write(ctx, domain.TransitionMarkReady, id, entry, "", func(ctx context.Context) (*domain.OrderResult, error) {
			return c.writer.SetOrderStatus(ctx, entry.Order.Ref(), domain.StatusReady)
		})
		if err != nil {
			return nil, err
		}
		ready := entry.Order.Clone()
		ready.Status = domain.StatusReady
		if err := c.ensureHandoff(ctx, id, ready); err != nil {
			return nil, err
		}
		return result, nil
	})
}

// MarkShipped moves a ready order to shipped.
func (c *Controller) MarkShipped(ctx context.Context, orderID string) (*domain.OrderResult, error) {
	return c.once(ctx, domain.TransitionMarkShipped, orderID, func(ctx context.Context, id string) (*domain.OrderResult, error) {
		entry, noop, err := c.guard(domain.TransitionMarkShipped, id)
		if err != nil || noop != nil {
			return noop, err
		}
		return c.write(ctx, domain.TransitionMarkShipped, id, entry, "", func(ctx context.Context) (*domain.OrderResult, error) {
			return c.writer.SetOrderStatus(ctx, entry.Order.Ref(), domain.StatusShipped)
		})
	})
}

// Delete removes an order in any status. An order the store no longer knows counts as deleted.
func (c *Controller) Delete(ctx context.Context, orderID string) (*domain.OrderResult, error) {
	return c.once(ctx, domain.TransitionDelete, orderID, func(ctx context.Context, id string) (*domain.OrderResult, error) {
		entry, found := c.snapshots.Lookup(id)
		if !found {
			ref := domain.OrderRef{ID: id, OrderNumber: id}
			result, err := c.writer.DeleteOrder(ctx, ref)
			if errors.Is(err, ports.ErrNotFound) {
				return &domain.OrderResult{Ref: ref, Status: domain.StatusDeleted, UpdatedAt: c.now(), NoOp: true}, nil
			}
			if err != nil {
				return nil, &TransitionWriteError{Transition: domain.TransitionDelete, OrderID: id, Err: err}
			}
			c.emit(ctx, domain.TransitionDelete, ref, "", domain.StatusDeleted, "")
			return result, nil
		}
		return c.write(ctx, domain.TransitionDelete, id, entry, "", func(ctx context.Context) (*domain.OrderResult, error) {
			result, err := c.writer.DeleteOrder(ctx, entry.Order.Ref())
			if errors.Is(err, ports.ErrNotFound) {
				return &domain.OrderResult{Ref: entry.Order.Ref(), Status: domain.StatusDeleted, UpdatedAt: c.now(), NoOp: true}, nil
			}
			return result, err
		})
	})
}

type transitionFunc func(ctx context.Context, id string) (*domain.OrderResult, error)

func (c *Controller) once(ctx context.Context, t domain.Transition, orderID string, fn transitionFunc) (*domain.OrderResult, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	// Joined callers share the write, so it runs detached from the caller that
	// started it and a disconnect only ends that caller's wait.
	flight := c.flights.DoChan(string(t)+"/"+id, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.writeTimeout)
		defer cancel()
		return fn(flightCtx, id)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-flight:
		if res.Shared {
			c.logger.DebugContext(ctx, "joined in-flight transition", slog.String("transition", string(t)), slog.String("order.id", id))
		}
		if res.Err != nil {
			return nil, mapError(res.Err)
		}
		result, _ := res.Val.(*domain.OrderResult)
		return result, nil
	}
}

// guard returns a no-op result when the order already is in the target status.
func (c *Controller) guard(t domain.Transition, id string) (AnnotatedOrder, *domain.OrderResult, error) {
	entry, ok := c.snapshots.Lookup(id)
	if !ok {
		return AnnotatedOrder{}, nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	noop, err := domain.CheckTransition(t, entry.Order.Status)
	if err != nil {
		return entry, nil, &TransitionGuardViolation{Transition: t, OrderID: id, From: entry.Order.Status, Err: err}
	}
	if noop {
		return entry, &domain.OrderResult{Ref: entry.Order.Ref(), Status: entry.Order.Status, UpdatedAt: c.now(), NoOp: true}, nil
	}
	return entry, nil, nil
}

func (c *Controller) confirmPaid(ctx context.Context, order *domain.Order) (bool, error) {
	if domain.PaidByStatus(order.Status) {
		return true, nil
	}
	number := strings.TrimSpace(order.OrderNumber)
	if number == "" || c.ledger == nil {
		return false, nil
	}
	invoices, err := c.ledger.FetchInvoices(ctx, ports.InvoiceFilter{OrderNumbers: []string{number}})
	if err != nil {
		return false, &SourceFetchError{Source: ports.SourceInvoices, Err: err}
	}
	return ResolvePayment(order, InvoicedNumbers(invoices)) == domain.PaymentPaid, nil
}

func (c *Controller) write(ctx context.Context, t domain.Transition, id string, entry AnnotatedOrder, actor string, call func(context.Context) (*domain.OrderResult, error)) (*domain.OrderResult, error) {
	token := c.snapshots.Apply(t, entry.Key)
	result, err := call(ctx)
	if err != nil {
		rolledBack := c.snapshots.Rollback(token)
		c.logger.WarnContext(ctx, "order transition failed",
			slog.String("transition", string(t)),
			slog.String("order.id", id),
			slog.Bool("rolled_back", rolledBack),
			slog.String("error", err.Error()))
		return nil, &TransitionWriteError{Transition: t, OrderID: id, Err: err}
	}
	c.snapshots.Commit(token)
	if result == nil {
		result = &domain.OrderResult{Ref: entry.Order.Ref(), Status: t.Target(), UpdatedAt: c.now()}
	}
	c.emit(ctx, t, entry.Order.Ref(), entry.Order.Status, t.Target(), actor)
	return result, nil
}

func (c *Controller) ensureHandoff(ctx context.Context, id string, order *domain.Order) error {
	if c.handoff == nil {
		return nil
	}
	if err := c.handoff.Ensure(ctx, order); err != nil {
		return &LogisticsHandoffError{OrderID: id, Err: err}
	}
	return nil
}

func (c *Controller) emit(ctx context.Context, t domain.Transition, ref domain.OrderRef, from, to domain.Status, actor string) {
	if c.events == nil {
		return
	}
	event := domain.OrderTransitioned{
		BaseEvent:  domain.BaseEvent{ID: uuid.NewString(), Timestamp: c.now()},
		Ref:        ref,
		Transition: t,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actor,
	}
	if err := c.events.Publish(ctx, event); err != nil {
		c.logger.WarnContext(ctx, "failed to publish order event",
			slog.String("event", event.EventName()), slog.String("error", err.Error()))
	}
}

var _ ports.Lifecycle = (*Controller)(nil)
