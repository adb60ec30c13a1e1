package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

type controllerFixture struct {
	writer    *fakeWriter
	ledger    *fakeLedger
	snapshots *SnapshotStore
	notifier  *fakeNotifier
	handoffs  *fakeHandoffStore
	events    *fakePublisher
	ctrl      *Controller
}

func newControllerFixture(t *testing.T, orders []*domain.Order, invoices ...domain.Invoice) *controllerFixture {
	t.Helper()
	f := &controllerFixture{
		writer:    &fakeWriter{},
		ledger:    &fakeLedger{},
		snapshots: publishedStore(t, orders, invoices...),
		notifier:  &fakeNotifier{},
		handoffs:  newFakeHandoffStore(),
		events:    &fakePublisher{},
	}
	f.ledger.set(invoices, nil)
	handoff := NewHandoffCoordinator(f.notifier, f.handoffs, WithHandoffEvents(f.events))
	f.ctrl = NewController(f.writer, f.ledger, f.snapshots,
		WithLogisticsHandoff(handoff),
		WithEventPublisher(f.events),
		WithControllerClock(func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }),
	)
	return f
}

func (f *controllerFixture) status(t *testing.T, id string) domain.Status {
	t.Helper()
	entry, ok := f.snapshots.Lookup(id)
	require.True(t, ok, id)
	return entry.Order.Status
}

func TestController_ApproveRequiresPayment(t *testing.T) {
	f := newControllerFixture(t, []*domain.Order{standardOrder("o1", "EMPI-1", domain.StatusPending)})

	result, err := f.ctrl.Approve(context.Background(), "o1", "admin-1")

	require.Nil(t, result)
	var guard *TransitionGuardViolation
	require.ErrorAs(t, err, &guard)
	require.ErrorIs(t, err, ErrPaymentRequired)
	require.Zero(t, f.writer.callCount())
	require.Equal(t, domain.StatusPending, f.status(t, "o1"))
}

func TestController_ApproveRevalidatesAgainstLedger(t *testing.T) {
	f := newControllerFixture(t, []*domain.Order{standardOrder("o1", "EMPI-1", domain.StatusPending)}, invoiceFor("EMPI-1"))
	f.ledger.set(nil, nil)

	_, err := f.ctrl.Approve(context.Background(), "o1", "admin-1")

	require.ErrorIs(t, err, ErrPaymentRequired)
	require.Zero(t, f.writer.callCount())
	require.Equal(t, []string{"EMPI-1"}, f.ledger.filters[len(f.ledger.filters)-1].OrderNumbers)
}

func TestController_ApproveLedgerFailureBlocksWrite(t *testing.T) {
	f := newControllerFixture(t, []*domain.Order{standardOrder("o1", "EMPI-1", domain.StatusPending)}, invoiceFor("EMPI-1"))
	f.ledger.set(nil, errors.New("ledger down"))

	_, err := f.ctrl.Approve(context.Background(), "o1", "admin-1")

	var fetchErr *SourceFetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, ports.SourceInvoices, fetchErr.Source)
	require.Zero(t, f.writer.callCount())
}

func TestController_ApprovePaidOrder(t *testing.T) {
	order := standardOrder("o1", "EMPI-1", domain.StatusPending)
	f := newControllerFixture(t, []*domain.Order{order}, invoiceFor("EMPI-1"))

	result, err := f.ctrl.Approve(context.Background(), "EMPI-1", "admin-1")

	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, result.Status)
	require.False(t, result.NoOp)
	require.Equal(t, []writeCall{{op: "approve", ref: order.Ref(), status: domain.StatusApproved, actor: "admin-1"}}, f.writer.calls)
	require.Equal(t, domain.StatusApproved, f.status(t, "o1"))
	require.Equal(t, []string{"orders.order.approve"}, f.events.names())
}

func TestController_ApproveIsNoOpWhenAlreadyApproved(t *testing.T) {
	f := newControllerFixture(t, []*domain.Order{standardOrder("o1", "EMPI-1", domain.StatusApproved)})

	result, err := f.ctrl.Approve(context.Background(), "o1", "admin-1")

	require.NoError(t, err)
	require.True(t, result.NoOp)
	require.Zero(t, f.writer.callCount())
	require.Empty(t, f.events.names())
}

func TestController_GuardErrors(t *testing.T) {
	f := newControllerFixture(t, []*domain.Order{
		standardOrder("o1", "EMPI-1", domain.StatusReady),
		standardOrder("o2", "EMPI-2", domain.StatusApproved),
	}, invoiceFor("EMPI-1"))
	ctx := context.Background()

	_, err := f.ctrl.Approve(ctx, "o1", "admin-1")
	require.ErrorIs(t, err, domain.ErrTransitionNotAllowed)

	_, err = f.ctrl.MarkShipped(ctx, "o2")
	require.ErrorIs(t, err, domain.ErrTransitionNotAllowed)

	_, err = f.ctrl.MarkReady(ctx, "missing")
	require.ErrorIs(t, err, ErrOrderNotFound)

	_, err = f.ctrl.MarkReady(ctx, "  ")
	require.ErrorIs(t, err, ErrInvalidInput)

	require.Zero(t, f.writer.callCount())
}

func TestController_WriteFailureRollsBack(t *testing.T) {
	f := newControllerFixture(t, []*domain.Order{standardOrder("o1", "EMPI-1", domain.StatusPending)}, invoiceFor("EMPI-1"))
	boom := errors.New("store unavailable")
	f.writer.err = boom

	_, err := f.ctrl.Approve(context.Background(), "o1", "admin-1")

	var writeErr *TransitionWriteError
	require.ErrorAs(t, err, &writeErr)
	require.True(t, writeErr.Retryable())
	require.ErrorIs(t, err, boom)
	require.Equal(t, domain.StatusPending, f.status(t, "o1"))
	require.Empty(t, f.events.names())

	f.writer.err = nil
	_, err = f.ctrl.Approve(context.Background(), "o1", "admin-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, f.status(t, "o1"))
}

func TestController_ConcurrentApprovesWriteOnce(t *testing.T) {
	f := newControllerFixture(t, []*domain.Order{standardOrder("o1", "EMPI-1", domain.StatusPending)}, invoiceFor("EMPI-1"))
	f.writer.started = make(chan struct{}, 2)
	f.writer.release = make(chan struct{})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	approve := func(i int) {
		defer wg.Done()
		_, errs[i] = f.ctrl.Approve(context.Background(), "o1", "admin-1")
	}
	wg.Add(1)
	go approve(0)
	<-f.writer.started

	// The second call either joins the in-flight write or sees the optimistic status.
	wg.Add(1)
	go approve(1)
	time.Sleep(20 * time.Millisecond)
	close(f.writer.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Equal(t, 1, f.writer.callCount())
}

func TestController_MarkReadyHandsOffOnce(t *testing.T) {
	f := newControllerFixture(t, []*domain.Order{standardOrder("o1", "EMPI-1", domain.StatusApproved)})
	ctx := context.Background()

	result, err := f.ctrl.MarkReady(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusReady, result.Status)
	require.Equal(t, 1, f.notifier.count())
	require.Equal(t, domain.StatusReady, f.notifier.orders[0].Status)

	result, err = f.ctrl.MarkReady(ctx, "o1")
	require.NoError(t, err)
	require.True(t, result.NoOp)
	require.Equal(t, 1, f.notifier.count())
	require.Equal(t, 1, f.writer.callCount())
	require.Equal(t, []string{"orders.order.mark_ready", "orders.logistics.handed_off"}, f.events.names())
}

func TestController_MarkReadyRetryCompletesHandoff(t *testing.T) {
	f := newControllerFixture(t, []*domain.Order{standardOrder("o1", "EMPI-1", domain.StatusApproved)})
	f.notifier.err = errors.New("logistics down")
	ctx := context.Background()

	_, err := f.ctrl.MarkReady(ctx, "o1")
	var handoffErr *LogisticsHandoffError
	require.ErrorAs(t, err, &handoffErr)
	require.True(t, handoffErr.Retryable())
	require.Equal(t, domain.StatusReady, f.status(t, "o1"), "the status write is kept")

	f.notifier.err = nil
	result, err := f.ctrl.MarkReady(ctx, "o1")
	require.NoError(t, err)
	require.True(t, result.NoOp)
	require.Equal(t, 1, f.notifier.count())
	require.Equal(t, 1, f.writer.callCount())
}

func TestController_MarkShipped(t *testing.T) {
	f := newControllerFixture(t, []*domain.Order{customOrder("c1", "CUST-1", domain.StatusReady)})

	result, err := f.ctrl.MarkShipped(context.Background(), "CUST-1")

	require.NoError(t, err)
	require.Equal(t, domain.StatusShipped, result.Status)
	require.Equal(t, domain.KindCustom, f.writer.calls[0].ref.Kind)
	entry, ok := f.snapshots.Current().Lookup("c1")
	require.True(t, ok)
	view, _ := domain.ViewOf(entry.Order.Status)
	require.Equal(t, domain.ViewShipped, view)
}

func TestController_Delete(t *testing.T) {
	f := newControllerFixture(t, []*domain.Order{standardOrder("o1", "EMPI-1", domain.StatusShipped)})
	ctx := context.Background()

	result, err := f.ctrl.Delete(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusDeleted, result.Status)
	_, ok := f.snapshots.Lookup("o1")
	require.False(t, ok)

	f.writer.err = ports.ErrNotFound
	result, err = f.ctrl.Delete(ctx, "o1")
	require.NoError(t, err)
	require.True(t, result.NoOp)
}

func TestController_DeleteFailureRestoresOrder(t *testing.T) {
	f := newControllerFixture(t, []*domain.Order{standardOrder("o1", "EMPI-1", domain.StatusPending)})
	f.writer.err = errors.New("store unavailable")

	_, err := f.ctrl.Delete(context.Background(), "o1")

	var writeErr *TransitionWriteError
	require.ErrorAs(t, err, &writeErr)
	require.Equal(t, domain.StatusPending, f.status(t, "o1"))
}

func TestController_ConcurrentFailedWritesRollBackEachOrder(t *testing.T) {
	f := newControllerFixture(t, []*domain.Order{
		standardOrder("o1", "EMPI-1", domain.StatusPending),
		standardOrder("o2", "EMPI-2", domain.StatusApproved),
		standardOrder("o3", "EMPI-3", domain.StatusPending),
	}, invoiceFor("EMPI-1"))
	boom := errors.New("store unavailable")
	f.writer.failFor = map[string]error{"o1": boom, "o2": boom}
	f.writer.started = make(chan struct{}, 3)
	f.writer.release = make(chan struct{})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 3)
	start := func(i int, call func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = call()
		}()
		<-f.writer.started
	}
	start(0, func() error { _, err := f.ctrl.Approve(ctx, "o1", "admin-1"); return err })
	start(1, func() error { _, err := f.ctrl.MarkReady(ctx, "o2"); return err })
	start(2, func() error { _, err := f.ctrl.Delete(ctx, "o3"); return err })
	close(f.writer.release)
	wg.Wait()

	require.ErrorIs(t, errs[0], boom)
	require.ErrorIs(t, errs[1], boom)
	require.NoError(t, errs[2])
	require.Equal(t, domain.StatusPending, f.status(t, "o1"))
	require.Equal(t, domain.StatusApproved, f.status(t, "o2"))
	_, ok := f.snapshots.Lookup("o3")
	require.False(t, ok)
	require.Zero(t, f.notifier.count())

	// The restored guards stop writes the store never accepted.
	_, err := f.ctrl.MarkReady(ctx, "o1")
	var guard *TransitionGuardViolation
	require.ErrorAs(t, err, &guard)
}

func TestController_SharedWriteOutlivesFirstCaller(t *testing.T) {
	f := newControllerFixture(t, []*domain.Order{standardOrder("o1", "EMPI-1", domain.StatusPending)}, invoiceFor("EMPI-1"))
	f.writer.started = make(chan struct{}, 2)
	f.writer.release = make(chan struct{})

	first, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := f.ctrl.Approve(first, "o1", "admin-1")
		firstDone <- err
	}()
	<-f.writer.started

	joined := make(chan error, 1)
	go func() {
		_, err := f.ctrl.Approve(context.Background(), "o1", "admin-1")
		joined <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-firstDone, context.Canceled)
	close(f.writer.release)
	require.NoError(t, <-joined)
	require.Equal(t, 1, f.writer.callCount())
	require.Equal(t, domain.StatusApproved, f.status(t, "o1"))
}
