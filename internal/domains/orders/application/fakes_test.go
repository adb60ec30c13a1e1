package application

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

type fakeOrderSource struct {
	mu     sync.Mutex
	orders []*domain.Order
	err    error
	calls  int
	// hang makes the fetch wait for context cancellation.
	hang bool
}

func (f *fakeOrderSource) set(orders []*domain.Order, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders, f.err = orders, err
}

func (f *fakeOrderSource) fetch(ctx context.Context) ([]*domain.Order, error) {
	f.mu.Lock()
	f.calls++
	orders, err, hang := f.orders, f.err, f.hang
	f.mu.Unlock()
	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return orders, err
}

func (f *fakeOrderSource) FetchStandardOrders(ctx context.Context, _ ports.Filter) ([]*domain.Order, error) {
	return f.fetch(ctx)
}

func (f *fakeOrderSource) FetchCustomOrders(ctx context.Context, _ ports.Filter) ([]*domain.Order, error) {
	return f.fetch(ctx)
}

type fakeLedger struct {
	mu       sync.Mutex
	invoices []domain.Invoice
	err      error
	filters  []ports.InvoiceFilter
}

func (f *fakeLedger) set(invoices []domain.Invoice, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoices, f.err = invoices, err
}

func (f *fakeLedger) FetchInvoices(_ context.Context, filter ports.InvoiceFilter) ([]domain.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	if len(filter.OrderNumbers) == 0 {
		return f.invoices, nil
	}
	var out []domain.Invoice
	for _, inv := range f.invoices {
		for _, n := range filter.OrderNumbers {
			if inv.OrderNumber == n {
				out = append(out, inv)
			}
		}
	}
	return out, nil
}

type writeCall struct {
	op     string
	ref    domain.OrderRef
	status domain.Status
	actor  string
}

type fakeWriter struct {
	mu      sync.Mutex
	calls   []writeCall
	err     error
	// failFor fails writes for the listed order ids instead of err.
	failFor map[string]error
	started chan struct{}
	release chan struct{}
}

func (f *fakeWriter) record(ctx context.Context, call writeCall) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	err, started, release := f.err, f.started, f.release
	if failErr, ok := f.failFor[call.ref.ID]; ok {
		err = failErr
	}
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeWriter) ApproveOrder(ctx context.Context, ref domain.OrderRef, approverID string) (*domain.OrderResult, error) {
	if err := f.record(ctx, writeCall{op: "approve", ref: ref, status: domain.StatusApproved, actor: approverID}); err != nil {
		return nil, err
	}
	return &domain.OrderResult{Ref: ref, Status: domain.StatusApproved}, nil
}

func (f *fakeWriter) SetOrderStatus(ctx context.Context, ref domain.OrderRef, status domain.Status) (*domain.OrderResult, error) {
	if err := f.record(ctx, writeCall{op: "status", ref: ref, status: status}); err != nil {
		return nil, err
	}
	return &domain.OrderResult{Ref: ref, Status: status}, nil
}

func (f *fakeWriter) DeleteOrder(ctx context.Context, ref domain.OrderRef) (*domain.OrderResult, error) {
	if err := f.record(ctx, writeCall{op: "delete", ref: ref, status: domain.StatusDeleted}); err != nil {
		return nil, err
	}
	return &domain.OrderResult{Ref: ref, Status: domain.StatusDeleted}, nil
}

func (f *fakeWriter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeNotifier struct {
	mu     sync.Mutex
	orders []*domain.Order
	err    error
}

func (f *fakeNotifier) NotifyLogistics(_ context.Context, order *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.orders = append(f.orders, order)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type fakeHandoffStore struct {
	mu      sync.Mutex
	records map[string]ports.HandoffRecord
}

func newFakeHandoffStore() *fakeHandoffStore {
	return &fakeHandoffStore{records: map[string]ports.HandoffRecord{}}
}

func (f *fakeHandoffStore) Get(_ context.Context, key string) (*ports.HandoffRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[key]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (f *fakeHandoffStore) Save(_ context.Context, record ports.HandoffRecord) (*ports.HandoffRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.records[record.Key]; ok {
		if existing.RequestHash != record.RequestHash {
			return &existing, ports.ErrHandoffConflict
		}
		return &existing, nil
	}
	f.records[record.Key] = record
	return &record, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (f *fakePublisher) Publish(_ context.Context, event domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		out = append(out, e.EventName())
	}
	return out
}

func standardOrder(id, number string, status domain.Status, items ...domain.OrderItem) *domain.Order {
	return &domain.Order{
		ID:          id,
		OrderNumber: number,
		Kind:        domain.KindStandard,
		Status:      status,
		Total:       decimal.NewFromInt(1000),
		CreatedAt:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Standard:    &domain.StandardDetails{Items: items},
	}
}

func customOrder(id, number string, status domain.Status) *domain.Order {
	return &domain.Order{
		ID:          id,
		OrderNumber: number,
		Kind:        domain.KindCustom,
		Status:      status,
		Total:       decimal.NewFromInt(5000),
		Custom:      &domain.CustomDetails{Description: "bespoke", Quantity: 1, QuotedPrice: decimal.NewFromInt(5000)},
	}
}

func invoiceFor(number string) domain.Invoice {
	return domain.NewInvoice("inv-"+number, number, "", decimal.NewFromInt(1000), time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))
}

func keyOf(o *domain.Order) domain.Key {
	k, _ := o.Key()
	return k
}
