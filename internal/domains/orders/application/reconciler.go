package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

const (
	DefaultFetchTimeout    = 10 * time.Second
	DefaultInvoicePageSize = 100
)

// Reconciler fetches the three sources, merges orders and resolves payment status.
// It keeps the last good result of each source privately so a partial failure
// publishes stale records instead of dropping them.
type Reconciler struct {
	standard ports.StandardOrderSource
	custom   ports.CustomOrderSource
	ledger   ports.InvoiceLedger
	hints    *ItemHints
	logger   *slog.Logger
	now      func() time.Time

	fetchTimeout    time.Duration
	invoicePageSize int

	mu   sync.Mutex
	last lastGood
}

type lastGood struct {
	standard    []*domain.Order
	custom      []*domain.Order
	invoices    []domain.Invoice
	hasStandard bool
	hasCustom   bool
	hasInvoices bool
}

type ReconcilerOption func(*Reconciler)

func WithReconcilerLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFetchTimeout bounds each source fetch.
func WithFetchTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.fetchTimeout = d
		}
	}
}

// WithInvoicePageSize caps the ledger page. Only the newest N invoices are considered.
func WithInvoicePageSize(n int) ReconcilerOption {
	return func(r *Reconciler) {
		if n > 0 {
			r.invoicePageSize = n
		}
	}
}

func WithItemHints(hints *ItemHints) ReconcilerOption {
	return func(r *Reconciler) {
		r.hints = hints
	}
}

func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

func NewReconciler(standard ports.StandardOrderSource, custom ports.CustomOrderSource, ledger ports.InvoiceLedger, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		standard:        standard,
		custom:          custom,
		ledger:          ledger,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:             time.Now,
		fetchTimeout:    DefaultFetchTimeout,
		invoicePageSize: DefaultInvoicePageSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// RunCycle performs one reconciliation pass. A nil cycle with an error means nothing
// should be published. A non-nil cycle with a *PartialMergeWarning should be published
// but the pass still counts as failed.
func (r *Reconciler) RunCycle(ctx context.Context) (*ports.Cycle, error) {
	var (
		standard, custom                []*domain.Order
		invoices                        []domain.Invoice
		standardErr, customErr, ledgErr error
	)
	// Each fetch records its own error so one failure never cancels the others.
	var g errgroup.Group
	g.Go(func() error {
		standard, standardErr = fetch(ctx, r.fetchTimeout, func(ctx context.Context) ([]*domain.Order, error) {
			return r.standard.FetchStandardOrders(ctx, ports.Filter{})
		})
		return nil
	})
	g.Go(func() error {
		custom, customErr = fetch(ctx, r.fetchTimeout, func(ctx context.Context) ([]*domain.Order, error) {
			return r.custom.FetchCustomOrders(ctx, ports.Filter{})
		})
		return nil
	})
	g.Go(func() error {
		invoices, ledgErr = fetch(ctx, r.fetchTimeout, func(ctx context.Context) ([]domain.Invoice, error) {
			return r.ledger.FetchInvoices(ctx, ports.InvoiceFilter{Limit: r.invoicePageSize})
		})
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var failed []ports.Source
	var errs []error
	if standardErr != nil {
		failed = append(failed, ports.SourceStandard)
		errs = append(errs, &SourceFetchError{Source: ports.SourceStandard, Err: standardErr})
		standard = r.last.standard
	} else {
		r.last.standard, r.last.hasStandard = standard, true
	}
	if customErr != nil {
		failed = append(failed, ports.SourceCustom)
		errs = append(errs, &SourceFetchError{Source: ports.SourceCustom, Err: customErr})
		custom = r.last.custom
	} else {
		r.last.custom, r.last.hasCustom = custom, true
	}
	if ledgErr != nil {
		failed = append(failed, ports.SourceInvoices)
		errs = append(errs, &SourceFetchError{Source: ports.SourceInvoices, Err: ledgErr})
		invoices = r.last.invoices
	} else {
		r.last.invoices, r.last.hasInvoices = invoices, true
	}

	if standardErr != nil && customErr != nil {
		return nil, errors.Join(errs...)
	}
	// Without any ledger data every unapproved order would regress to pending.
	if ledgErr != nil && !r.last.hasInvoices {
		return nil, errors.Join(errs...)
	}

	merged := MergeOrders(standard, custom)
	for _, dropped := range merged.Dropped {
		r.logger.Warn("dropping order without identity",
			slog.String("source", string(dropped.Source)), slog.Int("index", dropped.Index))
	}
	orders := merged.Orders
	if r.hints != nil {
		for i, order := range orders {
			orders[i] = r.hints.Backfill(order)
		}
	}

	cycle := &ports.Cycle{
		Orders:     orders,
		Payments:   ResolvePayments(orders, invoices),
		Dropped:    len(merged.Dropped),
		Failed:     failed,
		FinishedAt: r.now(),
	}
	if len(failed) > 0 {
		return cycle, &PartialMergeWarning{Failed: failed, Errs: errs}
	}
	return cycle, nil
}

func fetch[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return call(ctx)
}

var _ ports.CycleRunner = (*Reconciler)(nil)
