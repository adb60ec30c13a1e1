package ports

import (
	"context"
	"errors"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
)

var ErrNotFound = errors.New("order not found")

// Source names an upstream collaborator the reconciler reads from.
type Source string

const (
	SourceStandard Source = "standard_orders"
	SourceCustom   Source = "custom_orders"
	SourceInvoices Source = "invoices"
)

// Filter narrows an order fetch. Zero values mean no restriction.
type Filter struct {
	Statuses []domain.Status
	Limit    int
}

// InvoiceFilter narrows a ledger fetch. Limit caps the page to the most recent invoices.
type InvoiceFilter struct {
	OrderNumbers []string
	Limit        int
}

// StandardOrderSource lists checkout orders.
type StandardOrderSource interface {
	FetchStandardOrders(ctx context.Context, filter Filter) ([]*domain.Order, error)
}

// CustomOrderSource lists bespoke orders.
type CustomOrderSource interface {
	FetchCustomOrders(ctx context.Context, filter Filter) ([]*domain.Order, error)
}

// InvoiceLedger lists invoices, newest first.
type InvoiceLedger interface {
	FetchInvoices(ctx context.Context, filter InvoiceFilter) ([]domain.Invoice, error)
}

// OrderWriter applies lifecycle writes to the owning store.
type OrderWriter interface {
	ApproveOrder(ctx context.Context, ref domain.OrderRef, approverID string) (*domain.OrderResult, error)
	SetOrderStatus(ctx context.Context, ref domain.OrderRef, status domain.Status) (*domain.OrderResult, error)
	// DeleteOrder returns ErrNotFound when nothing matched.
	DeleteOrder(ctx context.Context, ref domain.OrderRef) (*domain.OrderResult, error)
}
