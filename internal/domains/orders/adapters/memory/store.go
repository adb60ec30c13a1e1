package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

var (
	_ ports.StandardOrderSource = (*Store)(nil)
	_ ports.CustomOrderSource   = (*Store)(nil)
	_ ports.InvoiceLedger       = (*Store)(nil)
	_ ports.OrderWriter         = (*Store)(nil)
)

// Store is an in-memory stand-in for the order sources, the invoice ledger and the
// write interface. Records keep insertion order so fetches are deterministic.
type Store struct {
	mu       sync.RWMutex
	standard []*domain.Order
	custom   []*domain.Order
	invoices []domain.Invoice
	approved map[string]string
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{approved: map[string]string{}, now: time.Now}
}

// WithClock overrides the time source for deterministic testing.
func (s *Store) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// AddOrder inserts a record into the source matching its kind.
func (s *Store) AddOrder(order *domain.Order) error {
	if order == nil {
		return errors.New("order is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := order.Clone()
	switch clone.Kind {
	case domain.KindCustom:
		s.custom = append(s.custom, clone)
	default:
		s.standard = append(s.standard, clone)
	}
	return nil
}

// AddInvoice appends a ledger entry.
func (s *Store) AddInvoice(invoice domain.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices = append(s.invoices, invoice)
}

// Reset removes every record.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.standard, s.custom, s.invoices = nil, nil, nil
	s.approved = map[string]string{}
}

// ApprovedBy returns who approved the order addressed by ref.
func (s *Store) ApprovedBy(ref string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.approved[ref]
}

func (s *Store) FetchStandardOrders(ctx context.Context, filter ports.Filter) ([]*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterOrders(s.standard, filter), nil
}

func (s *Store) FetchCustomOrders(ctx context.Context, filter ports.Filter) ([]*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterOrders(s.custom, filter), nil
}

func (s *Store) FetchInvoices(ctx context.Context, filter ports.InvoiceFilter) ([]domain.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	list := append([]domain.Invoice(nil), s.invoices...)
	s.mu.RUnlock()

	sort.SliceStable(list, func(i, j int) bool { return list[i].IssuedAt.After(list[j].IssuedAt) })
	if len(filter.OrderNumbers) > 0 {
		wanted := map[string]struct{}{}
		for _, n := range filter.OrderNumbers {
			wanted[strings.TrimSpace(n)] = struct{}{}
		}
		kept := list[:0]
		for _, inv := range list {
			if _, ok := wanted[inv.OrderNumber]; ok {
				kept = append(kept, inv)
			}
		}
		list = kept
	}
	if filter.Limit > 0 && len(list) > filter.Limit {
		list = list[:filter.Limit]
	}
	return list, nil
}

func (s *Store) ApproveOrder(ctx context.Context, ref domain.OrderRef, approverID string) (*domain.OrderResult, error) {
	result, err := s.SetOrderStatus(ctx, ref, domain.StatusApproved)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.approved[ref.String()] = approverID
	s.mu.Unlock()
	return result, nil
}

func (s *Store) SetOrderStatus(ctx context.Context, ref domain.OrderRef, status domain.Status) (*domain.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.find(ref)
	if order == nil {
		return nil, ports.ErrNotFound
	}
	order.Status = status
	return &domain.OrderResult{Ref: order.Ref(), Status: status, UpdatedAt: s.now()}, nil
}

func (s *Store) DeleteOrder(ctx context.Context, ref domain.OrderRef) (*domain.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, list := range []*[]*domain.Order{&s.standard, &s.custom} {
		for i, order := range *list {
			if matches(order, ref) {
				*list = append((*list)[:i:i], (*list)[i+1:]...)
				return &domain.OrderResult{Ref: order.Ref(), Status: domain.StatusDeleted, UpdatedAt: s.now()}, nil
			}
		}
	}
	return nil, ports.ErrNotFound
}

func (s *Store) find(ref domain.OrderRef) *domain.Order {
	lists := [][]*domain.Order{s.standard, s.custom}
	switch ref.Kind {
	case domain.KindStandard:
		lists = lists[:1]
	case domain.KindCustom:
		lists = lists[1:]
	}
	for _, list := range lists {
		for _, order := range list {
			if matches(order, ref) {
				return order
			}
		}
	}
	return nil
}

// matches uses the id when both sides have one, otherwise the order number.
func matches(order *domain.Order, ref domain.OrderRef) bool {
	if ref.ID != "" && order.ID == ref.ID {
		return true
	}
	return ref.OrderNumber != "" && order.OrderNumber == ref.OrderNumber
}

func filterOrders(records []*domain.Order, filter ports.Filter) []*domain.Order {
	allowed := map[domain.Status]struct{}{}
	for _, st := range filter.Statuses {
		allowed[domain.NormalizeStatus(st)] = struct{}{}
	}
	out := make([]*domain.Order, 0, len(records))
	for _, order := range records {
		if len(allowed) > 0 {
			if _, ok := allowed[domain.NormalizeStatus(order.Status)]; !ok {
				continue
			}
		}
		out = append(out, order.Clone())
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}
