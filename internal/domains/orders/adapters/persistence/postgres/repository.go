package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

var (
	_ ports.StandardOrderSource = (*Repository)(nil)
	_ ports.CustomOrderSource   = (*Repository)(nil)
	_ ports.InvoiceLedger       = (*Repository)(nil)
	_ ports.OrderWriter         = (*Repository)(nil)
)

// Repository reads both order tables and the invoice ledger, and writes lifecycle
// changes back. Caller manages DB lifecycle.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository wires a PostgreSQL-backed repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// WithClock overrides the time source for deterministic testing.
func (r *Repository) WithClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// FetchStandardOrders lists checkout orders, newest first.
func (r *Repository) FetchStandardOrders(ctx context.Context, filter ports.Filter) ([]*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var records []standardOrderRecord
	if err := r.db.WithContext(ctx).Scopes(orderFilter(filter)).Find(&records).Error; err != nil {
		return nil, err
	}
	orders := make([]*domain.Order, 0, len(records))
	for i := range records {
		orders = append(orders, records[i].toDomain())
	}
	return orders, nil
}

// FetchCustomOrders lists bespoke orders, newest first.
func (r *Repository) FetchCustomOrders(ctx context.Context, filter ports.Filter) ([]*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var records []customOrderRecord
	if err := r.db.WithContext(ctx).Scopes(orderFilter(filter)).Find(&records).Error; err != nil {
		return nil, err
	}
	orders := make([]*domain.Order, 0, len(records))
	for i := range records {
		orders = append(orders, records[i].toDomain())
	}
	return orders, nil
}

// FetchInvoices returns the newest ledger entries.
func (r *Repository) FetchInvoices(ctx context.Context, filter ports.InvoiceFilter) ([]domain.Invoice, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	query := r.db.WithContext(ctx).Order("issued_at DESC")
	if len(filter.OrderNumbers) > 0 {
		query = query.Where("order_number IN ?", filter.OrderNumbers)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var records []invoiceRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	invoices := make([]domain.Invoice, 0, len(records))
	for i := range records {
		invoices = append(invoices, records[i].toDomain())
	}
	return invoices, nil
}

// ApproveOrder sets the approved status and records the approver.
func (r *Repository) ApproveOrder(ctx context.Context, ref domain.OrderRef, approverID string) (*domain.OrderResult, error) {
	now := r.now()
	return r.update(ctx, ref, domain.StatusApproved, map[string]any{
		"status":      string(domain.StatusApproved),
		"approved_by": approverID,
		"approved_at": now,
		"updated_at":  now,
	})
}

// SetOrderStatus writes a lifecycle status.
func (r *Repository) SetOrderStatus(ctx context.Context, ref domain.OrderRef, status domain.Status) (*domain.OrderResult, error) {
	status = domain.NormalizeStatus(status)
	return r.update(ctx, ref, status, map[string]any{
		"status":     string(status),
		"updated_at": r.now(),
	})
}

// DeleteOrder removes the order row from whichever table holds it.
func (r *Repository) DeleteOrder(ctx context.Context, ref domain.OrderRef) (*domain.OrderResult, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if err := validRef(ref); err != nil {
		return nil, err
	}
	for _, model := range modelsFor(ref.Kind) {
		result := r.db.WithContext(ctx).Scopes(byRef(ref)).Delete(model)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected > 0 {
			return &domain.OrderResult{Ref: ref, Status: domain.StatusDeleted, UpdatedAt: r.now()}, nil
		}
	}
	return nil, ports.ErrNotFound
}

// SaveStandardOrder inserts or replaces a checkout order.
func (r *Repository) SaveStandardOrder(ctx context.Context, order *domain.Order) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	if order == nil || order.Kind != domain.KindStandard {
		return errors.New("standard order expected")
	}
	record := toStandardRecord(order)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&record).Error
}

// SaveCustomOrder inserts or replaces a bespoke order.
func (r *Repository) SaveCustomOrder(ctx context.Context, order *domain.Order) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	if order == nil || order.Kind != domain.KindCustom {
		return errors.New("custom order expected")
	}
	record := toCustomRecord(order)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&record).Error
}

// SaveInvoice appends a ledger entry. Existing invoice ids are left untouched.
func (r *Repository) SaveInvoice(ctx context.Context, invoice domain.Invoice) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	record := invoiceRecord{
		ID:          invoice.ID,
		OrderNumber: invoice.OrderNumber,
		Status:      invoice.Status,
		Amount:      invoice.Amount,
		IssuedAt:    invoice.IssuedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
}

func (r *Repository) update(ctx context.Context, ref domain.OrderRef, status domain.Status, columns map[string]any) (*domain.OrderResult, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if err := validRef(ref); err != nil {
		return nil, err
	}
	for _, model := range modelsFor(ref.Kind) {
		result := r.db.WithContext(ctx).Model(model).Scopes(byRef(ref)).Updates(columns)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected > 0 {
			return &domain.OrderResult{Ref: ref, Status: status, UpdatedAt: r.now()}, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres order repository not configured")
	}
	return nil
}

func validRef(ref domain.OrderRef) error {
	if strings.TrimSpace(ref.ID) == "" && strings.TrimSpace(ref.OrderNumber) == "" {
		return domain.ErrMissingIdentity
	}
	return nil
}

// modelsFor returns the tables to try, standard first when the kind is unknown.
func modelsFor(kind domain.Kind) []any {
	switch kind {
	case domain.KindStandard:
		return []any{&standardOrderRecord{}}
	case domain.KindCustom:
		return []any{&customOrderRecord{}}
	default:
		return []any{&standardOrderRecord{}, &customOrderRecord{}}
	}
}

// byRef addresses a row by id, or by order number when the reference has no id.
func byRef(ref domain.OrderRef) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if id := strings.TrimSpace(ref.ID); id != "" {
			return db.Where("id = ?", id)
		}
		return db.Where("order_number = ?", strings.TrimSpace(ref.OrderNumber))
	}
}

func orderFilter(filter ports.Filter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Order("created_at DESC")
		if len(filter.Statuses) > 0 {
			statuses := make([]string, 0, len(filter.Statuses))
			for _, st := range filter.Statuses {
				statuses = append(statuses, string(domain.NormalizeStatus(st)))
			}
			db = db.Where("status IN ?", statuses)
		}
		if filter.Limit > 0 {
			db = db.Limit(filter.Limit)
		}
		return db
	}
}
