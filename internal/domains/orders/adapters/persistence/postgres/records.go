package postgres

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

// itemRecord is one element of the items JSON column.
type itemRecord struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Mode       string          `json:"mode,omitempty"`
	ImageRef   string          `json:"image,omitempty"`
	RentalDays int             `json:"rentalDays,omitempty"`
}

// standardOrderRecord maps checkout orders.
type standardOrderRecord struct {
	ID              string              `gorm:"primaryKey;column:id;size:64"`
	OrderNumber     string              `gorm:"column:order_number;size:64;index"`
	CustomerName    string              `gorm:"column:customer_name"`
	CustomerEmail   string              `gorm:"column:customer_email;index"`
	CustomerPhone   string              `gorm:"column:customer_phone"`
	Status          string              `gorm:"column:status;type:varchar(32);index"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(12,2)"`
	Items           []itemRecord        `gorm:"column:items;type:jsonb;serializer:json"`
	DeliveryAddress string              `gorm:"column:delivery_address"`
	RentalStart     *time.Time          `gorm:"column:rental_start"`
	RentalEnd       *time.Time          `gorm:"column:rental_end"`
	RentalDays      int                 `gorm:"column:rental_days"`
	CautionFee      decimal.NullDecimal `gorm:"column:caution_fee;type:numeric(12,2)"`
	ApprovedBy      string              `gorm:"column:approved_by"`
	ApprovedAt      *time.Time          `gorm:"column:approved_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;index"`
	UpdatedAt       time.Time           `gorm:"column:updated_at"`
}

func (standardOrderRecord) TableName() string { return "standard_orders" }

// customOrderRecord maps bespoke orders.
type customOrderRecord struct {
	ID            string              `gorm:"primaryKey;column:id;size:64"`
	OrderNumber   string              `gorm:"column:order_number;size:64;index"`
	CustomerName  string              `gorm:"column:customer_name"`
	CustomerEmail string              `gorm:"column:customer_email;index"`
	CustomerPhone string              `gorm:"column:customer_phone"`
	Status        string              `gorm:"column:status;type:varchar(32);index"`
	Total         decimal.Decimal     `gorm:"column:total;type:numeric(12,2)"`
	Description   string              `gorm:"column:description"`
	ImageRefs     pq.StringArray      `gorm:"column:image_refs;type:text[]"`
	Quantity      int                 `gorm:"column:quantity"`
	QuotedPrice   decimal.Decimal     `gorm:"column:quoted_price;type:numeric(12,2)"`
	RentalStart   *time.Time          `gorm:"column:rental_start"`
	RentalEnd     *time.Time          `gorm:"column:rental_end"`
	RentalDays    int                 `gorm:"column:rental_days"`
	CautionFee    decimal.NullDecimal `gorm:"column:caution_fee;type:numeric(12,2)"`
	ApprovedBy    string              `gorm:"column:approved_by"`
	ApprovedAt    *time.Time          `gorm:"column:approved_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;index"`
	UpdatedAt     time.Time           `gorm:"column:updated_at"`
}

func (customOrderRecord) TableName() string { return "custom_orders" }

// invoiceRecord maps the invoice ledger.
type invoiceRecord struct {
	ID          string          `gorm:"primaryKey;column:id;size:64"`
	OrderNumber string          `gorm:"column:order_number;size:64;index"`
	Status      string          `gorm:"column:status;type:varchar(32)"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(12,2)"`
	IssuedAt    time.Time       `gorm:"column:issued_at;index"`
}

func (invoiceRecord) TableName() string { return "invoices" }

// handoffRecord maps logistics hand-off idempotency keys.
type handoffRecord struct {
	Key         string    `gorm:"primaryKey;column:key;size:255"`
	RequestHash string    `gorm:"column:request_hash;size:128"`
	OrderRef    string    `gorm:"column:order_ref;size:64"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (handoffRecord) TableName() string { return "logistics_handoffs" }

func rentalOf(start, end *time.Time, days int) *domain.RentalSchedule {
	if start == nil && end == nil && days == 0 {
		return nil
	}
	rental := &domain.RentalSchedule{Days: days}
	if start != nil {
		rental.StartDate = *start
	}
	if end != nil {
		rental.EndDate = *end
	}
	return rental
}

func cautionFeeOf(fee decimal.NullDecimal) *decimal.Decimal {
	if !fee.Valid {
		return nil
	}
	value := fee.Decimal
	return &value
}

func (r standardOrderRecord) toDomain() *domain.Order {
	items := make([]domain.OrderItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, domain.OrderItem{
			Name:       item.Name,
			Quantity:   item.Quantity,
			Price:      item.Price,
			Mode:       domain.ItemMode(item.Mode),
			ImageRef:   item.ImageRef,
			RentalDays: item.RentalDays,
		})
	}
	return &domain.Order{
		ID:          r.ID,
		OrderNumber: r.OrderNumber,
		Kind:        domain.KindStandard,
		Customer:    domain.Customer{Name: r.CustomerName, Email: r.CustomerEmail, Phone: r.CustomerPhone},
		Status:      domain.NormalizeStatus(domain.Status(r.Status)),
		Total:       r.Total,
		CreatedAt:   r.CreatedAt,
		Rental:      rentalOf(r.RentalStart, r.RentalEnd, r.RentalDays),
		CautionFee:  cautionFeeOf(r.CautionFee),
		Standard:    &domain.StandardDetails{Items: items, DeliveryAddress: r.DeliveryAddress},
	}
}

func (r customOrderRecord) toDomain() *domain.Order {
	return &domain.Order{
		ID:          r.ID,
		OrderNumber: r.OrderNumber,
		Kind:        domain.KindCustom,
		Customer:    domain.Customer{Name: r.CustomerName, Email: r.CustomerEmail, Phone: r.CustomerPhone},
		Status:      domain.NormalizeStatus(domain.Status(r.Status)),
		Total:       r.Total,
		CreatedAt:   r.CreatedAt,
		Rental:      rentalOf(r.RentalStart, r.RentalEnd, r.RentalDays),
		CautionFee:  cautionFeeOf(r.CautionFee),
		Custom: &domain.CustomDetails{
			Description: r.Description,
			ImageRefs:   append([]string(nil), r.ImageRefs...),
			Quantity:    r.Quantity,
			QuotedPrice: r.QuotedPrice,
		},
	}
}

func (r invoiceRecord) toDomain() domain.Invoice {
	return domain.NewInvoice(r.ID, r.OrderNumber, r.Status, r.Amount, r.IssuedAt)
}

func toStandardRecord(order *domain.Order) standardOrderRecord {
	rec := standardOrderRecord{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerName:  order.Customer.Name,
		CustomerEmail: order.Customer.Email,
		CustomerPhone: order.Customer.Phone,
		Status:        string(domain.NormalizeStatus(order.Status)),
		Total:         order.Total,
		CreatedAt:     order.CreatedAt,
	}
	rec.RentalStart, rec.RentalEnd, rec.RentalDays = rentalColumns(order.Rental)
	rec.CautionFee = cautionFeeColumn(order.CautionFee)
	if order.Standard != nil {
		rec.DeliveryAddress = order.Standard.DeliveryAddress
		for _, item := range order.Standard.Items {
			rec.Items = append(rec.Items, itemRecord{
				Name:       item.Name,
				Quantity:   item.Quantity,
				Price:      item.Price,
				Mode:       string(item.Mode),
				ImageRef:   item.ImageRef,
				RentalDays: item.RentalDays,
			})
		}
	}
	return rec
}

func toCustomRecord(order *domain.Order) customOrderRecord {
	rec := customOrderRecord{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerName:  order.Customer.Name,
		CustomerEmail: order.Customer.Email,
		CustomerPhone: order.Customer.Phone,
		Status:        string(domain.NormalizeStatus(order.Status)),
		Total:         order.Total,
		CreatedAt:     order.CreatedAt,
	}
	rec.RentalStart, rec.RentalEnd, rec.RentalDays = rentalColumns(order.Rental)
	rec.CautionFee = cautionFeeColumn(order.CautionFee)
	if order.Custom != nil {
		rec.Description = order.Custom.Description
		rec.ImageRefs = pq.StringArray(order.Custom.ImageRefs)
		rec.Quantity = order.Custom.Quantity
		rec.QuotedPrice = order.Custom.QuotedPrice
	}
	return rec
}

func rentalColumns(rental *domain.RentalSchedule) (*time.Time, *time.Time, int) {
	if rental == nil {
		return nil, nil, 0
	}
	var start, end *time.Time
	if !rental.StartDate.IsZero() {
		s := rental.StartDate
		start = &s
	}
	if !rental.EndDate.IsZero() {
		e := rental.EndDate
		end = &e
	}
	return start, end, rental.Days
}

func cautionFeeColumn(fee *decimal.Decimal) decimal.NullDecimal {
	if fee == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*fee)
}

func toPortRecord(rec *handoffRecord) *ports.HandoffRecord {
	if rec == nil {
		return nil
	}
	return &ports.HandoffRecord{
		Key:         rec.Key,
		RequestHash: rec.RequestHash,
		OrderRef:    rec.OrderRef,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}
