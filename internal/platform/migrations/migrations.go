package migrations

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Run applies the schema for the orders context. Intended to replace adapter-level automigrate.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&standardOrderRecord{},
		&customOrderRecord{},
		&invoiceRecord{},
		&handoffRecord{},
	)
}

// Standard order schema mirrors the orders Postgres adapter.
type standardOrderRecord struct {
	ID              string              `gorm:"primaryKey;column:id;size:64"`
	OrderNumber     string              `gorm:"column:order_number;size:64;index"`
	CustomerName    string              `gorm:"column:customer_name"`
	CustomerEmail   string              `gorm:"column:customer_email;index"`
	CustomerPhone   string              `gorm:"column:customer_phone"`
	Status          string              `gorm:"column:status;type:varchar(32);index"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(12,2)"`
	Items           []byte              `gorm:"column:items;type:jsonb"`
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

// Custom order schema mirrors the orders Postgres adapter.
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

// Invoice ledger schema.
type invoiceRecord struct {
	ID          string          `gorm:"primaryKey;column:id;size:64"`
	OrderNumber string          `gorm:"column:order_number;size:64;index"`
	Status      string          `gorm:"column:status;type:varchar(32)"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(12,2)"`
	IssuedAt    time.Time       `gorm:"column:issued_at;index"`
}

func (invoiceRecord) TableName() string { return "invoices" }

// Hand-off schema mirrors the logistics hand-off store.
type handoffRecord struct {
	Key         string    `gorm:"primaryKey;column:key;size:255"`
	RequestHash string    `gorm:"column:request_hash;size:128"`
	OrderRef    string    `gorm:"column:order_ref;size:64"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (handoffRecord) TableName() string { return "logistics_handoffs" }
