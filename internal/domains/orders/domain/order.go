package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates order progression as written by the order sources.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusApproved  Status = "approved"
	StatusReady     Status = "ready"
	StatusShipped   Status = "shipped"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusDeleted   Status = "deleted"
)

// Kind discriminates the two order sources.
type Kind string

const (
	KindStandard Kind = "standard"
	KindCustom   Kind = "custom"
)

// ItemMode tells whether a line item was bought or rented.
type ItemMode string

const (
	ModeUnset ItemMode = ""
	ModeBuy   ItemMode = "buy"
	ModeRent  ItemMode = "rent"
)

var (
	ErrMissingIdentity = errors.New("order has neither id nor order number")
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	ErrInvalidPrice    = errors.New("price must not be negative")
	ErrInvalidMode     = errors.New("item mode is invalid")
	ErrInvalidTotal    = errors.New("order total must not be negative")
	ErrMissingDetails  = errors.New("order variant details are missing")
)

// Customer is the buyer contact captured at checkout.
type Customer struct {
	Name  string
	Email string
	Phone string
}

// RentalSchedule is the order-level rental window.
type RentalSchedule struct {
	StartDate time.Time
	EndDate   time.Time
	Days      int
}

// OrderItem is a single line of a standard order.
type OrderItem struct {
	Name     string
	Quantity int
	Price    decimal.Decimal
	Mode     ItemMode
	ImageRef string
	// RentalDays is a legacy per-item value. Pricing always uses the order-level schedule.
	RentalDays int
}

// Validate enforces line item invariants.
func (i OrderItem) Validate() error {
	if i.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if i.Price.IsNegative() {
		return ErrInvalidPrice
	}
	switch i.Mode {
	case ModeUnset, ModeBuy, ModeRent:
		return nil
	default:
		return ErrInvalidMode
	}
}

// StandardDetails carries the fields only checkout orders have.
type StandardDetails struct {
	Items           []OrderItem
	DeliveryAddress string
}

// CustomDetails carries the fields only bespoke orders have.
type CustomDetails struct {
	Description string
	ImageRefs   []string
	Quantity    int
	QuotedPrice decimal.Decimal
}

// Order is the merged order aggregate. Exactly one of Standard or Custom is set, matching Kind.
type Order struct {
	ID          string
	OrderNumber string
	Kind        Kind
	Customer    Customer
	Status      Status
	// Total is authoritative and never recomputed.
	Total      decimal.Decimal
	CreatedAt  time.Time
	Rental     *RentalSchedule
	CautionFee *decimal.Decimal

	Standard *StandardDetails
	Custom   *CustomDetails
}

// NewStandardOrder constructs a checkout order.
func NewStandardOrder(id, orderNumber string, customer Customer, items []OrderItem, total decimal.Decimal, status Status, createdAt time.Time) (*Order, error) {
	order := &Order{
		ID:          strings.TrimSpace(id),
		OrderNumber: strings.TrimSpace(orderNumber),
		Kind:        KindStandard,
		Customer:    customer,
		Status:      NormalizeStatus(status),
		Total:       total,
		CreatedAt:   createdAt,
		Standard:    &StandardDetails{Items: items},
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return order, nil
}

// NewCustomOrder constructs a bespoke order.
func NewCustomOrder(id, orderNumber string, customer Customer, details CustomDetails, total decimal.Decimal, status Status, createdAt time.Time) (*Order, error) {
	order := &Order{
		ID:          strings.TrimSpace(id),
		OrderNumber: strings.TrimSpace(orderNumber),
		Kind:        KindCustom,
		Customer:    customer,
		Status:      NormalizeStatus(status),
		Total:       total,
		CreatedAt:   createdAt,
		Custom:      &details,
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return order, nil
}

// Validate enforces invariants on the aggregate. Source adapters skip it for
// records that are already stored; the merger only requires an identity.
func (o *Order) Validate() error {
	if _, ok := o.Key(); !ok {
		return ErrMissingIdentity
	}
	if o.Total.IsNegative() {
		return ErrInvalidTotal
	}
	switch o.Kind {
	case KindStandard:
		if o.Standard == nil {
			return ErrMissingDetails
		}
		for _, item := range o.Standard.Items {
			if err := item.Validate(); err != nil {
				return err
			}
		}
	case KindCustom:
		if o.Custom == nil {
			return ErrMissingDetails
		}
		if o.Custom.QuotedPrice.IsNegative() {
			return ErrInvalidPrice
		}
	default:
		return ErrMissingDetails
	}
	return nil
}

// Key returns the identity of the order: id first, else order number.
func (o *Order) Key() (Key, bool) {
	if o == nil {
		return Key{}, false
	}
	if id := strings.TrimSpace(o.ID); id != "" {
		return Key{By: KeyByID, Value: id}, true
	}
	if number := strings.TrimSpace(o.OrderNumber); number != "" {
		return Key{By: KeyByOrderNumber, Value: number}, true
	}
	return Key{}, false
}

// Ref builds the reference handed to the order writer.
func (o *Order) Ref() OrderRef {
	return OrderRef{ID: o.ID, OrderNumber: o.OrderNumber, Kind: o.Kind}
}

// Items returns the line items of a standard order and nil for custom orders.
func (o *Order) Items() []OrderItem {
	if o == nil || o.Standard == nil {
		return nil
	}
	return o.Standard.Items
}

// Clone returns a deep copy so snapshots never share slices with sources.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Rental != nil {
		rental := *o.Rental
		clone.Rental = &rental
	}
	if o.CautionFee != nil {
		fee := *o.CautionFee
		clone.CautionFee = &fee
	}
	if o.Standard != nil {
		std := *o.Standard
		std.Items = append([]OrderItem(nil), o.Standard.Items...)
		clone.Standard = &std
	}
	if o.Custom != nil {
		custom := *o.Custom
		custom.ImageRefs = append([]string(nil), o.Custom.ImageRefs...)
		clone.Custom = &custom
	}
	return &clone
}

// NormalizeStatus lower-cases source statuses and defaults empty values to pending.
func NormalizeStatus(status Status) Status {
	normalized := Status(strings.ToLower(strings.TrimSpace(string(status))))
	if normalized == "" {
		return StatusPending
	}
	return normalized
}

// OrderRef addresses an order in the write interface.
type OrderRef struct {
	ID          string
	OrderNumber string
	// Kind is empty when the caller does not know which source holds the order.
	Kind Kind
}

// String renders the most specific identifier of the reference.
func (r OrderRef) String() string {
	if r.ID != "" {
		return r.ID
	}
	return r.OrderNumber
}

// OrderResult is what the write interface returns after a transition.
type OrderResult struct {
	Ref       OrderRef
	Status    Status
	UpdatedAt time.Time
	// NoOp is set when the order already was in the requested state.
	NoOp bool
}
