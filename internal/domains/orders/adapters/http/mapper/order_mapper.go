package mapper

import (
	"time"

	"github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/application"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
)

// Customer is the HTTP representation of the buyer contact.
type Customer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Item is one line of a standard order.
type Item struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Mode     string          `json:"mode"`
	ImageRef string          `json:"image,omitempty"`
}

// CustomDetails carries bespoke order fields.
type CustomDetails struct {
	Description string          `json:"description,omitempty"`
	ImageRefs   []string        `json:"images,omitempty"`
	Quantity    int             `json:"quantity"`
	QuotedPrice decimal.Decimal `json:"quotedPrice"`
}

// Rental is the order-level rental window with calendar dates.
type Rental struct {
	StartDate *types.Date `json:"startDate,omitempty"`
	EndDate   *types.Date `json:"endDate,omitempty"`
	Days      int         `json:"days"`
}

// BreakdownLine is one priced line.
type BreakdownLine struct {
	Name      string          `json:"name"`
	Mode      string          `json:"mode"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// Breakdown is the display price computation. AmountDue is always the stored total.
type Breakdown struct {
	Lines              []BreakdownLine `json:"lines"`
	BuySubtotal        decimal.Decimal `json:"buySubtotal"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	Discount           decimal.Decimal `json:"discount"`
	RentalDays         int             `json:"rentalDays"`
	RentalSubtotal     decimal.Decimal `json:"rentalSubtotal"`
	Tax                decimal.Decimal `json:"tax"`
	ComputedTotal      decimal.Decimal `json:"computedTotal"`
	CautionFee         decimal.Decimal `json:"cautionFee"`
	AmountDue          decimal.Decimal `json:"amountDue"`
	Discrepancy        decimal.Decimal `json:"discrepancy"`
}

// Order is the HTTP representation of an annotated order.
type Order struct {
	Key           string           `json:"key"`
	ID            string           `json:"id,omitempty"`
	OrderNumber   string           `json:"orderNumber,omitempty"`
	Kind          string           `json:"kind"`
	Status        string           `json:"status"`
	View          string           `json:"view,omitempty"`
	PaymentStatus string           `json:"paymentStatus"`
	Customer      Customer         `json:"customer"`
	Items         []Item           `json:"items,omitempty"`
	Custom        *CustomDetails   `json:"custom,omitempty"`
	Rental        *Rental          `json:"rental,omitempty"`
	Total         decimal.Decimal  `json:"total"`
	CautionFee    *decimal.Decimal `json:"cautionFee,omitempty"`
	CreatedAt     time.Time        `json:"createdAt,omitempty"`
}

// Invoice is the buyer invoice view of one order.
type Invoice struct {
	Order     Order     `json:"order"`
	Breakdown Breakdown `json:"breakdown"`
}

// Freshness reports how current the order list is.
type Freshness struct {
	Version       uint64     `json:"version"`
	State         string     `json:"state"`
	Loading       bool       `json:"loading"`
	Degraded      bool       `json:"degraded"`
	RetryInMs     int64      `json:"retryInMs,omitempty"`
	LastSuccessAt *time.Time `json:"lastSuccessAt,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// OrderList is the admin list response.
type OrderList struct {
	Freshness Freshness `json:"freshness"`
	Orders    []Order   `json:"orders"`
}

// ApproveRequest is the approve payload.
type ApproveRequest struct {
	ApproverID string `json:"approverId" binding:"required"`
}

// TransitionResult is the response of a lifecycle transition.
type TransitionResult struct {
	ID          string    `json:"id,omitempty"`
	OrderNumber string    `json:"orderNumber,omitempty"`
	Status      string    `json:"status"`
	NoOp        bool      `json:"noop"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// FromAnnotated maps a snapshot entry to its HTTP form.
func FromAnnotated(entry application.AnnotatedOrder) Order {
	order := entry.Order
	out := Order{
		Key:           entry.Key.String(),
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		Kind:          string(order.Kind),
		Status:        string(order.Status),
		PaymentStatus: string(entry.Payment),
		Customer:      Customer{Name: order.Customer.Name, Email: order.Customer.Email, Phone: order.Customer.Phone},
		Total:         order.Total,
		CautionFee:    order.CautionFee,
		CreatedAt:     order.CreatedAt,
	}
	if view, ok := domain.ViewOf(order.Status); ok {
		out.View = string(view)
	}
	for _, item := range order.Items() {
		mode := item.Mode
		if mode == domain.ModeUnset {
			mode = domain.ModeRent
		}
		out.Items = append(out.Items, Item{
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
			Mode:     string(mode),
			ImageRef: item.ImageRef,
		})
	}
	if order.Custom != nil {
		out.Custom = &CustomDetails{
			Description: order.Custom.Description,
			ImageRefs:   order.Custom.ImageRefs,
			Quantity:    order.Custom.Quantity,
			QuotedPrice: order.Custom.QuotedPrice,
		}
	}
	if order.Rental != nil {
		out.Rental = &Rental{
			StartDate: toDate(order.Rental.StartDate),
			EndDate:   toDate(order.Rental.EndDate),
			Days:      domain.RentalDays(order),
		}
	}
	return out
}

// FromAnnotatedList maps a list of snapshot entries.
func FromAnnotatedList(entries []application.AnnotatedOrder) []Order {
	out := make([]Order, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromAnnotated(entry))
	}
	return out
}

// FromBreakdown maps a price breakdown.
func FromBreakdown(b domain.Breakdown) Breakdown {
	out := Breakdown{
		Lines:              make([]BreakdownLine, 0, len(b.Lines)),
		BuySubtotal:        b.BuySubtotal,
		DiscountPercentage: b.DiscountPercentage,
		Discount:           b.Discount,
		RentalDays:         b.RentalDays,
		RentalSubtotal:     b.RentalSubtotal,
		Tax:                b.Tax,
		ComputedTotal:      b.ComputedTotal,
		CautionFee:         b.CautionFee,
		AmountDue:          b.AmountDue,
		Discrepancy:        b.Discrepancy,
	}
	for _, line := range b.Lines {
		out.Lines = append(out.Lines, BreakdownLine{
			Name:      line.Name,
			Mode:      string(line.Mode),
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
		})
	}
	return out
}

// FromInvoice maps the invoice view.
func FromInvoice(entry application.AnnotatedOrder) Invoice {
	return Invoice{Order: FromAnnotated(entry), Breakdown: FromBreakdown(entry.Breakdown)}
}

// FromStatus maps the scheduler status and snapshot metadata.
func FromStatus(snap application.Snapshot, status application.SchedulerStatus) Freshness {
	out := Freshness{
		Version:   snap.Version,
		State:     string(status.State),
		Loading:   status.Loading,
		Degraded:  status.Degraded || snap.Degraded,
		RetryInMs: status.Delay.Milliseconds(),
	}
	if !status.LastSuccessAt.IsZero() {
		at := status.LastSuccessAt
		out.LastSuccessAt = &at
	}
	if status.LastError != nil {
		out.Error = status.LastError.Error()
	}
	return out
}

// FromResult maps a transition result.
func FromResult(result *domain.OrderResult) TransitionResult {
	if result == nil {
		return TransitionResult{}
	}
	return TransitionResult{
		ID:          result.Ref.ID,
		OrderNumber: result.Ref.OrderNumber,
		Status:      string(result.Status),
		NoOp:        result.NoOp,
		UpdatedAt:   result.UpdatedAt,
	}
}

func toDate(t time.Time) *types.Date {
	if t.IsZero() {
		return nil
	}
	return &types.Date{Time: t}
}
