package domain

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

// VATRate is the value-added tax applied to the goods subtotal.
var VATRate = decimal.RequireFromString("0.075")

var hundred = decimal.NewFromInt(100)

var (
	ErrInvalidTier       = errors.New("discount tier percentage must be between 0 and 100")
	ErrDuplicateTier     = errors.New("discount tier thresholds must be unique")
	ErrNonMonotonicTiers = errors.New("discount tier percentages must not decrease as thresholds grow")
)

// DiscountTier grants Percentage off the buy subtotal once the bought quantity reaches MinQuantity.
type DiscountTier struct {
	MinQuantity int
	Percentage  decimal.Decimal
}

// DiscountTable is ordered by ascending threshold.
type DiscountTable []DiscountTier

// NewDiscountTable sorts and validates tiers.
func NewDiscountTable(tiers ...DiscountTier) (DiscountTable, error) {
	table := append(DiscountTable(nil), tiers...)
	sort.Slice(table, func(i, j int) bool { return table[i].MinQuantity < table[j].MinQuantity })
	for i, tier := range table {
		if tier.Percentage.IsNegative() || tier.Percentage.GreaterThan(hundred) {
			return nil, ErrInvalidTier
		}
		if i == 0 {
			continue
		}
		if tier.MinQuantity == table[i-1].MinQuantity {
			return nil, ErrDuplicateTier
		}
		if tier.Percentage.LessThan(table[i-1].Percentage) {
			return nil, ErrNonMonotonicTiers
		}
	}
	return table, nil
}

// DefaultDiscountTable is the bulk discount schedule used by the storefront.
func DefaultDiscountTable() DiscountTable {
	return DiscountTable{
		{MinQuantity: 0, Percentage: decimal.Zero},
		{MinQuantity: 5, Percentage: decimal.NewFromInt(5)},
		{MinQuantity: 10, Percentage: decimal.NewFromInt(10)},
		{MinQuantity: 20, Percentage: decimal.NewFromInt(15)},
		{MinQuantity: 50, Percentage: decimal.NewFromInt(20)},
	}
}

// PercentageFor returns the percentage of the tier with the greatest threshold <= quantity, or zero.
func (t DiscountTable) PercentageFor(quantity int) decimal.Decimal {
	pct := decimal.Zero
	for _, tier := range t {
		if tier.MinQuantity > quantity {
			break
		}
		pct = tier.Percentage
	}
	return pct
}

// BreakdownLine is one priced row of the breakdown.
type BreakdownLine struct {
	Name      string
	Mode      ItemMode
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Breakdown is the display-only price recomputation of an order.
type Breakdown struct {
	Lines              []BreakdownLine
	BuyQuantity        int
	BuySubtotal        decimal.Decimal
	DiscountPercentage decimal.Decimal
	Discount           decimal.Decimal
	RentalDays         int
	RentalSubtotal     decimal.Decimal
	GoodsSubtotal      decimal.Decimal
	Tax                decimal.Decimal
	ComputedTotal      decimal.Decimal
	// CautionFee is reported but never discounted or taxed.
	CautionFee decimal.Decimal
	// AmountDue is always the stored order total.
	AmountDue decimal.Decimal
	// Discrepancy is AmountDue minus ComputedTotal.
	Discrepancy decimal.Decimal
}

// AmountDue returns the authoritative amount for an order: its stored total.
func AmountDue(order *Order) decimal.Decimal {
	if order == nil {
		return decimal.Zero
	}
	return order.Total
}

// RentalDays returns the order-level rental duration, defaulting to one day.
func RentalDays(order *Order) int {
	if order == nil || order.Rental == nil || order.Rental.Days <= 0 {
		return 1
	}
	return order.Rental.Days
}

// ComputeBreakdown recomputes the price of an order for display. It never mutates the order.
func ComputeBreakdown(order *Order, table DiscountTable) Breakdown {
	b := Breakdown{
		BuySubtotal:        decimal.Zero,
		DiscountPercentage: decimal.Zero,
		Discount:           decimal.Zero,
		RentalSubtotal:     decimal.Zero,
		CautionFee:         decimal.Zero,
		RentalDays:         RentalDays(order),
		AmountDue:          AmountDue(order),
	}
	if order == nil {
		return finish(b)
	}
	if order.CautionFee != nil && order.CautionFee.IsPositive() {
		b.CautionFee = *order.CautionFee
	}

	if order.Kind == KindCustom && order.Custom != nil {
		qty := order.Custom.Quantity
		if qty < 1 {
			qty = 1
		}
		unit := nonNegative(order.Custom.QuotedPrice)
		line := unit.Mul(decimal.NewFromInt(int64(qty)))
		b.Lines = append(b.Lines, BreakdownLine{Name: order.Custom.Description, Mode: ModeBuy, Quantity: qty, UnitPrice: unit, LineTotal: line})
		b.BuyQuantity = qty
		b.BuySubtotal = line
		return finish(b)
	}

	days := decimal.NewFromInt(int64(b.RentalDays))
	for _, item := range order.Items() {
		qty := item.Quantity
		if qty < 0 {
			qty = 0
		}
		unit := nonNegative(item.Price)
		line := unit.Mul(decimal.NewFromInt(int64(qty)))
		// Items without a declared mode predate buying and are rentals.
		mode := item.Mode
		if mode != ModeBuy {
			mode = ModeRent
		}
		if mode == ModeBuy {
			b.BuyQuantity += qty
			b.BuySubtotal = b.BuySubtotal.Add(line)
		} else {
			line = line.Mul(days)
			b.RentalSubtotal = b.RentalSubtotal.Add(line)
		}
		b.Lines = append(b.Lines, BreakdownLine{Name: item.Name, Mode: mode, Quantity: qty, UnitPrice: unit, LineTotal: line})
	}
	b.DiscountPercentage = table.PercentageFor(b.BuyQuantity)
	b.Discount = b.BuySubtotal.Mul(b.DiscountPercentage).Div(hundred).Round(2)
	return finish(b)
}

func finish(b Breakdown) Breakdown {
	b.GoodsSubtotal = b.BuySubtotal.Sub(b.Discount).Add(b.RentalSubtotal)
	b.Tax = b.GoodsSubtotal.Mul(VATRate).Round(2)
	b.ComputedTotal = b.GoodsSubtotal.Add(b.Tax)
	b.Discrepancy = b.AmountDue.Sub(b.ComputedTotal)
	return b
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
