package application

import (
	"strings"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

// MergeResult is the de-duplicated union of both order sources.
type MergeResult struct {
	Orders  []*domain.Order
	Dropped []UnidentifiableOrder
}

// MergeOrders unions standard and custom orders. Standard records win on collision,
// the first-seen record wins within a source, and an order number already claimed
// by an earlier record marks the later one as the same order unless both carry
// different ids. Output keeps insertion order.
func MergeOrders(standard, custom []*domain.Order) MergeResult {
	result := MergeResult{Orders: make([]*domain.Order, 0, len(standard)+len(custom))}
	keys := make(map[domain.Key]struct{}, len(standard)+len(custom))
	// numbers maps each claimed order number to the id of its first claimant.
	numbers := make(map[string]string, len(standard)+len(custom))

	insert := func(source ports.Source, records []*domain.Order) {
		for i, order := range records {
			key, ok := order.Key()
			if !ok {
				result.Dropped = append(result.Dropped, UnidentifiableOrder{Source: source, Index: i})
				continue
			}
			if _, seen := keys[key]; seen {
				continue
			}
			number := strings.TrimSpace(order.OrderNumber)
			if number != "" {
				claimant, seen := numbers[number]
				if seen && !distinctIDs(claimant, order.ID) {
					continue
				}
				if !seen {
					numbers[number] = strings.TrimSpace(order.ID)
				}
			}
			keys[key] = struct{}{}
			result.Orders = append(result.Orders, order)
		}
	}
	insert(ports.SourceStandard, standard)
	insert(ports.SourceCustom, custom)
	return result
}

// distinctIDs reports whether two records sharing an order number are separate orders.
func distinctIDs(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && b != "" && a != b
}
