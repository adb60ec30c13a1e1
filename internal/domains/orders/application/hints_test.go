package application

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
)

func TestItemHints_Backfill(t *testing.T) {
	hints := NewItemHints()
	declared := standardOrder("o1", "", domain.StatusPending,
		domain.OrderItem{Name: "Crown", Quantity: 1, Mode: domain.ModeBuy, ImageRef: "crown.png"},
		domain.OrderItem{Name: "Robe", Quantity: 1},
	)

	require.Same(t, declared, hints.Backfill(declared), "nothing to fill")
	require.Equal(t, 1, hints.Len())

	later := standardOrder("o1", "", domain.StatusPending,
		domain.OrderItem{Name: "Crown", Quantity: 1},
		domain.OrderItem{Name: "Robe", Quantity: 1},
	)
	filled := hints.Backfill(later)

	require.NotSame(t, later, filled)
	require.Equal(t, domain.ModeBuy, filled.Standard.Items[0].Mode)
	require.Equal(t, "crown.png", filled.Standard.Items[0].ImageRef)
	require.Equal(t, domain.ModeUnset, filled.Standard.Items[1].Mode)
	require.Equal(t, domain.ModeUnset, later.Standard.Items[0].Mode)
}

func TestItemHints_RememberKeepsKnownFields(t *testing.T) {
	hints := NewItemHints()
	key := ItemHintKey{Order: domain.Key{By: domain.KeyByID, Value: "o1"}, Item: "Crown"}

	hints.Remember(key, ItemHint{Mode: domain.ModeRent})
	hints.Remember(key, ItemHint{ImageRef: "crown.png"})

	hint, ok := hints.Lookup(key)
	require.True(t, ok)
	require.Equal(t, ItemHint{Mode: domain.ModeRent, ImageRef: "crown.png"}, hint)
}

func TestItemHints_NilAndCustomOrders(t *testing.T) {
	var hints *ItemHints
	order := customOrder("c1", "", domain.StatusPending)

	require.Same(t, order, hints.Backfill(order))
	require.Zero(t, hints.Len())
	require.Same(t, order, NewItemHints().Backfill(order))
}
