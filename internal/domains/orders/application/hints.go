package application

import (
	"sync"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
)

// ItemHintKey addresses one line item of one order.
type ItemHintKey struct {
	Order domain.Key
	Item  string
}

// ItemHint is the last known display attributes of a line item.
type ItemHint struct {
	Mode     domain.ItemMode
	ImageRef string
}

// ItemHints remembers item modes and image refs across cycles so a source that
// later omits them does not flip a bought item into a rental.
type ItemHints struct {
	mu      sync.RWMutex
	entries map[ItemHintKey]ItemHint
}

func NewItemHints() *ItemHints {
	return &ItemHints{entries: map[ItemHintKey]ItemHint{}}
}

// Remember stores the non-empty fields of hint.
func (h *ItemHints) Remember(key ItemHintKey, hint ItemHint) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	current := h.entries[key]
	if hint.Mode != domain.ModeUnset {
		current.Mode = hint.Mode
	}
	if hint.ImageRef != "" {
		current.ImageRef = hint.ImageRef
	}
	h.entries[key] = current
}

// Lookup returns the stored hint for key.
func (h *ItemHints) Lookup(key ItemHintKey) (ItemHint, bool) {
	if h == nil {
		return ItemHint{}, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	hint, ok := h.entries[key]
	return hint, ok
}

// Len reports how many items are remembered.
func (h *ItemHints) Len() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Backfill records declared attributes of order items and fills in missing ones.
// The returned order is a clone when anything was filled, otherwise the input.
func (h *ItemHints) Backfill(order *domain.Order) *domain.Order {
	if h == nil || order == nil || order.Standard == nil {
		return order
	}
	key, ok := order.Key()
	if !ok {
		return order
	}
	var filled *domain.Order
	for i, item := range order.Standard.Items {
		hintKey := ItemHintKey{Order: key, Item: item.Name}
		if item.Mode != domain.ModeUnset || item.ImageRef != "" {
			h.Remember(hintKey, ItemHint{Mode: item.Mode, ImageRef: item.ImageRef})
		}
		if item.Mode != domain.ModeUnset && item.ImageRef != "" {
			continue
		}
		hint, ok := h.Lookup(hintKey)
		if !ok {
			continue
		}
		if filled == nil {
			filled = order.Clone()
		}
		target := &filled.Standard.Items[i]
		if target.Mode == domain.ModeUnset {
			target.Mode = hint.Mode
		}
		if target.ImageRef == "" {
			target.ImageRef = hint.ImageRef
		}
	}
	if filled == nil {
		return order
	}
	return filled
}
