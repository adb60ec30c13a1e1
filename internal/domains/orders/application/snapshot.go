package application

import (
	"strings"
	"sync"
	"time"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

// AnnotatedOrder is a merged order with its derived payment status and price breakdown.
// Orders inside a snapshot are shared and must be treated as read-only.
type AnnotatedOrder struct {
	Key       domain.Key
	Order     *domain.Order
	Payment   domain.PaymentStatus
	Breakdown domain.Breakdown
}

// Snapshot is one published version of the annotated order list.
type Snapshot struct {
	Version         uint64
	Orders          []AnnotatedOrder
	MembershipPrint string
	StatusPrint     string
	// Degraded is set when the publishing cycle reused stale data for a failed source.
	Degraded    bool
	PublishedAt time.Time
}

// Lookup finds an order by id, order number or rendered key.
func (s Snapshot) Lookup(ref string) (AnnotatedOrder, bool) {
	ref = strings.TrimSpace(ref)
	for _, entry := range s.Orders {
		if entry.Key.Matches(ref, entry.Order.OrderNumber) {
			return entry, true
		}
	}
	return AnnotatedOrder{}, false
}

// View returns the orders of one admin partition.
func (s Snapshot) View(view domain.View) []AnnotatedOrder {
	var out []AnnotatedOrder
	for _, entry := range s.Orders {
		if v, ok := domain.ViewOf(entry.Order.Status); ok && v == view {
			out = append(out, entry)
		}
	}
	return out
}

// ForCustomer returns the orders placed with email, case-insensitively.
func (s Snapshot) ForCustomer(email string) []AnnotatedOrder {
	email = strings.TrimSpace(email)
	var out []AnnotatedOrder
	for _, entry := range s.Orders {
		if email != "" && strings.EqualFold(entry.Order.Customer.Email, email) {
			out = append(out, entry)
		}
	}
	return out
}

// SnapshotToken identifies an optimistic transition applied to the store.
type SnapshotToken struct {
	id uint64
}

// pendingTransition remembers the single entry a transition touched.
type pendingTransition struct {
	transition domain.Transition
	key        domain.Key
	before     AnnotatedOrder
	found      bool
	index      int
	generation uint64
}

// SnapshotStore holds the per-consumer annotated order list. Cycles publish whole
// snapshots; lifecycle transitions are applied optimistically through a reducer and
// rolled back per order key.
type SnapshotStore struct {
	mu      sync.RWMutex
	current Snapshot
	table   domain.DiscountTable
	now     func() time.Time

	// generation counts publishes only; transitions bump Version but not generation.
	generation uint64
	// applied is set once a transition mutates the published orders.
	applied    bool
	pending    map[uint64]pendingTransition
	nextTx     uint64

	subs    map[int]chan uint64
	nextSub int
}

type SnapshotOption func(*SnapshotStore)

func WithSnapshotClock(now func() time.Time) SnapshotOption {
	return func(s *SnapshotStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSnapshotStore(table domain.DiscountTable, opts ...SnapshotOption) *SnapshotStore {
	if table == nil {
		table = domain.DefaultDiscountTable()
	}
	s := &SnapshotStore{
		table:   table,
		now:     time.Now,
		pending: map[uint64]pendingTransition{},
		subs:    map[int]chan uint64{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Publish replaces the snapshot with the cycle result.
func (s *SnapshotStore) Publish(cycle *ports.Cycle, membership, status string) Snapshot {
	orders := make([]AnnotatedOrder, 0, len(cycle.Orders))
	for _, order := range cycle.Orders {
		key, ok := order.Key()
		if !ok {
			continue
		}
		payment, ok := cycle.Payments[key]
		if !ok {
			payment = domain.PaymentPending
		}
		orders = append(orders, AnnotatedOrder{
			Key:       key,
			Order:     order,
			Payment:   payment,
			Breakdown: domain.ComputeBreakdown(order, s.table),
		})
	}

	s.mu.Lock()
	s.generation++
	s.applied = false
	s.current = Snapshot{
		Version:         s.current.Version + 1,
		Orders:          orders,
		MembershipPrint: membership,
		StatusPrint:     status,
		Degraded:        len(cycle.Failed) > 0,
		PublishedAt:     s.now(),
	}
	snap := s.current
	s.mu.Unlock()

	s.notify(snap.Version)
	return snap
}

// Current returns the latest snapshot.
func (s *SnapshotStore) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Lookup finds an order in the latest snapshot.
func (s *SnapshotStore) Lookup(ref string) (AnnotatedOrder, bool) {
	return s.Current().Lookup(ref)
}

// Apply optimistically moves the order identified by key through t.
func (s *SnapshotStore) Apply(t domain.Transition, key domain.Key) SnapshotToken {
	s.mu.Lock()
	tx := pendingTransition{transition: t, key: key, generation: s.generation}
	for i, entry := range s.current.Orders {
		if entry.Key == key {
			tx.before, tx.found, tx.index = entry, true, i
			break
		}
	}
	s.current.Orders = reduce(s.current.Orders, t, key)
	s.current.Version++
	s.applied = true
	s.nextTx++
	token := SnapshotToken{id: s.nextTx}
	s.pending[token.id] = tx
	version := s.current.Version
	s.mu.Unlock()

	s.notify(version)
	return token
}

// Commit forgets the rollback state of a transition whose write succeeded.
func (s *SnapshotStore) Commit(token SnapshotToken) {
	s.mu.Lock()
	delete(s.pending, token.id)
	s.mu.Unlock()
}

// Rollback restores the entry the transition changed, leaving every other order
// as it is. It does nothing when a cycle was published since, because that data
// already reflects the store, or when a later transition moved the same order again.
func (s *SnapshotStore) Rollback(token SnapshotToken) bool {
	s.mu.Lock()
	tx, ok := s.pending[token.id]
	delete(s.pending, token.id)
	if !ok || !tx.found || tx.generation != s.generation {
		s.mu.Unlock()
		return false
	}
	orders, restored := restore(s.current.Orders, tx)
	if !restored {
		s.mu.Unlock()
		return false
	}
	s.current.Orders = orders
	s.current.Version++
	version := s.current.Version
	s.mu.Unlock()

	s.notify(version)
	return true
}

// Diverged reports whether settled transitions changed the orders since the last
// publish. A cycle whose fingerprints are unchanged should still be published then.
func (s *SnapshotStore) Diverged() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applied && len(s.pending) == 0
}

// Subscribe returns a channel receiving new snapshot versions. Slow subscribers
// miss intermediate versions and should read Current.
func (s *SnapshotStore) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
		s.mu.Unlock()
	}
}

func (s *SnapshotStore) notify(version uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- version:
		default:
		}
	}
}

func reduce(orders []AnnotatedOrder, t domain.Transition, key domain.Key) []AnnotatedOrder {
	next := make([]AnnotatedOrder, 0, len(orders))
	for _, entry := range orders {
		if entry.Key != key {
			next = append(next, entry)
			continue
		}
		if t == domain.TransitionDelete {
			continue
		}
		order := entry.Order.Clone()
		order.Status = t.Target()
		entry.Order = order
		if domain.PaidByStatus(order.Status) {
			entry.Payment = domain.PaymentPaid
		}
		next = append(next, entry)
	}
	return next
}

func restore(orders []AnnotatedOrder, tx pendingTransition) ([]AnnotatedOrder, bool) {
	for i, entry := range orders {
		if entry.Key != tx.key {
			continue
		}
		if tx.transition == domain.TransitionDelete || entry.Order.Status != tx.transition.Target() {
			return orders, false
		}
		next := make([]AnnotatedOrder, len(orders))
		copy(next, orders)
		next[i] = tx.before
		return next, true
	}
	if tx.transition != domain.TransitionDelete {
		return orders, false
	}
	index := tx.index
	if index > len(orders) {
		index = len(orders)
	}
	next := make([]AnnotatedOrder, 0, len(orders)+1)
	next = append(next, orders[:index]...)
	next = append(next, tx.before)
	next = append(next, orders[index:]...)
	return next, true
}
