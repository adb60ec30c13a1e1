package domain

import "time"

// Event is the base interface for all domain events.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent provides common event metadata.
type BaseEvent struct {
	ID        string
	Timestamp time.Time
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// OrderTransitioned is raised after a lifecycle write succeeded.
type OrderTransitioned struct {
	BaseEvent
	Ref        OrderRef
	Transition Transition
	FromStatus Status
	ToStatus   Status
	ActorID    string
}

// EventName returns the event type identifier, e.g. "orders.order.approve".
func (e OrderTransitioned) EventName() string {
	return "orders.order." + string(e.Transition)
}

// LogisticsHandedOff is raised once per order when logistics accepted the hand-off.
type LogisticsHandedOff struct {
	BaseEvent
	Ref OrderRef
}

// EventName returns the event type identifier.
func (e LogisticsHandedOff) EventName() string {
	return "orders.logistics.handed_off"
}
