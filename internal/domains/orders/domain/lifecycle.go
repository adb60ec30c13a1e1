package domain

import (
	"errors"
	"fmt"
)

// Transition names an admin lifecycle action.
type Transition string

const (
	TransitionApprove     Transition = "approve"
	TransitionMarkReady   Transition = "mark_ready"
	TransitionMarkShipped Transition = "mark_shipped"
	TransitionDelete      Transition = "delete"
)

var (
	ErrTransitionNotAllowed = errors.New("transition not allowed from current status")
	ErrUnknownTransition    = errors.New("unknown transition")
)

var transitionRules = map[Transition]struct {
	from Status
	to   Status
}{
	TransitionApprove:     {from: StatusPending, to: StatusApproved},
	TransitionMarkReady:   {from: StatusApproved, to: StatusReady},
	TransitionMarkShipped: {from: StatusReady, to: StatusShipped},
	TransitionDelete:      {to: StatusDeleted},
}

// Target is the status an order holds after the transition.
func (t Transition) Target() Status {
	return transitionRules[t].to
}

// CheckTransition validates t against the current status. noop is true when the
// order already sits in the target status; delete is allowed from any status.
func CheckTransition(t Transition, current Status) (noop bool, err error) {
	rule, ok := transitionRules[t]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownTransition, t)
	}
	current = NormalizeStatus(current)
	if t == TransitionDelete {
		return current == StatusDeleted, nil
	}
	if current == rule.to {
		return true, nil
	}
	if current != rule.from {
		return false, fmt.Errorf("%w: %s requires %s, order is %s", ErrTransitionNotAllowed, t, rule.from, current)
	}
	return false, nil
}

// View is an admin panel partition of the order list.
type View string

const (
	ViewPending   View = "pending"
	ViewApproved  View = "approved"
	ViewLogistics View = "logistics"
	ViewShipped   View = "shipped"
)

// ViewOf maps a status to its partition. Terminal statuses belong to no view.
func ViewOf(status Status) (View, bool) {
	switch NormalizeStatus(status) {
	case StatusPending:
		return ViewPending, true
	case StatusApproved:
		return ViewApproved, true
	case StatusReady:
		return ViewLogistics, true
	case StatusShipped:
		return ViewShipped, true
	default:
		return "", false
	}
}

// ParseView validates a view name.
func ParseView(raw string) (View, bool) {
	switch View(raw) {
	case ViewPending, ViewApproved, ViewLogistics, ViewShipped:
		return View(raw), true
	default:
		return "", false
	}
}
