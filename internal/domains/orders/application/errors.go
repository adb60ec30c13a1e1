package application

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

var (
	// ErrInvalidInput signals the request violated a domain invariant.
	ErrInvalidInput = errors.New("invalid order input")
	// ErrOrderNotFound means the order is not part of the current snapshot.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPaymentRequired guards approval of unpaid orders.
	ErrPaymentRequired = errors.New("order is not paid")
)

// SourceFetchError reports a failed or timed out read from one collaborator.
type SourceFetchError struct {
	Source ports.Source
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// PartialMergeWarning marks a cycle that published with at least one source missing.
type PartialMergeWarning struct {
	Failed []ports.Source
	Errs   []error
}

func (e *PartialMergeWarning) Error() string {
	names := make([]string, 0, len(e.Failed))
	for _, src := range e.Failed {
		names = append(names, string(src))
	}
	return "partial merge: " + strings.Join(names, ", ") + " unavailable"
}

func (e *PartialMergeWarning) Unwrap() []error { return e.Errs }

// TransitionGuardViolation is returned before any write when a transition is not allowed.
type TransitionGuardViolation struct {
	Transition domain.Transition
	OrderID    string
	From       domain.Status
	Err        error
}

func (e *TransitionGuardViolation) Error() string {
	return fmt.Sprintf("%s order %s rejected (status %s): %v", e.Transition, e.OrderID, e.From, e.Err)
}

func (e *TransitionGuardViolation) Unwrap() error { return e.Err }

// TransitionWriteError wraps a failed write. The caller may retry the transition.
type TransitionWriteError struct {
	Transition domain.Transition
	OrderID    string
	Err        error
}

func (e *TransitionWriteError) Error() string {
	return fmt.Sprintf("%s order %s: write failed: %v", e.Transition, e.OrderID, e.Err)
}

func (e *TransitionWriteError) Unwrap() error { return e.Err }

// Retryable reports that repeating the transition is safe.
func (e *TransitionWriteError) Retryable() bool { return true }

// LogisticsHandoffError means the status write succeeded but logistics was not notified.
// Calling MarkReady again completes the hand-off.
type LogisticsHandoffError struct {
	OrderID string
	Err     error
}

func (e *LogisticsHandoffError) Error() string {
	return fmt.Sprintf("logistics hand-off for order %s: %v", e.OrderID, e.Err)
}

func (e *LogisticsHandoffError) Unwrap() error { return e.Err }

// Retryable reports that repeating MarkReady is safe.
func (e *LogisticsHandoffError) Retryable() bool { return true }

// UnidentifiableOrder describes a source record dropped for lack of identity.
type UnidentifiableOrder struct {
	Source ports.Source
	Index  int
}

func (e UnidentifiableOrder) Error() string {
	return fmt.Sprintf("unidentifiable order at %s[%d]", e.Source, e.Index)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrUnknownTransition) ||
		errors.Is(err, domain.ErrMissingIdentity) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}
