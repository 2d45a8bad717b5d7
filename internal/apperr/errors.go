package apperr

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned when the input fails domain validation.
var ErrInvalid = errors.New("invalid input")

// ErrConflict indicates a uniqueness or state conflict (HTTP 409).
var ErrConflict = errors.New("conflict")

// ErrNotFound indicates that the requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrEvaluation means an order could not be evaluated (malformed order or
// unknown service class). The order is skipped for the cycle.
var ErrEvaluation = errors.New("evaluation error")

// ErrNoCandidate means scoring found no eligible replacement driver.
var ErrNoCandidate = errors.New("no candidate available")

// ErrPersistence means the order store or driver registry is unreachable.
var ErrPersistence = errors.New("persistence error")

// ErrNotification and ErrAudit mark best-effort side channel failures.
var (
	ErrNotification = errors.New("notification error")
	ErrAudit        = errors.New("audit error")
)

// Reassignment precondition failures.
var (
	ErrStaleOrderState   = errors.New("stale order state")
	ErrDriverUnavailable = errors.New("driver unavailable")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
)

// ReassignmentError is returned by the executor when a precondition fails.
// It unwraps to one of ErrStaleOrderState, ErrDriverUnavailable or ErrCapacityExceeded.
type ReassignmentError struct {
	Kind     error
	OrderID  string
	DriverID string
	Detail   string
}

func (e *ReassignmentError) Error() string {
	msg := fmt.Sprintf("reassign order %s: %v", e.OrderID, e.Kind)
	if e.DriverID != "" {
		msg += " (driver " + e.DriverID + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ReassignmentError) Unwrap() error { return e.Kind }

// Reassignment builds a ReassignmentError of the given kind.
func Reassignment(kind error, orderID, driverID, detail string) error {
	return &ReassignmentError{Kind: kind, OrderID: orderID, DriverID: driverID, Detail: detail}
}

// IsReassignment reports whether err is a clean precondition abort.
func IsReassignment(err error) bool {
	var re *ReassignmentError
	return errors.As(err, &re)
}

// Persistence wraps a store failure so callers can detect it with errors.Is.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
