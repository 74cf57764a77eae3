package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"tire-service/internal/model"
)

// NotFoundError indicates a referenced tire, vehicle, warehouse, SKU or
// operation record does not exist.
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// InvalidTransitionError indicates the requested operation is incompatible
// with the tire's current status. The current status is carried for caller
// diagnostics.
type InvalidTransitionError struct {
	TireID uint
	From   model.TireStatus
	Op     string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("tire %d: cannot %s while %s: %s", e.TireID, e.Op, e.From, e.Reason)
	}
	return fmt.Sprintf("tire %d: cannot %s while %s", e.TireID, e.Op, e.From)
}

// PositionOccupiedError indicates the target axle position already holds a
// different tire.
type PositionOccupiedError struct {
	VehicleID  uint
	Position   string
	OccupantID uint
}

func (e *PositionOccupiedError) Error() string {
	return fmt.Sprintf("position %s on vehicle %d occupied by tire %d",
		e.Position, e.VehicleID, e.OccupantID)
}

// ConflictError indicates lock acquisition timed out under concurrent
// contention. Safe for the caller to retry with backoff.
type ConflictError struct {
	Resource string
	Err      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %v", e.Resource, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// BatchError wraps the first per-pair failure of a rotation batch. The whole
// batch is rejected; nothing is applied.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("rotation pair %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a NotFoundError anywhere in its chain
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError
func IsInvalidTransition(err error) bool {
	var it *InvalidTransitionError
	return errors.As(err, &it)
}

// IsPositionOccupied reports whether err is a PositionOccupiedError
func IsPositionOccupied(err error) bool {
	var po *PositionOccupiedError
	return errors.As(err, &po)
}

// IsConflict reports whether err is a ConflictError
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// isLockConflict detects a PostgreSQL lock_timeout expiry (SQLSTATE 55P03)
// or a deadlock abort (SQLSTATE 40P01). Both leave the transaction rolled
// back and are safe to retry.
func isLockConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "55P03") ||
		strings.Contains(msg, "40P01") ||
		strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "lock timeout") ||
		strings.Contains(msg, "canceling statement due to lock timeout")
}
