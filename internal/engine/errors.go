package engine

import (
	"errors"
	"fmt"
)

// Sentinels matched by errors.Is against the RuntimeError of the same code.
var (
	ErrReadOnly    = errors.New("read-only entity")
	ErrInterrupted = errors.New("transaction interrupted")
)

// RuntimeError represents an error detected during propagation.
//
// Runtime errors include:
//   - Stale reference: a dependency or channel-set entry points at a missing entity
//   - Depth exceeded: an event went deeper than the configured bound
//   - Cycle detected: the same event was already propagated in this pass
//   - Read-only: a mutation was attempted on a read-only entity
//   - Interrupted: the transaction was interrupted
//
// Only read-only and interrupted errors reach callers; the others are
// logged, counted in the transaction stats and the branch is skipped.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// TxID identifies the affected transaction.
	TxID string

	// Entity identifies the entity the error is about.
	Entity string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeStaleReference indicates a referenced entity no longer exists.
	ErrCodeStaleReference RuntimeErrorCode = "STALE_REFERENCE"

	// ErrCodeDepthExceeded indicates an event exceeded the depth bound.
	ErrCodeDepthExceeded RuntimeErrorCode = "DEPTH_EXCEEDED"

	// ErrCodeCycleDetected indicates an event was already propagated in this pass.
	ErrCodeCycleDetected RuntimeErrorCode = "CYCLE_DETECTED"

	// ErrCodeReadOnly indicates a mutation of a read-only entity.
	ErrCodeReadOnly RuntimeErrorCode = "READ_ONLY"

	// ErrCodeInterrupted indicates the transaction was interrupted.
	ErrCodeInterrupted RuntimeErrorCode = "INTERRUPTED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.TxID != "" && e.Entity != "" {
		return fmt.Sprintf("%s: %s (tx=%s, entity=%s)", e.Code, e.Message, e.TxID, e.Entity)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s (entity=%s)", e.Code, e.Message, e.Entity)
	}
	if e.TxID != "" {
		return fmt.Sprintf("%s: %s (tx=%s)", e.Code, e.Message, e.TxID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the sentinel of the error code, if there is one.
func (e *RuntimeError) Unwrap() error {
	switch e.Code {
	case ErrCodeReadOnly:
		return ErrReadOnly
	case ErrCodeInterrupted:
		return ErrInterrupted
	default:
		return nil
	}
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsStaleError returns true if the error is a stale reference error.
// Uses errors.As to handle wrapped errors.
func IsStaleError(err error) bool { return hasCode(err, ErrCodeStaleReference) }

// IsDepthError returns true if the error is a depth exceeded error.
func IsDepthError(err error) bool { return hasCode(err, ErrCodeDepthExceeded) }

// IsCycleError returns true if the error is a cycle detection error.
func IsCycleError(err error) bool { return hasCode(err, ErrCodeCycleDetected) }

// IsReadOnlyError returns true if the error is a read-only violation.
func IsReadOnlyError(err error) bool { return hasCode(err, ErrCodeReadOnly) }

// IsInterruptedError returns true if the transaction was interrupted.
func IsInterruptedError(err error) bool { return hasCode(err, ErrCodeInterrupted) }

// NewStaleError creates a RuntimeError for a missing entity.
func NewStaleError(txID, entity string, cause error) *RuntimeError {
	re := &RuntimeError{
		Code:    ErrCodeStaleReference,
		Message: "referenced entity no longer exists",
		TxID:    txID,
		Entity:  entity,
	}
	if cause != nil {
		re.Details = map[string]string{"cause": cause.Error()}
	}
	return re
}

// NewDepthError creates a RuntimeError for an event beyond the depth bound.
func NewDepthError(txID, entity string, depth, maxDepth int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDepthExceeded,
		Message: fmt.Sprintf("event depth exceeded bound (%d > %d)", depth, maxDepth),
		TxID:    txID,
		Entity:  entity,
		Details: map[string]string{
			"depth":     fmt.Sprintf("%d", depth),
			"max_depth": fmt.Sprintf("%d", maxDepth),
		},
	}
}

// NewCycleError creates a RuntimeError for a repeated event.
func NewCycleError(txID, entity string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCycleDetected,
		Message: "event already propagated in this pass",
		TxID:    txID,
		Entity:  entity,
	}
}

// NewReadOnlyError creates a RuntimeError for a read-only violation.
func NewReadOnlyError(txID, entity string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeReadOnly,
		Message: "entity was fetched read-only and cannot be modified",
		TxID:    txID,
		Entity:  entity,
	}
}

// NewInterruptedError creates a RuntimeError for an interrupted transaction.
func NewInterruptedError(txID string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInterrupted,
		Message: "transaction interrupted, remaining propagation skipped",
		TxID:    txID,
	}
}
