/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify errors with errors.Is / errors.As and the helpers below.

ERROR CATEGORIES:
  1. Validation errors - Bad input, rejected before any write
  2. State errors - The request is well formed but the current state forbids it
     (completing a completed transaction, a settlement with no valid lines)
  3. Persistence errors - Database failure; the whole operation rolled back

RETRY POLICY:
  Nothing is retried internally. A persistence failure leaves no partial
  ledger rows (the write ran in one database transaction), so the caller
  may resubmit the same logical request.

SEE ALSO:
  - gold/engine.go: Raises these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when a delivery status change is not
	// allowed from the current state. Guards against double completion.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrNoValidLines is returned when a settlement carries no usable line.
	ErrNoValidLines = errors.New("no valid lines")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyReversed is returned when reversing an effect twice.
	ErrAlreadyReversed = errors.New("already reversed")

	// ErrPersistence is returned when the store fails mid-operation.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message,omitempty"`
}

func (f FieldError) String() string {
	if f.Message != "" {
		return f.Field + ": " + f.Message
	}
	return f.Field + ": " + f.Rule
}

// ValidationError lists every rejected field of one request.
type ValidationError struct {
	Op     string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%s: validation failed: %s", e.Op, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Add appends a field error.
func (e *ValidationError) Add(field, rule, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Rule: rule, Message: message})
}

// Merge appends another error's fields under a prefix (e.g. "items[2]").
func (e *ValidationError) Merge(prefix string, other *ValidationError) {
	if other == nil {
		return
	}
	for _, f := range other.Fields {
		if prefix != "" {
			f.Field = prefix + "." + f.Field
		}
		e.Fields = append(e.Fields, f)
	}
}

// CheckRials rejects field when value cannot be stored as whole Rial.
func (e *ValidationError) CheckRials(field string, value decimal.Decimal) {
	if !RialsFit(value) {
		e.Add(field, "lte=max_rials", "amount is out of range")
	}
}

// OrNil returns nil when no field was rejected.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NewValidationError builds a single-field validation error.
func NewValidationError(op, field, rule, message string) *ValidationError {
	e := &ValidationError{Op: op}
	e.Add(field, rule, message)
	return e
}

// StateError reports an operation the current state does not allow.
type StateError struct {
	Op      string
	Current string
	Wanted  string
	cause   error
}

func NewStateError(op, current, wanted string) *StateError {
	return &StateError{Op: op, Current: current, Wanted: wanted, cause: ErrInvalidTransition}
}

// NewNoLinesError reports a write with nothing valid to post.
func NewNoLinesError(op string) *StateError {
	return &StateError{Op: op, cause: ErrNoValidLines}
}

func (e *StateError) Error() string {
	if errors.Is(e.cause, ErrNoValidLines) {
		return fmt.Sprintf("%s: %v", e.Op, e.cause)
	}
	return fmt.Sprintf("%s: cannot %s from status %q", e.Op, e.Wanted, e.Current)
}

func (e *StateError) Unwrap() error {
	return e.cause
}

// PersistenceError wraps a store failure. The operation's database
// transaction has been rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsStateError returns true if the current state forbids the operation.
func IsStateError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrNoValidLines) ||
		errors.Is(err, ErrAlreadyReversed)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// WrapPersistence classifies an error escaping a store call. Domain errors
// raised inside a transaction pass through unchanged.
func WrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsClientError(err) || IsStateError(err) || IsNotFound(err) || errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
