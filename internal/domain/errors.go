package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a referenced product or client does not exist.
	ErrNotFound = errors.New("not found")
	// ErrProductNotFound is returned when a product lookup misses.
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	// ErrClientNotFound is returned when a client lookup misses.
	ErrClientNotFound = fmt.Errorf("client %w", ErrNotFound)
	// ErrInvalidPackSize guards divisions by a non-positive pack size.
	ErrInvalidPackSize = errors.New("pack size must be greater than zero")
	// ErrInvalidPolicy indicates client reorder settings failed validation.
	ErrInvalidPolicy = errors.New("invalid reorder policy")
	// ErrOutOfRange indicates an input or result that is not a finite,
	// representable quantity.
	ErrOutOfRange = errors.New("value out of range")
)

// ComputationError records a failure while calculating or persisting the
// derived metrics of a single product during a batch run.
type ComputationError struct {
	ProductID string
	Stage     string
	Err       error
}

func (e *ComputationError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("product %s: %v", e.ProductID, e.Err)
	}
	return fmt.Sprintf("product %s: %s: %v", e.ProductID, e.Stage, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}
