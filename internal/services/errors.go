// Package services holds the catalog, invoice issuance and delivery
// workflows that sit between the HTTP handlers and the stores.
package services

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/diewo77/go-billdesk/internal/store"
	"github.com/diewo77/go-billdesk/validation"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = store.ErrNotFound
	ErrDuplicateKey   = store.ErrDuplicateKey
	ErrIssuanceFailed = errors.New("invoice issuance failed")
	ErrDeliveryFailed = errors.New("invoice delivery failed")
	// ErrEmptyDocument is reported when rendering yields no bytes.
	ErrEmptyDocument = errors.New("rendered document is empty")
)

// ValidationError lists the rejected request fields.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Violations.Fields())
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(v validation.Violations) error {
	if v.Empty() {
		return nil
	}
	return &ValidationError{Violations: v}
}

// IssuanceError is returned when an invoice could not be persisted.
type IssuanceError struct {
	InvoiceNumber string
	Attempts      int
	Err           error
}

func (e *IssuanceError) Error() string {
	return fmt.Sprintf("issue invoice %s after %d attempt(s): %v", e.InvoiceNumber, e.Attempts, e.Err)
}

func (e *IssuanceError) Is(target error) bool { return target == ErrIssuanceFailed }

func (e *IssuanceError) Unwrap() error { return e.Err }

// Stage names the half of a delivery that failed.
type Stage string

const (
	StageText     Stage = "text"
	StageRender   Stage = "render"
	StageDocument Stage = "document"
)

// DeliveryError is returned when an invoice could not be delivered. The
// invoice itself is unaffected.
type DeliveryError struct {
	InvoiceID string
	Stage     Stage
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver invoice %s: %s stage: %v", e.InvoiceID, e.Stage, e.Err)
}

func (e *DeliveryError) Is(target error) bool { return target == ErrDeliveryFailed }

func (e *DeliveryError) Unwrap() error { return e.Err }
