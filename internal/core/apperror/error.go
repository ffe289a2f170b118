// Package apperror provides structured error handling for the stock engine.
// All domain errors must use AppError so callers can render an accurate
// message (drug, available, required) without re-querying.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for the inventory domain.
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Validation errors (400)
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// Business rule violations (422)
	CodeBusinessRule           = "BUSINESS_RULE_VIOLATION"
	CodeInsufficientStock      = "INSUFFICIENT_STOCK"
	CodeExpiredBatch           = "EXPIRED_BATCH"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Configuration errors — the engine refuses to guess (422)
	CodeMissingBaseUnit   = "MISSING_BASE_UNIT"
	CodeMissingConversion = "MISSING_CONVERSION"
	CodeInvalidUnit       = "INVALID_UNIT"

	// Value object misuse — programming errors in the caller (400)
	CodeCurrencyMismatch = "CURRENCY_MISMATCH"
	CodeUnitMismatch     = "UNIT_MISMATCH"
	CodeNegativeAmount   = "NEGATIVE_AMOUNT"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict  = "CONFLICT"
	CodeDuplicate = "DUPLICATE_ENTRY"
)

// AppError is the standard error type for the engine.
// It implements the error interface and carries structured details for callers.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (quantities, units, batch numbers)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code for hosting layers
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInsufficientStock creates a stock shortage error.
// Carries the drug, the true available quantity and the requested quantity so
// the caller can present an exact shortfall.
func NewInsufficientStock(drug string, available, required string) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    fmt.Sprintf("insufficient stock for %s: available %s, required %s", drug, available, required),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"drug":      drug,
			"available": available,
			"required":  required,
		},
	}
}

// NewExpiredBatch creates an expired batch error.
func NewExpiredBatch(batchNumber string, expiryDate string) *AppError {
	return &AppError{
		Code:       CodeExpiredBatch,
		Message:    fmt.Sprintf("batch %s expired on %s", batchNumber, expiryDate),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"batch_number": batchNumber,
			"expiry_date":  expiryDate,
		},
	}
}

// NewMissingBaseUnit is returned when a drug has no base unit configured.
// Operating without one is a hard failure, never a silent default.
func NewMissingBaseUnit(drugID string) *AppError {
	return &AppError{
		Code:       CodeMissingBaseUnit,
		Message:    fmt.Sprintf("drug %s has no base unit configured", drugID),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"drug_id": drugID},
	}
}

// NewMissingConversion is returned when no conversion edge exists between units.
func NewMissingConversion(drugID, fromUnit, toUnit string) *AppError {
	return &AppError{
		Code:       CodeMissingConversion,
		Message:    fmt.Sprintf("no conversion from %s to %s configured for drug %s", fromUnit, toUnit, drugID),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"drug_id":   drugID,
			"from_unit": fromUnit,
			"to_unit":   toUnit,
		},
	}
}

// NewInvalidUnit is returned when a unit is not known to a drug.
func NewInvalidUnit(drugID, unit string, validUnits []string) *AppError {
	return &AppError{
		Code:       CodeInvalidUnit,
		Message:    fmt.Sprintf("invalid unit %q for drug %s", unit, drugID),
		HTTPStatus: http.StatusBadRequest,
		Details: map[string]any{
			"drug_id":     drugID,
			"unit":        unit,
			"valid_units": validUnits,
		},
	}
}

// NewCurrencyMismatch is returned on cross-currency money arithmetic.
func NewCurrencyMismatch(left, right string) *AppError {
	return &AppError{
		Code:       CodeCurrencyMismatch,
		Message:    fmt.Sprintf("currency mismatch: %s vs %s", left, right),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"left": left, "right": right},
	}
}

// NewUnitMismatch is returned on cross-unit quantity arithmetic.
// Conversion is a distinct, explicit operation owned by the conversion service.
func NewUnitMismatch(left, right string) *AppError {
	return &AppError{
		Code:       CodeUnitMismatch,
		Message:    fmt.Sprintf("unit mismatch: %s vs %s", left, right),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"left": left, "right": right},
	}
}

// NewNegativeAmount is returned when an operation would produce a negative value.
func NewNegativeAmount(what string) *AppError {
	return &AppError{
		Code:       CodeNegativeAmount,
		Message:    fmt.Sprintf("%s cannot be negative", what),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"value": what},
	}
}

// NewConcurrentModification creates an optimistic locking error.
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another writer. Allocation must be retried with fresh state.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsCode checks whether err is an AppError with the given code.
func IsCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// IsInsufficientStock checks if error is CodeInsufficientStock
func IsInsufficientStock(err error) bool {
	return IsCode(err, CodeInsufficientStock)
}

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool {
	return IsCode(err, CodeConcurrentModification)
}

// IsMissingConversion checks if error is CodeMissingConversion
func IsMissingConversion(err error) bool {
	return IsCode(err, CodeMissingConversion)
}
