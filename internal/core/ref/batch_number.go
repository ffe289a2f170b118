// Package ref provides normalized, validated identifier value objects.
package ref

import (
	"strings"

	"hoperx/internal/core/apperror"
)

// BatchNumber identifies a manufacturer lot. Normalized to uppercase and
// trimmed on construction; equality is value-based.
type BatchNumber string

// NewBatchNumber validates and normalizes a raw batch number.
func NewBatchNumber(s string) (BatchNumber, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	if normalized == "" {
		return "", apperror.NewValidation("batch number is required").
			WithDetail("field", "batchNumber")
	}
	return BatchNumber(normalized), nil
}

// MustBatchNumber creates a BatchNumber, panics on error.
// Use only for constants and tests.
func MustBatchNumber(s string) BatchNumber {
	bn, err := NewBatchNumber(s)
	if err != nil {
		panic(err)
	}
	return bn
}

func (b BatchNumber) String() string { return string(b) }

// IsPlaceholder reports whether the batch number is the "TBD" placeholder
// used on receiving lines before the real lot number is known.
func (b BatchNumber) IsPlaceholder() bool { return b == "TBD" }
