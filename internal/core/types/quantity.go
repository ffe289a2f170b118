// Package types provides the value objects shared across the stock engine.
package types

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"hoperx/internal/core/apperror"
)

// QuantityScale is the fixed-point scale for quantity values.
// Matches Postgres NUMERIC(15,4) semantics without floating point errors
// and stores as BIGINT (scaled integer).
const QuantityScale int64 = 10_000

// Quantity is an immutable non-negative amount in a specific unit.
// Arithmetic between two Quantities requires identical units — conversion is
// a distinct, explicit operation owned by the conversion service.
type Quantity struct {
	value int64 // fixed-point, scale 1e4
	unit  Unit
}

// NewQuantity creates a Quantity from a decimal value.
// Fails on negative values; fractional digits beyond 4 are truncated.
func NewQuantity(value decimal.Decimal, unit Unit) (Quantity, error) {
	if value.IsNegative() {
		return Quantity{}, apperror.NewNegativeAmount("quantity")
	}
	scaled := value.Mul(decimal.NewFromInt(QuantityScale)).IntPart()
	return Quantity{value: scaled, unit: NormalizeUnit(string(unit))}, nil
}

// NewQuantityFromFloat creates a Quantity from a float64.
func NewQuantityFromFloat(v float64, unit Unit) (Quantity, error) {
	return NewQuantity(decimal.NewFromFloat(v), unit)
}

// NewQuantityFromScaled creates a Quantity from an already-scaled int64
// (database representation).
func NewQuantityFromScaled(v int64, unit Unit) (Quantity, error) {
	if v < 0 {
		return Quantity{}, apperror.NewNegativeAmount("quantity")
	}
	return Quantity{value: v, unit: NormalizeUnit(string(unit))}, nil
}

// MustQuantity creates a Quantity from an int64 count, panics on error.
// Use only for constants and tests.
func MustQuantity(v int64, unit Unit) Quantity {
	q, err := NewQuantity(decimal.NewFromInt(v), unit)
	if err != nil {
		panic(err)
	}
	return q
}

// ZeroQuantity returns a zero Quantity in the given unit.
func ZeroQuantity(unit Unit) Quantity {
	return Quantity{value: 0, unit: NormalizeUnit(string(unit))}
}

// Unit returns the quantity's unit.
func (q Quantity) Unit() Unit { return q.unit }

// Scaled returns the fixed-point representation (value * 1e4).
func (q Quantity) Scaled() int64 { return q.value }

// Decimal returns the value as a decimal.
func (q Quantity) Decimal() decimal.Decimal {
	return decimal.New(q.value, 0).Div(decimal.NewFromInt(QuantityScale))
}

// Float64 returns the value as a float64 (display only).
func (q Quantity) Float64() float64 { return float64(q.value) / float64(QuantityScale) }

func (q Quantity) IsZero() bool     { return q.value == 0 }
func (q Quantity) IsPositive() bool { return q.value > 0 }

// sameUnit fails unless both quantities carry the same unit.
func (q Quantity) sameUnit(other Quantity) error {
	if !q.unit.Equals(other.unit) {
		return apperror.NewUnitMismatch(string(q.unit), string(other.unit))
	}
	return nil
}

// Add returns q + other. Fails on unit mismatch.
func (q Quantity) Add(other Quantity) (Quantity, error) {
	if err := q.sameUnit(other); err != nil {
		return Quantity{}, err
	}
	return Quantity{value: q.value + other.value, unit: q.unit}, nil
}

// Sub returns q - other. Fails on unit mismatch or a negative result.
func (q Quantity) Sub(other Quantity) (Quantity, error) {
	if err := q.sameUnit(other); err != nil {
		return Quantity{}, err
	}
	if other.value > q.value {
		return Quantity{}, apperror.NewNegativeAmount("quantity")
	}
	return Quantity{value: q.value - other.value, unit: q.unit}, nil
}

// Cmp compares two quantities: -1 if q < other, 0 if equal, 1 if q > other.
// Fails on unit mismatch.
func (q Quantity) Cmp(other Quantity) (int, error) {
	if err := q.sameUnit(other); err != nil {
		return 0, err
	}
	switch {
	case q.value < other.value:
		return -1, nil
	case q.value > other.value:
		return 1, nil
	default:
		return 0, nil
	}
}

// GreaterOrEqual reports whether q >= other. Fails on unit mismatch.
func (q Quantity) GreaterOrEqual(other Quantity) (bool, error) {
	c, err := q.Cmp(other)
	if err != nil {
		return false, err
	}
	return c >= 0, nil
}

// Min returns the smaller of q and other. Fails on unit mismatch.
func (q Quantity) Min(other Quantity) (Quantity, error) {
	c, err := q.Cmp(other)
	if err != nil {
		return Quantity{}, err
	}
	if c <= 0 {
		return q, nil
	}
	return other, nil
}

// String returns a decimal string with 4 fractional digits and the unit.
func (q Quantity) String() string {
	intPart := q.value / QuantityScale
	frac := q.value % QuantityScale
	return fmt.Sprintf("%d.%04d %s", intPart, frac, q.unit)
}

// quantityJSON is the wire representation.
type quantityJSON struct {
	Value decimal.Decimal `json:"value"`
	Unit  string          `json:"unit"`
}

// MarshalJSON encodes the quantity as {"value": n, "unit": "tablet"}.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(quantityJSON{Value: q.Decimal(), Unit: string(q.unit)})
}

// UnmarshalJSON decodes and validates the wire representation.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	var raw quantityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewQuantity(raw.Value, Unit(raw.Unit))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
