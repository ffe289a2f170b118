package types

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"hoperx/internal/core/apperror"
)

// DefaultCurrency is the currency assumed when none is given.
const DefaultCurrency = "INR"

// Money is an immutable non-negative monetary value with a fixed scale of
// two decimal places. Arithmetic between two Money values requires identical
// currencies; every operation returns a new instance.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney creates Money from a decimal amount.
// Fails on negative amounts; the amount is rounded to 2 decimal places.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if amount.IsNegative() {
		return Money{}, apperror.NewNegativeAmount("money amount")
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{amount: amount.Round(2), currency: currency}, nil
}

// NewMoneyFromFloat creates Money from a float64.
// Prefer MustMoney with a string literal for exact constants.
func NewMoneyFromFloat(f float64, currency string) (Money, error) {
	return NewMoney(decimal.NewFromFloat(f), currency)
}

// MustMoney creates Money from a string amount, panics on error.
// Use only for constants and tests.
func MustMoney(amount, currency string) Money {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		panic(err)
	}
	m, err := NewMoney(d, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// ZeroMoney returns zero in the given currency.
func ZeroMoney(currency string) Money {
	m, _ := NewMoney(decimal.Zero, currency)
	return m
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the ISO currency code.
func (m Money) Currency() string { return m.currency }

func (m Money) IsZero() bool { return m.amount.IsZero() }

// sameCurrency fails unless both values carry the same currency.
func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return apperror.NewCurrencyMismatch(m.currency, other.currency)
	}
	return nil
}

// Add returns m + other. Fails on currency mismatch.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Sub returns m - other. Fails on currency mismatch or a negative result.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	result := m.amount.Sub(other.amount)
	if result.IsNegative() {
		return Money{}, apperror.NewNegativeAmount("money amount")
	}
	return Money{amount: result, currency: m.currency}, nil
}

// Mul returns m scaled by factor, rounded to 2 decimal places.
// Fails if the factor is negative.
func (m Money) Mul(factor decimal.Decimal) (Money, error) {
	if factor.IsNegative() {
		return Money{}, apperror.NewNegativeAmount("multiplier")
	}
	return Money{amount: m.amount.Mul(factor).Round(2), currency: m.currency}, nil
}

// ApplyDiscount returns m reduced by percent (0..100), rounded to 2 decimals.
func (m Money) ApplyDiscount(percent decimal.Decimal) (Money, error) {
	if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		return Money{}, apperror.NewValidation("discount percent must be between 0 and 100").
			WithDetail("percent", percent.String())
	}
	factor := decimal.NewFromInt(100).Sub(percent).Div(decimal.NewFromInt(100))
	return Money{amount: m.amount.Mul(factor).Round(2), currency: m.currency}, nil
}

// Cmp compares two amounts: -1, 0, or 1. Fails on currency mismatch.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	return m.amount.Cmp(other.amount), nil
}

// Equal reports value equality (amount and currency).
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String formats as "INR 90.00".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.currency, m.amount.StringFixed(2))
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON encodes as {"amount":"90.00","currency":"INR"}.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount.StringFixed(2), Currency: m.currency})
}

// UnmarshalJSON decodes and validates the wire representation.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d, err := decimal.NewFromString(raw.Amount)
	if err != nil {
		return fmt.Errorf("parse money amount: %w", err)
	}
	parsed, err := NewMoney(d, raw.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
