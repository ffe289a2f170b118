package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoperx/internal/core/apperror"
)

func TestMoney_ApplyDiscount_Exact(t *testing.T) {
	price := MustMoney("100", "INR")

	discounted, err := price.ApplyDiscount(decimal.NewFromInt(10))
	require.NoError(t, err)

	// Exactly 90.00, never 89.99999...
	assert.Equal(t, "INR 90.00", discounted.String())
	assert.True(t, discounted.Equal(MustMoney("90.00", "INR")))
}

func TestMoney_ApplyDiscount_Bounds(t *testing.T) {
	price := MustMoney("100", "INR")

	_, err := price.ApplyDiscount(decimal.NewFromInt(-1))
	assert.Error(t, err)

	_, err = price.ApplyDiscount(decimal.NewFromInt(101))
	assert.Error(t, err)

	full, err := price.ApplyDiscount(decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, full.IsZero())
}

func TestMoney_CurrencyMismatch(t *testing.T) {
	inr := MustMoney("100", "INR")
	usd := MustMoney("100", "USD")

	_, err := inr.Add(usd)
	assert.True(t, apperror.IsCode(err, apperror.CodeCurrencyMismatch))

	_, err = inr.Sub(usd)
	assert.True(t, apperror.IsCode(err, apperror.CodeCurrencyMismatch))

	_, err = inr.Cmp(usd)
	assert.True(t, apperror.IsCode(err, apperror.CodeCurrencyMismatch))
}

func TestMoney_NoNegative(t *testing.T) {
	_, err := NewMoney(decimal.NewFromInt(-1), "INR")
	assert.True(t, apperror.IsCode(err, apperror.CodeNegativeAmount))

	small := MustMoney("10", "INR")
	big := MustMoney("20", "INR")
	_, err = small.Sub(big)
	assert.True(t, apperror.IsCode(err, apperror.CodeNegativeAmount))
}

func TestMoney_RoundsToTwoDecimals(t *testing.T) {
	m, err := NewMoney(decimal.RequireFromString("10.999"), "INR")
	require.NoError(t, err)
	assert.Equal(t, "INR 11.00", m.String())

	product, err := MustMoney("0.10", "INR").Mul(decimal.NewFromInt(3))
	require.NoError(t, err)
	assert.Equal(t, "INR 0.30", product.String())
}

func TestMoney_DefaultCurrency(t *testing.T) {
	m, err := NewMoney(decimal.NewFromInt(5), "")
	require.NoError(t, err)
	assert.Equal(t, "INR", m.Currency())
}

func TestMoney_JSONRoundTrip(t *testing.T) {
	m := MustMoney("90.50", "INR")

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"90.50","currency":"INR"}`, string(data))

	var decoded Money
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, m.Equal(decoded))
}
