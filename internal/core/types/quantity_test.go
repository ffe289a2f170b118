package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoperx/internal/core/apperror"
)

func TestQuantity_NoNegative(t *testing.T) {
	_, err := NewQuantity(decimal.NewFromInt(-1), UnitTablet)
	assert.True(t, apperror.IsCode(err, apperror.CodeNegativeAmount))

	_, err = NewQuantityFromScaled(-1, UnitTablet)
	assert.True(t, apperror.IsCode(err, apperror.CodeNegativeAmount))

	ten := MustQuantity(10, UnitTablet)
	twenty := MustQuantity(20, UnitTablet)
	_, err = ten.Sub(twenty)
	assert.True(t, apperror.IsCode(err, apperror.CodeNegativeAmount))
}

func TestQuantity_UnitMismatch(t *testing.T) {
	tablets := MustQuantity(10, UnitTablet)
	strips := MustQuantity(1, UnitStrip)

	_, err := tablets.Add(strips)
	assert.True(t, apperror.IsCode(err, apperror.CodeUnitMismatch))

	_, err = tablets.Sub(strips)
	assert.True(t, apperror.IsCode(err, apperror.CodeUnitMismatch))

	_, err = tablets.Cmp(strips)
	assert.True(t, apperror.IsCode(err, apperror.CodeUnitMismatch))

	_, err = tablets.Min(strips)
	assert.True(t, apperror.IsCode(err, apperror.CodeUnitMismatch))
}

func TestQuantity_UnitsAreCaseInsensitive(t *testing.T) {
	a, err := NewQuantity(decimal.NewFromInt(5), "Tablet")
	require.NoError(t, err)
	b, err := NewQuantity(decimal.NewFromInt(3), " TABLET ")
	require.NoError(t, err)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(8*QuantityScale), sum.Scaled())
	assert.Equal(t, UnitTablet, sum.Unit())
}

func TestQuantity_Arithmetic(t *testing.T) {
	a := MustQuantity(50, UnitTablet)
	b := MustQuantity(30, UnitTablet)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(80*QuantityScale), sum.Scaled())

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, int64(20*QuantityScale), diff.Scaled())

	min, err := a.Min(b)
	require.NoError(t, err)
	assert.Equal(t, b.Scaled(), min.Scaled())

	ok, err := a.GreaterOrEqual(b)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQuantity_FixedPointScale(t *testing.T) {
	q, err := NewQuantity(decimal.RequireFromString("12.5"), UnitStrip)
	require.NoError(t, err)
	assert.Equal(t, int64(125_000), q.Scaled())
	assert.Equal(t, "12.5000 strip", q.String())

	// Digits beyond the 4-decimal scale are truncated, not rounded.
	q, err = NewQuantity(decimal.RequireFromString("0.00009"), UnitML)
	require.NoError(t, err)
	assert.True(t, q.IsZero())
}

func TestQuantity_ZeroAndPositive(t *testing.T) {
	zero := ZeroQuantity(UnitTablet)
	assert.True(t, zero.IsZero())
	assert.False(t, zero.IsPositive())
	assert.True(t, MustQuantity(1, UnitTablet).IsPositive())
}
