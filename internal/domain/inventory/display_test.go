package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoperx/internal/core/id"
	"hoperx/internal/core/types"
)

// stubConverter serves a fixed display/base pair with a fixed factor.
type stubConverter struct {
	displayUnit types.Unit
	baseUnit    types.Unit
	factor      decimal.Decimal
}

func (c *stubConverter) GetDefaultDisplayUnit(ctx context.Context, drugID id.ID) (types.Unit, error) {
	return c.displayUnit, nil
}

func (c *stubConverter) GetConversionFactor(ctx context.Context, drugID id.ID, fromUnit, toUnit types.Unit) (decimal.Decimal, error) {
	return c.factor, nil
}

func (c *stubConverter) GetBaseUnit(ctx context.Context, drugID id.ID) (types.Unit, error) {
	return c.baseUnit, nil
}

func stripsOfTen() *stubConverter {
	return &stubConverter{
		displayUnit: types.UnitStrip,
		baseUnit:    types.UnitTablet,
		factor:      decimal.NewFromInt(10),
	}
}

func TestFormatQuantity(t *testing.T) {
	tests := []struct {
		name       string
		baseQty    int64
		wantPacks  int64
		wantText   string
	}{
		{"packs and remainder", 53, 5, "5 strips + 3 tablets"},
		{"whole packs only", 50, 5, "5 strips"},
		{"remainder only", 7, 0, "7 tablets"},
		{"single pack", 10, 1, "1 strip"},
		{"single base unit", 11, 1, "1 strip + 1 tablet"},
		{"zero stock", 0, 0, "0 strips"},
	}

	h := NewDisplayHelper(stripsOfTen())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breakdown, err := h.FormatQuantity(context.Background(), id.New(),
				types.MustQuantity(tt.baseQty, types.UnitTablet))
			require.NoError(t, err)

			assert.Equal(t, tt.wantPacks, breakdown.WholePacks)
			assert.Equal(t, tt.wantText, breakdown.DisplayText)
		})
	}
}

func TestFormatQuantity_DisplayUnitIsBaseUnit(t *testing.T) {
	h := NewDisplayHelper(&stubConverter{
		displayUnit: types.UnitML,
		baseUnit:    types.UnitML,
		factor:      decimal.NewFromInt(1),
	})

	breakdown, err := h.FormatQuantity(context.Background(), id.New(),
		types.MustQuantity(250, types.UnitML))
	require.NoError(t, err)

	assert.Zero(t, breakdown.WholePacks)
	assert.Equal(t, "250 ml", breakdown.DisplayText)
}

func TestFormatQuantity_NonPositiveFactorFallsBackToBase(t *testing.T) {
	c := stripsOfTen()
	c.factor = decimal.Zero
	h := NewDisplayHelper(c)

	breakdown, err := h.FormatQuantity(context.Background(), id.New(),
		types.MustQuantity(53, types.UnitTablet))
	require.NoError(t, err)

	assert.Zero(t, breakdown.WholePacks)
	assert.Equal(t, "53 tablets", breakdown.DisplayText)
}

func TestBatchToView(t *testing.T) {
	h := NewDisplayHelper(stripsOfTen())
	b := newTestBatch(t, 53, future(365))

	view, err := h.BatchToView(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, "B2026-01", view.BatchNumber)
	assert.Equal(t, "5 strips + 3 tablets", view.DisplayText)
	assert.Equal(t, ExpiryStatusValid, view.ExpiryStatus)
	assert.Equal(t, b.ExpiryDate.Format("2006-01-02"), view.ExpiryDate)
	assert.Equal(t, "INR 2.00", view.Margin.String())
	assert.Equal(t, "25", view.MarginPercentage.String())
}
