package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"hoperx/internal/core/id"
	"hoperx/internal/core/types"
)

// Converter is the conversion surface the display helper needs.
// Satisfied by conversion.Service.
type Converter interface {
	GetDefaultDisplayUnit(ctx context.Context, drugID id.ID) (types.Unit, error)
	GetConversionFactor(ctx context.Context, drugID id.ID, fromUnit, toUnit types.Unit) (decimal.Decimal, error)
	GetBaseUnit(ctx context.Context, drugID id.ID) (types.Unit, error)
}

// DisplayHelper renders base-unit quantities in human terms: whole packs in
// the display unit plus a loose remainder in the base unit.
//
// Display output is presentation only — nothing computed here feeds back into
// stock math.
type DisplayHelper struct {
	converter Converter
}

// NewDisplayHelper creates a display helper on top of a conversion service.
func NewDisplayHelper(converter Converter) *DisplayHelper {
	return &DisplayHelper{converter: converter}
}

// PackBreakdown is a base-unit quantity split into whole display-unit packs
// and a base-unit remainder.
type PackBreakdown struct {
	WholePacks  int64          `json:"wholePacks"`
	PackUnit    types.Unit     `json:"packUnit"`
	Remainder   types.Quantity `json:"remainder"`
	DisplayText string         `json:"displayText"`
}

// FormatQuantity splits a base-unit quantity into whole packs of the drug's
// display unit plus the remainder, e.g. "5 strips + 3 tablets". When the
// display unit is the base unit (or nothing divides evenly) the quantity is
// rendered as-is.
func (h *DisplayHelper) FormatQuantity(ctx context.Context, drugID id.ID, baseQty types.Quantity) (*PackBreakdown, error) {
	displayUnit, err := h.converter.GetDefaultDisplayUnit(ctx, drugID)
	if err != nil {
		return nil, err
	}
	baseUnit, err := h.converter.GetBaseUnit(ctx, drugID)
	if err != nil {
		return nil, err
	}

	if displayUnit.Equals(baseUnit) {
		return &PackBreakdown{
			PackUnit:    baseUnit,
			Remainder:   baseQty,
			DisplayText: formatAmount(baseQty.Decimal(), baseUnit),
		}, nil
	}

	// Factor converts one display unit into base units.
	factor, err := h.converter.GetConversionFactor(ctx, drugID, displayUnit, baseUnit)
	if err != nil {
		return nil, err
	}
	if !factor.IsPositive() {
		return &PackBreakdown{
			PackUnit:    baseUnit,
			Remainder:   baseQty,
			DisplayText: formatAmount(baseQty.Decimal(), baseUnit),
		}, nil
	}

	wholePacks := baseQty.Decimal().Div(factor).Floor().IntPart()
	remainderValue := baseQty.Decimal().Sub(decimal.NewFromInt(wholePacks).Mul(factor))
	remainder, err := types.NewQuantity(remainderValue, baseUnit)
	if err != nil {
		return nil, err
	}

	return &PackBreakdown{
		WholePacks:  wholePacks,
		PackUnit:    displayUnit,
		Remainder:   remainder,
		DisplayText: formatBreakdown(wholePacks, displayUnit, remainder),
	}, nil
}

// formatBreakdown renders "5 strips + 3 tablets", dropping zero parts.
// Zero stock renders as "0 <packUnit>".
func formatBreakdown(wholePacks int64, packUnit types.Unit, remainder types.Quantity) string {
	parts := make([]string, 0, 2)
	if wholePacks > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", wholePacks, pluralize(packUnit, wholePacks)))
	}
	if remainder.IsPositive() {
		parts = append(parts, formatAmount(remainder.Decimal(), remainder.Unit()))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("0 %s", pluralize(packUnit, 0))
	}
	return strings.Join(parts, " + ")
}

// formatAmount renders a decimal amount with its unit, trimming trailing
// zeros from fractional values.
func formatAmount(amount decimal.Decimal, unit types.Unit) string {
	n := amount.IntPart()
	if amount.Equal(decimal.NewFromInt(n)) {
		return fmt.Sprintf("%d %s", n, pluralize(unit, n))
	}
	return fmt.Sprintf("%s %s", amount.String(), pluralize(unit, 2))
}

// pluralize appends "s" for counts other than one. Units that already read
// naturally in plural (ml, gm, unit abbreviations) are left alone.
func pluralize(unit types.Unit, n int64) string {
	u := string(unit)
	if n == 1 || u == "" || len(u) <= 2 {
		return u
	}
	if strings.HasSuffix(u, "s") {
		return u
	}
	return u + "s"
}

// BatchView is the presentation shape of a batch: raw base-unit stock plus
// everything a screen needs pre-computed.
type BatchView struct {
	ID               id.ID           `json:"id"`
	BatchNumber      string          `json:"batchNumber"`
	DrugID           id.ID           `json:"drugId"`
	DrugName         string          `json:"drugName,omitempty"`
	BaseUnitQuantity types.Quantity  `json:"baseUnitQuantity"`
	DisplayText      string          `json:"displayText"`
	ExpiryDate       string          `json:"expiryDate"`
	ExpiryStatus     ExpiryStatus    `json:"expiryStatus"`
	CostPrice        types.Money     `json:"costPrice"`
	SellingPrice     types.Money     `json:"sellingPrice"`
	Margin           types.Money     `json:"margin"`
	MarginPercentage decimal.Decimal `json:"marginPercentage"`
	Location         *string         `json:"location,omitempty"`
}

// BatchToView builds the presentation DTO for a batch.
func (h *DisplayHelper) BatchToView(ctx context.Context, b *Batch) (*BatchView, error) {
	breakdown, err := h.FormatQuantity(ctx, b.DrugID, b.BaseUnitQuantity)
	if err != nil {
		return nil, err
	}

	margin, err := b.CalculateMargin()
	if err != nil {
		return nil, err
	}

	return &BatchView{
		ID:               b.ID,
		BatchNumber:      b.BatchNumber.String(),
		DrugID:           b.DrugID,
		DrugName:         b.DrugName,
		BaseUnitQuantity: b.BaseUnitQuantity,
		DisplayText:      breakdown.DisplayText,
		ExpiryDate:       b.ExpiryDate.Format("2006-01-02"),
		ExpiryStatus:     b.GetExpiryStatus(),
		CostPrice:        b.CostPrice,
		SellingPrice:     b.SellingPrice,
		Margin:           margin,
		MarginPercentage: b.CalculateMarginPercentage().Round(2),
		Location:         b.Location,
	}, nil
}
