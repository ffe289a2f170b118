// Package drug provides the drug catalog: the master data every conversion
// and allocation decision hangs off.
package drug

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"hoperx/internal/core/apperror"
	"hoperx/internal/core/id"
	"hoperx/internal/core/types"
)

// Schedule is the regulatory schedule of a drug (Indian classification).
type Schedule string

const (
	ScheduleOTC Schedule = "OTC"
	ScheduleH   Schedule = "H"
	ScheduleH1  Schedule = "H1"
	ScheduleX   Schedule = "X"
)

// Drug is a catalog entry. BaseUnit is the indivisible dispensing unit and
// must be configured before any conversion or allocation can run against the
// drug — operating without one is a hard failure, not a silent default.
type Drug struct {
	ID   id.ID  `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`

	Strength string   `db:"strength" json:"strength,omitempty"`
	Form     string   `db:"form" json:"form,omitempty"`
	Schedule Schedule `db:"schedule" json:"schedule"`

	BaseUnit    types.Unit `db:"base_unit" json:"baseUnit"`
	DisplayUnit types.Unit `db:"display_unit" json:"displayUnit"`

	// LowStockThreshold is expressed in base units (scaled fixed-point).
	LowStockThreshold int64 `db:"low_stock_threshold" json:"lowStockThreshold"`

	DeletionMark bool `db:"deletion_mark" json:"deletionMark"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewDrug creates a new Drug with required fields.
func NewDrug(code, name string, baseUnit, displayUnit types.Unit) *Drug {
	now := time.Now().UTC()
	return &Drug{
		ID:          id.New(),
		Code:        code,
		Name:        name,
		Schedule:    ScheduleOTC,
		BaseUnit:    types.NormalizeUnit(string(baseUnit)),
		DisplayUnit: types.NormalizeUnit(string(displayUnit)),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks catalog invariants.
func (d *Drug) Validate(ctx context.Context) error {
	if d.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}

	if d.BaseUnit != "" && !d.BaseUnit.IsValid() {
		return apperror.NewValidation("invalid base unit").
			WithDetail("field", "baseUnit").
			WithDetail("value", string(d.BaseUnit))
	}

	if d.DisplayUnit != "" && !d.DisplayUnit.IsValid() {
		return apperror.NewValidation("invalid display unit").
			WithDetail("field", "displayUnit").
			WithDetail("value", string(d.DisplayUnit))
	}

	if d.LowStockThreshold < 0 {
		return apperror.NewValidation("low stock threshold cannot be negative").
			WithDetail("field", "lowStockThreshold")
	}

	switch d.Schedule {
	case ScheduleOTC, ScheduleH, ScheduleH1, ScheduleX, "":
	default:
		return apperror.NewValidation("invalid schedule").
			WithDetail("field", "schedule").
			WithDetail("value", string(d.Schedule))
	}

	return nil
}

// RequireBaseUnit fails when the drug has no base unit configured.
func (d *Drug) RequireBaseUnit() error {
	if d.BaseUnit == "" {
		return apperror.NewMissingBaseUnit(d.ID.String())
	}
	return nil
}

// EffectiveDisplayUnit returns the display unit, falling back to the base unit.
func (d *Drug) EffectiveDisplayUnit() types.Unit {
	if d.DisplayUnit != "" {
		return d.DisplayUnit
	}
	if d.BaseUnit != "" {
		return d.BaseUnit
	}
	return types.UnitGeneric
}

// Touch updates the timestamp and increments version.
func (d *Drug) Touch() {
	d.UpdatedAt = time.Now().UTC()
	d.Version++
}

// UnitConversion is one directed edge in a drug's conversion graph:
// 1 ParentUnit = Factor ChildUnit. Edges are configured against the base unit
// so every conversion pivots through a single consistent scale factor.
type UnitConversion struct {
	ID         id.ID           `db:"id" json:"id"`
	DrugID     id.ID           `db:"drug_id" json:"drugId"`
	ParentUnit types.Unit      `db:"parent_unit" json:"parentUnit"`
	ChildUnit  types.Unit      `db:"child_unit" json:"childUnit"`
	Factor     decimal.Decimal `db:"factor" json:"factor"`
	IsDefault  bool            `db:"is_default" json:"isDefault"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

// NewUnitConversion creates a conversion edge.
func NewUnitConversion(drugID id.ID, parent, child types.Unit, factor decimal.Decimal) *UnitConversion {
	return &UnitConversion{
		ID:         id.New(),
		DrugID:     drugID,
		ParentUnit: types.NormalizeUnit(string(parent)),
		ChildUnit:  types.NormalizeUnit(string(child)),
		Factor:     factor,
		CreatedAt:  time.Now().UTC(),
	}
}

// Validate checks conversion invariants.
func (c *UnitConversion) Validate(ctx context.Context) error {
	if id.IsNil(c.DrugID) {
		return apperror.NewValidation("drug is required").
			WithDetail("field", "drugId")
	}

	if !c.ParentUnit.IsValid() || !c.ChildUnit.IsValid() {
		return apperror.NewValidation("invalid conversion units").
			WithDetail("parentUnit", string(c.ParentUnit)).
			WithDetail("childUnit", string(c.ChildUnit))
	}

	if c.ParentUnit.Equals(c.ChildUnit) {
		return apperror.NewValidation("conversion units must differ").
			WithDetail("unit", string(c.ParentUnit))
	}

	if !c.Factor.IsPositive() {
		return apperror.NewValidation("conversion factor must be positive").
			WithDetail("field", "factor")
	}

	return nil
}
