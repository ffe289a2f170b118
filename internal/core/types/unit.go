package types

import (
	"strings"

	"hoperx/internal/core/apperror"
)

// Unit is a measurement unit for drug quantities.
// Base dispensing units (tablet, ml, gm) are indivisible; pack units
// (strip, box, bottle) convert to base units through the conversion service.
type Unit string

const (
	UnitTablet  Unit = "tablet"
	UnitCapsule Unit = "capsule"
	UnitStrip   Unit = "strip"
	UnitBox     Unit = "box"
	UnitBottle  Unit = "bottle"
	UnitVial    Unit = "vial"
	UnitML      Unit = "ml"
	UnitGM      Unit = "gm"
	UnitGeneric Unit = "unit"
)

// NormalizeUnit lowercases and trims a raw unit string for comparison.
// Unit strings arrive from configuration and documents in mixed case.
func NormalizeUnit(s string) Unit {
	return Unit(strings.ToLower(strings.TrimSpace(s)))
}

// ParseUnit validates and normalizes a raw unit string.
func ParseUnit(s string) (Unit, error) {
	u := NormalizeUnit(s)
	if !u.IsValid() {
		return "", apperror.NewValidation("unknown unit").
			WithDetail("unit", s)
	}
	return u, nil
}

// IsValid reports whether the unit is one of the enumerated units.
func (u Unit) IsValid() bool {
	switch u {
	case UnitTablet, UnitCapsule, UnitStrip, UnitBox, UnitBottle, UnitVial, UnitML, UnitGM, UnitGeneric:
		return true
	}
	return false
}

// IsPack reports whether the unit is a multi-item pack unit.
func (u Unit) IsPack() bool {
	switch u {
	case UnitStrip, UnitBox, UnitBottle:
		return true
	}
	return false
}

// Equals compares two units case-insensitively.
func (u Unit) Equals(other Unit) bool {
	return NormalizeUnit(string(u)) == NormalizeUnit(string(other))
}

func (u Unit) String() string { return string(u) }
