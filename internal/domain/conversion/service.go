// Package conversion is the sole authority for converting quantities between
// any unit known to a drug and that drug's base unit.
//
// All inventory math uses base units. Manual conversions (quantity * 10)
// outside this package are a bug. Conversions between two non-base units
// always pivot through the base unit, which avoids an O(n²) edge table and
// guarantees a single consistent scale factor per drug.
package conversion

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"hoperx/internal/core/apperror"
	"hoperx/internal/core/id"
	"hoperx/internal/core/types"
	"hoperx/internal/domain/catalogs/drug"
	"hoperx/pkg/logger"
)

// DrugSource resolves a drug's unit configuration.
// Satisfied by drug.Repository.
type DrugSource interface {
	GetByID(ctx context.Context, drugID id.ID) (*drug.Drug, error)
	GetConversions(ctx context.Context, drugID id.ID) ([]drug.UnitConversion, error)
}

// UnitInfo describes one unit reachable for a drug.
type UnitInfo struct {
	Unit      types.Unit `json:"unit"`
	IsBase    bool       `json:"isBase"`
	IsDefault bool       `json:"isDefault"`
}

// drugConfig is the cached per-drug conversion graph.
type drugConfig struct {
	baseUnit    types.Unit
	displayUnit types.Unit
	edges       []drug.UnitConversion
}

// Service converts quantities against a drug's configured conversion graph.
// Lookups are read-only and cached per drug; the cache is invalidated when
// the configuration changes (drug.Service notifies via ConfigObserver).
type Service struct {
	drugs DrugSource

	mu    sync.RWMutex
	cache map[id.ID]*drugConfig
}

// NewService creates a new unit conversion service.
func NewService(drugs DrugSource) *Service {
	return &Service{
		drugs: drugs,
		cache: make(map[id.ID]*drugConfig),
	}
}

// InvalidateDrug drops the cached configuration for a drug.
// Implements drug.ConfigObserver.
func (s *Service) InvalidateDrug(drugID id.ID) {
	s.mu.Lock()
	delete(s.cache, drugID)
	s.mu.Unlock()
}

// ConvertToBaseUnits converts a quantity in any configured unit to the
// drug's base unit.
//
// If the quantity is already in the base unit it is returned unchanged.
// Otherwise a direct conversion edge (parent = fromUnit, child = baseUnit)
// must exist — this function never guesses a 1:1 fallback. Callers that want
// a fallback must do so explicitly and log it (see grn.CompletionService).
func (s *Service) ConvertToBaseUnits(ctx context.Context, drugID id.ID, qty types.Quantity) (types.Quantity, error) {
	cfg, err := s.config(ctx, drugID)
	if err != nil {
		return types.Quantity{}, err
	}

	fromUnit := qty.Unit()
	if fromUnit.Equals(cfg.baseUnit) {
		return qty, nil
	}

	edge := cfg.findEdge(fromUnit, cfg.baseUnit)
	if edge == nil {
		return types.Quantity{}, apperror.NewMissingConversion(
			drugID.String(), string(fromUnit), string(cfg.baseUnit))
	}

	baseValue := qty.Decimal().Mul(edge.Factor)
	result, err := types.NewQuantity(baseValue, cfg.baseUnit)
	if err != nil {
		return types.Quantity{}, err
	}

	logger.Debug(ctx, "converted to base units",
		"drug_id", drugID,
		"from", qty.String(),
		"to", result.String(),
		"factor", edge.Factor,
	)
	return result, nil
}

// ConvertFromBaseUnits converts a base-unit quantity to a display unit.
// The result is rounded to 3 decimal places to represent partial packs.
func (s *Service) ConvertFromBaseUnits(ctx context.Context, drugID id.ID, baseQty types.Quantity, toUnit types.Unit) (types.Quantity, error) {
	cfg, err := s.config(ctx, drugID)
	if err != nil {
		return types.Quantity{}, err
	}

	if !baseQty.Unit().Equals(cfg.baseUnit) {
		return types.Quantity{}, apperror.NewUnitMismatch(string(baseQty.Unit()), string(cfg.baseUnit))
	}

	if toUnit.Equals(cfg.baseUnit) {
		return baseQty, nil
	}

	edge := cfg.findEdge(toUnit, cfg.baseUnit)
	if edge == nil {
		return types.Quantity{}, apperror.NewMissingConversion(
			drugID.String(), string(cfg.baseUnit), string(toUnit))
	}

	displayValue := baseQty.Decimal().Div(edge.Factor).Round(3)
	return types.NewQuantity(displayValue, toUnit)
}

// GetConversionFactor returns the factor converting fromUnit to toUnit.
// Same-unit requests always return 1 regardless of configuration. A direct
// edge is preferred; otherwise the factor is computed via a round trip
// through the base unit.
func (s *Service) GetConversionFactor(ctx context.Context, drugID id.ID, fromUnit, toUnit types.Unit) (decimal.Decimal, error) {
	if fromUnit.Equals(toUnit) {
		return decimal.NewFromInt(1), nil
	}

	cfg, err := s.config(ctx, drugID)
	if err != nil {
		return decimal.Zero, err
	}

	if edge := cfg.findEdge(fromUnit, toUnit); edge != nil {
		return edge.Factor, nil
	}

	// Round trip: 1 fromUnit → base, then base → toUnit.
	one, err := types.NewQuantity(decimal.NewFromInt(1), fromUnit)
	if err != nil {
		return decimal.Zero, err
	}
	inBase, err := s.ConvertToBaseUnits(ctx, drugID, one)
	if err != nil {
		return decimal.Zero, err
	}
	inTarget, err := s.ConvertFromBaseUnits(ctx, drugID, inBase, toUnit)
	if err != nil {
		return decimal.Zero, err
	}
	if inTarget.IsZero() {
		return decimal.Zero, apperror.NewMissingConversion(
			drugID.String(), string(fromUnit), string(toUnit))
	}

	// 1 fromUnit converted through the base pivot yields the factor directly.
	return inTarget.Decimal(), nil
}

// ValidateUnit fails unless the unit is the base unit, the display unit, or
// appears in a configured conversion edge.
func (s *Service) ValidateUnit(ctx context.Context, drugID id.ID, unit types.Unit) error {
	units, err := s.GetValidUnits(ctx, drugID)
	if err != nil {
		return err
	}

	for _, u := range units {
		if u.Unit.Equals(unit) {
			return nil
		}
	}

	valid := make([]string, 0, len(units))
	for _, u := range units {
		valid = append(valid, string(u.Unit))
	}
	return apperror.NewInvalidUnit(drugID.String(), string(unit), valid)
}

// GetValidUnits returns the set of all units reachable for a drug, each
// flagged isBase/isDefault.
func (s *Service) GetValidUnits(ctx context.Context, drugID id.ID) ([]UnitInfo, error) {
	cfg, err := s.config(ctx, drugID)
	if err != nil {
		return nil, err
	}

	seen := make(map[types.Unit]bool)
	units := make([]UnitInfo, 0, len(cfg.edges)+2)

	add := func(u types.Unit, isBase, isDefault bool) {
		key := types.NormalizeUnit(string(u))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		units = append(units, UnitInfo{Unit: key, IsBase: isBase, IsDefault: isDefault})
	}

	add(cfg.baseUnit, true, false)
	add(cfg.displayUnit, false, true)
	for _, e := range cfg.edges {
		add(e.ParentUnit, false, e.IsDefault || e.ParentUnit.Equals(cfg.displayUnit))
		add(e.ChildUnit, e.ChildUnit.Equals(cfg.baseUnit), false)
	}

	return units, nil
}

// GetBaseUnit returns the drug's base unit, failing when none is configured.
func (s *Service) GetBaseUnit(ctx context.Context, drugID id.ID) (types.Unit, error) {
	cfg, err := s.config(ctx, drugID)
	if err != nil {
		return "", err
	}
	return cfg.baseUnit, nil
}

// GetDefaultDisplayUnit returns the drug's display unit, falling back to the
// base unit.
func (s *Service) GetDefaultDisplayUnit(ctx context.Context, drugID id.ID) (types.Unit, error) {
	cfg, err := s.config(ctx, drugID)
	if err != nil {
		return "", err
	}
	if cfg.displayUnit != "" {
		return cfg.displayUnit, nil
	}
	return cfg.baseUnit, nil
}

// config loads the drug's conversion graph, from cache when possible.
func (s *Service) config(ctx context.Context, drugID id.ID) (*drugConfig, error) {
	s.mu.RLock()
	cached, ok := s.cache[drugID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	d, err := s.drugs.GetByID(ctx, drugID)
	if err != nil {
		return nil, err
	}
	if err := d.RequireBaseUnit(); err != nil {
		return nil, err
	}

	edges, err := s.drugs.GetConversions(ctx, drugID)
	if err != nil {
		return nil, err
	}

	cfg := &drugConfig{
		baseUnit:    types.NormalizeUnit(string(d.BaseUnit)),
		displayUnit: types.NormalizeUnit(string(d.DisplayUnit)),
		edges:       edges,
	}

	s.mu.Lock()
	s.cache[drugID] = cfg
	s.mu.Unlock()

	return cfg, nil
}

// findEdge returns the direct conversion edge parent→child, or nil.
func (c *drugConfig) findEdge(parent, child types.Unit) *drug.UnitConversion {
	for i := range c.edges {
		if c.edges[i].ParentUnit.Equals(parent) && c.edges[i].ChildUnit.Equals(child) {
			return &c.edges[i]
		}
	}
	return nil
}
