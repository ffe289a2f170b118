package drug

import (
	"context"
	"fmt"

	"hoperx/internal/core/apperror"
	"hoperx/internal/core/id"
	"hoperx/pkg/logger"
)

// ConfigObserver is notified when a drug's conversion configuration changes,
// so cached conversion graphs can be invalidated.
type ConfigObserver interface {
	InvalidateDrug(drugID id.ID)
}

// Service provides business logic for the drug catalog.
type Service struct {
	repo      Repository
	observers []ConfigObserver
}

// NewService creates a new drug catalog service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Subscribe registers an observer for conversion-configuration changes.
func (s *Service) Subscribe(o ConfigObserver) {
	s.observers = append(s.observers, o)
}

// Create validates and persists a new drug.
func (s *Service) Create(ctx context.Context, d *Drug) error {
	if err := d.Validate(ctx); err != nil {
		return err
	}

	if d.Code != "" {
		if existing, err := s.repo.GetByCode(ctx, d.Code); err == nil && existing.ID != d.ID {
			return apperror.NewDuplicate("drug", "code", d.Code)
		}
	}

	if err := s.repo.Create(ctx, d); err != nil {
		return fmt.Errorf("create drug: %w", err)
	}

	logger.Info(ctx, "drug created", "id", d.ID, "name", d.Name, "base_unit", d.BaseUnit)
	return nil
}

// Update validates and persists drug changes.
func (s *Service) Update(ctx context.Context, d *Drug) error {
	if err := d.Validate(ctx); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, d); err != nil {
		return fmt.Errorf("update drug: %w", err)
	}

	// Base/display unit changes affect cached conversion graphs.
	s.notifyChanged(d.ID)
	return nil
}

// GetByID retrieves a drug.
func (s *Service) GetByID(ctx context.Context, drugID id.ID) (*Drug, error) {
	return s.repo.GetByID(ctx, drugID)
}

// Search finds drugs by name for POS lookups.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]*Drug, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.repo.Search(ctx, query, limit)
}

// ConfigureConversion validates and saves a conversion edge, then invalidates
// cached conversion graphs for the drug.
func (s *Service) ConfigureConversion(ctx context.Context, c *UnitConversion) error {
	if err := c.Validate(ctx); err != nil {
		return err
	}

	d, err := s.repo.GetByID(ctx, c.DrugID)
	if err != nil {
		return err
	}
	if err := d.RequireBaseUnit(); err != nil {
		return err
	}

	// Edges must terminate at the base unit so every conversion pivots
	// through a single scale factor.
	if !c.ChildUnit.Equals(d.BaseUnit) {
		return apperror.NewValidation("conversion child unit must be the drug's base unit").
			WithDetail("childUnit", string(c.ChildUnit)).
			WithDetail("baseUnit", string(d.BaseUnit))
	}

	if err := s.repo.SaveConversion(ctx, c); err != nil {
		return fmt.Errorf("save conversion: %w", err)
	}

	s.notifyChanged(c.DrugID)

	logger.Info(ctx, "unit conversion configured",
		"drug_id", c.DrugID,
		"parent_unit", c.ParentUnit,
		"child_unit", c.ChildUnit,
		"factor", c.Factor,
	)
	return nil
}

// RemoveConversion deletes a conversion edge and invalidates caches.
func (s *Service) RemoveConversion(ctx context.Context, drugID, conversionID id.ID) error {
	if err := s.repo.DeleteConversion(ctx, conversionID); err != nil {
		return fmt.Errorf("delete conversion: %w", err)
	}
	s.notifyChanged(drugID)
	return nil
}

func (s *Service) notifyChanged(drugID id.ID) {
	for _, o := range s.observers {
		o.InvalidateDrug(drugID)
	}
}
