package drug

import (
	"context"

	"hoperx/internal/core/id"
)

// Repository defines the interface for drug catalog persistence.
type Repository interface {
	// GetByID retrieves a drug by id.
	GetByID(ctx context.Context, drugID id.ID) (*Drug, error)

	// GetByCode retrieves a drug by its catalog code.
	GetByCode(ctx context.Context, code string) (*Drug, error)

	// Search finds drugs by name prefix for POS lookups.
	Search(ctx context.Context, query string, limit int) ([]*Drug, error)

	// Create persists a new drug.
	Create(ctx context.Context, d *Drug) error

	// Update persists drug changes with an optimistic version check.
	Update(ctx context.Context, d *Drug) error

	// GetConversions returns all conversion edges configured for a drug.
	GetConversions(ctx context.Context, drugID id.ID) ([]UnitConversion, error)

	// SaveConversion inserts or replaces a conversion edge.
	SaveConversion(ctx context.Context, c *UnitConversion) error

	// DeleteConversion removes a conversion edge.
	DeleteConversion(ctx context.Context, conversionID id.ID) error
}
