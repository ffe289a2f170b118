package inventory

import (
	"context"
	"time"

	"hoperx/internal/core/id"
	"hoperx/internal/core/ref"
)

// BatchRepository defines persistence for the Batch aggregate.
// The engine is agnostic to the backing store; it only requires
// transactional semantics around the update+movement pair.
type BatchRepository interface {
	// GetByID retrieves a batch.
	GetByID(ctx context.Context, batchID id.ID) (*Batch, error)

	// GetByKey retrieves a batch by its natural key (store, drug, lot).
	GetByKey(ctx context.Context, storeID, drugID id.ID, batchNumber ref.BatchNumber) (*Batch, error)

	// FindForAllocation returns all batches for (store, drug) with positive
	// base-unit quantity.
	FindForAllocation(ctx context.Context, storeID, drugID id.ID) ([]*Batch, error)

	// FindByStore returns all batches for a store (reporting).
	FindByStore(ctx context.Context, storeID id.ID) ([]*Batch, error)

	// FindExpiring returns unexpired batches expiring within daysAhead days.
	FindExpiring(ctx context.Context, storeID id.ID, daysAhead int) ([]*Batch, error)

	// Create persists a new batch.
	Create(ctx context.Context, b *Batch) error

	// UpdateQuantity persists the batch's base-unit quantity guarded by the
	// optimistic version: the write fails with a concurrent-modification
	// error when another writer got there first, and the batch's Version is
	// incremented on success.
	UpdateQuantity(ctx context.Context, b *Batch) error
}

// MovementRepository defines persistence for the append-only movement ledger.
type MovementRepository interface {
	// Create appends one movement.
	Create(ctx context.Context, m *StockMovement) error

	// CreateAll appends movements in bulk (one allocation's worth).
	CreateAll(ctx context.Context, movements []*StockMovement) error

	// History returns movements for a batch, newest first.
	History(ctx context.Context, batchID id.ID, limit int) ([]*StockMovement, error)

	// LedgerSums aggregates signed movement totals for reconciliation.
	LedgerSums(ctx context.Context, batchID id.ID, from, to time.Time) (LedgerSums, error)
}

// LedgerSums holds signed scaled totals from the movement ledger for one
// batch: the net balance before the window and per-category turnover within
// it.
type LedgerSums struct {
	// OpeningScaled is the net signed sum of all movements before the window.
	OpeningScaled int64 `db:"opening"`

	// ReceiptsScaled sums IN and RETURN magnitudes within the window.
	ReceiptsScaled int64 `db:"receipts"`

	// IssuesScaled sums OUT, TRANSFER and DAMAGED magnitudes within the window.
	IssuesScaled int64 `db:"issues"`

	// AdjustmentsScaled is the net signed ADJUSTMENT sum within the window.
	AdjustmentsScaled int64 `db:"adjustments"`
}

// ExpectedScaled computes opening + receipts − issues + adjustments.
func (s LedgerSums) ExpectedScaled() int64 {
	return s.OpeningScaled + s.ReceiptsScaled - s.IssuesScaled + s.AdjustmentsScaled
}

// EventLog persists drained domain events alongside the state change
// (transactional outbox).
type EventLog interface {
	// Append writes events within the current transaction.
	Append(ctx context.Context, events []StockEvent) error
}
