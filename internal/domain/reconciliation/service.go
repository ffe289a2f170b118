// Package reconciliation cross-checks batch stock against the movement
// ledger. It reports discrepancies; it never corrects them — corrections are
// explicit adjustments made by a person.
package reconciliation

import (
	"context"
	"time"

	"hoperx/internal/core/id"
	"hoperx/internal/core/tx"
	"hoperx/internal/core/types"
	"hoperx/internal/domain/inventory"
	"hoperx/pkg/logger"
)

// toleranceScaled is the largest absolute difference (in scaled base units)
// still considered a match: 0.01 of a base unit, absorbing historical
// rounding in converted quantities.
const toleranceScaled = 100

// Recorder receives reconciliation metrics. May be nil.
type Recorder interface {
	ReconciliationRun(batches, discrepancies int)
}

// Discrepancy is one batch whose on-hand quantity disagrees with the ledger.
type Discrepancy struct {
	BatchID     id.ID          `json:"batchId"`
	BatchNumber string         `json:"batchNumber"`
	DrugID      id.ID          `json:"drugId"`
	DrugName    string         `json:"drugName,omitempty"`
	Expected    types.Quantity `json:"expected"`
	Actual      types.Quantity `json:"actual"`

	// DifferenceScaled is actual − expected in scaled base units; positive
	// means the batch holds more than the ledger accounts for.
	DifferenceScaled int64 `json:"differenceScaled"`
}

// Report is the outcome of one reconciliation run over a store.
type Report struct {
	StoreID       id.ID         `json:"storeId"`
	RanAt         time.Time     `json:"ranAt"`
	BatchesChecked int          `json:"batchesChecked"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}

// Clean reports whether every batch matched the ledger.
func (r *Report) Clean() bool { return len(r.Discrepancies) == 0 }

// Service reconciles batch quantities against the movement ledger.
type Service struct {
	batches   inventory.BatchRepository
	movements inventory.MovementRepository
	txManager tx.ReadOnlyManager
	metrics   Recorder
}

// NewService creates the reconciliation service. metrics may be nil.
func NewService(
	batches inventory.BatchRepository,
	movements inventory.MovementRepository,
	txManager tx.ReadOnlyManager,
	metrics Recorder,
) *Service {
	return &Service{
		batches:   batches,
		movements: movements,
		txManager: txManager,
		metrics:   metrics,
	}
}

// ReconcileStore checks every batch in a store against its ledger history.
// The whole run executes in one read-only transaction so batch quantities and
// ledger sums come from a single consistent snapshot.
func (s *Service) ReconcileStore(ctx context.Context, storeID id.ID) (*Report, error) {
	report := &Report{
		StoreID: storeID,
		RanAt:   time.Now().UTC(),
	}

	err := s.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		batches, err := s.batches.FindByStore(ctx, storeID)
		if err != nil {
			return err
		}
		report.BatchesChecked = len(batches)

		for _, b := range batches {
			d, err := s.checkBatch(ctx, b, report.RanAt)
			if err != nil {
				return err
			}
			if d != nil {
				report.Discrepancies = append(report.Discrepancies, *d)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ReconciliationRun(report.BatchesChecked, len(report.Discrepancies))
	}
	if !report.Clean() {
		logger.Warn(ctx, "reconciliation found discrepancies",
			"store_id", storeID,
			"batches", report.BatchesChecked,
			"discrepancies", len(report.Discrepancies),
		)
	} else {
		logger.Info(ctx, "reconciliation clean",
			"store_id", storeID,
			"batches", report.BatchesChecked,
		)
	}
	return report, nil
}

// ReconcileBatch checks a single batch against its ledger history.
// Returns nil when the batch is within tolerance.
func (s *Service) ReconcileBatch(ctx context.Context, batchID id.ID) (*Discrepancy, error) {
	var result *Discrepancy
	err := s.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		b, err := s.batches.GetByID(ctx, batchID)
		if err != nil {
			return err
		}
		result, err = s.checkBatch(ctx, b, time.Now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// checkBatch compares on-hand quantity to the ledger expectation:
// opening + receipts − issues + adjustments over the batch's full history.
func (s *Service) checkBatch(ctx context.Context, b *inventory.Batch, until time.Time) (*Discrepancy, error) {
	sums, err := s.movements.LedgerSums(ctx, b.ID, b.CreatedAt, until)
	if err != nil {
		return nil, err
	}

	expectedScaled := sums.ExpectedScaled()
	actualScaled := b.BaseUnitQuantity.Scaled()

	diff := actualScaled - expectedScaled
	if diff < 0 {
		diff = -diff
	}
	if diff <= toleranceScaled {
		return nil, nil
	}

	unit := b.BaseUnitQuantity.Unit()
	expected, err := types.NewQuantityFromScaled(max64(expectedScaled, 0), unit)
	if err != nil {
		return nil, err
	}

	return &Discrepancy{
		BatchID:          b.ID,
		BatchNumber:      b.BatchNumber.String(),
		DrugID:           b.DrugID,
		DrugName:         b.DrugName,
		Expected:         expected,
		Actual:           b.BaseUnitQuantity,
		DifferenceScaled: actualScaled - expectedScaled,
	}, nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
