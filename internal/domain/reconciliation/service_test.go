package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoperx/internal/core/apperror"
	"hoperx/internal/core/id"
	"hoperx/internal/core/ref"
	"hoperx/internal/core/types"
	"hoperx/internal/domain/inventory"
)

type stubBatches struct {
	batches []*inventory.Batch
}

func (s *stubBatches) GetByID(ctx context.Context, batchID id.ID) (*inventory.Batch, error) {
	for _, b := range s.batches {
		if b.ID == batchID {
			return b, nil
		}
	}
	return nil, apperror.NewNotFound("batch", batchID.String())
}

func (s *stubBatches) GetByKey(ctx context.Context, storeID, drugID id.ID, batchNumber ref.BatchNumber) (*inventory.Batch, error) {
	return nil, apperror.NewNotFound("batch", batchNumber.String())
}

func (s *stubBatches) FindForAllocation(ctx context.Context, storeID, drugID id.ID) ([]*inventory.Batch, error) {
	return nil, nil
}

func (s *stubBatches) FindByStore(ctx context.Context, storeID id.ID) ([]*inventory.Batch, error) {
	return s.batches, nil
}

func (s *stubBatches) FindExpiring(ctx context.Context, storeID id.ID, daysAhead int) ([]*inventory.Batch, error) {
	return nil, nil
}

func (s *stubBatches) Create(ctx context.Context, b *inventory.Batch) error { return nil }

func (s *stubBatches) UpdateQuantity(ctx context.Context, b *inventory.Batch) error { return nil }

// stubMovements serves preset ledger sums per batch.
type stubMovements struct {
	sums map[id.ID]inventory.LedgerSums
}

func (s *stubMovements) Create(ctx context.Context, m *inventory.StockMovement) error { return nil }

func (s *stubMovements) CreateAll(ctx context.Context, movements []*inventory.StockMovement) error {
	return nil
}

func (s *stubMovements) History(ctx context.Context, batchID id.ID, limit int) ([]*inventory.StockMovement, error) {
	return nil, nil
}

func (s *stubMovements) LedgerSums(ctx context.Context, batchID id.ID, from, to time.Time) (inventory.LedgerSums, error) {
	return s.sums[batchID], nil
}

type stubReadOnlyTx struct{}

func (stubReadOnlyTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (stubReadOnlyTx) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type countingRecorder struct {
	batches       int
	discrepancies int
}

func (r *countingRecorder) ReconciliationRun(batches, discrepancies int) {
	r.batches = batches
	r.discrepancies = discrepancies
}

func ledgerBatch(t *testing.T, qty int64) *inventory.Batch {
	t.Helper()
	b := inventory.NewBatch(
		ref.MustBatchNumber("B2026-03"),
		id.New(), id.New(), id.New(),
		types.MustQuantity(qty, types.UnitTablet),
		types.UnitStrip, decimal.NewFromInt(10),
		time.Now().AddDate(1, 0, 0),
		types.MustMoney("8.00", "INR"),
		types.MustMoney("10.00", "INR"),
	)
	b.DrugName = "Paracetamol 500mg"
	b.ClearEvents()
	return b
}

func TestReconcileStore_Clean(t *testing.T) {
	b := ledgerBatch(t, 60) // 100 received, 40 issued
	movements := &stubMovements{sums: map[id.ID]inventory.LedgerSums{
		b.ID: {ReceiptsScaled: 100 * types.QuantityScale, IssuesScaled: 40 * types.QuantityScale},
	}}
	rec := &countingRecorder{}
	svc := NewService(&stubBatches{batches: []*inventory.Batch{b}}, movements, stubReadOnlyTx{}, rec)

	report, err := svc.ReconcileStore(context.Background(), id.New())
	require.NoError(t, err)

	assert.True(t, report.Clean())
	assert.Equal(t, 1, report.BatchesChecked)
	assert.Equal(t, 1, rec.batches)
	assert.Zero(t, rec.discrepancies)
}

func TestReconcileStore_Discrepancy(t *testing.T) {
	b := ledgerBatch(t, 55) // ledger says 60 should remain
	movements := &stubMovements{sums: map[id.ID]inventory.LedgerSums{
		b.ID: {ReceiptsScaled: 100 * types.QuantityScale, IssuesScaled: 40 * types.QuantityScale},
	}}
	svc := NewService(&stubBatches{batches: []*inventory.Batch{b}}, movements, stubReadOnlyTx{}, nil)

	report, err := svc.ReconcileStore(context.Background(), id.New())
	require.NoError(t, err)

	require.Len(t, report.Discrepancies, 1)
	d := report.Discrepancies[0]
	assert.Equal(t, b.ID, d.BatchID)
	assert.Equal(t, "B2026-03", d.BatchNumber)
	assert.Equal(t, int64(60*types.QuantityScale), d.Expected.Scaled())
	assert.Equal(t, int64(55*types.QuantityScale), d.Actual.Scaled())
	// 55 on hand vs 60 expected: 5 units short.
	assert.Equal(t, int64(-5*types.QuantityScale), d.DifferenceScaled)
}

func TestReconcileStore_WithinTolerance(t *testing.T) {
	b := ledgerBatch(t, 60)
	// Ledger expectation differs by exactly 0.01 base units.
	movements := &stubMovements{sums: map[id.ID]inventory.LedgerSums{
		b.ID: {ReceiptsScaled: 60*types.QuantityScale + 100},
	}}
	svc := NewService(&stubBatches{batches: []*inventory.Batch{b}}, movements, stubReadOnlyTx{}, nil)

	report, err := svc.ReconcileStore(context.Background(), id.New())
	require.NoError(t, err)
	assert.True(t, report.Clean(), "differences up to 0.01 base units must pass")
}

func TestReconcileStore_JustBeyondTolerance(t *testing.T) {
	b := ledgerBatch(t, 60)
	movements := &stubMovements{sums: map[id.ID]inventory.LedgerSums{
		b.ID: {ReceiptsScaled: 60*types.QuantityScale + 101},
	}}
	svc := NewService(&stubBatches{batches: []*inventory.Batch{b}}, movements, stubReadOnlyTx{}, nil)

	report, err := svc.ReconcileStore(context.Background(), id.New())
	require.NoError(t, err)
	assert.Len(t, report.Discrepancies, 1)
}

func TestReconcileStore_AdjustmentsCount(t *testing.T) {
	b := ledgerBatch(t, 55)
	// 100 in, 40 out, 5 adjusted away: the ledger explains the 55 on hand.
	movements := &stubMovements{sums: map[id.ID]inventory.LedgerSums{
		b.ID: {
			ReceiptsScaled:    100 * types.QuantityScale,
			IssuesScaled:      40 * types.QuantityScale,
			AdjustmentsScaled: -5 * types.QuantityScale,
		},
	}}
	svc := NewService(&stubBatches{batches: []*inventory.Batch{b}}, movements, stubReadOnlyTx{}, nil)

	report, err := svc.ReconcileStore(context.Background(), id.New())
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestReconcileBatch(t *testing.T) {
	b := ledgerBatch(t, 10)
	movements := &stubMovements{sums: map[id.ID]inventory.LedgerSums{
		b.ID: {ReceiptsScaled: 50 * types.QuantityScale},
	}}
	svc := NewService(&stubBatches{batches: []*inventory.Batch{b}}, movements, stubReadOnlyTx{}, nil)

	d, err := svc.ReconcileBatch(context.Background(), b.ID)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, int64(-40*types.QuantityScale), d.DifferenceScaled)
}

func TestReconcileBatch_NotFound(t *testing.T) {
	svc := NewService(&stubBatches{}, &stubMovements{}, stubReadOnlyTx{}, nil)

	_, err := svc.ReconcileBatch(context.Background(), id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestReport_Clean(t *testing.T) {
	r := &Report{}
	assert.True(t, r.Clean())

	r.Discrepancies = append(r.Discrepancies, Discrepancy{})
	assert.False(t, r.Clean())
}
