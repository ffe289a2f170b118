package inventory

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
	"hoperx/internal/domain/catalogs/drug"
)

// --- In-memory fakes ---

// memBatchRepo hands out copies on read and applies writes back to the
// canonical map, mirroring the read-modify-write cycle against a database.
type memBatchRepo struct {
	batches     map[id.ID]*Batch
	failUpdates int // next N UpdateQuantity calls fail with a version conflict
}

func newMemBatchRepo(batches ...*Batch) *memBatchRepo {
	r := &memBatchRepo{batches: make(map[id.ID]*Batch)}
	for _, b := range batches {
		r.batches[b.ID] = b
	}
	return r
}

func (r *memBatchRepo) clone(b *Batch) *Batch {
	c := *b
	c.events = nil
	return &c
}

func (r *memBatchRepo) GetByID(ctx context.Context, batchID id.ID) (*Batch, error) {
	b, ok := r.batches[batchID]
	if !ok {
		return nil, apperror.NewNotFound("batch", batchID.String())
	}
	return r.clone(b), nil
}

func (r *memBatchRepo) GetByKey(ctx context.Context, storeID, drugID id.ID, batchNumber ref.BatchNumber) (*Batch, error) {
	for _, b := range r.batches {
		if b.StoreID == storeID && b.DrugID == drugID && b.BatchNumber == batchNumber {
			return r.clone(b), nil
		}
	}
	return nil, apperror.NewNotFound("batch", batchNumber.String())
}

func (r *memBatchRepo) FindForAllocation(ctx context.Context, storeID, drugID id.ID) ([]*Batch, error) {
	var out []*Batch
	for _, b := range r.batches {
		if b.StoreID == storeID && b.DrugID == drugID && b.BaseUnitQuantity.IsPositive() {
			out = append(out, r.clone(b))
		}
	}
	return out, nil
}

func (r *memBatchRepo) FindByStore(ctx context.Context, storeID id.ID) ([]*Batch, error) {
	var out []*Batch
	for _, b := range r.batches {
		if b.StoreID == storeID {
			out = append(out, r.clone(b))
		}
	}
	return out, nil
}

func (r *memBatchRepo) FindExpiring(ctx context.Context, storeID id.ID, daysAhead int) ([]*Batch, error) {
	var out []*Batch
	for _, b := range r.batches {
		if b.StoreID == storeID && b.IsExpiringSoon(daysAhead) {
			out = append(out, r.clone(b))
		}
	}
	return out, nil
}

func (r *memBatchRepo) Create(ctx context.Context, b *Batch) error {
	r.batches[b.ID] = r.clone(b)
	return nil
}

func (r *memBatchRepo) UpdateQuantity(ctx context.Context, b *Batch) error {
	if r.failUpdates > 0 {
		r.failUpdates--
		return apperror.NewConcurrentModification("batch", b.ID.String())
	}
	canonical, ok := r.batches[b.ID]
	if !ok {
		return apperror.NewNotFound("batch", b.ID.String())
	}
	if canonical.Version != b.Version {
		return apperror.NewConcurrentModification("batch", b.ID.String())
	}
	canonical.BaseUnitQuantity = b.BaseUnitQuantity
	canonical.Version++
	b.Version++
	return nil
}

type memMovementRepo struct {
	movements []*StockMovement
}

func (r *memMovementRepo) Create(ctx context.Context, m *StockMovement) error {
	r.movements = append(r.movements, m)
	return nil
}

func (r *memMovementRepo) CreateAll(ctx context.Context, movements []*StockMovement) error {
	r.movements = append(r.movements, movements...)
	return nil
}

func (r *memMovementRepo) History(ctx context.Context, batchID id.ID, limit int) ([]*StockMovement, error) {
	var out []*StockMovement
	for i := len(r.movements) - 1; i >= 0; i-- {
		if r.movements[i].BatchID == batchID {
			out = append(out, r.movements[i])
		}
	}
	return out, nil
}

func (r *memMovementRepo) LedgerSums(ctx context.Context, batchID id.ID, from, to time.Time) (LedgerSums, error) {
	var sums LedgerSums
	for _, m := range r.movements {
		if m.BatchID != batchID {
			continue
		}
		switch m.Type {
		case MovementIn, MovementReturn:
			sums.ReceiptsScaled += m.Quantity.Scaled()
		case MovementOut, MovementTransfer, MovementDamaged:
			sums.IssuesScaled += m.Quantity.Scaled()
		case MovementAdjustment:
			sums.AdjustmentsScaled += m.SignedScaled()
		}
	}
	return sums, nil
}

type memEventLog struct {
	events []StockEvent
}

func (l *memEventLog) Append(ctx context.Context, events []StockEvent) error {
	l.events = append(l.events, events...)
	return nil
}

// stubTxManager runs the function directly; the fakes have no transactions.
type stubTxManager struct{}

func (stubTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (stubTxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stubDrugSource struct {
	drugs map[id.ID]*drug.Drug
}

func (s *stubDrugSource) GetByID(ctx context.Context, drugID id.ID) (*drug.Drug, error) {
	if d, ok := s.drugs[drugID]; ok {
		return d, nil
	}
	return nil, apperror.NewNotFound("drug", drugID.String())
}

// --- Fixtures ---

type fixture struct {
	svc       *Service
	batches   *memBatchRepo
	movements *memMovementRepo
	events    *memEventLog
	storeID   id.ID
	drugID    id.ID
	early     *Batch
	late      *Batch
}

// newFixture seeds two batches of the same drug: 50 tablets expiring soon
// and 100 tablets expiring later.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	storeID, drugID := id.New(), id.New()
	early := seedBatch(t, storeID, drugID, "B-EARLY", 50, future(30))
	late := seedBatch(t, storeID, drugID, "B-LATE", 100, future(180))

	batches := newMemBatchRepo(early, late)
	movements := &memMovementRepo{}
	events := &memEventLog{}

	svc := NewService(batches, movements, events, &stubDrugSource{}, stubTxManager{}, nil)
	return &fixture{
		svc:       svc,
		batches:   batches,
		movements: movements,
		events:    events,
		storeID:   storeID,
		drugID:    drugID,
		early:     early,
		late:      late,
	}
}

func seedBatch(t *testing.T, storeID, drugID id.ID, number string, qty int64, expiry time.Time) *Batch {
	t.Helper()
	b := NewBatch(
		ref.MustBatchNumber(number),
		storeID, drugID, id.New(),
		types.MustQuantity(qty, types.UnitTablet),
		types.UnitStrip, decimal.NewFromInt(10),
		expiry,
		types.MustMoney("8.00", "INR"),
		types.MustMoney("10.00", "INR"),
	)
	b.DrugName = "Paracetamol 500mg"
	return b
}

// --- AllocateStock ---

func TestAllocateStock_FEFO(t *testing.T) {
	f := newFixture(t)

	allocations, err := f.svc.AllocateStock(context.Background(), f.storeID, f.drugID,
		types.MustQuantity(120, types.UnitTablet), StrategyFEFO)
	require.NoError(t, err)

	require.Len(t, allocations, 2)
	assert.Equal(t, f.early.ID, allocations[0].Batch.ID)
	assert.Equal(t, int64(50*types.QuantityScale), allocations[0].Quantity.Scaled())
	assert.Equal(t, f.late.ID, allocations[1].Batch.ID)
	assert.Equal(t, int64(70*types.QuantityScale), allocations[1].Quantity.Scaled())

	// Planning must not touch stored quantities.
	assert.Equal(t, int64(50*types.QuantityScale), f.batches.batches[f.early.ID].BaseUnitQuantity.Scaled())
}

func TestAllocateStock_InsufficientReportsTrueAvailable(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AllocateStock(context.Background(), f.storeID, f.drugID,
		types.MustQuantity(151, types.UnitTablet), StrategyFEFO)
	require.True(t, apperror.IsInsufficientStock(err))

	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "150.0000 tablet", appErr.Details["available"])
	assert.Equal(t, "151.0000 tablet", appErr.Details["required"])
}

func TestAllocateStock_ExactTotalSucceeds(t *testing.T) {
	f := newFixture(t)

	allocations, err := f.svc.AllocateStock(context.Background(), f.storeID, f.drugID,
		types.MustQuantity(150, types.UnitTablet), StrategyFEFO)
	require.NoError(t, err)
	assert.Len(t, allocations, 2)
}

func TestAllocateStock_ExcludesExpired(t *testing.T) {
	f := newFixture(t)
	expired := seedBatch(t, f.storeID, f.drugID, "B-EXPIRED", 500, past(1))
	require.NoError(t, f.batches.Create(context.Background(), expired))

	// The expired 500 must not count toward availability.
	_, err := f.svc.AllocateStock(context.Background(), f.storeID, f.drugID,
		types.MustQuantity(200, types.UnitTablet), StrategyFEFO)
	require.True(t, apperror.IsInsufficientStock(err))

	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "150.0000 tablet", appErr.Details["available"])
}

func TestAllocateStock_NoStock(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AllocateStock(context.Background(), f.storeID, id.New(),
		types.MustQuantity(1, types.UnitTablet), StrategyFEFO)
	require.True(t, apperror.IsInsufficientStock(err))

	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "0.0000 tablet", appErr.Details["available"])
}

func TestAllocateStock_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AllocateStock(ctx, f.storeID, f.drugID, types.ZeroQuantity(types.UnitTablet), StrategyFEFO)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = f.svc.AllocateStock(ctx, f.storeID, f.drugID, types.MustQuantity(1, types.UnitTablet), "RANDOM")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

// --- DeductAllocatedStock ---

func TestDeductAllocatedStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	allocations, err := f.svc.AllocateStock(ctx, f.storeID, f.drugID,
		types.MustQuantity(120, types.UnitTablet), StrategyFEFO)
	require.NoError(t, err)

	refID := id.New()
	require.NoError(t, f.svc.DeductAllocatedStock(ctx, allocations, "sale", refID, "counter sale", "user-1"))

	// Quantities applied.
	assert.True(t, f.batches.batches[f.early.ID].BaseUnitQuantity.IsZero())
	assert.Equal(t, int64(30*types.QuantityScale), f.batches.batches[f.late.ID].BaseUnitQuantity.Scaled())

	// One OUT movement per allocation slice, with before/after balances.
	require.Len(t, f.movements.movements, 2)
	m := f.movements.movements[0]
	assert.Equal(t, MovementOut, m.Type)
	assert.Equal(t, int64(50*types.QuantityScale), m.BalanceBefore.Scaled())
	assert.True(t, m.BalanceAfter.IsZero())
	assert.Equal(t, "sale", m.ReferenceType)
	assert.Equal(t, refID, m.ReferenceID)

	// Events drained to the log, exactly one per deduction.
	assert.Len(t, f.events.events, 2)
}

func TestDeductAllocatedStock_ConflictLeavesNoPartialState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	allocations, err := f.svc.AllocateStock(ctx, f.storeID, f.drugID,
		types.MustQuantity(120, types.UnitTablet), StrategyFEFO)
	require.NoError(t, err)

	f.batches.failUpdates = 1
	err = f.svc.DeductAllocatedStock(ctx, allocations, "sale", id.New(), "counter sale", "user-1")
	require.True(t, apperror.IsConcurrentModification(err))

	// Nothing recorded for the failed attempt.
	assert.Empty(t, f.movements.movements)
	assert.Empty(t, f.events.events)
}

// --- AllocateAndDeduct ---

func TestAllocateAndDeduct_RetriesOnConflict(t *testing.T) {
	f := newFixture(t)
	f.batches.failUpdates = 1

	allocations, err := f.svc.AllocateAndDeduct(context.Background(), f.storeID, f.drugID,
		types.MustQuantity(120, types.UnitTablet), StrategyFEFO,
		"sale", id.New(), "counter sale", "user-1")
	require.NoError(t, err)
	assert.Len(t, allocations, 2)
	assert.Len(t, f.movements.movements, 2)
}

func TestAllocateAndDeduct_GivesUpAfterRetries(t *testing.T) {
	f := newFixture(t)
	f.batches.failUpdates = 100

	_, err := f.svc.AllocateAndDeduct(context.Background(), f.storeID, f.drugID,
		types.MustQuantity(120, types.UnitTablet), StrategyFEFO,
		"sale", id.New(), "counter sale", "user-1")
	require.True(t, apperror.IsConcurrentModification(err))

	// 3 attempts consumed 3 of the injected failures.
	assert.Equal(t, 97, f.batches.failUpdates)
}

// --- AddStock / AdjustStock ---

func TestAddStock(t *testing.T) {
	f := newFixture(t)

	err := f.svc.AddStock(context.Background(), f.early.ID,
		types.MustQuantity(25, types.UnitTablet), MovementReturn, "return", id.New(), "customer return", "user-1")
	require.NoError(t, err)

	assert.Equal(t, int64(75*types.QuantityScale), f.batches.batches[f.early.ID].BaseUnitQuantity.Scaled())
	require.Len(t, f.movements.movements, 1)
	assert.Equal(t, MovementReturn, f.movements.movements[0].Type)
	assert.Len(t, f.events.events, 1)
}

func TestAddStock_RejectsOutgoingType(t *testing.T) {
	f := newFixture(t)

	err := f.svc.AddStock(context.Background(), f.early.ID,
		types.MustQuantity(25, types.UnitTablet), MovementOut, "sale", id.New(), "", "user-1")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestAdjustStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.AdjustStock(ctx, f.early.ID, DirectionOut,
		types.MustQuantity(5, types.UnitTablet), "stock-take variance", "user-1")
	require.NoError(t, err)

	assert.Equal(t, int64(45*types.QuantityScale), f.batches.batches[f.early.ID].BaseUnitQuantity.Scaled())
	require.Len(t, f.movements.movements, 1)
	assert.Equal(t, MovementAdjustment, f.movements.movements[0].Type)
	assert.Equal(t, DirectionOut, f.movements.movements[0].Direction)
}

func TestAdjustStock_RequiresReason(t *testing.T) {
	f := newFixture(t)

	err := f.svc.AdjustStock(context.Background(), f.early.ID, DirectionIn,
		types.MustQuantity(5, types.UnitTablet), "", "user-1")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

// --- Reports ---

func TestExpiryRiskByStore(t *testing.T) {
	f := newFixture(t)
	expired := seedBatch(t, f.storeID, f.drugID, "B-EXPIRED", 10, past(1))
	require.NoError(t, f.batches.Create(context.Background(), expired))

	report, err := f.svc.ExpiryRiskByStore(context.Background(), f.storeID)
	require.NoError(t, err)

	assert.Len(t, report.Buckets[RiskExpired], 1)
	assert.Len(t, report.Buckets[RiskCritical], 1)   // 30 days out
	assert.Len(t, report.Buckets[RiskSafe], 1)       // 180 days out
	assert.Empty(t, report.Buckets[RiskWarning])

	// At risk: expired 10x10.00 + critical 50x10.00 = 600.00.
	assert.Equal(t, "INR 600.00", report.TotalAtRisk.String())
}

func TestLowStockByStore(t *testing.T) {
	f := newFixture(t)

	d := drug.NewDrug("PARA500", "Paracetamol 500mg", types.UnitTablet, types.UnitStrip)
	d.ID = f.drugID
	d.LowStockThreshold = 200 * types.QuantityScale

	svc := NewService(f.batches, f.movements, f.events,
		&stubDrugSource{drugs: map[id.ID]*drug.Drug{d.ID: d}}, stubTxManager{}, nil)

	items, err := svc.LowStockByStore(context.Background(), f.storeID)
	require.NoError(t, err)

	// 150 on hand vs threshold 200.
	require.Len(t, items, 1)
	assert.Equal(t, f.drugID, items[0].DrugID)
	assert.Equal(t, int64(150*types.QuantityScale), items[0].OnHand.Scaled())
	assert.Equal(t, 2, items[0].Batches)
}
