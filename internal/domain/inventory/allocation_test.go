package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoperx/internal/core/types"
)

func batchWith(t *testing.T, qty int64, expiry time.Time, createdAt time.Time) *Batch {
	t.Helper()
	b := newTestBatch(t, qty, expiry)
	b.CreatedAt = createdAt
	return b
}

func TestSortBatches_FEFO(t *testing.T) {
	now := time.Now()
	late := batchWith(t, 100, future(365), now.Add(-48*time.Hour))
	early := batchWith(t, 50, future(30), now.Add(-1*time.Hour))

	batches := []*Batch{late, early}
	SortBatches(batches, StrategyFEFO)

	assert.Same(t, early, batches[0], "nearest expiry first")
	assert.Same(t, late, batches[1])
}

func TestSortBatches_FIFO_LIFO(t *testing.T) {
	now := time.Now()
	old := batchWith(t, 50, future(30), now.Add(-48*time.Hour))
	recent := batchWith(t, 100, future(365), now.Add(-1*time.Hour))

	batches := []*Batch{recent, old}
	SortBatches(batches, StrategyFIFO)
	assert.Same(t, old, batches[0], "oldest receipt first")

	SortBatches(batches, StrategyLIFO)
	assert.Same(t, recent, batches[0], "newest receipt first")
}

func TestAllocateGreedy_SplitsAcrossBatches(t *testing.T) {
	now := time.Now()
	first := batchWith(t, 50, future(30), now)
	second := batchWith(t, 100, future(180), now)
	sorted := []*Batch{first, second}

	allocations, remaining := allocateGreedy(sorted, types.MustQuantity(120, types.UnitTablet))

	require.Len(t, allocations, 2)
	assert.Same(t, first, allocations[0].Batch)
	assert.Equal(t, int64(50*types.QuantityScale), allocations[0].Quantity.Scaled())
	assert.Same(t, second, allocations[1].Batch)
	assert.Equal(t, int64(70*types.QuantityScale), allocations[1].Quantity.Scaled())
	assert.True(t, remaining.IsZero())
}

func TestAllocateGreedy_ExactTotal(t *testing.T) {
	now := time.Now()
	sorted := []*Batch{
		batchWith(t, 50, future(30), now),
		batchWith(t, 100, future(180), now),
	}

	allocations, remaining := allocateGreedy(sorted, types.MustQuantity(150, types.UnitTablet))
	require.Len(t, allocations, 2)
	assert.True(t, remaining.IsZero(), "requesting the exact total must succeed")
}

func TestAllocateGreedy_Shortfall(t *testing.T) {
	now := time.Now()
	sorted := []*Batch{
		batchWith(t, 50, future(30), now),
		batchWith(t, 100, future(180), now),
	}

	_, remaining := allocateGreedy(sorted, types.MustQuantity(151, types.UnitTablet))
	assert.Equal(t, int64(1*types.QuantityScale), remaining.Scaled())
}

func TestFilterUnexpired(t *testing.T) {
	valid := newTestBatch(t, 10, future(30))
	expired := newTestBatch(t, 10, past(1))

	out := filterUnexpired([]*Batch{valid, expired})
	require.Len(t, out, 1)
	assert.Same(t, valid, out[0])
}

func TestTotalAvailable(t *testing.T) {
	batches := []*Batch{
		newTestBatch(t, 50, future(30)),
		newTestBatch(t, 100, future(180)),
	}

	total := totalAvailable(batches, types.UnitTablet)
	assert.Equal(t, int64(150*types.QuantityScale), total.Scaled())
}

func TestAllocationStrategy_IsValid(t *testing.T) {
	assert.True(t, StrategyFEFO.IsValid())
	assert.True(t, StrategyFIFO.IsValid())
	assert.True(t, StrategyLIFO.IsValid())
	assert.False(t, AllocationStrategy("RANDOM").IsValid())
}
