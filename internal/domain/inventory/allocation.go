package inventory

import (
	"sort"

	"hoperx/internal/core/types"
)

// AllocationStrategy determines the order in which batches are drawn down.
// Strategies are plain sort comparators over a common batch list — they need
// no shared state.
type AllocationStrategy string

const (
	// StrategyFEFO (First-Expiry-First-Out) is the default for
	// pharmaceuticals: nearest expiry first.
	StrategyFEFO AllocationStrategy = "FEFO"
	// StrategyFIFO draws from the oldest receipt first.
	StrategyFIFO AllocationStrategy = "FIFO"
	// StrategyLIFO draws from the newest receipt first.
	StrategyLIFO AllocationStrategy = "LIFO"
)

// IsValid reports whether the strategy is known.
func (s AllocationStrategy) IsValid() bool {
	switch s {
	case StrategyFEFO, StrategyFIFO, StrategyLIFO:
		return true
	}
	return false
}

// less returns the strategy's comparator. Ties break on creation time and
// then batch ID so allocation order is fully deterministic.
func (s AllocationStrategy) less(a, b *Batch) bool {
	switch s {
	case StrategyFIFO:
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
	case StrategyLIFO:
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
	default: // FEFO
		if !a.ExpiryDate.Equal(b.ExpiryDate) {
			return a.ExpiryDate.Before(b.ExpiryDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	return a.ID.String() < b.ID.String()
}

// SortBatches orders batches in place according to the strategy.
func SortBatches(batches []*Batch, strategy AllocationStrategy) {
	sort.SliceStable(batches, func(i, j int) bool {
		return strategy.less(batches[i], batches[j])
	})
}

// Allocation is one slice of an allocation plan: draw Quantity base units
// from Batch.
type Allocation struct {
	Batch    *Batch         `json:"batch"`
	Quantity types.Quantity `json:"quantity"`
}

// filterUnexpired returns only batches whose expiry has not passed.
// An expired batch is never an allocation candidate, regardless of strategy.
func filterUnexpired(batches []*Batch) []*Batch {
	valid := make([]*Batch, 0, len(batches))
	for _, b := range batches {
		if !b.IsExpired() {
			valid = append(valid, b)
		}
	}
	return valid
}

// totalAvailable sums base-unit quantities across batches.
func totalAvailable(batches []*Batch, unit types.Unit) types.Quantity {
	total := types.ZeroQuantity(unit)
	for _, b := range batches {
		sum, err := total.Add(b.BaseUnitQuantity)
		if err != nil {
			continue
		}
		total = sum
	}
	return total
}

// allocateGreedy walks sorted batches, drawing min(available, remaining)
// from each until the request is satisfied. Returns the plan and the
// remaining unsatisfied quantity.
func allocateGreedy(sorted []*Batch, requested types.Quantity) ([]Allocation, types.Quantity) {
	allocations := make([]Allocation, 0, 2)
	remaining := requested

	for _, b := range sorted {
		if !remaining.IsPositive() {
			break
		}
		if !b.BaseUnitQuantity.IsPositive() {
			continue
		}

		take, err := b.BaseUnitQuantity.Min(remaining)
		if err != nil {
			// Unit-mismatched batch rows indicate corrupt data; skip rather
			// than allocate a wrong-unit quantity.
			continue
		}

		allocations = append(allocations, Allocation{Batch: b, Quantity: take})
		remaining, _ = remaining.Sub(take)
	}

	return allocations, remaining
}
