package inventory

import (
	"context"
	"time"

	"hoperx/internal/core/apperror"
	"hoperx/internal/core/id"
	"hoperx/internal/core/tx"
	"hoperx/internal/core/types"
	"hoperx/internal/domain/catalogs/drug"
	"hoperx/pkg/logger"
)

// allocationRetries bounds the whole-allocation retry loop on optimistic
// locking conflicts. Each retry re-reads batches, so stale plans are never
// replayed.
const allocationRetries = 3

// DrugSource resolves drug master data for reports.
// Satisfied by drug.Repository.
type DrugSource interface {
	GetByID(ctx context.Context, drugID id.ID) (*drug.Drug, error)
}

// Recorder receives operational metrics from the service.
// Implemented by infrastructure/metrics; a nil Recorder is valid.
type Recorder interface {
	AllocationPerformed(strategy string, batches int)
	AllocationFailed(code string)
	AllocationRetried()
	MovementRecorded(movementType string)
}

// Service orchestrates stock allocation and mutation across batches.
//
// Allocation is a two-phase operation: AllocateStock builds a plan without
// mutating anything; DeductAllocatedStock applies a plan atomically. The
// combined AllocateAndDeduct retries the whole cycle on optimistic locking
// conflicts.
type Service struct {
	batches   BatchRepository
	movements MovementRepository
	eventLog  EventLog
	drugs     DrugSource
	txManager tx.Manager
	metrics   Recorder
}

// NewService creates the inventory service. metrics may be nil.
func NewService(
	batches BatchRepository,
	movements MovementRepository,
	eventLog EventLog,
	drugs DrugSource,
	txManager tx.Manager,
	metrics Recorder,
) *Service {
	return &Service{
		batches:   batches,
		movements: movements,
		eventLog:  eventLog,
		drugs:     drugs,
		txManager: txManager,
		metrics:   metrics,
	}
}

// AllocateStock builds an allocation plan for a requested base-unit quantity
// without mutating any batch.
//
// Expired batches are excluded before sufficiency is checked, so the
// insufficient-stock error always reports the truly allocatable total, not
// the raw sum. No-stock and all-expired cases both fail with available 0.
func (s *Service) AllocateStock(
	ctx context.Context,
	storeID, drugID id.ID,
	requested types.Quantity,
	strategy AllocationStrategy,
) ([]Allocation, error) {
	if !requested.IsPositive() {
		return nil, apperror.NewValidation("requested quantity must be positive")
	}
	if !strategy.IsValid() {
		return nil, apperror.NewValidation("unknown allocation strategy").
			WithDetail("strategy", string(strategy))
	}

	all, err := s.batches.FindForAllocation(ctx, storeID, drugID)
	if err != nil {
		return nil, err
	}

	label := s.drugLabel(ctx, drugID, all)
	if len(all) == 0 {
		s.recordFailure(apperror.CodeInsufficientStock)
		return nil, apperror.NewInsufficientStock(
			label, types.ZeroQuantity(requested.Unit()).String(), requested.String())
	}

	candidates := filterUnexpired(all)
	if len(candidates) == 0 {
		s.recordFailure(apperror.CodeInsufficientStock)
		return nil, apperror.NewInsufficientStock(
			label, types.ZeroQuantity(requested.Unit()).String(), requested.String()).
			WithDetail("expired_batches", len(all))
	}

	SortBatches(candidates, strategy)

	allocations, remaining := allocateGreedy(candidates, requested)
	if remaining.IsPositive() {
		s.recordFailure(apperror.CodeInsufficientStock)
		return nil, apperror.NewInsufficientStock(
			label, totalAvailable(candidates, requested.Unit()).String(), requested.String()).
			WithDetail("shortfall", remaining.String())
	}

	if s.metrics != nil {
		s.metrics.AllocationPerformed(string(strategy), len(allocations))
	}
	logger.Debug(ctx, "allocation plan built",
		"drug_id", drugID,
		"store_id", storeID,
		"strategy", strategy,
		"requested", requested.String(),
		"batches", len(allocations),
	)
	return allocations, nil
}

// DeductAllocatedStock applies an allocation plan atomically: for every slice
// it deducts from the batch, persists the new quantity under the optimistic
// version guard, writes an OUT movement with before/after balances, and
// appends the drained domain events to the event log. Any failure rolls back
// the whole plan.
func (s *Service) DeductAllocatedStock(
	ctx context.Context,
	allocations []Allocation,
	referenceType string,
	referenceID id.ID,
	reason, userID string,
) error {
	if len(allocations) == 0 {
		return apperror.NewValidation("allocation plan is empty")
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		movements := make([]*StockMovement, 0, len(allocations))
		var events []StockEvent

		for _, a := range allocations {
			before := a.Batch.BaseUnitQuantity

			if err := a.Batch.Deduct(a.Quantity, reason, userID); err != nil {
				return err
			}
			if err := s.batches.UpdateQuantity(ctx, a.Batch); err != nil {
				return err
			}

			m, err := NewStockMovement(
				a.Batch, MovementOut, a.Quantity,
				before, a.Batch.BaseUnitQuantity,
				referenceType, referenceID, reason, userID,
			)
			if err != nil {
				return err
			}
			movements = append(movements, m)
			events = append(events, a.Batch.ClearEvents()...)
		}

		if err := s.movements.CreateAll(ctx, movements); err != nil {
			return err
		}
		if err := s.eventLog.Append(ctx, events); err != nil {
			return err
		}

		if s.metrics != nil {
			for range movements {
				s.metrics.MovementRecorded(string(MovementOut))
			}
		}
		return nil
	})
}

// AllocateAndDeduct runs the full allocate-then-deduct cycle, retrying the
// whole cycle with fresh reads when a concurrent writer invalidates the plan.
func (s *Service) AllocateAndDeduct(
	ctx context.Context,
	storeID, drugID id.ID,
	requested types.Quantity,
	strategy AllocationStrategy,
	referenceType string,
	referenceID id.ID,
	reason, userID string,
) ([]Allocation, error) {
	var lastErr error

	for attempt := 1; attempt <= allocationRetries; attempt++ {
		allocations, err := s.AllocateStock(ctx, storeID, drugID, requested, strategy)
		if err != nil {
			return nil, err
		}

		err = s.DeductAllocatedStock(ctx, allocations, referenceType, referenceID, reason, userID)
		if err == nil {
			return allocations, nil
		}
		if !apperror.IsConcurrentModification(err) {
			return nil, err
		}

		lastErr = err
		if s.metrics != nil {
			s.metrics.AllocationRetried()
		}
		logger.Warn(ctx, "allocation conflicted with concurrent writer, retrying",
			"drug_id", drugID,
			"attempt", attempt,
		)
	}

	s.recordFailure(apperror.CodeConcurrentModification)
	return nil, lastErr
}

// AddStock increases a batch's quantity (returns, corrections, receipt
// top-ups), recording a movement of the given incoming type.
func (s *Service) AddStock(
	ctx context.Context,
	batchID id.ID,
	qty types.Quantity,
	movementType MovementType,
	referenceType string,
	referenceID id.ID,
	reason, userID string,
) error {
	if d, ok := directionFor(movementType); !ok || d != DirectionIn {
		return apperror.NewValidation("movement type must be incoming").
			WithDetail("movement_type", string(movementType))
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.batches.GetByID(ctx, batchID)
		if err != nil {
			return err
		}

		before := b.BaseUnitQuantity
		if err := b.Add(qty, reason, userID); err != nil {
			return err
		}
		if err := s.batches.UpdateQuantity(ctx, b); err != nil {
			return err
		}

		m, err := NewStockMovement(b, movementType, qty, before, b.BaseUnitQuantity, referenceType, referenceID, reason, userID)
		if err != nil {
			return err
		}
		if err := s.movements.Create(ctx, m); err != nil {
			return err
		}
		if err := s.eventLog.Append(ctx, b.ClearEvents()); err != nil {
			return err
		}

		if s.metrics != nil {
			s.metrics.MovementRecorded(string(movementType))
		}
		return nil
	})
}

// AdjustStock applies a signed correction to a batch (stock-take variance,
// damage write-off). The direction is explicit because ADJUSTMENT has none.
func (s *Service) AdjustStock(
	ctx context.Context,
	batchID id.ID,
	direction Direction,
	qty types.Quantity,
	reason, userID string,
) error {
	if reason == "" {
		return apperror.NewValidation("adjustment requires a reason")
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.batches.GetByID(ctx, batchID)
		if err != nil {
			return err
		}

		before := b.BaseUnitQuantity
		switch direction {
		case DirectionIn:
			err = b.Add(qty, reason, userID)
		case DirectionOut:
			err = b.Deduct(qty, reason, userID)
		default:
			err = apperror.NewValidation("invalid adjustment direction").
				WithDetail("direction", string(direction))
		}
		if err != nil {
			return err
		}

		if err := s.batches.UpdateQuantity(ctx, b); err != nil {
			return err
		}

		m, err := NewAdjustmentMovement(b, direction, qty, before, b.BaseUnitQuantity, reason, userID)
		if err != nil {
			return err
		}
		if err := s.movements.Create(ctx, m); err != nil {
			return err
		}
		if err := s.eventLog.Append(ctx, b.ClearEvents()); err != nil {
			return err
		}

		if s.metrics != nil {
			s.metrics.MovementRecorded(string(MovementAdjustment))
		}
		return nil
	})
}

// GetBatch retrieves a batch by id.
func (s *Service) GetBatch(ctx context.Context, batchID id.ID) (*Batch, error) {
	return s.batches.GetByID(ctx, batchID)
}

// MovementHistory returns the audit trail for a batch, newest first.
func (s *Service) MovementHistory(ctx context.Context, batchID id.ID, limit int) ([]*StockMovement, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.movements.History(ctx, batchID, limit)
}

func (s *Service) recordFailure(code string) {
	if s.metrics != nil {
		s.metrics.AllocationFailed(code)
	}
}

// drugLabel resolves a human-readable drug name for error messages, falling
// back to batch data and finally the raw id.
func (s *Service) drugLabel(ctx context.Context, drugID id.ID, batches []*Batch) string {
	for _, b := range batches {
		if b.DrugName != "" {
			return b.DrugName
		}
	}
	if s.drugs != nil {
		if d, err := s.drugs.GetByID(ctx, drugID); err == nil {
			return d.Name
		}
	}
	return drugID.String()
}

// --- Reports ---

// RiskBucket classifies shelf-life risk for the expiry report.
type RiskBucket string

const (
	RiskExpired  RiskBucket = "EXPIRED"
	RiskCritical RiskBucket = "CRITICAL" // ≤ 30 days
	RiskWarning  RiskBucket = "WARNING"  // ≤ 60 days
	RiskCaution  RiskBucket = "CAUTION"  // ≤ 90 days
	RiskSafe     RiskBucket = "SAFE"
)

// bucketFor maps days-to-expiry to a risk bucket.
func bucketFor(daysLeft int) RiskBucket {
	switch {
	case daysLeft < 0:
		return RiskExpired
	case daysLeft <= 30:
		return RiskCritical
	case daysLeft <= 60:
		return RiskWarning
	case daysLeft <= 90:
		return RiskCaution
	default:
		return RiskSafe
	}
}

// ExpiryRiskItem is one batch in the expiry risk report.
type ExpiryRiskItem struct {
	Batch       *Batch      `json:"batch"`
	Bucket      RiskBucket  `json:"bucket"`
	DaysLeft    int         `json:"daysLeft"`
	ValueAtRisk types.Money `json:"valueAtRisk"`
}

// ExpiryRiskReport groups a store's stock by shelf-life risk, each batch
// weighted by quantity × selling price.
type ExpiryRiskReport struct {
	StoreID     id.ID                         `json:"storeId"`
	GeneratedAt time.Time                     `json:"generatedAt"`
	Buckets     map[RiskBucket][]ExpiryRiskItem `json:"buckets"`
	TotalAtRisk types.Money                   `json:"totalAtRisk"`
}

// ExpiryRiskByStore builds the expiry risk report for a store. Only batches
// with stock on hand participate; TotalAtRisk sums everything not yet SAFE.
func (s *Service) ExpiryRiskByStore(ctx context.Context, storeID id.ID) (*ExpiryRiskReport, error) {
	batches, err := s.batches.FindByStore(ctx, storeID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	report := &ExpiryRiskReport{
		StoreID:     storeID,
		GeneratedAt: now.UTC(),
		Buckets:     make(map[RiskBucket][]ExpiryRiskItem),
		TotalAtRisk: types.ZeroMoney(types.DefaultCurrency),
	}

	for _, b := range batches {
		if !b.BaseUnitQuantity.IsPositive() {
			continue
		}

		daysLeft := int(b.ExpiryDate.Sub(now).Hours() / 24)
		if b.IsExpired() {
			daysLeft = -1
		}
		bucket := bucketFor(daysLeft)

		value, err := b.SellingPrice.Mul(b.BaseUnitQuantity.Decimal())
		if err != nil {
			return nil, err
		}

		report.Buckets[bucket] = append(report.Buckets[bucket], ExpiryRiskItem{
			Batch:       b,
			Bucket:      bucket,
			DaysLeft:    daysLeft,
			ValueAtRisk: value,
		})

		if bucket != RiskSafe {
			total, err := report.TotalAtRisk.Add(value)
			if err != nil {
				return nil, err
			}
			report.TotalAtRisk = total
		}
	}

	return report, nil
}

// LowStockItem is one drug below its reorder threshold.
type LowStockItem struct {
	DrugID    id.ID          `json:"drugId"`
	DrugName  string         `json:"drugName"`
	OnHand    types.Quantity `json:"onHand"`
	Threshold types.Quantity `json:"threshold"`
	Batches   int            `json:"batches"`
}

// LowStockByStore reports drugs whose total on-hand stock, summed across all
// unexpired batches, is at or below the drug's configured threshold. Drugs
// with threshold 0 never appear.
func (s *Service) LowStockByStore(ctx context.Context, storeID id.ID) ([]LowStockItem, error) {
	batches, err := s.batches.FindByStore(ctx, storeID)
	if err != nil {
		return nil, err
	}

	type drugTotal struct {
		onHand  types.Quantity
		name    string
		batches int
	}
	totals := make(map[id.ID]*drugTotal)

	for _, b := range filterUnexpired(batches) {
		t, ok := totals[b.DrugID]
		if !ok {
			t = &drugTotal{onHand: types.ZeroQuantity(b.BaseUnitQuantity.Unit()), name: b.DrugName}
			totals[b.DrugID] = t
		}
		sum, err := t.onHand.Add(b.BaseUnitQuantity)
		if err != nil {
			continue
		}
		t.onHand = sum
		t.batches++
	}

	items := make([]LowStockItem, 0)
	for drugID, t := range totals {
		d, err := s.drugs.GetByID(ctx, drugID)
		if err != nil {
			if apperror.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if d.LowStockThreshold <= 0 {
			continue
		}

		threshold, err := types.NewQuantityFromScaled(d.LowStockThreshold, t.onHand.Unit())
		if err != nil {
			continue
		}
		c, err := t.onHand.Cmp(threshold)
		if err != nil || c > 0 {
			continue
		}

		name := t.name
		if name == "" {
			name = d.Name
		}
		items = append(items, LowStockItem{
			DrugID:    drugID,
			DrugName:  name,
			OnHand:    t.onHand,
			Threshold: threshold,
			Batches:   t.batches,
		})
	}

	return items, nil
}
