// Package inventory provides the Batch aggregate, the stock movement ledger
// and the allocation service.
package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"hoperx/internal/core/apperror"
	"hoperx/internal/core/id"
	"hoperx/internal/core/ref"
	"hoperx/internal/core/types"
)

// ExpiryStatus classifies a batch by remaining shelf life.
type ExpiryStatus string

const (
	ExpiryStatusExpired  ExpiryStatus = "EXPIRED"
	ExpiryStatusSoon     ExpiryStatus = "EXPIRING_SOON"    // ≤ 30 days
	ExpiryStatusWarning  ExpiryStatus = "EXPIRING_WARNING" // ≤ 90 days
	ExpiryStatusValid    ExpiryStatus = "VALID"
)

const (
	expirySoonDays    = 30
	expiryWarningDays = 90
)

// Batch is the aggregate root for one receipt lot of a drug.
//
// BaseUnitQuantity is the authoritative stock count — allocation and
// deduction operate on it, never on the received-unit quantity. It is always
// ≥ 0; deduction checks expiry and sufficiency before mutating; every
// mutation appends a domain event to the in-memory buffer.
//
// Batches are never hard-deleted: expiry and zero quantity are states.
type Batch struct {
	ID          id.ID           `json:"id"`
	BatchNumber ref.BatchNumber `json:"batchNumber"`

	DrugID   id.ID  `json:"drugId"`
	DrugName string `json:"drugName,omitempty"`

	StoreID    id.ID `json:"storeId"`
	SupplierID id.ID `json:"supplierId,omitempty"`

	// BaseUnitQuantity is the source of truth, in the drug's base unit.
	BaseUnitQuantity types.Quantity `json:"baseUnitQuantity"`

	// ReceivedUnit and UnitsPerPack record how the lot arrived
	// (e.g. strips of 10 tablets) for display purposes only.
	ReceivedUnit types.Unit      `json:"receivedUnit"`
	UnitsPerPack decimal.Decimal `json:"unitsPerPack"`

	ExpiryDate time.Time `json:"expiryDate"`

	CostPrice    types.Money `json:"costPrice"`
	SellingPrice types.Money `json:"sellingPrice"`

	Location *string `json:"location,omitempty"`

	// Version for optimistic locking on the quantity column.
	Version int `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	events []StockEvent
}

// NewBatch creates a batch from goods-receipt data. baseQty must already be
// converted to the drug's base unit.
func NewBatch(
	batchNumber ref.BatchNumber,
	storeID, drugID, supplierID id.ID,
	baseQty types.Quantity,
	receivedUnit types.Unit,
	unitsPerPack decimal.Decimal,
	expiryDate time.Time,
	costPrice, sellingPrice types.Money,
) *Batch {
	now := time.Now().UTC()
	if unitsPerPack.LessThanOrEqual(decimal.Zero) {
		unitsPerPack = decimal.NewFromInt(1)
	}
	return &Batch{
		ID:               id.New(),
		BatchNumber:      batchNumber,
		DrugID:           drugID,
		StoreID:          storeID,
		SupplierID:       supplierID,
		BaseUnitQuantity: baseQty,
		ReceivedUnit:     types.NormalizeUnit(string(receivedUnit)),
		UnitsPerPack:     unitsPerPack,
		ExpiryDate:       expiryDate,
		CostPrice:        costPrice,
		SellingPrice:     sellingPrice,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// --- Business rules ---

// CanFulfill reports whether the batch can satisfy a requested base-unit
// quantity. Fails with an expired-batch error when the batch is expired —
// an expired batch can never fulfill anything, regardless of quantity.
func (b *Batch) CanFulfill(requested types.Quantity) (bool, error) {
	if b.IsExpired() {
		return false, apperror.NewExpiredBatch(
			b.BatchNumber.String(),
			b.ExpiryDate.Format("2006-01-02"),
		)
	}
	return b.BaseUnitQuantity.GreaterOrEqual(requested)
}

// Deduct removes a base-unit quantity from the batch.
// Re-validates CanFulfill, mutates BaseUnitQuantity and appends a
// STOCK_DEDUCTED event capturing old and new balances.
func (b *Batch) Deduct(qty types.Quantity, reason, userID string) error {
	if userID == "" {
		return apperror.NewValidation("user is required for stock deduction")
	}
	if !qty.IsPositive() {
		return apperror.NewValidation("deduction quantity must be positive")
	}

	ok, err := b.CanFulfill(qty)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NewInsufficientStock(
			b.drugLabel(),
			b.BaseUnitQuantity.String(),
			qty.String(),
		).WithDetail("batch_number", b.BatchNumber.String())
	}

	oldBalance := b.BaseUnitQuantity
	newBalance, err := b.BaseUnitQuantity.Sub(qty)
	if err != nil {
		return err
	}
	b.BaseUnitQuantity = newBalance
	b.touch()

	b.raiseEvent(StockEvent{
		Type:        EventStockDeducted,
		BatchID:     b.ID,
		BatchNumber: b.BatchNumber.String(),
		DrugID:      b.DrugID,
		DrugName:    b.DrugName,
		Quantity:    qty,
		OldBalance:  oldBalance,
		NewBalance:  newBalance,
		Reason:      reason,
		UserID:      userID,
		OccurredAt:  time.Now().UTC(),
	})
	return nil
}

// Add increases the batch's base-unit quantity (returns, adjustments,
// receipt top-ups) and appends a STOCK_ADDED event.
func (b *Batch) Add(qty types.Quantity, reason, userID string) error {
	if userID == "" {
		return apperror.NewValidation("user is required for stock addition")
	}
	if !qty.IsPositive() {
		return apperror.NewValidation("addition quantity must be positive")
	}

	oldBalance := b.BaseUnitQuantity
	newBalance, err := b.BaseUnitQuantity.Add(qty)
	if err != nil {
		return err
	}
	b.BaseUnitQuantity = newBalance
	b.touch()

	b.raiseEvent(StockEvent{
		Type:        EventStockAdded,
		BatchID:     b.ID,
		BatchNumber: b.BatchNumber.String(),
		DrugID:      b.DrugID,
		DrugName:    b.DrugName,
		Quantity:    qty,
		OldBalance:  oldBalance,
		NewBalance:  newBalance,
		Reason:      reason,
		UserID:      userID,
		OccurredAt:  time.Now().UTC(),
	})
	return nil
}

// IsExpired reports whether the batch's expiry has passed.
func (b *Batch) IsExpired() bool {
	return !b.ExpiryDate.After(time.Now())
}

// IsExpiringSoon reports whether the batch expires within daysAhead days.
// An already-expired batch is not "expiring soon".
func (b *Batch) IsExpiringSoon(daysAhead int) bool {
	if b.IsExpired() {
		return false
	}
	threshold := time.Now().AddDate(0, 0, daysAhead)
	return !b.ExpiryDate.After(threshold)
}

// GetExpiryStatus classifies the batch, checked in priority order.
func (b *Batch) GetExpiryStatus() ExpiryStatus {
	switch {
	case b.IsExpired():
		return ExpiryStatusExpired
	case b.IsExpiringSoon(expirySoonDays):
		return ExpiryStatusSoon
	case b.IsExpiringSoon(expiryWarningDays):
		return ExpiryStatusWarning
	default:
		return ExpiryStatusValid
	}
}

// CalculateMargin returns sellingPrice − costPrice.
func (b *Batch) CalculateMargin() (types.Money, error) {
	return b.SellingPrice.Sub(b.CostPrice)
}

// CalculateMarginPercentage returns margin/cost × 100.
// Defined as 0 when cost is zero — this avoids a divide-by-zero, it is not a
// true economic margin.
func (b *Batch) CalculateMarginPercentage() decimal.Decimal {
	if b.CostPrice.IsZero() {
		return decimal.Zero
	}
	margin, err := b.CalculateMargin()
	if err != nil {
		return decimal.Zero
	}
	return margin.Amount().Div(b.CostPrice.Amount()).Mul(decimal.NewFromInt(100))
}

// IsLowStock reports whether the batch is at or below the threshold
// (both in base units).
func (b *Batch) IsLowStock(threshold types.Quantity) bool {
	c, err := b.BaseUnitQuantity.Cmp(threshold)
	if err != nil {
		return false
	}
	return c <= 0
}

// ReceivedUnitQuantity returns the stock count expressed in the received
// unit, whole packs only (display convenience).
func (b *Batch) ReceivedUnitQuantity() int64 {
	if !b.ReceivedUnit.IsPack() || !b.UnitsPerPack.IsPositive() {
		return b.BaseUnitQuantity.Decimal().IntPart()
	}
	return b.BaseUnitQuantity.Decimal().Div(b.UnitsPerPack).IntPart()
}

func (b *Batch) drugLabel() string {
	if b.DrugName != "" {
		return b.DrugName
	}
	return b.DrugID.String()
}

func (b *Batch) touch() {
	b.UpdatedAt = time.Now().UTC()
}

// String implements fmt.Stringer for log lines.
func (b *Batch) String() string {
	return fmt.Sprintf("batch %s (%s)", b.BatchNumber, b.BaseUnitQuantity)
}

// --- Domain events ---

func (b *Batch) raiseEvent(e StockEvent) {
	b.events = append(b.events, e)
}

// Events returns a copy of the buffered events without draining them.
func (b *Batch) Events() []StockEvent {
	out := make([]StockEvent, len(b.events))
	copy(out, b.events)
	return out
}

// ClearEvents drains the event buffer and returns the drained events.
// Must be called exactly once per unit of work by the persistence boundary.
func (b *Batch) ClearEvents() []StockEvent {
	events := b.events
	b.events = nil
	return events
}
