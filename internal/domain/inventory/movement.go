package inventory

import (
	"time"

	"hoperx/internal/core/apperror"
	"hoperx/internal/core/id"
	"hoperx/internal/core/types"
)

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementTransfer   MovementType = "TRANSFER"
	MovementDamaged    MovementType = "DAMAGED"
	MovementReturn     MovementType = "RETURN"
)

// Direction is the sign of a movement: incoming types are positive,
// outgoing negative.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// directionFor returns the fixed direction of a movement type.
// ADJUSTMENT has no fixed direction — the caller supplies it.
func directionFor(t MovementType) (Direction, bool) {
	switch t {
	case MovementIn, MovementReturn:
		return DirectionIn, true
	case MovementOut, MovementTransfer, MovementDamaged:
		return DirectionOut, true
	default:
		return "", false
	}
}

// StockMovement is an immutable audit line for one quantity change on a
// batch. Created once per movement, never mutated, never deleted — the
// ledger outlives the batch it references.
type StockMovement struct {
	ID      id.ID `db:"id" json:"id"`
	BatchID id.ID `db:"batch_id" json:"batchId"`
	StoreID id.ID `db:"store_id" json:"storeId"`
	DrugID  id.ID `db:"drug_id" json:"drugId"`

	Type      MovementType `db:"movement_type" json:"movementType"`
	Direction Direction    `db:"direction" json:"direction"`

	// Quantity is the magnitude (always positive); the sign comes from
	// Direction. See SignedScaled.
	Quantity types.Quantity `db:"-" json:"quantity"`

	BalanceBefore types.Quantity `db:"-" json:"balanceBefore"`
	BalanceAfter  types.Quantity `db:"-" json:"balanceAfter"`

	// ReferenceType/ReferenceID point at the document that caused the
	// movement (sale, GRN, adjustment).
	ReferenceType string `db:"reference_type" json:"referenceType,omitempty"`
	ReferenceID   id.ID  `db:"reference_id" json:"referenceId,omitempty"`

	Reason string `db:"reason" json:"reason,omitempty"`

	// UserID is mandatory — the audit trail is non-repudiable.
	UserID string `db:"user_id" json:"userId"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewStockMovement creates a movement for a type with a fixed direction.
func NewStockMovement(
	batch *Batch,
	movementType MovementType,
	qty types.Quantity,
	balanceBefore, balanceAfter types.Quantity,
	referenceType string,
	referenceID id.ID,
	reason, userID string,
) (*StockMovement, error) {
	direction, ok := directionFor(movementType)
	if !ok {
		return nil, apperror.NewValidation("movement type requires an explicit direction").
			WithDetail("movement_type", string(movementType))
	}
	return newMovement(batch, movementType, direction, qty, balanceBefore, balanceAfter, referenceType, referenceID, reason, userID)
}

// NewAdjustmentMovement creates an ADJUSTMENT movement with an explicit
// direction.
func NewAdjustmentMovement(
	batch *Batch,
	direction Direction,
	qty types.Quantity,
	balanceBefore, balanceAfter types.Quantity,
	reason, userID string,
) (*StockMovement, error) {
	return newMovement(batch, MovementAdjustment, direction, qty, balanceBefore, balanceAfter, "adjustment", id.Nil(), reason, userID)
}

func newMovement(
	batch *Batch,
	movementType MovementType,
	direction Direction,
	qty types.Quantity,
	balanceBefore, balanceAfter types.Quantity,
	referenceType string,
	referenceID id.ID,
	reason, userID string,
) (*StockMovement, error) {
	if !qty.IsPositive() {
		return nil, apperror.NewValidation("movement quantity must be positive")
	}
	if userID == "" {
		return nil, apperror.NewValidation("user is required for stock movements")
	}
	if direction != DirectionIn && direction != DirectionOut {
		return nil, apperror.NewValidation("invalid movement direction").
			WithDetail("direction", string(direction))
	}

	return &StockMovement{
		ID:            id.New(),
		BatchID:       batch.ID,
		StoreID:       batch.StoreID,
		DrugID:        batch.DrugID,
		Type:          movementType,
		Direction:     direction,
		Quantity:      qty,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		Reason:        reason,
		UserID:        userID,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// SignedScaled returns the scaled quantity with the direction's sign applied.
func (m *StockMovement) SignedScaled() int64 {
	if m.Direction == DirectionOut {
		return -m.Quantity.Scaled()
	}
	return m.Quantity.Scaled()
}
