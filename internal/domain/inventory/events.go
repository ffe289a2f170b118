package inventory

import (
	"time"

	"hoperx/internal/core/id"
	"hoperx/internal/core/types"
)

// EventType identifies a stock domain event.
type EventType string

const (
	EventStockDeducted EventType = "STOCK_DEDUCTED"
	EventStockAdded    EventType = "STOCK_ADDED"
)

// StockEvent records one quantity change on a batch. Events are buffered on
// the Batch instance during a unit of work and must be drained exactly once
// by the persistence boundary — leaving them in the buffer causes duplicate
// delivery on the next flush.
type StockEvent struct {
	Type        EventType      `json:"type"`
	BatchID     id.ID          `json:"batchId"`
	BatchNumber string         `json:"batchNumber"`
	DrugID      id.ID          `json:"drugId"`
	DrugName    string         `json:"drugName,omitempty"`
	Quantity    types.Quantity `json:"quantity"`
	OldBalance  types.Quantity `json:"oldBalance"`
	NewBalance  types.Quantity `json:"newBalance"`
	Reason      string         `json:"reason,omitempty"`
	UserID      string         `json:"userId"`
	OccurredAt  time.Time      `json:"occurredAt"`
}
