package inventory_repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"hoperx/internal/core/id"
	"hoperx/internal/domain/inventory"
	"hoperx/internal/infrastructure/storage/postgres"
)

// EventLog implements inventory.EventLog as a transactional outbox: events
// are written in the same transaction as the state change, for consumers to
// relay later.
type EventLog struct {
	txManager *postgres.TxManager
}

// NewEventLog creates a new event log.
func NewEventLog(txManager *postgres.TxManager) *EventLog {
	return &EventLog{txManager: txManager}
}

// Append writes events within the current transaction.
// MUST be called inside a transaction context.
func (l *EventLog) Append(ctx context.Context, events []inventory.StockEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx := l.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("event log append requires transaction context")
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()

	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal stock event: %w", err)
		}

		batch.Queue(`
			INSERT INTO inv_stock_event_log (id, event_type, batch_id, drug_id, payload, occurred_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, id.New(), string(e.Type), e.BatchID, e.DrugID, payload, e.OccurredAt, now)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert stock event: %w", err)
		}
	}

	return nil
}

// Ensure interface compliance.
var _ inventory.EventLog = (*EventLog)(nil)
