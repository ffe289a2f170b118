package inventory_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"hoperx/internal/core/id"
	"hoperx/internal/core/types"
	"hoperx/internal/domain/inventory"
	"hoperx/internal/infrastructure/storage/postgres"
)

const movementsTable = "inv_stock_movements"

var movementColumns = []string{
	"id", "batch_id", "store_id", "drug_id",
	"movement_type", "direction",
	"quantity", "balance_before", "balance_after", "unit",
	"reference_type", "reference_id", "reason", "user_id", "created_at",
}

// movementRow is the flat database shape of a movement. Quantities are
// stored scaled with a shared unit column.
type movementRow struct {
	ID            id.ID     `db:"id"`
	BatchID       id.ID     `db:"batch_id"`
	StoreID       id.ID     `db:"store_id"`
	DrugID        id.ID     `db:"drug_id"`
	MovementType  string    `db:"movement_type"`
	Direction     string    `db:"direction"`
	Quantity      int64     `db:"quantity"`
	BalanceBefore int64     `db:"balance_before"`
	BalanceAfter  int64     `db:"balance_after"`
	Unit          string    `db:"unit"`
	ReferenceType string    `db:"reference_type"`
	ReferenceID   id.ID     `db:"reference_id"`
	Reason        string    `db:"reason"`
	UserID        string    `db:"user_id"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r movementRow) toDomain() (*inventory.StockMovement, error) {
	unit := types.Unit(r.Unit)
	qty, err := types.NewQuantityFromScaled(r.Quantity, unit)
	if err != nil {
		return nil, err
	}
	before, err := types.NewQuantityFromScaled(r.BalanceBefore, unit)
	if err != nil {
		return nil, err
	}
	after, err := types.NewQuantityFromScaled(r.BalanceAfter, unit)
	if err != nil {
		return nil, err
	}

	return &inventory.StockMovement{
		ID:            r.ID,
		BatchID:       r.BatchID,
		StoreID:       r.StoreID,
		DrugID:        r.DrugID,
		Type:          inventory.MovementType(r.MovementType),
		Direction:     inventory.Direction(r.Direction),
		Quantity:      qty,
		BalanceBefore: before,
		BalanceAfter:  after,
		ReferenceType: r.ReferenceType,
		ReferenceID:   r.ReferenceID,
		Reason:        r.Reason,
		UserID:        r.UserID,
		CreatedAt:     r.CreatedAt,
	}, nil
}

func movementValues(m *inventory.StockMovement) []any {
	return []any{
		m.ID, m.BatchID, m.StoreID, m.DrugID,
		string(m.Type), string(m.Direction),
		m.Quantity.Scaled(), m.BalanceBefore.Scaled(), m.BalanceAfter.Scaled(),
		string(m.Quantity.Unit()),
		m.ReferenceType, m.ReferenceID, m.Reason, m.UserID, m.CreatedAt,
	}
}

// MovementRepo implements inventory.MovementRepository.
// The ledger is append-only: no update or delete paths exist.
type MovementRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewMovementRepo creates a new movement repository.
func NewMovementRepo(txManager *postgres.TxManager) *MovementRepo {
	return &MovementRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create appends one movement.
func (r *MovementRepo) Create(ctx context.Context, m *inventory.StockMovement) error {
	q := r.builder.Insert(movementsTable).
		Columns(movementColumns...).
		Values(movementValues(m)...)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// CreateAll appends movements in bulk.
func (r *MovementRepo) CreateAll(ctx context.Context, movements []*inventory.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	// Fast path: COPY when inside a transaction.
	if tx := r.txManager.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		rows := make([][]any, 0, len(movements))
		for _, m := range movements {
			rows = append(rows, movementValues(m))
		}
		if _, err := inserter.CopyFromSlice(ctx, movementsTable, movementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
		return nil
	}

	// Fallback: multi-row insert. Prefer calling CreateAll within tx.
	q := r.builder.Insert(movementsTable).Columns(movementColumns...)
	for _, m := range movements {
		q = q.Values(movementValues(m)...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}
	return nil
}

// History returns movements for a batch, newest first.
func (r *MovementRepo) History(ctx context.Context, batchID id.ID, limit int) ([]*inventory.StockMovement, error) {
	q := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"batch_id": batchID}).
		OrderBy("created_at DESC", "id DESC")

	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []movementRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}

	movements := make([]*inventory.StockMovement, 0, len(rows))
	for _, row := range rows {
		m, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, nil
}

// LedgerSums aggregates the ledger for one batch: signed net balance before
// the window plus per-category turnover within it, all in one round trip.
func (r *MovementRepo) LedgerSums(ctx context.Context, batchID id.ID, from, to time.Time) (inventory.LedgerSums, error) {
	sql := `
		SELECT
			COALESCE(SUM(CASE WHEN created_at < $2
				THEN CASE WHEN direction = 'in' THEN quantity ELSE -quantity END
				ELSE 0 END), 0) AS opening,
			COALESCE(SUM(CASE WHEN created_at >= $2 AND created_at < $3
				AND movement_type IN ('IN', 'RETURN')
				THEN quantity ELSE 0 END), 0) AS receipts,
			COALESCE(SUM(CASE WHEN created_at >= $2 AND created_at < $3
				AND movement_type IN ('OUT', 'TRANSFER', 'DAMAGED')
				THEN quantity ELSE 0 END), 0) AS issues,
			COALESCE(SUM(CASE WHEN created_at >= $2 AND created_at < $3
				AND movement_type = 'ADJUSTMENT'
				THEN CASE WHEN direction = 'in' THEN quantity ELSE -quantity END
				ELSE 0 END), 0) AS adjustments
		FROM inv_stock_movements
		WHERE batch_id = $1
	`

	var sums inventory.LedgerSums
	querier := r.txManager.GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql, batchID, from, to).Scan(
		&sums.OpeningScaled, &sums.ReceiptsScaled, &sums.IssuesScaled, &sums.AdjustmentsScaled,
	)
	if err != nil && err != pgx.ErrNoRows {
		return inventory.LedgerSums{}, fmt.Errorf("ledger sums: %w", err)
	}

	return sums, nil
}

// Ensure interface compliance.
var _ inventory.MovementRepository = (*MovementRepo)(nil)
