// Package inventory_repo provides PostgreSQL implementations for the
// inventory repositories.
package inventory_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"hoperx/internal/core/apperror"
	"hoperx/internal/core/id"
	"hoperx/internal/core/ref"
	"hoperx/internal/core/types"
	"hoperx/internal/domain/inventory"
	"hoperx/internal/infrastructure/storage/postgres"
)

const batchesTable = "inv_batches"

var batchColumns = []string{
	"id", "batch_number", "drug_id", "drug_name", "store_id", "supplier_id",
	"base_unit_qty", "base_unit", "received_unit", "units_per_pack",
	"expiry_date", "cost_price", "selling_price", "currency",
	"location", "version", "created_at", "updated_at",
}

// batchRow is the flat database shape of a batch. Value objects
// (Quantity, Money) are stored as scaled/decimal columns plus their
// unit/currency and reassembled on read.
type batchRow struct {
	ID           id.ID           `db:"id"`
	BatchNumber  string          `db:"batch_number"`
	DrugID       id.ID           `db:"drug_id"`
	DrugName     string          `db:"drug_name"`
	StoreID      id.ID           `db:"store_id"`
	SupplierID   id.ID           `db:"supplier_id"`
	BaseUnitQty  int64           `db:"base_unit_qty"`
	BaseUnit     string          `db:"base_unit"`
	ReceivedUnit string          `db:"received_unit"`
	UnitsPerPack decimal.Decimal `db:"units_per_pack"`
	ExpiryDate   time.Time       `db:"expiry_date"`
	CostPrice    decimal.Decimal `db:"cost_price"`
	SellingPrice decimal.Decimal `db:"selling_price"`
	Currency     string          `db:"currency"`
	Location     *string         `db:"location"`
	Version      int             `db:"version"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func (r batchRow) toDomain() (*inventory.Batch, error) {
	qty, err := types.NewQuantityFromScaled(r.BaseUnitQty, types.Unit(r.BaseUnit))
	if err != nil {
		return nil, err
	}
	cost, err := types.NewMoney(r.CostPrice, r.Currency)
	if err != nil {
		return nil, err
	}
	selling, err := types.NewMoney(r.SellingPrice, r.Currency)
	if err != nil {
		return nil, err
	}

	return &inventory.Batch{
		ID:               r.ID,
		BatchNumber:      ref.BatchNumber(r.BatchNumber),
		DrugID:           r.DrugID,
		DrugName:         r.DrugName,
		StoreID:          r.StoreID,
		SupplierID:       r.SupplierID,
		BaseUnitQuantity: qty,
		ReceivedUnit:     types.Unit(r.ReceivedUnit),
		UnitsPerPack:     r.UnitsPerPack,
		ExpiryDate:       r.ExpiryDate,
		CostPrice:        cost,
		SellingPrice:     selling,
		Location:         r.Location,
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}, nil
}

func batchValues(b *inventory.Batch) []any {
	return []any{
		b.ID, b.BatchNumber.String(), b.DrugID, b.DrugName, b.StoreID, b.SupplierID,
		b.BaseUnitQuantity.Scaled(), string(b.BaseUnitQuantity.Unit()),
		string(b.ReceivedUnit), b.UnitsPerPack,
		b.ExpiryDate, b.CostPrice.Amount(), b.SellingPrice.Amount(), b.CostPrice.Currency(),
		b.Location, b.Version, b.CreatedAt, b.UpdatedAt,
	}
}

// BatchRepo implements inventory.BatchRepository.
type BatchRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewBatchRepo creates a new batch repository.
func NewBatchRepo(txManager *postgres.TxManager) *BatchRepo {
	return &BatchRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID retrieves a batch by id.
func (r *BatchRepo) GetByID(ctx context.Context, batchID id.ID) (*inventory.Batch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"id": batchID}).
		Limit(1)

	return r.getOne(ctx, q, batchID)
}

// GetByKey retrieves a batch by its natural key.
func (r *BatchRepo) GetByKey(ctx context.Context, storeID, drugID id.ID, batchNumber ref.BatchNumber) (*inventory.Batch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{
			"store_id":     storeID,
			"drug_id":      drugID,
			"batch_number": batchNumber.String(),
		}).Limit(1)

	return r.getOne(ctx, q, batchNumber.String())
}

func (r *BatchRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key any) (*inventory.Batch, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row batchRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("batch", key)
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}

	return row.toDomain()
}

// FindForAllocation returns batches with stock on hand for (store, drug),
// ordered by expiry as a stable default; the domain re-sorts per strategy.
func (r *BatchRepo) FindForAllocation(ctx context.Context, storeID, drugID id.ID) ([]*inventory.Batch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"store_id": storeID, "drug_id": drugID}).
		Where(squirrel.Gt{"base_unit_qty": int64(0)}).
		OrderBy("expiry_date", "created_at", "id")

	return r.selectMany(ctx, q)
}

// FindByStore returns all batches for a store.
func (r *BatchRepo) FindByStore(ctx context.Context, storeID id.ID) ([]*inventory.Batch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"store_id": storeID}).
		OrderBy("drug_id", "expiry_date")

	return r.selectMany(ctx, q)
}

// FindExpiring returns unexpired batches with stock expiring within daysAhead.
func (r *BatchRepo) FindExpiring(ctx context.Context, storeID id.ID, daysAhead int) ([]*inventory.Batch, error) {
	now := time.Now()
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"store_id": storeID}).
		Where(squirrel.Gt{"base_unit_qty": int64(0)}).
		Where(squirrel.Gt{"expiry_date": now}).
		Where(squirrel.LtOrEq{"expiry_date": now.AddDate(0, 0, daysAhead)}).
		OrderBy("expiry_date")

	return r.selectMany(ctx, q)
}

func (r *BatchRepo) selectMany(ctx context.Context, q squirrel.SelectBuilder) ([]*inventory.Batch, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []batchRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}

	batches := make([]*inventory.Batch, 0, len(rows))
	for _, row := range rows {
		b, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, nil
}

// Create persists a new batch.
func (r *BatchRepo) Create(ctx context.Context, b *inventory.Batch) error {
	q := r.builder.Insert(batchesTable).
		Columns(batchColumns...).
		Values(batchValues(b)...)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("batch", "batch_number", b.BatchNumber.String())
		}
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// UpdateQuantity persists the quantity under the optimistic version guard.
// Zero rows affected means another writer bumped the version first.
func (r *BatchRepo) UpdateQuantity(ctx context.Context, b *inventory.Batch) error {
	q := r.builder.Update(batchesTable).
		Set("base_unit_qty", b.BaseUnitQuantity.Scaled()).
		Set("version", b.Version+1).
		Set("updated_at", b.UpdatedAt).
		Where(squirrel.Eq{"id": b.ID, "version": b.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update batch quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("batch", b.ID.String())
	}

	b.Version++
	return nil
}

// Ensure interface compliance.
var _ inventory.BatchRepository = (*BatchRepo)(nil)
