// Package catalog_repo provides PostgreSQL implementations for catalog
// repositories.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"hoperx/internal/core/apperror"
	"hoperx/internal/core/id"
	"hoperx/internal/domain/catalogs/drug"
	"hoperx/internal/infrastructure/storage/postgres"
)

const (
	drugsTable       = "cat_drugs"
	conversionsTable = "cat_drug_unit_conversions"
)

var drugColumns = []string{
	"id", "code", "name", "strength", "form", "schedule",
	"base_unit", "display_unit", "low_stock_threshold",
	"deletion_mark", "version", "created_at", "updated_at",
}

var conversionColumns = []string{
	"id", "drug_id", "parent_unit", "child_unit", "factor", "is_default", "created_at",
}

// DrugRepo implements drug.Repository.
type DrugRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewDrugRepo creates a new drug repository.
func NewDrugRepo(txManager *postgres.TxManager) *DrugRepo {
	return &DrugRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID retrieves a drug by id.
func (r *DrugRepo) GetByID(ctx context.Context, drugID id.ID) (*drug.Drug, error) {
	q := r.builder.Select(drugColumns...).
		From(drugsTable).
		Where(squirrel.Eq{"id": drugID, "deletion_mark": false}).
		Limit(1)

	return r.getOne(ctx, q, drugID)
}

// GetByCode retrieves a drug by its catalog code.
func (r *DrugRepo) GetByCode(ctx context.Context, code string) (*drug.Drug, error) {
	q := r.builder.Select(drugColumns...).
		From(drugsTable).
		Where(squirrel.Eq{"code": code, "deletion_mark": false}).
		Limit(1)

	return r.getOne(ctx, q, code)
}

func (r *DrugRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key any) (*drug.Drug, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var d drug.Drug
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &d, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("drug", key)
		}
		return nil, fmt.Errorf("get drug: %w", err)
	}

	return &d, nil
}

// Search finds drugs by name or code prefix, case-insensitive.
func (r *DrugRepo) Search(ctx context.Context, query string, limit int) ([]*drug.Drug, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	q := r.builder.Select(drugColumns...).
		From(drugsTable).
		Where(squirrel.Eq{"deletion_mark": false}).
		Where(squirrel.Or{
			squirrel.ILike{"name": query + "%"},
			squirrel.ILike{"code": query + "%"},
		}).
		OrderBy("name").
		Limit(uint64(limit))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var drugs []*drug.Drug
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &drugs, sql, args...); err != nil {
		return nil, fmt.Errorf("search drugs: %w", err)
	}

	return drugs, nil
}

// Create persists a new drug.
func (r *DrugRepo) Create(ctx context.Context, d *drug.Drug) error {
	q := r.builder.Insert(drugsTable).
		Columns(drugColumns...).
		Values(
			d.ID, d.Code, d.Name, d.Strength, d.Form, string(d.Schedule),
			string(d.BaseUnit), string(d.DisplayUnit), d.LowStockThreshold,
			d.DeletionMark, d.Version, d.CreatedAt, d.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("drug", "code", d.Code)
		}
		return fmt.Errorf("insert drug: %w", err)
	}
	return nil
}

// Update persists drug changes with an optimistic version check.
// d.Version must hold the new version (see Drug.Touch).
func (r *DrugRepo) Update(ctx context.Context, d *drug.Drug) error {
	q := r.builder.Update(drugsTable).
		Set("code", d.Code).
		Set("name", d.Name).
		Set("strength", d.Strength).
		Set("form", d.Form).
		Set("schedule", string(d.Schedule)).
		Set("base_unit", string(d.BaseUnit)).
		Set("display_unit", string(d.DisplayUnit)).
		Set("low_stock_threshold", d.LowStockThreshold).
		Set("deletion_mark", d.DeletionMark).
		Set("version", d.Version).
		Set("updated_at", d.UpdatedAt).
		Where(squirrel.Eq{"id": d.ID, "version": d.Version - 1})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update drug: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("drug", d.ID.String())
	}
	return nil
}

// GetConversions returns all conversion edges configured for a drug.
func (r *DrugRepo) GetConversions(ctx context.Context, drugID id.ID) ([]drug.UnitConversion, error) {
	q := r.builder.Select(conversionColumns...).
		From(conversionsTable).
		Where(squirrel.Eq{"drug_id": drugID}).
		OrderBy("parent_unit")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var conversions []drug.UnitConversion
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &conversions, sql, args...); err != nil {
		return nil, fmt.Errorf("select conversions: %w", err)
	}

	return conversions, nil
}

// SaveConversion inserts or replaces the edge for (drug, parent, child).
func (r *DrugRepo) SaveConversion(ctx context.Context, c *drug.UnitConversion) error {
	sql := `
		INSERT INTO cat_drug_unit_conversions (id, drug_id, parent_unit, child_unit, factor, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (drug_id, parent_unit, child_unit)
		DO UPDATE SET factor = EXCLUDED.factor, is_default = EXCLUDED.is_default
	`

	querier := r.txManager.GetQuerier(ctx)
	_, err := querier.Exec(ctx, sql,
		c.ID, c.DrugID, string(c.ParentUnit), string(c.ChildUnit), c.Factor, c.IsDefault, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save conversion: %w", err)
	}
	return nil
}

// DeleteConversion removes a conversion edge.
func (r *DrugRepo) DeleteConversion(ctx context.Context, conversionID id.ID) error {
	q := r.builder.Delete(conversionsTable).
		Where(squirrel.Eq{"id": conversionID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete conversion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("unit conversion", conversionID.String())
	}
	return nil
}

// Ensure interface compliance.
var _ drug.Repository = (*DrugRepo)(nil)
