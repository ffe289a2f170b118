// Package document_repo provides PostgreSQL implementations for document
// repositories.
package document_repo

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
	"hoperx/internal/domain/grn"
	"hoperx/internal/infrastructure/storage/postgres"
)

const (
	grnTable      = "doc_goods_receipts"
	grnLinesTable = "doc_goods_receipt_lines"
)

// noteRow is the flat database shape of a GRN header.
type noteRow struct {
	ID              id.ID      `db:"id"`
	Number          *string    `db:"number"`
	StoreID         id.ID      `db:"store_id"`
	SupplierID      id.ID      `db:"supplier_id"`
	SupplierInvoice string     `db:"supplier_invoice"`
	Status          string     `db:"status"`
	CreatedBy       string     `db:"created_by"`
	CreatedAt       time.Time  `db:"created_at"`
	CompletedAt     *time.Time `db:"completed_at"`
}

// lineRow is the flat database shape of a GRN line.
type lineRow struct {
	ID           id.ID           `db:"id"`
	NoteID       id.ID           `db:"note_id"`
	DrugID       id.ID           `db:"drug_id"`
	DrugName     string          `db:"drug_name"`
	BatchNumber  string          `db:"batch_number"`
	ReceivedQty  decimal.Decimal `db:"received_qty"`
	FreeQty      decimal.Decimal `db:"free_qty"`
	PackUnit     string          `db:"pack_unit"`
	PackSize     decimal.Decimal `db:"pack_size"`
	ExpiryDate   time.Time       `db:"expiry_date"`
	CostPrice    decimal.Decimal `db:"cost_price"`
	SellingPrice decimal.Decimal `db:"selling_price"`
	Currency     string          `db:"currency"`
	Location     *string         `db:"location"`
	Position     int             `db:"position"`
}

func (r noteRow) toDomain(lines []lineRow) (*grn.GoodsReceiptNote, error) {
	note := &grn.GoodsReceiptNote{
		ID:              r.ID,
		StoreID:         r.StoreID,
		SupplierID:      r.SupplierID,
		SupplierInvoice: r.SupplierInvoice,
		Status:          grn.Status(r.Status),
		CreatedBy:       r.CreatedBy,
		CreatedAt:       r.CreatedAt,
		CompletedAt:     r.CompletedAt,
	}

	if r.Number != nil && *r.Number != "" {
		num, err := ref.ParseInvoiceNumber(*r.Number)
		if err != nil {
			return nil, err
		}
		note.Number = num
	}

	note.Lines = make([]grn.Line, 0, len(lines))
	for _, lr := range lines {
		cost, err := types.NewMoney(lr.CostPrice, lr.Currency)
		if err != nil {
			return nil, err
		}
		selling, err := types.NewMoney(lr.SellingPrice, lr.Currency)
		if err != nil {
			return nil, err
		}

		note.Lines = append(note.Lines, grn.Line{
			ID:           lr.ID,
			DrugID:       lr.DrugID,
			DrugName:     lr.DrugName,
			BatchNumber:  ref.BatchNumber(lr.BatchNumber),
			ReceivedQty:  lr.ReceivedQty,
			FreeQty:      lr.FreeQty,
			PackUnit:     types.Unit(lr.PackUnit),
			PackSize:     lr.PackSize,
			ExpiryDate:   lr.ExpiryDate,
			CostPrice:    cost,
			SellingPrice: selling,
			Location:     lr.Location,
		})
	}

	return note, nil
}

// GRNRepo implements grn.Repository.
type GRNRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewGRNRepo creates a new goods receipt repository.
func NewGRNRepo(txManager *postgres.TxManager) *GRNRepo {
	return &GRNRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID retrieves a note with its lines.
func (r *GRNRepo) GetByID(ctx context.Context, noteID id.ID) (*grn.GoodsReceiptNote, error) {
	q := r.builder.Select(
		"id", "number", "store_id", "supplier_id", "supplier_invoice",
		"status", "created_by", "created_at", "completed_at",
	).From(grnTable).
		Where(squirrel.Eq{"id": noteID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row noteRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("goods receipt", noteID.String())
		}
		return nil, fmt.Errorf("get note: %w", err)
	}

	lines, err := r.getLines(ctx, noteID)
	if err != nil {
		return nil, err
	}

	return row.toDomain(lines)
}

func (r *GRNRepo) getLines(ctx context.Context, noteID id.ID) ([]lineRow, error) {
	q := r.builder.Select(
		"id", "note_id", "drug_id", "drug_name", "batch_number",
		"received_qty", "free_qty", "pack_unit", "pack_size",
		"expiry_date", "cost_price", "selling_price", "currency",
		"location", "position",
	).From(grnLinesTable).
		Where(squirrel.Eq{"note_id": noteID}).
		OrderBy("position")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []lineRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select lines: %w", err)
	}
	return lines, nil
}

// Create persists a note with its lines.
func (r *GRNRepo) Create(ctx context.Context, n *grn.GoodsReceiptNote) error {
	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.builder.Insert(grnTable).
			Columns(
				"id", "number", "store_id", "supplier_id", "supplier_invoice",
				"status", "created_by", "created_at", "completed_at",
			).
			Values(
				n.ID, numberValue(n), n.StoreID, n.SupplierID, n.SupplierInvoice,
				string(n.Status), n.CreatedBy, n.CreatedAt, n.CompletedAt,
			)

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}

		querier := r.txManager.GetQuerier(ctx)
		if _, err := querier.Exec(ctx, sql, args...); err != nil {
			if postgres.IsUniqueViolation(err) {
				return apperror.NewDuplicate("goods receipt", "number", numberString(n))
			}
			return fmt.Errorf("insert note: %w", err)
		}

		return r.insertLines(ctx, n)
	})
}

// Update persists the header and replaces the lines.
func (r *GRNRepo) Update(ctx context.Context, n *grn.GoodsReceiptNote) error {
	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.builder.Update(grnTable).
			Set("number", numberValue(n)).
			Set("supplier_invoice", n.SupplierInvoice).
			Set("status", string(n.Status)).
			Set("completed_at", n.CompletedAt).
			Where(squirrel.Eq{"id": n.ID})

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}

		querier := r.txManager.GetQuerier(ctx)
		tag, err := querier.Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("update note: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperror.NewNotFound("goods receipt", n.ID.String())
		}

		del := r.builder.Delete(grnLinesTable).Where(squirrel.Eq{"note_id": n.ID})
		sql, args, err = del.ToSql()
		if err != nil {
			return fmt.Errorf("build delete: %w", err)
		}
		if _, err := querier.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("delete lines: %w", err)
		}

		return r.insertLines(ctx, n)
	})
}

func (r *GRNRepo) insertLines(ctx context.Context, n *grn.GoodsReceiptNote) error {
	if len(n.Lines) == 0 {
		return nil
	}

	q := r.builder.Insert(grnLinesTable).Columns(
		"id", "note_id", "drug_id", "drug_name", "batch_number",
		"received_qty", "free_qty", "pack_unit", "pack_size",
		"expiry_date", "cost_price", "selling_price", "currency",
		"location", "position",
	)

	for i, l := range n.Lines {
		q = q.Values(
			l.ID, n.ID, l.DrugID, l.DrugName, l.BatchNumber.String(),
			l.ReceivedQty, l.FreeQty, string(l.PackUnit), l.PackSize,
			l.ExpiryDate, l.CostPrice.Amount(), l.SellingPrice.Amount(), l.CostPrice.Currency(),
			l.Location, i,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}
	return nil
}

// numberValue returns the document number for storage, nil while unassigned.
func numberValue(n *grn.GoodsReceiptNote) *string {
	if n.Number.IsZero() {
		return nil
	}
	s := n.Number.String()
	return &s
}

func numberString(n *grn.GoodsReceiptNote) string {
	if n.Number.IsZero() {
		return ""
	}
	return n.Number.String()
}

// Ensure interface compliance.
var _ grn.Repository = (*GRNRepo)(nil)
