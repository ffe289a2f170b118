package grn

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"hoperx/internal/core/apperror"
	"hoperx/internal/core/id"
	"hoperx/internal/core/ref"
	"hoperx/internal/core/tx"
	"hoperx/internal/core/types"
	"hoperx/internal/domain/inventory"
	"hoperx/pkg/logger"
	"hoperx/pkg/numerator"
)

const numberPrefix = "GRN"

// Converter is the conversion surface the completion service needs.
// Satisfied by conversion.Service.
type Converter interface {
	ConvertToBaseUnits(ctx context.Context, drugID id.ID, qty types.Quantity) (types.Quantity, error)
	GetBaseUnit(ctx context.Context, drugID id.ID) (types.Unit, error)
}

// Numbering issues document numbers. Satisfied by numerator.Service.
type Numbering interface {
	GetNextNumber(ctx context.Context, cfg numerator.Config, opts *numerator.Options, period time.Time) (string, error)
}

// Repository persists GRN documents.
type Repository interface {
	GetByID(ctx context.Context, noteID id.ID) (*GoodsReceiptNote, error)
	Create(ctx context.Context, n *GoodsReceiptNote) error
	Update(ctx context.Context, n *GoodsReceiptNote) error
}

// CompletionService turns a draft GRN into inventory batches.
//
// This is the one place in the engine where a missing unit conversion does
// not abort the operation: completion falls back to the line's pack size,
// explicitly and with a warning log, so receiving is never blocked by an
// unconfigured drug. Every other caller of the conversion service gets the
// hard error.
type CompletionService struct {
	notes     Repository
	batches   inventory.BatchRepository
	movements inventory.MovementRepository
	eventLog  inventory.EventLog
	converter Converter
	numbers   Numbering
	txManager tx.Manager
}

// NewCompletionService wires the GRN completion service.
func NewCompletionService(
	notes Repository,
	batches inventory.BatchRepository,
	movements inventory.MovementRepository,
	eventLog inventory.EventLog,
	converter Converter,
	numbers Numbering,
	txManager tx.Manager,
) *CompletionService {
	return &CompletionService{
		notes:     notes,
		batches:   batches,
		movements: movements,
		eventLog:  eventLog,
		converter: converter,
		numbers:   numbers,
		txManager: txManager,
	}
}

// Complete validates the note, assigns its document number and posts every
// line to inventory in a single transaction: each line either creates a new
// batch or tops up the batch with the same (store, drug, batch number) key,
// and writes an IN movement referencing the note.
func (s *CompletionService) Complete(ctx context.Context, noteID id.ID, userID string) (*GoodsReceiptNote, error) {
	if userID == "" {
		return nil, apperror.NewValidation("user is required to complete a goods receipt")
	}

	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if err := note.Validate(); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.assignNumber(ctx, note); err != nil {
			return err
		}

		for i := range note.Lines {
			if err := s.postLine(ctx, note, &note.Lines[i], userID); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		note.Status = StatusCompleted
		note.CompletedAt = &now
		return s.notes.Update(ctx, note)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "goods receipt completed",
		"grn_id", note.ID,
		"number", note.Number.String(),
		"lines", len(note.Lines),
	)
	return note, nil
}

// assignNumber issues the document number once; re-completion attempts after
// a rollback reuse the already-assigned number.
func (s *CompletionService) assignNumber(ctx context.Context, note *GoodsReceiptNote) error {
	if !note.Number.IsZero() {
		return nil
	}
	raw, err := s.numbers.GetNextNumber(ctx, numerator.DefaultConfig(numberPrefix), numerator.DefaultOptions(), note.CreatedAt)
	if err != nil {
		return err
	}
	num, err := ref.ParseInvoiceNumber(raw)
	if err != nil {
		return err
	}
	note.Number = num
	return nil
}

// postLine converts one line to base units and applies it to inventory.
func (s *CompletionService) postLine(ctx context.Context, note *GoodsReceiptNote, line *Line, userID string) error {
	baseQty, err := s.toBaseUnits(ctx, line)
	if err != nil {
		return err
	}

	batch, err := s.batches.GetByKey(ctx, note.StoreID, line.DrugID, line.BatchNumber)
	switch {
	case err == nil:
		// Same lot received again: top up the existing batch.
		before := batch.BaseUnitQuantity
		if err := batch.Add(baseQty, "goods receipt "+note.Number.String(), userID); err != nil {
			return err
		}
		if err := s.batches.UpdateQuantity(ctx, batch); err != nil {
			return err
		}
		if err := s.recordReceipt(ctx, batch, baseQty, before, note, userID); err != nil {
			return err
		}

	case apperror.IsNotFound(err):
		batch = inventory.NewBatch(
			line.BatchNumber,
			note.StoreID, line.DrugID, note.SupplierID,
			baseQty,
			line.PackUnit, line.PackSize,
			line.ExpiryDate,
			line.CostPrice, line.SellingPrice,
		)
		batch.DrugName = line.DrugName
		batch.Location = line.Location
		if err := s.batches.Create(ctx, batch); err != nil {
			return err
		}
		if err := s.recordReceipt(ctx, batch, baseQty, types.ZeroQuantity(baseQty.Unit()), note, userID); err != nil {
			return err
		}

	default:
		return err
	}

	return nil
}

// toBaseUnits converts the line's total pack quantity to the drug's base
// unit. On a missing conversion it falls back to pack size (or 1:1 when no
// pack size is given) and logs the fallback — this path must stay loud.
func (s *CompletionService) toBaseUnits(ctx context.Context, line *Line) (types.Quantity, error) {
	packQty, err := types.NewQuantity(line.TotalQty(), line.PackUnit)
	if err != nil {
		return types.Quantity{}, err
	}

	baseQty, err := s.converter.ConvertToBaseUnits(ctx, line.DrugID, packQty)
	if err == nil {
		return baseQty, nil
	}
	if !apperror.IsMissingConversion(err) {
		return types.Quantity{}, err
	}

	baseUnit, unitErr := s.converter.GetBaseUnit(ctx, line.DrugID)
	if unitErr != nil {
		return types.Quantity{}, unitErr
	}

	packSize := line.PackSize
	if !packSize.IsPositive() {
		packSize = decimal.NewFromInt(1)
	}

	logger.Warn(ctx, "no unit conversion configured, falling back to pack size",
		"drug_id", line.DrugID,
		"batch_number", line.BatchNumber.String(),
		"pack_unit", line.PackUnit,
		"pack_size", packSize,
	)
	return types.NewQuantity(line.TotalQty().Mul(packSize), baseUnit)
}

// recordReceipt writes the IN movement and drains the batch's events.
func (s *CompletionService) recordReceipt(
	ctx context.Context,
	batch *inventory.Batch,
	qty, before types.Quantity,
	note *GoodsReceiptNote,
	userID string,
) error {
	m, err := inventory.NewStockMovement(
		batch, inventory.MovementIn, qty,
		before, batch.BaseUnitQuantity,
		"grn", note.ID,
		"goods receipt "+note.Number.String(), userID,
	)
	if err != nil {
		return err
	}
	if err := s.movements.Create(ctx, m); err != nil {
		return err
	}
	return s.eventLog.Append(ctx, batch.ClearEvents())
}
