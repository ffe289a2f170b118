// Package grn implements goods receipt notes: the document that brings stock
// into a store, creating or topping up inventory batches on completion.
package grn

import (
	"time"

	"github.com/shopspring/decimal"

	"hoperx/internal/core/apperror"
	"hoperx/internal/core/id"
	"hoperx/internal/core/ref"
	"hoperx/internal/core/types"
)

// Status is the GRN document lifecycle state.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// GoodsReceiptNote is the receiving document. Lines carry pack-level
// quantities exactly as they appear on the supplier invoice; conversion to
// base units happens at completion time.
type GoodsReceiptNote struct {
	ID     id.ID             `db:"id" json:"id"`
	Number ref.InvoiceNumber `db:"-" json:"number"`

	StoreID    id.ID `db:"store_id" json:"storeId"`
	SupplierID id.ID `db:"supplier_id" json:"supplierId"`

	SupplierInvoice string `db:"supplier_invoice" json:"supplierInvoice,omitempty"`

	Status Status `db:"status" json:"status"`

	Lines []Line `db:"-" json:"lines"`

	CreatedBy   string     `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`
}

// Line is one received lot on a GRN. ReceivedQty and FreeQty (bonus units
// from the supplier) are both in PackUnit; PackSize is how many base units
// one pack holds, used only as the explicit conversion fallback.
type Line struct {
	ID          id.ID           `db:"id" json:"id"`
	DrugID      id.ID           `db:"drug_id" json:"drugId"`
	DrugName    string          `db:"drug_name" json:"drugName,omitempty"`
	BatchNumber ref.BatchNumber `db:"batch_number" json:"batchNumber"`

	ReceivedQty decimal.Decimal `db:"received_qty" json:"receivedQty"`
	FreeQty     decimal.Decimal `db:"free_qty" json:"freeQty"`

	PackUnit types.Unit      `db:"pack_unit" json:"packUnit"`
	PackSize decimal.Decimal `db:"pack_size" json:"packSize"`

	ExpiryDate time.Time `db:"expiry_date" json:"expiryDate"`

	CostPrice    types.Money `db:"-" json:"costPrice"`
	SellingPrice types.Money `db:"-" json:"sellingPrice"`

	Location *string `db:"location" json:"location,omitempty"`
}

// TotalQty returns received + free in the pack unit.
func (l *Line) TotalQty() decimal.Decimal {
	return l.ReceivedQty.Add(l.FreeQty)
}

// Validate checks a line before completion.
func (l *Line) Validate() error {
	if id.IsNil(l.DrugID) {
		return apperror.NewValidation("line requires a drug")
	}
	if l.BatchNumber == "" {
		return apperror.NewValidation("line requires a batch number").
			WithDetail("drug_id", l.DrugID.String())
	}
	if l.BatchNumber.IsPlaceholder() {
		return apperror.NewValidation("placeholder batch number must be replaced before completion").
			WithDetail("drug_id", l.DrugID.String()).
			WithDetail("batch_number", l.BatchNumber.String())
	}
	if !l.TotalQty().IsPositive() {
		return apperror.NewValidation("line quantity must be positive").
			WithDetail("drug_id", l.DrugID.String())
	}
	if l.ReceivedQty.IsNegative() || l.FreeQty.IsNegative() {
		return apperror.NewValidation("received and free quantities cannot be negative").
			WithDetail("drug_id", l.DrugID.String())
	}
	if !l.PackUnit.IsValid() {
		return apperror.NewValidation("line requires a valid pack unit").
			WithDetail("drug_id", l.DrugID.String()).
			WithDetail("pack_unit", string(l.PackUnit))
	}
	if l.ExpiryDate.IsZero() {
		return apperror.NewValidation("line requires an expiry date").
			WithDetail("drug_id", l.DrugID.String())
	}
	return nil
}

// NewNote creates a draft GRN.
func NewNote(storeID, supplierID id.ID, supplierInvoice, createdBy string) *GoodsReceiptNote {
	return &GoodsReceiptNote{
		ID:              id.New(),
		StoreID:         storeID,
		SupplierID:      supplierID,
		SupplierInvoice: supplierInvoice,
		Status:          StatusDraft,
		CreatedBy:       createdBy,
		CreatedAt:       time.Now().UTC(),
	}
}

// AddLine appends a line to a draft note.
func (n *GoodsReceiptNote) AddLine(line Line) error {
	if n.Status != StatusDraft {
		return apperror.NewConflict("lines can only be added to a draft note")
	}
	if id.IsNil(line.ID) {
		line.ID = id.New()
	}
	n.Lines = append(n.Lines, line)
	return nil
}

// Validate checks the note is completable.
func (n *GoodsReceiptNote) Validate() error {
	if n.Status != StatusDraft {
		return apperror.NewConflict("only a draft note can be completed").
			WithDetail("status", string(n.Status))
	}
	if len(n.Lines) == 0 {
		return apperror.NewValidation("note has no lines")
	}
	for i := range n.Lines {
		if err := n.Lines[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
