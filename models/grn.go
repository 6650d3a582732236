package models

import (
	"context"
	"fmt"
	"time"

	"github.com/hisabworks/hisab_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GrnMaster records physically received goods ahead of their financial
// booking. Status moves PENDING_BILL -> BILLED exactly once, on the first
// voucher that references the GRN; there is no way back.
type GrnMaster struct {
	ID        int        `gorm:"primary_key" json:"id"`
	GrnNumber string     `gorm:"size:50;not null;uniqueIndex" json:"grn_number" binding:"required"`
	VendorId  int        `gorm:"index;not null" json:"vendor_id" binding:"required"`
	Status    GrnStatus  `gorm:"type:enum('PENDING_BILL','BILLED');default:PENDING_BILL;index" json:"status"`
	GrnDate   time.Time  `gorm:"not null" json:"grn_date"`
	Items     []GrnItem  `gorm:"foreignKey:GrnId" json:"items"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// GrnItem lines are created only as part of GRN creation and are immutable
// thereafter.
type GrnItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	GrnId       int             `gorm:"index;not null" json:"grn_id"`
	ItemId      int             `gorm:"not null" json:"item_id"`
	Qty         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	Rate        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
	BatchNumber string          `gorm:"size:100" json:"batch_number"`
	ExpiryDate  *time.Time      `json:"expiry_date"`
	MfgDate     *time.Time      `json:"mfg_date"`
}

type NewGrn struct {
	GrnNumber string       `json:"grn_number" binding:"required"`
	VendorId  int          `json:"vendor_id" binding:"required"`
	GrnDate   time.Time    `json:"grn_date" binding:"required"`
	Items     []NewGrnItem `json:"items" binding:"required"`
}

type NewGrnItem struct {
	ItemId      int             `json:"item_id" binding:"required"`
	Qty         decimal.Decimal `json:"qty" binding:"required"`
	Rate        decimal.Decimal `json:"rate"`
	BatchNumber string          `json:"batch_number"`
	ExpiryDate  *time.Time      `json:"expiry_date"`
	MfgDate     *time.Time      `json:"mfg_date"`
}

func (input *NewGrn) validate(ctx context.Context, db *gorm.DB) error {
	if input.GrnNumber == "" {
		return utils.NewValidationError("grn_number", "grn number is required")
	}
	if input.GrnDate.IsZero() {
		return utils.NewValidationError("grn_date", "grn date is required")
	}
	if len(input.Items) == 0 {
		return utils.NewValidationError("items", "at least one item is required")
	}
	if err := utils.ValidateResourceId[Ledger](ctx, db, input.VendorId); err != nil {
		return utils.NewValidationError("vendor_id", "vendor ledger not found")
	}
	itemIds := make([]int, 0, len(input.Items))
	for _, line := range input.Items {
		if !line.Qty.IsPositive() {
			return utils.NewValidationError("items", "item qty must be positive")
		}
		itemIds = append(itemIds, line.ItemId)
	}
	if err := utils.ValidateResourcesId[Item](ctx, db, itemIds); err != nil {
		return utils.NewValidationError("items", "item not found")
	}
	return nil
}

// CreateGRN persists the master in PENDING_BILL, its lines, a batch row per
// batch-numbered line, and the inward stock deltas — one transaction, so a
// failing line rolls back the master, the other lines, the batches and the
// stock deltas together. Physical receipt increases stock before any
// financial booking.
func CreateGRN(ctx context.Context, db *gorm.DB, input *NewGrn) (*GrnMaster, error) {
	actor, err := requirePermission(ctx, PermissionStore)
	if err != nil {
		return nil, err
	}
	if err := CheckBackDate(actor, input.GrnDate, time.Now()); err != nil {
		return nil, err
	}
	if err := input.validate(ctx, db); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[GrnMaster](ctx, db, "grn_number", input.GrnNumber, 0); err != nil {
		return nil, err
	}

	grn := GrnMaster{
		GrnNumber: input.GrnNumber,
		VendorId:  input.VendorId,
		Status:    GrnStatusPendingBill,
		GrnDate:   input.GrnDate,
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&grn).Error; err != nil {
		tx.Rollback()
		return nil, translateDuplicateKey(err, "grn number already in use")
	}

	for _, line := range input.Items {
		grnItem := GrnItem{
			GrnId:       grn.ID,
			ItemId:      line.ItemId,
			Qty:         line.Qty,
			Rate:        line.Rate,
			BatchNumber: line.BatchNumber,
			ExpiryDate:  line.ExpiryDate,
			MfgDate:     line.MfgDate,
		}
		if err := tx.WithContext(ctx).Create(&grnItem).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		grn.Items = append(grn.Items, grnItem)

		var batch *BatchDescriptor
		if line.BatchNumber != "" {
			batch = &BatchDescriptor{
				BatchNumber: line.BatchNumber,
				ExpiryDate:  line.ExpiryDate,
				MfgDate:     line.MfgDate,
			}
		}
		if err := AdjustStock(tx.WithContext(ctx), line.ItemId, line.Qty, StockContext{
			Kind:  StockMovementGrnReceipt,
			Rate:  line.Rate,
			Batch: batch,
			GrnId: grn.ID,
		}); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	description := fmt.Sprintf("GRN %s received from vendor %d with %d item(s).", grn.GrnNumber, grn.VendorId, len(grn.Items))
	if err := createHistory(tx.WithContext(ctx), actor, "Store", "GRN", description); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &grn, nil
}

// closeGrn moves the GRN to BILLED. Calling it on an already-billed GRN is a
// no-op, never an error: voucher edit/re-save must stay safe.
func closeGrn(tx *gorm.DB, grnId int) error {
	var grn GrnMaster
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&grn, grnId).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.NewValidationError("grn_id", "grn not found")
		}
		return err
	}
	if grn.Status == GrnStatusBilled {
		return nil
	}
	return tx.Model(&grn).Update("Status", GrnStatusBilled).Error
}

func GetGrn(ctx context.Context, db *gorm.DB, id int) (*GrnMaster, error) {
	var grn GrnMaster
	if err := db.WithContext(ctx).Preload("Items").First(&grn, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &grn, nil
}

func GetAllGrns(ctx context.Context, db *gorm.DB) ([]*GrnMaster, error) {
	var results []*GrnMaster
	if err := db.WithContext(ctx).Preload("Items").Order("id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetPendingGrns lists receipts awaiting their purchase bill.
func GetPendingGrns(ctx context.Context, db *gorm.DB) ([]*GrnMaster, error) {
	var results []*GrnMaster
	if err := db.WithContext(ctx).Preload("Items").
		Where("status = ?", GrnStatusPendingBill).
		Order("grn_date").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
