package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Batch rows are append-only: deletion is not modeled, and a batch keeps its
// originating GRN reference for traceability.
type Batch struct {
	ID          int             `gorm:"primary_key" json:"id"`
	ItemId      int             `gorm:"index;not null" json:"item_id"`
	BatchNumber string          `gorm:"size:100;not null;index" json:"batch_number"`
	ExpiryDate  *time.Time      `gorm:"index" json:"expiry_date"`
	MfgDate     *time.Time      `json:"mfg_date"`
	Qty         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	GrnId       int             `gorm:"index" json:"grn_id"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// BatchDescriptor carries optional batch fields on inward stock movements.
type BatchDescriptor struct {
	BatchNumber string     `json:"batch_number"`
	ExpiryDate  *time.Time `json:"expiry_date"`
	MfgDate     *time.Time `json:"mfg_date"`
}

func GetBatchesByItem(ctx context.Context, db *gorm.DB, itemId int) ([]*Batch, error) {
	var results []*Batch
	if err := db.WithContext(ctx).Where("item_id = ?", itemId).Order("expiry_date").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetAllBatches(ctx context.Context, db *gorm.DB) ([]*Batch, error) {
	var results []*Batch
	if err := db.WithContext(ctx).Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetExpiringBatches lists batches expiring on or before the cutoff date.
func GetExpiringBatches(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]*Batch, error) {
	var results []*Batch
	if err := db.WithContext(ctx).
		Where("expiry_date IS NOT NULL AND expiry_date <= ?", cutoff).
		Order("expiry_date").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
