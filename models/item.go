package models

import (
	"context"
	"time"

	"github.com/hisabworks/hisab_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Item struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"size:100;not null;uniqueIndex" json:"name" binding:"required"`
	Unit      string          `gorm:"size:20;not null;default:'Nos'" json:"unit"`
	StdRate   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"std_rate"`
	TaxRate   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_rate"`
	// CurrentStock is the denormalized running sum of all stock adjustments,
	// kept on the row for O(1) reads. Mutated only via AdjustStock.
	CurrentStock decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_stock"`
	// StdCost tracks the last purchase rate.
	StdCost   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"std_cost"`
	Sku       *string         `gorm:"size:50;index" json:"sku"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewItem struct {
	Name    string          `json:"name" binding:"required"`
	Unit    string          `json:"unit"`
	StdRate decimal.Decimal `json:"std_rate"`
	TaxRate decimal.Decimal `json:"tax_rate"`
	Sku     string          `json:"sku"`
}

func (input *NewItem) validate(ctx context.Context, db *gorm.DB, id int) error {
	if input.Name == "" {
		return utils.NewValidationError("name", "name is required")
	}
	if err := utils.ValidateUnique[Item](ctx, db, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateItem(ctx context.Context, db *gorm.DB, input *NewItem) (*Item, error) {
	actor, err := requirePermission(ctx, PermissionMasters)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, db, 0); err != nil {
		return nil, err
	}

	unit := input.Unit
	if unit == "" {
		unit = "Nos"
	}
	item := Item{
		Name:    input.Name,
		Unit:    unit,
		StdRate: input.StdRate,
		TaxRate: input.TaxRate,
		Sku:     utils.NilIfEmpty(input.Sku),
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&item).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := createHistory(tx.WithContext(ctx), actor, "Masters", "New Item", "Item "+item.Name+" created."); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func GetItem(ctx context.Context, db *gorm.DB, id int) (*Item, error) {
	var item Item
	if err := db.WithContext(ctx).First(&item, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &item, nil
}

func GetAllItems(ctx context.Context, db *gorm.DB) ([]*Item, error) {
	var results []*Item
	if err := db.WithContext(ctx).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
