package models

import (
	"github.com/hisabworks/hisab_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockContext tells AdjustStock what kind of movement is being applied and
// carries the optional batch descriptor and the rate for cost tracking.
type StockContext struct {
	Kind  StockMovementKind
	Rate  decimal.Decimal
	Batch *BatchDescriptor
	GrnId int
}

// AdjustStock applies a signed stock delta to the item inside the caller's
// transaction. The item row is locked (SELECT ... FOR UPDATE) so the
// read-modify-write of current_stock cannot lose updates to a concurrent
// posting. On a positive delta with a batch descriptor a Batch row is
// created; on a direct purchase std_cost is refreshed to the movement rate.
//
// Negative stock is permitted: the ledger records what happened, it does not
// enforce a floor.
func AdjustStock(tx *gorm.DB, itemId int, delta decimal.Decimal, sc StockContext) error {
	var item Item
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&item, itemId).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorRecordNotFound
		}
		return err
	}

	updates := map[string]interface{}{
		"CurrentStock": item.CurrentStock.Add(delta),
	}
	if sc.Kind == StockMovementPurchase && !sc.Rate.IsZero() {
		updates["StdCost"] = sc.Rate
	}
	if err := tx.Model(&item).Updates(updates).Error; err != nil {
		return err
	}

	if delta.IsPositive() && sc.Batch != nil && sc.Batch.BatchNumber != "" {
		batch := Batch{
			ItemId:      itemId,
			BatchNumber: sc.Batch.BatchNumber,
			ExpiryDate:  sc.Batch.ExpiryDate,
			MfgDate:     sc.Batch.MfgDate,
			Qty:         delta,
			GrnId:       sc.GrnId,
		}
		if err := tx.Create(&batch).Error; err != nil {
			return err
		}
	}

	return nil
}
