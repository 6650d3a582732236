package models

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/hisabworks/hisab_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Voucher is the financial document header. Every voucher owns its accounting
// entries (the double-entry legs) and, for Sales/Purchase, inventory entries
// (the stock legs). Entries never exist without their voucher and are
// replaced wholesale on edit.
type Voucher struct {
	ID                int               `gorm:"primary_key" json:"id"`
	VoucherNumber     string            `gorm:"size:50;not null;uniqueIndex" json:"voucher_number"`
	Type              VoucherType       `gorm:"type:enum('Sales','Purchase','Payment','Receipt','Journal','Contra');not null;index" json:"type"`
	VoucherDate       time.Time         `gorm:"not null;index" json:"voucher_date"`
	Narration         string            `gorm:"type:text" json:"narration"`
	GrnId             *int              `gorm:"index" json:"grn_id"`
	AccountingEntries []AccountingEntry `gorm:"foreignKey:VoucherId" json:"accounting_entries"`
	InventoryEntries  []InventoryEntry  `gorm:"foreignKey:VoucherId" json:"inventory_entries"`
	CreatedAt         time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// AccountingEntry is one leg of the double entry. Exactly one of Debit and
// Credit is expected to be non-zero; the engine stores what it is given and
// balance is the caller's contract (see ValidateBalancedEntries).
type AccountingEntry struct {
	ID        int             `gorm:"primary_key" json:"id"`
	VoucherId int             `gorm:"index;not null" json:"voucher_id"`
	LedgerId  int             `gorm:"not null" json:"ledger_id"`
	Debit     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit"`
	Credit    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit"`
}

type InventoryEntry struct {
	ID        int             `gorm:"primary_key" json:"id"`
	VoucherId int             `gorm:"index;not null" json:"voucher_id"`
	ItemId    int             `gorm:"not null" json:"item_id"`
	Qty       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	Rate      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
}

type VoucherInput struct {
	ID                int                    `json:"id"`
	VoucherNumber     string                 `json:"voucher_number" binding:"required"`
	Type              string                 `json:"type" binding:"required"`
	VoucherDate       time.Time              `json:"voucher_date" binding:"required"`
	Narration         string                 `json:"narration"`
	GrnId             *int                   `json:"grn_id"`
	AccountingEntries []AccountingEntryInput `json:"accounting_entries" binding:"required"`
	InventoryEntries  []InventoryEntryInput  `json:"inventory_entries"`
}

type AccountingEntryInput struct {
	LedgerId int             `json:"ledger_id" binding:"required"`
	Debit    decimal.Decimal `json:"debit"`
	Credit   decimal.Decimal `json:"credit"`
}

type InventoryEntryInput struct {
	ItemId int             `json:"item_id" binding:"required"`
	Qty    decimal.Decimal `json:"qty" binding:"required"`
	Rate   decimal.Decimal `json:"rate"`
}

// ValidateBalancedEntries checks that total debits equal total credits.
// The posting engine itself does not call this: callers assembling vouchers
// from user input run it before PostVoucher, while internal flows that build
// entries programmatically are trusted.
func ValidateBalancedEntries(entries []AccountingEntryInput) error {
	debits := decimal.Zero
	credits := decimal.Zero
	for _, e := range entries {
		debits = debits.Add(e.Debit)
		credits = credits.Add(e.Credit)
	}
	if !debits.Equal(credits) {
		return utils.NewValidationError("accounting_entries",
			fmt.Sprintf("entries do not balance: debit %s, credit %s", debits.String(), credits.String()))
	}
	return nil
}

func (input *VoucherInput) validate(ctx context.Context, db *gorm.DB) (VoucherType, error) {
	if input.VoucherNumber == "" {
		return "", utils.NewValidationError("voucher_number", "voucher number is required")
	}
	if input.VoucherDate.IsZero() {
		return "", utils.NewValidationError("voucher_date", "voucher date is required")
	}
	voucherType, err := ParseVoucherType(input.Type)
	if err != nil {
		return "", utils.NewValidationError("type", err.Error())
	}
	if len(input.AccountingEntries) == 0 {
		return "", utils.NewValidationError("accounting_entries", "at least one accounting entry is required")
	}
	if input.GrnId != nil && voucherType != VoucherTypePurchase {
		return "", utils.NewValidationError("grn_id", "only purchase vouchers can reference a grn")
	}

	ledgerIds := make([]int, 0, len(input.AccountingEntries))
	for _, e := range input.AccountingEntries {
		if e.Debit.IsNegative() || e.Credit.IsNegative() {
			return "", utils.NewValidationError("accounting_entries", "debit and credit must not be negative")
		}
		ledgerIds = append(ledgerIds, e.LedgerId)
	}
	if err := utils.ValidateResourcesId[Ledger](ctx, db, ledgerIds); err != nil {
		return "", utils.NewValidationError("accounting_entries", "ledger not found")
	}

	if len(input.InventoryEntries) > 0 {
		if voucherType != VoucherTypeSales && voucherType != VoucherTypePurchase {
			return "", utils.NewValidationError("inventory_entries", "inventory entries are only valid on sales and purchase vouchers")
		}
		itemIds := make([]int, 0, len(input.InventoryEntries))
		for _, e := range input.InventoryEntries {
			if !e.Qty.IsPositive() {
				return "", utils.NewValidationError("inventory_entries", "item qty must be positive")
			}
			itemIds = append(itemIds, e.ItemId)
		}
		if err := utils.ValidateResourcesId[Item](ctx, db, itemIds); err != nil {
			return "", utils.NewValidationError("inventory_entries", "item not found")
		}
	}
	return voucherType, nil
}

// PostVoucher creates a voucher (input.ID == 0) or replaces an existing one
// (input.ID != 0) atomically: header, both entry sets, the stock deltas, the
// GRN close and the audit row commit together or not at all.
//
// Stock rules by type:
//   - Sales: each inventory entry decreases stock by qty.
//   - Purchase without a GRN: each entry increases stock by qty and refreshes
//     the item's std_cost to the entry rate.
//   - Purchase referencing a GRN: stock was already adjusted at receipt, so
//     no inventory deltas are applied; the GRN is moved to BILLED.
//
// On edit the old inventory effect is reversed using the OLD voucher's type
// before the new entries are applied, so re-saving a voucher never double
// counts stock.
func PostVoucher(ctx context.Context, db *gorm.DB, input *VoucherInput) (*Voucher, error) {
	actor, err := requirePermission(ctx, PermissionFinance)
	if err != nil {
		return nil, err
	}
	voucherType, err := input.validate(ctx, db)
	if err != nil {
		return nil, err
	}
	if err := CheckBackDate(actor, input.VoucherDate, time.Now()); err != nil {
		return nil, err
	}

	tx := db.Begin()

	// Voucher-number uniqueness, checked inside the transaction. The same
	// number on a different id is a conflict; the same number on the same id
	// is an edit.
	var existing Voucher
	err = tx.WithContext(ctx).Where("voucher_number = ?", input.VoucherNumber).First(&existing).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		tx.Rollback()
		return nil, err
	}
	if err == nil && existing.ID != input.ID {
		tx.Rollback()
		return nil, utils.NewConflictError("voucher number " + input.VoucherNumber + " already in use")
	}

	isEdit := input.ID != 0
	voucher := Voucher{
		ID:            input.ID,
		VoucherNumber: input.VoucherNumber,
		Type:          voucherType,
		VoucherDate:   input.VoucherDate,
		Narration:     input.Narration,
		GrnId:         input.GrnId,
	}

	if isEdit {
		var old Voucher
		if err := tx.WithContext(ctx).Preload("InventoryEntries").First(&old, input.ID).Error; err != nil {
			tx.Rollback()
			if err == gorm.ErrRecordNotFound {
				return nil, utils.ErrorRecordNotFound
			}
			return nil, err
		}
		// Undo the old stock effect with the old type before anything else,
		// then drop both entry sets: edit is delete-and-reinsert.
		if err := reverseInventoryEffect(tx.WithContext(ctx), &old); err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.WithContext(ctx).Where("voucher_id = ?", old.ID).Delete(&AccountingEntry{}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.WithContext(ctx).Where("voucher_id = ?", old.ID).Delete(&InventoryEntry{}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		voucher.CreatedAt = old.CreatedAt
		if err := tx.WithContext(ctx).Save(&voucher).Error; err != nil {
			tx.Rollback()
			return nil, translateDuplicateKey(err, "voucher number already in use")
		}
	} else {
		if err := tx.WithContext(ctx).Create(&voucher).Error; err != nil {
			tx.Rollback()
			return nil, translateDuplicateKey(err, "voucher number already in use")
		}
	}

	if input.GrnId != nil {
		if err := closeGrn(tx.WithContext(ctx), *input.GrnId); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	for _, e := range input.AccountingEntries {
		entry := AccountingEntry{
			VoucherId: voucher.ID,
			LedgerId:  e.LedgerId,
			Debit:     e.Debit,
			Credit:    e.Credit,
		}
		if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		voucher.AccountingEntries = append(voucher.AccountingEntries, entry)
	}

	for _, e := range input.InventoryEntries {
		entry := InventoryEntry{
			VoucherId: voucher.ID,
			ItemId:    e.ItemId,
			Qty:       e.Qty,
			Rate:      e.Rate,
		}
		if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		voucher.InventoryEntries = append(voucher.InventoryEntries, entry)

		delta, sc, apply := stockMovementFor(voucherType, input.GrnId, e)
		if apply {
			if err := AdjustStock(tx.WithContext(ctx), e.ItemId, delta, sc); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}

	action := "New Bill"
	if isEdit {
		action = "Edit Bill"
	}
	description := fmt.Sprintf("%s voucher %s dated %s posted with %d entry(s).",
		voucher.Type, voucher.VoucherNumber, voucher.VoucherDate.Format("2006-01-02"), len(voucher.AccountingEntries))
	if err := createHistory(tx.WithContext(ctx), actor, "Finance", action, description); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

// stockMovementFor maps a voucher type to the signed delta and movement
// context for one inventory entry. A GRN-linked purchase applies nothing.
func stockMovementFor(voucherType VoucherType, grnId *int, e InventoryEntryInput) (decimal.Decimal, StockContext, bool) {
	switch voucherType {
	case VoucherTypeSales:
		return e.Qty.Neg(), StockContext{Kind: StockMovementSale}, true
	case VoucherTypePurchase:
		if grnId != nil {
			return decimal.Zero, StockContext{}, false
		}
		return e.Qty, StockContext{Kind: StockMovementPurchase, Rate: e.Rate}, true
	default:
		return decimal.Zero, StockContext{}, false
	}
}

// reverseInventoryEffect undoes the stock deltas the voucher applied when it
// was originally posted, judged by its stored type and GRN link. Reversal
// never rewrites std_cost.
func reverseInventoryEffect(tx *gorm.DB, old *Voucher) error {
	for _, e := range old.InventoryEntries {
		var delta decimal.Decimal
		switch old.Type {
		case VoucherTypeSales:
			delta = e.Qty
		case VoucherTypePurchase:
			if old.GrnId != nil {
				continue
			}
			delta = e.Qty.Neg()
		default:
			continue
		}
		if err := AdjustStock(tx, e.ItemId, delta, StockContext{Kind: StockMovementReversal}); err != nil {
			return err
		}
	}
	return nil
}

// translateDuplicateKey maps a MySQL duplicate-entry error (1062) raced past
// the pre-check onto the same conflict type the pre-check raises.
func translateDuplicateKey(err error, msg string) error {
	if mysqlErr, ok := err.(*mysql.MySQLError); ok && mysqlErr.Number == 1062 {
		return utils.NewConflictError(msg)
	}
	return err
}

func GetVoucher(ctx context.Context, db *gorm.DB, id int) (*Voucher, error) {
	var voucher Voucher
	if err := db.WithContext(ctx).
		Preload("AccountingEntries").
		Preload("InventoryEntries").
		First(&voucher, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &voucher, nil
}

func GetAllVouchers(ctx context.Context, db *gorm.DB) ([]*Voucher, error) {
	var results []*Voucher
	if err := db.WithContext(ctx).
		Preload("AccountingEntries").
		Preload("InventoryEntries").
		Order("voucher_date DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
