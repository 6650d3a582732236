package models

import (
	"context"
	"strings"
	"time"

	"github.com/hisabworks/hisab_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Ledger struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Name           string          `gorm:"size:100;not null;uniqueIndex" json:"name" binding:"required"`
	GroupId        int             `gorm:"index;not null" json:"group_id" binding:"required"`
	Gstin          string          `gorm:"size:20" json:"gstin"`
	State          string          `gorm:"size:50" json:"state"`
	OpeningBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"opening_balance"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLedger struct {
	Name           string          `json:"name" binding:"required"`
	GroupId        int             `json:"group_id" binding:"required"`
	Gstin          string          `json:"gstin"`
	State          string          `json:"state"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

func (input *NewLedger) validate(ctx context.Context, db *gorm.DB, id int) error {
	if input.Name == "" {
		return utils.NewValidationError("name", "name is required")
	}
	if err := utils.ValidateResourceId[Group](ctx, db, input.GroupId); err != nil {
		return utils.NewValidationError("group_id", "group not found")
	}
	if err := utils.ValidateUnique[Ledger](ctx, db, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateLedger(ctx context.Context, db *gorm.DB, input *NewLedger) (*Ledger, error) {
	actor, err := requirePermission(ctx, PermissionMasters)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, db, 0); err != nil {
		return nil, err
	}

	ledger := Ledger{
		Name:           input.Name,
		GroupId:        input.GroupId,
		Gstin:          input.Gstin,
		State:          input.State,
		OpeningBalance: input.OpeningBalance,
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&ledger).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := createHistory(tx.WithContext(ctx), actor, "Masters", "New Ledger", "Ledger "+ledger.Name+" created."); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &ledger, nil
}

func UpdateLedger(ctx context.Context, db *gorm.DB, id int, input *NewLedger) (*Ledger, error) {
	actor, err := requirePermission(ctx, PermissionMasters)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, db, id); err != nil {
		return nil, err
	}

	ledger, err := GetLedger(ctx, db, id)
	if err != nil {
		return nil, err
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Model(ledger).Updates(map[string]interface{}{
		"Name":           input.Name,
		"GroupId":        input.GroupId,
		"Gstin":          input.Gstin,
		"State":          input.State,
		"OpeningBalance": input.OpeningBalance,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := createHistory(tx.WithContext(ctx), actor, "Masters", "Edit Ledger", "Ledger "+ledger.Name+" updated."); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return ledger, nil
}

func GetLedger(ctx context.Context, db *gorm.DB, id int) (*Ledger, error) {
	var ledger Ledger
	if err := db.WithContext(ctx).First(&ledger, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &ledger, nil
}

func GetLedgerByName(ctx context.Context, db *gorm.DB, name string) (*Ledger, error) {
	var ledger Ledger
	if err := db.WithContext(ctx).Where("name = ?", name).First(&ledger).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &ledger, nil
}

func GetAllLedgers(ctx context.Context, db *gorm.DB) ([]*Ledger, error) {
	var results []*Ledger
	if err := db.WithContext(ctx).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// LedgerBalance sums the flat accounting-entry list for the ledger on top of
// its opening balance (debits positive, credits negative). The system keeps
// no hierarchical balances.
func LedgerBalance(ctx context.Context, db *gorm.DB, ledgerId int) (decimal.Decimal, error) {
	ledger, err := GetLedger(ctx, db, ledgerId)
	if err != nil {
		return decimal.Zero, err
	}

	type sums struct {
		Debit  decimal.Decimal
		Credit decimal.Decimal
	}
	var s sums
	if err := db.WithContext(ctx).Model(&AccountingEntry{}).
		Select("COALESCE(SUM(debit),0) AS debit, COALESCE(SUM(credit),0) AS credit").
		Where("ledger_id = ?", ledgerId).
		Scan(&s).Error; err != nil {
		return decimal.Zero, err
	}
	return ledger.OpeningBalance.Add(s.Debit).Sub(s.Credit), nil
}

// SuggestLedger offers a ledger whose name shares the most words with the
// narration. Purely advisory: callers must treat a nil result as "no
// suggestion", never as an error.
func SuggestLedger(ctx context.Context, db *gorm.DB, narration string) (*Ledger, error) {
	tokens := tokenizeWords(narration)
	if len(tokens) == 0 {
		return nil, nil
	}

	ledgers, err := GetAllLedgers(ctx, db)
	if err != nil {
		return nil, err
	}

	var best *Ledger
	bestScore := 0
	for _, ledger := range ledgers {
		score := 0
		for word := range tokenizeWords(ledger.Name) {
			if tokens[word] {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = ledger
		}
	}
	return best, nil
}

func tokenizeWords(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:()[]\"'")
		if len(w) >= 3 {
			words[w] = true
		}
	}
	return words
}
