package models

import (
	"context"
	"time"

	"github.com/hisabworks/hisab_backend/utils"
	"gorm.io/gorm"
)

type Group struct {
	ID          int         `gorm:"primary_key" json:"id"`
	Name        string      `gorm:"size:100;not null;uniqueIndex" json:"name" binding:"required"`
	Nature      GroupNature `gorm:"type:enum('Asset','Liability','Income','Expense');not null" json:"nature" binding:"required"`
	ParentGroup string      `gorm:"size:100" json:"parent_group"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

type NewGroup struct {
	Name        string `json:"name" binding:"required"`
	Nature      string `json:"nature" binding:"required"`
	ParentGroup string `json:"parent_group"`
}

// The starter set is fixed; user-created groups may be added on top, but the
// nature taxonomy never grows.
var seedGroups = []Group{
	{Name: "Capital Account", Nature: GroupNatureLiability},
	{Name: "Loans (Liability)", Nature: GroupNatureLiability},
	{Name: "Current Liabilities", Nature: GroupNatureLiability},
	{Name: "Sundry Creditors", Nature: GroupNatureLiability, ParentGroup: "Current Liabilities"},
	{Name: "Duties & Taxes", Nature: GroupNatureLiability, ParentGroup: "Current Liabilities"},
	{Name: "Fixed Assets", Nature: GroupNatureAsset},
	{Name: "Current Assets", Nature: GroupNatureAsset},
	{Name: "Cash-in-Hand", Nature: GroupNatureAsset, ParentGroup: "Current Assets"},
	{Name: "Bank Accounts", Nature: GroupNatureAsset, ParentGroup: "Current Assets"},
	{Name: "Stock-in-Hand", Nature: GroupNatureAsset, ParentGroup: "Current Assets"},
	{Name: "Sundry Debtors", Nature: GroupNatureAsset, ParentGroup: "Current Assets"},
	{Name: "Sales Accounts", Nature: GroupNatureIncome},
	{Name: "Indirect Incomes", Nature: GroupNatureIncome},
	{Name: "Purchase Accounts", Nature: GroupNatureExpense},
	{Name: "Direct Expenses", Nature: GroupNatureExpense},
	{Name: "Indirect Expenses", Nature: GroupNatureExpense},
}

func (input *NewGroup) validate(ctx context.Context, db *gorm.DB, id int) error {
	if input.Name == "" {
		return utils.NewValidationError("name", "name is required")
	}
	if _, err := ParseGroupNature(input.Nature); err != nil {
		return utils.NewValidationError("nature", err.Error())
	}
	if err := utils.ValidateUnique[Group](ctx, db, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateGroup(ctx context.Context, db *gorm.DB, input *NewGroup) (*Group, error) {
	actor, err := requirePermission(ctx, PermissionMasters)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, db, 0); err != nil {
		return nil, err
	}

	group := Group{
		Name:        input.Name,
		Nature:      GroupNature(input.Nature),
		ParentGroup: input.ParentGroup,
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&group).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := createHistory(tx.WithContext(ctx), actor, "Masters", "New Group", "Group "+group.Name+" created."); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func GetAllGroups(ctx context.Context, db *gorm.DB) ([]*Group, error) {
	var results []*Group
	if err := db.WithContext(ctx).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetGroup(ctx context.Context, db *gorm.DB, id int) (*Group, error) {
	var group Group
	if err := db.WithContext(ctx).First(&group, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &group, nil
}
