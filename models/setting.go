package models

import (
	"context"

	"github.com/hisabworks/hisab_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Setting is a key/value row for company profile and miscellaneous
// configuration (financial year start, company name, tax registration).
type Setting struct {
	Key   string `gorm:"primary_key;size:100" json:"key"`
	Value string `gorm:"type:text" json:"value"`
}

func GetSetting(ctx context.Context, db *gorm.DB, key string) (string, error) {
	var setting Setting
	if err := db.WithContext(ctx).First(&setting, "`key` = ?", key).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", utils.ErrorRecordNotFound
		}
		return "", err
	}
	return setting.Value, nil
}

func GetAllSettings(ctx context.Context, db *gorm.DB) (map[string]string, error) {
	var rows []Setting
	if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

func SetSetting(ctx context.Context, db *gorm.DB, key string, value string) error {
	actor, err := requirePermission(ctx, PermissionMasters)
	if err != nil {
		return err
	}
	tx := db.Begin()
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&Setting{Key: key, Value: value}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := createHistory(tx.WithContext(ctx), actor, "Masters", "Setting", "Setting "+key+" updated."); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
