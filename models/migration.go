package models

import (
	"time"

	"github.com/hisabworks/hisab_backend/config"
	"github.com/hisabworks/hisab_backend/utils"
	"gorm.io/gorm"
)

// SchemaMigration records which named migration steps have been applied, so
// MigrateUp can run on every boot and apply only what is missing.
type SchemaMigration struct {
	Name      string    `gorm:"primary_key;size:100" json:"name"`
	AppliedAt time.Time `gorm:"autoCreateTime" json:"applied_at"`
}

type migrationStep struct {
	name string
	run  func(db *gorm.DB) error
}

// Steps run in declaration order. Append only: never reorder or rename an
// applied step.
var migrationSteps = []migrationStep{
	{name: "001_create_tables", run: migrateCreateTables},
	{name: "002_seed_groups", run: migrateSeedGroups},
	{name: "003_seed_admin", run: migrateSeedAdmin},
	{name: "004_seed_settings", run: migrateSeedSettings},
}

// MigrateUp applies every pending migration step in order. Each step runs in
// its own transaction and is recorded in schema_migrations on success, so a
// crash mid-sequence resumes cleanly at the failed step.
func MigrateUp(db *gorm.DB) error {
	logger := config.GetLogger()

	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return err
	}

	for _, step := range migrationSteps {
		var applied SchemaMigration
		err := db.First(&applied, "name = ?", step.name).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		logger.WithField("step", step.name).Info("applying migration")
		tx := db.Begin()
		if err := step.run(tx); err != nil {
			tx.Rollback()
			config.LogError(logger, "models", "MigrateUp", step.name, nil, err)
			return err
		}
		if err := tx.Create(&SchemaMigration{Name: step.name}).Error; err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit().Error; err != nil {
			return err
		}
	}
	return nil
}

func migrateCreateTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&Group{},
		&Ledger{},
		&Item{},
		&Batch{},
		&GrnMaster{},
		&GrnItem{},
		&Voucher{},
		&AccountingEntry{},
		&InventoryEntry{},
		&History{},
		&User{},
		&Setting{},
	)
}

func migrateSeedGroups(db *gorm.DB) error {
	for _, group := range seedGroups {
		g := group
		if err := db.Where("name = ?", g.Name).FirstOrCreate(&g).Error; err != nil {
			return err
		}
	}
	return nil
}

// migrateSeedAdmin creates the default admin account. The password is meant
// to be changed on first login.
func migrateSeedAdmin(db *gorm.DB) error {
	var count int64
	if err := db.Model(&User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hashed, err := utils.HashPassword("admin")
	if err != nil {
		return err
	}
	return db.Create(&User{
		Username: "admin",
		Password: string(hashed),
		Name:     "Administrator",
		Role:     UserRoleAdmin,
	}).Error
}

func migrateSeedSettings(db *gorm.DB) error {
	defaults := []Setting{
		{Key: "company_name", Value: "My Company"},
		{Key: "financial_year_start", Value: "04-01"},
	}
	for _, setting := range defaults {
		s := setting
		if err := db.Where("`key` = ?", s.Key).FirstOrCreate(&s).Error; err != nil {
			return err
		}
	}
	return nil
}
