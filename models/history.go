package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hisabworks/hisab_backend/appctx"
	"gorm.io/gorm"
)

// History is the append-only audit trail. Rows are written inside the same
// transaction as the mutation they describe, so an aborted posting never
// leaves an audit entry claiming it happened.
type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	UserName      string    `gorm:"size:100;not null" json:"user_name"`
	Module        string    `gorm:"size:50;not null" json:"module"`
	Action        string    `gorm:"size:50;not null" json:"action"`
	Description   string    `gorm:"type:text" json:"description"`
	CorrelationId string    `gorm:"size:40" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func createHistory(tx *gorm.DB, actor Actor, module string, action string, description string) error {
	history := History{
		UserName:      actor.Username,
		Module:        module,
		Action:        action,
		Description:   description,
		CorrelationId: correlationIdFromContextOrNew(tx.Statement.Context),
	}
	return tx.Create(&history).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := appctx.GetString(ctx, appctx.ContextKeyCorrelationId); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func GetAllHistories(ctx context.Context, db *gorm.DB) ([]*History, error) {
	var results []*History
	if err := db.WithContext(ctx).Order("created_at DESC").Limit(500).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
