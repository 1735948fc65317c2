package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thazinfarms/dairybooks_backend/config"
	"github.com/thazinfarms/dairybooks_backend/utils"
)

// AccountTransaction is the append-only audit line behind every leaf posting.
type AccountTransaction struct {
	ID            int             `gorm:"primary_key" json:"id"`
	FarmId        string          `gorm:"index;not null" json:"farm_id"`
	AccountId     int             `gorm:"index;not null" json:"account_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	ReferenceType ReferenceType   `gorm:"type:enum('MP','FU','HE','PB','IV','BL','WO','OB');index" json:"reference_type"`
	ReferenceId   int             `gorm:"index" json:"reference_id"`
	Description   string          `gorm:"size:255" json:"description"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func GetAccountTransactions(ctx context.Context, accountId int) ([]*AccountTransaction, error) {
	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	db := config.GetDB()
	var results []*AccountTransaction
	err := db.WithContext(ctx).
		Where("farm_id = ? AND account_id = ?", farmId, accountId).
		Order("id DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
