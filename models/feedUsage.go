package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thazinfarms/dairybooks_backend/config"
	"github.com/thazinfarms/dairybooks_backend/utils"
	"gorm.io/gorm"
)

// FeedUsage records feed consumed by one head of cattle. Posting withdraws
// the quantity from feed inventory at the current average cost and expenses
// it, so UnitCost and TotalCost are snapshots of what was actually booked.
type FeedUsage struct {
	ID         int             `gorm:"primary_key" json:"id"`
	FarmId     string          `gorm:"index;not null" json:"farm_id"`
	CattleId   int             `gorm:"index;not null" json:"cattle_id"`
	ProductId  int             `gorm:"index;not null" json:"product_id"`
	EmployeeId int             `gorm:"index" json:"employee_id"`
	Qty        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	UnitCost   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	TotalCost  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_cost"`
	UsageDate  time.Time       `gorm:"index;not null" json:"usage_date"`
	Notes      string          `gorm:"type:text" json:"notes"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewFeedUsage struct {
	CattleId   int             `json:"cattle_id" validate:"required"`
	ProductId  int             `json:"product_id" validate:"required"`
	EmployeeId int             `json:"employee_id"`
	Qty        decimal.Decimal `json:"qty" validate:"required"`
	UsageDate  time.Time       `json:"usage_date" validate:"required"`
	Notes      string          `json:"notes"`
}

func (f *FeedUsage) GetId() int {
	return f.ID
}

func (input *NewFeedUsage) validate(ctx context.Context, farmId string) (*Product, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Qty.IsPositive() {
		return nil, utils.NewValidationError("quantity must be positive")
	}
	if err := utils.ValidateResourceId[Cattle](ctx, farmId, input.CattleId); err != nil {
		return nil, err
	}
	if input.EmployeeId > 0 {
		if err := utils.ValidateResourceId[Employee](ctx, farmId, input.EmployeeId); err != nil {
			return nil, err
		}
	}
	product, err := utils.FetchModel[Product](ctx, farmId, input.ProductId)
	if err != nil {
		return nil, err
	}
	if product.Category != ProductCategoryFeed {
		return nil, utils.NewValidationError("product %s is not feed", product.Name)
	}
	return product, nil
}

// RecordFeedUsage posts a feed consumption event: the quantity leaves feed
// inventory at the current average cost, feed expense rises by the withdrawn
// cost, and the feed inventory account falls by the same amount. All or
// nothing inside one unit of work.
func RecordFeedUsage(ctx context.Context, input *NewFeedUsage) (*FeedUsage, error) {
	logger := config.GetLogger()

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	product, err := input.validate(ctx, farmId)
	if err != nil {
		return nil, err
	}

	lock, err := utils.FarmLock(ctx, farmId, "posting", "Models", "RecordFeedUsage")
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release(ctx) }()

	usage := FeedUsage{
		FarmId:     farmId,
		CattleId:   input.CattleId,
		ProductId:  input.ProductId,
		EmployeeId: input.EmployeeId,
		Qty:        input.Qty,
		UsageDate:  input.UsageDate,
		Notes:      input.Notes,
	}

	err = RunAtomic(ctx, func(tx *gorm.DB) error {
		v, err := fetchValuationForUpdate(tx, farmId, input.ProductId)
		if err != nil {
			return err
		}
		usage.UnitCost = v.AverageCost
		usage.TotalCost = input.Qty.Mul(v.AverageCost)

		if _, err := ApplyInventoryDelta(tx, farmId, input.ProductId, input.Qty.Neg(), usage.TotalCost.Neg()); err != nil {
			return err
		}

		if err := tx.Create(&usage).Error; err != nil {
			return err
		}

		sysAccounts, err := GetSystemAccounts(farmId)
		if err != nil {
			return err
		}
		if err := PostAccountDelta(tx, farmId, sysAccounts[AccountCodeFeedExpense],
			usage.TotalCost, ReferenceTypeFeedUsage, usage.ID, "Feed usage"); err != nil {
			return err
		}
		return PostAccountDelta(tx, farmId, product.InventoryAccountId,
			usage.TotalCost.Neg(), ReferenceTypeFeedUsage, usage.ID, "Feed usage")
	})
	if err != nil {
		config.LogError(logger, "Models", "RecordFeedUsage", "Cannot record feed usage", input, err)
		return nil, err
	}
	return &usage, nil
}

func GetFeedUsage(ctx context.Context, id int) (*FeedUsage, error) {
	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}
	return utils.FetchModel[FeedUsage](ctx, farmId, id)
}

func GetFeedUsages(ctx context.Context, cattleId *int) ([]*FeedUsage, error) {

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("farm_id = ?", farmId)
	if cattleId != nil {
		dbCtx = dbCtx.Where("cattle_id = ?", *cattleId)
	}
	var results []*FeedUsage
	if err := dbCtx.Order("usage_date DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
