package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thazinfarms/dairybooks_backend/config"
	"github.com/thazinfarms/dairybooks_backend/utils"
	"gorm.io/gorm"
)

// MilkProduction records a milking yield. The produced quantity enters raw
// milk inventory at an estimated unit cost: trailing-window feed and
// treatment spend of the producing cattle divided by their output volume,
// falling back to the product's standard cost when the window is empty.
type MilkProduction struct {
	ID             int             `gorm:"primary_key" json:"id"`
	FarmId         string          `gorm:"index;not null" json:"farm_id"`
	CattleId       int             `gorm:"index;not null" json:"cattle_id"`
	ProductId      int             `gorm:"index;not null" json:"product_id"`
	EmployeeId     int             `gorm:"index" json:"employee_id"`
	Qty            decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	UnitCost       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	TotalCost      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_cost"`
	ProductionDate time.Time       `gorm:"index;not null" json:"production_date"`
	Notes          string          `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMilkProduction struct {
	CattleId       int             `json:"cattle_id" validate:"required"`
	EmployeeId     int             `json:"employee_id"`
	Qty            decimal.Decimal `json:"qty" validate:"required"`
	ProductionDate time.Time       `json:"production_date" validate:"required"`
	Notes          string          `json:"notes"`
}

func (m *MilkProduction) GetId() int {
	return m.ID
}

// RecordMilkProduction posts a milking yield: raw milk inventory gains the
// quantity at the estimated unit cost, the raw milk inventory account rises
// by the total cost and cost of goods sold falls by the same amount. The
// product is taken from the cattle's link, not from the caller.
func RecordMilkProduction(ctx context.Context, input *NewMilkProduction) (*MilkProduction, error) {
	logger := config.GetLogger()

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Qty.IsPositive() {
		return nil, utils.NewValidationError("quantity must be positive")
	}
	if input.EmployeeId > 0 {
		if err := utils.ValidateResourceId[Employee](ctx, farmId, input.EmployeeId); err != nil {
			return nil, err
		}
	}

	cattle, err := utils.FetchModel[Cattle](ctx, farmId, input.CattleId)
	if err != nil {
		return nil, err
	}
	product, err := utils.FetchModel[Product](ctx, farmId, cattle.ProductId)
	if err != nil {
		return nil, err
	}

	lock, err := utils.FarmLock(ctx, farmId, "posting", "Models", "RecordMilkProduction")
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release(ctx) }()

	production := MilkProduction{
		FarmId:         farmId,
		CattleId:       input.CattleId,
		ProductId:      product.ID,
		EmployeeId:     input.EmployeeId,
		Qty:            input.Qty,
		ProductionDate: input.ProductionDate,
		Notes:          input.Notes,
	}

	err = RunAtomic(ctx, func(tx *gorm.DB) error {
		windowStart, windowEnd := utils.TrailingWindow(input.ProductionDate, cogsWindowDays)
		unitCost, err := EstimateUnitCost(tx, farmId, product.ID, windowStart, windowEnd, product.StandardCost)
		if err != nil {
			return err
		}
		production.UnitCost = unitCost
		production.TotalCost = input.Qty.Mul(unitCost)

		if _, err := ApplyInventoryDelta(tx, farmId, product.ID, input.Qty, production.TotalCost); err != nil {
			return err
		}

		if err := tx.Create(&production).Error; err != nil {
			return err
		}

		sysAccounts, err := GetSystemAccounts(farmId)
		if err != nil {
			return err
		}
		if err := PostAccountDelta(tx, farmId, product.InventoryAccountId,
			production.TotalCost, ReferenceTypeMilkProduction, production.ID, "Milk production"); err != nil {
			return err
		}
		return PostAccountDelta(tx, farmId, sysAccounts[AccountCodeCostOfGoodsSold],
			production.TotalCost.Neg(), ReferenceTypeMilkProduction, production.ID, "Milk production")
	})
	if err != nil {
		config.LogError(logger, "Models", "RecordMilkProduction", "Cannot record milk production", input, err)
		return nil, err
	}
	return &production, nil
}

func GetMilkProduction(ctx context.Context, id int) (*MilkProduction, error) {
	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}
	return utils.FetchModel[MilkProduction](ctx, farmId, id)
}

func GetMilkProductions(ctx context.Context, cattleId *int) ([]*MilkProduction, error) {

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("farm_id = ?", farmId)
	if cattleId != nil {
		dbCtx = dbCtx.Where("cattle_id = ?", *cattleId)
	}
	var results []*MilkProduction
	if err := dbCtx.Order("production_date DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
