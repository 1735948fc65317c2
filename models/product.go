package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thazinfarms/dairybooks_backend/config"
	"github.com/thazinfarms/dairybooks_backend/utils"
)

// Product covers everything the farm stocks or sells: raw milk, processed
// finished goods, purchased feed and medicine. Each product is linked to the
// inventory asset account of its category and to the sales income account,
// so posting paths never guess at account codes.
type Product struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	FarmId             string          `gorm:"index;not null" json:"farm_id"`
	Name               string          `gorm:"index;size:100;not null" json:"name"`
	Sku                string          `gorm:"index;size:100" json:"sku"`
	Category           ProductCategory `gorm:"type:enum('RawMilk','FinishedGood','Feed','Medicine');index;size:20;not null" json:"category"`
	UnitOfMeasure      string          `gorm:"size:20;not null;default:'unit'" json:"unit_of_measure"`
	SalesPrice         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sales_price"`
	StandardCost       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"standard_cost"`
	InventoryAccountId int             `gorm:"not null" json:"inventory_account_id"`
	SalesAccountId     int             `gorm:"not null" json:"sales_account_id"`
	Description        string          `gorm:"type:text" json:"description"`
	IsActive           *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name          string          `json:"name" validate:"required"`
	Sku           string          `json:"sku"`
	Category      ProductCategory `json:"category" validate:"required,oneof=RawMilk FinishedGood Feed Medicine"`
	UnitOfMeasure string          `json:"unit_of_measure"`
	SalesPrice    decimal.Decimal `json:"sales_price"`
	StandardCost  decimal.Decimal `json:"standard_cost"`
	Description   string          `json:"description"`
}

func (p *Product) GetId() int {
	return p.ID
}

// inventoryAccountCode maps a product category to its inventory asset leaf.
func inventoryAccountCode(category ProductCategory) string {
	switch category {
	case ProductCategoryRawMilk:
		return AccountCodeRawMilkInventory
	case ProductCategoryFinishedGood:
		return AccountCodeFinishedGoodsInventory
	case ProductCategoryFeed:
		return AccountCodeFeedInventory
	case ProductCategoryMedicine:
		return AccountCodeMedicineInventory
	}
	return AccountCodeInventoryAssets
}

func (input *NewProduct) validate(ctx context.Context, farmId string, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.SalesPrice.IsNegative() || input.StandardCost.IsNegative() {
		return utils.NewValidationError("sales price and standard cost must not be negative")
	}
	if id > 0 {
		if err := utils.ValidateResourceId[Product](ctx, farmId, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateUnique[Product](ctx, farmId, "name", input.Name, id); err != nil {
		return err
	}
	if input.Sku != "" {
		if err := utils.ValidateUnique[Product](ctx, farmId, "sku", input.Sku, id); err != nil {
			return err
		}
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	if err := input.validate(ctx, farmId, 0); err != nil {
		return nil, err
	}

	sysAccounts, err := GetSystemAccounts(farmId)
	if err != nil {
		return nil, err
	}
	inventoryAccountId, ok := sysAccounts[inventoryAccountCode(input.Category)]
	if !ok {
		return nil, utils.NewConsistencyError("inventory account for category %s is missing; farm setup incomplete", input.Category)
	}
	salesAccountId, ok := sysAccounts[AccountCodeDairySales]
	if !ok {
		return nil, utils.NewConsistencyError("sales account is missing; farm setup incomplete")
	}

	unit := input.UnitOfMeasure
	if unit == "" {
		unit = "unit"
	}

	product := Product{
		FarmId:             farmId,
		Name:               input.Name,
		Sku:                input.Sku,
		Category:           input.Category,
		UnitOfMeasure:      unit,
		SalesPrice:         input.SalesPrice,
		StandardCost:       input.StandardCost,
		InventoryAccountId: inventoryAccountId,
		SalesAccountId:     salesAccountId,
		Description:        input.Description,
		IsActive:           utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	if err := input.validate(ctx, farmId, id); err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[Product](ctx, farmId, id)
	if err != nil {
		return nil, err
	}
	if product.Category != input.Category {
		// movements already posted against the old inventory account
		return nil, utils.NewValidationError("product category cannot be changed after creation")
	}

	product.Name = input.Name
	product.Sku = input.Sku
	product.UnitOfMeasure = input.UnitOfMeasure
	product.SalesPrice = input.SalesPrice
	product.StandardCost = input.StandardCost
	product.Description = input.Description

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}
	return utils.FetchModel[Product](ctx, farmId, id)
}

func GetProducts(ctx context.Context, category *ProductCategory) ([]*Product, error) {

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("farm_id = ?", farmId)
	if category != nil {
		dbCtx = dbCtx.Where("category = ?", *category)
	}
	var results []*Product
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
