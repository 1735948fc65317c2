package models

import (
	"context"
	"time"

	"github.com/thazinfarms/dairybooks_backend/config"
	"github.com/thazinfarms/dairybooks_backend/utils"
)

// Cattle is a producing unit. ProductId links it to the raw milk product it
// produces; cost estimation groups feed and treatment spend by that link.
type Cattle struct {
	ID        int        `gorm:"primary_key" json:"id"`
	FarmId    string     `gorm:"index;not null" json:"farm_id"`
	TagNo     string     `gorm:"index;size:50;not null" json:"tag_no"`
	Name      string     `gorm:"size:100" json:"name"`
	Breed     string     `gorm:"size:100" json:"breed"`
	ProductId int        `gorm:"index;not null" json:"product_id"`
	BirthDate *time.Time `json:"birth_date"`
	IsActive  *bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCattle struct {
	TagNo     string     `json:"tag_no" validate:"required"`
	Name      string     `json:"name"`
	Breed     string     `json:"breed"`
	ProductId int        `json:"product_id" validate:"required"`
	BirthDate *time.Time `json:"birth_date"`
}

func (c *Cattle) GetId() int {
	return c.ID
}

func (input *NewCattle) validate(ctx context.Context, farmId string, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if id > 0 {
		if err := utils.ValidateResourceId[Cattle](ctx, farmId, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateUnique[Cattle](ctx, farmId, "tag_no", input.TagNo, id); err != nil {
		return err
	}
	product, err := utils.FetchModel[Product](ctx, farmId, input.ProductId)
	if err != nil {
		return err
	}
	if product.Category != ProductCategoryRawMilk {
		return utils.NewValidationError("cattle must produce a raw milk product, got %s", product.Category)
	}
	return nil
}

func CreateCattle(ctx context.Context, input *NewCattle) (*Cattle, error) {

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	if err := input.validate(ctx, farmId, 0); err != nil {
		return nil, err
	}

	cattle := Cattle{
		FarmId:    farmId,
		TagNo:     input.TagNo,
		Name:      input.Name,
		Breed:     input.Breed,
		ProductId: input.ProductId,
		BirthDate: input.BirthDate,
		IsActive:  utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&cattle).Error; err != nil {
		return nil, err
	}
	return &cattle, nil
}

func UpdateCattle(ctx context.Context, id int, input *NewCattle) (*Cattle, error) {

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	if err := input.validate(ctx, farmId, id); err != nil {
		return nil, err
	}

	cattle, err := utils.FetchModel[Cattle](ctx, farmId, id)
	if err != nil {
		return nil, err
	}

	cattle.TagNo = input.TagNo
	cattle.Name = input.Name
	cattle.Breed = input.Breed
	cattle.ProductId = input.ProductId
	cattle.BirthDate = input.BirthDate

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(cattle).Error; err != nil {
		return nil, err
	}
	return cattle, nil
}

func GetCattle(ctx context.Context, id int) (*Cattle, error) {
	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}
	return utils.FetchModel[Cattle](ctx, farmId, id)
}

func GetCattleList(ctx context.Context) ([]*Cattle, error) {
	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}
	return utils.FetchAllModels[Cattle](ctx, farmId)
}
