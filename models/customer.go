package models

import (
	"context"
	"time"

	"github.com/thazinfarms/dairybooks_backend/config"
	"github.com/thazinfarms/dairybooks_backend/utils"
)

type Customer struct {
	ID        int       `gorm:"primary_key" json:"id"`
	FarmId    string    `gorm:"index;not null" json:"farm_id"`
	Name      string    `gorm:"index;size:100;not null" json:"name"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Email     string    `gorm:"size:100" json:"email"`
	Address   string    `gorm:"type:text" json:"address"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address"`
}

func (c *Customer) GetId() int {
	return c.ID
}

func (input *NewCustomer) validate(ctx context.Context, farmId string, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return err
		}
	}
	if id > 0 {
		if err := utils.ValidateResourceId[Customer](ctx, farmId, id); err != nil {
			return err
		}
	}
	return utils.ValidateUnique[Customer](ctx, farmId, "name", input.Name, id)
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	if err := input.validate(ctx, farmId, 0); err != nil {
		return nil, err
	}

	customer := Customer{
		FarmId:   farmId,
		Name:     input.Name,
		Phone:    input.Phone,
		Email:    input.Email,
		Address:  input.Address,
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func UpdateCustomer(ctx context.Context, id int, input *NewCustomer) (*Customer, error) {

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	if err := input.validate(ctx, farmId, id); err != nil {
		return nil, err
	}

	customer, err := utils.FetchModel[Customer](ctx, farmId, id)
	if err != nil {
		return nil, err
	}

	customer.Name = input.Name
	customer.Phone = input.Phone
	customer.Email = input.Email
	customer.Address = input.Address

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(customer).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}
	return utils.FetchModel[Customer](ctx, farmId, id)
}

func GetCustomers(ctx context.Context) ([]*Customer, error) {
	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}
	return utils.FetchAllModels[Customer](ctx, farmId)
}
