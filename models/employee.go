package models

import (
	"context"
	"time"

	"github.com/thazinfarms/dairybooks_backend/config"
	"github.com/thazinfarms/dairybooks_backend/utils"
)

// Employee identifies who recorded an event; no payroll here.
type Employee struct {
	ID        int       `gorm:"primary_key" json:"id"`
	FarmId    string    `gorm:"index;not null" json:"farm_id"`
	Name      string    `gorm:"index;size:100;not null" json:"name"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Role      string    `gorm:"size:50" json:"role"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewEmployee struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

func (e *Employee) GetId() int {
	return e.ID
}

func (input *NewEmployee) validate(ctx context.Context, farmId string, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return err
		}
	}
	if id > 0 {
		if err := utils.ValidateResourceId[Employee](ctx, farmId, id); err != nil {
			return err
		}
	}
	return utils.ValidateUnique[Employee](ctx, farmId, "name", input.Name, id)
}

func CreateEmployee(ctx context.Context, input *NewEmployee) (*Employee, error) {

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	if err := input.validate(ctx, farmId, 0); err != nil {
		return nil, err
	}

	employee := Employee{
		FarmId:   farmId,
		Name:     input.Name,
		Phone:    input.Phone,
		Role:     input.Role,
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&employee).Error; err != nil {
		return nil, err
	}
	return &employee, nil
}

func GetEmployee(ctx context.Context, id int) (*Employee, error) {
	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}
	return utils.FetchModel[Employee](ctx, farmId, id)
}

func GetEmployees(ctx context.Context) ([]*Employee, error) {
	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}
	return utils.FetchAllModels[Employee](ctx, farmId)
}
