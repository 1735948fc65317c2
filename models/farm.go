package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thazinfarms/dairybooks_backend/utils"
	"gorm.io/gorm"
)

// Farm is the tenant. Every other row carries its id.
type Farm struct {
	ID        uuid.UUID `gorm:"type:char(36);primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Address   string    `gorm:"type:text" json:"address"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewFarm struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (f *Farm) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// CreateFarm registers the tenant and seeds its default chart of accounts in
// one unit of work.
func CreateFarm(ctx context.Context, input *NewFarm) (*Farm, error) {

	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, err
		}
	}

	farm := Farm{
		Name:     input.Name,
		Email:    input.Email,
		Phone:    input.Phone,
		Address:  input.Address,
		IsActive: utils.NewTrue(),
	}

	err := RunAtomic(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&farm).Error; err != nil {
			return err
		}
		return CreateDefaultAccounts(tx, ctx, farm.ID.String())
	})
	if err != nil {
		return nil, err
	}
	return &farm, nil
}

func GetFarm(ctx context.Context) (*Farm, error) {
	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	db := configDB(ctx)
	if db == nil {
		return nil, ErrDBNotInitialized
	}
	var farm Farm
	if err := db.First(&farm, "id = ?", farmId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &farm, nil
}
