package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thazinfarms/dairybooks_backend/config"
	"github.com/thazinfarms/dairybooks_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HealthEvent is a vaccination or treatment of one head of cattle. Each
// completed event consumes one unit of the linked medicine product at its
// average cost at completion time.
type HealthEvent struct {
	ID        int               `gorm:"primary_key" json:"id"`
	FarmId    string            `gorm:"index;not null" json:"farm_id"`
	CattleId  int               `gorm:"index;not null" json:"cattle_id"`
	ProductId int               `gorm:"index;not null" json:"product_id"`
	EventType string            `gorm:"size:50;not null" json:"event_type"`
	Status    HealthEventStatus `gorm:"type:enum('Scheduled','Completed');default:'Scheduled';index;size:20;not null" json:"status"`
	UnitCost  decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	EventDate time.Time         `gorm:"index;not null" json:"event_date"`
	Notes     string            `gorm:"type:text" json:"notes"`
	CreatedAt time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewHealthEvent struct {
	CattleId  int       `json:"cattle_id" validate:"required"`
	ProductId int       `json:"product_id" validate:"required"`
	EventType string    `json:"event_type" validate:"required"`
	EventDate time.Time `json:"event_date" validate:"required"`
	Notes     string    `json:"notes"`
}

func (h *HealthEvent) GetId() int {
	return h.ID
}

func (input *NewHealthEvent) validate(ctx context.Context, farmId string) (*Product, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Cattle](ctx, farmId, input.CattleId); err != nil {
		return nil, err
	}
	product, err := utils.FetchModel[Product](ctx, farmId, input.ProductId)
	if err != nil {
		return nil, err
	}
	if product.Category != ProductCategoryMedicine {
		return nil, utils.NewValidationError("product %s is not medicine", product.Name)
	}
	return product, nil
}

// RecordHealthEvent schedules a treatment. No inventory or ledger movement
// happens until the event completes.
func RecordHealthEvent(ctx context.Context, input *NewHealthEvent) (*HealthEvent, error) {

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	if _, err := input.validate(ctx, farmId); err != nil {
		return nil, err
	}

	event := HealthEvent{
		FarmId:    farmId,
		CattleId:  input.CattleId,
		ProductId: input.ProductId,
		EventType: input.EventType,
		Status:    HealthEventStatusScheduled,
		EventDate: input.EventDate,
		Notes:     input.Notes,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// CompleteHealthEvent marks a scheduled event done and posts its effect: one
// unit of the medicine leaves inventory at the current average cost,
// veterinary expense rises by that cost. Completing twice is a conflict.
func CompleteHealthEvent(ctx context.Context, id int) (*HealthEvent, error) {
	logger := config.GetLogger()

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	lock, err := utils.FarmLock(ctx, farmId, "posting", "Models", "CompleteHealthEvent")
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release(ctx) }()

	one := decimal.NewFromInt(1)
	var event HealthEvent
	err = RunAtomic(ctx, func(tx *gorm.DB) error {
		// authoritative locked read; a concurrent complete serializes here
		// and then hits the already-completed conflict
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("farm_id = ?", farmId).
			First(&event, id).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if event.Status == HealthEventStatusCompleted {
			return utils.NewConflictError("health event", id, "already completed")
		}

		var product Product
		if err := tx.Where("farm_id = ?", farmId).First(&product, event.ProductId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		v, err := fetchValuationForUpdate(tx, farmId, event.ProductId)
		if err != nil {
			return err
		}
		event.UnitCost = v.AverageCost

		if _, err := ApplyInventoryDelta(tx, farmId, event.ProductId, one.Neg(), event.UnitCost.Neg()); err != nil {
			return err
		}

		event.Status = HealthEventStatusCompleted
		if err := tx.Save(&event).Error; err != nil {
			return err
		}

		sysAccounts, err := GetSystemAccounts(farmId)
		if err != nil {
			return err
		}
		if err := PostAccountDelta(tx, farmId, sysAccounts[AccountCodeVeterinaryExpense],
			event.UnitCost, ReferenceTypeHealthEvent, event.ID, "Treatment: "+event.EventType); err != nil {
			return err
		}
		return PostAccountDelta(tx, farmId, product.InventoryAccountId,
			event.UnitCost.Neg(), ReferenceTypeHealthEvent, event.ID, "Treatment: "+event.EventType)
	})
	if err != nil {
		config.LogError(logger, "Models", "CompleteHealthEvent", "Cannot complete health event", id, err)
		return nil, err
	}
	return &event, nil
}

func GetHealthEvent(ctx context.Context, id int) (*HealthEvent, error) {
	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}
	return utils.FetchModel[HealthEvent](ctx, farmId, id)
}

func GetHealthEvents(ctx context.Context, cattleId *int) ([]*HealthEvent, error) {

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("farm_id = ?", farmId)
	if cattleId != nil {
		dbCtx = dbCtx.Where("cattle_id = ?", *cattleId)
	}
	var results []*HealthEvent
	if err := dbCtx.Order("event_date DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
