package models

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thazinfarms/dairybooks_backend/config"
	"github.com/thazinfarms/dairybooks_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryWriteOff removes spoiled or lost stock. Approval withdraws the
// quantity at the average cost of that moment and expenses it; the withdrawn
// cost is snapshotted so a later rejection restores exactly what left.
type InventoryWriteOff struct {
	ID            int             `gorm:"primary_key" json:"id"`
	FarmId        string          `gorm:"index;not null" json:"farm_id"`
	SequenceNo    int64           `gorm:"index;not null" json:"sequence_no"`
	WriteOffNo    string          `gorm:"index;size:20;not null" json:"write_off_no"`
	ProductId     int             `gorm:"index;not null" json:"product_id"`
	Qty           decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	TotalCost     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_cost"`
	Status        ApprovalStatus  `gorm:"type:enum('Pending','Approved','Rejected');default:'Pending';index;size:20;not null" json:"status"`
	EffectApplied *bool           `gorm:"not null;default:false" json:"effect_applied"`
	Reason        string          `gorm:"type:text;not null" json:"reason"`
	WriteOffDate  time.Time       `gorm:"index;not null" json:"write_off_date"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInventoryWriteOff struct {
	ProductId    int             `json:"product_id" validate:"required"`
	Qty          decimal.Decimal `json:"qty" validate:"required"`
	Reason       string          `json:"reason" validate:"required"`
	WriteOffDate time.Time       `json:"write_off_date" validate:"required"`
}

func (w *InventoryWriteOff) GetId() int {
	return w.ID
}

func (input *NewInventoryWriteOff) validate(ctx context.Context, farmId string) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if !input.Qty.IsPositive() {
		return utils.NewValidationError("quantity must be positive")
	}
	return utils.ValidateResourceId[Product](ctx, farmId, input.ProductId)
}

func CreateInventoryWriteOff(ctx context.Context, input *NewInventoryWriteOff) (*InventoryWriteOff, error) {
	logger := config.GetLogger()

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	if err := input.validate(ctx, farmId); err != nil {
		return nil, err
	}

	seqNo, err := utils.GetSequence[InventoryWriteOff](ctx, farmId)
	if err != nil {
		config.LogError(logger, "Models", "CreateInventoryWriteOff", "Cannot get sequence", farmId, err)
		return nil, err
	}

	writeOff := InventoryWriteOff{
		FarmId:        farmId,
		SequenceNo:    seqNo,
		WriteOffNo:    fmt.Sprintf("WO-%05d", seqNo),
		ProductId:     input.ProductId,
		Qty:           input.Qty,
		Status:        ApprovalStatusPending,
		EffectApplied: utils.NewFalse(),
		Reason:        input.Reason,
		WriteOffDate:  input.WriteOffDate,
	}

	err = RunAtomic(ctx, func(tx *gorm.DB) error {
		return tx.Create(&writeOff).Error
	})
	if err != nil {
		config.LogError(logger, "Models", "CreateInventoryWriteOff", "Cannot create write-off", input, err)
		return nil, err
	}
	return &writeOff, nil
}

// UpdateInventoryWriteOffStatus approves or rejects a write-off. Approval
// withdraws the stock and expenses it; double approval is a conflict.
func UpdateInventoryWriteOffStatus(ctx context.Context, id int, newStatus ApprovalStatus) (*InventoryWriteOff, error) {
	logger := config.GetLogger()

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	lock, err := utils.FarmLock(ctx, farmId, "posting", "Models", "UpdateInventoryWriteOffStatus")
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release(ctx) }()

	var writeOff InventoryWriteOff
	err = RunAtomic(ctx, func(tx *gorm.DB) error {
		// authoritative locked read; a concurrent approve serializes here
		// and then fails the transition check
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("farm_id = ?", farmId).
			First(&writeOff, id).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		action, err := nextApprovalEffect("write-off", id, writeOff.Status, newStatus)
		if err != nil {
			return err
		}

		switch action {
		case effectActionApply:
			if err := applyWriteOffEffect(tx, farmId, &writeOff); err != nil {
				return err
			}
		case effectActionReverse:
			if err := reverseWriteOffEffect(tx, farmId, &writeOff); err != nil {
				return err
			}
		}
		writeOff.Status = newStatus
		return tx.Save(&writeOff).Error
	})
	if err != nil {
		config.LogError(logger, "Models", "UpdateInventoryWriteOffStatus", "Cannot update write-off status", id, err)
		return nil, err
	}
	return &writeOff, nil
}

func applyWriteOffEffect(tx *gorm.DB, farmId string, writeOff *InventoryWriteOff) error {

	if writeOff.EffectApplied != nil && *writeOff.EffectApplied {
		return utils.NewConflictError("write-off", writeOff.ID, "effect already applied")
	}

	var product Product
	if err := tx.Where("farm_id = ?", farmId).First(&product, writeOff.ProductId).Error; err != nil {
		return utils.ErrorRecordNotFound
	}

	v, err := fetchValuationForUpdate(tx, farmId, writeOff.ProductId)
	if err != nil {
		return err
	}
	writeOff.UnitCost = v.AverageCost
	writeOff.TotalCost = writeOff.Qty.Mul(v.AverageCost)

	if _, err := ApplyInventoryDelta(tx, farmId, writeOff.ProductId,
		writeOff.Qty.Neg(), writeOff.TotalCost.Neg()); err != nil {
		return err
	}

	sysAccounts, err := GetSystemAccounts(farmId)
	if err != nil {
		return err
	}
	if err := PostAccountDelta(tx, farmId, sysAccounts[AccountCodeInventoryWriteOff],
		writeOff.TotalCost, ReferenceTypeWriteOff, writeOff.ID, "Write-off "+writeOff.WriteOffNo); err != nil {
		return err
	}
	if err := PostAccountDelta(tx, farmId, product.InventoryAccountId,
		writeOff.TotalCost.Neg(), ReferenceTypeWriteOff, writeOff.ID, "Write-off "+writeOff.WriteOffNo); err != nil {
		return err
	}

	writeOff.EffectApplied = utils.NewTrue()
	return nil
}

func reverseWriteOffEffect(tx *gorm.DB, farmId string, writeOff *InventoryWriteOff) error {

	if writeOff.EffectApplied == nil || !*writeOff.EffectApplied {
		return nil
	}

	var product Product
	if err := tx.Where("farm_id = ?", farmId).First(&product, writeOff.ProductId).Error; err != nil {
		return utils.ErrorRecordNotFound
	}

	if _, err := ApplyInventoryDelta(tx, farmId, writeOff.ProductId,
		writeOff.Qty, writeOff.TotalCost); err != nil {
		return err
	}

	sysAccounts, err := GetSystemAccounts(farmId)
	if err != nil {
		return err
	}
	if err := PostAccountDelta(tx, farmId, sysAccounts[AccountCodeInventoryWriteOff],
		writeOff.TotalCost.Neg(), ReferenceTypeWriteOff, writeOff.ID, "Reject "+writeOff.WriteOffNo); err != nil {
		return err
	}
	if err := PostAccountDelta(tx, farmId, product.InventoryAccountId,
		writeOff.TotalCost, ReferenceTypeWriteOff, writeOff.ID, "Reject "+writeOff.WriteOffNo); err != nil {
		return err
	}

	writeOff.EffectApplied = utils.NewFalse()
	return nil
}

func GetInventoryWriteOff(ctx context.Context, id int) (*InventoryWriteOff, error) {
	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}
	return utils.FetchModel[InventoryWriteOff](ctx, farmId, id)
}

func GetInventoryWriteOffs(ctx context.Context, status *ApprovalStatus) ([]*InventoryWriteOff, error) {

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("farm_id = ?", farmId)
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	var results []*InventoryWriteOff
	if err := dbCtx.Order("sequence_no DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
