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

// Bill is a supplier purchase of stocked products (feed, medicine). Approval
// receives each line into inventory at the billed unit cost, which reprices
// the product's weighted average, and raises accounts payable by the bill
// total. Line costs come from the supplier, so no snapshotting is needed;
// rejection after approval withdraws exactly what was received.
type Bill struct {
	ID            int             `gorm:"primary_key" json:"id"`
	FarmId        string          `gorm:"index;not null" json:"farm_id"`
	SequenceNo    int64           `gorm:"index;not null" json:"sequence_no"`
	BillNo        string          `gorm:"index;size:20;not null" json:"bill_no"`
	SupplierId    int             `gorm:"index;not null" json:"supplier_id"`
	BillDate      time.Time       `gorm:"index;not null" json:"bill_date"`
	Status        ApprovalStatus  `gorm:"type:enum('Pending','Approved','Rejected');default:'Pending';index;size:20;not null" json:"status"`
	EffectApplied *bool           `gorm:"not null;default:false" json:"effect_applied"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Notes         string          `gorm:"type:text" json:"notes"`
	Details       []BillDetail    `gorm:"foreignKey:BillId" json:"details"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type BillDetail struct {
	ID        int             `gorm:"primary_key" json:"id"`
	FarmId    string          `gorm:"index;not null" json:"farm_id"`
	BillId    int             `gorm:"index;not null" json:"bill_id"`
	ProductId int             `gorm:"index;not null" json:"product_id"`
	Qty       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	UnitCost  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_cost"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBill struct {
	SupplierId int             `json:"supplier_id" validate:"required"`
	BillDate   time.Time       `json:"bill_date" validate:"required"`
	Notes      string          `json:"notes"`
	Details    []NewBillDetail `json:"details" validate:"required,min=1,dive"`
}

type NewBillDetail struct {
	ProductId int             `json:"product_id" validate:"required"`
	Qty       decimal.Decimal `json:"qty" validate:"required"`
	UnitCost  decimal.Decimal `json:"unit_cost" validate:"required"`
}

func (b *Bill) GetId() int {
	return b.ID
}

func (input *NewBill) validate(ctx context.Context, farmId string) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := utils.ValidateResourceId[Supplier](ctx, farmId, input.SupplierId); err != nil {
		return err
	}
	productIds := make([]int, 0, len(input.Details))
	for _, detail := range input.Details {
		if !detail.Qty.IsPositive() {
			return utils.NewValidationError("line quantity must be positive")
		}
		if detail.UnitCost.IsNegative() {
			return utils.NewValidationError("unit cost must not be negative")
		}
		productIds = append(productIds, detail.ProductId)
	}
	return utils.ValidateResourcesId[Product](ctx, farmId, productIds)
}

func CreateBill(ctx context.Context, input *NewBill) (*Bill, error) {
	logger := config.GetLogger()

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	if err := input.validate(ctx, farmId); err != nil {
		return nil, err
	}

	seqNo, err := utils.GetSequence[Bill](ctx, farmId)
	if err != nil {
		config.LogError(logger, "Models", "CreateBill", "Cannot get sequence", farmId, err)
		return nil, err
	}

	bill := Bill{
		FarmId:        farmId,
		SequenceNo:    seqNo,
		BillNo:        fmt.Sprintf("BL-%05d", seqNo),
		SupplierId:    input.SupplierId,
		BillDate:      input.BillDate,
		Status:        ApprovalStatusPending,
		EffectApplied: utils.NewFalse(),
		Notes:         input.Notes,
	}

	total := decimal.Zero
	for _, detail := range input.Details {
		amount := detail.Qty.Mul(detail.UnitCost)
		total = total.Add(amount)
		bill.Details = append(bill.Details, BillDetail{
			FarmId:    farmId,
			ProductId: detail.ProductId,
			Qty:       detail.Qty,
			UnitCost:  detail.UnitCost,
			Amount:    amount,
		})
	}
	bill.TotalAmount = total

	err = RunAtomic(ctx, func(tx *gorm.DB) error {
		return tx.Create(&bill).Error
	})
	if err != nil {
		config.LogError(logger, "Models", "CreateBill", "Cannot create bill", input, err)
		return nil, err
	}
	return &bill, nil
}

// UpdateBillStatus moves a bill through approval with the shared transition
// table. Approving twice is a conflict; rejecting a pending bill is a pure
// status change.
func UpdateBillStatus(ctx context.Context, id int, newStatus ApprovalStatus) (*Bill, error) {
	logger := config.GetLogger()

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	lock, err := utils.FarmLock(ctx, farmId, "posting", "Models", "UpdateBillStatus")
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release(ctx) }()

	var bill Bill
	err = RunAtomic(ctx, func(tx *gorm.DB) error {
		// authoritative locked read; a concurrent approve serializes here
		// and then fails the transition check
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Details").
			Where("farm_id = ?", farmId).
			First(&bill, id).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		action, err := nextApprovalEffect("bill", id, bill.Status, newStatus)
		if err != nil {
			return err
		}

		switch action {
		case effectActionApply:
			if err := applyBillEffect(tx, farmId, &bill); err != nil {
				return err
			}
		case effectActionReverse:
			if err := reverseBillEffect(tx, farmId, &bill); err != nil {
				return err
			}
		}
		bill.Status = newStatus
		return tx.Save(&bill).Error
	})
	if err != nil {
		config.LogError(logger, "Models", "UpdateBillStatus", "Cannot update bill status", id, err)
		return nil, err
	}
	return &bill, nil
}

func applyBillEffect(tx *gorm.DB, farmId string, bill *Bill) error {

	if bill.EffectApplied != nil && *bill.EffectApplied {
		return utils.NewConflictError("bill", bill.ID, "effect already applied")
	}

	sysAccounts, err := GetSystemAccounts(farmId)
	if err != nil {
		return err
	}

	for i := range bill.Details {
		detail := &bill.Details[i]

		var product Product
		if err := tx.Where("farm_id = ?", farmId).First(&product, detail.ProductId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		if _, err := ApplyInventoryDelta(tx, farmId, detail.ProductId,
			detail.Qty, detail.Amount); err != nil {
			return err
		}
		if err := PostAccountDelta(tx, farmId, product.InventoryAccountId,
			detail.Amount, ReferenceTypeBill, bill.ID, "Purchase "+bill.BillNo); err != nil {
			return err
		}
	}

	if err := PostAccountDelta(tx, farmId, sysAccounts[AccountCodeAccountsPayable],
		bill.TotalAmount, ReferenceTypeBill, bill.ID, "Purchase "+bill.BillNo); err != nil {
		return err
	}

	bill.EffectApplied = utils.NewTrue()
	return nil
}

func reverseBillEffect(tx *gorm.DB, farmId string, bill *Bill) error {

	if bill.EffectApplied == nil || !*bill.EffectApplied {
		return nil
	}

	sysAccounts, err := GetSystemAccounts(farmId)
	if err != nil {
		return err
	}

	for i := range bill.Details {
		detail := &bill.Details[i]

		var product Product
		if err := tx.Where("farm_id = ?", farmId).First(&product, detail.ProductId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		if _, err := ApplyInventoryDelta(tx, farmId, detail.ProductId,
			detail.Qty.Neg(), detail.Amount.Neg()); err != nil {
			return err
		}
		if err := PostAccountDelta(tx, farmId, product.InventoryAccountId,
			detail.Amount.Neg(), ReferenceTypeBill, bill.ID, "Reject "+bill.BillNo); err != nil {
			return err
		}
	}

	if err := PostAccountDelta(tx, farmId, sysAccounts[AccountCodeAccountsPayable],
		bill.TotalAmount.Neg(), ReferenceTypeBill, bill.ID, "Reject "+bill.BillNo); err != nil {
		return err
	}

	bill.EffectApplied = utils.NewFalse()
	return nil
}

func GetBill(ctx context.Context, id int) (*Bill, error) {
	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}
	return utils.FetchModel[Bill](ctx, farmId, id, "Details")
}

func GetBills(ctx context.Context, status *ApprovalStatus) ([]*Bill, error) {

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Details").Where("farm_id = ?", farmId)
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	var results []*Bill
	if err := dbCtx.Order("sequence_no DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
