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

// SalesInvoice sells stocked products to a customer. Approval withdraws each
// line from inventory at the average cost of that moment and books both the
// cost side (inventory down, cost of goods sold up) and the revenue side
// (receivable up, sales up). The withdrawn cost is snapshotted per line as
// ActualCost; rejection after approval reverses from those snapshots.
type SalesInvoice struct {
	ID            int                  `gorm:"primary_key" json:"id"`
	FarmId        string               `gorm:"index;not null" json:"farm_id"`
	SequenceNo    int64                `gorm:"index;not null" json:"sequence_no"`
	InvoiceNo     string               `gorm:"index;size:20;not null" json:"invoice_no"`
	CustomerId    int                  `gorm:"index;not null" json:"customer_id"`
	InvoiceDate   time.Time            `gorm:"index;not null" json:"invoice_date"`
	Status        ApprovalStatus       `gorm:"type:enum('Pending','Approved','Rejected');default:'Pending';index;size:20;not null" json:"status"`
	EffectApplied *bool                `gorm:"not null;default:false" json:"effect_applied"`
	TotalAmount   decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	TotalCost     decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"total_cost"`
	Notes         string               `gorm:"type:text" json:"notes"`
	Details       []SalesInvoiceDetail `gorm:"foreignKey:InvoiceId" json:"details"`
	CreatedAt     time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type SalesInvoiceDetail struct {
	ID         int             `gorm:"primary_key" json:"id"`
	FarmId     string          `gorm:"index;not null" json:"farm_id"`
	InvoiceId  int             `gorm:"index;not null" json:"invoice_id"`
	ProductId  int             `gorm:"index;not null" json:"product_id"`
	Qty        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	ActualCost decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"actual_cost"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSalesInvoice struct {
	CustomerId  int                     `json:"customer_id" validate:"required"`
	InvoiceDate time.Time               `json:"invoice_date" validate:"required"`
	Notes       string                  `json:"notes"`
	Details     []NewSalesInvoiceDetail `json:"details" validate:"required,min=1,dive"`
}

type NewSalesInvoiceDetail struct {
	ProductId int             `json:"product_id" validate:"required"`
	Qty       decimal.Decimal `json:"qty" validate:"required"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
}

func (s *SalesInvoice) GetId() int {
	return s.ID
}

func (input *NewSalesInvoice) validate(ctx context.Context, farmId string) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := utils.ValidateResourceId[Customer](ctx, farmId, input.CustomerId); err != nil {
		return err
	}
	productIds := make([]int, 0, len(input.Details))
	for _, detail := range input.Details {
		if !detail.Qty.IsPositive() {
			return utils.NewValidationError("line quantity must be positive")
		}
		if detail.UnitPrice.IsNegative() {
			return utils.NewValidationError("unit price must not be negative")
		}
		productIds = append(productIds, detail.ProductId)
	}
	return utils.ValidateResourcesId[Product](ctx, farmId, productIds)
}

// CreateSalesInvoice registers a pending invoice. Inventory and the ledger
// are untouched until approval.
func CreateSalesInvoice(ctx context.Context, input *NewSalesInvoice) (*SalesInvoice, error) {
	logger := config.GetLogger()

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	if err := input.validate(ctx, farmId); err != nil {
		return nil, err
	}

	seqNo, err := utils.GetSequence[SalesInvoice](ctx, farmId)
	if err != nil {
		config.LogError(logger, "Models", "CreateSalesInvoice", "Cannot get sequence", farmId, err)
		return nil, err
	}

	invoice := SalesInvoice{
		FarmId:        farmId,
		SequenceNo:    seqNo,
		InvoiceNo:     fmt.Sprintf("IV-%05d", seqNo),
		CustomerId:    input.CustomerId,
		InvoiceDate:   input.InvoiceDate,
		Status:        ApprovalStatusPending,
		EffectApplied: utils.NewFalse(),
		Notes:         input.Notes,
	}

	total := decimal.Zero
	for _, detail := range input.Details {
		amount := detail.Qty.Mul(detail.UnitPrice)
		total = total.Add(amount)
		invoice.Details = append(invoice.Details, SalesInvoiceDetail{
			FarmId:    farmId,
			ProductId: detail.ProductId,
			Qty:       detail.Qty,
			UnitPrice: detail.UnitPrice,
			Amount:    amount,
		})
	}
	invoice.TotalAmount = total

	err = RunAtomic(ctx, func(tx *gorm.DB) error {
		return tx.Create(&invoice).Error
	})
	if err != nil {
		config.LogError(logger, "Models", "CreateSalesInvoice", "Cannot create invoice", input, err)
		return nil, err
	}
	return &invoice, nil
}

// UpdateSalesInvoiceStatus moves an invoice through approval. Approving
// posts the full effect; approving an invoice whose effect already applied
// is a conflict. Rejecting a pending invoice is a pure status change,
// rejecting an approved one reverses from the stored line costs.
func UpdateSalesInvoiceStatus(ctx context.Context, id int, newStatus ApprovalStatus) (*SalesInvoice, error) {
	logger := config.GetLogger()

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	lock, err := utils.FarmLock(ctx, farmId, "posting", "Models", "UpdateSalesInvoiceStatus")
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release(ctx) }()

	var invoice SalesInvoice
	err = RunAtomic(ctx, func(tx *gorm.DB) error {
		// authoritative locked read; a concurrent approve serializes here
		// and then fails the transition check
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Details").
			Where("farm_id = ?", farmId).
			First(&invoice, id).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		action, err := nextApprovalEffect("sales invoice", id, invoice.Status, newStatus)
		if err != nil {
			return err
		}

		switch action {
		case effectActionApply:
			if err := applyInvoiceEffect(tx, farmId, &invoice); err != nil {
				return err
			}
		case effectActionReverse:
			if err := reverseInvoiceEffect(tx, farmId, &invoice); err != nil {
				return err
			}
		}
		invoice.Status = newStatus
		return tx.Save(&invoice).Error
	})
	if err != nil {
		config.LogError(logger, "Models", "UpdateSalesInvoiceStatus", "Cannot update invoice status", id, err)
		return nil, err
	}
	return &invoice, nil
}

func applyInvoiceEffect(tx *gorm.DB, farmId string, invoice *SalesInvoice) error {

	if invoice.EffectApplied != nil && *invoice.EffectApplied {
		return utils.NewConflictError("sales invoice", invoice.ID, "effect already applied")
	}

	sysAccounts, err := GetSystemAccounts(farmId)
	if err != nil {
		return err
	}

	totalCost := decimal.Zero
	for i := range invoice.Details {
		detail := &invoice.Details[i]

		var product Product
		if err := tx.Where("farm_id = ?", farmId).First(&product, detail.ProductId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		v, err := fetchValuationForUpdate(tx, farmId, detail.ProductId)
		if err != nil {
			return err
		}
		detail.ActualCost = detail.Qty.Mul(v.AverageCost)
		totalCost = totalCost.Add(detail.ActualCost)

		if _, err := ApplyInventoryDelta(tx, farmId, detail.ProductId,
			detail.Qty.Neg(), detail.ActualCost.Neg()); err != nil {
			return err
		}
		if err := tx.Save(detail).Error; err != nil {
			return err
		}

		if err := PostAccountDelta(tx, farmId, product.InventoryAccountId,
			detail.ActualCost.Neg(), ReferenceTypeSalesInvoice, invoice.ID, "Sale "+invoice.InvoiceNo); err != nil {
			return err
		}
		if err := PostAccountDelta(tx, farmId, sysAccounts[AccountCodeCostOfGoodsSold],
			detail.ActualCost, ReferenceTypeSalesInvoice, invoice.ID, "Sale "+invoice.InvoiceNo); err != nil {
			return err
		}
		if err := PostAccountDelta(tx, farmId, product.SalesAccountId,
			detail.Amount, ReferenceTypeSalesInvoice, invoice.ID, "Sale "+invoice.InvoiceNo); err != nil {
			return err
		}
	}

	if err := PostAccountDelta(tx, farmId, sysAccounts[AccountCodeAccountsReceivable],
		invoice.TotalAmount, ReferenceTypeSalesInvoice, invoice.ID, "Sale "+invoice.InvoiceNo); err != nil {
		return err
	}

	invoice.TotalCost = totalCost
	invoice.EffectApplied = utils.NewTrue()
	return nil
}

func reverseInvoiceEffect(tx *gorm.DB, farmId string, invoice *SalesInvoice) error {

	if invoice.EffectApplied == nil || !*invoice.EffectApplied {
		return nil
	}

	sysAccounts, err := GetSystemAccounts(farmId)
	if err != nil {
		return err
	}

	for i := range invoice.Details {
		detail := &invoice.Details[i]

		var product Product
		if err := tx.Where("farm_id = ?", farmId).First(&product, detail.ProductId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		if _, err := ApplyInventoryDelta(tx, farmId, detail.ProductId,
			detail.Qty, detail.ActualCost); err != nil {
			return err
		}

		if err := PostAccountDelta(tx, farmId, product.InventoryAccountId,
			detail.ActualCost, ReferenceTypeSalesInvoice, invoice.ID, "Reject "+invoice.InvoiceNo); err != nil {
			return err
		}
		if err := PostAccountDelta(tx, farmId, sysAccounts[AccountCodeCostOfGoodsSold],
			detail.ActualCost.Neg(), ReferenceTypeSalesInvoice, invoice.ID, "Reject "+invoice.InvoiceNo); err != nil {
			return err
		}
		if err := PostAccountDelta(tx, farmId, product.SalesAccountId,
			detail.Amount.Neg(), ReferenceTypeSalesInvoice, invoice.ID, "Reject "+invoice.InvoiceNo); err != nil {
			return err
		}
	}

	if err := PostAccountDelta(tx, farmId, sysAccounts[AccountCodeAccountsReceivable],
		invoice.TotalAmount.Neg(), ReferenceTypeSalesInvoice, invoice.ID, "Reject "+invoice.InvoiceNo); err != nil {
		return err
	}

	invoice.TotalCost = decimal.Zero
	invoice.EffectApplied = utils.NewFalse()
	return nil
}

func GetSalesInvoice(ctx context.Context, id int) (*SalesInvoice, error) {
	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}
	return utils.FetchModel[SalesInvoice](ctx, farmId, id, "Details")
}

func GetSalesInvoices(ctx context.Context, status *ApprovalStatus) ([]*SalesInvoice, error) {

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Details").Where("farm_id = ?", farmId)
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	var results []*SalesInvoice
	if err := dbCtx.Order("sequence_no DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
