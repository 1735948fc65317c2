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

// ProcessingBatch turns one input product (raw milk) into one or more output
// products. Completing the batch withdraws the input at its average cost and
// allocates that cost across the outputs in proportion to quantity; the
// allocated figures are stored on the batch so cancellation can reverse them
// exactly, regardless of how valuations moved since.
type ProcessingBatch struct {
	ID             int                     `gorm:"primary_key" json:"id"`
	FarmId         string                  `gorm:"index;not null" json:"farm_id"`
	SequenceNo     int64                   `gorm:"index;not null" json:"sequence_no"`
	BatchNo        string                  `gorm:"index;size:20;not null" json:"batch_no"`
	InputProductId int                     `gorm:"index;not null" json:"input_product_id"`
	InputQty       decimal.Decimal         `gorm:"type:decimal(20,4);not null" json:"input_qty"`
	InputUnitCost  decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"input_unit_cost"`
	InputTotalCost decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"input_total_cost"`
	Status         BatchStatus             `gorm:"type:enum('Pending','InProgress','Completed','Cancelled');default:'Pending';index;size:20;not null" json:"status"`
	EffectApplied  *bool                   `gorm:"not null;default:false" json:"effect_applied"`
	StartDate      time.Time               `gorm:"index;not null" json:"start_date"`
	Notes          string                  `gorm:"type:text" json:"notes"`
	Outputs        []ProcessingBatchOutput `gorm:"foreignKey:BatchId" json:"outputs"`
	CreatedAt      time.Time               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time               `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProcessingBatchOutput is one output line. AllocatedCost is written at
// completion and read back verbatim at cancellation.
type ProcessingBatchOutput struct {
	ID            int             `gorm:"primary_key" json:"id"`
	FarmId        string          `gorm:"index;not null" json:"farm_id"`
	BatchId       int             `gorm:"index;not null" json:"batch_id"`
	ProductId     int             `gorm:"index;not null" json:"product_id"`
	Qty           decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	AllocatedCost decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"allocated_cost"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProcessingBatch struct {
	InputProductId int              `json:"input_product_id" validate:"required"`
	InputQty       decimal.Decimal  `json:"input_qty" validate:"required"`
	StartDate      time.Time        `json:"start_date" validate:"required"`
	Notes          string           `json:"notes"`
	Outputs        []NewBatchOutput `json:"outputs" validate:"required,min=1,dive"`
}

type NewBatchOutput struct {
	ProductId int             `json:"product_id" validate:"required"`
	Qty       decimal.Decimal `json:"qty" validate:"required"`
}

func (b *ProcessingBatch) GetId() int {
	return b.ID
}

func (input *NewProcessingBatch) validate(ctx context.Context, farmId string) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if !input.InputQty.IsPositive() {
		return utils.NewValidationError("input quantity must be positive")
	}

	// structural checks first; a batch with a zero output line could never
	// allocate its cost, so it is rejected here rather than at completion
	outputIds := make([]int, 0, len(input.Outputs))
	for _, out := range input.Outputs {
		if !out.Qty.IsPositive() {
			return utils.NewValidationError("output quantity for product %d must be positive", out.ProductId)
		}
		if out.ProductId == input.InputProductId {
			return utils.NewValidationError("input product cannot also be an output")
		}
		outputIds = append(outputIds, out.ProductId)
	}
	if len(utils.UniqueSlice(outputIds)) != len(outputIds) {
		return utils.NewValidationError("duplicate output product")
	}

	inputProduct, err := utils.FetchModel[Product](ctx, farmId, input.InputProductId)
	if err != nil {
		return err
	}
	if inputProduct.Category != ProductCategoryRawMilk {
		return utils.NewValidationError("input product %s is not raw milk", inputProduct.Name)
	}
	return utils.ValidateResourcesId[Product](ctx, farmId, outputIds)
}

// CreateProcessingBatch registers a planned run in Pending status. Nothing
// moves through inventory or the ledger until the batch completes.
func CreateProcessingBatch(ctx context.Context, input *NewProcessingBatch) (*ProcessingBatch, error) {
	logger := config.GetLogger()

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	if err := input.validate(ctx, farmId); err != nil {
		return nil, err
	}

	seqNo, err := utils.GetSequence[ProcessingBatch](ctx, farmId)
	if err != nil {
		config.LogError(logger, "Models", "CreateProcessingBatch", "Cannot get sequence", farmId, err)
		return nil, err
	}

	batch := ProcessingBatch{
		FarmId:         farmId,
		SequenceNo:     seqNo,
		BatchNo:        fmt.Sprintf("PB-%05d", seqNo),
		InputProductId: input.InputProductId,
		InputQty:       input.InputQty,
		Status:         BatchStatusPending,
		EffectApplied:  utils.NewFalse(),
		StartDate:      input.StartDate,
		Notes:          input.Notes,
	}
	for _, out := range input.Outputs {
		batch.Outputs = append(batch.Outputs, ProcessingBatchOutput{
			FarmId:    farmId,
			ProductId: out.ProductId,
			Qty:       out.Qty,
		})
	}

	err = RunAtomic(ctx, func(tx *gorm.DB) error {
		return tx.Create(&batch).Error
	})
	if err != nil {
		config.LogError(logger, "Models", "CreateProcessingBatch", "Cannot create batch", input, err)
		return nil, err
	}
	return &batch, nil
}

// UpdateProcessingBatchStatus moves a batch through its lifecycle. The
// transition table decides whether the move is a pure status change, applies
// the batch effect, or reverses a previously applied one. Applying twice is
// a conflict; reversing a batch whose effect never applied is just a status
// change.
func UpdateProcessingBatchStatus(ctx context.Context, id int, newStatus BatchStatus) (*ProcessingBatch, error) {
	logger := config.GetLogger()

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	lock, err := utils.FarmLock(ctx, farmId, "posting", "Models", "UpdateProcessingBatchStatus")
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release(ctx) }()

	var batch ProcessingBatch
	err = RunAtomic(ctx, func(tx *gorm.DB) error {
		// the row lock makes this read authoritative: a concurrent caller
		// blocks here and then sees the already-updated status
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Outputs").
			Where("farm_id = ?", farmId).
			First(&batch, id).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		action, err := nextBatchEffect("processing batch", id, batch.Status, newStatus)
		if err != nil {
			return err
		}

		switch action {
		case effectActionApply:
			if err := applyBatchEffect(tx, farmId, &batch); err != nil {
				return err
			}
		case effectActionReverse:
			if err := reverseBatchEffect(tx, farmId, &batch); err != nil {
				return err
			}
		}
		batch.Status = newStatus
		return tx.Save(&batch).Error
	})
	if err != nil {
		config.LogError(logger, "Models", "UpdateProcessingBatchStatus", "Cannot update batch status", id, err)
		return nil, err
	}
	return &batch, nil
}

// applyBatchEffect books the completed run: the input leaves inventory at
// its average cost (estimated from the trailing window when no valuation
// exists yet), the cost is allocated across the outputs, and each output
// enters its own inventory at its allocated share. Ledger postings mirror
// the inventory moves account for account.
func applyBatchEffect(tx *gorm.DB, farmId string, batch *ProcessingBatch) error {

	if batch.EffectApplied != nil && *batch.EffectApplied {
		return utils.NewConflictError("processing batch", batch.ID, "effect already applied")
	}

	var inputProduct Product
	if err := tx.Where("farm_id = ?", farmId).First(&inputProduct, batch.InputProductId).Error; err != nil {
		return utils.ErrorRecordNotFound
	}

	v, err := fetchValuationForUpdate(tx, farmId, batch.InputProductId)
	if err != nil {
		return err
	}
	unitCost := v.AverageCost
	if unitCost.IsZero() {
		windowStart, windowEnd := utils.TrailingWindow(batch.StartDate, cogsWindowDays)
		unitCost, err = EstimateUnitCost(tx, farmId, batch.InputProductId, windowStart, windowEnd, inputProduct.StandardCost)
		if err != nil {
			return err
		}
	}
	batch.InputUnitCost = unitCost
	batch.InputTotalCost = batch.InputQty.Mul(unitCost)

	if _, err := ApplyInventoryDelta(tx, farmId, batch.InputProductId,
		batch.InputQty.Neg(), batch.InputTotalCost.Neg()); err != nil {
		return err
	}

	costs, err := AllocateProcessingCost(batch.InputTotalCost, outputSharesFromBatch(batch.Outputs))
	if err != nil {
		return err
	}

	if err := PostAccountDelta(tx, farmId, inputProduct.InventoryAccountId,
		batch.InputTotalCost.Neg(), ReferenceTypeProcessingBatch, batch.ID, "Processing "+batch.BatchNo); err != nil {
		return err
	}

	for i := range batch.Outputs {
		out := &batch.Outputs[i]
		out.AllocatedCost = costs[i]

		if _, err := ApplyInventoryDelta(tx, farmId, out.ProductId, out.Qty, out.AllocatedCost); err != nil {
			return err
		}
		if err := tx.Save(out).Error; err != nil {
			return err
		}

		var outProduct Product
		if err := tx.Where("farm_id = ?", farmId).First(&outProduct, out.ProductId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if err := PostAccountDelta(tx, farmId, outProduct.InventoryAccountId,
			out.AllocatedCost, ReferenceTypeProcessingBatch, batch.ID, "Processing "+batch.BatchNo); err != nil {
			return err
		}
	}

	batch.EffectApplied = utils.NewTrue()
	return nil
}

// reverseBatchEffect undoes a completed run from the originally recorded
// figures: outputs are withdrawn at their stored allocated costs and the
// input returns at its stored total cost. A batch whose effect never applied
// reverses to a pure status change.
func reverseBatchEffect(tx *gorm.DB, farmId string, batch *ProcessingBatch) error {

	if batch.EffectApplied == nil || !*batch.EffectApplied {
		return nil
	}

	for i := range batch.Outputs {
		out := &batch.Outputs[i]

		if _, err := ApplyInventoryDelta(tx, farmId, out.ProductId,
			out.Qty.Neg(), out.AllocatedCost.Neg()); err != nil {
			return err
		}

		var outProduct Product
		if err := tx.Where("farm_id = ?", farmId).First(&outProduct, out.ProductId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if err := PostAccountDelta(tx, farmId, outProduct.InventoryAccountId,
			out.AllocatedCost.Neg(), ReferenceTypeProcessingBatch, batch.ID, "Cancel "+batch.BatchNo); err != nil {
			return err
		}
	}

	if _, err := ApplyInventoryDelta(tx, farmId, batch.InputProductId,
		batch.InputQty, batch.InputTotalCost); err != nil {
		return err
	}

	var inputProduct Product
	if err := tx.Where("farm_id = ?", farmId).First(&inputProduct, batch.InputProductId).Error; err != nil {
		return utils.ErrorRecordNotFound
	}
	if err := PostAccountDelta(tx, farmId, inputProduct.InventoryAccountId,
		batch.InputTotalCost, ReferenceTypeProcessingBatch, batch.ID, "Cancel "+batch.BatchNo); err != nil {
		return err
	}

	batch.EffectApplied = utils.NewFalse()
	return nil
}

func GetProcessingBatch(ctx context.Context, id int) (*ProcessingBatch, error) {
	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}
	return utils.FetchModel[ProcessingBatch](ctx, farmId, id, "Outputs")
}

func GetProcessingBatches(ctx context.Context, status *BatchStatus) ([]*ProcessingBatch, error) {

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Outputs").Where("farm_id = ?", farmId)
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	var results []*ProcessingBatch
	if err := dbCtx.Order("sequence_no DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
