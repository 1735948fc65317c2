package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thazinfarms/dairybooks_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// costTolerance is the rounding slack allowed on valuation invariants.
var costTolerance = decimal.New(1, -4)

// InventoryValuation is the per-product weighted-average valuation record:
// on-hand quantity, average unit cost and total recorded cost. It is created
// on the first movement of a product and mutated on every movement after
// that, only ever inside a unit of work.
type InventoryValuation struct {
	ID           int             `gorm:"primary_key" json:"id"`
	FarmId       string          `gorm:"index:idx_valuation_farm_product,unique;not null" json:"farm_id"`
	ProductId    int             `gorm:"index:idx_valuation_farm_product,unique;not null" json:"product_id"`
	Qty          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	AverageCost  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"average_cost"`
	TotalCost    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_cost"`
	ReorderLevel decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"reorder_level"`
	LastUpdated  time.Time       `json:"last_updated"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// applyValuationDelta applies a signed quantity/cost movement to a valuation
// record in place. Withdrawing below zero quantity is an insufficient-stock
// conflict; withdrawing more cost than the record holds while quantity stays
// positive is a consistency failure (the record never carried that cost).
// Both leave the record untouched. When quantity reaches zero both average
// and total cost reset to zero so rounding residue cannot linger as a
// negative cost on an empty product.
func applyValuationDelta(v *InventoryValuation, qtyDelta decimal.Decimal, costDelta decimal.Decimal) error {

	newQty := v.Qty.Add(qtyDelta)
	if newQty.IsNegative() {
		return utils.NewConflictError("product", v.ProductId,
			"insufficient stock: on hand %s, requested %s", v.Qty.String(), qtyDelta.Neg().String())
	}

	newTotal := v.TotalCost.Add(costDelta)
	if newTotal.IsNegative() && newQty.IsPositive() {
		return utils.NewConsistencyError("withdrawal cost %s exceeds recorded total cost %s for product %d",
			costDelta.Neg().String(), v.TotalCost.String(), v.ProductId)
	}
	if newQty.IsZero() {
		// deliberate reset, see doc comment
		v.Qty = decimal.Zero
		v.AverageCost = decimal.Zero
		v.TotalCost = decimal.Zero
	} else {
		v.Qty = newQty
		v.TotalCost = newTotal
		v.AverageCost = newTotal.Div(newQty)
	}
	v.LastUpdated = time.Now().UTC()
	return nil
}

func checkValuationInvariant(v *InventoryValuation) error {
	if v.Qty.IsZero() {
		return nil
	}
	expected := v.Qty.Mul(v.AverageCost)
	if v.TotalCost.Sub(expected).Abs().GreaterThan(costTolerance) {
		return utils.NewConsistencyError("valuation for product %d violates total=qty*avg: qty=%s avg=%s total=%s",
			v.ProductId, v.Qty.String(), v.AverageCost.String(), v.TotalCost.String())
	}
	return nil
}

// fetchOrDefaultValuation reads the valuation row inside tx, or returns a
// zero-valued unsaved record for the product's first movement.
func fetchOrDefaultValuation(tx *gorm.DB, farmId string, productId int) (*InventoryValuation, error) {
	var v InventoryValuation
	err := tx.Where("farm_id = ? AND product_id = ?", farmId, productId).First(&v).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		v = InventoryValuation{
			FarmId:      farmId,
			ProductId:   productId,
			Qty:         decimal.Zero,
			AverageCost: decimal.Zero,
			TotalCost:   decimal.Zero,
		}
	}
	return &v, nil
}

// fetchValuationForUpdate is fetchOrDefaultValuation with the row locked for
// the remainder of tx. Every posting path reads through this, so concurrent
// writers against the same product serialize on the row instead of
// overwriting each other's update.
func fetchValuationForUpdate(tx *gorm.DB, farmId string, productId int) (*InventoryValuation, error) {
	var v InventoryValuation
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("farm_id = ? AND product_id = ?", farmId, productId).First(&v).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		v = InventoryValuation{
			FarmId:      farmId,
			ProductId:   productId,
			Qty:         decimal.Zero,
			AverageCost: decimal.Zero,
			TotalCost:   decimal.Zero,
		}
	}
	return &v, nil
}

// ApplyInventoryDelta moves signed quantity and cost through a product's
// valuation record on the caller's tx, locking the row first. The record is
// upserted on first movement. Average cost is recomputed as total/qty on
// every movement.
func ApplyInventoryDelta(tx *gorm.DB, farmId string, productId int, qtyDelta decimal.Decimal, costDelta decimal.Decimal) (*InventoryValuation, error) {

	v, err := fetchValuationForUpdate(tx, farmId, productId)
	if err != nil {
		return nil, err
	}
	if err := applyValuationDelta(v, qtyDelta, costDelta); err != nil {
		return nil, err
	}
	if err := tx.Save(v).Error; err != nil {
		return nil, err
	}
	return v, nil
}

// SetInventoryAbsolute overwrites a product's valuation outright. Only manual
// corrective edits use this; the posting engine always moves deltas.
func SetInventoryAbsolute(tx *gorm.DB, farmId string, productId int, qty decimal.Decimal, averageCost decimal.Decimal, totalCost decimal.Decimal) (*InventoryValuation, error) {

	if qty.IsNegative() || averageCost.IsNegative() {
		return nil, utils.NewValidationError("quantity and average cost must not be negative")
	}

	v, err := fetchValuationForUpdate(tx, farmId, productId)
	if err != nil {
		return nil, err
	}
	v.Qty = qty
	v.AverageCost = averageCost
	v.TotalCost = totalCost
	if qty.IsZero() {
		v.AverageCost = decimal.Zero
		v.TotalCost = decimal.Zero
	}
	if err := checkValuationInvariant(v); err != nil {
		return nil, err
	}
	v.LastUpdated = time.Now().UTC()
	if err := tx.Save(v).Error; err != nil {
		return nil, err
	}
	return v, nil
}

// SetOpeningStock seeds a product's starting quantity and cost, balanced
// against opening balance equity. Only allowed while the product has no
// stock on hand; established valuations are corrected by movements, not
// overwrites.
func SetOpeningStock(ctx context.Context, productId int, qty decimal.Decimal, unitCost decimal.Decimal) (*InventoryValuation, error) {

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}
	if !qty.IsPositive() || unitCost.IsNegative() {
		return nil, utils.NewValidationError("quantity must be positive and unit cost must not be negative")
	}

	product, err := utils.FetchModel[Product](ctx, farmId, productId)
	if err != nil {
		return nil, err
	}

	lock, err := utils.FarmLock(ctx, farmId, "posting", "Models", "SetOpeningStock")
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release(ctx) }()

	var v *InventoryValuation
	err = RunAtomic(ctx, func(tx *gorm.DB) error {
		existing, err := fetchValuationForUpdate(tx, farmId, productId)
		if err != nil {
			return err
		}
		if !existing.Qty.IsZero() {
			return utils.NewConflictError("product", productId, "opening stock already set")
		}

		totalCost := qty.Mul(unitCost)
		v, err = SetInventoryAbsolute(tx, farmId, productId, qty, unitCost, totalCost)
		if err != nil {
			return err
		}

		sysAccounts, err := GetSystemAccounts(farmId)
		if err != nil {
			return err
		}
		if err := PostAccountDelta(tx, farmId, product.InventoryAccountId,
			totalCost, ReferenceTypeOpeningStock, productId, "Opening stock"); err != nil {
			return err
		}
		return PostAccountDelta(tx, farmId, sysAccounts[AccountCodeOpeningBalance],
			totalCost, ReferenceTypeOpeningStock, productId, "Opening stock")
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// GetInventoryValuation returns the valuation snapshot for one product.
// A product with no movements yet reads as all-zero.
func GetInventoryValuation(ctx context.Context, productId int) (*InventoryValuation, error) {
	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}
	if err := utils.ValidateResourceId[Product](ctx, farmId, productId); err != nil {
		return nil, err
	}

	db := configDB(ctx)
	if db == nil {
		return nil, ErrDBNotInitialized
	}
	return fetchOrDefaultValuation(db, farmId, productId)
}

// GetInventoryValuations lists every valuation record of the farm.
func GetInventoryValuations(ctx context.Context) ([]*InventoryValuation, error) {
	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}
	return utils.FetchAllModels[InventoryValuation](ctx, farmId)
}

// VerifyInventoryValuations re-checks total=qty*avg across the farm,
// returning a drift report for the maintenance tooling.
func VerifyInventoryValuations(ctx context.Context, farmId string) ([]string, error) {
	db := configDB(ctx)
	if db == nil {
		return nil, ErrDBNotInitialized
	}
	var rows []*InventoryValuation
	if err := db.Where("farm_id = ?", farmId).Find(&rows).Error; err != nil {
		return nil, err
	}
	var drift []string
	for _, v := range rows {
		if err := checkValuationInvariant(v); err != nil {
			drift = append(drift, err.Error())
		}
	}
	return drift, nil
}
