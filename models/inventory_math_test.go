package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/thazinfarms/dairybooks_backend/utils"
)

func TestApplyValuationDeltaWithdrawKeepsAverage(t *testing.T) {
	v := &InventoryValuation{
		ProductId:   1,
		Qty:         decimal.NewFromInt(100),
		AverageCost: decimal.NewFromInt(2),
		TotalCost:   decimal.NewFromInt(200),
	}

	if err := applyValuationDelta(v, decimal.NewFromInt(-30), decimal.NewFromInt(-60)); err != nil {
		t.Fatalf("applyValuationDelta: %v", err)
	}
	if !v.Qty.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected qty=70; got %s", v.Qty)
	}
	if !v.TotalCost.Equal(decimal.NewFromInt(140)) {
		t.Fatalf("expected total=140; got %s", v.TotalCost)
	}
	if !v.AverageCost.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected avg=2; got %s", v.AverageCost)
	}
	if err := checkValuationInvariant(v); err != nil {
		t.Fatalf("invariant after withdraw: %v", err)
	}
}

func TestApplyValuationDeltaRepricesOnReceipt(t *testing.T) {
	v := &InventoryValuation{
		ProductId:   1,
		Qty:         decimal.NewFromInt(100),
		AverageCost: decimal.NewFromInt(2),
		TotalCost:   decimal.NewFromInt(200),
	}

	// receive 50 at 2.60 each
	if err := applyValuationDelta(v, decimal.NewFromInt(50), decimal.NewFromInt(130)); err != nil {
		t.Fatalf("applyValuationDelta: %v", err)
	}
	if !v.Qty.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected qty=150; got %s", v.Qty)
	}
	if !v.TotalCost.Equal(decimal.NewFromInt(330)) {
		t.Fatalf("expected total=330; got %s", v.TotalCost)
	}
	expectedAvg := decimal.NewFromFloat(2.2)
	if v.AverageCost.Sub(expectedAvg).Abs().GreaterThan(costTolerance) {
		t.Fatalf("expected avg=2.2; got %s", v.AverageCost)
	}
}

func TestApplyValuationDeltaInsufficientStock(t *testing.T) {
	v := &InventoryValuation{
		ProductId:   7,
		Qty:         decimal.NewFromInt(10),
		AverageCost: decimal.NewFromInt(3),
		TotalCost:   decimal.NewFromInt(30),
	}

	err := applyValuationDelta(v, decimal.NewFromInt(-11), decimal.NewFromInt(-33))
	if !utils.IsConflictError(err) {
		t.Fatalf("expected conflict error; got %v", err)
	}
	// record must be untouched on rejection
	if !v.Qty.Equal(decimal.NewFromInt(10)) || !v.TotalCost.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("record mutated on rejected withdrawal: qty=%s total=%s", v.Qty, v.TotalCost)
	}
}

func TestApplyValuationDeltaRejectsPhantomCostWithdrawal(t *testing.T) {
	// a record seeded by uncosted intake holds qty but no cost; withdrawing
	// an estimated cost from it must not drive the valuation negative
	v := &InventoryValuation{
		ProductId:   9,
		Qty:         decimal.NewFromInt(30),
		AverageCost: decimal.Zero,
		TotalCost:   decimal.Zero,
	}

	err := applyValuationDelta(v, decimal.NewFromInt(-20), decimal.NewFromInt(-40))
	if !utils.IsConsistencyError(err) {
		t.Fatalf("expected consistency error; got %v", err)
	}
	if !v.Qty.Equal(decimal.NewFromInt(30)) || !v.AverageCost.IsZero() || !v.TotalCost.IsZero() {
		t.Fatalf("record mutated on rejected withdrawal: qty=%s avg=%s total=%s", v.Qty, v.AverageCost, v.TotalCost)
	}
}

func TestApplyValuationDeltaZeroQtyResetsCosts(t *testing.T) {
	v := &InventoryValuation{
		ProductId:   2,
		Qty:         decimal.NewFromInt(3),
		AverageCost: decimal.RequireFromString("3.3333"),
		TotalCost:   decimal.RequireFromString("9.9999"),
	}

	// withdraw everything; the residual 0.0001 must not survive as cost
	if err := applyValuationDelta(v, decimal.NewFromInt(-3), decimal.RequireFromString("-10.0000")); err != nil {
		t.Fatalf("applyValuationDelta: %v", err)
	}
	if !v.Qty.IsZero() || !v.AverageCost.IsZero() || !v.TotalCost.IsZero() {
		t.Fatalf("expected full reset at zero qty; got qty=%s avg=%s total=%s", v.Qty, v.AverageCost, v.TotalCost)
	}
}

func TestCheckValuationInvariantDetectsDrift(t *testing.T) {
	v := &InventoryValuation{
		ProductId:   3,
		Qty:         decimal.NewFromInt(10),
		AverageCost: decimal.NewFromInt(2),
		TotalCost:   decimal.NewFromInt(25),
	}
	if err := checkValuationInvariant(v); !utils.IsConsistencyError(err) {
		t.Fatalf("expected consistency error; got %v", err)
	}
}
