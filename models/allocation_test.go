package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/thazinfarms/dairybooks_backend/utils"
)

func TestAllocateProcessingCostProportional(t *testing.T) {
	// 50 units in costing 100 total; outputs A:30, B:20
	costs, err := AllocateProcessingCost(decimal.NewFromInt(100), []OutputShare{
		{ProductId: 1, Qty: decimal.NewFromInt(30)},
		{ProductId: 2, Qty: decimal.NewFromInt(20)},
	})
	if err != nil {
		t.Fatalf("AllocateProcessingCost: %v", err)
	}
	if !costs[0].Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected A=60; got %s", costs[0])
	}
	if !costs[1].Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected B=40; got %s", costs[1])
	}
}

func TestAllocateProcessingCostConservesExactly(t *testing.T) {
	// thirds do not round cleanly; the last output absorbs the residual
	outputs := []OutputShare{
		{ProductId: 1, Qty: decimal.NewFromInt(1)},
		{ProductId: 2, Qty: decimal.NewFromInt(1)},
		{ProductId: 3, Qty: decimal.NewFromInt(1)},
	}
	inputCost := decimal.NewFromInt(100)

	costs, err := AllocateProcessingCost(inputCost, outputs)
	if err != nil {
		t.Fatalf("AllocateProcessingCost: %v", err)
	}

	sum := decimal.Zero
	for _, c := range costs {
		sum = sum.Add(c)
	}
	if !sum.Equal(inputCost) {
		t.Fatalf("allocation leaked: sum=%s input=%s", sum, inputCost)
	}
	for i, c := range costs {
		if c.Sub(decimal.RequireFromString("33.3333")).Abs().GreaterThan(decimal.RequireFromString("0.001")) {
			t.Fatalf("share %d far from a third: %s", i, c)
		}
	}
}

func TestAllocateProcessingCostRejectsBadOutputs(t *testing.T) {
	if _, err := AllocateProcessingCost(decimal.NewFromInt(10), nil); !utils.IsValidationError(err) {
		t.Fatalf("expected validation error for no outputs; got %v", err)
	}

	zeroTotal := []OutputShare{{ProductId: 1, Qty: decimal.Zero}}
	if _, err := AllocateProcessingCost(decimal.NewFromInt(10), zeroTotal); !utils.IsValidationError(err) {
		t.Fatalf("expected validation error for zero total qty; got %v", err)
	}

	negative := []OutputShare{
		{ProductId: 1, Qty: decimal.NewFromInt(5)},
		{ProductId: 2, Qty: decimal.NewFromInt(-1)},
	}
	if _, err := AllocateProcessingCost(decimal.NewFromInt(10), negative); !utils.IsValidationError(err) {
		t.Fatalf("expected validation error for negative qty; got %v", err)
	}
}
