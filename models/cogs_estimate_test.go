package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestEstimateUnitCostFromTotals(t *testing.T) {
	got := estimateUnitCostFromTotals(
		decimal.NewFromInt(300), // feed
		decimal.NewFromInt(60),  // treatments
		decimal.NewFromInt(120), // volume
		decimal.NewFromInt(9),   // fallback
	)
	if !got.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected 3; got %s", got)
	}
}

func TestEstimateUnitCostFromTotalsFallsBack(t *testing.T) {
	fallback := decimal.RequireFromString("2.5")

	got := estimateUnitCostFromTotals(decimal.NewFromInt(300), decimal.NewFromInt(60), decimal.Zero, fallback)
	if !got.Equal(fallback) {
		t.Fatalf("zero volume: expected fallback %s; got %s", fallback, got)
	}

	got = estimateUnitCostFromTotals(decimal.Zero, decimal.Zero, decimal.NewFromInt(-1), fallback)
	if !got.Equal(fallback) {
		t.Fatalf("negative volume: expected fallback %s; got %s", fallback, got)
	}
}
