package models

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thazinfarms/dairybooks_backend/utils"
)

func TestNewProcessingBatchRejectsZeroOutputQty(t *testing.T) {
	input := &NewProcessingBatch{
		InputProductId: 1,
		InputQty:       decimal.NewFromInt(100),
		StartDate:      time.Now(),
		Outputs: []NewBatchOutput{
			{ProductId: 2, Qty: decimal.NewFromInt(0)},
		},
	}

	err := input.validate(context.Background(), "farm-1")
	if !utils.IsValidationError(err) {
		t.Fatalf("expected validation error for zero output qty; got %v", err)
	}
}

func TestNewProcessingBatchRejectsInputAsOutput(t *testing.T) {
	input := &NewProcessingBatch{
		InputProductId: 1,
		InputQty:       decimal.NewFromInt(100),
		StartDate:      time.Now(),
		Outputs: []NewBatchOutput{
			{ProductId: 1, Qty: decimal.NewFromInt(10)},
		},
	}

	err := input.validate(context.Background(), "farm-1")
	if !utils.IsValidationError(err) {
		t.Fatalf("expected validation error for input listed as output; got %v", err)
	}
}

func TestNewProcessingBatchRejectsDuplicateOutputs(t *testing.T) {
	input := &NewProcessingBatch{
		InputProductId: 1,
		InputQty:       decimal.NewFromInt(100),
		StartDate:      time.Now(),
		Outputs: []NewBatchOutput{
			{ProductId: 2, Qty: decimal.NewFromInt(10)},
			{ProductId: 2, Qty: decimal.NewFromInt(5)},
		},
	}

	err := input.validate(context.Background(), "farm-1")
	if !utils.IsValidationError(err) {
		t.Fatalf("expected validation error for duplicate output product; got %v", err)
	}
}
