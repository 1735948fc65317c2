package models

import (
	"github.com/shopspring/decimal"
	"github.com/thazinfarms/dairybooks_backend/utils"
)

// OutputShare is one output product's slice of a processing run.
type OutputShare struct {
	ProductId int
	Qty       decimal.Decimal
}

// AllocateProcessingCost splits one consumed input's cost across the outputs
// in proportion to output quantity. The returned costs align with the input
// slice by index. The last output absorbs the rounding residual so the
// allocated costs always sum to inputCost exactly.
func AllocateProcessingCost(inputCost decimal.Decimal, outputs []OutputShare) ([]decimal.Decimal, error) {

	if len(outputs) == 0 {
		return nil, utils.NewValidationError("processing batch has no outputs")
	}

	totalQty := decimal.Zero
	for _, out := range outputs {
		if out.Qty.IsNegative() {
			return nil, utils.NewValidationError("output quantity for product %d must not be negative", out.ProductId)
		}
		totalQty = totalQty.Add(out.Qty)
	}
	if totalQty.IsZero() {
		return nil, utils.NewValidationError("total output quantity is zero")
	}

	costs := make([]decimal.Decimal, len(outputs))
	allocated := decimal.Zero
	for i, out := range outputs {
		if i == len(outputs)-1 {
			costs[i] = inputCost.Sub(allocated)
			break
		}
		share := out.Qty.Div(totalQty)
		costs[i] = inputCost.Mul(share).Round(4)
		allocated = allocated.Add(costs[i])
	}
	return costs, nil
}

// outputSharesFromBatch rebuilds allocation inputs from the batch's stored
// output rows. Cancellation reverses from these originally recorded
// quantities, never from current inventory state, so the inverse is exact.
func outputSharesFromBatch(outputs []ProcessingBatchOutput) []OutputShare {
	shares := make([]OutputShare, len(outputs))
	for i, out := range outputs {
		shares[i] = OutputShare{ProductId: out.ProductId, Qty: out.Qty}
	}
	return shares
}
