package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// cogsWindowDays is the trailing window used when a unit cost has to be
// estimated from feed and treatment spend instead of inventory valuation.
const cogsWindowDays = 30

// estimateUnitCostFromTotals derives a per-unit cost from window totals.
// Zero output volume (mid-batch, or no producing cattle) falls back to
// fallbackCost rather than dividing by zero.
func estimateUnitCostFromTotals(feedCost, treatmentCost, volume, fallbackCost decimal.Decimal) decimal.Decimal {
	if volume.IsZero() || volume.IsNegative() {
		return fallbackCost
	}
	return feedCost.Add(treatmentCost).Div(volume)
}

// EstimateUnitCost computes a best-effort per-unit cost for a produced
// product (raw milk) over [windowStart, windowEnd]: the feed and completed
// treatment spend of the cattle producing it, divided by their output volume
// in the same window. Feed and medicine are valued at their current average
// cost at call time. The estimate is read-only and recomputed fresh on every
// call; nothing it reads is cached or mutated.
func EstimateUnitCost(tx *gorm.DB, farmId string, productId int, windowStart time.Time, windowEnd time.Time, fallbackCost decimal.Decimal) (decimal.Decimal, error) {

	var cattleIds []int
	if err := tx.Model(&Cattle{}).
		Where("farm_id = ? AND product_id = ?", farmId, productId).
		Pluck("id", &cattleIds).Error; err != nil {
		return decimal.Zero, err
	}
	if len(cattleIds) == 0 {
		return fallbackCost, nil
	}

	args := map[string]interface{}{
		"farmId":      farmId,
		"cattleIds":   cattleIds,
		"windowStart": windowStart,
		"windowEnd":   windowEnd,
	}

	var feedCost decimal.NullDecimal
	feedSQL := `
	SELECT SUM(fu.qty * v.average_cost)
	FROM feed_usages fu
	JOIN inventory_valuations v
	  ON v.farm_id = fu.farm_id AND v.product_id = fu.product_id
	WHERE fu.farm_id = @farmId
	  AND fu.cattle_id IN @cattleIds
	  AND fu.usage_date BETWEEN @windowStart AND @windowEnd
	`
	if err := tx.Raw(feedSQL, args).Scan(&feedCost).Error; err != nil {
		return decimal.Zero, err
	}

	// one medicine unit per completed event
	var treatmentCost decimal.NullDecimal
	treatmentSQL := `
	SELECT SUM(v.average_cost)
	FROM health_events he
	JOIN inventory_valuations v
	  ON v.farm_id = he.farm_id AND v.product_id = he.product_id
	WHERE he.farm_id = @farmId
	  AND he.cattle_id IN @cattleIds
	  AND he.status = 'Completed'
	  AND he.event_date BETWEEN @windowStart AND @windowEnd
	`
	if err := tx.Raw(treatmentSQL, args).Scan(&treatmentCost).Error; err != nil {
		return decimal.Zero, err
	}

	var volume decimal.NullDecimal
	volumeSQL := `
	SELECT SUM(qty)
	FROM milk_productions
	WHERE farm_id = @farmId
	  AND cattle_id IN @cattleIds
	  AND production_date BETWEEN @windowStart AND @windowEnd
	`
	if err := tx.Raw(volumeSQL, args).Scan(&volume).Error; err != nil {
		return decimal.Zero, err
	}

	feed := decimal.Zero
	if feedCost.Valid {
		feed = feedCost.Decimal
	}
	treatment := decimal.Zero
	if treatmentCost.Valid {
		treatment = treatmentCost.Decimal
	}
	vol := decimal.Zero
	if volume.Valid {
		vol = volume.Decimal
	}

	return estimateUnitCostFromTotals(feed, treatment, vol, fallbackCost), nil
}
