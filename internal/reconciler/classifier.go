package reconciler

import (
	"fmt"

	"github.com/shopspring/decimal"

	"inventory-reconciliation-service/internal/models"
)

// Classifier assigns discrepancy levels to merged locations.
type Classifier struct {
	warning  decimal.Decimal
	critical decimal.Decimal
}

// NewClassifier creates a classifier with the given percentage thresholds.
func NewClassifier(warning, critical decimal.Decimal) (*Classifier, error) {
	if warning.IsNegative() || critical.LessThan(warning) {
		return nil, fmt.Errorf("invalid thresholds: warning %s, critical %s", warning, critical)
	}
	return &Classifier{warning: warning, critical: critical}, nil
}

// Classify returns the level of one merged location. Single-source
// locations are labelled by the side that has data; otherwise the absolute
// stock delta percentage is compared against the thresholds, inclusive at
// the lower bound of each band.
func (c *Classifier) Classify(row *models.MergedLocationRow) models.DiscrepancyLevel {
	switch {
	case row.HasB && !row.HasA:
		return models.DiscrepancyBOnly
	case row.HasA && !row.HasB:
		return models.DiscrepancyAOnly
	case !row.HasA && !row.HasB:
		return models.DiscrepancyOK
	}

	pct := row.Delta.StockDeltaPct.Abs()
	switch {
	case pct.GreaterThanOrEqual(c.critical):
		return models.DiscrepancyCritical
	case pct.GreaterThanOrEqual(c.warning):
		return models.DiscrepancyWarning
	default:
		return models.DiscrepancyOK
	}
}

// Rollup returns the item-level discrepancy: the most severe of CRITICAL,
// WARNING and OK among levels. A_ONLY and B_ONLY count as OK.
func Rollup(levels []models.DiscrepancyLevel) models.DiscrepancyLevel {
	overall := models.DiscrepancyOK
	for _, level := range levels {
		if level.Severity() > overall.Severity() {
			overall = level
		}
	}
	return overall
}
