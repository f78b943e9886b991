package reconciler

import (
	"github.com/shopspring/decimal"

	"inventory-reconciliation-service/internal/locations"
	"inventory-reconciliation-service/internal/models"
)

// OutputPlaces is the number of decimal places derived figures are rounded
// to once classification is done.
const OutputPlaces = 4

var (
	two     = decimal.NewFromInt(2)
	three   = decimal.NewFromInt(3)
	hundred = decimal.NewFromInt(100)
)

// AvgFlow returns the mean monthly flow over the three trailing months:
// the sum of all six monthly figures divided by three. Net returns can make
// the sum negative; the result is clamped at zero.
func AvgFlow(flow models.MonthlyFlow) decimal.Decimal {
	avg := flow.Total().Div(three)
	if avg.IsNegative() {
		return decimal.Zero
	}
	return avg
}

// Replenishment returns stock minus the buffered average flow. A negative
// value is a shortfall.
func Replenishment(stock, avgFlow, buffer decimal.Decimal) decimal.Decimal {
	return stock.Sub(avgFlow.Mul(buffer))
}

// DOI returns days of inventory, stock divided by average flow. It is null
// when there is no flow.
func DOI(stock, avgFlow decimal.Decimal) decimal.NullDecimal {
	if !avgFlow.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(stock.Div(avgFlow))
}

// PercentDiff returns (x - y) as a percentage of the mean of x and y, or
// zero when that mean is zero.
func PercentDiff(x, y decimal.Decimal) decimal.Decimal {
	avg := x.Add(y).Div(two)
	if avg.IsZero() {
		return decimal.Zero
	}
	return x.Sub(y).Mul(hundred).Div(avg)
}

// metricCalculator fills in the derived figures of merged locations.
type metricCalculator struct {
	buffers *locations.Buffers
	mapper  *locations.Mapper
}

func (c *metricCalculator) compute(loc *locationAccumulator) {
	if loc.row.A != nil {
		c.computeSourceA(loc)
	}
	if loc.row.B != nil {
		c.computeSourceB(loc)
	}
	loc.row.Delta = computeDelta(loc.row)
}

// computeSourceA sums average flow per contributing Source-A code, each
// weighted by that code's own buffer.
func (c *metricCalculator) computeSourceA(loc *locationAccumulator) {
	metrics := loc.row.A

	avgFlow := decimal.Zero
	bufferedFlow := decimal.Zero
	for _, aCode := range loc.row.SourceACodes {
		bucketAvg := AvgFlow(*loc.buckets[aCode])
		avgFlow = avgFlow.Add(bucketAvg)
		bufferedFlow = bufferedFlow.Add(bucketAvg.Mul(c.buffers.ForSourceA(aCode)))
	}

	metrics.AvgFlow = avgFlow
	metrics.BufferedFlow = bufferedFlow
	switch {
	case avgFlow.IsPositive():
		metrics.Buffer = bufferedFlow.Div(avgFlow)
	case len(loc.row.SourceACodes) > 0:
		metrics.Buffer = c.buffers.ForSourceA(loc.row.SourceACodes[0])
	default:
		metrics.Buffer = c.buffers.Default()
	}
	metrics.Replenishment = metrics.Stock.Sub(bufferedFlow)
	metrics.DOI = DOI(metrics.Stock, avgFlow)
}

// computeSourceB uses the explicit Source-B buffer if one is configured,
// else the Source-A buffer of the same location, else the mean configured
// buffer of the location's Source-A group, else the default. The group
// fallback keeps B figures unchanged when Source A has no data.
func (c *metricCalculator) computeSourceB(loc *locationAccumulator) {
	metrics := loc.row.B

	buffer, ok := c.buffers.SourceB(loc.row.LocationCode)
	if !ok {
		if loc.row.A != nil {
			buffer = loc.row.A.Buffer
		} else {
			buffer = c.groupBuffer(loc.row.LocationCode)
		}
	}

	metrics.AvgFlow = AvgFlow(metrics.Monthly())
	metrics.Buffer = buffer
	metrics.BufferedFlow = metrics.AvgFlow.Mul(buffer)
	metrics.Replenishment = Replenishment(metrics.Stock, metrics.AvgFlow, buffer)
	metrics.DOI = DOI(metrics.Stock, metrics.AvgFlow)
}

func (c *metricCalculator) groupBuffer(sourceBCode string) decimal.Decimal {
	group := c.mapper.GroupFor(sourceBCode)
	if len(group) == 0 {
		return c.buffers.Default()
	}
	sum := decimal.Zero
	for _, aCode := range group {
		sum = sum.Add(c.buffers.ForSourceA(aCode))
	}
	return sum.Div(decimal.NewFromInt(int64(len(group))))
}

// computeDelta compares A against B. A missing side counts as zeros.
func computeDelta(row *models.MergedLocationRow) models.Delta {
	a := sideOrZero(row.A)
	b := sideOrZero(row.B)

	delta := models.Delta{
		StockDelta:            a.Stock.Sub(b.Stock),
		StockDeltaPct:         PercentDiff(a.Stock, b.Stock),
		ReplenishmentDelta:    a.Replenishment.Sub(b.Replenishment),
		ReplenishmentDeltaPct: PercentDiff(a.Replenishment, b.Replenishment),
		AvgFlowDelta:          a.AvgFlow.Sub(b.AvgFlow),
	}
	if a.DOI.Valid && b.DOI.Valid {
		delta.DOIDelta = decimal.NewNullDecimal(a.DOI.Decimal.Sub(b.DOI.Decimal))
	}
	return delta
}

func sideOrZero(metrics *models.SourceMetrics) *models.SourceMetrics {
	if metrics == nil {
		return &models.SourceMetrics{}
	}
	return metrics
}

// roundLocation rounds derived figures for output.
func roundLocation(row *models.MergedLocationRow) {
	for _, metrics := range []*models.SourceMetrics{row.A, row.B} {
		if metrics == nil {
			continue
		}
		metrics.AvgFlow = metrics.AvgFlow.Round(OutputPlaces)
		metrics.Buffer = metrics.Buffer.Round(OutputPlaces)
		metrics.Replenishment = metrics.Replenishment.Round(OutputPlaces)
		metrics.DOI = roundNull(metrics.DOI)
	}

	row.Delta.StockDelta = row.Delta.StockDelta.Round(OutputPlaces)
	row.Delta.StockDeltaPct = row.Delta.StockDeltaPct.Round(OutputPlaces)
	row.Delta.ReplenishmentDelta = row.Delta.ReplenishmentDelta.Round(OutputPlaces)
	row.Delta.ReplenishmentDeltaPct = row.Delta.ReplenishmentDeltaPct.Round(OutputPlaces)
	row.Delta.AvgFlowDelta = row.Delta.AvgFlowDelta.Round(OutputPlaces)
	row.Delta.DOIDelta = roundNull(row.Delta.DOIDelta)
}

func roundNull(value decimal.NullDecimal) decimal.NullDecimal {
	if !value.Valid {
		return value
	}
	return decimal.NewNullDecimal(value.Decimal.Round(OutputPlaces))
}
