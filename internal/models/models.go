// Package models defines the row and result types of the inventory
// reconciliation engine.
//
// Source rows come in two explicit shapes, SourceARow for the legacy system
// and SourceBRow for the ERP, so that the merge step handles every field of
// each source by name. Merged results are MergedItemRow values, each holding
// one MergedLocationRow per Source-B location.
//
// All quantities are decimal.Decimal. Values that can be undefined, such as
// days of inventory when there is no flow, are decimal.NullDecimal and
// marshal to JSON null.
package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SourceName identifies one of the two reconciled inventory systems.
type SourceName string

const (
	// SourceA is the legacy inventory system.
	SourceA SourceName = "A"
	// SourceB is the ERP.
	SourceB SourceName = "B"
)

// String returns the string representation of SourceName
func (s SourceName) String() string {
	return string(s)
}

// SourceARow is one per-location row from the legacy system.
type SourceARow struct {
	ItemCode      string              `json:"item_code"`
	ItemName      string              `json:"item_name"`
	LocationCode  string              `json:"location_code"`
	Stock         decimal.Decimal     `json:"stock"`
	SalesM1       decimal.Decimal     `json:"sales_m1"`
	SalesM2       decimal.Decimal     `json:"sales_m2"`
	SalesM3       decimal.Decimal     `json:"sales_m3"`
	OtherM1       decimal.Decimal     `json:"other_m1"`
	OtherM2       decimal.Decimal     `json:"other_m2"`
	OtherM3       decimal.Decimal     `json:"other_m3"`
	ReferenceCost decimal.NullDecimal `json:"reference_cost"`
}

// Validate performs basic validation on the row
func (r *SourceARow) Validate() error {
	if strings.TrimSpace(r.ItemCode) == "" {
		return fmt.Errorf("source A row has empty item code")
	}
	if strings.TrimSpace(r.LocationCode) == "" {
		return fmt.Errorf("source A row for item %s has empty location code", r.ItemCode)
	}
	return nil
}

// Monthly returns the row's monthly figures as a MonthlyFlow.
func (r *SourceARow) Monthly() MonthlyFlow {
	return MonthlyFlow{
		Sales:     [3]decimal.Decimal{r.SalesM1, r.SalesM2, r.SalesM3},
		Secondary: [3]decimal.Decimal{r.OtherM1, r.OtherM2, r.OtherM3},
	}
}

// SourceBRow is one per-location row from the ERP.
type SourceBRow struct {
	ItemCode      string          `json:"item_code"`
	ItemName      string          `json:"item_name"`
	LocationCode  string          `json:"location_code"`
	LocationID    string          `json:"location_id"`
	CurrentStock  decimal.Decimal `json:"current_stock"`
	DeliveryQtyM1 decimal.Decimal `json:"delivery_qty_m1"`
	DeliveryQtyM2 decimal.Decimal `json:"delivery_qty_m2"`
	DeliveryQtyM3 decimal.Decimal `json:"delivery_qty_m3"`
	IssueQtyM1    decimal.Decimal `json:"issue_qty_m1"`
	IssueQtyM2    decimal.Decimal `json:"issue_qty_m2"`
	IssueQtyM3    decimal.Decimal `json:"issue_qty_m3"`
}

// Validate performs basic validation on the row
func (r *SourceBRow) Validate() error {
	if strings.TrimSpace(r.ItemCode) == "" {
		return fmt.Errorf("source B row has empty item code")
	}
	if strings.TrimSpace(r.LocationCode) == "" {
		return fmt.Errorf("source B row for item %s has empty location code", r.ItemCode)
	}
	return nil
}

// Monthly returns the row's monthly figures as a MonthlyFlow.
func (r *SourceBRow) Monthly() MonthlyFlow {
	return MonthlyFlow{
		Sales:     [3]decimal.Decimal{r.DeliveryQtyM1, r.DeliveryQtyM2, r.DeliveryQtyM3},
		Secondary: [3]decimal.Decimal{r.IssueQtyM1, r.IssueQtyM2, r.IssueQtyM3},
	}
}

// MonthlyFlow holds three trailing months of outbound and secondary
// movement. Index 0 is m1, the most recent month; index 2 is m3, the oldest.
type MonthlyFlow struct {
	Sales     [3]decimal.Decimal
	Secondary [3]decimal.Decimal
}

// Total returns the sum of all six monthly figures.
func (f MonthlyFlow) Total() decimal.Decimal {
	total := decimal.Zero
	for i := 0; i < 3; i++ {
		total = total.Add(f.Sales[i]).Add(f.Secondary[i])
	}
	return total
}

// SourceMetrics are the figures of one source for one merged location.
type SourceMetrics struct {
	Stock           decimal.Decimal     `json:"stock"`
	SalesM1         decimal.Decimal     `json:"sales_m1"`
	SalesM2         decimal.Decimal     `json:"sales_m2"`
	SalesM3         decimal.Decimal     `json:"sales_m3"`
	SecondaryFlowM1 decimal.Decimal     `json:"secondary_flow_m1"`
	SecondaryFlowM2 decimal.Decimal     `json:"secondary_flow_m2"`
	SecondaryFlowM3 decimal.Decimal     `json:"secondary_flow_m3"`
	AvgFlow         decimal.Decimal     `json:"avg_flow"`
	Buffer          decimal.Decimal     `json:"buffer"`
	Replenishment   decimal.Decimal     `json:"replenishment"`
	DOI             decimal.NullDecimal `json:"doi"`

	// BufferedFlow is the running sum of avg_flow x buffer over every bucket
	// folded into this location. It is an intermediate of the merge step.
	BufferedFlow decimal.Decimal `json:"-"`
}

// AddFlow accumulates monthly figures into the metrics.
func (m *SourceMetrics) AddFlow(f MonthlyFlow) {
	m.SalesM1 = m.SalesM1.Add(f.Sales[0])
	m.SalesM2 = m.SalesM2.Add(f.Sales[1])
	m.SalesM3 = m.SalesM3.Add(f.Sales[2])
	m.SecondaryFlowM1 = m.SecondaryFlowM1.Add(f.Secondary[0])
	m.SecondaryFlowM2 = m.SecondaryFlowM2.Add(f.Secondary[1])
	m.SecondaryFlowM3 = m.SecondaryFlowM3.Add(f.Secondary[2])
}

// Monthly returns the accumulated monthly figures.
func (m *SourceMetrics) Monthly() MonthlyFlow {
	return MonthlyFlow{
		Sales:     [3]decimal.Decimal{m.SalesM1, m.SalesM2, m.SalesM3},
		Secondary: [3]decimal.Decimal{m.SecondaryFlowM1, m.SecondaryFlowM2, m.SecondaryFlowM3},
	}
}

// Delta compares the A side of a merged location against the B side.
type Delta struct {
	StockDelta            decimal.Decimal     `json:"stock_delta"`
	StockDeltaPct         decimal.Decimal     `json:"stock_delta_pct"`
	ReplenishmentDelta    decimal.Decimal     `json:"replenishment_delta"`
	ReplenishmentDeltaPct decimal.Decimal     `json:"replenishment_delta_pct"`
	AvgFlowDelta          decimal.Decimal     `json:"avg_flow_delta"`
	DOIDelta              decimal.NullDecimal `json:"doi_delta"`
}

// MergedLocationRow holds both sources' figures for one item at one
// Source-B location.
type MergedLocationRow struct {
	LocationCode      string           `json:"location_code"`
	SourceBLocationID string           `json:"source_b_location_id,omitempty"`
	SourceACodes      []string         `json:"source_a_codes"`
	Mapped            bool             `json:"mapped"`
	A                 *SourceMetrics   `json:"source_a"`
	B                 *SourceMetrics   `json:"source_b"`
	Delta             Delta            `json:"delta"`
	Discrepancy       DiscrepancyLevel `json:"discrepancy"`
	HasA              bool             `json:"has_a"`
	HasB              bool             `json:"has_b"`
}

// MatchesLocation reports whether code names this location, either by its
// Source-B code or by one of its contributing Source-A codes.
func (r *MergedLocationRow) MatchesLocation(code string) bool {
	if strings.EqualFold(r.LocationCode, code) {
		return true
	}
	for _, aCode := range r.SourceACodes {
		if strings.EqualFold(aCode, code) {
			return true
		}
	}
	return false
}

// MergedItemRow aggregates every merged location of one item.
type MergedItemRow struct {
	ItemCode           string               `json:"item_code"`
	ItemName           string               `json:"item_name"`
	ReferenceCost      decimal.NullDecimal  `json:"reference_cost"`
	Locations          []*MergedLocationRow `json:"locations"`
	TotalStockA        decimal.Decimal      `json:"total_stock_a"`
	TotalStockB        decimal.Decimal      `json:"total_stock_b"`
	TotalReplenA       decimal.Decimal      `json:"total_replen_a"`
	TotalReplenB       decimal.Decimal      `json:"total_replen_b"`
	OverallDiscrepancy DiscrepancyLevel     `json:"overall_discrepancy"`
}

// HasLocation reports whether any merged location matches code.
func (r *MergedItemRow) HasLocation(code string) bool {
	for _, loc := range r.Locations {
		if loc.MatchesLocation(code) {
			return true
		}
	}
	return false
}

// String returns a string representation of the MergedItemRow
func (r *MergedItemRow) String() string {
	return fmt.Sprintf("MergedItemRow{Item: %s, Locations: %d, StockA: %s, StockB: %s, Overall: %s}",
		r.ItemCode, len(r.Locations), r.TotalStockA.String(), r.TotalStockB.String(), r.OverallDiscrepancy)
}
