package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDiscrepancyLevel_IsValid(t *testing.T) {
	tests := []struct {
		level DiscrepancyLevel
		valid bool
	}{
		{DiscrepancyOK, true},
		{DiscrepancyWarning, true},
		{DiscrepancyCritical, true},
		{DiscrepancyAOnly, true},
		{DiscrepancyBOnly, true},
		{"SEVERE", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			if got := tt.level.IsValid(); got != tt.valid {
				t.Errorf("DiscrepancyLevel.IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestDiscrepancyLevel_Severity(t *testing.T) {
	if DiscrepancyCritical.Severity() <= DiscrepancyWarning.Severity() {
		t.Error("expected CRITICAL to outrank WARNING")
	}
	if DiscrepancyWarning.Severity() <= DiscrepancyOK.Severity() {
		t.Error("expected WARNING to outrank OK")
	}
	for _, level := range []DiscrepancyLevel{DiscrepancyAOnly, DiscrepancyBOnly} {
		if level.Severity() != DiscrepancyOK.Severity() {
			t.Errorf("expected %s to rank with OK", level)
		}
		if !level.IsSingleSource() {
			t.Errorf("expected %s to be single-source", level)
		}
	}
}

func TestParseDiscrepancyLevel(t *testing.T) {
	level, err := ParseDiscrepancyLevel(" warning ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if level != DiscrepancyWarning {
		t.Errorf("expected WARNING, got %s", level)
	}

	if _, err := ParseDiscrepancyLevel("bad"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestSourceRows_Validate(t *testing.T) {
	valid := &SourceARow{ItemCode: "X1", LocationCode: "L1A"}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	noItem := &SourceARow{LocationCode: "L1A"}
	if err := noItem.Validate(); err == nil {
		t.Error("expected error for empty item code")
	}

	noLocation := &SourceBRow{ItemCode: "X1"}
	if err := noLocation.Validate(); err == nil {
		t.Error("expected error for empty location code")
	}
}

func TestMonthlyFlow_Total(t *testing.T) {
	row := &SourceBRow{
		DeliveryQtyM1: decimal.NewFromInt(5),
		DeliveryQtyM2: decimal.NewFromInt(6),
		DeliveryQtyM3: decimal.NewFromInt(7),
		IssueQtyM1:    decimal.NewFromInt(1),
		IssueQtyM2:    decimal.NewFromInt(2),
		IssueQtyM3:    decimal.NewFromInt(3),
	}

	if got := row.Monthly().Total(); !got.Equal(decimal.NewFromInt(24)) {
		t.Errorf("expected total 24, got %s", got)
	}

	var metrics SourceMetrics
	metrics.AddFlow(row.Monthly())
	metrics.AddFlow(row.Monthly())
	if !metrics.SalesM3.Equal(decimal.NewFromInt(14)) {
		t.Errorf("expected accumulated sales_m3 14, got %s", metrics.SalesM3)
	}
	if got := metrics.Monthly().Total(); !got.Equal(decimal.NewFromInt(48)) {
		t.Errorf("expected accumulated total 48, got %s", got)
	}
}

func TestMergedLocationRow_MatchesLocation(t *testing.T) {
	row := &MergedLocationRow{LocationCode: "JKT", SourceACodes: []string{"JKT01", "JKT02"}}

	tests := []struct {
		code  string
		match bool
	}{
		{"JKT", true},
		{"jkt", true},
		{"JKT02", true},
		{"SBY", false},
	}
	for _, tt := range tests {
		if got := row.MatchesLocation(tt.code); got != tt.match {
			t.Errorf("MatchesLocation(%q) = %v, want %v", tt.code, got, tt.match)
		}
	}

	item := &MergedItemRow{Locations: []*MergedLocationRow{row}}
	if !item.HasLocation("jkt01") {
		t.Error("expected item to match contributing source A code")
	}
}

func TestSourceMetrics_NullDOIMarshalsAsNull(t *testing.T) {
	metrics := SourceMetrics{Stock: decimal.NewFromInt(4)}

	data, err := json.Marshal(metrics)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"doi":null`) {
		t.Errorf("expected null doi, got %s", data)
	}
	if strings.Contains(string(data), "BufferedFlow") {
		t.Errorf("expected buffered flow to be hidden, got %s", data)
	}
}
