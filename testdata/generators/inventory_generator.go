// Command inventory_generator writes a matching pair of sample exports: a
// wide legacy (source A) CSV and a long ERP (source B) CSV. The branch
// table matches configs/reconciler.example.yaml.
//
//	go run ./testdata/generators -items 500 -output-dir testdata/generated
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/shopspring/decimal"
)

// branches maps each ERP branch to the legacy warehouse codes folded into it.
var branches = map[string][]string{
	"JKT": {"JKT01", "JKT02", "JKT03"},
	"BDG": {"BDG01", "BDG02"},
	"SBY": {"SBY01", "SBY02"},
	"MDN": {"MDN01"},
}

// unmappedCode appears in the legacy export but not in the mapping table.
const unmappedCode = "XXX99"

var branchIDs = map[string]string{"JKT": "101", "BDG": "102", "SBY": "103", "MDN": "104"}

var itemNames = []string{"Hex Bolt", "Flat Washer", "Lock Nut", "Cable Tie", "Hose Clamp", "Wall Plug", "Wood Screw", "Rivet"}

// scenario controls how the ERP figures are derived from the legacy ones.
type scenario int

const (
	scenarioMatch scenario = iota
	scenarioDrift
	scenarioLegacyOnly
	scenarioERPOnly
)

type generator struct {
	rng           *rand.Rand
	items         int
	driftRatio    float64
	onlyRatio     float64
	unmappedRatio float64
}

type legacyFigures struct {
	stock decimal.Decimal
	sales [3]decimal.Decimal
	other [3]decimal.Decimal
}

func main() {
	var (
		items         = flag.Int("items", 200, "number of items to generate")
		outputDir     = flag.String("output-dir", "testdata/generated", "output directory")
		seed          = flag.Int64("seed", 42, "random seed for reproducible output")
		driftRatio    = flag.Float64("drift-ratio", 0.2, "share of items whose ERP stock drifts from the legacy stock")
		onlyRatio     = flag.Float64("only-ratio", 0.05, "share of items present in only one system")
		unmappedRatio = flag.Float64("unmapped-ratio", 0.02, "share of items stocked at an unmapped legacy location")
	)
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	g := &generator{
		rng:           rand.New(rand.NewSource(*seed)),
		items:         *items,
		driftRatio:    *driftRatio,
		onlyRatio:     *onlyRatio,
		unmappedRatio: *unmappedRatio,
	}

	legacyPath := filepath.Join(*outputDir, "source_a.csv")
	erpPath := filepath.Join(*outputDir, "source_b.csv")
	if err := g.write(legacyPath, erpPath); err != nil {
		log.Fatalf("Failed to generate data: %v", err)
	}

	fmt.Printf("Generated %d items\n", *items)
	fmt.Printf("Source A: %s\n", legacyPath)
	fmt.Printf("Source B: %s\n", erpPath)
	fmt.Printf("Seed used: %d\n", *seed)
}

func (g *generator) write(legacyPath, erpPath string) error {
	legacyFile, err := os.Create(legacyPath)
	if err != nil {
		return err
	}
	defer legacyFile.Close()

	erpFile, err := os.Create(erpPath)
	if err != nil {
		return err
	}
	defer erpFile.Close()

	legacy := csv.NewWriter(legacyFile)
	erp := csv.NewWriter(erpFile)

	legacyCodes := append(sortedLegacyCodes(), unmappedCode)
	if err := legacy.Write(legacyHeader(legacyCodes)); err != nil {
		return err
	}
	if err := erp.Write([]string{"item_code", "item_name", "location_code", "location_id", "current_stock",
		"delivery_qty_m1", "delivery_qty_m2", "delivery_qty_m3", "issue_qty_m1", "issue_qty_m2", "issue_qty_m3"}); err != nil {
		return err
	}

	for i := 0; i < g.items; i++ {
		code := fmt.Sprintf("ITM%05d", i+1)
		name := fmt.Sprintf("%s %d", itemNames[g.rng.Intn(len(itemNames))], 4+g.rng.Intn(20))
		sc := g.pickScenario()

		figures := make(map[string]legacyFigures, len(legacyCodes))
		for _, loc := range legacyCodes {
			if loc == unmappedCode && g.rng.Float64() >= g.unmappedRatio {
				continue
			}
			figures[loc] = g.randomFigures()
		}

		if sc != scenarioERPOnly {
			if err := legacy.Write(legacyRow(code, name, legacyCodes, figures)); err != nil {
				return err
			}
		}
		if sc == scenarioLegacyOnly {
			continue
		}

		for _, branch := range sortedBranches() {
			total := legacyFigures{}
			for _, loc := range branches[branch] {
				f := figures[loc]
				total.stock = total.stock.Add(f.stock)
				for m := 0; m < 3; m++ {
					total.sales[m] = total.sales[m].Add(f.sales[m])
					total.other[m] = total.other[m].Add(f.other[m])
				}
			}
			stock := total.stock
			if sc == scenarioDrift {
				stock = g.drift(stock)
			}
			row := []string{code, name, branch, branchIDs[branch], stock.String()}
			for m := 0; m < 3; m++ {
				row = append(row, total.sales[m].String())
			}
			for m := 0; m < 3; m++ {
				row = append(row, total.other[m].String())
			}
			if err := erp.Write(row); err != nil {
				return err
			}
		}
	}

	legacy.Flush()
	erp.Flush()
	if err := legacy.Error(); err != nil {
		return err
	}
	return erp.Error()
}

func (g *generator) pickScenario() scenario {
	r := g.rng.Float64()
	switch {
	case r < g.onlyRatio/2:
		return scenarioLegacyOnly
	case r < g.onlyRatio:
		return scenarioERPOnly
	case r < g.onlyRatio+g.driftRatio:
		return scenarioDrift
	default:
		return scenarioMatch
	}
}

func (g *generator) randomFigures() legacyFigures {
	f := legacyFigures{stock: decimal.NewFromInt(int64(g.rng.Intn(500)))}
	for m := 0; m < 3; m++ {
		f.sales[m] = decimal.NewFromInt(int64(g.rng.Intn(120)))
		f.other[m] = decimal.NewFromInt(int64(g.rng.Intn(15)))
	}
	return f
}

// drift moves stock by 5% to 60% in either direction.
func (g *generator) drift(stock decimal.Decimal) decimal.Decimal {
	pct := decimal.NewFromFloat(0.05 + g.rng.Float64()*0.55)
	if g.rng.Intn(2) == 0 {
		pct = pct.Neg()
	}
	return stock.Add(stock.Mul(pct)).Round(0)
}

func legacyHeader(codes []string) []string {
	header := []string{"item_code", "item_name"}
	for _, loc := range codes {
		header = append(header,
			loc+"_stock",
			loc+"_sales_m1", loc+"_sales_m2", loc+"_sales_m3",
			loc+"_other_m1", loc+"_other_m2", loc+"_other_m3")
	}
	return header
}

func legacyRow(code, name string, codes []string, figures map[string]legacyFigures) []string {
	row := []string{code, name}
	for _, loc := range codes {
		f, ok := figures[loc]
		if !ok {
			row = append(row, "", "", "", "", "", "", "")
			continue
		}
		row = append(row, f.stock.String())
		for m := 0; m < 3; m++ {
			row = append(row, f.sales[m].String())
		}
		for m := 0; m < 3; m++ {
			row = append(row, f.other[m].String())
		}
	}
	return row
}

func sortedBranches() []string {
	out := make([]string, 0, len(branches))
	for branch := range branches {
		out = append(out, branch)
	}
	sort.Strings(out)
	return out
}

func sortedLegacyCodes() []string {
	var out []string
	for _, branch := range sortedBranches() {
		out = append(out, branches[branch]...)
	}
	return out
}
