package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apperrors "inventory-reconciliation-service/pkg/errors"
	"inventory-reconciliation-service/pkg/logger"
)

func resetReconcileFlags() {
	viper.Reset()
	search, location, discrepancy = "", "", ""
	page, limit = 1, 0
	outputFormat, outputFile = "console", ""
	cfgFile, verbose = "", false
}

func TestValidateReconcileFlags(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name          string
		setupFlags    func()
		expectError   bool
		errorContains string
	}{
		{
			name:       "valid flags",
			setupFlags: func() {},
		},
		{
			name: "json output to existing directory",
			setupFlags: func() {
				viper.Set("output-format", "json")
				viper.Set("output-file", filepath.Join(tmpDir, "out.json"))
			},
		},
		{
			name: "invalid output format",
			setupFlags: func() {
				viper.Set("output-format", "csv")
			},
			expectError:   true,
			errorContains: "invalid output format",
		},
		{
			name: "unknown discrepancy level",
			setupFlags: func() {
				discrepancy = "severe"
			},
			expectError:   true,
			errorContains: "unknown discrepancy level",
		},
		{
			name: "page below one",
			setupFlags: func() {
				page = 0
			},
			expectError:   true,
			errorContains: "page must be at least 1",
		},
		{
			name: "negative limit",
			setupFlags: func() {
				limit = -5
			},
			expectError:   true,
			errorContains: "limit cannot be negative",
		},
		{
			name: "missing output directory",
			setupFlags: func() {
				viper.Set("output-file", "/non/existent/dir/out.json")
			},
			expectError:   true,
			errorContains: "output directory does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetReconcileFlags()
			tt.setupFlags()

			err := validateReconcileFlags(&cobra.Command{}, []string{})

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				} else if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("expected error to contain '%s', got: %v", tt.errorContains, err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateReconcileFlags_NormalizesDiscrepancy(t *testing.T) {
	resetReconcileFlags()
	discrepancy = " critical "

	if err := validateReconcileFlags(&cobra.Command{}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := buildQuery().Discrepancy; got != "CRITICAL" {
		t.Errorf("expected CRITICAL, got %q", got)
	}
}

func TestReconcileCommandHelp(t *testing.T) {
	cmd := reconcileCmd

	for _, name := range []string{"search", "location", "discrepancy", "page", "limit", "output-format", "output-file"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("%s flag not found", name)
		}
	}

	var helpOutput bytes.Buffer
	cmd.SetOut(&helpOutput)
	cmd.Help()

	helpText := helpOutput.String()
	for _, section := range []string{"Usage:", "Examples:", "Flags:", "--discrepancy", "--output-format"} {
		if !strings.Contains(helpText, section) {
			t.Errorf("help text should contain '%s'", section)
		}
	}
}

func TestServeCommandRegistered(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Name() == "serve" {
			found = true
			if c.Flags().Lookup("address") == nil {
				t.Error("address flag not found")
			}
		}
	}
	if !found {
		t.Error("serve command not registered")
	}
}

const testConfig = `
sources:
  fetch_timeout: 5s
  source_a:
    driver: csv
    file: %A%
  source_b:
    driver: csv
    file: %B%
locations:
  mapping:
    JKT01: JKT
    JKT02: JKT
    SBY01: SBY
  buffers:
    JKT01: 2
reconciliation:
  warning_threshold: 10
  critical_threshold: 30
logging:
  level: error
`

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestReconcileCommandEndToEnd(t *testing.T) {
	dir := t.TempDir()
	pathA := writeFixture(t, dir, "source_a.csv", `item_code,item_name,JKT01_stock,JKT01_sales_m1,JKT02_stock,JKT02_sales_m1,SBY01_stock
X1,Hex Bolt,60,30,40,0,10
X2,Washer,5,0,0,0,0
`)
	pathB := writeFixture(t, dir, "source_b.csv", `item_code,item_name,location_code,location_id,current_stock,delivery_qty_m1
X1,Hex Bolt,JKT,11,100,30
X1,Hex Bolt,SBY,12,20,0
X3,Nut,SBY,12,7,0
`)
	config := strings.NewReplacer("%A%", pathA, "%B%", pathB).Replace(testConfig)
	configPath := writeFixture(t, dir, "reconciler.yaml", config)
	outPath := filepath.Join(dir, "out.json")

	resetReconcileFlags()
	defer logger.SetGlobalLogger(logger.GetGlobalLogger())

	rootCmd.SetArgs([]string{
		"reconcile",
		"--config", configPath,
		"--output-format", "json",
		"--output-file", outPath,
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}

	var report struct {
		Success bool `json:"success"`
		Data    struct {
			Total int `json:"total"`
			Items []struct {
				ItemCode           string `json:"item_code"`
				OverallDiscrepancy string `json:"overall_discrepancy"`
				Locations          []struct {
					LocationCode string   `json:"location_code"`
					SourceACodes []string `json:"source_a_codes"`
					Discrepancy  string   `json:"discrepancy"`
				} `json:"locations"`
			} `json:"items"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("invalid JSON report: %v", err)
	}

	if !report.Success || report.Data.Total != 3 {
		t.Fatalf("expected 3 items, got %+v", report.Data)
	}

	x1 := report.Data.Items[0]
	if x1.ItemCode != "X1" || len(x1.Locations) != 2 {
		t.Fatalf("unexpected first item: %+v", x1)
	}
	if x1.Locations[0].LocationCode != "JKT" || len(x1.Locations[0].SourceACodes) != 2 {
		t.Errorf("expected JKT to fold JKT01 and JKT02, got %+v", x1.Locations[0])
	}
	if x1.Locations[0].Discrepancy != "OK" {
		t.Errorf("expected JKT stock 100 vs 100 to be OK, got %s", x1.Locations[0].Discrepancy)
	}
	if x1.Locations[1].Discrepancy != "CRITICAL" || x1.OverallDiscrepancy != "CRITICAL" {
		t.Errorf("expected SBY 10 vs 20 to be CRITICAL, got %s / %s", x1.Locations[1].Discrepancy, x1.OverallDiscrepancy)
	}

	if report.Data.Items[1].ItemCode != "X2" || report.Data.Items[1].Locations[0].Discrepancy != "A_ONLY" {
		t.Errorf("expected X2 to be A_ONLY, got %+v", report.Data.Items[1])
	}
	if report.Data.Items[2].ItemCode != "X3" || report.Data.Items[2].Locations[0].Discrepancy != "B_ONLY" {
		t.Errorf("expected X3 to be B_ONLY, got %+v", report.Data.Items[2])
	}
}

func TestCLIErrorHandler(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantCode     int
		wantContains []string
	}{
		{
			name:         "nil error",
			err:          nil,
			wantCode:     0,
			wantContains: nil,
		},
		{
			name:         "configuration error",
			err:          apperrors.ConfigurationError(apperrors.CodeMissingConfig, "locations.mapping", nil, nil),
			wantCode:     4,
			wantContains: []string{"Error:", "Context:", "setting: locations.mapping", "Configuration error help"},
		},
		{
			name: "both sources failed",
			err: apperrors.BothSourcesFailedError(
				apperrors.SourceFetchError("A", errors.New("legacy down")),
				apperrors.SourceFetchError("B", errors.New("erp down")),
			),
			wantCode:     6,
			wantContains: []string{"Source failures:", "Source error help"},
		},
		{
			name:         "file not found",
			err:          os.ErrNotExist,
			wantCode:     2,
			wantContains: []string{"File not found"},
		},
		{
			name:         "generic error",
			err:          errors.New("something odd"),
			wantCode:     1,
			wantContains: []string{"Error: something odd", "--verbose"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			handler := &CLIErrorHandler{
				logger: logger.NewWithWriter(&bytes.Buffer{}, logger.DebugLevel),
				out:    &out,
			}

			if got := handler.HandleError(tt.err); got != tt.wantCode {
				t.Errorf("expected exit code %d, got %d", tt.wantCode, got)
			}
			for _, want := range tt.wantContains {
				if !strings.Contains(out.String(), want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, out.String())
				}
			}
		})
	}
}
