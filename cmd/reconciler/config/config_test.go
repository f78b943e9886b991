package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"inventory-reconciliation-service/internal/models"
	"inventory-reconciliation-service/internal/reconciler"
	"inventory-reconciliation-service/internal/reporter"
	"inventory-reconciliation-service/pkg/errors"
	"inventory-reconciliation-service/pkg/logger"
)

const baseYAML = `
sources:
  source_a:
    driver: csv
    file: legacy.csv
  source_b:
    driver: csv
    file: erp.csv
locations:
  mapping:
    jkt01: jkt
    JKT02: JKT
    SBY01: SBY
`

func loadYAML(t *testing.T, content string) (*Config, error) {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	SetDefaults(v)
	if err := v.ReadConfig(strings.NewReader(content)); err != nil {
		t.Fatalf("failed to read yaml: %v", err)
	}
	return Load(v)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadYAML(t, baseYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Errorf("expected default address :8080, got %s", cfg.Server.Address)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("expected shutdown timeout 10s, got %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Sources.FetchTimeout != 15*time.Second {
		t.Errorf("expected fetch timeout 15s, got %s", cfg.Sources.FetchTimeout)
	}
	if cfg.Sources.SourceA.Delimiter != "," {
		t.Errorf("expected default delimiter, got %q", cfg.Sources.SourceA.Delimiter)
	}
	if cfg.Locations.DefaultBuffer != 1 {
		t.Errorf("expected default buffer 1, got %v", cfg.Locations.DefaultBuffer)
	}
	if cfg.Reconciliation.WarningThreshold != 10 || cfg.Reconciliation.CriticalThreshold != 30 {
		t.Errorf("expected thresholds 10/30, got %v/%v",
			cfg.Reconciliation.WarningThreshold, cfg.Reconciliation.CriticalThreshold)
	}
	if cfg.Reconciliation.DefaultLimit != 50 || cfg.Reconciliation.MaxLimit != 500 {
		t.Errorf("unexpected paging defaults: %+v", cfg.Reconciliation)
	}
	if cfg.Cache.Enabled || cfg.Cache.TTL != time.Minute {
		t.Errorf("unexpected cache defaults: %+v", cfg.Cache)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := loadYAML(t, baseYAML+`
server:
  address: 127.0.0.1:9090
reconciliation:
  warning_threshold: 5.5
  critical_threshold: 20
  default_limit: 25
cache:
  enabled: true
  redis_url: redis://localhost:6379/0
  ttl: 2m
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Address != "127.0.0.1:9090" {
		t.Errorf("expected overridden address, got %s", cfg.Server.Address)
	}
	if cfg.Reconciliation.WarningThreshold != 5.5 || cfg.Reconciliation.DefaultLimit != 25 {
		t.Errorf("unexpected reconciliation settings: %+v", cfg.Reconciliation)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTL != 2*time.Minute {
		t.Errorf("unexpected cache settings: %+v", cfg.Cache)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		wantSetting string
	}{
		{
			name: "missing mapping",
			yaml: `
sources:
  source_a: {driver: csv, file: a.csv}
  source_b: {driver: csv, file: b.csv}
`,
			wantSetting: "locations.mapping",
		},
		{
			name: "unknown driver",
			yaml: `
sources:
  source_a: {driver: mysql, file: a.csv}
  source_b: {driver: csv, file: b.csv}
locations:
  mapping: {JKT01: JKT}
`,
			wantSetting: "sources.source_a.driver",
		},
		{
			name: "csv driver without file",
			yaml: `
sources:
  source_a: {driver: csv, file: a.csv}
  source_b: {driver: csv}
locations:
  mapping: {JKT01: JKT}
`,
			wantSetting: "sources.source_b.file",
		},
		{
			name: "postgres driver without dsn",
			yaml: `
sources:
  source_a: {driver: postgres}
  source_b: {driver: csv, file: b.csv}
locations:
  mapping: {JKT01: JKT}
`,
			wantSetting: "sources.source_a.dsn",
		},
		{
			name: "zero fetch timeout",
			yaml: `
sources:
  fetch_timeout: 0s
  source_a: {driver: csv, file: a.csv}
  source_b: {driver: csv, file: b.csv}
locations:
  mapping: {JKT01: JKT}
`,
			wantSetting: "sources.fetch_timeout",
		},
		{
			name: "cache without redis url",
			yaml: baseYAML + `
cache:
  enabled: true
`,
			wantSetting: "cache.redis_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadYAML(t, tt.yaml)
			if err == nil {
				t.Fatal("expected error but got none")
			}
			reconcilerErr, ok := errors.AsReconcilerError(err)
			if !ok {
				t.Fatalf("expected ReconcilerError, got %T", err)
			}
			if reconcilerErr.Category != errors.CategoryConfiguration {
				t.Errorf("expected configuration category, got %s", reconcilerErr.Category)
			}
			if got := reconcilerErr.Context["setting"]; got != tt.wantSetting {
				t.Errorf("expected setting %s, got %v", tt.wantSetting, got)
			}
		})
	}
}

func TestSourceConfig_ParserConfig(t *testing.T) {
	tests := []struct {
		name      string
		source    SourceConfig
		wantDelim rune
		wantSep   rune
		wantErr   bool
	}{
		{name: "default", source: SourceConfig{}, wantDelim: ',', wantSep: '.'},
		{name: "semicolon", source: SourceConfig{Delimiter: ";"}, wantDelim: ';', wantSep: '.'},
		{name: "tab", source: SourceConfig{Delimiter: "\t"}, wantDelim: '\t', wantSep: '.'},
		{name: "decimal comma", source: SourceConfig{Delimiter: ";", DecimalSeparator: ","}, wantDelim: ';', wantSep: ','},
		{name: "multi character", source: SourceConfig{Delimiter: ";;"}, wantErr: true},
		{name: "quote", source: SourceConfig{Delimiter: `"`}, wantErr: true},
		{name: "decimal comma with comma delimiter", source: SourceConfig{DecimalSeparator: ","}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := tt.source.ParserConfig()
			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if config.Delimiter != tt.wantDelim {
				t.Errorf("expected delimiter %q, got %q", tt.wantDelim, config.Delimiter)
			}
			if got, _ := config.ParseQuantity("1" + string(tt.wantSep) + "5"); !got.Equal(decimal.RequireFromString("1.5")) {
				t.Errorf("expected 1%c5 to parse as 1.5, got %s", tt.wantSep, got)
			}
		})
	}
}

func TestSourceConfig_ParserConfigAliases(t *testing.T) {
	source := SourceConfig{ColumnAliases: map[string]string{"Item_Code": "sku"}}

	config, err := source.ParserConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := config.GetColumnName("item_code"); got != "sku" {
		t.Errorf("expected item_code alias sku, got %s", got)
	}
}

func TestBuildMapper_NormalizesCodes(t *testing.T) {
	cfg, err := loadYAML(t, baseYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mapper, err := cfg.BuildMapper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if code, ok := mapper.Resolve("JKT01"); !ok || code != "JKT" {
		t.Errorf("expected JKT01 to resolve to JKT, got %q (%v)", code, ok)
	}
	if group := mapper.GroupFor("jkt"); len(group) != 2 || group[0] != "JKT01" || group[1] != "JKT02" {
		t.Errorf("expected JKT group [JKT01 JKT02], got %v", group)
	}
}

func TestBuildBuffers(t *testing.T) {
	cfg, err := loadYAML(t, baseYAML+`
  buffers:
    jkt01: 2.5
  source_b_buffers:
    SBY: 3
  default_buffer: 1.5
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	buffers, err := cfg.BuildBuffers()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := buffers.ForSourceA("JKT01").String(); got != "2.5" {
		t.Errorf("expected JKT01 buffer 2.5, got %s", got)
	}
	if got := buffers.ForSourceA("JKT02").String(); got != "1.5" {
		t.Errorf("expected fallback 1.5, got %s", got)
	}
	if got, ok := buffers.SourceB("SBY"); !ok || got.String() != "3" {
		t.Errorf("expected SBY buffer 3, got %s (%v)", got, ok)
	}

	cfg.Locations.Buffers = map[string]float64{"JKT01": -1}
	if _, err := cfg.BuildBuffers(); !errors.HasCode(err, errors.CodeInvalidConfig) {
		t.Errorf("expected invalid config error for negative buffer, got %v", err)
	}
}

func TestReconcilerConfig(t *testing.T) {
	cfg, err := loadYAML(t, baseYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	engineConfig, err := cfg.ReconcilerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !engineConfig.WarningThreshold.Equal(reconciler.DefaultConfig().WarningThreshold) {
		t.Errorf("expected default warning threshold, got %s", engineConfig.WarningThreshold)
	}
	if engineConfig.FetchTimeout != cfg.Sources.FetchTimeout {
		t.Errorf("expected fetch timeout %s, got %s", cfg.Sources.FetchTimeout, engineConfig.FetchTimeout)
	}

	cfg.Reconciliation.WarningThreshold = 40
	if _, err := cfg.ReconcilerConfig(); err == nil {
		t.Error("expected error when warning threshold exceeds critical threshold")
	}
}

func TestLoggerConfig(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "WARN", Format: "JSON", Output: "stdout"}}

	config := cfg.LoggerConfig(false)
	if config.Level != logger.WarnLevel || config.Format != logger.JSONFormat || config.CallerInfo {
		t.Errorf("unexpected logger config: %+v", config)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("expected valid logger config, got %v", err)
	}

	verboseConfig := cfg.LoggerConfig(true)
	if verboseConfig.Level != logger.DebugLevel || !verboseConfig.CallerInfo {
		t.Errorf("expected verbose to force debug with caller info, got %+v", verboseConfig)
	}
}

func TestAPIServerConfig(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Address: ":9000", ReadTimeout: time.Second}}

	server := cfg.APIServerConfig()
	if server.Address != ":9000" || server.ReadTimeout != time.Second {
		t.Errorf("unexpected server config: %+v", server)
	}
}

func TestCreateReportConfig(t *testing.T) {
	tests := []struct {
		format string
		want   reporter.OutputFormat
	}{
		{"console", reporter.FormatConsole},
		{"json", reporter.FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			config := CreateReportConfig(tt.format)
			if config.Format != tt.want {
				t.Errorf("expected format %s, got %s", tt.want, config.Format)
			}
			if err := config.Validate(); err != nil {
				t.Errorf("expected valid report config, got %v", err)
			}
		})
	}
}

func TestBuildRuntime_CSV(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "legacy.csv")
	pathB := filepath.Join(dir, "erp.csv")

	if err := os.WriteFile(pathA, []byte("item_code,item_name,location_code,stock,sales_m1\nX1,Widget,JKT01,10,3\nX1,Widget,JKT02,5,0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pathB, []byte("item_code,item_name,location_code,location_id,current_stock\nX1,Widget,JKT,7,15\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadYAML(t, baseYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Sources.SourceA.File = pathA
	cfg.Sources.SourceB.File = pathB

	log := logger.NewWithWriter(&bytes.Buffer{}, logger.ErrorLevel)
	rt, err := BuildRuntime(context.Background(), cfg, log, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rt.Close()

	if rt.Mapper.Len() != 3 {
		t.Errorf("expected 3 mapped codes, got %d", rt.Mapper.Len())
	}

	result, err := rt.Engine.Reconcile(context.Background(), reconciler.Query{Page: 1})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if result.Total != 1 || len(result.Items[0].Locations) != 1 {
		t.Fatalf("expected one item at one location, got %+v", result)
	}

	loc := result.Items[0].Locations[0]
	if loc.LocationCode != "JKT" || loc.Discrepancy != models.DiscrepancyOK {
		t.Errorf("expected JKT OK, got %s %s", loc.LocationCode, loc.Discrepancy)
	}
	if got := loc.A.Stock.String(); got != "15" {
		t.Errorf("expected folded stock 15, got %s", got)
	}

	if err := rt.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}

func TestBuildRuntime_UnreachableCache(t *testing.T) {
	cfg, err := loadYAML(t, baseYAML+`
cache:
  enabled: true
  redis_url: redis://127.0.0.1:1/0
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	log := logger.NewWithWriter(&bytes.Buffer{}, logger.ErrorLevel)
	rt, err := BuildRuntime(ctx, cfg, log, nil)
	if err == nil {
		rt.Close()
		t.Fatal("expected error for unreachable redis")
	}
	if !errors.HasCode(err, errors.CodeInvalidConfig) {
		t.Errorf("expected invalid config error, got %v", err)
	}
}
