package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"inventory-reconciliation-service/cmd/reconciler/config"
	"inventory-reconciliation-service/internal/models"
	"inventory-reconciliation-service/internal/reconciler"
	"inventory-reconciliation-service/internal/reporter"
)

// Flags for the reconcile command
var (
	search       string
	location     string
	discrepancy  string
	page         int
	limit        int
	outputFormat string
	outputFile   string
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation and print a page of results",
	Long: `Reconcile pulls both sources once, merges them by item and ERP location,
classifies every location and prints one page of the result.

Examples:
  # First page of everything
  reconciler reconcile --config reconciler.yaml

  # Critical items at one branch, as JSON
  reconciler reconcile --config reconciler.yaml --location JKT \
    --discrepancy CRITICAL --output-format json --output-file critical.json

  # Search by item code or name
  reconciler reconcile --config reconciler.yaml --search "hex bolt" --limit 20`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Filter flags
	reconcileCmd.Flags().StringVarP(&search, "search", "s", "", "case-insensitive search on item code or name")
	reconcileCmd.Flags().StringVarP(&location, "location", "l", "", "source B or source A location code")
	reconcileCmd.Flags().StringVarP(&discrepancy, "discrepancy", "d", "", "OK, WARNING, CRITICAL, A_ONLY or B_ONLY")

	// Paging flags
	reconcileCmd.Flags().IntVarP(&page, "page", "p", 1, "page number, starting at 1")
	reconcileCmd.Flags().IntVar(&limit, "limit", 0, "items per page (default reconciliation.default_limit)")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	if v := viper.GetString("output-format"); v != "" {
		outputFormat = v
	}
	if v := viper.GetString("output-file"); v != "" {
		outputFile = v
	}

	if !reporter.OutputFormat(outputFormat).IsValid() {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json", outputFormat)
	}

	if discrepancy != "" {
		level, err := models.ParseDiscrepancyLevel(discrepancy)
		if err != nil {
			return err
		}
		discrepancy = string(level)
	}

	if page < 1 {
		return fmt.Errorf("page must be at least 1, got %d", page)
	}
	if limit < 0 {
		return fmt.Errorf("limit cannot be negative, got %d", limit)
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func buildQuery() reconciler.Query {
	return reconciler.Query{
		Search:      strings.TrimSpace(search),
		Location:    strings.TrimSpace(location),
		Discrepancy: models.DiscrepancyLevel(discrepancy),
		Page:        page,
		Limit:       limit,
	}
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadRuntimeConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation...\n")
		fmt.Fprintf(os.Stderr, "Source A: %s\n", describeSource(cfg.Sources.SourceA))
		fmt.Fprintf(os.Stderr, "Source B: %s\n", describeSource(cfg.Sources.SourceB))
		fmt.Fprintf(os.Stderr, "Output format: %s\n", outputFormat)
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Output file: %s\n", outputFile)
		}
	}

	runtime, err := config.BuildRuntime(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer runtime.Close()

	result, err := runtime.Engine.Reconcile(ctx, buildQuery())
	if err != nil {
		return err
	}

	reportGenerator, err := reporter.NewSafeReportGenerator(config.CreateReportConfig(outputFormat), log)
	if err != nil {
		return err
	}

	var output io.Writer = os.Stdout
	if outputFile != "" {
		file, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		output = file
	}

	if err := reportGenerator.GenerateReportSafely(result, output); err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nReconciliation completed.\n")
		fmt.Fprintf(os.Stderr, "Source A: %d rows (%s), source B: %d rows (%s).\n",
			result.Metadata.SourceARows, result.Metadata.SourceAStatus.Status,
			result.Metadata.SourceBRows, result.Metadata.SourceBStatus.Status)
		fmt.Fprintf(os.Stderr, "%d items match, showing page %d of %d.\n", result.Total, result.Page, result.TotalPages)
		if n := len(result.Metadata.UnmappedLocationCodes); n > 0 {
			fmt.Fprintf(os.Stderr, "%d unmapped source A location codes.\n", n)
		}
		fmt.Fprintf(os.Stderr, "Engine time: %dms\n", result.Metadata.EngineTimeMs)
	}

	return nil
}

func describeSource(source config.SourceConfig) string {
	if source.Driver == config.DriverPostgres {
		return "postgres"
	}
	return fmt.Sprintf("%s (%s)", source.Driver, source.File)
}
