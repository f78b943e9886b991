package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"inventory-reconciliation-service/cmd/reconciler/config"
	"inventory-reconciliation-service/internal/api"
	"inventory-reconciliation-service/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reconciliation API over HTTP",
	Long: `Serve starts the HTTP API. Every request to
GET /api/v1/inventory/reconciliation pulls both sources, reconciles them
and returns one page of results.

Examples:
  reconciler serve --config configs/reconciler.example.yaml
  RECONCILER_SERVER_ADDRESS=:9090 reconciler serve --config reconciler.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("address", "", "listen address (overrides server.address)")
	viper.BindPFlag("server.address", serveCmd.Flags().Lookup("address"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadRuntimeConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	runtime, err := config.BuildRuntime(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := runtime.Close(); err != nil {
			log.WithError(err).Warn("Closing sources failed")
		}
	}()

	handler := api.NewRouter(api.RouterConfig{
		Engine:      runtime.Engine,
		Mapper:      runtime.Mapper,
		Logger:      log,
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Gatherer:    reg,
	})

	return api.Serve(ctx, cfg.APIServerConfig(), handler, log)
}
