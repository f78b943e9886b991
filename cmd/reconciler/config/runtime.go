package config

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"inventory-reconciliation-service/internal/locations"
	"inventory-reconciliation-service/internal/metrics"
	"inventory-reconciliation-service/internal/reconciler"
	"inventory-reconciliation-service/internal/sources"
	"inventory-reconciliation-service/pkg/errors"
	"inventory-reconciliation-service/pkg/logger"
)

// Runtime is a wired engine plus the connections it owns.
type Runtime struct {
	Engine *reconciler.Engine
	Mapper *locations.Mapper

	closers []func() error
}

// Close releases every connection opened by BuildRuntime.
func (r *Runtime) Close() error {
	var err error
	for i := len(r.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, r.closers[i]())
	}
	r.closers = nil
	return err
}

// BuildRuntime opens the configured sources and creates the engine. reg
// may be nil to disable metrics.
func BuildRuntime(ctx context.Context, cfg *Config, log logger.Logger, reg prometheus.Registerer) (rt *Runtime, err error) {
	rt = &Runtime{}
	defer func() {
		if err != nil {
			rt.Close()
			rt = nil
		}
	}()

	if rt.Mapper, err = cfg.BuildMapper(); err != nil {
		return rt, err
	}
	buffers, err := cfg.BuildBuffers()
	if err != nil {
		return rt, err
	}
	engineConfig, err := cfg.ReconcilerConfig()
	if err != nil {
		return rt, err
	}

	sourceA, err := rt.openSourceA(ctx, cfg.Sources.SourceA)
	if err != nil {
		return rt, err
	}
	sourceB, err := rt.openSourceB(ctx, cfg.Sources.SourceB)
	if err != nil {
		return rt, err
	}

	if cfg.Cache.Enabled {
		store, err := sources.NewRedisStore(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return rt, errors.ConfigurationError(errors.CodeInvalidConfig, "cache.redis_url", nil, err).
				WithSuggestion("check that redis is reachable or set cache.enabled to false")
		}
		rt.closers = append(rt.closers, store.Close)
		sourceA = sources.NewCachedSourceA(sourceA, store, cfg.Cache.TTL)
		sourceB = sources.NewCachedSourceB(sourceB, store, cfg.Cache.TTL)
		log.WithField("ttl", cfg.Cache.TTL.String()).Info("Row-set cache enabled")
	}

	opts := []reconciler.Option{reconciler.WithLogger(log)}
	if reg != nil {
		opts = append(opts, reconciler.WithRecorder(metrics.NewReconcilerMetrics(reg)))
	}

	rt.Engine, err = reconciler.NewEngine(sourceA, sourceB, rt.Mapper, buffers, engineConfig, opts...)
	if err != nil {
		return rt, err
	}

	log.WithFields(logger.Fields{
		"source_a":          cfg.Sources.SourceA.Driver,
		"source_b":          cfg.Sources.SourceB.Driver,
		"source_a_codes":    rt.Mapper.Len(),
		"source_b_codes":    len(rt.Mapper.SourceBCodes()),
		"fetch_timeout":     engineConfig.FetchTimeout.String(),
		"warning_threshold": engineConfig.WarningThreshold.String(),
	}).Debug("Engine configured")

	return rt, nil
}

func (rt *Runtime) openSourceA(ctx context.Context, cfg SourceConfig) (sources.SourceAFetcher, error) {
	switch cfg.Driver {
	case DriverPostgres:
		db, err := sources.OpenLegacyDB(ctx, cfg.DSN)
		if err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "sources.source_a.dsn", nil, err)
		}
		rt.closers = append(rt.closers, db.Close)
		return sources.NewLegacySQLSourceA(db), nil
	default:
		parserConfig, err := cfg.ParserConfig()
		if err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "sources.source_a", nil, err)
		}
		source, err := sources.NewCSVSourceA(cfg.File, parserConfig)
		if err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "sources.source_a", nil, err)
		}
		return source, nil
	}
}

func (rt *Runtime) openSourceB(ctx context.Context, cfg SourceConfig) (sources.SourceBFetcher, error) {
	switch cfg.Driver {
	case DriverPostgres:
		pool, err := sources.NewERPPool(ctx, cfg.DSN)
		if err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "sources.source_b.dsn", nil, err)
		}
		rt.closers = append(rt.closers, func() error {
			pool.Close()
			return nil
		})
		return sources.NewERPSourceB(pool), nil
	default:
		parserConfig, err := cfg.ParserConfig()
		if err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "sources.source_b", nil, err)
		}
		source, err := sources.NewCSVSourceB(cfg.File, parserConfig)
		if err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "sources.source_b", nil, err)
		}
		return source, nil
	}
}
