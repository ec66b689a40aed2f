// Package app assembles the service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/cache"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/cache/keys"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/cache/redisstore"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/cache/tiered"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/config"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/health"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/httpclient"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/observability"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/router"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/server"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/filters"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/gazetteer"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/metrics"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/ranking"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/session"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/workflow"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/workflowevents"
)

const emptyGazetteer = `{"type":"FeatureCollection","features":[]}`

type App struct {
	cfg      config.Config
	logger   *slog.Logger
	api      *router.API
	sessions *session.Registry
	metrics  *metrics.Provider
	checks   map[string]health.Check
	consumer *kafkaconsumer.Consumer
	closers  []func() error
}

// New wires every component. Optional backends that cannot be reached are
// logged and left out; a gazetteer that fails to load puts new sessions into
// the load error state and fails readiness.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, build metrics.BuildInfo) (*App, error) {
	a := &App{cfg: cfg, logger: logger, checks: make(map[string]health.Check)}

	kind, err := model.ParseBarrierKind(cfg.DefaultBarrierKind)
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_BARRIER_KIND: %w", err)
	}
	schema, err := filters.LoadSchemaFile(cfg.FilterSchemaPath)
	if err != nil {
		return nil, fmt.Errorf("load filter schema: %w", err)
	}

	units, loadErr := gazetteer.Load(cfg.GazetteerPath, gazetteer.WithH3Res(cfg.GazetteerH3Res))
	if loadErr != nil {
		logger.Error("gazetteer failed to load", "path", cfg.GazetteerPath, "err", loadErr)
		units, err = gazetteer.Parse([]byte(emptyGazetteer))
		if err != nil {
			return nil, fmt.Errorf("empty gazetteer: %w", err)
		}
	} else {
		logger.Info("gazetteer loaded", "path", cfg.GazetteerPath, "units", units.Len())
	}
	a.checks["gazetteer"] = func(context.Context) error { return loadErr }

	a.metrics = metrics.Init(metrics.Config{
		Enabled: cfg.MetricsEnabled,
		Path:    cfg.MetricsPath,
		Build:   build,
	}, observability.Collectors()...)

	var rankOpts []ranking.Option
	rankOpts = append(rankOpts, ranking.WithLogger(logger.With("component", "ranking")))
	gens := keys.NewGenerations()
	var local *tiered.Cache
	if cfg.Cache.Enabled {
		var remote cache.Interface
		if cfg.Cache.RedisAddr != "" {
			rc, err := redisstore.New(ctx, cfg.Cache.RedisAddr,
				redisstore.WithDB(cfg.Cache.RedisDB),
				redisstore.WithPassword(cfg.Cache.RedisPassword),
				redisstore.WithPrefix(cfg.Cache.RedisPrefix))
			if err != nil {
				logger.Warn("redis unavailable, using local rank cache only", "addr", cfg.Cache.RedisAddr, "err", err)
			} else {
				remote = rc
				a.closers = append(a.closers, rc.Close)
				a.checks["redis"] = rc.Ping
			}
		}
		local = tiered.New(tiered.Config{
			LocalSize: cfg.Cache.LocalSize,
			LocalTTL:  cfg.Cache.TTL,
			OpTimeout: cfg.Cache.OpTimeout,
		}, remote, logger.With("component", "rank_cache"))
		rankOpts = append(rankOpts, ranking.WithCache(local, gens, cfg.Cache.TTL))
	}

	rank, err := ranking.New(cfg.RankingAPIURL, httpclient.NewOutbound(cfg.HTTPClientTimeout), rankOpts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("ranking client: %w", err)
	}

	var observer workflow.Observer
	if cfg.Events.Enabled {
		pub, err := workflowevents.NewPublisher(workflowevents.Config{
			Brokers:   cfg.Events.Brokers,
			Topic:     cfg.Events.Topic,
			QueueSize: cfg.Events.Queue,
		}, logger.With("component", "workflowevents"))
		if err != nil {
			logger.Warn("workflow events disabled", "err", err)
		} else {
			observer = pub
			a.closers = append(a.closers, pub.Close)
		}
	}

	a.sessions, err = session.NewRegistry(cfg.SessionMax, func(id string, kind model.BarrierKind) *workflow.Machine {
		opts := []workflow.Option{
			workflow.WithLogger(logger.With("component", "workflow")),
			workflow.WithInventory(cfg.InventoryEnabled),
		}
		if observer != nil {
			opts = append(opts, workflow.WithObserver(observer))
		}
		if loadErr != nil {
			opts = append(opts, workflow.WithLoadError("There was an error loading these data. Please refresh this page in your browser to try again."))
		}
		return workflow.New(id, kind, rank, opts...)
	}, logger.With("component", "session"))
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Invalidation.Enabled {
		if !cfg.Cache.Enabled {
			logger.Warn("invalidation enabled without a rank cache; consumer not started")
		} else {
			a.consumer = kafkaconsumer.New(
				kafkaconsumer.DefaultConfig(cfg.Invalidation.Brokers, cfg.Invalidation.Topic, cfg.Invalidation.GroupID),
				logger.With("component", "invalidation"), gens, local)
		}
	}

	a.api = router.New(router.Deps{
		Logger:      logger.With("component", "api"),
		Units:       units,
		Schema:      schema,
		Sessions:    a.sessions,
		Downloads:   rank,
		DefaultKind: kind,
	})
	return a, nil
}

func (a *App) options() server.Options {
	return server.Options{
		Addr:        a.cfg.Addr,
		MetricsAddr: a.cfg.MetricsAddr,
		Metrics:     a.metrics,
		Checks:      a.checks,
	}
}

// Handler is the HTTP handler Run serves.
func (a *App) Handler() http.Handler {
	return server.Handler(a.options(), a.logger, a.api)
}

// Run serves HTTP and consumes invalidations until ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if a.consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.consumer.Start(ctx); err != nil {
				a.logger.Error("invalidation consumer stopped", "err", err)
			}
		}()
	}

	err := server.Run(ctx, a.options(), a.logger, a.api)
	cancel()
	wg.Wait()
	return err
}

// Close ends sessions and releases backends.
func (a *App) Close() error {
	if a.sessions != nil {
		a.sessions.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
