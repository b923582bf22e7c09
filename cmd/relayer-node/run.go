package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/services"

	"github.com/bcnmy/bundler-sub000/cache"
	"github.com/bcnmy/bundler-sub000/chain"
	"github.com/bcnmy/bundler-sub000/config"
	"github.com/bcnmy/bundler-sub000/keystore"
	"github.com/bcnmy/bundler-sub000/notify"
	"github.com/bcnmy/bundler-sub000/queue"
	"github.com/bcnmy/bundler-sub000/store"
)

type Run struct {
	Config      string `name:"config" short:"c" default:"config.toml" help:"Path to the TOML config." type:"existingfile"`
	MetricsAddr string `name:"metrics-addr" default:":9090" help:"Listen address of the metrics and health endpoints."`
}

func (r *Run) Run(c *CLIContext) error {
	ctx, lggr := c.Ctx, c.Logger
	cfg, err := config.Load(r.Config)
	if err != nil {
		return err
	}

	mnemonic := os.Getenv(envMnemonic)
	if mnemonic == "" {
		return fmt.Errorf("%s is not set", envMnemonic)
	}
	owner, err := keystore.AccountFromHex(os.Getenv(envOwnerKey))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", envOwnerKey, err)
	}

	db, err := store.Open(lggr, *cfg.Database.Driver, *cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := newRedis(cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	sinks := []notify.Sink{notify.NewLogSink(lggr)}
	if webhook := os.Getenv(envSlackWebhook); webhook != "" {
		level, err := notify.ParseLevel(*cfg.Notify.SlackMinLevel)
		if err != nil {
			return err
		}
		sinks = append(sinks, notify.NewSlackSink(webhook, level))
	}
	notifier := notify.New(lggr, *cfg.Notify.BufferSize, sinks...)

	var chains []*chain.Chain
	for _, cc := range cfg.EnabledChains() {
		opts := chain.Opts{
			Config:   cc,
			Mnemonic: mnemonic,
			Owner:    owner,
			Store:    db,
			Notifier: notifier,
		}
		if rdb != nil {
			opts.Cache = cache.NewRedis(lggr, rdb, cfg.Redis.LockWait.Duration())
			opts.Queue = queue.NewRedisStream(lggr, rdb, cc.ID(), *cfg.Redis.ConsumerGroup)
		} else {
			lggr.Warnw("Redis is not configured, using in-process cache and queue", "chainID", cc.ID())
			opts.Cache = cache.NewMemory(cfg.Redis.LockWait.Duration())
			opts.Queue = queue.NewChannel(*cc.QueueSize)
		}
		ch, err := chain.NewChain(ctx, lggr, opts)
		if err != nil {
			return fmt.Errorf("failed to create chain %s: %w", *cc.ChainID, err)
		}
		chains = append(chains, ch)
	}
	registry, err := chain.NewRegistry(lggr, chains...)
	if err != nil {
		return err
	}

	var ms services.MultiStart
	if err := ms.Start(ctx, notifier, registry); err != nil {
		return err
	}
	defer func() {
		if err := services.CloseAll(registry, notifier); err != nil {
			lggr.Errorw("Failed to stop services", "err", err)
		}
	}()

	srv := &http.Server{Addr: r.MetricsAddr, Handler: newMux(lggr, registry), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lggr.Errorw("Metrics server failed", "err", err)
		}
	}()
	lggr.Infow("Relayer node started", "chains", registry.ChainIDs(), "owner", owner.Address(), "metricsAddr", r.MetricsAddr)

	<-ctx.Done()
	lggr.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRedis(cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.URL == nil {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL.URL().String())
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func newMux(lggr logger.Logger, registry *chain.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		report := map[string]string{}
		healthy := true
		for name, err := range registry.HealthReport() {
			report[name] = "ok"
			if err != nil {
				report[name] = err.Error()
				healthy = false
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(report); err != nil {
			lggr.Warnw("Failed to write health report", "err", err)
		}
	})
	return mux
}

