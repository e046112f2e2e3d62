package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"lockScope/internal/chain"
	"lockScope/internal/config"
	"lockScope/internal/dashboard"
	"lockScope/internal/effect"
	"lockScope/internal/metrics"
	"lockScope/internal/retry"
	"lockScope/internal/storage"
	"lockScope/internal/storage/postgres"
	"lockScope/internal/storage/redis"
)

const networkPreference = "default"

// app wires the dashboard store to a chain connection and storage sinks.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	slot     *chain.Slot
	store    *effect.Store[dashboard.State]
	sinks    storage.Multi
	pg       *postgres.Store
	closers  []func()
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, clientOpts ...chain.Option) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		slot:     chain.NewSlot(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.NewMetrics(a.registry, "lockscope")
	a.closers = append(a.closers, a.slot.Close)

	schedule := cfg.RetrySchedule
	if len(schedule) == 0 {
		schedule = retry.DefaultSchedule
	}

	store, err := dashboard.NewStore(ctx, dashboard.Options{
		Env: &dashboard.Env{
			Slot: a.slot,
			Dial: func(ctx context.Context) (chain.Provider, error) {
				return chain.NewClient(ctx, cfg.RPCURL, clientOpts...)
			},
			Contracts: dashboard.Contracts{
				Aggregator: common.HexToAddress(cfg.Aggregator),
				Token:      common.HexToAddress(cfg.Token),
				Lock:       optionalAddress(cfg.LockContract),
			},
			Fetcher: &retry.Fetcher{
				Name:     "account_state",
				Schedule: schedule,
				Logger:   logger,
				Metrics:  a.metrics,
			},
			TokenMeta: dashboard.NewTokenMetaCache(),
			Logger:    logger,
		},
		Reducer: dashboard.ReducerConfig{ThrottleWindow: cfg.ThrottleWindow},
		Store: effect.StoreConfig{
			Logger:  logger,
			Metrics: a.metrics,
			OnError: func(err error) {
				logger.Error("query wiring defect", zap.Error(err))
			},
		},
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	if err := a.openSinks(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openSinks(ctx context.Context) error {
	if a.cfg.Out != "" {
		a.sinks = append(a.sinks, storage.NewJsonlStorage(a.cfg.Out))
	}
	if a.cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, a.cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		a.pg = pg
		a.sinks = append(a.sinks, pg)
	}
	if a.cfg.RedisAddr != "" {
		cache, err := redis.New(a.cfg.RedisAddr,
			redis.WithPassword(a.cfg.RedisPassword),
			redis.WithDB(a.cfg.RedisDB),
			redis.WithTTL(a.cfg.CacheTTL),
		)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = cache.Close() })
		a.sinks = append(a.sinks, cache)
	}
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// connect selects the account, discovers the provider and waits until the
// first account read settled.
func (a *app) connect(ctx context.Context, account common.Address) error {
	if a.pg != nil {
		if chainID, ok, err := a.pg.LoadNetwork(ctx, networkPreference); err != nil {
			a.logger.Warn("load network preference failed", zap.Error(err))
		} else if ok {
			a.logger.Info("last used network", zap.Uint64("chain_id", chainID), zap.String("network", chain.NetworkName(chainID)))
		}
	}

	if account != (common.Address{}) {
		if err := a.store.Dispatch(dashboard.SelectAccount{Account: account}); err != nil {
			return err
		}
	}
	if err := a.store.Dispatch(dashboard.Initialize{}); err != nil {
		return err
	}
	if err := a.store.Wait(ctx); err != nil {
		return err
	}

	state := a.store.State()
	if !state.Network.Ready {
		return fmt.Errorf("connect: %s", state.Error)
	}
	a.logger.Info("connected",
		zap.Uint64("chain_id", state.Network.ChainID),
		zap.String("network", state.Network.Name),
		zap.String("account", state.Account.Hex()),
	)

	if a.pg != nil {
		if err := a.pg.SaveNetwork(ctx, networkPreference, state.Network.ChainID); err != nil {
			a.logger.Warn("save network preference failed", zap.Error(err))
		}
	}
	return nil
}

func (a *app) serveMetrics(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	go func() {
		a.logger.Info("metrics listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}

func optionalAddress(value string) common.Address {
	if value == "" {
		return common.Address{}
	}
	return common.HexToAddress(value)
}

func parseAccount(value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, fmt.Errorf("account is required")
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid account address %q", value)
	}
	return common.HexToAddress(value), nil
}
