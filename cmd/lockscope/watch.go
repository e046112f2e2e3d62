package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lockScope/internal/config"
	"lockScope/internal/dashboard"
)

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	account, err := parseAccount(cfg.Account)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	persist := newPersister(a.sinks, logger)
	a.store.Subscribe(persist.observe)
	persistCtx, stopPersist := context.WithCancel(context.Background())
	defer stopPersist()
	persistDone := make(chan struct{})
	go func() {
		defer close(persistDone)
		persist.run(persistCtx)
	}()

	a.serveMetrics(ctx, cfg.MetricsAddr)

	logger.Info("watch start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("account", account.Hex()),
		zap.String("token", cfg.Token),
		zap.Duration("refresh_interval", cfg.RefreshInterval),
		zap.Int("sinks", len(a.sinks)),
	)

	if err := a.connect(ctx, account); err != nil {
		return err
	}

	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := a.store.Wait(waitCtx); err != nil {
				logger.Warn("queries still running at shutdown", zap.Error(err))
			}
			cancel()
			stopPersist()
			<-persistDone
			logger.Info("watch stopped")
			return nil
		case at := <-ticker.C:
			if err := a.store.Dispatch(dashboard.RefreshAccountState{At: at}); err != nil {
				return err
			}
			if msg := a.store.State().Error; msg != "" {
				logger.Warn("account refresh error", zap.String("error", msg))
			}
		}
	}
}
