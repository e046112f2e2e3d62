package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lockScope/internal/chain"
	"lockScope/internal/config"
	"lockScope/internal/dashboard"
	"lockScope/internal/effect"
	"lockScope/internal/model"
)

func runTx(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadTx(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	account, err := chain.SignerAddress(cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("private key: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg.Config, logger,
		chain.WithSigner(cfg.PrivateKey),
		chain.WithMineTimeout(cfg.MineTimeout),
	)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.connect(ctx, account); err != nil {
		return err
	}

	var submit effect.Command = dashboard.LockTokens{Amount: cfg.Amount}
	kind := dashboard.DialogLock
	if cmd.Name() == "unlock" {
		submit = dashboard.UnlockTokens{Amount: cfg.Amount}
		kind = dashboard.DialogUnlock
	}

	if err := a.store.Dispatch(dashboard.OpenDialog{Kind: kind}); err != nil {
		return err
	}
	if err := a.store.Dispatch(submit); err != nil {
		return err
	}
	logger.Info("transaction submitted",
		zap.String("kind", string(kind)),
		zap.String("amount", cfg.Amount.String()),
		zap.String("account", account.Hex()),
	)
	if err := a.store.Wait(ctx); err != nil {
		return err
	}

	state := a.store.State()
	if state.LastTx == nil {
		return fmt.Errorf("%s: %s", kind, state.Error)
	}
	record := state.LastTx.Record(state.Network.ChainID, account)
	if len(a.sinks) > 0 {
		if err := a.sinks.PutTxRecords(ctx, []model.TxRecord{record}); err != nil {
			logger.Warn("record transaction failed", zap.Error(err))
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), record.TxHash)
	return nil
}
