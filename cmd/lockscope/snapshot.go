package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lockScope/internal/config"
	"lockScope/internal/model"
)

func runSnapshot(cmd *cobra.Command, _ []string) error {
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

	if err := a.connect(ctx, account); err != nil {
		return err
	}

	state := a.store.State()
	if state.AccountState == nil {
		return fmt.Errorf("account state: %s", state.Error)
	}
	snapshot := state.AccountState.Snapshot(state.Network.Name)
	if len(a.sinks) > 0 {
		if err := a.sinks.PutSnapshots(ctx, []model.AccountSnapshot{snapshot}); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(snapshot)
}
