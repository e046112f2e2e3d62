package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "lockscope",
		Short:        "Token lock dashboard client",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow an account and persist its state",
		RunE:  runWatch,
	}
	addCommonFlags(watchCmd.Flags())
	watchCmd.Flags().Duration("refresh-interval", 15*time.Second, "account refresh interval")
	watchCmd.Flags().String("out", "", "output JSONL path")
	watchCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	watchCmd.Flags().String("redis-addr", "", "Redis address for the snapshot cache")
	watchCmd.Flags().String("redis-password", "", "Redis password")
	watchCmd.Flags().Int("redis-db", 0, "Redis database")
	watchCmd.Flags().Duration("cache-ttl", 5*time.Minute, "snapshot cache TTL")
	watchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(watchCmd)

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch an account once and print it as JSON",
		RunE:  runSnapshot,
	}
	addCommonFlags(snapshotCmd.Flags())
	snapshotCmd.Flags().String("out", "", "also append the snapshot to this JSONL path")

	root.AddCommand(snapshotCmd)

	for _, kind := range []string{"lock", "unlock"} {
		txCmd := &cobra.Command{
			Use:   kind,
			Short: "Submit a " + kind + " transaction",
			RunE:  runTx,
		}
		addCommonFlags(txCmd.Flags())
		txCmd.Flags().String("amount", "", "amount in token base units")
		txCmd.Flags().String("private-key", "", "hex encoded signing key")
		txCmd.Flags().Duration("mine-timeout", 2*time.Minute, "how long to wait for the receipt")
		txCmd.Flags().String("out", "", "append the transaction record to this JSONL path")
		root.AddCommand(txCmd)
	}

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "RPC URL")
	flags.String("aggregator", "", "multicall aggregator address")
	flags.String("token", "", "token address")
	flags.String("lock-contract", "", "lock contract address")
	flags.String("account", "", "account to follow")
	flags.Duration("throttle", 2000*time.Millisecond, "minimum spacing of account refreshes")
	flags.String("retry-schedule", "0s,1s,2.5s,5s", "delays before each account read attempt")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
