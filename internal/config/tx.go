package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// TxConfig holds configuration for the lock and unlock commands.
type TxConfig struct {
	Config
	PrivateKey  string
	Amount      *big.Int
	MineTimeout time.Duration
}

// LoadTx merges config file, environment variables, and flags into TxConfig.
// Amount is an integer in token base units.
func LoadTx(cfgFile string, flags *pflag.FlagSet) (TxConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return TxConfig{}, err
	}
	v.SetDefault("mine-timeout", 2*time.Minute)

	base, err := fromViper(v)
	if err != nil {
		return TxConfig{}, err
	}

	cfg := TxConfig{
		Config:      base,
		PrivateKey:  strings.TrimSpace(v.GetString("private-key")),
		MineTimeout: v.GetDuration("mine-timeout"),
	}
	raw := strings.TrimSpace(v.GetString("amount"))
	if raw == "" {
		return TxConfig{}, fmt.Errorf("amount is required")
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return TxConfig{}, fmt.Errorf("invalid amount %q", raw)
	}
	cfg.Amount = amount
	if cfg.PrivateKey == "" {
		return TxConfig{}, fmt.Errorf("private key is required")
	}
	if cfg.LockContract == "" {
		return TxConfig{}, fmt.Errorf("lock contract is required")
	}
	return cfg, nil
}
