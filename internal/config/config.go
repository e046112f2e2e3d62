package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL          string
	Aggregator      string
	Token           string
	LockContract    string
	Account         string
	ThrottleWindow  time.Duration
	RetrySchedule   []time.Duration
	RefreshInterval time.Duration
	Out             string
	PGDSN           string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CacheTTL        time.Duration
	MetricsAddr     string
	LogLevel        string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}
	return fromViper(v)
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("LOCKSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("aggregator", "0xcA11bde05977b3631167028862bE2a173976CA11")
	v.SetDefault("throttle", 2000*time.Millisecond)
	v.SetDefault("retry-schedule", "0s,1s,2.5s,5s")
	v.SetDefault("refresh-interval", 15*time.Second)
	v.SetDefault("cache-ttl", 5*time.Minute)
	v.SetDefault("redis-db", 0)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func fromViper(v *viper.Viper) (Config, error) {
	schedule, err := parseSchedule(getStringSlice(v, "retry-schedule"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:          v.GetString("rpc"),
		Aggregator:      v.GetString("aggregator"),
		Token:           v.GetString("token"),
		LockContract:    v.GetString("lock-contract"),
		Account:         v.GetString("account"),
		ThrottleWindow:  v.GetDuration("throttle"),
		RetrySchedule:   schedule,
		RefreshInterval: v.GetDuration("refresh-interval"),
		Out:             v.GetString("out"),
		PGDSN:           v.GetString("pg-dsn"),
		RedisAddr:       v.GetString("redis-addr"),
		RedisPassword:   v.GetString("redis-password"),
		RedisDB:         v.GetInt("redis-db"),
		CacheTTL:        v.GetDuration("cache-ttl"),
		MetricsAddr:     v.GetString("metrics-addr"),
		LogLevel:        v.GetString("log-level"),
	}
	return cfg, nil
}

// Validate checks the values every command needs.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(c.Aggregator) {
		return fmt.Errorf("invalid aggregator address %q", c.Aggregator)
	}
	if !common.IsHexAddress(c.Token) {
		return fmt.Errorf("invalid token address %q", c.Token)
	}
	if c.LockContract != "" && !common.IsHexAddress(c.LockContract) {
		return fmt.Errorf("invalid lock contract address %q", c.LockContract)
	}
	if c.Account != "" && !common.IsHexAddress(c.Account) {
		return fmt.Errorf("invalid account address %q", c.Account)
	}
	return nil
}

func parseSchedule(items []string) ([]time.Duration, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]time.Duration, 0, len(items))
	for _, item := range items {
		d, err := time.ParseDuration(item)
		if err != nil {
			return nil, fmt.Errorf("retry schedule %q: %w", item, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("retry schedule %q: negative delay", item)
		}
		out = append(out, d)
	}
	return out, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
