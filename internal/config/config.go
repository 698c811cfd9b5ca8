package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CLMM_PG_DSN.
const EnvPrefix = "CLMM"

// StoreConfig selects where pools and balances live.
type StoreConfig struct {
	Kind      string
	BadgerDir string
	PGDSN     string
}

// Config holds configuration for the sync command.
type Config struct {
	RPCURL            string
	Pool              string
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	Out               string
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	Store             StoreConfig
	LogLevel          string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		storeDefaults(v)
		v.SetDefault("batch-size", uint64(2000))
		v.SetDefault("out", "")
		v.SetDefault("checkpoint", "./data/sync_checkpoint.json")
		v.SetDefault("checkpoint-enabled", true)
		v.SetDefault("max-retries", 5)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
	})
	if err != nil {
		return Config{}, err
	}

	return Config{
		RPCURL:            v.GetString("rpc"),
		Pool:              v.GetString("pool"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		Out:               v.GetString("out"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Store:             storeConfig(v),
		LogLevel:          v.GetString("log-level"),
	}, nil
}

// newViper layers defaults, the config file, CLMM_* env and bound flags.
// A missing default ./config.* file is not an error.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	if defaults != nil {
		defaults(v)
	}

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

func storeDefaults(v *viper.Viper) {
	v.SetDefault("store", "badger")
	v.SetDefault("badger-dir", "./data/badger")
}

func storeConfig(v *viper.Viper) StoreConfig {
	return StoreConfig{
		Kind:      strings.ToLower(v.GetString("store")),
		BadgerDir: v.GetString("badger-dir"),
		PGDSN:     v.GetString("pg-dsn"),
	}
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
