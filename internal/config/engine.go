package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EngineConfig holds configuration shared by the pool commands.
type EngineConfig struct {
	Store       StoreConfig
	ChainID     uint64
	Events      string
	MetricsFile string
	LogLevel    string
}

// LoadEngine merges config file, environment variables, and flags into EngineConfig.
func LoadEngine(cfgFile string, flags *pflag.FlagSet) (EngineConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		storeDefaults(v)
		v.SetDefault("chain-id", uint64(31337))
		v.SetDefault("events", "./data/events.jsonl")
	})
	if err != nil {
		return EngineConfig{}, err
	}

	return EngineConfig{
		Store:       storeConfig(v),
		ChainID:     v.GetUint64("chain-id"),
		Events:      v.GetString("events"),
		MetricsFile: v.GetString("metrics-file"),
		LogLevel:    v.GetString("log-level"),
	}, nil
}
