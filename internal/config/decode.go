package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DecodeConfig holds configuration for the decode command.
type DecodeConfig struct {
	RPCURL          string
	In              string
	Out             string
	Errors          string
	LogLevel        string
	Topic0Map       map[string]string
	Pools           []string
	IncludeLiveMeta bool
}

// LoadDecode merges config file, environment variables, and flags into DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("in", "./data/events.jsonl")
		v.SetDefault("out", "./data/typed_events.jsonl")
		v.SetDefault("errors", "./data/decode_errors.jsonl")
		v.SetDefault("include-live-meta", false)
	})
	if err != nil {
		return DecodeConfig{}, err
	}

	return DecodeConfig{
		RPCURL:          v.GetString("rpc"),
		In:              v.GetString("in"),
		Out:             v.GetString("out"),
		Errors:          v.GetString("errors"),
		LogLevel:        v.GetString("log-level"),
		Topic0Map:       getStringMap(v, "topic0-map"),
		Pools:           getStringSlice(v, "pool"),
		IncludeLiveMeta: v.GetBool("include-live-meta"),
	}, nil
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	pairs := strings.Split(input, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
