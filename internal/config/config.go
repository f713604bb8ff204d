package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries every runtime knob of the API. Values come from
// NIVESH_* environment variables, optionally seeded from a local .env
// file; environment always wins.
type Config struct {
	HTTPAddr          string
	GRPCHealthAddr    string
	PGDSN             string
	RatePerSecond     float64
	RateBurst         int
	LockTimeout       time.Duration
	InvariantInterval time.Duration
}

// Load reads configuration from the environment. A missing .env file is
// not an error; a malformed one is.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !strings.Contains(err.Error(), "no such file") {
				return Config{}, err
			}
		}
	}
	v.SetEnvPrefix("NIVESH")
	v.AutomaticEnv()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("grpc_health_addr", "")
	v.SetDefault("pg_dsn", "")
	v.SetDefault("rate_per_second", 50.0)
	v.SetDefault("rate_burst", 100)
	v.SetDefault("lock_timeout", 3*time.Second)
	v.SetDefault("invariant_interval", time.Minute)

	cfg := Config{
		HTTPAddr:          v.GetString("http_addr"),
		GRPCHealthAddr:    v.GetString("grpc_health_addr"),
		PGDSN:             v.GetString("pg_dsn"),
		RatePerSecond:     v.GetFloat64("rate_per_second"),
		RateBurst:         v.GetInt("rate_burst"),
		LockTimeout:       v.GetDuration("lock_timeout"),
		InvariantInterval: v.GetDuration("invariant_interval"),
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 50
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 100
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 3 * time.Second
	}
	if cfg.InvariantInterval <= 0 {
		cfg.InvariantInterval = time.Minute
	}
	return cfg, nil
}
