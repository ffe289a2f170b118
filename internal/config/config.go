// Package config loads application configuration from file and environment.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	App struct {
		Env      string `mapstructure:"env"`
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"app"`

	Postgres struct {
		DSN      string `mapstructure:"dsn"`
		MaxConns int32  `mapstructure:"max_conns"`
		MinConns int32  `mapstructure:"min_conns"`
		Migrate  bool   `mapstructure:"migrate"`
	} `mapstructure:"postgres"`

	Ops struct {
		Addr    string `mapstructure:"addr"`
		Metrics bool   `mapstructure:"metrics"`
	} `mapstructure:"ops"`

	Reconciler struct {
		Interval time.Duration `mapstructure:"interval"`
		StoreIDs []string      `mapstructure:"store_ids"`
	} `mapstructure:"reconciler"`
}

// Load reads configuration from path; environment variables prefixed HOPERX_
// override file values.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("HOPERX")
	v.AutomaticEnv()

	v.SetDefault("app.env", "production")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("postgres.max_conns", 25)
	v.SetDefault("postgres.min_conns", 5)
	v.SetDefault("postgres.migrate", true)
	v.SetDefault("ops.addr", ":9090")
	v.SetDefault("ops.metrics", true)
	v.SetDefault("reconciler.interval", time.Hour)

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Postgres.DSN == "" {
		return c, fmt.Errorf("postgres.dsn is required")
	}
	return c, nil
}
