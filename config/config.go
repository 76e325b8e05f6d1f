// Package config loads service configuration from a YAML file with
// environment-friendly defaults.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`

	Postgres struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"postgres"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
	} `mapstructure:"redis"`

	Editor struct {
		MaxMessageSize int64         `mapstructure:"max_message_size"`
		WriteTimeout   time.Duration `mapstructure:"write_timeout"`
		ReadTimeout    time.Duration `mapstructure:"read_timeout"`
		PingInterval   time.Duration `mapstructure:"ping_interval"`
		SelectionTTL   time.Duration `mapstructure:"selection_ttl"`
	} `mapstructure:"editor"`
}

// Load reads the configuration file at path. An empty path uses defaults
// only; Postgres and Redis stay disabled unless configured.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("editor.max_message_size", 512*1024)
	v.SetDefault("editor.write_timeout", "10s")
	v.SetDefault("editor.read_timeout", "60s")
	v.SetDefault("editor.ping_interval", "30s")
	v.SetDefault("editor.selection_ttl", "5m")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
