package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the dispatcher process. It is built
// once at startup and passed by reference into the components that need it;
// nothing reads configuration ad hoc mid-pass.
type Config struct {
	DatabasePath   string        `mapstructure:"database_path" validate:"required"`
	WorkerAPIURL   string        `mapstructure:"worker_api_url" validate:"required,url"`
	WorkerAPIKey   string        `mapstructure:"worker_api_key"`
	WorkerTimeout  time.Duration `mapstructure:"worker_timeout" validate:"gt=0"`
	HTTPListenAddr string        `mapstructure:"http_listen_addr" validate:"required"`
	DispatchCron   string        `mapstructure:"dispatch_cron"`
	EtcdEndpoints  []string      `mapstructure:"etcd_endpoints"`
	EtcdTimeout    time.Duration `mapstructure:"etcd_timeout"`
}

// Load loads configuration from file and environment variables. A missing
// worker API URL or database path is a fatal configuration error.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults. Keys without a useful default still get an empty one so
	// AutomaticEnv can see them during Unmarshal.
	v.SetDefault("database_path", "./data/dispatch.db")
	v.SetDefault("worker_api_url", "")
	v.SetDefault("worker_api_key", "")
	v.SetDefault("worker_timeout", "30s")
	v.SetDefault("http_listen_addr", ":8080")
	v.SetDefault("dispatch_cron", "")
	v.SetDefault("etcd_endpoints", []string{})
	v.SetDefault("etcd_timeout", "5s")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// No config file: defaults and env vars are enough.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
