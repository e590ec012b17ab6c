package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

/* Config is read once at startup and passed down explicitly.
 * Packages never reach for viper themselves; ambient configuration
 * makes the dispatch core untestable in isolation.
 */

type Config struct {
	Port          string `mapstructure:"PORT"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	ProvidersFile string `mapstructure:"PROVIDERS_FILE"`

	// LockStalenessSeconds is how long an execution lock may be held
	// before another worker is allowed to reclaim it.
	LockStalenessSeconds int `mapstructure:"LOCK_STALENESS_SECONDS"`

	// HandlerTimeoutSeconds is the wall-clock budget for one handler
	// invocation. Exceeding it counts as a failed attempt.
	HandlerTimeoutSeconds int `mapstructure:"HANDLER_TIMEOUT_SECONDS"`

	// WorkerPollMillis is the interval at which the worker polls the
	// delayed task queue for due tasks.
	WorkerPollMillis int `mapstructure:"WORKER_POLL_MILLIS"`

	BreakerThreshold       int `mapstructure:"BREAKER_THRESHOLD"`
	BreakerCooldownSeconds int `mapstructure:"BREAKER_COOLDOWN_SECONDS"`
}

func GetConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("PROVIDERS_FILE", "providers.yaml")
	viper.SetDefault("LOCK_STALENESS_SECONDS", 300)
	viper.SetDefault("HANDLER_TIMEOUT_SECONDS", 30)
	viper.SetDefault("WORKER_POLL_MILLIS", 500)
	viper.SetDefault("BREAKER_THRESHOLD", 5)
	viper.SetDefault("BREAKER_COOLDOWN_SECONDS", 60)

	// The .env file is optional; env vars alone are enough.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	return &config, nil
}

// LockStaleness returns the lock staleness window as a duration.
func (c *Config) LockStaleness() time.Duration {
	return time.Duration(c.LockStalenessSeconds) * time.Second
}

// HandlerTimeout returns the handler execution budget as a duration.
func (c *Config) HandlerTimeout() time.Duration {
	return time.Duration(c.HandlerTimeoutSeconds) * time.Second
}

// WorkerPoll returns the worker poll interval as a duration.
func (c *Config) WorkerPoll() time.Duration {
	return time.Duration(c.WorkerPollMillis) * time.Millisecond
}

// BreakerCooldown returns the circuit breaker cooldown as a duration.
func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.BreakerCooldownSeconds) * time.Second
}
