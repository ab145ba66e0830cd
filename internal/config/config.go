package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8080"`
	Env  string `env:"APP_ENV" envDefault:"development"`

	RedisURL  string `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	CASMaxRetries int           `env:"SESSION_CAS_RETRIES" envDefault:"5"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	ReceiptSecret string `env:"RECEIPT_SECRET"`

	RateLimitCreate int `env:"RATE_LIMIT_CREATE" envDefault:"30"`  // per minute
	RateLimitClicks int `env:"RATE_LIMIT_CLICKS" envDefault:"120"` // per minute

	JanitorSchedule string `env:"JANITOR_SCHEDULE" envDefault:"@every 10m"`
}

// Load parses the process environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.CASMaxRetries < 1 {
		return fmt.Errorf("SESSION_CAS_RETRIES must be at least 1, got %d", c.CASMaxRetries)
	}
	if c.Env == "production" && len(c.ReceiptSecret) < 32 {
		return fmt.Errorf("RECEIPT_SECRET must be at least 32 bytes in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
