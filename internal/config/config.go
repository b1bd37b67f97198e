package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string   `mapstructure:"PORT"`
	Env              string   `mapstructure:"ENV"`
	DatabaseURL      string   `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret        string   `mapstructure:"JWT_SECRET"`
	TokenTTLHours    int      `mapstructure:"TOKEN_TTL_HOURS"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS     float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int      `mapstructure:"RATE_LIMIT_BURST"`
	PollIntervalSecs int      `mapstructure:"POLL_INTERVAL_SECONDS"`
	SweepIntervalHrs int      `mapstructure:"SWEEP_INTERVAL_HOURS"`
	MissedAfterHours int      `mapstructure:"MISSED_AFTER_HOURS"`
	UploadDir        string   `mapstructure:"UPLOAD_DIR"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("TOKEN_TTL_HOURS", 720)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("POLL_INTERVAL_SECONDS", 30)
	v.SetDefault("SWEEP_INTERVAL_HOURS", 24)
	v.SetDefault("MISSED_AFTER_HOURS", 12)
	v.SetDefault("UPLOAD_DIR", "./uploads")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("TOKEN_TTL_HOURS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("POLL_INTERVAL_SECONDS")
	v.BindEnv("SWEEP_INTERVAL_HOURS")
	v.BindEnv("MISSED_AFTER_HOURS")
	v.BindEnv("UPLOAD_DIR")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// PollInterval returns the reminder reconciliation interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs) * time.Second
}

// SweepInterval returns the expiry sweep interval.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalHrs) * time.Hour
}

// MissedAfter returns how far past its scheduled minute a pending dose may
// drift before a history read flips it to missed.
func (c *Config) MissedAfter() time.Duration {
	return time.Duration(c.MissedAfterHours) * time.Hour
}

// TokenTTL returns the lifetime of issued access tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// Validate checks that the configuration is safe to run. Outside development
// a real JWT secret must be configured; signed sessions protect every
// owner-scoped endpoint.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV is %q", c.Env)
	}
	if c.PollIntervalSecs <= 0 {
		return fmt.Errorf("POLL_INTERVAL_SECONDS must be positive, got %d", c.PollIntervalSecs)
	}
	if c.PollIntervalSecs > 60 {
		// The due check is exact-minute equality; a poll period longer than
		// one minute can skip a dose's whole due window.
		return fmt.Errorf("POLL_INTERVAL_SECONDS must be 60 or less, got %d", c.PollIntervalSecs)
	}
	if c.SweepIntervalHrs <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_HOURS must be positive, got %d", c.SweepIntervalHrs)
	}
	if c.MissedAfterHours <= 0 {
		return fmt.Errorf("MISSED_AFTER_HOURS must be positive, got %d", c.MissedAfterHours)
	}
	return nil
}
