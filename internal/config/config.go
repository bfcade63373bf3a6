package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`

	// Insight engine economics. OR_HOURLY_RATE, when set, overrides
	// REVENUE_PER_OR_MINUTE (rate / 60).
	ORHourlyRate         float64 `mapstructure:"OR_HOURLY_RATE"`
	RevenuePerORMinute   float64 `mapstructure:"REVENUE_PER_OR_MINUTE"`
	RevenuePerCase       float64 `mapstructure:"REVENUE_PER_CASE"`
	OperatingDaysPerYear int     `mapstructure:"OPERATING_DAYS_PER_YEAR"`
	MaxInsights          int     `mapstructure:"MAX_INSIGHTS"`
	MinSeverity          string  `mapstructure:"MIN_SEVERITY"`

	// Stale-case detection windows.
	StaleInProgressHours   int `mapstructure:"STALE_IN_PROGRESS_HOURS"`
	AbandonedScheduledDays int `mapstructure:"ABANDONED_SCHEDULED_DAYS"`
	NoActivityHours        int `mapstructure:"NO_ACTIVITY_HOURS"`
	IssueExpiryDays        int `mapstructure:"ISSUE_EXPIRY_DAYS"`
	DetectConcurrency      int `mapstructure:"DETECT_CONCURRENCY"`
}

// defaults is keyed by env var name. DATABASE_URL and OR_HOURLY_RATE are
// deliberately absent: the first is required, the second only overrides.
var defaults = map[string]any{
	"PORT":                     "8000",
	"ENV":                      "development",
	"DB_MAX_CONNS":             20,
	"DB_MIN_CONNS":             5,
	"CORS_ORIGINS":             "http://localhost:3000",
	"RATE_LIMIT_RPS":           100,
	"RATE_LIMIT_BURST":         200,
	"REVENUE_PER_OR_MINUTE":    36,
	"REVENUE_PER_CASE":         2500,
	"OPERATING_DAYS_PER_YEAR":  250,
	"MAX_INSIGHTS":             6,
	"MIN_SEVERITY":             "info",
	"STALE_IN_PROGRESS_HOURS":  24,
	"ABANDONED_SCHEDULED_DAYS": 2,
	"NO_ACTIVITY_HOURS":        4,
	"ISSUE_EXPIRY_DAYS":        30,
	"DETECT_CONCURRENCY":       1,
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// AutomaticEnv alone does not surface env vars through Unmarshal, so
	// every key gets an explicit binding.
	for key, def := range defaults {
		v.SetDefault(key, def)
		v.BindEnv(key)
	}
	v.BindEnv("DATABASE_URL")
	v.BindEnv("OR_HOURLY_RATE")

	// .env is optional; env vars alone can carry the whole config.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// CORS_ORIGINS arrives as one comma-joined string when set through the
	// environment.
	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
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

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Detection windows
// must be positive or the nightly job would flag every open case, and
// MIN_SEVERITY must be a severity the insight engine knows how to rank.
func (c *Config) Validate() error {
	switch c.MinSeverity {
	case "critical", "warning", "positive", "info":
	default:
		return fmt.Errorf("MIN_SEVERITY must be \"critical\", \"warning\", \"positive\", or \"info\", got %q", c.MinSeverity)
	}

	if c.MaxInsights < 1 {
		return fmt.Errorf("MAX_INSIGHTS must be at least 1, got %d", c.MaxInsights)
	}

	if c.StaleInProgressHours <= 0 {
		return fmt.Errorf("STALE_IN_PROGRESS_HOURS must be positive, got %d", c.StaleInProgressHours)
	}
	if c.AbandonedScheduledDays <= 0 {
		return fmt.Errorf("ABANDONED_SCHEDULED_DAYS must be positive, got %d", c.AbandonedScheduledDays)
	}
	if c.NoActivityHours <= 0 {
		return fmt.Errorf("NO_ACTIVITY_HOURS must be positive, got %d", c.NoActivityHours)
	}
	if c.IssueExpiryDays <= 0 {
		return fmt.Errorf("ISSUE_EXPIRY_DAYS must be positive, got %d", c.IssueExpiryDays)
	}
	if c.DetectConcurrency < 1 {
		return fmt.Errorf("DETECT_CONCURRENCY must be at least 1, got %d", c.DetectConcurrency)
	}

	return nil
}
