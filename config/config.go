package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment.
type Config struct {
	DatabaseURL    string   `env:"DATABASE_URL"`
	DatabaseDriver string   `env:"DATABASE_DRIVER" envDefault:"postgres"` // postgres | sqlite
	Port           string   `env:"PORT" envDefault:"5200"`
	ServiceToken   string   `env:"GAME_SERVICE_TOKEN"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// EconomyFile overrides the embedded economy catalog when set.
	EconomyFile string `env:"ECONOMY_FILE"`

	Limits      Limits
	Leveling    Leveling
	Diminishing Diminishing
	Workers     Workers
	R2          R2

	NotifyWebhookURL   string        `env:"NOTIFY_WEBHOOK_URL"`
	ActionFeedURL      string        `env:"ACTION_FEED_URL"`
	ActionFeedInterval time.Duration `env:"ACTION_FEED_INTERVAL" envDefault:"30s"`
	ReconcileInterval  time.Duration `env:"RECONCILE_INTERVAL" envDefault:"15m"`
}

// Limits are the anti-abuse thresholds applied before any award.
type Limits struct {
	MaxActionsPerHour         int64         `env:"ESSENCE_MAX_ACTIONS_PER_HOUR" envDefault:"20"`
	MaxEssencePerHour         int64         `env:"ESSENCE_MAX_PER_HOUR" envDefault:"500"`
	InstantCompletionCooldown time.Duration `env:"ESSENCE_INSTANT_COOLDOWN" envDefault:"1m"`
}

type Leveling struct {
	Constant int64 `env:"ESSENCE_LEVEL_CONSTANT" envDefault:"100"`
}

type Diminishing struct {
	Enabled     bool   `env:"ESSENCE_DIMINISHING_ENABLED" envDefault:"true"`
	DayLocation string `env:"ESSENCE_DAY_LOCATION" envDefault:"UTC"`
}

type Workers struct {
	AwardWorkers int `env:"AWARD_WORKERS" envDefault:"4"`
	EventBuffer  int `env:"EVENT_BUFFER" envDefault:"256"`
}

// R2 holds the optional object storage credentials for reward artwork.
type R2 struct {
	AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	Bucket          string `env:"R2_BUCKET_NAME"`
	CDNBaseURL      string `env:"CDN_BASE_URL"`
}

// Enabled reports whether enough R2 settings are present to build a client.
func (r R2) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.AccessKeySecret != "" && r.Bucket != ""
}

// Load reads .env (if present) and then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return Parse()
}

// Parse parses the current environment without touching .env.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Leveling.Constant <= 0 {
		return nil, fmt.Errorf("ESSENCE_LEVEL_CONSTANT must be positive, got %d", cfg.Leveling.Constant)
	}
	if cfg.Workers.AwardWorkers < 1 {
		cfg.Workers.AwardWorkers = 1
	}
	if cfg.Workers.EventBuffer < 1 {
		cfg.Workers.EventBuffer = 1
	}
	return &cfg, nil
}

// DayLocation resolves the time zone used for calendar-day boundaries.
func (c *Config) DayLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Diminishing.DayLocation)
	if err != nil {
		return nil, fmt.Errorf("load ESSENCE_DAY_LOCATION %q: %w", c.Diminishing.DayLocation, err)
	}
	return loc, nil
}
