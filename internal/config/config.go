// Package config defines service configuration and its loading order.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/ranking"
)

// DefaultFeedURL is the public rolling-average county feed.
const DefaultFeedURL = "https://raw.githubusercontent.com/nytimes/covid-19-data/master/rolling-averages/us-counties-recent.csv"

// Store drivers.
const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":5000".
	Addr string `koanf:"addr"`

	// FeedURL is the CSV resource fetched once at startup.
	FeedURL string `koanf:"feed_url"`

	// FeedTimeout bounds the startup fetch.
	FeedTimeout time.Duration `koanf:"feed_timeout"`

	// BoundariesPath points at the county boundary GeoJSON.
	BoundariesPath string `koanf:"boundaries_path"`

	// TrendPNGPath is where the trend chart is written.
	TrendPNGPath string `koanf:"trend_png_path"`

	// LeaderboardSize caps each top-N table.
	LeaderboardSize int `koanf:"leaderboard_size"`

	StoreDriver string `koanf:"store_driver"`
	MySQLDSN    string `koanf:"mysql_dsn"`

	MailEnabled  bool   `koanf:"mail_enabled"`
	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUsername string `koanf:"smtp_username"`
	SMTPPassword string `koanf:"smtp_password"`
	SMTPFrom     string `koanf:"smtp_from"`

	// OutboxSize bounds the in-memory mail queue.
	OutboxSize int `koanf:"outbox_size"`

	// MailWorkers is the number of goroutines draining the outbox.
	MailWorkers int `koanf:"mail_workers"`

	// DedupeSize bounds the update-request idempotency set.
	DedupeSize int `koanf:"dedupe_size"`

	DigestEnabled bool   `koanf:"digest_enabled"`
	DigestCron    string `koanf:"digest_cron"`

	MetricsEnabled   bool   `koanf:"metrics_enabled"`
	MetricsNamespace string `koanf:"metrics_namespace"`

	// MetricsRefresh paces the system and subscriber gauge updates.
	MetricsRefresh time.Duration `koanf:"metrics_refresh"`

	// MetricsLabels are attached to every exported series.
	MetricsLabels map[string]string `koanf:"metrics_labels"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":5000",
		FeedURL:         DefaultFeedURL,
		FeedTimeout:     30 * time.Second,
		BoundariesPath:  "gz_2010_us_050_00_500k.json",
		TrendPNGPath:    "static/uploads/line.png",
		LeaderboardSize: 15,
		StoreDriver:     StoreMemory,
		SMTPHost:        "smtp.gmail.com",
		SMTPPort:        587,
		OutboxSize:      1_000,
		MailWorkers:     2,
		DedupeSize:      10_000,
		DigestCron:      "0 8 * * *",

		MetricsEnabled:   true,
		MetricsNamespace: "covidmap",
		MetricsRefresh:   10 * time.Second,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return invalid("addr", "must not be empty")
	case strings.TrimSpace(c.FeedURL) == "":
		return invalid("feed_url", "must not be empty")
	case c.FeedTimeout <= 0:
		return invalid("feed_timeout", "must be positive")
	case strings.TrimSpace(c.BoundariesPath) == "":
		return invalid("boundaries_path", "must not be empty")
	case strings.TrimSpace(c.TrendPNGPath) == "":
		return invalid("trend_png_path", "must not be empty")
	case c.LeaderboardSize < 1 || c.LeaderboardSize > ranking.DefaultSize:
		return invalid("leaderboard_size", fmt.Sprintf("must be between 1 and %d", ranking.DefaultSize))
	case c.OutboxSize < 1:
		return invalid("outbox_size", "must be at least 1")
	case c.MailWorkers < 1:
		return invalid("mail_workers", "must be at least 1")
	case c.MetricsRefresh <= 0:
		return invalid("metrics_refresh", "must be positive")
	}

	switch c.StoreDriver {
	case StoreMemory:
	case StoreMySQL:
		if strings.TrimSpace(c.MySQLDSN) == "" {
			return invalid("mysql_dsn", "required when store_driver is mysql")
		}
	default:
		return invalid("store_driver", fmt.Sprintf("unknown driver %q", c.StoreDriver))
	}

	if c.MailEnabled {
		if c.SMTPHost == "" || c.SMTPPort <= 0 || c.SMTPFrom == "" {
			return invalid("smtp", "host, port and from are required when mail is enabled")
		}
	}
	if c.DigestEnabled && strings.TrimSpace(c.DigestCron) == "" {
		return invalid("digest_cron", "required when digest is enabled")
	}
	return nil
}

func invalid(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidConfig, field, reason)
}
