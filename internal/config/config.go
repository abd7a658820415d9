package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration
type Config struct {
	TelegramToken  string  `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`
	AllowedUserIDs []int64 `env:"ALLOWED_USER_IDS,required,notEmpty" envSeparator:","`

	// Bot mode configuration
	WebhookMode bool   `env:"WEBHOOK_MODE"` // If true, use webhook mode; if false, use polling mode
	WebhookURL  string `env:"WEBHOOK_URL"`  // URL for webhook (required if WebhookMode is true)
	Port        string `env:"PORT" envDefault:"8080"`

	// Where completions are announced; 0 disables announcements
	NotificationChatID   int64 `env:"NOTIFICATION_CHAT_ID"`
	NotificationThreadID int   `env:"NOTIFICATION_THREAD_ID"`

	// Cron spec of the evening reminder, e.g. "30 19 * * *"; empty disables it
	ReminderSchedule string `env:"EVENING_REMINDER_SCHEDULE"`

	Locale      string `env:"LOCALE" envDefault:"en"`
	CatalogPath string `env:"CATALOG_PATH"` // empty uses the embedded catalog
	Debug       bool   `env:"DEBUG"`

	ClickHouse

	UseMockDB bool `env:"USE_MOCK_DB"`
}

// ClickHouse holds the connection settings shared by the app and the migration CLI
type ClickHouse struct {
	ClickHouseHost     string `env:"CLICKHOUSE_HOST"`
	ClickHousePort     int    `env:"CLICKHOUSE_PORT" envDefault:"9000"`
	ClickHouseDatabase string `env:"CLICKHOUSE_DATABASE" envDefault:"default"`
	ClickHouseUser     string `env:"CLICKHOUSE_USER" envDefault:"default"`
	ClickHousePassword string `env:"CLICKHOUSE_PASSWORD"`
	ClickHouseUseTLS   bool   `env:"CLICKHOUSE_USE_TLS"`
}

// LoadClickHouseFromEnv loads only the ClickHouse settings, for tools that
// do not run the bot
func LoadClickHouseFromEnv() (*ClickHouse, error) {
	return loadClickHouse(env.Options{})
}

func loadClickHouse(opts env.Options) (*ClickHouse, error) {
	c := &ClickHouse{}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if c.ClickHouseHost == "" {
		return nil, errors.New("CLICKHOUSE_HOST is required")
	}
	return c, nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	return load(env.Options{})
}

func load(opts env.Options) (*Config, error) {
	config := &Config{}
	if err := env.ParseWithOptions(config, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.WebhookMode && c.WebhookURL == "" {
		return errors.New("WEBHOOK_URL is required when WEBHOOK_MODE is true")
	}
	if !c.UseMockDB && c.ClickHouseHost == "" {
		return errors.New("CLICKHOUSE_HOST is required when USE_MOCK_DB is not set")
	}
	if c.NotificationThreadID != 0 && c.NotificationChatID == 0 {
		return errors.New("NOTIFICATION_THREAD_ID requires NOTIFICATION_CHAT_ID")
	}
	return nil
}

// IsAllowed reports whether a Telegram user may use the bot
func (c *Config) IsAllowed(userID int64) bool {
	for _, id := range c.AllowedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
