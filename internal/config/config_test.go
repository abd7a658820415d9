package config

import (
	"testing"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEnv(vars map[string]string) env.Options {
	return env.Options{Environment: vars}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(withEnv(map[string]string{
		"TELEGRAM_BOT_TOKEN": "token",
		"ALLOWED_USER_IDS":   "1,2,3",
		"USE_MOCK_DB":        "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, "token", cfg.TelegramToken)
	assert.Equal(t, []int64{1, 2, 3}, cfg.AllowedUserIDs)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, 9000, cfg.ClickHousePort)
	assert.Equal(t, "default", cfg.ClickHouseDatabase)
	assert.Equal(t, "default", cfg.ClickHouseUser)
	assert.False(t, cfg.WebhookMode)
	assert.Empty(t, cfg.ReminderSchedule)
	assert.True(t, cfg.IsAllowed(2))
	assert.False(t, cfg.IsAllowed(4))
}

func TestLoad_ClickHouse(t *testing.T) {
	cfg, err := load(withEnv(map[string]string{
		"TELEGRAM_BOT_TOKEN":  "token",
		"ALLOWED_USER_IDS":    "42",
		"CLICKHOUSE_HOST":     "db.internal",
		"CLICKHOUSE_PORT":     "9440",
		"CLICKHOUSE_USE_TLS":  "true",
		"CLICKHOUSE_PASSWORD": "secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.ClickHouseHost)
	assert.Equal(t, 9440, cfg.ClickHousePort)
	assert.True(t, cfg.ClickHouseUseTLS)
	assert.Equal(t, "secret", cfg.ClickHousePassword)
}

func TestLoad_Errors(t *testing.T) {
	base := func(extra map[string]string) map[string]string {
		vars := map[string]string{
			"TELEGRAM_BOT_TOKEN": "token",
			"ALLOWED_USER_IDS":   "1",
			"USE_MOCK_DB":        "true",
		}
		for k, v := range extra {
			vars[k] = v
		}
		return vars
	}

	testCases := []struct {
		name string
		vars map[string]string
	}{
		{name: "missing token", vars: map[string]string{"ALLOWED_USER_IDS": "1", "USE_MOCK_DB": "true"}},
		{name: "missing allowed users", vars: map[string]string{"TELEGRAM_BOT_TOKEN": "t", "USE_MOCK_DB": "true"}},
		{name: "invalid user id", vars: base(map[string]string{"ALLOWED_USER_IDS": "1,abc"})},
		{name: "webhook without url", vars: base(map[string]string{"WEBHOOK_MODE": "true"})},
		{name: "clickhouse without host", vars: base(map[string]string{"USE_MOCK_DB": "false"})},
		{name: "invalid port", vars: base(map[string]string{"CLICKHOUSE_PORT": "nine"})},
		{name: "thread without chat", vars: base(map[string]string{"NOTIFICATION_THREAD_ID": "7"})},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(withEnv(tc.vars))
			assert.Error(t, err)
		})
	}
}

func TestLoad_Webhook(t *testing.T) {
	cfg, err := load(withEnv(map[string]string{
		"TELEGRAM_BOT_TOKEN":        "token",
		"ALLOWED_USER_IDS":          "1",
		"USE_MOCK_DB":               "true",
		"WEBHOOK_MODE":              "true",
		"WEBHOOK_URL":               "https://example.com",
		"NOTIFICATION_CHAT_ID":      "-100123",
		"NOTIFICATION_THREAD_ID":    "7",
		"EVENING_REMINDER_SCHEDULE": "30 19 * * *",
		"LOCALE":                    "he",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.WebhookMode)
	assert.Equal(t, "https://example.com", cfg.WebhookURL)
	assert.Equal(t, int64(-100123), cfg.NotificationChatID)
	assert.Equal(t, 7, cfg.NotificationThreadID)
	assert.Equal(t, "30 19 * * *", cfg.ReminderSchedule)
	assert.Equal(t, "he", cfg.Locale)
}

func TestLoadClickHouse(t *testing.T) {
	c, err := loadClickHouse(withEnv(map[string]string{
		"CLICKHOUSE_HOST":     "db.internal",
		"CLICKHOUSE_PASSWORD": "secret",
		"CLICKHOUSE_USE_TLS":  "true",
	}))
	require.NoError(t, err)
	assert.Equal(t, "db.internal", c.ClickHouseHost)
	assert.Equal(t, 9000, c.ClickHousePort)
	assert.Equal(t, "default", c.ClickHouseDatabase)
	assert.Equal(t, "default", c.ClickHouseUser)
	assert.Equal(t, "secret", c.ClickHousePassword)
	assert.True(t, c.ClickHouseUseTLS)

	// The bot configuration reads the same variables
	full, err := load(withEnv(map[string]string{
		"TELEGRAM_BOT_TOKEN":  "token",
		"ALLOWED_USER_IDS":    "1",
		"CLICKHOUSE_HOST":     "db.internal",
		"CLICKHOUSE_PASSWORD": "secret",
		"CLICKHOUSE_USE_TLS":  "true",
	}))
	require.NoError(t, err)
	assert.Equal(t, *c, full.ClickHouse)

	_, err = loadClickHouse(withEnv(map[string]string{}))
	assert.Error(t, err)
	_, err = loadClickHouse(withEnv(map[string]string{"CLICKHOUSE_HOST": "h", "CLICKHOUSE_PORT": "nine"}))
	assert.Error(t, err)
}
