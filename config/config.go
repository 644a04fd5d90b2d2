package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	TelegramToken  string
	DatabasePath   string
	DatabaseURL    string
	Timezone       *time.Location
	WebhookURL     string
	ServerPort     string
	AllowedUserIDs []int64
	PendingTTL     time.Duration
	PendingMax     int
	LogLevel       string

	// REST API, disabled unless both are set
	APIUsername string
	APIPassword string

	// CalDAV mirror, disabled unless username and password are set
	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVCalendar string
}

// Load reads the configuration from the environment, after applying an
// optional .env file in the working directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	tz, err := time.LoadLocation(getEnv("TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	allowed, err := parseIDs(os.Getenv("ALLOWED_USER_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid ALLOWED_USER_IDS: %w", err)
	}

	pendingTTL, err := time.ParseDuration(getEnv("PENDING_TTL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid PENDING_TTL: %w", err)
	}

	pendingMax, err := strconv.Atoi(getEnv("PENDING_MAX", "1000"))
	if err != nil || pendingMax <= 0 {
		return nil, fmt.Errorf("PENDING_MAX must be a positive number")
	}

	return &Config{
		TelegramToken:  token,
		DatabasePath:   getEnv("DATABASE_PATH", "./data/reminders.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		Timezone:       tz,
		WebhookURL:     strings.TrimSuffix(os.Getenv("WEBHOOK_URL"), "/"),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		AllowedUserIDs: allowed,
		PendingTTL:     pendingTTL,
		PendingMax:     pendingMax,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		APIUsername:    os.Getenv("API_USERNAME"),
		APIPassword:    os.Getenv("API_PASSWORD"),
		CalDAVURL:      os.Getenv("CALDAV_URL"),
		CalDAVUsername: os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword: os.Getenv("CALDAV_PASSWORD"),
		CalDAVCalendar: os.Getenv("CALDAV_CALENDAR"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a user id", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// IsAllowedUser reports whether telegramID may use the bot. An empty
// allow-list lets everyone in.
func (c *Config) IsAllowedUser(telegramID int64) bool {
	if len(c.AllowedUserIDs) == 0 {
		return true
	}
	for _, id := range c.AllowedUserIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// UseWebhook reports whether updates arrive by webhook instead of long polling
func (c *Config) UseWebhook() bool {
	return c.WebhookURL != ""
}

// APIEnabled reports whether the REST API credentials are set
func (c *Config) APIEnabled() bool {
	return c.APIUsername != "" && c.APIPassword != ""
}
