package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP (due-date reminders)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// External feeds
	OffersURL   string
	RatesURL    string
	HolidaysURL string

	// Locale defaults
	BaseCurrency string
	CountryCode  string

	// Ledger behavior
	StrictCycleDays bool

	// Feed caching
	FeedCacheTTL time.Duration

	// Reminder worker
	ReminderInterval time.Duration
	ReminderLeadDays int
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8082"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/cardwise.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "cardwise"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "due_reminders"),

		OffersURL:   getEnv("OFFERS_URL", "https://raw.githubusercontent.com/ilkeuygun/mock-apis/main/card_offers.json"),
		RatesURL:    getEnv("RATES_URL", "https://api.exchangerate.host/latest"),
		HolidaysURL: getEnv("HOLIDAYS_URL", "https://date.nager.at/api/v3/PublicHolidays"),

		BaseCurrency: getEnv("BASE_CURRENCY", "USD"),
		CountryCode:  getEnv("COUNTRY_CODE", "US"),

		StrictCycleDays: getEnvBool("STRICT_CYCLE_DAYS", false),

		FeedCacheTTL: getEnvDuration("FEED_CACHE_TTL", 15*time.Minute),

		ReminderInterval: getEnvDuration("REMINDER_INTERVAL", 6*time.Hour),
		ReminderLeadDays: getEnvInt("REMINDER_LEAD_DAYS", 3),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	for name, raw := range map[string]string{
		"OFFERS_URL":   c.OffersURL,
		"RATES_URL":    c.RatesURL,
		"HOLIDAYS_URL": c.HolidaysURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("invalid %s '%s': must be an absolute http(s) URL", name, raw))
		}
	}

	if len(c.BaseCurrency) != 3 {
		errs = append(errs, fmt.Sprintf("invalid base currency '%s': must be a 3-letter code", c.BaseCurrency))
	}
	if len(c.CountryCode) != 2 {
		errs = append(errs, fmt.Sprintf("invalid country code '%s': must be a 2-letter code", c.CountryCode))
	}

	if c.FeedCacheTTL < time.Second {
		errs = append(errs, fmt.Sprintf("invalid feed cache TTL %v: must be at least 1 second", c.FeedCacheTTL))
	}

	if c.ReminderInterval < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid reminder interval %v: must be at least 1 minute", c.ReminderInterval))
	} else if c.ReminderInterval > 7*24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid reminder interval %v: must be at most 7 days", c.ReminderInterval))
	}
	if c.ReminderLeadDays < 0 || c.ReminderLeadDays > 31 {
		errs = append(errs, fmt.Sprintf("invalid reminder lead days %d: must be between 0 and 31", c.ReminderLeadDays))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
