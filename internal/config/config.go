// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP. Empty URL disables the export pipeline.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets backup log
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsJSON string
	GoogleCredentialsFile string

	// Worker
	ExportBatchSize   int
	ReconcileInterval time.Duration

	// Logging
	LogLevel string
}

func Load(getenv func(string) string) *Config {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		Port:         get("PORT", "8080"),
		SQLiteDBPath: get("SQLITE_DB_PATH", "./data/tally.db"),

		AMQPURL:      get("AMQP_URL", ""),
		AMQPExchange: get("AMQP_EXCHANGE", "tally"),
		AMQPQueue:    get("AMQP_QUEUE", "export_transactions"),

		GoogleSpreadsheetID:   get("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:       get("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleCredentialsJSON: get("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleCredentialsFile: get("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		LogLevel: get("LOG_LEVEL", "info"),
	}

	cfg.ExportBatchSize = parseInt(get("EXPORT_BATCH_SIZE", "50"), 50)
	cfg.ReconcileInterval = parseDuration(get("RECONCILE_INTERVAL", "1m"), time.Minute)

	return cfg
}

// Validate reports every problem at once instead of failing on the first.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port %q: must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		problems = append(problems, "SQLite database path cannot be empty")
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL %q: %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme %q: must be amqp or amqps", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is set")
		}
		if c.AMQPQueue == "" {
			problems = append(problems, "AMQP queue name cannot be empty when AMQP URL is set")
		}
	}

	if c.ExportBatchSize < 1 {
		problems = append(problems, fmt.Sprintf("invalid export batch size %d: must be at least 1", c.ExportBatchSize))
	}
	if c.ReconcileInterval < time.Second {
		problems = append(problems, fmt.Sprintf("invalid reconcile interval %s: must be at least 1s", c.ReconcileInterval))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ExportEnabled reports whether both the queue and the Sheets target are
// configured.
func (c *Config) ExportEnabled() bool {
	return c.AMQPURL != "" && c.GoogleSpreadsheetID != ""
}

func parseInt(s string, fallback int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return fallback
}
