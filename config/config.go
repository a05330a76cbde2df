// Package config reads runtime settings from the environment, after loading
// an optional .env file.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultAPIBase = "http://localhost:3000/api"

type Config struct {
	APIBase     string
	HTTPTimeout time.Duration
	Lang        string

	// StatePath is the SQLite file backing durable state when Redis is not configured.
	StatePath     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// KeyPrefix scopes Redis state to one account.
	KeyPrefix     string

	TaskPollInterval    time.Duration
	TaskPollMax         int
	PaymentPollInterval time.Duration
	PaymentPollMax      int

	MetricsAddr string
}

// Load reads .env files (missing files are ignored) and then the environment.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			slog.Warn("load env file failed", "file", f, "err", err)
		}
	}

	return Config{
		APIBase:     strings.TrimRight(readEnvDefault("TASKDESK_API_BASE", DefaultAPIBase), "/"),
		HTTPTimeout: readEnvDurationSecondsDefault("TASKDESK_HTTP_TIMEOUT_SECONDS", 30*time.Second),
		Lang:        readEnvDefault("TASKDESK_LANG", "zh-CN"),

		StatePath:     readEnvDefault("TASKDESK_STATE_PATH", defaultStatePath()),
		RedisAddr:     readEnvDefault("REDIS_ADDR", ""),
		RedisPassword: readEnvDefault("REDIS_PASSWORD", ""),
		RedisDB:       readEnvIntDefault("REDIS_DB", 0),
		KeyPrefix:     readEnvDefault("TASKDESK_KEY_PREFIX", "taskdesk:"),

		TaskPollInterval:    readEnvDurationSecondsDefault("TASKDESK_TASK_POLL_SECONDS", 5*time.Second),
		TaskPollMax:         readEnvIntDefault("TASKDESK_TASK_POLL_MAX", 60),
		PaymentPollInterval: readEnvDurationSecondsDefault("TASKDESK_PAYMENT_POLL_SECONDS", 5*time.Second),
		PaymentPollMax:      readEnvIntDefault("TASKDESK_PAYMENT_POLL_MAX", 120),

		MetricsAddr: readEnvDefault("METRICS_ADDR", ""),
	}
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "taskdesk", "state.db")
}

func readEnvDefault(key, defaultVal string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	return val
}

func readEnvIntDefault(key string, defaultVal int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}

func readEnvDurationSecondsDefault(key string, defaultVal time.Duration) time.Duration {
	n := readEnvIntDefault(key, -1)
	if n <= 0 {
		return defaultVal
	}
	return time.Duration(n) * time.Second
}
