package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	LogLevel       string
	Production     bool
	AllowedOrigins []string

	StatsBackend string
	StatsPath    string

	TurnTimeout    time.Duration
	HandSize       int
	MaxPlayers     int
	LowHandPenalty int
}

// Load reads configuration from the environment. Values in envFile (if it
// exists) are applied first without overriding variables already set.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	c := &Config{
		Port:           getenv("PORT", "10000"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		Production:     os.Getenv("ENV") == "production",
		AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS", "*")),
		StatsBackend:   getenv("STATS_BACKEND", "json"),
	}
	c.StatsPath = getenv("STATS_PATH", defaultStatsPath(c.StatsBackend))

	var err error
	if c.TurnTimeout, err = duration("TURN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if c.HandSize, err = integer("HAND_SIZE", 7, 1, 20); err != nil {
		return nil, err
	}
	if c.MaxPlayers, err = integer("MAX_PLAYERS", 10, 2, 10); err != nil {
		return nil, err
	}
	if c.LowHandPenalty, err = integer("LOW_HAND_PENALTY", 2, 0, 10); err != nil {
		return nil, err
	}
	switch c.StatsBackend {
	case "json", "sqlite":
	default:
		return nil, fmt.Errorf("STATS_BACKEND must be json or sqlite, got %q", c.StatsBackend)
	}
	return c, nil
}

func defaultStatsPath(backend string) string {
	if backend == "sqlite" {
		return "./uno.db"
	}
	return "./players.json"
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: negative duration", key)
	}
	return d, nil
}

func integer(key string, fallback, lo, hi int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: %d not in [%d, %d]", key, n, lo, hi)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
