package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DBPath        string
	LockTimeout   time.Duration
	GeomTolerance float64
}

func Load() Config {
	initEnvFile()
	cfg := Config{
		DBPath: envOr("GUIDEBOOK_DB_PATH", "guidebook.sqlite"),
	}
	cfg.LockTimeout = parseDurationOr("GUIDEBOOK_LOCK_TIMEOUT", 5*time.Second)
	cfg.GeomTolerance = parseFloatOr("GUIDEBOOK_GEOM_TOLERANCE", 0.5)
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func parseFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}
