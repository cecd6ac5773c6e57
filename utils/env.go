package utils

import (
	"os"
	"slices"
	"time"

	"github.com/spf13/cast"

	"github.com/invscan/autocount/logging"
)

// EnvTrueValues contains strings that we interpret as boolean true in env vars.
var EnvTrueValues = []string{"true", "yes", "1", "TRUE", "YES"}

// EnvBool reports whether the given env var is set to one of EnvTrueValues.
func EnvBool(key string) bool {
	return slices.Contains(EnvTrueValues, os.Getenv(key))
}

// EnvFloat64 returns the env var parsed as a float, or def when unset. Unparseable values are
// logged and fall back to def.
func EnvFloat64(key string, def float64, logger logging.Logger) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	val, err := cast.ToFloat64E(raw)
	if err != nil {
		logger.Warnw("failed to parse env var, falling back to default", "var", key, "default", def, "error", err)
		return def
	}
	return val
}

// EnvInt returns the env var parsed as an int, or def when unset.
func EnvInt(key string, def int, logger logging.Logger) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	val, err := cast.ToIntE(raw)
	if err != nil {
		logger.Warnw("failed to parse env var, falling back to default", "var", key, "default", def, "error", err)
		return def
	}
	return val
}

// EnvDuration returns the env var parsed as a duration ("1s", "250ms"), or def when unset.
func EnvDuration(key string, def time.Duration, logger logging.Logger) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	val, err := cast.ToDurationE(raw)
	if err != nil {
		logger.Warnw("failed to parse env var, falling back to default", "var", key, "default", def, "error", err)
		return def
	}
	return val
}

// EnvString returns the env var, or def when unset or empty.
func EnvString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
