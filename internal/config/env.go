// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/cylinderd/internal/log"
	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every environment key read by the loader.
const EnvPrefix = "CYLINDERD_"

// ParseString reads key or returns defaultValue. Values of keys that look
// secret are never logged.
func ParseString(key, defaultValue string) string {
	return parseEnv(log.WithComponent("config"), key, defaultValue, func(s string) (string, error) { return s, nil })
}

// ParseInt reads an integer, falling back to defaultValue on parse errors.
func ParseInt(key string, defaultValue int) int {
	return parseEnv(log.WithComponent("config"), key, defaultValue, strconv.Atoi)
}

// ParseDuration reads a Go duration ("5s", "720h").
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseEnv(log.WithComponent("config"), key, defaultValue, time.ParseDuration)
}

// ParseFloat reads a float64.
func ParseFloat(key string, defaultValue float64) float64 {
	return parseEnv(log.WithComponent("config"), key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// ParseBool accepts true/false, 1/0 and yes/no, case-insensitive.
func ParseBool(key string, defaultValue bool) bool {
	return parseEnv(log.WithComponent("config"), key, defaultValue, parseBool)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

func sensitiveKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") || strings.Contains(k, "token") || strings.Contains(k, "dsn")
}

// parseEnv is the shared lookup: unset or empty keeps the default, a parse
// failure keeps the default and warns.
func parseEnv[T any](logger zerolog.Logger, key string, defaultValue T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		logger.Debug().
			Str("key", key).
			Interface("default", redact(key, defaultValue)).
			Str("source", "default").
			Msg("using default value")
		return defaultValue
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		logger.Warn().
			Err(err).
			Str("key", key).
			Interface("default", redact(key, defaultValue)).
			Msg("invalid environment value, using default")
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Interface("value", redact(key, v)).
		Bool("sensitive", sensitiveKey(key)).
		Str("source", "environment").
		Msg("using environment variable")
	return v
}

func redact(key string, v any) any {
	if sensitiveKey(key) {
		return "***"
	}
	return v
}
