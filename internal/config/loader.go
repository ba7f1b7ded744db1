// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath string
	version    string
	// ConsumedEnvKeys records every key the loader looked at.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. An empty configPath skips the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(name, def string) string {
	key := EnvPrefix + name
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, def)
}

func (l *Loader) envBool(name string, def bool) bool {
	key := EnvPrefix + name
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, def)
}

func (l *Loader) envInt(name string, def int) int {
	key := EnvPrefix + name
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, def)
}

func (l *Loader) envDuration(name string, def time.Duration) time.Duration {
	key := EnvPrefix + name
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, def)
}

func (l *Loader) envFloat(name string, def float64) float64 {
	key := EnvPrefix + name
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, def)
}

// Load runs defaults, then the strict file, then the environment, then Validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes path over cfg. Keys absent from the file keep their
// current value.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.DataDir = l.envString("DATA_DIR", cfg.DataDir)
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString("LOG_SERVICE", cfg.LogService)

	cfg.Store.Backend = l.envString("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Path = l.envString("STORE_PATH", cfg.Store.Path)
	cfg.Store.DSN = l.envString("STORE_DSN", cfg.Store.DSN)

	cfg.Engine.LockTimeout = l.envDuration("LOCK_TIMEOUT", cfg.Engine.LockTimeout)
	cfg.Engine.PersistTimeout = l.envDuration("PERSIST_TIMEOUT", cfg.Engine.PersistTimeout)
	cfg.Engine.NearExpiryWindow = l.envDuration("NEAR_EXPIRY_WINDOW", cfg.Engine.NearExpiryWindow)

	cfg.Sweeper.Interval = l.envDuration("SWEEP_INTERVAL", cfg.Sweeper.Interval)
	cfg.Sweeper.LostAfterMonths = l.envInt("LOST_AFTER_MONTHS", cfg.Sweeper.LostAfterMonths)
	cfg.Sweeper.RatePerSecond = l.envFloat("SWEEP_RATE", cfg.Sweeper.RatePerSecond)

	cfg.Anomaly.LongTailFactor = l.envFloat("ANOMALY_LONG_TAIL_FACTOR", cfg.Anomaly.LongTailFactor)
	cfg.Anomaly.LongTailMinAge = l.envDuration("ANOMALY_LONG_TAIL_MIN_AGE", cfg.Anomaly.LongTailMinAge)

	cfg.Directory.Backend = l.envString("DIRECTORY_BACKEND", cfg.Directory.Backend)
	cfg.Directory.Path = l.envString("DIRECTORY_PATH", cfg.Directory.Path)
	cfg.Directory.Redis.Addr = l.envString("REDIS_ADDR", cfg.Directory.Redis.Addr)
	cfg.Directory.Redis.Password = l.envString("REDIS_PASSWORD", cfg.Directory.Redis.Password)
	cfg.Directory.Redis.DB = l.envInt("REDIS_DB", cfg.Directory.Redis.DB)

	cfg.API.ListenAddr = l.envString("LISTEN", cfg.API.ListenAddr)
	cfg.API.RateLimit = l.envInt("RATE_LIMIT", cfg.API.RateLimit)
	cfg.API.RateWindow = l.envDuration("RATE_WINDOW", cfg.API.RateWindow)

	cfg.Telemetry.Enabled = l.envBool("TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}

// ResolvePath joins p onto DataDir unless p is absolute or empty.
func (c AppConfig) ResolvePath(p string) string {
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}
