// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Default(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"log level", func(c *AppConfig) { c.LogLevel = "loud" }, "logLevel"},
		{"unknown store", func(c *AppConfig) { c.Store.Backend = "mongo" }, "store.backend"},
		{"sqlite without path", func(c *AppConfig) { c.Store.Path = "" }, "store.path"},
		{"postgres without dsn", func(c *AppConfig) { c.Store.Backend = "postgres" }, "store.dsn"},
		{"lock timeout", func(c *AppConfig) { c.Engine.LockTimeout = 0 }, "lockTimeout"},
		{"lost months", func(c *AppConfig) { c.Sweeper.LostAfterMonths = 0 }, "lostAfterMonths"},
		{"long tail factor", func(c *AppConfig) { c.Anomaly.LongTailFactor = 1 }, "longTailFactor"},
		{"file directory", func(c *AppConfig) { c.Directory.Backend = "file" }, "directory.path"},
		{"redis directory", func(c *AppConfig) { c.Directory.Backend = "redis" }, "directory.redis.addr"},
		{"listen addr", func(c *AppConfig) { c.API.ListenAddr = "8088" }, "listenAddr"},
		{"rate window", func(c *AppConfig) { c.API.RateWindow = 0 }, "rateWindow"},
		{"exporter", func(c *AppConfig) { c.Telemetry.Enabled = true; c.Telemetry.Exporter = "zipkin" }, "exporter"},
		{"sampling", func(c *AppConfig) { c.Telemetry.SamplingRate = 2 }, "samplingRate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_MemoryStoreNeedsNothing(t *testing.T) {
	cfg := Default()
	cfg.Store = StoreConfig{Backend: "memory"}
	cfg.API.RateLimit = 0
	cfg.API.RateWindow = 0
	assert.NoError(t, Validate(cfg))
}
