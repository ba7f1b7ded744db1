// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

const day = 24 * time.Hour

// Default returns the built-in configuration.
func Default() AppConfig {
	return AppConfig{
		DataDir:    "/var/lib/cylinderd",
		LogLevel:   "info",
		LogService: "cylinderd",
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    "cylinderd.db",
		},
		Engine: EngineConfig{
			LockTimeout:      5 * time.Second,
			PersistTimeout:   5 * time.Second,
			NearExpiryWindow: 30 * day,
		},
		Sweeper: SweeperConfig{
			Interval:        24 * time.Hour,
			LostAfterMonths: 24,
			RatePerSecond:   20,
		},
		Anomaly: AnomalyConfig{
			LongTailFactor: 3,
			LongTailMinAge: 90 * day,
		},
		Directory: DirectoryConfig{
			Backend: "memory",
		},
		API: APIConfig{
			ListenAddr: ":8088",
			RateLimit:  60,
			RateWindow: time.Minute,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1,
		},
	}
}
