// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// AppConfig is the full runtime configuration.
type AppConfig struct {
	Version    string `yaml:"-"`
	DataDir    string `yaml:"dataDir"`
	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`

	Store     StoreConfig     `yaml:"store"`
	Engine    EngineConfig    `yaml:"engine"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`
	Anomaly   AnomalyConfig   `yaml:"anomaly"`
	Directory DirectoryConfig `yaml:"directory"`
	API       APIConfig       `yaml:"api"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StoreConfig selects the repository backend.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	// Path is the sqlite file or badger directory. Relative paths resolve
	// against DataDir.
	Path string `yaml:"path"`
	DSN  string `yaml:"dsn"`
}

type EngineConfig struct {
	LockTimeout      time.Duration `yaml:"lockTimeout"`
	PersistTimeout   time.Duration `yaml:"persistTimeout"`
	NearExpiryWindow time.Duration `yaml:"nearExpiryWindow"`
}

type SweeperConfig struct {
	// Interval 0 disables the background sweeper.
	Interval        time.Duration `yaml:"interval"`
	LostAfterMonths int           `yaml:"lostAfterMonths"`
	RatePerSecond   float64       `yaml:"ratePerSecond"`
}

type AnomalyConfig struct {
	LongTailFactor float64       `yaml:"longTailFactor"`
	LongTailMinAge time.Duration `yaml:"longTailMinAge"`
}

type DirectoryConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// APIConfig configures the HTTP surface. RateLimit applies per client IP to
// mutating routes; 0 disables it.
type APIConfig struct {
	ListenAddr string        `yaml:"listenAddr"`
	RateLimit  int           `yaml:"rateLimit"`
	RateWindow time.Duration `yaml:"rateWindow"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}
