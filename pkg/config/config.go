// Package config loads the simulation engine's own ambient run
// configuration — everything about running the engine rather than
// describing a simulation (that lives in internal/engine/schema).
package config

import (
	"fmt"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// LoggingConfig controls level/format/destination of engine logging.
type LoggingConfig struct {
	Level      string `env:"EVENTSIM_LOG_LEVEL,default=info"`
	Format     string `env:"EVENTSIM_LOG_FORMAT,default=text"`
	Output     string `env:"EVENTSIM_LOG_OUTPUT,default=stdout"`
	FilePrefix string `env:"EVENTSIM_LOG_FILE_PREFIX,default=eventsim"`
}

// StoreConfig controls the embedded persistence layer.
type StoreConfig struct {
	Path             string `env:"EVENTSIM_STORE_PATH,default=eventsim.db"`
	MigrateOnStart   bool   `env:"EVENTSIM_STORE_MIGRATE,default=true"`
	BusyTimeoutMS    int    `env:"EVENTSIM_STORE_BUSY_TIMEOUT_MS,default=5000"`
	MaxRetryAttempts int    `env:"EVENTSIM_STORE_MAX_RETRY_ATTEMPTS,default=5"`
}

// RuntimeConfig controls engine-level run behavior not described by a
// simulation config document.
type RuntimeConfig struct {
	RandomSeedOverride int64 `env:"EVENTSIM_SEED_OVERRIDE,default=0"`
	MetricsEnabled     bool  `env:"EVENTSIM_METRICS_ENABLED,default=false"`
	MetricsListenAddr  string `env:"EVENTSIM_METRICS_ADDR,default=:9090"`
}

// RunConfig is the top-level ambient configuration for one engine process.
type RunConfig struct {
	Logging LoggingConfig
	Store   StoreConfig
	Runtime RuntimeConfig
}

// Default returns a RunConfig populated with the same defaults envdecode
// would apply, for call sites (tests, short-lived tools) that don't need
// environment overrides.
func Default() *RunConfig {
	cfg := &RunConfig{}
	if err := envdecode.Decode(cfg); err != nil && !strings.Contains(err.Error(), "no target field") {
		// envdecode only errors here on malformed tags, which would be a
		// programmer error in this file, not a runtime condition.
		panic(fmt.Sprintf("config: invalid default tags: %v", err))
	}
	return cfg
}

// Load reads a .env file if present, then decodes RunConfig from the
// process environment.
func Load() (*RunConfig, error) {
	_ = godotenv.Load()

	cfg := &RunConfig{}
	if err := envdecode.Decode(cfg); err != nil {
		if strings.Contains(err.Error(), "no target field") {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: decode environment: %w", err)
	}
	return cfg, nil
}
