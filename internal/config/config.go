// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file/env on top.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the metrics/health listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreBackend selects the ranked-member store: memory or postgres.
	StoreBackend string `koanf:"store_backend"`

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `koanf:"postgres_dsn"`

	// DedupeSize bounds the match-ID idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// PlaceholderBase is the first temporary rank used while staging a
	// permutation update. Must be negative.
	PlaceholderBase int `koanf:"placeholder_base"`

	// SimEnabled runs the built-in match simulator against the service.
	SimEnabled bool `koanf:"sim_enabled"`

	// SimMembers is the number of members the simulator seeds.
	SimMembers int `koanf:"sim_members"`

	// SimMatches bounds the number of simulated matches; 0 means run
	// until shutdown.
	SimMatches int `koanf:"sim_matches"`

	// SimIntervalMS is the pause between simulated matches.
	SimIntervalMS int `koanf:"sim_interval_ms"`

	// SimSeed seeds the simulator's RNG for reproducible runs.
	SimSeed int64 `koanf:"sim_seed"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":9080",
		StoreBackend:    "memory",
		PostgresDSN:     "",
		DedupeSize:      50_000,
		PlaceholderBase: -1000,
		SimEnabled:      true,
		SimMembers:      32,
		SimMatches:      0,
		SimIntervalMS:   250,
		SimSeed:         42,
	}
}
