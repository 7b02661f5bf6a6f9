package config

import (
	"fmt"
	"os"
	"time"

	"github.com/galerago/galera/pkg/galera"
	"gopkg.in/yaml.v3"
)

// Config mirrors specification §6.5, the node-level parameters a host
// process reads before constructing a galera.Coordinator.
type Config struct {
	// LocalCacheSize bounds the local trx block cache, in bytes.
	LocalCacheSize int64 `yaml:"local_cache_size"`
	// WSPersistency gates pkg/wsdbstore's durable cert-log writes.
	WSPersistency bool `yaml:"ws_persistency"`
	// MarkCommitEarly publishes last_committed before the host DBMS commit
	// durably completes.
	MarkCommitEarly bool `yaml:"mark_commit_early"`
	Debug           bool `yaml:"debug"`
	DataDir         string `yaml:"data_dir"`
	// FlowControlDelayMicros is in microseconds, matching §6.5;
	// FlowControlDelay() returns it as a time.Duration.
	FlowControlDelayMicros int64 `yaml:"flow_control_delay"`

	LogLevel  string `yaml:"log_level"`
	LogJSON   bool   `yaml:"log_json"`
	MaxWorkers int   `yaml:"max_workers"`
}

// Default returns the specification's default tunables.
func Default() Config {
	return Config{
		LocalCacheSize:         64 << 20,
		WSPersistency:          false,
		MarkCommitEarly:        false,
		Debug:                  false,
		DataDir:                "./galera-data",
		FlowControlDelayMicros: 10_000,
		LogLevel:               "info",
		LogJSON:                false,
		MaxWorkers:             2,
	}
}

// Load reads a YAML config file, applying Default() for any field the
// file omits.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// FlowControlDelay converts the wire-format microsecond delay to a
// time.Duration.
func (c Config) FlowControlDelay() time.Duration {
	return time.Duration(c.FlowControlDelayMicros) * time.Microsecond
}

// GaleraConfig derives a galera.Config from the node config, starting
// from galera.DefaultConfig() and overriding the fields §6.5 exposes.
func (c Config) GaleraConfig() galera.Config {
	gc := galera.DefaultConfig()
	gc.FlowControlDelay = c.FlowControlDelay()
	gc.MarkCommitEarly = c.MarkCommitEarly
	if c.MaxWorkers > 0 {
		gc.MaxWorkers = c.MaxWorkers
	}
	gc.LocalCacheSize = c.LocalCacheSize
	return gc
}
