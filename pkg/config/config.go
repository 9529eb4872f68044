// Package config holds the service defaults and the optional YAML
// configuration file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Server defaults
const (
	DefaultPort    = "8080"
	DefaultDataDir = "./data/prognos"
)

// Job execution defaults
const (
	DefaultParallelism   = 4
	DefaultPartitionSize = 4096
)

// HTTP timeouts
const (
	ReadTimeout     = 30 * time.Second
	WriteTimeout    = 5 * time.Minute // training runs inside the request
	ShutdownTimeout = 30 * time.Second
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 256
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
)

// Config is the resolved service configuration.
type Config struct {
	Port          string `yaml:"port"`
	DataDir       string `yaml:"data_dir"`
	Parallelism   int    `yaml:"parallelism"`
	PartitionSize int    `yaml:"partition_size"`

	// Window caps the degradation comparison windows. 0 keeps the
	// analyzer default.
	Window int `yaml:"degradation_window"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:          DefaultPort,
		DataDir:       DefaultDataDir,
		Parallelism:   DefaultParallelism,
		PartitionSize: DefaultPartitionSize,
	}
}

// Load resolves configuration: defaults, then the YAML file (optional,
// empty path skips it), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if v := os.Getenv("PROGNOS_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("PROGNOS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("PROGNOS_PARALLELISM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid PROGNOS_PARALLELISM %q", v)
		}
		cfg.Parallelism = n
	}

	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}
	if cfg.PartitionSize <= 0 {
		cfg.PartitionSize = DefaultPartitionSize
	}
	return cfg, nil
}
