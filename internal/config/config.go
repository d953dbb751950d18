// Package config loads the YAML configuration file. Values missing from the
// file keep their defaults.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/tanq16/trickle/internal/engine"
	"github.com/tanq16/trickle/internal/perf"
	"github.com/tanq16/trickle/internal/utils"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type StorageConfig struct {
	Root     string `yaml:"root"`
	Capacity int64  `yaml:"capacity"` // 0 means unlimited
}

type MonitorConfig struct {
	TargetKBps float64 `yaml:"target_kbps"`
}

type Config struct {
	Debug bool `yaml:"debug"`
	// HeapBudget emulates a device heap of this many bytes; 0 probes the host.
	HeapBudget uint64                 `yaml:"heap_budget"`
	Engine     engine.Config          `yaml:"engine"`
	Monitor    MonitorConfig          `yaml:"monitor"`
	Storage    StorageConfig          `yaml:"storage"`
	HTTP       utils.HTTPClientConfig `yaml:"http"`
	S3Profile  string                 `yaml:"s3_profile"`
}

func Default() Config {
	return Config{
		Engine:  engine.DefaultConfig(),
		Monitor: MonitorConfig{TargetKBps: perf.TargetSpeedKBps},
		Storage: StorageConfig{Root: "."},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	e := c.Engine
	switch {
	case e.MaxRetries < 0:
		return fmt.Errorf("%w: max_retries must not be negative", ErrInvalidConfig)
	case e.RetryDelay < 0 || e.IdleDelay < 0:
		return fmt.Errorf("%w: delays must not be negative", ErrInvalidConfig)
	case e.BufferSize <= 0:
		return fmt.Errorf("%w: buffer_size must be positive", ErrInvalidConfig)
	case e.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk_size must be positive", ErrInvalidConfig)
	case e.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	case e.Unit < 0:
		return fmt.Errorf("%w: unit must not be negative", ErrInvalidConfig)
	case c.Monitor.TargetKBps <= 0:
		return fmt.Errorf("%w: target_kbps must be positive", ErrInvalidConfig)
	case c.Storage.Capacity < 0:
		return fmt.Errorf("%w: storage capacity must not be negative", ErrInvalidConfig)
	}
	return nil
}
