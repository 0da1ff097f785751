package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// config holds tuning knobs without contractual values.
type config struct {
	// BatchSize is the maximum number of records per engine dispatch.
	BatchSize int `yaml:"batch_size"`
	// Workers is the lane parallelism of the software engine.
	Workers int `yaml:"workers"`
}

// loadConfig reads the YAML config file. An empty path yields the zero
// config, which leaves all defaults in place.
func loadConfig(path string) (config, error) {
	var cfg config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.BatchSize < 0 {
		return cfg, fmt.Errorf("config %s: batch_size %d is negative", path, cfg.BatchSize)
	}
	if cfg.Workers < 0 {
		return cfg, fmt.Errorf("config %s: workers %d is negative", path, cfg.Workers)
	}
	return cfg, nil
}
