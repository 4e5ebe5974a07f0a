package core

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// LabelConfig maps a numeric model label to a display name.
type LabelConfig struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

type DatabaseConfig struct {
	Type             string `yaml:"type" env:"GOINFER_DB_TYPE"`
	ConnectionString string `yaml:"connectionString" env:"GOINFER_DB_CONNECTION"`
}

type CacheConfig struct {
	// Address is the redis host:port. Empty disables caching.
	Address string        `yaml:"address" env:"GOINFER_CACHE_ADDRESS"`
	TTL     time.Duration `yaml:"ttl" env:"GOINFER_CACHE_TTL"`
}

type DetectorConfig struct {
	ScoreThreshold float32 `yaml:"scoreThreshold"`
	IoUThreshold   float64 `yaml:"iouThreshold"`
	MaxResults     int     `yaml:"maxResults"`
	MaxSide        int     `yaml:"maxSide"`
}

type ServiceConfig struct {
	Port      int    `yaml:"port" env:"GOINFER_PORT"`
	ModelPath string `yaml:"modelPath" env:"GOINFER_MODEL_PATH"`

	// Backend overrides the build's default backend ("remote" or
	// "inprocess"). Empty keeps the default.
	Backend string `yaml:"backend" env:"GOINFER_BACKEND"`

	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Detector DetectorConfig `yaml:"detector"`
	Labels   []LabelConfig  `yaml:"labels"`
}

// LoadConfig loads configuration from a YAML file, applies environment
// variable overrides and validates the result.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config ServiceConfig
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	// Environment variables win over file values.
	if err = env.Parse(&config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err = config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func (c *ServiceConfig) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.Port)
	}
	if c.ModelPath == "" {
		return fmt.Errorf("modelPath must be set")
	}
	if c.Database.Type == "" {
		return fmt.Errorf("database type must be set")
	}
	switch c.Backend {
	case "", "remote", "inprocess":
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return validateLabels(c.Labels)
}

// validateLabels ensures every label has a name and no name or id is used
// twice.
func validateLabels(labels []LabelConfig) error {
	seenNames := make(map[string]bool)
	seenIDs := make(map[int64]bool)

	for i, label := range labels {
		if label.Name == "" {
			return fmt.Errorf("label at index %d has empty name", i)
		}
		if seenNames[label.Name] {
			return fmt.Errorf("duplicate label name: %s", label.Name)
		}
		if seenIDs[label.ID] {
			return fmt.Errorf("duplicate label id: %d", label.ID)
		}
		seenNames[label.Name] = true
		seenIDs[label.ID] = true
	}
	return nil
}
