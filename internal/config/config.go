// Package config loads mudra settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration.
type Config struct {
	Classifier struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"classifier"`

	Camera struct {
		Device int `yaml:"device"`
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
		FPS    int `yaml:"fps"`
	} `yaml:"camera"`

	Detector struct {
		MaxHands              int     `yaml:"max_hands"`
		MinConfidence         float64 `yaml:"min_confidence"`
		MinTrackingConfidence float64 `yaml:"min_tracking_confidence"`
	} `yaml:"detector"`

	Pipeline struct {
		SampleInterval time.Duration `yaml:"sample_interval"`
		IdleInterval   time.Duration `yaml:"idle_interval"`
		IdleThreshold  time.Duration `yaml:"idle_threshold"`
		BoxSize        int           `yaml:"box_size"`
		Inset          int           `yaml:"inset"`
	} `yaml:"pipeline"`

	Server struct {
		Addr      string `yaml:"addr"`
		StaticDir string `yaml:"static_dir"`
	} `yaml:"server"`

	Tray struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"tray"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Classifier.URL = "http://127.0.0.1:8000"
	cfg.Classifier.Timeout = 10 * time.Second

	cfg.Camera.Device = 0
	cfg.Camera.Width = 640
	cfg.Camera.Height = 480
	cfg.Camera.FPS = 15

	cfg.Detector.MaxHands = 1
	cfg.Detector.MinConfidence = 0.8
	cfg.Detector.MinTrackingConfidence = 0.5

	cfg.Pipeline.SampleInterval = 2 * time.Second
	cfg.Pipeline.IdleInterval = time.Second
	cfg.Pipeline.IdleThreshold = 3 * time.Second
	cfg.Pipeline.BoxSize = 204
	cfg.Pipeline.Inset = 2

	cfg.Server.Addr = ":8080"

	cfg.Tray.Enabled = true

	cfg.Log.Level = "info"

	return cfg
}

// Load reads configuration from path on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadWithFallback loads configuration from the first available location.
// Priority: explicit path > ~/.mudra/config.yaml > defaults.
func LoadWithFallback(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return Load(explicitPath)
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(homeDir, ".mudra", "config.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			return Load(userConfigPath)
		}
	}

	return DefaultConfig(), nil
}

// Validate checks that the configuration can drive the pipeline.
func (c *Config) Validate() error {
	var errs []error

	if c.Classifier.URL == "" {
		errs = append(errs, errors.New("classifier.url is required"))
	}
	if c.Pipeline.SampleInterval <= 0 {
		errs = append(errs, errors.New("pipeline.sample_interval must be positive"))
	}
	if c.Pipeline.IdleInterval <= 0 {
		errs = append(errs, errors.New("pipeline.idle_interval must be positive"))
	}
	if c.Pipeline.IdleThreshold <= 0 {
		errs = append(errs, errors.New("pipeline.idle_threshold must be positive"))
	}
	if c.Pipeline.Inset < 0 {
		errs = append(errs, errors.New("pipeline.inset must not be negative"))
	}
	if c.Pipeline.BoxSize <= 2*c.Pipeline.Inset {
		errs = append(errs, fmt.Errorf("pipeline.box_size %d leaves no crop inside inset %d", c.Pipeline.BoxSize, c.Pipeline.Inset))
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		errs = append(errs, errors.New("camera.width and camera.height must be positive"))
	}
	if c.Camera.FPS <= 0 {
		errs = append(errs, errors.New("camera.fps must be positive"))
	}

	return errors.Join(errs...)
}
