// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime settings of the controller service. Every field
// has a usable default so the binary runs with no environment at all.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `env:"OMTOBE_DB" envDefault:"omtobe.db"`

	// HTTPAddr is the listen address of the JSON API.
	HTTPAddr string `env:"OMTOBE_HTTP_ADDR" envDefault:":8080"`

	// MQTTBroker is the broker URL for prompt delivery. Empty disables
	// publishing entirely.
	MQTTBroker string `env:"OMTOBE_MQTT_BROKER"`

	// PollInterval is the cadence of trigger-evaluation passes.
	PollInterval time.Duration `env:"OMTOBE_POLL_INTERVAL" envDefault:"30s"`

	// ReflectionPollInterval is the cadence of reflection-window checks.
	// The window is five minutes wide, so anything below that works.
	ReflectionPollInterval time.Duration `env:"OMTOBE_REFLECTION_POLL_INTERVAL" envDefault:"1m"`

	// Debug enables verbose logging.
	Debug bool `env:"OMTOBE_DEBUG" envDefault:"false"`
}

// Parse reads configuration from the environment.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("poll interval must be positive, got %s", cfg.PollInterval)
	}
	if cfg.ReflectionPollInterval <= 0 {
		return Config{}, fmt.Errorf("reflection poll interval must be positive, got %s", cfg.ReflectionPollInterval)
	}
	return cfg, nil
}
