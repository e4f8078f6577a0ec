// Package config loads the broker's runtime configuration from environment
// variables (optionally backed by a .env file), following the precedence
// env vars > .env file > struct defaults.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config is the broker server's full set of tunables (§4.9).
type Config struct {
	Addr              string        `env:"BROKER_ADDR" envDefault:":9999"`
	GraceWindow       time.Duration `env:"BROKER_GRACE_WINDOW" envDefault:"30s"`
	HeartbeatInterval time.Duration `env:"BROKER_HEARTBEAT_INTERVAL" envDefault:"30s"`
	ReadTimeout       time.Duration `env:"BROKER_READ_TIMEOUT" envDefault:"45s"`
	MaxPayloadBytes   int           `env:"BROKER_MAX_PAYLOAD" envDefault:"10485760"`

	MetricsAddr string `env:"BROKER_METRICS_ADDR" envDefault:":9998"`

	CPURejectThreshold float64 `env:"BROKER_CPU_REJECT_THRESHOLD" envDefault:"90.0"`
	MemRejectThreshold float64 `env:"BROKER_MEM_REJECT_THRESHOLD" envDefault:"90.0"`

	LogLevel  string `env:"BROKER_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"BROKER_LOG_FORMAT" envDefault:"json"`
}

// Load reads .env (if present), parses environment variables over the
// struct's defaults, and validates the result. logger may be nil, in which
// case .env discovery is silent.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	} else if logger != nil {
		logger.Info().Msg("loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "config: parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config: validate")
	}
	return cfg, nil
}

// Validate range-checks the loaded configuration.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("BROKER_ADDR is required")
	}
	if c.MaxPayloadBytes <= 0 {
		return errors.Newf("BROKER_MAX_PAYLOAD must be > 0, got %d", c.MaxPayloadBytes)
	}
	if c.GraceWindow <= 0 {
		return errors.Newf("BROKER_GRACE_WINDOW must be > 0, got %s", c.GraceWindow)
	}
	if c.CPURejectThreshold < 0 || c.CPURejectThreshold > 100 {
		return errors.Newf("BROKER_CPU_REJECT_THRESHOLD must be 0-100, got %.1f", c.CPURejectThreshold)
	}
	if c.MemRejectThreshold < 0 || c.MemRejectThreshold > 100 {
		return errors.Newf("BROKER_MEM_REJECT_THRESHOLD must be 0-100, got %.1f", c.MemRejectThreshold)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return errors.Newf("BROKER_LOG_LEVEL must be one of debug,info,warn,error (got %q)", c.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.LogFormat] {
		return errors.Newf("BROKER_LOG_FORMAT must be one of json,console (got %q)", c.LogFormat)
	}
	return nil
}

// Print writes a human-readable rendering of the resolved configuration.
// Nothing here is secret, so it is safe at startup.
func (c *Config) Print() {
	fmt.Println("=== broker configuration ===")
	fmt.Printf("Addr:                %s\n", c.Addr)
	fmt.Printf("GraceWindow:         %s\n", c.GraceWindow)
	fmt.Printf("HeartbeatInterval:   %s\n", c.HeartbeatInterval)
	fmt.Printf("ReadTimeout:         %s\n", c.ReadTimeout)
	fmt.Printf("MaxPayloadBytes:     %d\n", c.MaxPayloadBytes)
	fmt.Printf("MetricsAddr:         %s\n", c.MetricsAddr)
	fmt.Printf("CPURejectThreshold:  %.1f%%\n", c.CPURejectThreshold)
	fmt.Printf("MemRejectThreshold:  %.1f%%\n", c.MemRejectThreshold)
	fmt.Printf("LogLevel:            %s\n", c.LogLevel)
	fmt.Printf("LogFormat:           %s\n", c.LogFormat)
	fmt.Println("=============================")
}
