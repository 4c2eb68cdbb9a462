// Package config loads host settings from the environment and the scenario
// roster from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds host settings. Every field maps to an NPCSIM_* variable.
type Config struct {
	Seed         int64         `env:"SEED" envDefault:"0"`
	DBPath       string        `env:"DB_PATH" envDefault:"data/npcsim.db"`
	APIPort      int           `env:"API_PORT" envDefault:"8080"`
	AdminKey     string        `env:"ADMIN_KEY"` // HS256 secret for admin tokens; empty disables admin routes
	TickRate     int           `env:"TICK_RATE" envDefault:"30"`
	Speed        float64       `env:"SPEED" envDefault:"1"`
	Scenario     string        `env:"SCENARIO"` // Path to a scenario file; empty uses the built-in one
	Renderer     bool          `env:"RENDERER" envDefault:"false"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string        `env:"LOG_FORMAT" envDefault:"auto"` // auto, text or json
	LogFile      string        `env:"LOG_FILE"`                     // strftime pattern, e.g. logs/npcsim-%Y%m%d.log
	JournalFlush time.Duration `env:"JOURNAL_FLUSH" envDefault:"2s"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" envSeparator:","`
}

// Prefix is prepended to every variable name.
const Prefix = "NPCSIM_"

// Load reads an optional .env file, then the environment.
func Load(dotenv ...string) (Config, error) {
	if err := godotenv.Load(dotenv...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
		slog.Debug("no .env file found, using process environment")
	}
	return FromEnv(nil)
}

// FromEnv parses the config. A nil environment means the process one.
func FromEnv(environ map[string]string) (Config, error) {
	opts := env.Options{Prefix: Prefix, Environment: environ}
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if c.APIPort < 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("API_PORT %d out of range", c.APIPort))
	}
	if c.TickRate <= 0 || c.TickRate > 240 {
		errs = append(errs, fmt.Errorf("TICK_RATE %d out of range", c.TickRate))
	}
	if c.Speed < 0 {
		errs = append(errs, fmt.Errorf("SPEED %v is negative", c.Speed))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q is not auto, text or json", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	return ParseLevel(c.LogLevel)
}

// ParseLevel accepts debug, info, warn or error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q: %w", s, err)
	}
	return lvl, nil
}
