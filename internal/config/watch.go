package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// WatchPrefix is prepended to every watcher variable name.
const WatchPrefix = "NPCWATCH_"

// WatchConfig holds settings for the session watcher.
type WatchConfig struct {
	APIURL    string        `env:"API_URL" envDefault:"http://localhost:8080"`
	AdminKey  string        `env:"ADMIN_KEY"` // Enables steering when set
	Interval  time.Duration `env:"INTERVAL" envDefault:"5s"`
	Shelter   string        `env:"SHELTER" envDefault:"cellar"` // Labelled point the household retreats to
	Calm      int           `env:"CALM_CYCLES" envDefault:"3"`
	Memory    string        `env:"MEMORY"` // Path for the cycle record; empty keeps it in memory
	Tail      bool          `env:"TAIL" envDefault:"true"`
	LogLevel  string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string        `env:"LOG_FORMAT" envDefault:"auto"`
}

// WatchFromEnv parses the watcher config. A nil environment means the
// process one.
func WatchFromEnv(environ map[string]string) (WatchConfig, error) {
	cfg, err := env.ParseAsWithOptions[WatchConfig](env.Options{Prefix: WatchPrefix, Environment: environ})
	if err != nil {
		return WatchConfig{}, fmt.Errorf("parse env: %w", err)
	}
	var errs []error
	if u, err := url.Parse(cfg.APIURL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("API_URL %q is not an absolute URL", cfg.APIURL))
	}
	if cfg.Interval < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("INTERVAL %s is too short", cfg.Interval))
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return WatchConfig{}, err
	}
	return cfg, nil
}
