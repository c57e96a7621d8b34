// Package config loads and validates the TOML configuration that
// drives an indexing run.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"pyanchor/internal/core/errors"
)

type Config struct {
	Corpus  Corpus  `toml:"corpus"`
	Paths   Paths   `toml:"paths"`
	Output  Output  `toml:"output"`
	Store   Store   `toml:"store"`
	Watch   Watch   `toml:"watch"`
	Metrics Metrics `toml:"metrics"`
	Tracing Tracing `toml:"tracing"`
}

type Corpus struct {
	// Name prefixes every FQN the run emits.
	Name string `toml:"name"`
	// Root is the directory scanned for Python sources.
	Root string `toml:"root"`
	// PythonVersion selects comprehension scoping: 2 leaks for-targets
	// into the enclosing scope, 3 isolates them.
	PythonVersion int `toml:"python_version"`
}

type Paths struct {
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

type Output struct {
	// Facts is the JSON-lines file anchors are written to; empty means
	// stdout.
	Facts string `toml:"facts"`
}

type Store struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

type Watch struct {
	Enabled  bool          `toml:"enabled"`
	Debounce time.Duration `toml:"debounce"`
	// MaxEventsPerSecond throttles re-index bursts; zero disables the
	// limiter.
	MaxEventsPerSecond float64 `toml:"max_events_per_second"`
}

type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type Tracing struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNotFound, "reading config")
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "parsing config")
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Corpus.Root) == "" {
		cfg.Corpus.Root = "."
	}
	if cfg.Corpus.PythonVersion == 0 {
		cfg.Corpus.PythonVersion = 3
	}
	if len(cfg.Paths.Include) == 0 {
		// ** does not match an empty segment, so top-level files need
		// their own pattern.
		cfg.Paths.Include = []string{"**/*.py", "*.py"}
	}
	if cfg.Store.Enabled && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = "anchors.db"
	}
	if cfg.Store.BusyTimeout <= 0 {
		cfg.Store.BusyTimeout = 5 * time.Second
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.Addr) == "" {
		cfg.Metrics.Addr = ":9190"
	}
}

func validate(cfg *Config) error {
	name := strings.TrimSpace(cfg.Corpus.Name)
	if name == "" {
		return errors.New(errors.CodeValidationError, "corpus.name must not be empty")
	}
	if strings.ContainsAny(name, " \t") {
		return errors.Newf(errors.CodeValidationError, "corpus.name must not contain whitespace, got %q", name)
	}
	if v := cfg.Corpus.PythonVersion; v != 2 && v != 3 {
		return errors.Newf(errors.CodeValidationError, "corpus.python_version must be 2 or 3, got %d", v)
	}
	if info, err := os.Stat(cfg.Corpus.Root); err != nil || !info.IsDir() {
		return errors.Newf(errors.CodeValidationError, "corpus.root is not a directory: %s", cfg.Corpus.Root)
	}
	if cfg.Tracing.Enabled && strings.TrimSpace(cfg.Tracing.Endpoint) == "" {
		return errors.New(errors.CodeValidationError, "tracing.endpoint must be set when tracing.enabled")
	}
	return nil
}
