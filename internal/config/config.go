// Package config loads codeviz settings from a YAML file, a .env file and
// CODEVIZ_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// DefaultFile is read when Load is given no path and the file exists in
// the working directory.
const DefaultFile = "codeviz.yaml"

// DefaultDBPath is the store location when nothing else is configured.
const DefaultDBPath = ".codeviz/codeviz.db"

type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Source     SourceConfig     `yaml:"source"`
	Resolution ResolutionConfig `yaml:"resolution"`
	History    HistoryConfig    `yaml:"history"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
}

type SourceConfig struct {
	Root        string   `yaml:"root"`
	ExcludeDirs []string `yaml:"exclude_dirs"`
}

type ResolutionConfig struct {
	Policy string `yaml:"policy" validate:"omitempty,oneof=local global"`
}

type HistoryConfig struct {
	Repo            string   `yaml:"repo"`
	Workers         int      `yaml:"workers" validate:"gte=0,lte=256"`
	PathPrefix      string   `yaml:"path_prefix"`
	TrimPrefix      string   `yaml:"trim_prefix"`
	Include         []string `yaml:"include"`
	Exclude         []string `yaml:"exclude"`
	IncludePatterns []string `yaml:"include_patterns"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
	FilterScript    string   `yaml:"filter_script"`
}

type TelemetryConfig struct {
	MetricsFile string `yaml:"metrics_file"`
	Trace       bool   `yaml:"trace"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Store:      StoreConfig{Path: DefaultDBPath},
		Resolution: ResolutionConfig{Policy: "local"},
		History:    HistoryConfig{Workers: 8},
	}
}

// Load builds a Config from defaults, then the YAML file at path (or
// DefaultFile when path is empty and it exists), then .env, then the
// process environment. The result is validated.
func Load(path string) (*Config, error) {
	return load(path, ".env", os.LookupEnv)
}

func load(path, envFile string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	// Process environment wins over .env, as godotenv.Load would leave it.
	dotenv := map[string]string{}
	if envFile != "" {
		if dotenv, err = godotenv.Read(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config: read %s: %w", envFile, err)
			}
			dotenv = map[string]string{}
		}
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(cfg, env); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, env func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := env(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := env(key); ok && v != "" {
			*dst = splitList(v)
		}
	}

	str("CODEVIZ_DB", &cfg.Store.Path)
	str("CODEVIZ_SOURCE_ROOT", &cfg.Source.Root)
	list("CODEVIZ_EXCLUDE_DIRS", &cfg.Source.ExcludeDirs)
	str("CODEVIZ_POLICY", &cfg.Resolution.Policy)
	str("CODEVIZ_HISTORY_REPO", &cfg.History.Repo)
	str("CODEVIZ_HISTORY_PATH_PREFIX", &cfg.History.PathPrefix)
	str("CODEVIZ_HISTORY_TRIM_PREFIX", &cfg.History.TrimPrefix)
	list("CODEVIZ_HISTORY_INCLUDE", &cfg.History.Include)
	list("CODEVIZ_HISTORY_EXCLUDE", &cfg.History.Exclude)
	list("CODEVIZ_HISTORY_INCLUDE_PATTERNS", &cfg.History.IncludePatterns)
	list("CODEVIZ_HISTORY_EXCLUDE_PATTERNS", &cfg.History.ExcludePatterns)
	str("CODEVIZ_HISTORY_FILTER_SCRIPT", &cfg.History.FilterScript)
	str("CODEVIZ_METRICS_FILE", &cfg.Telemetry.MetricsFile)

	if v, ok := env("CODEVIZ_HISTORY_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: CODEVIZ_HISTORY_WORKERS=%q: %v", ErrInvalid, v, err)
		}
		cfg.History.Workers = n
	}
	if v, ok := env("CODEVIZ_TRACE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: CODEVIZ_TRACE=%q: %v", ErrInvalid, v, err)
		}
		cfg.Telemetry.Trace = b
	}
	return nil
}

// splitList splits a comma-separated environment value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tag constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
