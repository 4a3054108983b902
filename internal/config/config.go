// Package config loads service configuration from the environment, with an
// optional YAML overlay pointed at by PAREX_CONFIG.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development" yaml:"environment"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080" yaml:"port"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s" yaml:"read_timeout"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s" yaml:"write_timeout"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s" yaml:"idle_timeout"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s" yaml:"shutdown_timeout"`
	} `yaml:"http"`
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info" yaml:"level"`
		Format string `env:"LOG_FORMAT" envDefault:"json" yaml:"format"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr" yaml:"output"`
	} `yaml:"logging"`
	Optimization struct {
		// DefaultAlgorithm is used when a run request does not name one.
		DefaultAlgorithm string `env:"MCO_DEFAULT_ALGORITHM" envDefault:"TwoPointsDE" yaml:"default_algorithm"`
		// DefaultBudget is the evaluation budget per run.
		DefaultBudget int `env:"MCO_DEFAULT_BUDGET" envDefault:"100" yaml:"default_budget"`
		// BoundSample is the number of cycles spent estimating KPI upper
		// bounds before the optimization loop proper starts.
		BoundSample int `env:"MCO_BOUND_SAMPLE" envDefault:"15" yaml:"bound_sample"`
		// VerboseRuns streams every evaluated point instead of only the
		// final non-dominated set.
		VerboseRuns bool   `env:"MCO_VERBOSE_RUNS" envDefault:"true" yaml:"verbose_runs"`
		RandomSeed  int64  `env:"MCO_RANDOM_SEED" envDefault:"0" yaml:"random_seed"`
		// StoreSize bounds how many completed runs the server retains.
		StoreSize int `env:"MCO_STORE_SIZE" envDefault:"128" yaml:"store_size"`
	} `yaml:"optimization"`
}

// Load reads configuration from the environment. If PAREX_CONFIG names a
// YAML file, values from that file take precedence over the environment.
func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply the YAML overlay, if any
	if path := os.Getenv("PAREX_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	// Set default logging level based on environment
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Optimization.DefaultBudget < 1 {
		return fmt.Errorf("optimization budget must be positive, got %d", c.Optimization.DefaultBudget)
	}
	if c.Optimization.BoundSample < 1 {
		return fmt.Errorf("bound sample count must be positive, got %d", c.Optimization.BoundSample)
	}
	if c.Optimization.StoreSize < 1 {
		return fmt.Errorf("run store size must be positive, got %d", c.Optimization.StoreSize)
	}
	return nil
}

// GetEnv returns the value of the environment variable or the default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt returns the value of the environment variable as int or the default value
func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := GetEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// GetEnvAsBool returns the value of the environment variable as bool or the default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := GetEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
