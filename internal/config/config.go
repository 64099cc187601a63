package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the application configuration, merged from defaults, an
// optional seistep.yaml and SEISTEP_* environment variables (flags override
// on top in the commands).
type Config struct {
	LogLevel string       `mapstructure:"logLevel"`
	DataDir  string       `mapstructure:"dataDir"`
	Search   SearchConfig `mapstructure:"search"`
	Driver   DriverConfig `mapstructure:"driver"`
}

// SearchConfig configures the line search engine.
type SearchConfig struct {
	Strategy  string  `mapstructure:"strategy"`  // bracket, bounded
	MaxTrials int     `mapstructure:"maxTrials"` // trial budget per search
	MaxStep   float64 `mapstructure:"maxStep"`   // 0 = unbounded
}

// DriverConfig configures the outer inversion loop.
type DriverConfig struct {
	Problem              string  `mapstructure:"problem"`
	Dim                  int     `mapstructure:"dim"`
	Iters                int     `mapstructure:"iters"`
	Seed                 int64   `mapstructure:"seed"`
	ConvergencePatience  int     `mapstructure:"convergencePatience"`
	ConvergenceThreshold float64 `mapstructure:"convergenceThreshold"`
}

// Load reads the configuration. path may be empty, in which case
// seistep.yaml is searched in the working directory and ~/.config/seistep,
// and a missing file simply falls back to defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("logLevel", "info")
	v.SetDefault("dataDir", "./data")
	v.SetDefault("search.strategy", "bracket")
	v.SetDefault("search.maxTrials", 10)
	v.SetDefault("search.maxStep", 0.0)
	v.SetDefault("driver.problem", "quadratic")
	v.SetDefault("driver.dim", 4)
	v.SetDefault("driver.iters", 20)
	v.SetDefault("driver.seed", 42)
	v.SetDefault("driver.convergencePatience", 3)
	v.SetDefault("driver.convergenceThreshold", 0.001)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("seistep")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/seistep")
	}

	v.SetEnvPrefix("SEISTEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine would refuse anyway, with a
// clearer message.
func (c *Config) Validate() error {
	if c.Search.MaxTrials < 1 {
		return fmt.Errorf("search.maxTrials must be at least 1, got %d", c.Search.MaxTrials)
	}
	if c.Search.MaxStep < 0 {
		return fmt.Errorf("search.maxStep cannot be negative, got %g", c.Search.MaxStep)
	}
	switch c.Search.Strategy {
	case "bracket", "bounded":
	default:
		return fmt.Errorf("unknown search.strategy: %s", c.Search.Strategy)
	}
	if c.Driver.Dim < 1 {
		return fmt.Errorf("driver.dim must be positive, got %d", c.Driver.Dim)
	}
	if c.Driver.Iters < 1 {
		return fmt.Errorf("driver.iters must be positive, got %d", c.Driver.Iters)
	}
	return nil
}
