// Package config loads the aprbot configuration from .aprbot/config.json and
// the repository manifest from aprbot.toml.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete aprbot configuration
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`

	Faults    FaultsConfig    `json:"faults" mapstructure:"faults"`
	Mutation  MutationConfig  `json:"mutation" mapstructure:"mutation"`
	Validator ValidatorConfig `json:"validator" mapstructure:"validator"`
	History   HistoryConfig   `json:"history" mapstructure:"history"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// FaultsConfig controls SBFL input handling
type FaultsConfig struct {
	// PathMarker is the prefix stripped from SBFL file paths to make them
	// repository-relative (e.g. "buggy-programs/").
	PathMarker string `json:"pathMarker" mapstructure:"pathMarker"`

	// MaxLocations caps how many ranked locations feed the extractor;
	// 0 means unlimited.
	MaxLocations int `json:"maxLocations" mapstructure:"maxLocations"`
}

// MutationConfig controls patch generation
type MutationConfig struct {
	// DumpDir, when set, receives the suspicious-node / fix-ingredient /
	// candidate debug dumps.
	DumpDir string `json:"dumpDir" mapstructure:"dumpDir"`
}

// ValidatorConfig controls the two-phase validator
type ValidatorConfig struct {
	TopK              int    `json:"topK" mapstructure:"topK"`
	TimeBudgetMinutes int    `json:"timeBudgetMinutes" mapstructure:"timeBudgetMinutes"`
	EnableEarlyExit   bool   `json:"enableEarlyExit" mapstructure:"enableEarlyExit"`
	ArtifactsDir      string `json:"artifactsDir" mapstructure:"artifactsDir"`

	// GraceSeconds is how long the validator drains a timed-out child
	// between TERM and KILL.
	GraceSeconds int `json:"graceSeconds" mapstructure:"graceSeconds"`
}

// HistoryConfig controls the optional run-history store
type HistoryConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Keep is how many past runs `aprbot history prune` retains.
	Keep int `json:"keep" mapstructure:"keep"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file,omitempty" mapstructure:"file"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		RepoRoot: ".",
		Faults: FaultsConfig{
			PathMarker:   "",
			MaxLocations: 0,
		},
		Mutation: MutationConfig{
			DumpDir: "",
		},
		Validator: ValidatorConfig{
			TopK:              10,
			TimeBudgetMinutes: 70,
			EnableEarlyExit:   true,
			ArtifactsDir:      "artifacts/gtest",
			GraceSeconds:      5,
		},
		History: HistoryConfig{
			Enabled: false,
			Keep:    50,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .aprbot/config.json
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("version", 1)
	v.SetDefault("repoRoot", ".")

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(repoRoot, ".aprbot"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// If config doesn't exist, return default config
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to .aprbot/config.json
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, ".aprbot")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Validator.TopK < 1 {
		return &ConfigError{Field: "validator.topK", Message: "must be at least 1"}
	}
	if c.Validator.TimeBudgetMinutes < 1 {
		return &ConfigError{Field: "validator.timeBudgetMinutes", Message: "must be at least 1"}
	}
	if c.Validator.GraceSeconds < 0 {
		return &ConfigError{Field: "validator.graceSeconds", Message: "must not be negative"}
	}

	switch c.Logging.Format {
	case "", "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}

	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
