// Package config provides configuration loading for taverto.
//
// Configuration is read from .taverto/config.yml (or .yaml) under the
// working directory, with TAVERTO_* environment variables taking
// precedence. A .env file next to the config directory is loaded into the
// environment first, without overriding variables that are already set.
//
// Priority (highest to lowest):
//  1. Environment variables (TAVERTO_EXTRACT_WORKERS, TAVERTO_LOG_LEVEL, ...)
//  2. Config file (.taverto/config.yml)
//  3. Built-in defaults
package config

import (
	"github.com/sirupsen/logrus"

	"github.com/deude27/taverto/internal/inventory"
	"github.com/deude27/taverto/internal/masking"
)

// Config represents the complete taverto configuration.
type Config struct {
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Profile   ProfileConfig   `yaml:"profile" mapstructure:"profile"`
	Masking   MaskingConfig   `yaml:"masking" mapstructure:"masking"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Transform TransformConfig `yaml:"transform" mapstructure:"transform"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ExtractConfig defines which extract files to read and how.
type ExtractConfig struct {
	Patterns   []string `yaml:"patterns" mapstructure:"patterns"`       // glob patterns for extract files inside directories
	Ignore     []string `yaml:"ignore" mapstructure:"ignore"`           // glob patterns to skip
	ObjectType string   `yaml:"object_type" mapstructure:"object_type"` // query, proc or form
	Workers    int      `yaml:"workers" mapstructure:"workers"`         // records processed concurrently
}

// ProfileConfig defines the in-script profile switch convention.
type ProfileConfig struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"` // regex with a clientId group, matched on the last name segment
	Prefix  string `yaml:"prefix" mapstructure:"prefix"`   // database = prefix + clientId
}

type MaskingConfig struct {
	Token string `yaml:"token" mapstructure:"token"`
}

// OutputConfig defines where results are written.
type OutputConfig struct {
	Summary  string `yaml:"summary" mapstructure:"summary"`   // JSON summary path
	Database string `yaml:"database" mapstructure:"database"` // SQLite path, empty disables
	OmitSQL  bool   `yaml:"omit_sql" mapstructure:"omit_sql"`
}

type TransformConfig struct {
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // logrus level name
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Extract: ExtractConfig{
			Patterns: []string{
				"**/*.txt",
				"**/*.qmf",
				"**/*.extract",
			},
			Ignore: []string{
				".git/**",
				"*.bak",
			},
			ObjectType: string(inventory.ObjectTypeQuery),
			Workers:    4,
		},
		Profile: ProfileConfig{
			Pattern: inventory.DefaultProfilePattern,
			Prefix:  inventory.DefaultProfilePrefix,
		},
		Masking: MaskingConfig{
			Token: masking.DefaultToken,
		},
		Output: OutputConfig{
			Summary:  "summary.json",
			Database: "", // Empty means no database output
		},
		Transform: TransformConfig{
			CacheSize: 10_000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ProfileSwitch builds the profile switch described by c.Profile.
func (c *Config) ProfileSwitch() (*inventory.ProfileSwitch, error) {
	return inventory.NewProfileSwitch(c.Profile.Pattern, c.Profile.Prefix)
}

// Masker builds the masker described by c.Masking.
func (c *Config) Masker() *masking.Masker {
	return masking.New(c.Masking.Token)
}

// ApplyLogging configures logger from c.Log.
func (c *Config) ApplyLogging(logger *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	if c.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
