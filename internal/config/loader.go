package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConfigDirName is the per-project configuration directory.
const ConfigDirName = ".taverto"

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// NewFileLoader creates a loader that reads an explicit config file instead
// of searching the root directory.
func NewFileLoader(rootDir, configFile string) Loader {
	return &loader{
		rootDir:    rootDir,
		configFile: configFile,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (TAVERTO_*), including those from .env
// 2. Config file (.taverto/config.yml or .taverto/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	if err := loadDotEnv(filepath.Join(l.rootDir, ".env")); err != nil {
		return nil, err
	}

	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(l.rootDir, ConfigDirName))
	}

	// Replace . with _ in env var names (e.g., TAVERTO_EXTRACT_WORKERS)
	v.SetEnvPrefix("TAVERTO")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Scalars are bound explicitly so Unmarshal sees them without a
	// config file entry.
	v.BindEnv("extract.object_type")
	v.BindEnv("extract.workers")
	v.BindEnv("profile.pattern")
	v.BindEnv("profile.prefix")
	v.BindEnv("masking.token")
	v.BindEnv("output.summary")
	v.BindEnv("output.database")
	v.BindEnv("output.omit_sql")
	v.BindEnv("transform.cache_size")
	v.BindEnv("log.level")
	v.BindEnv("log.format")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("extract.patterns", defaults.Extract.Patterns)
	v.SetDefault("extract.ignore", defaults.Extract.Ignore)
	v.SetDefault("extract.object_type", defaults.Extract.ObjectType)
	v.SetDefault("extract.workers", defaults.Extract.Workers)

	v.SetDefault("profile.pattern", defaults.Profile.Pattern)
	v.SetDefault("profile.prefix", defaults.Profile.Prefix)

	v.SetDefault("masking.token", defaults.Masking.Token)

	v.SetDefault("output.summary", defaults.Output.Summary)
	v.SetDefault("output.database", defaults.Output.Database)
	v.SetDefault("output.omit_sql", defaults.Output.OmitSQL)

	v.SetDefault("transform.cache_size", defaults.Transform.CacheSize)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
}
