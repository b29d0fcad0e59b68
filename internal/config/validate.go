package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"

	"github.com/deude27/taverto/internal/inventory"
	"github.com/deude27/taverto/internal/masking"
)

var (
	// ErrInvalidObjectType indicates an object type other than query, proc or form
	ErrInvalidObjectType = errors.New("invalid object type")

	// ErrInvalidWorkers indicates a non-positive worker count
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrInvalidPattern indicates a glob pattern that does not compile
	ErrInvalidPattern = errors.New("invalid glob pattern")

	// ErrInvalidProfile indicates an unusable profile switch pattern or prefix
	ErrInvalidProfile = errors.New("invalid profile switch")

	// ErrEmptyToken indicates a missing masking token
	ErrEmptyToken = errors.New("empty masking token")

	// ErrUnsafeToken indicates a masking token that is itself sensitive
	ErrUnsafeToken = errors.New("unsafe masking token")

	// ErrEmptySummaryPath indicates a missing summary output path
	ErrEmptySummaryPath = errors.New("empty summary path")

	// ErrInvalidCacheSize indicates a non-positive transform cache size
	ErrInvalidCacheSize = errors.New("invalid cache size")

	// ErrInvalidLogLevel indicates an unknown log level
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrInvalidLogFormat indicates a log format other than text or json
	ErrInvalidLogFormat = errors.New("invalid log format")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateExtract(&cfg.Extract)...)
	errs = append(errs, validateProfile(&cfg.Profile)...)

	switch {
	case cfg.Masking.Token == "":
		errs = append(errs, fmt.Errorf("%w: masking.token is required", ErrEmptyToken))
	case masking.DefaultMasker().Matches(cfg.Masking.Token):
		errs = append(errs, fmt.Errorf("%w: masking.token must not look like a card number or SSN", ErrUnsafeToken))
	}

	if strings.TrimSpace(cfg.Output.Summary) == "" {
		errs = append(errs, fmt.Errorf("%w: output.summary is required", ErrEmptySummaryPath))
	}

	if cfg.Transform.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: cache_size must be positive, got %d", ErrInvalidCacheSize, cfg.Transform.CacheSize))
	}

	errs = append(errs, validateLog(&cfg.Log)...)

	return joinErrors(errs)
}

func validateExtract(cfg *ExtractConfig) []error {
	var errs []error

	if _, err := inventory.ParseObjectType(cfg.ObjectType); err != nil {
		errs = append(errs, fmt.Errorf("%w: must be 'query', 'proc' or 'form', got '%s'", ErrInvalidObjectType, cfg.ObjectType))
	}

	if cfg.Workers <= 0 {
		errs = append(errs, fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidWorkers, cfg.Workers))
	}

	// Patterns can be empty; explicit files are still read.
	for _, pattern := range append(append([]string{}, cfg.Patterns...), cfg.Ignore...) {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err))
		}
	}

	return errs
}

func validateProfile(cfg *ProfileConfig) []error {
	if _, err := inventory.NewProfileSwitch(cfg.Pattern, cfg.Prefix); err != nil {
		return []error{fmt.Errorf("%w: %v", ErrInvalidProfile, err)}
	}
	if strings.TrimSpace(cfg.Prefix) == "" {
		return []error{fmt.Errorf("%w: prefix is required", ErrInvalidProfile)}
	}
	return nil
}

func validateLog(cfg *LogConfig) []error {
	var errs []error

	if _, err := logrus.ParseLevel(cfg.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: '%s'", ErrInvalidLogLevel, cfg.Level))
	}

	switch cfg.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: must be 'text' or 'json', got '%s'", ErrInvalidLogFormat, cfg.Format))
	}

	return errs
}

// validationErrors keeps every cause reachable through errors.Is.
type validationErrors []error

func (e validationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

func (e validationErrors) Unwrap() []error {
	return e
}

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return validationErrors(errs)
	}
}
