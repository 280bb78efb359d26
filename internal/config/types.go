// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nativedeps/nativedeps/pkg/types"
)

const (
	// RuntimeNative runs git and cmake as host processes.
	RuntimeNative RuntimeMode = "native"
	// RuntimeVirtual runs them through the embedded mvdan/sh interpreter.
	RuntimeVirtual RuntimeMode = "virtual"

	// FetcherGit drives the git command line.
	FetcherGit FetcherKind = "git"
	// FetcherGoGit fetches in-process with go-git.
	FetcherGoGit FetcherKind = "go-git"

	// ManifestCMake writes a CMake initial-cache script.
	ManifestCMake ManifestFormat = "cmake"
	// ManifestEnv writes KEY=value lines.
	ManifestEnv ManifestFormat = "env"

	// LogText selects human-readable log lines.
	LogText LogFormat = "text"
	// LogJSON selects one JSON object per log line.
	LogJSON LogFormat = "json"
)

var (
	// ErrInvalidRuntimeMode is returned when a RuntimeMode value is not recognized.
	ErrInvalidRuntimeMode = errors.New("invalid runtime mode")
	// ErrInvalidFetcherKind is returned when a FetcherKind value is not recognized.
	ErrInvalidFetcherKind = errors.New("invalid fetcher")
	// ErrInvalidManifestFormat is returned when a ManifestFormat value is not recognized.
	ErrInvalidManifestFormat = errors.New("invalid manifest format")
	// ErrInvalidLogFormat is returned when a LogFormat value is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// RuntimeMode selects the runtime external commands run through.
	RuntimeMode string

	// FetcherKind selects the source fetcher implementation.
	FetcherKind string

	// ManifestFormat selects the manifest syntax. Defined locally to avoid
	// coupling config to internal/manifest; the CLI converts at the boundary.
	ManifestFormat string

	// LogFormat selects the log encoding.
	LogFormat string

	// LogLevel is the minimum level logged.
	LogLevel string

	// InvalidValueError is returned when an enumerated setting has an
	// unrecognized value. It wraps the sentinel of the setting's type.
	InvalidValueError struct {
		Key   string
		Value string
		Valid []string
		kind  error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// WorkDir holds the src, build and install trees.
		WorkDir types.FilesystemPath `json:"work_dir" mapstructure:"work_dir"`
		// UnitsFile is a catalog file (.cue or .toml); empty uses the built-in catalog.
		UnitsFile string `json:"units_file" mapstructure:"units_file"`
		// Manifest configures the output locator file.
		Manifest ManifestConfig `json:"manifest" mapstructure:"manifest"`
		// Runtime selects how git and cmake are executed.
		Runtime RuntimeMode `json:"runtime" mapstructure:"runtime"`
		// Fetcher selects the source fetcher.
		Fetcher FetcherKind `json:"fetcher" mapstructure:"fetcher"`
		// Git configures the git command line fetcher.
		Git GitConfig `json:"git" mapstructure:"git"`
		// CMake configures the native build.
		CMake CMakeConfig `json:"cmake" mapstructure:"cmake"`
		// Log configures logging.
		Log LogConfig `json:"log" mapstructure:"log"`
	}

	// ManifestConfig configures the manifest.
	ManifestConfig struct {
		// Path is the destination; empty means <work_dir>/nativedeps.<format>.
		Path   string         `json:"path" mapstructure:"path"`
		Format ManifestFormat `json:"format" mapstructure:"format"`
	}

	// GitConfig configures the git binary.
	GitConfig struct {
		Binary string `json:"binary" mapstructure:"binary"`
	}

	// CMakeConfig configures the cmake invocations.
	CMakeConfig struct {
		Binary    string `json:"binary" mapstructure:"binary"`
		Generator string `json:"generator" mapstructure:"generator"`
		BuildType string `json:"build_type" mapstructure:"build_type"`
		// Jobs is passed as --parallel; 0 leaves the tool default.
		Jobs int `json:"jobs" mapstructure:"jobs"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		Level  LogLevel  `json:"level" mapstructure:"level"`
		Format LogFormat `json:"format" mapstructure:"format"`
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		WorkDir:  "./nativedeps-work",
		Manifest: ManifestConfig{Format: ManifestCMake},
		Runtime:  RuntimeNative,
		Fetcher:  FetcherGit,
		Git:      GitConfig{Binary: "git"},
		CMake:    CMakeConfig{Binary: "cmake", BuildType: "Release"},
		Log:      LogConfig{Level: "info", Format: LogText},
	}
}

// ManifestPath returns the manifest destination, defaulting to
// <work_dir>/nativedeps.<format>.
func (c *Config) ManifestPath() types.FilesystemPath {
	if c.Manifest.Path != "" {
		return types.FilesystemPath(c.Manifest.Path)
	}
	return types.FilesystemPath(filepath.Join(c.WorkDir.String(), "nativedeps."+string(c.Manifest.Format)))
}

// Validate returns an *InvalidConfigError listing every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if err := c.WorkDir.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("work_dir: %w", err))
	}
	for _, err := range []error{
		c.Manifest.Format.Validate(),
		c.Runtime.Validate(),
		c.Fetcher.Validate(),
		c.Log.Format.Validate(),
		c.Log.Level.Validate(),
	} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if strings.TrimSpace(c.Git.Binary) == "" {
		errs = append(errs, errors.New("git.binary: must not be empty"))
	}
	if strings.TrimSpace(c.CMake.Binary) == "" {
		errs = append(errs, errors.New("cmake.binary: must not be empty"))
	}
	if strings.TrimSpace(c.CMake.BuildType) == "" {
		errs = append(errs, errors.New("cmake.build_type: must not be empty"))
	}
	if c.CMake.Jobs < 0 {
		errs = append(errs, fmt.Errorf("cmake.jobs: must not be negative, got %d", c.CMake.Jobs))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Validate returns nil if the RuntimeMode is native or virtual.
func (m RuntimeMode) Validate() error {
	return oneOf("runtime", string(m), ErrInvalidRuntimeMode, RuntimeNative, RuntimeVirtual)
}

// Validate returns nil if the FetcherKind is git or go-git.
func (k FetcherKind) Validate() error {
	return oneOf("fetcher", string(k), ErrInvalidFetcherKind, FetcherGit, FetcherGoGit)
}

// Validate returns nil if the ManifestFormat is cmake or env.
func (f ManifestFormat) Validate() error {
	return oneOf("manifest.format", string(f), ErrInvalidManifestFormat, ManifestCMake, ManifestEnv)
}

// Validate returns nil if the LogFormat is text or json.
func (f LogFormat) Validate() error {
	return oneOf("log.format", string(f), ErrInvalidLogFormat, LogText, LogJSON)
}

// Validate returns nil if the LogLevel is debug, info, warn or error.
func (l LogLevel) Validate() error {
	return oneOf("log.level", string(l), ErrInvalidLogLevel, LogLevel("debug"), LogLevel("info"), LogLevel("warn"), LogLevel("error"))
}

func oneOf[T ~string](key, value string, kind error, valid ...T) error {
	names := make([]string, len(valid))
	for i, v := range valid {
		if string(v) == value {
			return nil
		}
		names[i] = string(v)
	}
	return &InvalidValueError{Key: key, Value: value, Valid: names, kind: kind}
}

// Error implements the error interface.
func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s: invalid value %q (valid: %s)", e.Key, e.Value, strings.Join(e.Valid, ", "))
}

// Unwrap returns the sentinel of the setting's type for errors.Is() compatibility.
func (e *InvalidValueError) Unwrap() error { return e.kind }

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidConfig and the field errors for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
