// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nativedeps/nativedeps/internal/issue"
	"github.com/nativedeps/nativedeps/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "nativedeps"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// LocalConfigFile is looked up in the current directory when no user
	// config file exists.
	LocalConfigFile = AppName + "." + ConfigFileExt
	// EnvPrefix prefixes environment overrides: NATIVEDEPS_WORK_DIR, NATIVEDEPS_CMAKE_JOBS, ...
	EnvPrefix = "NATIVEDEPS"
)

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns the nativedeps configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions layers defaults, the CUE config file, NATIVEDEPS_*
// environment variables and changed command-line flags, in increasing
// precedence. It returns the config and the path of the file used, if any.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range opts.Flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, "", fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}

	resolvedPath, err := resolveConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Use 'nativedeps config show' to see the effective configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Check NATIVEDEPS_* environment variables and command-line flags").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("work_dir", defaults.WorkDir.String())
	v.SetDefault("units_file", defaults.UnitsFile)
	v.SetDefault("manifest.path", defaults.Manifest.Path)
	v.SetDefault("manifest.format", string(defaults.Manifest.Format))
	v.SetDefault("runtime", string(defaults.Runtime))
	v.SetDefault("fetcher", string(defaults.Fetcher))
	v.SetDefault("git.binary", defaults.Git.Binary)
	v.SetDefault("cmake.binary", defaults.CMake.Binary)
	v.SetDefault("cmake.generator", defaults.CMake.Generator)
	v.SetDefault("cmake.build_type", defaults.CMake.BuildType)
	v.SetDefault("cmake.jobs", defaults.CMake.Jobs)
	v.SetDefault("log.level", string(defaults.Log.Level))
	v.SetDefault("log.format", string(defaults.Log.Format))
}

// resolveConfigFile picks the config file: the explicit path (which must
// exist), else config.cue in the config directory, else ./nativedeps.cue.
// An empty result means defaults only.
func resolveConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		cfgDir = dir
	}

	cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(cuePath) {
		return cuePath, nil
	}

	localPath := LocalConfigFile
	if opts.BaseDir != "" {
		localPath = filepath.Join(opts.BaseDir, LocalConfigFile)
	}
	if fileExists(localPath) {
		return localPath, nil
	}
	return "", nil
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper. It decodes into a map rather than a
// struct so viper keeps tracking which keys were set by the file.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	result, err := cueutil.ParseAndDecode[map[string]any](configSchema, data, "#Config",
		cueutil.WithFilename(path),
		cueutil.WithConcrete(false),
	)
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(*result.Value); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// nativedeps configuration\n\n")

	fmt.Fprintf(&sb, "work_dir: %q\n", cfg.WorkDir)
	fmt.Fprintf(&sb, "units_file: %q\n", cfg.UnitsFile)

	sb.WriteString("\nmanifest: {\n")
	fmt.Fprintf(&sb, "\tpath: %q\n", cfg.ManifestPath())
	fmt.Fprintf(&sb, "\tformat: %q\n", cfg.Manifest.Format)
	sb.WriteString("}\n")

	fmt.Fprintf(&sb, "\nruntime: %q\n", cfg.Runtime)
	fmt.Fprintf(&sb, "fetcher: %q\n", cfg.Fetcher)

	sb.WriteString("\ngit: {\n")
	fmt.Fprintf(&sb, "\tbinary: %q\n", cfg.Git.Binary)
	sb.WriteString("}\n")

	sb.WriteString("\ncmake: {\n")
	fmt.Fprintf(&sb, "\tbinary: %q\n", cfg.CMake.Binary)
	fmt.Fprintf(&sb, "\tgenerator: %q\n", cfg.CMake.Generator)
	fmt.Fprintf(&sb, "\tbuild_type: %q\n", cfg.CMake.BuildType)
	fmt.Fprintf(&sb, "\tjobs: %d\n", cfg.CMake.Jobs)
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	fmt.Fprintf(&sb, "\tformat: %q\n", cfg.Log.Format)
	sb.WriteString("}\n")

	return sb.String()
}

// FlagsByKey returns the subset of fs that overrides configuration keys, keyed
// by config key. Flags absent from fs are skipped.
func FlagsByKey(fs *pflag.FlagSet, keysByFlag map[string]string) map[string]*pflag.Flag {
	out := make(map[string]*pflag.Flag, len(keysByFlag))
	for name, key := range keysByFlag {
		if f := fs.Lookup(name); f != nil {
			out[key] = f
		}
	}
	return out
}
