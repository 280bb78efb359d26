// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/nativedeps/nativedeps/internal/config"
	"github.com/nativedeps/nativedeps/internal/ctxlog"
	"github.com/nativedeps/nativedeps/internal/issue"
	"github.com/nativedeps/nativedeps/pkg/types"
	"github.com/nativedeps/nativedeps/pkg/unit"
)

type (
	// App wires CLI services and shared dependencies. All command handlers
	// receive an App and write through its streams.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer
		opts   rootOptions
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}

	// rootOptions holds the global flag values.
	rootOptions struct {
		configFile string
		verbose    bool
		logLevel   string
		logFormat  string
	}
)

// flagKeys maps command-line flags to the configuration keys they override.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"units":      "units_file",
	"work-dir":   "work_dir",
	"manifest":   "manifest.path",
	"format":     "manifest.format",
	"runtime":    "runtime",
	"fetcher":    "fetcher",
	"jobs":       "cmake.jobs",
	"generator":  "cmake.generator",
	"build-type": "cmake.build_type",
}

// NewApp creates an App from deps.
func NewApp(deps Dependencies) *App {
	app := &App{Config: deps.Config, stdout: deps.Stdout, stderr: deps.Stderr}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// loadConfig resolves the configuration for cmd, with its changed flags
// taking precedence over file and environment values.
func (a *App) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := a.Config.Load(cmd.Context(), config.LoadOptions{
		ConfigFilePath: a.opts.configFile,
		Flags:          config.FlagsByKey(cmd.Flags(), flagKeys),
	})
	if err != nil {
		return nil, classify(err, "load configuration", a.opts.configFile)
	}
	if a.opts.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// withLogger returns ctx carrying the logger described by cfg.
func (a *App) withLogger(ctx context.Context, cfg *config.Config) (context.Context, error) {
	logger, err := ctxlog.New(a.stderr, ctxlog.Options{
		Level:  string(cfg.Log.Level),
		Format: ctxlog.Format(cfg.Log.Format),
	})
	if err != nil {
		return ctx, classify(err, "configure logging", "")
	}
	return ctxlog.WithLogger(ctx, logger), nil
}

// loadCatalog reads the catalog named by cfg, or the built-in one.
func (a *App) loadCatalog(cfg *config.Config) (*unit.Catalog, error) {
	name := cfg.UnitsFile
	if name == "" {
		name = unit.DefaultCatalogName
	}
	catalog, err := unit.Load(cfg.UnitsFile)
	if err != nil {
		return nil, &ExitError{
			Code: exitCodeForCatalog(err),
			Err: issue.NewErrorContext().
				WithOperation("load catalog").
				WithResource(name).
				WithIssue(issue.CatalogLoadFailedId).
				Wrap(err).
				BuildError(),
		}
	}
	return catalog, nil
}

// exitCodeForCatalog reports every catalog failure as a configuration error
// except an unreadable file.
func exitCodeForCatalog(err error) types.ExitCode {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return types.ExitFailure
	}
	return types.ExitConfiguration
}
