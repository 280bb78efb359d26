// SPDX-License-Identifier: MPL-2.0

// Package orchestrator runs the units of a catalog one after another:
// validate the order up front, then for each unit prepare its directories,
// fetch the pinned source, resolve its settings, build and install it, and
// record its install root before the next unit starts.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/nativedeps/nativedeps/internal/builder"
	"github.com/nativedeps/nativedeps/internal/configure"
	"github.com/nativedeps/nativedeps/internal/ctxlog"
	"github.com/nativedeps/nativedeps/internal/fetch"
	"github.com/nativedeps/nativedeps/internal/registry"
	"github.com/nativedeps/nativedeps/pkg/types"
	"github.com/nativedeps/nativedeps/pkg/unit"
)

// Stages reported in StageError.
const (
	StageValidate  Stage = "validate"
	StagePrepare   Stage = "prepare"
	StageFetch     Stage = "fetch"
	StageConfigure Stage = "configure"
	StageBuild     Stage = "build"
	StageRegister  Stage = "register"
)

type (
	// Stage names one step of a unit's run.
	Stage string

	// Layout maps unit names to their working directories under Root:
	// <root>/src/<name>, <root>/build/<name> and <root>/install/<name>.
	Layout struct {
		Root types.FilesystemPath
	}

	// Configurator resolves a unit's settings against the registry.
	Configurator interface {
		Configure(u unit.Unit, installRoot types.FilesystemPath, reg configure.Lookup) ([]unit.Setting, error)
	}

	// Builder configures, builds and installs one unit.
	Builder interface {
		Build(ctx context.Context, req builder.Request) error
	}

	// Config wires an Orchestrator. Fs defaults to the OS filesystem.
	Config struct {
		Layout       Layout
		Fetcher      fetch.Fetcher
		Configurator Configurator
		Builder      Builder
		Fs           afero.Fs
	}

	// Orchestrator runs units sequentially, stopping at the first failure.
	Orchestrator struct {
		layout       Layout
		fetcher      fetch.Fetcher
		configurator Configurator
		builder      Builder
		fs           afero.Fs
	}

	// StageError reports the unit and stage at which a run stopped. The
	// underlying typed error (FetchError, BuildError, ConfigurationError) is
	// reachable with errors.As.
	StageError struct {
		Unit  unit.Name
		Stage Stage
		Err   error
	}
)

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Unit == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("unit %s: %s: %v", e.Unit, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error { return e.Err }

// SourceDir returns the checkout directory of name.
func (l Layout) SourceDir(name unit.Name) types.FilesystemPath {
	return l.dir("src", name)
}

// BuildDir returns the build tree of name.
func (l Layout) BuildDir(name unit.Name) types.FilesystemPath {
	return l.dir("build", name)
}

// InstallDir returns the install prefix of name.
func (l Layout) InstallDir(name unit.Name) types.FilesystemPath {
	return l.dir("install", name)
}

func (l Layout) dir(kind string, name unit.Name) types.FilesystemPath {
	return types.FilesystemPath(filepath.Join(l.Root.String(), kind, name.String()))
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Orchestrator{
		layout:       cfg.Layout,
		fetcher:      cfg.Fetcher,
		configurator: cfg.Configurator,
		builder:      cfg.Builder,
		fs:           fs,
	}
}

// Run validates the order of units and then processes them in sequence.
// The returned registry holds every unit that completed, also when an error
// is returned. Directories of a failed unit are left in place for inspection.
func (o *Orchestrator) Run(ctx context.Context, units []unit.Unit) (*registry.Registry, error) {
	reg := registry.New()
	logger := ctxlog.FromContext(ctx)

	if err := ValidateOrder(units); err != nil {
		return reg, &StageError{Stage: StageValidate, Err: err}
	}
	if err := o.layout.Root.Validate(); err != nil {
		return reg, &StageError{Stage: StageValidate, Err: err}
	}

	for i, u := range units {
		logger.Info("processing unit", "unit", u.Name, "revision", u.Revision.Short(), "position", fmt.Sprintf("%d/%d", i+1, len(units)))
		if err := o.runUnit(ctx, u, reg); err != nil {
			logger.Error("unit failed", "unit", u.Name, "error", err)
			return reg, err
		}
	}

	logger.Info("all units installed", "count", reg.Len())
	return reg, nil
}

func (o *Orchestrator) runUnit(ctx context.Context, u unit.Unit, reg *registry.Registry) error {
	logger := ctxlog.FromContext(ctx).With("unit", u.Name)
	fail := func(stage Stage, err error) error {
		return &StageError{Unit: u.Name, Stage: stage, Err: err}
	}
	enter := func(stage Stage) error {
		if err := ctx.Err(); err != nil {
			return fail(stage, err)
		}
		logger.Debug("stage started", "stage", stage)
		return nil
	}

	src := o.layout.SourceDir(u.Name)
	build := o.layout.BuildDir(u.Name)
	install := o.layout.InstallDir(u.Name)

	if err := enter(StagePrepare); err != nil {
		return err
	}
	if err := o.prepare(u, src, build, install); err != nil {
		return fail(StagePrepare, err)
	}

	if err := enter(StageFetch); err != nil {
		return err
	}
	if err := o.fetcher.Fetch(ctx, u.Source, u.Revision, src); err != nil {
		return fail(StageFetch, err)
	}

	root := install
	if u.SourceOnly {
		root = src.Join(u.Subdir)
		logger.Debug("source-only unit, skipping build", "root", root)
	} else {
		if err := enter(StageConfigure); err != nil {
			return err
		}
		settings, err := o.configurator.Configure(u, install, reg)
		if err != nil {
			return fail(StageConfigure, err)
		}

		if err := enter(StageBuild); err != nil {
			return err
		}
		req := builder.Request{
			Unit:        u.Name,
			SourceRoot:  src.Join(u.Subdir),
			BuildRoot:   build,
			InstallRoot: install,
			Settings:    settings,
		}
		if err := o.builder.Build(ctx, req); err != nil {
			return fail(StageBuild, err)
		}
	}

	if err := enter(StageRegister); err != nil {
		return err
	}
	if err := reg.Register(u, root); err != nil {
		return fail(StageRegister, err)
	}
	logger.Info("unit installed", "root", root)
	return nil
}

// prepare gives the unit a clean checkout directory and removes stale build
// and install trees from earlier runs.
func (o *Orchestrator) prepare(u unit.Unit, src, build, install types.FilesystemPath) error {
	for _, dir := range []types.FilesystemPath{src, build, install} {
		if err := o.fs.RemoveAll(dir.String()); err != nil {
			return fmt.Errorf("failed to clean %s: %w", dir, err)
		}
	}
	if err := o.fs.MkdirAll(src.String(), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", src, err)
	}
	if !u.SourceOnly {
		if err := o.fs.MkdirAll(build.String(), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", build, err)
		}
	}
	return nil
}
