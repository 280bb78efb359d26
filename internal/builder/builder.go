// SPDX-License-Identifier: MPL-2.0

// Package builder drives a unit's native build: configure, build and install
// with CMake through a runtime.Runtime.
package builder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nativedeps/nativedeps/internal/runtime"
	"github.com/nativedeps/nativedeps/pkg/types"
	"github.com/nativedeps/nativedeps/pkg/unit"
)

// DefaultCMakeBinary is the cmake executable used when none is configured.
const DefaultCMakeBinary = "cmake"

// Build steps reported in BuildError.
const (
	StepConfigure Step = "configure"
	StepBuild     Step = "build"
	StepInstall   Step = "install"
)

// ErrBuild is the sentinel error wrapped by BuildError.
var ErrBuild = errors.New("build failed")

type (
	// Step names one native build invocation.
	Step string

	// Options configures the CMake invocations.
	Options struct {
		// Binary is the cmake executable; empty means "cmake".
		Binary string
		// Generator is passed as -G when non-empty.
		Generator string
		// Config is passed as --config to build and install when non-empty
		// (multi-config generators).
		Config string
		// Jobs is passed as --parallel when positive.
		Jobs int
	}

	// Request describes one unit build.
	Request struct {
		Unit        unit.Name
		SourceRoot  types.FilesystemPath
		BuildRoot   types.FilesystemPath
		InstallRoot types.FilesystemPath
		Settings    []unit.Setting
	}

	// Builder runs CMake for a unit.
	Builder struct {
		rt   runtime.Runtime
		opts Options
	}

	// BuildError reports a failed or unrunnable build step.
	BuildError struct {
		Unit unit.Name
		Step Step
		// ExitCode is the tool's exit status; zero when the tool could not be started.
		ExitCode types.ExitCode
		// Output is the captured tool output, trimmed to its tail.
		Output string
		Err    error
	}
)

// maxOutputLines bounds the output kept on a BuildError.
const maxOutputLines = 40

// New creates a Builder.
func New(rt runtime.Runtime, opts Options) *Builder {
	if opts.Binary == "" {
		opts.Binary = DefaultCMakeBinary
	}
	return &Builder{rt: rt, opts: opts}
}

// Build runs configure, build and install in order and stops at the first
// failure. Settings are passed in the given order.
func (b *Builder) Build(ctx context.Context, req Request) error {
	for _, step := range []Step{StepConfigure, StepBuild, StepInstall} {
		if err := b.run(ctx, req.Unit, step, b.args(step, req)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) args(step Step, req Request) []string {
	switch step {
	case StepConfigure:
		args := []string{"-S", req.SourceRoot.String(), "-B", req.BuildRoot.String()}
		if b.opts.Generator != "" {
			args = append(args, "-G", b.opts.Generator)
		}
		for _, s := range req.Settings {
			args = append(args, s.Arg())
		}
		return args
	case StepBuild:
		args := []string{"--build", req.BuildRoot.String()}
		if b.opts.Config != "" {
			args = append(args, "--config", b.opts.Config)
		}
		if b.opts.Jobs > 0 {
			args = append(args, "--parallel", strconv.Itoa(b.opts.Jobs))
		}
		return args
	default:
		args := []string{"--install", req.BuildRoot.String()}
		if b.opts.Config != "" {
			args = append(args, "--config", b.opts.Config)
		}
		return append(args, "--prefix", req.InstallRoot.String())
	}
}

func (b *Builder) run(ctx context.Context, name unit.Name, step Step, args []string) error {
	res := b.rt.Run(ctx, runtime.Command{Program: b.opts.Binary, Args: args})
	if res.Success() {
		return nil
	}
	err := res.Error
	if err == nil {
		err = fmt.Errorf("cmake exited with code %d", res.ExitCode)
	}
	code := res.ExitCode
	if res.Error != nil {
		code = 0
	}
	return &BuildError{
		Unit:     name,
		Step:     step,
		ExitCode: code,
		Output:   tail(res.Combined(), maxOutputLines),
		Err:      err,
	}
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	msg := fmt.Sprintf("build of %s failed at %s", e.Unit, e.Step)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the sentinel and the cause.
func (e *BuildError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrBuild, e.Err}
	}
	return []error{ErrBuild}
}

func tail(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
