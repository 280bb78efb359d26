// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

type (
	// NativeRuntime executes commands directly with os/exec.
	NativeRuntime struct {
		stdout io.Writer
		stderr io.Writer
	}

	// NativeOption configures a NativeRuntime.
	NativeOption func(*NativeRuntime)
)

// WithStreams tees command output to the given writers while still capturing it.
// Either writer may be nil.
func WithStreams(stdout, stderr io.Writer) NativeOption {
	return func(r *NativeRuntime) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// NewNativeRuntime creates a new native runtime
func NewNativeRuntime(opts ...NativeOption) *NativeRuntime {
	r := &NativeRuntime{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the runtime name
func (r *NativeRuntime) Name() string {
	return string(RuntimeTypeNative)
}

// Available returns whether this runtime is available.
// Missing programs are reported per command by Run.
func (r *NativeRuntime) Available() bool {
	return true
}

// Run executes the command and captures its output. The child process is
// killed when ctx is cancelled.
func (r *NativeRuntime) Run(ctx context.Context, cmd Command) *Result {
	if cmd.Program == "" {
		return NewErrorResult(1, fmt.Errorf("no program to execute"))
	}

	c := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)

	output, captured := newCapturingOutput(r.stdout, r.stderr)
	c.Stdout = output.stdout
	c.Stderr = output.stderr

	err := c.Run()
	return extractExitCode(ctx, err, captured)
}
