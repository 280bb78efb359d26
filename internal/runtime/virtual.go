// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nativedeps/nativedeps/pkg/types"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// VirtualRuntime executes commands through the embedded mvdan/sh
// interpreter. Each argv is rendered as one quoted shell statement, so the
// program sees exactly the same arguments as under the native runtime.
type VirtualRuntime struct {
	stdout io.Writer
	stderr io.Writer
}

// NewVirtualRuntime creates a new virtual runtime. Output is teed to the
// optional writers while still being captured.
func NewVirtualRuntime(stdout, stderr io.Writer) *VirtualRuntime {
	return &VirtualRuntime{stdout: stdout, stderr: stderr}
}

// Name returns the runtime name
func (r *VirtualRuntime) Name() string {
	return string(RuntimeTypeVirtual)
}

// Available returns whether this runtime is available
func (r *VirtualRuntime) Available() bool {
	// Virtual runtime is always available as it's built-in
	return true
}

// Run executes the command in the interpreter and captures its output.
func (r *VirtualRuntime) Run(ctx context.Context, cmd Command) *Result {
	if cmd.Program == "" {
		return NewErrorResult(1, fmt.Errorf("no program to execute"))
	}
	if err := ctx.Err(); err != nil {
		return NewErrorResult(1, err)
	}

	words := make([]string, 0, len(cmd.Args)+1)
	for _, w := range cmd.Argv() {
		q, err := syntax.Quote(w, syntax.LangPOSIX)
		if err != nil {
			return NewErrorResult(1, fmt.Errorf("failed to quote argument %q: %w", w, err))
		}
		words = append(words, q)
	}

	parser := syntax.NewParser()
	prog, err := parser.Parse(strings.NewReader(strings.Join(words, " ")), cmd.Program)
	if err != nil {
		return NewErrorResult(1, fmt.Errorf("failed to parse command: %w", err))
	}

	dir := cmd.Dir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return NewErrorResult(1, fmt.Errorf("failed to resolve working directory: %w", err))
		}
	}

	output, captured := newCapturingOutput(r.stdout, r.stderr)
	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(append(os.Environ(), cmd.Env...)...)),
		interp.StdIO(nil, output.stdout, output.stderr),
	)
	if err != nil {
		return NewErrorResult(1, fmt.Errorf("failed to create interpreter: %w", err))
	}

	err = runner.Run(ctx, prog)
	result := &Result{
		Output:    captured.stdout.String(),
		ErrOutput: captured.stderr.String(),
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = types.ExitFailure
		result.Error = ctxErr
		return result
	}
	if err == nil {
		return result
	}

	var exitStatus interp.ExitStatus
	if errors.As(err, &exitStatus) {
		result.ExitCode = types.ExitCode(exitStatus)
		return result
	}
	result.ExitCode = types.ExitFailure
	result.Error = err
	return result
}
