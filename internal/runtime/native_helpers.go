// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"

	"github.com/nativedeps/nativedeps/pkg/types"
)

// Type definitions (grouped for decorder compliance)
type (
	// executeOutput configures where command output is directed during execution.
	// Output is always captured; when tee writers are set it is also streamed.
	executeOutput struct {
		stdout io.Writer
		stderr io.Writer
	}

	// capturedOutput holds the captured stdout and stderr buffers.
	capturedOutput struct {
		stdout bytes.Buffer
		stderr bytes.Buffer
	}
)

// newCapturingOutput creates an output configuration that captures to internal
// buffers and additionally copies to teeOut/teeErr when they are non-nil.
// Returns the output configuration and the buffer holder to retrieve results from.
func newCapturingOutput(teeOut, teeErr io.Writer) (*executeOutput, *capturedOutput) {
	captured := &capturedOutput{}
	out := &executeOutput{stdout: &captured.stdout, stderr: &captured.stderr}
	if teeOut != nil {
		out.stdout = io.MultiWriter(&captured.stdout, teeOut)
	}
	if teeErr != nil {
		out.stderr = io.MultiWriter(&captured.stderr, teeErr)
	}
	return out, captured
}

// extractExitCode determines the exit code from a command execution error.
// Returns a Result with exit code, output strings (if captured), and any error.
// A cancelled context always surfaces as Error so callers can tell an
// interrupted command from one that failed on its own.
func extractExitCode(ctx context.Context, err error, captured *capturedOutput) *Result {
	result := &Result{}

	// Extract captured output if available
	if captured != nil {
		result.Output = captured.stdout.String()
		result.ErrOutput = captured.stderr.String()
	}

	if err == nil {
		return result
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = types.ExitFailure
		result.Error = ctxErr
		return result
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Command executed but returned non-zero exit code
		exitCode := types.ExitCode(exitErr.ExitCode())
		if validateErr := exitCode.Validate(); validateErr != nil {
			result.ExitCode = types.ExitFailure
			result.Error = validateErr
			return result
		}
		result.ExitCode = exitCode
		return result
	}

	// Some other error (e.g., command not found, permission denied)
	result.ExitCode = types.ExitFailure
	result.Error = err
	return result
}
