// SPDX-License-Identifier: MPL-2.0

package runtime

import "github.com/nativedeps/nativedeps/pkg/types"

// NewErrorResult creates a Result with the given exit code and error.
func NewErrorResult(code types.ExitCode, err error) *Result {
	return &Result{ExitCode: code, Error: err}
}

// NewSuccessResult creates a Result with exit code 0 and the given stdout.
func NewSuccessResult(output string) *Result {
	return &Result{Output: output}
}

// NewExitCodeResult creates a Result with the given exit code and no error.
// Use this for non-zero exits that represent normal process termination
// rather than infrastructure failures.
func NewExitCodeResult(code types.ExitCode, errOutput string) *Result {
	return &Result{ExitCode: code, ErrOutput: errOutput}
}
