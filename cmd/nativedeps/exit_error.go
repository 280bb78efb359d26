// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/nativedeps/nativedeps/internal/builder"
	"github.com/nativedeps/nativedeps/internal/config"
	"github.com/nativedeps/nativedeps/internal/dag"
	"github.com/nativedeps/nativedeps/internal/fetch"
	"github.com/nativedeps/nativedeps/internal/issue"
	"github.com/nativedeps/nativedeps/internal/manifest"
	"github.com/nativedeps/nativedeps/internal/orchestrator"
	"github.com/nativedeps/nativedeps/internal/runtime"
	"github.com/nativedeps/nativedeps/pkg/types"
	"github.com/nativedeps/nativedeps/pkg/unit"
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCodeFor maps a run error to the documented process exit code.
func exitCodeFor(err error) types.ExitCode {
	switch {
	case err == nil:
		return types.ExitOK
	case errors.Is(err, unit.ErrConfiguration), errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, manifest.ErrKeyCollision):
		return types.ExitConfiguration
	case errors.Is(err, fetch.ErrFetch):
		return types.ExitFetch
	case errors.Is(err, builder.ErrBuild):
		return types.ExitBuild
	case errors.Is(err, manifest.ErrIO):
		return types.ExitManifest
	}

	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		switch ae.Issue {
		case issue.ConfigLoadFailedId, issue.CatalogLoadFailedId, issue.DependencyOrderId, issue.DependencyCycleId:
			return types.ExitConfiguration
		}
	}
	return types.ExitFailure
}

// issueFor picks the remediation guide for a run error, or 0 for none.
func issueFor(err error) issue.Id {
	var ae *issue.ActionableError
	if errors.As(err, &ae) && ae.Issue != 0 {
		return ae.Issue
	}

	var buildErr *builder.BuildError
	switch {
	case errors.Is(err, dag.ErrCycle):
		return issue.DependencyCycleId
	case errors.Is(err, orchestrator.ErrForwardRef),
		errors.Is(err, orchestrator.ErrUnknownRef),
		errors.Is(err, orchestrator.ErrSelfRef):
		return issue.DependencyOrderId
	case errors.Is(err, unit.ErrConfiguration), errors.Is(err, manifest.ErrKeyCollision):
		return issue.CatalogLoadFailedId
	case errors.Is(err, runtime.ErrRuntimeNotAvailable):
		return issue.RuntimeNotAvailableId
	case errors.Is(err, exec.ErrNotFound):
		return issue.ToolNotFoundId
	case errors.Is(err, fetch.ErrFetch):
		return issue.FetchFailedId
	case errors.As(err, &buildErr):
		return issue.BuildFailedId
	case errors.Is(err, manifest.ErrIO):
		return issue.ManifestWriteFailedId
	}
	return 0
}

// classify wraps err in an ExitError carrying its exit code and an
// actionable message linked to the matching issue guide.
func classify(err error, operation, resource string) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return &ExitError{Code: exitCodeFor(err), Err: err}
	}

	ctx := issue.NewErrorContext().
		WithOperation(operation).
		WithResource(resource).
		WithIssue(issueFor(err)).
		Wrap(err)

	var cfgErr *unit.ConfigurationError
	if errors.As(err, &cfgErr) && cfgErr.Suggestion != "" {
		ctx.WithSuggestion(cfgErr.Suggestion)
	}
	var buildErr *builder.BuildError
	if errors.As(err, &buildErr) && buildErr.Output != "" {
		ctx.WithSuggestion("last output of cmake " + string(buildErr.Step) + ":\n" + buildErr.Output)
	}
	var fetchErr *fetch.FetchError
	if errors.As(err, &fetchErr) && fetchErr.Output != "" {
		ctx.WithSuggestion("git said: " + fetchErr.Output)
	}

	return &ExitError{Code: exitCodeFor(err), Err: ctx.BuildError()}
}
