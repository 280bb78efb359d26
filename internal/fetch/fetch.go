// SPDX-License-Identifier: MPL-2.0

// Package fetch materializes a unit's source tree at an exact pinned revision.
//
// Two Fetcher implementations exist: GitFetcher drives the git CLI through a
// runtime.Runtime, and GoGitFetcher uses the in-process go-git client. Both
// fetch only the pinned commit (depth 1), check it out detached and verify
// that HEAD equals the pin. Neither retries.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nativedeps/nativedeps/pkg/types"
	"github.com/nativedeps/nativedeps/pkg/unit"
)

// Fetch steps reported in FetchError.
const (
	StepInit     Step = "init"
	StepRemote   Step = "remote"
	StepFetch    Step = "fetch"
	StepCheckout Step = "checkout"
	StepVerify   Step = "verify"
)

var (
	// ErrFetch is the sentinel error wrapped by FetchError.
	ErrFetch = errors.New("fetch failed")
	// ErrRevisionMismatch is returned when HEAD differs from the pinned revision after checkout.
	ErrRevisionMismatch = errors.New("checked-out revision does not match pin")
)

type (
	// Step names one phase of a fetch.
	Step string

	// Fetcher materializes source at revision into dest. dest must exist and be empty.
	Fetcher interface {
		Fetch(ctx context.Context, source unit.GitURL, revision unit.Revision, dest types.FilesystemPath) error
	}

	// FetchError reports a failed fetch: unreachable remote, unknown
	// revision, or a checkout that does not match the pin.
	//
	//nolint:revive // FetchError reads better at call sites than Error
	FetchError struct {
		Source   unit.GitURL
		Revision unit.Revision
		Step     Step
		// Output is the tool output captured for the failing step, if any.
		Output string
		Err    error
	}
)

// Error implements the error interface.
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s@%s failed at %s", e.Source, e.Revision.Short(), e.Step)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

// Unwrap returns the sentinel and the cause.
func (e *FetchError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrFetch, e.Err}
	}
	return []error{ErrFetch}
}

func verifyHead(source unit.GitURL, revision unit.Revision, head string) error {
	head = strings.TrimSpace(head)
	if head == string(revision) {
		return nil
	}
	return &FetchError{
		Source:   source,
		Revision: revision,
		Step:     StepVerify,
		Err:      fmt.Errorf("%w: HEAD is %q", ErrRevisionMismatch, head),
	}
}
