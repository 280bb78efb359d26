// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"

	"github.com/nativedeps/nativedeps/internal/runtime"
	"github.com/nativedeps/nativedeps/pkg/types"
	"github.com/nativedeps/nativedeps/pkg/unit"
)

// DefaultGitBinary is the git executable used when none is configured.
const DefaultGitBinary = "git"

// GitFetcher fetches with the git CLI through a Runtime.
type GitFetcher struct {
	rt     runtime.Runtime
	binary string
}

// NewGitFetcher creates a GitFetcher. An empty binary means "git".
func NewGitFetcher(rt runtime.Runtime, binary string) *GitFetcher {
	if binary == "" {
		binary = DefaultGitBinary
	}
	return &GitFetcher{rt: rt, binary: binary}
}

// Fetch initializes dest as a repository, fetches exactly revision from
// source, checks it out detached and verifies HEAD.
func (f *GitFetcher) Fetch(ctx context.Context, source unit.GitURL, revision unit.Revision, dest types.FilesystemPath) error {
	steps := []struct {
		step Step
		args []string
	}{
		{StepInit, []string{"init", "--quiet"}},
		{StepRemote, []string{"remote", "add", "origin", source.String()}},
		{StepFetch, []string{"fetch", "--depth", "1", "--no-tags", "origin", revision.String()}},
		{StepCheckout, []string{"checkout", "--quiet", "--detach", "FETCH_HEAD"}},
	}

	for _, s := range steps {
		if _, err := f.run(ctx, source, revision, dest, s.step, s.args...); err != nil {
			return err
		}
	}

	head, err := f.run(ctx, source, revision, dest, StepVerify, "rev-parse", "HEAD")
	if err != nil {
		return err
	}
	return verifyHead(source, revision, head)
}

func (f *GitFetcher) run(ctx context.Context, source unit.GitURL, revision unit.Revision, dest types.FilesystemPath, step Step, args ...string) (string, error) {
	res := f.rt.Run(ctx, runtime.Command{
		Program: f.binary,
		Args:    args,
		Dir:     dest.String(),
		Env:     []string{"GIT_TERMINAL_PROMPT=0"},
	})
	if res.Success() {
		return res.Output, nil
	}

	err := res.Error
	if err == nil {
		err = fmt.Errorf("git %s exited with code %d", args[0], res.ExitCode)
	}
	return "", &FetchError{
		Source:   source,
		Revision: revision,
		Step:     step,
		Output:   res.Combined(),
		Err:      err,
	}
}
