// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/nativedeps/nativedeps/pkg/types"
	"github.com/nativedeps/nativedeps/pkg/unit"
)

// pinnedRef is the local branch the pinned commit is fetched into.
const pinnedRef = "refs/heads/pinned"

// GoGitFetcher fetches with the in-process go-git client. It needs no git
// binary; credentials come from SSH keys or token environment variables.
type GoGitFetcher struct{}

// NewGoGitFetcher creates a GoGitFetcher.
func NewGoGitFetcher() *GoGitFetcher {
	return &GoGitFetcher{}
}

// Fetch initializes dest, fetches revision from source, checks it out and
// verifies HEAD. The commit is fetched alone with depth 1 when the server
// accepts a bare SHA in a want line; plain servers, including local
// mirrors, only serve advertised refs, so all branches are fetched instead.
func (f *GoGitFetcher) Fetch(ctx context.Context, source unit.GitURL, revision unit.Revision, dest types.FilesystemPath) error {
	fail := func(step Step, err error) error {
		return &FetchError{Source: source, Revision: revision, Step: step, Err: err}
	}

	repo, err := git.PlainInit(dest.String(), false)
	if err != nil {
		return fail(StepInit, err)
	}

	if _, err := repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{source.String()},
	}); err != nil {
		return fail(StepRemote, err)
	}

	hash := plumbing.NewHash(revision.String())
	if err := fetchPinned(ctx, repo, source, revision); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return fail(StepFetch, err)
	}
	if _, err := repo.CommitObject(hash); err != nil {
		return fail(StepFetch, fmt.Errorf("revision %s not found in %s: %w", revision.Short(), source, err))
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fail(StepCheckout, fmt.Errorf("failed to get worktree: %w", err))
	}
	if err := wt.Checkout(&git.CheckoutOptions{
		Hash:  hash,
		Force: true,
	}); err != nil {
		return fail(StepCheckout, err)
	}

	head, err := repo.Head()
	if err != nil {
		return fail(StepVerify, fmt.Errorf("failed to get HEAD: %w", err))
	}
	return verifyHead(source, revision, head.Hash().String())
}

func fetchPinned(ctx context.Context, repo *git.Repository, source unit.GitURL, revision unit.Revision) error {
	opts := &git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{config.RefSpec(revision.String() + ":" + pinnedRef)},
		Depth:      1,
		Tags:       git.NoTags,
		Auth:       authFor(source),
	}
	err := repo.FetchContext(ctx, opts)
	if !errors.Is(err, git.ErrExactSHA1NotSupported) {
		return err
	}

	opts.RefSpecs = []config.RefSpec{"+refs/heads/*:refs/remotes/origin/*"}
	opts.Depth = 0
	if err := repo.FetchContext(ctx, opts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}
	return nil
}
