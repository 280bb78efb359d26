// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/nativedeps/nativedeps/internal/runtime"
	"github.com/nativedeps/nativedeps/pkg/types"
	"github.com/nativedeps/nativedeps/pkg/unit"
)

const (
	testSource   = unit.GitURL("https://github.com/google/ruy.git")
	testRevision = unit.Revision("3286a34cc8de6149ac6844107dfdffac91531e72")
)

func TestGitFetcher_CommandSequence(t *testing.T) {
	t.Parallel()

	rec := runtime.NewRecorder(nil)
	DryRun(rec)

	dest := types.FilesystemPath("/w/src/ruy")
	if err := NewGitFetcher(rec, "").Fetch(context.Background(), testSource, testRevision, dest); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	want := []string{
		"git init --quiet",
		"git remote add origin https://github.com/google/ruy.git",
		"git fetch --depth 1 --no-tags origin " + string(testRevision),
		"git checkout --quiet --detach FETCH_HEAD",
		"git rev-parse HEAD",
	}
	calls := rec.Calls()
	if len(calls) != len(want) {
		t.Fatalf("got %d calls, want %d: %v", len(calls), len(want), calls)
	}
	for i, c := range calls {
		if got := strings.Join(c.Argv(), " "); got != want[i] {
			t.Errorf("call %d = %q, want %q", i, got, want[i])
		}
		if c.Dir != "/w/src/ruy" {
			t.Errorf("call %d ran in %q", i, c.Dir)
		}
	}
}

func TestGitFetcher_CustomBinary(t *testing.T) {
	t.Parallel()

	rec := runtime.NewRecorder(nil)
	DryRun(rec)
	if err := NewGitFetcher(rec, "/usr/local/bin/git").Fetch(context.Background(), testSource, testRevision, "/w/src/ruy"); err != nil {
		t.Fatal(err)
	}
	for _, c := range rec.Calls() {
		if c.Program != "/usr/local/bin/git" {
			t.Fatalf("Program = %q", c.Program)
		}
	}
}

func TestGitFetcher_StepFailure(t *testing.T) {
	t.Parallel()

	rec := runtime.NewRecorder(nil).
		Fail(runtime.MatchArgs("fetch"), 128, "fatal: remote error: upload-pack: not our ref")

	err := NewGitFetcher(rec, "").Fetch(context.Background(), testSource, testRevision, "/w/src/ruy")
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("error = %v, want ErrFetch", err)
	}
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error should be *FetchError, got %T", err)
	}
	if fetchErr.Step != StepFetch || !strings.Contains(fetchErr.Output, "not our ref") {
		t.Errorf("FetchError = %+v", fetchErr)
	}
	if !strings.Contains(err.Error(), "code 128") {
		t.Errorf("message %q should carry the exit code", err)
	}
	// Nothing runs after the failing step.
	if n := len(rec.Calls()); n != 3 {
		t.Errorf("got %d calls, want 3", n)
	}
}

func TestGitFetcher_VerifyMismatch(t *testing.T) {
	t.Parallel()

	rec := runtime.NewRecorder(nil).
		On(runtime.MatchArgs("rev-parse", "HEAD"), func(runtime.Command) *runtime.Result {
			return runtime.NewSuccessResult("0000000000000000000000000000000000000000\n")
		})

	err := NewGitFetcher(rec, "").Fetch(context.Background(), testSource, testRevision, "/w/src/ruy")
	if !errors.Is(err, ErrRevisionMismatch) || !errors.Is(err, ErrFetch) {
		t.Fatalf("error = %v, want ErrRevisionMismatch", err)
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) && fetchErr.Step != StepVerify {
		t.Errorf("Step = %q, want verify", fetchErr.Step)
	}
}

func TestFetchError_Message(t *testing.T) {
	t.Parallel()

	err := &FetchError{
		Source:   testSource,
		Revision: testRevision,
		Step:     StepCheckout,
		Output:   "error: pathspec did not match\n",
		Err:      errors.New("git checkout exited with code 1"),
	}
	want := "fetch https://github.com/google/ruy.git@3286a34cc8de failed at checkout: git checkout exited with code 1\nerror: pathspec did not match"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestAuthFor(t *testing.T) {
	// Not parallel: mutates the environment.
	t.Setenv("GITHUB_TOKEN", "gh-token")
	t.Setenv("GITLAB_TOKEN", "")
	t.Setenv("GIT_TOKEN", "")

	if auth := authFor("https://github.com/google/ruy.git"); auth == nil || auth.String() == "" {
		t.Error("expected token auth for github.com")
	}
	if auth := authFor("https://gitlab.com/libeigen/eigen.git"); auth != nil {
		t.Errorf("github token must not be sent to gitlab, got %v", auth)
	}
	if auth := authFor("file:///srv/mirror.git"); auth != nil {
		t.Errorf("local mirrors need no auth, got %v", auth)
	}
}

// sourceRepo creates a repository with one commit per content, each
// rewriting CMakeLists.txt, and returns its path and the commit hashes in
// order. Only the last commit is a branch tip.
func sourceRepo(t *testing.T, contents ...string) (string, []unit.Revision) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}

	revs := make([]unit.Revision, 0, len(contents))
	for i, content := range contents {
		if err := os.WriteFile(filepath.Join(dir, "CMakeLists.txt"), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add("CMakeLists.txt"); err != nil {
			t.Fatal(err)
		}
		hash, err := wt.Commit(fmt.Sprintf("commit %d", i), &git.CommitOptions{
			Author: &object.Signature{Name: "nativedeps", Email: "nativedeps@example.com", When: time.Unix(int64(1700000000+i), 0)},
		})
		if err != nil {
			t.Fatal(err)
		}
		revs = append(revs, unit.Revision(hash.String()))
	}
	return dir, revs
}

func requireGit(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func TestGitFetcher_Integration(t *testing.T) {
	t.Parallel()
	requireGit(t)

	src, revs := sourceRepo(t, "project(probe)\n")
	rev := revs[0]
	dest := t.TempDir()

	f := NewGitFetcher(runtime.NewNativeRuntime(), "")
	if err := f.Fetch(context.Background(), unit.GitURL("file://"+filepath.ToSlash(src)), rev, types.FilesystemPath(dest)); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "CMakeLists.txt")); err != nil {
		t.Errorf("checkout missing: %v", err)
	}

	err := f.Fetch(context.Background(), unit.GitURL("file://"+filepath.ToSlash(src)), "1111111111111111111111111111111111111111", types.FilesystemPath(t.TempDir()))
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Step != StepFetch {
		t.Errorf("unknown revision error = %v", err)
	}
}

func TestGoGitFetcher_Integration(t *testing.T) {
	t.Parallel()
	// go-git's file transport shells out to git-upload-pack.
	requireGit(t)

	src, revs := sourceRepo(t, "project(probe)\n")
	rev := revs[0]
	dest := t.TempDir()

	f := NewGoGitFetcher()
	if err := f.Fetch(context.Background(), unit.GitURL("file://"+filepath.ToSlash(src)), rev, types.FilesystemPath(dest)); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dest, "CMakeLists.txt"))
	if err != nil || string(data) != "project(probe)\n" {
		t.Errorf("checkout content = %q, %v", data, err)
	}

	err = f.Fetch(context.Background(), unit.GitURL("file://"+filepath.ToSlash(src)), "1111111111111111111111111111111111111111", types.FilesystemPath(t.TempDir()))
	if !errors.Is(err, ErrFetch) {
		t.Errorf("unknown revision error = %v, want ErrFetch", err)
	}
}

func TestFetchers_PinBehindBranchTip(t *testing.T) {
	t.Parallel()
	// go-git's file transport shells out to git-upload-pack.
	requireGit(t)

	src, revs := sourceRepo(t, "old\n", "new\n")
	source := unit.GitURL("file://" + filepath.ToSlash(src))

	tests := []struct {
		name    string
		fetcher Fetcher
	}{
		{"git", NewGitFetcher(runtime.NewNativeRuntime(), "")},
		{"go-git", NewGoGitFetcher()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dest := t.TempDir()
			if err := tt.fetcher.Fetch(context.Background(), source, revs[0], types.FilesystemPath(dest)); err != nil {
				t.Fatalf("Fetch(%s) error: %v", revs[0].Short(), err)
			}
			data, err := os.ReadFile(filepath.Join(dest, "CMakeLists.txt"))
			if err != nil || string(data) != "old\n" {
				t.Errorf("checkout content = %q, %v, want the pinned commit", data, err)
			}
		})
	}
}
