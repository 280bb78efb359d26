// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nativedeps/nativedeps/internal/builder"
	"github.com/nativedeps/nativedeps/internal/config"
	"github.com/nativedeps/nativedeps/internal/fetch"
	"github.com/nativedeps/nativedeps/internal/issue"
	"github.com/nativedeps/nativedeps/internal/manifest"
	"github.com/nativedeps/nativedeps/internal/orchestrator"
	"github.com/nativedeps/nativedeps/internal/runtime"
	"github.com/nativedeps/nativedeps/pkg/types"
	"github.com/nativedeps/nativedeps/pkg/unit"
)

// isolatedProvider keeps user and working-directory config files out of tests.
type isolatedProvider struct {
	dir string
}

func (p isolatedProvider) Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error) {
	opts.ConfigDirPath = p.dir
	opts.BaseDir = p.dir
	return config.NewProvider().Load(ctx, opts)
}

func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := NewApp(Dependencies{
		Config: isolatedProvider{dir: t.TempDir()},
		Stdout: &out,
		Stderr: &errOut,
	})
	root := NewRootCommand(app)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

const outOfOrderCatalog = `
[[units]]
name = "ruy"
source = "https://github.com/google/ruy.git"
revision = "2222222222222222222222222222222222222222"

[[units.options]]
key = "cpuinfo_DIR"
ref = "cpuinfo"

[[units]]
name = "cpuinfo"
source = "https://github.com/pytorch/cpuinfo.git"
revision = "1111111111111111111111111111111111111111"
`

func TestUnitsCommand(t *testing.T) {
	t.Parallel()

	out, _, err := runCLI(t, "units")
	if err != nil {
		t.Fatalf("units failed: %v", err)
	}
	for _, want := range []string{"cpuinfo", "ruy", "tflite", "ml_dtypes", "8a1772a0c5c4", "LLVM_HAVE_TFLITE=ON (BOOL)"} {
		if !strings.Contains(out, want) {
			t.Errorf("units output missing %q:\n%s", want, out)
		}
	}
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	out, _, err := runCLI(t, "validate")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "order is valid") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestValidateCommand_OutOfOrder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "units.toml")
	if err := os.WriteFile(path, []byte(outOfOrderCatalog), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := runCLI(t, "validate", "--units", path)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != types.ExitConfiguration {
		t.Fatalf("error = %v, want exit code %d", err, types.ExitConfiguration)
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || ae.Issue != issue.DependencyOrderId {
		t.Errorf("error should link the dependency order issue: %v", err)
	}
	if !ae.HasSuggestions() || !strings.Contains(ae.Suggestions[0], "cpuinfo, ruy") {
		t.Errorf("expected a reorder suggestion, got %v", ae.Suggestions)
	}
}

func TestValidateCommand_MissingCatalog(t *testing.T) {
	t.Parallel()

	_, _, err := runCLI(t, "validate", "--units", filepath.Join(t.TempDir(), "none.cue"))
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != types.ExitFailure {
		t.Fatalf("error = %v, want exit code %d", err, types.ExitFailure)
	}
}

func TestPlanCommand(t *testing.T) {
	t.Parallel()

	work := filepath.Join(t.TempDir(), "work")
	out, _, err := runCLI(t, "plan", "--work-dir", work, "--jobs", "4", "--log-level", "error")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	for _, want := range []string{
		"git init --quiet",
		"git fetch --depth 1 --no-tags origin 8a1772a0c5c447df2d18edf33ec4603a8c9c04a6",
		"--parallel 4",
		"cmake --install",
		"# would write " + filepath.Join(work, "nativedeps.cmake"),
		`set(cpuinfo_DIR "` + filepath.Join(work, "install", "cpuinfo", "share", "cpuinfo") + `" CACHE PATH "")`,
		`set(LLVM_HAVE_TFLITE "ON" CACHE BOOL "")`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("plan output missing %q", want)
		}
	}

	if _, err := os.Stat(work); !os.IsNotExist(err) {
		t.Errorf("plan created %s (err=%v)", work, err)
	}
}

func TestPlanCommand_EnvFormat(t *testing.T) {
	t.Parallel()

	work := filepath.Join(t.TempDir(), "work")
	out, _, err := runCLI(t, "plan", "--work-dir", work, "--format", "env", "--log-level", "error")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if !strings.Contains(out, "LLVM_HAVE_TFLITE=ON") || !strings.Contains(out, filepath.Join(work, "nativedeps.env")) {
		t.Errorf("unexpected env plan output:\n%s", out)
	}
}

func TestConfigShowCommand(t *testing.T) {
	t.Parallel()

	out, _, err := runCLI(t, "config", "show", "--log-format", "json")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	for _, want := range []string{`fetcher: "git"`, `build_type: "Release"`, `format: "json"`} {
		if !strings.Contains(out, want) {
			t.Errorf("config show output missing %q:\n%s", want, out)
		}
	}
}

func TestBuildCommand_InvalidFlagValue(t *testing.T) {
	t.Parallel()

	_, _, err := runCLI(t, "build", "--runtime", "container")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != types.ExitConfiguration {
		t.Fatalf("error = %v, want configuration exit code", err)
	}
}

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want types.ExitCode
	}{
		{"nil", nil, types.ExitOK},
		{"configuration", &unit.ConfigurationError{Unit: "a"}, types.ExitConfiguration},
		{"fetch", &fetch.FetchError{Step: fetch.StepFetch, Err: errors.New("x")}, types.ExitFetch},
		{"build", &orchestrator.StageError{Unit: "a", Stage: orchestrator.StageBuild, Err: &builder.BuildError{Unit: "a", Err: errors.New("x")}}, types.ExitBuild},
		{"manifest", &manifest.IOError{Path: "/x", Err: errors.New("x")}, types.ExitManifest},
		{"config", &config.InvalidConfigError{}, types.ExitConfiguration},
		{"manifest key collision", &manifest.KeyCollisionError{Format: manifest.FormatEnv, Name: "a_b_DIR"}, types.ExitConfiguration},
		{"other", errors.New("boom"), types.ExitFailure},
		{"wrapped", fmt.Errorf("run: %w", &fetch.FetchError{Err: errors.New("x")}), types.ExitFetch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClassify_LinksIssue(t *testing.T) {
	t.Parallel()

	err := classify(&orchestrator.StageError{
		Unit:  "cpuinfo",
		Stage: orchestrator.StageBuild,
		Err:   &builder.BuildError{Unit: "cpuinfo", Step: builder.StepInstall, ExitCode: 2, Output: "permission denied", Err: errors.New("exit 2")},
	}, "build native dependencies", "/w")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != types.ExitBuild {
		t.Fatalf("error = %v, want build exit code", err)
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || ae.Issue != issue.BuildFailedId {
		t.Fatalf("expected build issue, got %v", err)
	}
	if !strings.Contains(strings.Join(ae.Suggestions, "\n"), "permission denied") {
		t.Errorf("suggestions should carry the tool output: %v", ae.Suggestions)
	}
}

func TestIssueFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{"runtime unavailable", fmt.Errorf("select: %w", &runtime.RuntimeNotAvailableError{Type: "virtual", Registered: true}), issue.RuntimeNotAvailableId},
		{"manifest key collision", &manifest.KeyCollisionError{Format: manifest.FormatEnv}, issue.CatalogLoadFailedId},
		{"forward reference", &unit.ConfigurationError{Err: orchestrator.ErrForwardRef}, issue.DependencyOrderId},
		{"manifest write", &manifest.IOError{Path: "/x", Err: errors.New("x")}, issue.ManifestWriteFailedId},
		{"unknown", errors.New("boom"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := issueFor(tt.err); got != tt.want {
				t.Errorf("issueFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

const unreachableCatalog = `
units: [{
	name:     "cpuinfo"
	source:   "file:///nonexistent/nativedeps/cpuinfo.git"
	revision: "1111111111111111111111111111111111111111"
}]
`

func TestBuild_FailureRemovesPreviousManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	units := filepath.Join(dir, "units.cue")
	if err := os.WriteFile(units, []byte(unreachableCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	work := filepath.Join(dir, "work")
	stale := filepath.Join(work, "nativedeps.cmake")
	if err := os.MkdirAll(work, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("set(cpuinfo_DIR \"/old\" CACHE PATH \"\")\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := runCLI(t, "build", "--units", units, "--work-dir", work, "--fetcher", "go-git", "--log-level", "error")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != types.ExitFetch {
		t.Fatalf("error = %v, want fetch exit code", err)
	}
	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("failed build left the previous manifest behind: %v", err)
	}
}

const collidingCatalog = `
units: [
	{
		name:     "a-b"
		source:   "https://example.com/a-b.git"
		revision: "1111111111111111111111111111111111111111"
	},
	{
		name:     "a_b"
		source:   "https://example.com/a_b.git"
		revision: "2222222222222222222222222222222222222222"
	},
]
`

func TestPlan_EnvKeyCollision(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	units := filepath.Join(dir, "units.cue")
	if err := os.WriteFile(units, []byte(collidingCatalog), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := runCLI(t, "plan", "--units", units, "--work-dir", filepath.Join(dir, "work"), "--format", "env")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != types.ExitConfiguration {
		t.Fatalf("error = %v, want configuration exit code", err)
	}
	if !errors.Is(err, manifest.ErrKeyCollision) {
		t.Errorf("error should wrap ErrKeyCollision, got: %v", err)
	}
	if strings.Contains(stdout, "git init") {
		t.Errorf("no command should be planned before the key check:\n%s", stdout)
	}

	// The cmake format keeps both keys apart.
	if _, _, err := runCLI(t, "plan", "--units", units, "--work-dir", filepath.Join(dir, "work")); err != nil {
		t.Errorf("cmake plan error: %v", err)
	}
}
