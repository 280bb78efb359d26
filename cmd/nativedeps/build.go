// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/nativedeps/nativedeps/internal/builder"
	"github.com/nativedeps/nativedeps/internal/config"
	"github.com/nativedeps/nativedeps/internal/configure"
	"github.com/nativedeps/nativedeps/internal/ctxlog"
	"github.com/nativedeps/nativedeps/internal/fetch"
	"github.com/nativedeps/nativedeps/internal/manifest"
	"github.com/nativedeps/nativedeps/internal/orchestrator"
	"github.com/nativedeps/nativedeps/internal/runtime"
	"github.com/nativedeps/nativedeps/pkg/types"
	"github.com/nativedeps/nativedeps/pkg/unit"
)

// runPlan bundles the collaborators of one build or plan invocation.
type runPlan struct {
	cfg      *config.Config
	catalog  *unit.Catalog
	workDir  types.FilesystemPath
	dest     types.FilesystemPath
	format   manifest.Format
	rt       runtime.Runtime
	fetcher  fetch.Fetcher
	fs       afero.Fs
	recorder *runtime.Recorder
}

func newBuildCommand(app *App) *cobra.Command {
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Fetch, build and install every unit, then write the manifest",
		Long: `Fetch, build and install every unit of the catalog in order, then write
the manifest.

Units run one at a time. The first failure stops the run; directories of the
failed unit are left in place for inspection and no manifest is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, app, false)
		},
	}
	addRunFlags(buildCmd)
	return buildCmd
}

func newPlanCommand(app *App) *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Print every command a build would run and the manifest it would write",
		Long: `Print every command a build would run, followed by the manifest it would
write. Nothing is executed, no directory is created and no network access
happens.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, app, true)
		},
	}
	addRunFlags(planCmd)
	return planCmd
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("units", "", "catalog file (.cue or .toml); default is the built-in catalog")
	f.String("work-dir", "", "directory for the src, build and install trees")
	f.String("manifest", "", "manifest destination (default <work-dir>/nativedeps.<format>)")
	f.String("format", "", "manifest format: cmake or env")
	f.String("runtime", "", "command runtime: native or virtual")
	f.String("fetcher", "", "source fetcher: git or go-git")
	f.Int("jobs", 0, "parallel build jobs passed to cmake --build (0 = tool default)")
	f.String("generator", "", "CMake generator")
	f.String("build-type", "", "CMAKE_BUILD_TYPE for every unit")
}

func runBuild(cmd *cobra.Command, app *App, dryRun bool) error {
	cfg, err := app.loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, err := app.withLogger(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	plan, err := app.preparePlan(cfg, dryRun)
	if err != nil {
		return err
	}

	orch := orchestrator.New(orchestrator.Config{
		Layout:       orchestrator.Layout{Root: plan.workDir},
		Fetcher:      plan.fetcher,
		Configurator: configure.New(configure.Policy{BuildType: cfg.CMake.BuildType}),
		Builder: builder.New(plan.rt, builder.Options{
			Binary:    cfg.CMake.Binary,
			Generator: cfg.CMake.Generator,
			Config:    cfg.CMake.BuildType,
			Jobs:      cfg.CMake.Jobs,
		}),
		Fs: plan.fs,
	})

	if !dryRun {
		if err := manifest.Remove(plan.dest); err != nil {
			return classify(err, "remove previous manifest", plan.dest.String())
		}
	}

	reg, err := orch.Run(ctx, plan.catalog.Units)
	if err != nil {
		return classify(err, "build native dependencies", plan.workDir.String())
	}

	if dryRun {
		return printManifest(app.stdout, plan, manifest.Bindings(reg, plan.catalog.Fixed))
	}

	if err := manifest.Emit(ctx, reg, plan.catalog.Fixed, plan.dest, plan.format); err != nil {
		return classify(err, "write manifest", plan.dest.String())
	}
	ctxlog.FromContext(ctx).Info("manifest written", "path", plan.dest, "format", plan.format, "entries", reg.Len()+len(plan.catalog.Fixed))
	fmt.Fprintf(app.stdout, "%s %d units installed; manifest written to %s\n",
		SuccessStyle.Render("✓"), reg.Len(), CmdStyle.Render(plan.dest.String()))
	return nil
}

// preparePlan resolves paths and selects the runtime, fetcher and
// filesystem. A dry run records commands instead of executing them and
// prepares directories in memory.
func (a *App) preparePlan(cfg *config.Config, dryRun bool) (*runPlan, error) {
	catalog, err := a.loadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	workDir, err := absPath(cfg.WorkDir)
	if err != nil {
		return nil, classify(err, "resolve work directory", cfg.WorkDir.String())
	}
	dest, err := absPath(cfg.ManifestPath())
	if err != nil {
		return nil, classify(err, "resolve manifest path", cfg.ManifestPath().String())
	}

	plan := &runPlan{
		cfg:     cfg,
		catalog: catalog,
		workDir: workDir,
		dest:    dest,
		format:  manifest.Format(cfg.Manifest.Format),
	}
	if err := manifest.CheckKeys(manifestKeys(catalog), plan.format); err != nil {
		return nil, classify(err, "check manifest keys", plan.dest.String())
	}

	if dryRun {
		plan.recorder = runtime.NewRecorder(a.stdout)
		fetch.DryRun(plan.recorder)
		plan.rt = plan.recorder
		plan.fetcher = fetch.NewGitFetcher(plan.recorder, cfg.Git.Binary)
		plan.fs = afero.NewMemMapFs()
		return plan, nil
	}

	var tee io.Writer
	if a.opts.verbose {
		tee = a.stderr
	}
	registry := runtime.BuildRegistry(runtime.BuildRegistryOptions{Stdout: tee, Stderr: tee})
	rt, err := registry.Get(runtime.RuntimeType(cfg.Runtime))
	if err != nil {
		return nil, classify(err, "select runtime", string(cfg.Runtime))
	}
	plan.rt = rt
	plan.fs = afero.NewOsFs()

	switch cfg.Fetcher {
	case config.FetcherGoGit:
		plan.fetcher = fetch.NewGoGitFetcher()
	default:
		plan.fetcher = fetch.NewGitFetcher(rt, cfg.Git.Binary)
	}
	return plan, nil
}

// manifestKeys lists the keys a full run writes, in manifest order.
func manifestKeys(c *unit.Catalog) []string {
	keys := make([]string, 0, len(c.Units)+len(c.Fixed))
	for _, u := range c.Units {
		keys = append(keys, u.BindingKey())
	}
	for _, f := range c.Fixed {
		keys = append(keys, f.Key)
	}
	return keys
}

func printManifest(w io.Writer, plan *runPlan, bindings []manifest.Binding) error {
	data, err := manifest.Render(bindings, plan.format)
	if err != nil {
		return classify(err, "render manifest", plan.dest.String())
	}
	fmt.Fprintf(w, "\n# would write %s:\n", plan.dest)
	_, err = w.Write(data)
	return err
}

func absPath(p types.FilesystemPath) (types.FilesystemPath, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(p.String())
	if err != nil {
		return "", err
	}
	return types.FilesystemPath(abs), nil
}
