// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

const (
	CatalogLoadFailedId Id = iota + 1
	ConfigLoadFailedId
	DependencyOrderId
	DependencyCycleId
	FetchFailedId
	BuildFailedId
	ToolNotFoundId
	ManifestWriteFailedId
	RuntimeNotAvailableId
)

type (
	// Id identifies an issue in the catalog.
	Id int

	// MarkdownMsg is the Markdown body of an issue.
	MarkdownMsg string

	// HttpLink is a documentation or reference URL.
	HttpLink string

	// Issue is a user-facing explanation of a failure class with remediation steps.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
		extLinks []HttpLink
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue as terminal Markdown using the glamour style at
// stylePath ("dark", "light", "notty", ...).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also:\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			md.WriteString("- " + string(link) + "\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	catalogLoadFailedIssue = &Issue{
		id: CatalogLoadFailedId,
		mdMsg: `
# Failed to load the unit catalog!

The catalog file could not be read, parsed or validated.

## Common issues:
- A revision that is not a full 40-character commit SHA
- An option with both a value and a ref, or with neither
- An option that sets a policy key (CMAKE_INSTALL_PREFIX, CMAKE_BUILD_TYPE, ...)
- Two units sharing a name or a binding key

## Things you can try:
- Check the error message above for the offending unit and field
- List the units the tool sees:
~~~
$ nativedeps units --units ./units.cue
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/", "https://toml.io/en/v1.0.0"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file or an environment override is invalid.

## Things you can try:
- Show the effective configuration:
~~~
$ nativedeps config show
~~~

- Check NATIVEDEPS_* environment variables for typos
- Valid values: runtime native|virtual, fetcher git|go-git, manifest.format cmake|env`,
	}

	dependencyOrderIssue = &Issue{
		id: DependencyOrderId,
		mdMsg: `
# Units are out of order!

A unit uses the install path of a unit that is listed after it, is unknown,
or is the unit itself. Units are built strictly in catalog order, so every
referenced unit must come first.

## Things you can try:
- Reorder the catalog as suggested above
- Check the reference for typos:
~~~
$ nativedeps validate
~~~`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle detected!

The units listed above reference each other's install paths in a loop, so
no build order exists.

## Things you can try:
- Remove one of the references in the cycle
- Split the unit that needs the other into two units`,
	}

	fetchFailedIssue = &Issue{
		id: FetchFailedId,
		mdMsg: `
# Failed to fetch a pinned source!

## Common causes:
- The revision does not exist on the remote, or was removed by a force push
- The server does not allow fetching a commit by SHA
- Network or authentication problems

## Things you can try:
- Check the revision exists:
~~~
$ git ls-remote <source>
~~~

- For private repositories set GITHUB_TOKEN or GITLAB_TOKEN, or load an SSH key
- Try the in-process fetcher:
~~~
$ nativedeps build --fetcher go-git
~~~`,
	}

	buildFailedIssue = &Issue{
		id: BuildFailedId,
		mdMsg: `
# A unit failed to build!

CMake exited with an error while configuring, building or installing a unit.
The tail of its output is shown above; the build tree is left in place.

## Things you can try:
- Rerun with live tool output:
~~~
$ nativedeps build --verbose
~~~

- Inspect the unit's build directory under the work directory
- Try a single-job build to get an unmixed log:
~~~
$ nativedeps build --jobs 1
~~~`,
	}

	toolNotFoundIssue = &Issue{
		id: ToolNotFoundId,
		mdMsg: `
# Required tool not found!

git or cmake could not be started.

## Things you can try:
- Install the missing tool and make sure it is on your PATH
- Point to it explicitly:
~~~
$ NATIVEDEPS_CMAKE_BINARY=/opt/cmake/bin/cmake nativedeps build
~~~`,
	}

	manifestWriteFailedIssue = &Issue{
		id: ManifestWriteFailedId,
		mdMsg: `
# Failed to write the manifest!

All units were installed, but the manifest file could not be written.
No partial file was left behind.

## Things you can try:
- Check that the destination directory is writable
- Choose another destination:
~~~
$ nativedeps build --manifest ./deps.cmake
~~~`,
	}

	runtimeNotAvailableIssue = &Issue{
		id: RuntimeNotAvailableId,
		mdMsg: `
# Runtime not available!

The selected command runtime cannot be used on this host.

## Things you can try:
- Use the native runtime (default):
~~~
$ nativedeps build --runtime native
~~~`,
	}

	issues = map[Id]*Issue{
		catalogLoadFailedIssue.Id():   catalogLoadFailedIssue,
		configLoadFailedIssue.Id():    configLoadFailedIssue,
		dependencyOrderIssue.Id():     dependencyOrderIssue,
		dependencyCycleIssue.Id():     dependencyCycleIssue,
		fetchFailedIssue.Id():         fetchFailedIssue,
		buildFailedIssue.Id():         buildFailedIssue,
		toolNotFoundIssue.Id():        toolNotFoundIssue,
		manifestWriteFailedIssue.Id(): manifestWriteFailedIssue,
		runtimeNotAvailableIssue.Id(): runtimeNotAvailableIssue,
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

func Get(id Id) *Issue {
	return issues[id]
}
