// SPDX-License-Identifier: MPL-2.0

package unit

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/nativedeps/nativedeps/pkg/types"
)

// Policy keys are injected by the configurator for every built unit and may
// not be set by a unit's own options.
const (
	KeyInstallPrefix = "CMAKE_INSTALL_PREFIX"
	KeyPIC           = "CMAKE_POSITION_INDEPENDENT_CODE"
	KeyBuildType     = "CMAKE_BUILD_TYPE"
	KeyBuildTesting  = "BUILD_TESTING"
)

var (
	// ErrInvalidName is the sentinel error wrapped by InvalidNameError.
	ErrInvalidName = errors.New("invalid unit name")
	// ErrInvalidGitURL is the sentinel error wrapped by InvalidGitURLError.
	ErrInvalidGitURL = errors.New("invalid git URL")
	// ErrInvalidRevision is the sentinel error wrapped by InvalidRevisionError.
	ErrInvalidRevision = errors.New("invalid revision")
	// ErrInvalidKey is the sentinel error wrapped by InvalidKeyError.
	ErrInvalidKey = errors.New("invalid option key")

	namePattern     = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
	revisionPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)
	keyPattern      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.+-]*$`)

	// PolicyKeys lists the keys owned by the build policy.
	PolicyKeys = []string{KeyInstallPrefix, KeyPIC, KeyBuildType, KeyBuildTesting}
)

type (
	// Name identifies a unit. It is the registry key and the target of
	// install-path references.
	Name string

	// InvalidNameError is returned when a Name does not match the allowed pattern.
	InvalidNameError struct {
		Value Name
	}

	// GitURL is the remote address of a unit's source repository.
	// Examples: "https://github.com/google/ruy.git", "git@github.com:google/ruy.git",
	// "file:///srv/mirrors/ruy.git".
	GitURL string

	// InvalidGitURLError is returned when a GitURL has an unsupported scheme.
	InvalidGitURLError struct {
		Value GitURL
	}

	// Revision is a 40-character lowercase hexadecimal commit SHA. It pins the
	// exact source tree and is never re-resolved.
	Revision string

	// InvalidRevisionError is returned when a Revision is not a full commit SHA.
	InvalidRevisionError struct {
		Value Revision
	}

	// InvalidKeyError is returned when an option, toggle, or binding key is malformed.
	InvalidKeyError struct {
		Value string
	}

	// Option is one configuration entry of a unit. Exactly one of Value or
	// Ref is set: a literal value, or the install root of an earlier unit
	// (optionally joined with Path).
	Option struct {
		Key   string             `json:"key" toml:"key"`
		Value *string            `json:"value,omitempty" toml:"value,omitempty"`
		Ref   Name               `json:"ref,omitempty" toml:"ref,omitempty"`
		Path  types.RelativePath `json:"path,omitempty" toml:"path,omitempty"`
	}

	// Binding describes how a unit appears in the manifest: the symbolic
	// variable name and the locator path under the unit's install root.
	Binding struct {
		Key  string             `json:"key,omitempty" toml:"key,omitempty"`
		Path types.RelativePath `json:"path,omitempty" toml:"path,omitempty"`
	}

	// Unit is one native dependency to be fetched and built.
	Unit struct {
		Name     Name     `json:"name" toml:"name"`
		Source   GitURL   `json:"source" toml:"source"`
		Revision Revision `json:"revision" toml:"revision"`
		// Subdir is the build root inside the checkout.
		Subdir types.RelativePath `json:"subdir,omitempty" toml:"subdir,omitempty"`
		// SourceOnly units are fetched and registered without a build.
		SourceOnly bool     `json:"source_only,omitempty" toml:"source_only,omitempty"`
		Options    []Option `json:"options,omitempty" toml:"options,omitempty"`
		// Disable lists feature toggles forced OFF (tests, benchmarks, docs).
		Disable []string `json:"disable,omitempty" toml:"disable,omitempty"`
		Binding Binding  `json:"binding,omitempty" toml:"binding,omitempty"`
	}

	// Setting is a resolved configuration entry handed to the native build.
	Setting struct {
		Key   string
		Value string
	}
)

// Literal returns an option carrying a literal value.
func Literal(key, value string) Option {
	return Option{Key: key, Value: &value}
}

// InstallPathOf returns an option that resolves to the install root of ref,
// joined with path.
func InstallPathOf(key string, ref Name, path types.RelativePath) Option {
	return Option{Key: key, Ref: ref, Path: path}
}

// IsRef reports whether the option references another unit.
func (o Option) IsRef() bool { return o.Ref != "" }

// String renders the option for logs and error messages.
func (o Option) String() string {
	if o.IsRef() {
		if o.Path != "" {
			return fmt.Sprintf("%s=<install:%s>/%s", o.Key, o.Ref, o.Path)
		}
		return fmt.Sprintf("%s=<install:%s>", o.Key, o.Ref)
	}
	if o.Value == nil {
		return o.Key + "=<unset>"
	}
	return o.Key + "=" + *o.Value
}

// References returns the names of units this unit's options refer to, in
// option order, without duplicates.
func (u Unit) References() []Name {
	var refs []Name
	seen := make(map[Name]bool)
	for _, o := range u.Options {
		if o.IsRef() && !seen[o.Ref] {
			seen[o.Ref] = true
			refs = append(refs, o.Ref)
		}
	}
	return refs
}

// BindingKey returns the manifest variable for the unit, defaulting to "<name>_DIR".
func (u Unit) BindingKey() string {
	if u.Binding.Key != "" {
		return u.Binding.Key
	}
	return string(u.Name) + "_DIR"
}

// Arg renders the setting as a CMake cache definition.
func (s Setting) Arg() string { return "-D" + s.Key + "=" + s.Value }

// String returns the string representation of the Name.
func (n Name) String() string { return string(n) }

// Validate returns nil if the Name matches ^[A-Za-z][A-Za-z0-9_-]*$.
func (n Name) Validate() error {
	if !namePattern.MatchString(string(n)) {
		return &InvalidNameError{Value: n}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid unit name %q (must start with a letter and contain only letters, digits, '_' or '-')", e.Value)
}

// Unwrap returns ErrInvalidName so callers can use errors.Is for programmatic detection.
func (e *InvalidNameError) Unwrap() error { return ErrInvalidName }

// String returns the string representation of the GitURL.
func (u GitURL) String() string { return string(u) }

// Validate returns nil if the GitURL uses a supported scheme.
func (u GitURL) Validate() error {
	s := string(u)
	for _, prefix := range []string{"https://", "ssh://", "git@", "file://", "/"} {
		if strings.HasPrefix(s, prefix) && len(s) > len(prefix) {
			return nil
		}
	}
	return &InvalidGitURLError{Value: u}
}

// Error implements the error interface.
func (e *InvalidGitURLError) Error() string {
	return fmt.Sprintf("invalid git URL %q (must start with https://, ssh://, git@, file:// or be an absolute path)", e.Value)
}

// Unwrap returns ErrInvalidGitURL so callers can use errors.Is for programmatic detection.
func (e *InvalidGitURLError) Unwrap() error { return ErrInvalidGitURL }

// String returns the string representation of the Revision.
func (r Revision) String() string { return string(r) }

// Short returns the first 12 characters of the revision.
func (r Revision) Short() string {
	if len(r) <= 12 {
		return string(r)
	}
	return string(r[:12])
}

// Validate returns nil if the Revision is a 40-character lowercase hex SHA.
func (r Revision) Validate() error {
	if !revisionPattern.MatchString(string(r)) {
		return &InvalidRevisionError{Value: r}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidRevisionError) Error() string {
	return fmt.Sprintf("invalid revision %q (must be a 40-character lowercase hex commit SHA)", e.Value)
}

// Unwrap returns ErrInvalidRevision so callers can use errors.Is for programmatic detection.
func (e *InvalidRevisionError) Unwrap() error { return ErrInvalidRevision }

// ValidateKey returns nil if key is usable as a CMake cache variable name.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return &InvalidKeyError{Value: key}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key %q", e.Value)
}

// Unwrap returns ErrInvalidKey so callers can use errors.Is for programmatic detection.
func (e *InvalidKeyError) Unwrap() error { return ErrInvalidKey }
