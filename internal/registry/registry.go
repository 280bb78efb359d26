// SPDX-License-Identifier: MPL-2.0

// Package registry records where each successfully built unit was installed.
//
// A Registry is created empty for every run and only grows: entries are
// appended in build order and never overwritten. It is owned by a single
// orchestrator goroutine and carries no locking.
package registry

import (
	"errors"
	"fmt"

	"github.com/nativedeps/nativedeps/pkg/types"
	"github.com/nativedeps/nativedeps/pkg/unit"
)

var (
	// ErrDuplicateEntry is the sentinel error wrapped by DuplicateEntryError.
	ErrDuplicateEntry = errors.New("unit already registered")
	// ErrNotRegistered is wrapped by callers that need an entry which is absent.
	ErrNotRegistered = errors.New("unit not registered")
)

type (
	// Entry is one registered unit.
	Entry struct {
		Name unit.Name
		// InstallRoot is the absolute install prefix (or checkout root for
		// source-only units).
		InstallRoot types.FilesystemPath
		// Binding is the manifest locator for the unit.
		Binding unit.Binding
		// Key is the resolved manifest variable (Binding.Key or "<name>_DIR").
		Key string
	}

	// DuplicateEntryError is returned when a name is registered twice.
	DuplicateEntryError struct {
		Name     unit.Name
		Existing types.FilesystemPath
	}

	// Registry is an ordered, append-only map from unit name to install root.
	Registry struct {
		entries []Entry
		index   map[unit.Name]int
	}
)

// Error implements the error interface.
func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("unit %q already registered at %s", e.Name, e.Existing)
}

// Unwrap returns ErrDuplicateEntry so callers can use errors.Is for programmatic detection.
func (e *DuplicateEntryError) Unwrap() error { return ErrDuplicateEntry }

// New returns an empty registry.
func New() *Registry {
	return &Registry{index: make(map[unit.Name]int)}
}

// Register records u as installed at root. It fails if u's name is already present.
func (r *Registry) Register(u unit.Unit, root types.FilesystemPath) error {
	if i, ok := r.index[u.Name]; ok {
		return &DuplicateEntryError{Name: u.Name, Existing: r.entries[i].InstallRoot}
	}
	if err := root.Validate(); err != nil {
		return fmt.Errorf("register %s: %w", u.Name, err)
	}
	r.index[u.Name] = len(r.entries)
	r.entries = append(r.entries, Entry{
		Name:        u.Name,
		InstallRoot: root,
		Binding:     u.Binding,
		Key:         u.BindingKey(),
	})
	return nil
}

// Lookup returns the install root recorded for name.
func (r *Registry) Lookup(name unit.Name) (types.FilesystemPath, bool) {
	i, ok := r.index[name]
	if !ok {
		return "", false
	}
	return r.entries[i].InstallRoot, true
}

// Entries returns a copy of the entries in registration order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of registered units.
func (r *Registry) Len() int { return len(r.entries) }

// Locator returns the manifest value for the entry: the install root joined
// with the binding path.
func (e Entry) Locator() types.FilesystemPath {
	return e.InstallRoot.Join(e.Binding.Path)
}
