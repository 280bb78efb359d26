// SPDX-License-Identifier: MPL-2.0

package unit

import (
	"errors"
	"fmt"
	"slices"
)

// Manifest entry types understood by the CMake cache.
const (
	EntryString EntryType = "STRING"
	EntryBool   EntryType = "BOOL"
	EntryPath   EntryType = "PATH"
)

// ErrInvalidEntryType is the sentinel error wrapped by InvalidEntryTypeError.
var ErrInvalidEntryType = errors.New("invalid entry type")

type (
	// EntryType is the cache type of a manifest entry.
	EntryType string

	// InvalidEntryTypeError is returned when an EntryType is not one of
	// STRING, BOOL or PATH.
	InvalidEntryTypeError struct {
		Value EntryType
	}

	// FixedEntry is a manifest flag that is not tied to any unit,
	// e.g. LLVM_HAVE_TFLITE=ON.
	FixedEntry struct {
		Key   string    `json:"key" toml:"key"`
		Value string    `json:"value" toml:"value"`
		Type  EntryType `json:"type,omitempty" toml:"type,omitempty"`
	}

	// Catalog is the ordered list of units plus the fixed manifest entries.
	// Units are listed in dependency order: a unit may only reference units
	// that appear before it.
	Catalog struct {
		Units []Unit       `json:"units" toml:"units"`
		Fixed []FixedEntry `json:"fixed,omitempty" toml:"fixed,omitempty"`
	}
)

// Validate returns nil if the EntryType is known. The empty type is treated as STRING.
func (t EntryType) Validate() error {
	switch t {
	case "", EntryString, EntryBool, EntryPath:
		return nil
	default:
		return &InvalidEntryTypeError{Value: t}
	}
}

// Normalize returns STRING for the empty type.
func (t EntryType) Normalize() EntryType {
	if t == "" {
		return EntryString
	}
	return t
}

// Error implements the error interface.
func (e *InvalidEntryTypeError) Error() string {
	return fmt.Sprintf("invalid entry type %q (must be STRING, BOOL or PATH)", e.Value)
}

// Unwrap returns ErrInvalidEntryType so callers can use errors.Is for programmatic detection.
func (e *InvalidEntryTypeError) Unwrap() error { return ErrInvalidEntryType }

// Lookup returns the unit with the given name.
func (c *Catalog) Lookup(name Name) (Unit, bool) {
	for _, u := range c.Units {
		if u.Name == name {
			return u, true
		}
	}
	return Unit{}, false
}

// Names returns the unit names in catalog order.
func (c *Catalog) Names() []Name {
	names := make([]Name, len(c.Units))
	for i, u := range c.Units {
		names[i] = u.Name
	}
	return names
}

// Validate checks the structure of every unit and the catalog-wide
// uniqueness rules. It does not check reference ordering; that belongs to
// the orchestrator, which can also propose a valid order.
func (c *Catalog) Validate() error {
	if len(c.Units) == 0 {
		return configErr("", "units", "catalog defines no units")
	}

	names := make(map[Name]bool, len(c.Units))
	bindings := make(map[string]Name, len(c.Units))
	for i, u := range c.Units {
		if err := u.Validate(); err != nil {
			return err
		}
		if names[u.Name] {
			return configErr(u.Name, fmt.Sprintf("units[%d].name", i), "duplicate unit name")
		}
		names[u.Name] = true

		key := u.BindingKey()
		if other, dup := bindings[key]; dup {
			return configErr(u.Name, "binding.key", fmt.Sprintf("binding key %q already used by unit %q", key, other))
		}
		bindings[key] = u.Name
	}

	fixed := make(map[string]bool, len(c.Fixed))
	for i, f := range c.Fixed {
		field := fmt.Sprintf("fixed[%d]", i)
		if err := ValidateKey(f.Key); err != nil {
			return wrapConfigErr("", field+".key", err)
		}
		if err := f.Type.Validate(); err != nil {
			return wrapConfigErr("", field+".type", err)
		}
		if owner, dup := bindings[f.Key]; dup {
			return configErr("", field+".key", fmt.Sprintf("key %q collides with the binding of unit %q", f.Key, owner))
		}
		if fixed[f.Key] {
			return configErr("", field+".key", fmt.Sprintf("duplicate fixed key %q", f.Key))
		}
		fixed[f.Key] = true
	}
	return nil
}

// Validate checks a single unit in isolation.
func (u Unit) Validate() error {
	if err := u.Name.Validate(); err != nil {
		return wrapConfigErr(u.Name, "name", err)
	}
	if err := u.Source.Validate(); err != nil {
		return wrapConfigErr(u.Name, "source", err)
	}
	if err := u.Revision.Validate(); err != nil {
		return wrapConfigErr(u.Name, "revision", err)
	}
	if err := u.Subdir.Validate(); err != nil {
		return wrapConfigErr(u.Name, "subdir", err)
	}
	if u.Binding.Key != "" {
		if err := ValidateKey(u.Binding.Key); err != nil {
			return wrapConfigErr(u.Name, "binding.key", err)
		}
	}
	if err := u.Binding.Path.Validate(); err != nil {
		return wrapConfigErr(u.Name, "binding.path", err)
	}

	if u.SourceOnly && (len(u.Options) > 0 || len(u.Disable) > 0) {
		return configErr(u.Name, "source_only", "source-only units cannot carry build options or toggles")
	}

	seen := make(map[string]string)
	claim := func(key, field string) error {
		if err := ValidateKey(key); err != nil {
			return wrapConfigErr(u.Name, field, err)
		}
		if slices.Contains(PolicyKeys, key) {
			return configErr(u.Name, field, fmt.Sprintf("%s is set by the build policy and cannot be overridden", key))
		}
		if prev, dup := seen[key]; dup {
			return configErr(u.Name, field, fmt.Sprintf("key %q already set by %s", key, prev))
		}
		seen[key] = field
		return nil
	}

	for i, key := range u.Disable {
		if err := claim(key, fmt.Sprintf("disable[%d]", i)); err != nil {
			return err
		}
	}
	for i, o := range u.Options {
		field := fmt.Sprintf("options[%d]", i)
		if err := claim(o.Key, field+".key"); err != nil {
			return err
		}
		switch {
		case o.IsRef() && o.Value != nil:
			return configErr(u.Name, field, "option sets both value and ref")
		case !o.IsRef() && o.Value == nil:
			return configErr(u.Name, field, "option sets neither value nor ref")
		case !o.IsRef() && o.Path != "":
			return configErr(u.Name, field+".path", "path is only valid together with ref")
		}
		if o.IsRef() {
			if err := o.Ref.Validate(); err != nil {
				return wrapConfigErr(u.Name, field+".ref", err)
			}
			if err := o.Path.Validate(); err != nil {
				return wrapConfigErr(u.Name, field+".path", err)
			}
		}
	}
	return nil
}
