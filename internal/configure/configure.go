// SPDX-License-Identifier: MPL-2.0

// Package configure turns a unit's declared options into the concrete
// settings passed to its native build.
package configure

import (
	"fmt"

	"github.com/nativedeps/nativedeps/internal/registry"
	"github.com/nativedeps/nativedeps/pkg/types"
	"github.com/nativedeps/nativedeps/pkg/unit"
)

// DefaultBuildType is used when Policy.BuildType is empty.
const DefaultBuildType = "Release"

type (
	// Policy holds the settings every built unit receives.
	Policy struct {
		// BuildType is the CMAKE_BUILD_TYPE value.
		BuildType string
	}

	// Lookup resolves a unit name to its install root.
	Lookup interface {
		Lookup(name unit.Name) (types.FilesystemPath, bool)
	}

	// Configurator resolves unit options against the registry.
	Configurator struct {
		policy Policy
	}
)

var _ Lookup = (*registry.Registry)(nil)

// New creates a Configurator with the given policy.
func New(policy Policy) *Configurator {
	if policy.BuildType == "" {
		policy.BuildType = DefaultBuildType
	}
	return &Configurator{policy: policy}
}

// Configure returns the ordered settings for u: the fixed policy first, then
// every Disable toggle as OFF, then u's options in declared order. A reference
// to a unit that is not in reg fails with *unit.ConfigurationError.
func (c *Configurator) Configure(u unit.Unit, installRoot types.FilesystemPath, reg Lookup) ([]unit.Setting, error) {
	settings := make([]unit.Setting, 0, len(unit.PolicyKeys)+len(u.Disable)+len(u.Options))
	settings = append(settings,
		unit.Setting{Key: unit.KeyInstallPrefix, Value: installRoot.String()},
		unit.Setting{Key: unit.KeyPIC, Value: "ON"},
		unit.Setting{Key: unit.KeyBuildType, Value: c.policy.BuildType},
		unit.Setting{Key: unit.KeyBuildTesting, Value: "OFF"},
	)

	for _, key := range u.Disable {
		settings = append(settings, unit.Setting{Key: key, Value: "OFF"})
	}

	for i, o := range u.Options {
		if !o.IsRef() {
			if o.Value == nil {
				return nil, &unit.ConfigurationError{
					Unit:   u.Name,
					Field:  fmt.Sprintf("options[%d]", i),
					Reason: "option has no value",
				}
			}
			settings = append(settings, unit.Setting{Key: o.Key, Value: *o.Value})
			continue
		}

		root, ok := reg.Lookup(o.Ref)
		if !ok {
			return nil, &unit.ConfigurationError{
				Unit:       u.Name,
				Field:      fmt.Sprintf("options[%d].ref", i),
				Reason:     fmt.Sprintf("unit %q has not been built yet", o.Ref),
				Suggestion: fmt.Sprintf("list %q before %q in the catalog", o.Ref, u.Name),
				Err:        registry.ErrNotRegistered,
			}
		}
		value := root
		if o.Path != "" {
			value = root.Join(o.Path)
		}
		settings = append(settings, unit.Setting{Key: o.Key, Value: value.String()})
	}
	return settings, nil
}
