// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nativedeps/nativedeps/internal/dag"
	"github.com/nativedeps/nativedeps/pkg/unit"
)

var (
	// ErrDuplicateUnit is wrapped when two units share a name.
	ErrDuplicateUnit = errors.New("duplicate unit name")
	// ErrUnknownRef is wrapped when an option references a unit that is not in the list.
	ErrUnknownRef = errors.New("reference to unknown unit")
	// ErrSelfRef is wrapped when a unit references its own install root.
	ErrSelfRef = errors.New("unit references itself")
	// ErrForwardRef is wrapped when a unit references a unit listed after it.
	ErrForwardRef = errors.New("reference to a later unit")
)

// ValidateOrder checks, before anything runs, that every install-path
// reference names a unit appearing strictly earlier in units. Failures are
// returned as *unit.ConfigurationError. Cycles carry the cycle members; a
// forward reference carries a valid order as its suggestion when one exists.
func ValidateOrder(units []unit.Unit) error {
	position := make(map[unit.Name]int, len(units))
	for i, u := range units {
		if _, dup := position[u.Name]; dup {
			return &unit.ConfigurationError{Unit: u.Name, Field: "name", Err: ErrDuplicateUnit}
		}
		position[u.Name] = i
	}

	graph := dag.New[unit.Name]()
	for _, u := range units {
		graph.AddNode(u.Name)
	}

	var forward *unit.ConfigurationError
	for i, u := range units {
		for j, o := range u.Options {
			if !o.IsRef() {
				continue
			}
			field := fmt.Sprintf("options[%d].ref", j)
			switch at, known := position[o.Ref]; {
			case o.Ref == u.Name:
				return &unit.ConfigurationError{Unit: u.Name, Field: field, Err: ErrSelfRef}
			case !known:
				return &unit.ConfigurationError{
					Unit:   u.Name,
					Field:  field,
					Reason: fmt.Sprintf("%q is not in the unit list", o.Ref),
					Err:    ErrUnknownRef,
				}
			case at > i && forward == nil:
				forward = &unit.ConfigurationError{
					Unit:   u.Name,
					Field:  field,
					Reason: fmt.Sprintf("%q is listed after %q", o.Ref, u.Name),
					Err:    ErrForwardRef,
				}
			}
			graph.AddEdge(o.Ref, u.Name)
		}
	}

	order, err := graph.TopologicalSort()
	if err != nil {
		var cycleErr *dag.CycleError[unit.Name]
		if errors.As(err, &cycleErr) {
			return &unit.ConfigurationError{Unit: cycleErr.Cycle[0], Field: "options", Err: err}
		}
		return &unit.ConfigurationError{Err: err}
	}

	if forward != nil {
		forward.Suggestion = "reorder the units as: " + joinNames(order)
		return forward
	}
	return nil
}

func joinNames(names []unit.Name) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}
