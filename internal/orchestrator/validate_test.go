// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"errors"
	"testing"

	"github.com/nativedeps/nativedeps/internal/dag"
	"github.com/nativedeps/nativedeps/pkg/unit"
)

func refUnit(name unit.Name, refs ...unit.Name) unit.Unit {
	u := unit.Unit{Name: name, Source: "https://example.com/x.git", Revision: revA}
	for _, r := range refs {
		u.Options = append(u.Options, unit.InstallPathOf(string(r)+"_DIR", r, ""))
	}
	return u
}

func TestValidateOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		units   []unit.Unit
		wantErr error
	}{
		{"empty", nil, nil},
		{"backward references", []unit.Unit{refUnit("a"), refUnit("b", "a"), refUnit("c", "a", "b")}, nil},
		{"duplicate name", []unit.Unit{refUnit("a"), refUnit("a")}, ErrDuplicateUnit},
		{"self reference", []unit.Unit{refUnit("a", "a")}, ErrSelfRef},
		{"unknown reference", []unit.Unit{refUnit("a", "zlib")}, ErrUnknownRef},
		{"forward reference", []unit.Unit{refUnit("b", "a"), refUnit("a")}, ErrForwardRef},
		{"cycle", []unit.Unit{refUnit("a", "b"), refUnit("b", "a")}, dag.ErrCycle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateOrder(tt.units)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateOrder() error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			var cfgErr *unit.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("error should be *unit.ConfigurationError, got %T", err)
			}
		})
	}
}

func TestValidateOrder_SuggestsOrder(t *testing.T) {
	t.Parallel()

	err := ValidateOrder([]unit.Unit{refUnit("ruy", "cpuinfo"), refUnit("cpuinfo"), refUnit("tflite", "ruy")})
	var cfgErr *unit.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want *unit.ConfigurationError", err)
	}
	if cfgErr.Unit != "ruy" || cfgErr.Field != "options[0].ref" {
		t.Errorf("ConfigurationError = %+v", cfgErr)
	}
	if want := "reorder the units as: cpuinfo, ruy, tflite"; cfgErr.Suggestion != want {
		t.Errorf("Suggestion = %q, want %q", cfgErr.Suggestion, want)
	}
}

func TestValidateOrder_CycleMembers(t *testing.T) {
	t.Parallel()

	err := ValidateOrder([]unit.Unit{refUnit("a", "c"), refUnit("b", "a"), refUnit("c", "b")})
	var cycleErr *dag.CycleError[unit.Name]
	if !errors.As(err, &cycleErr) {
		t.Fatalf("error = %v, want *dag.CycleError", err)
	}
	if len(cycleErr.Cycle) != 4 || cycleErr.Cycle[0] != cycleErr.Cycle[3] {
		t.Errorf("Cycle = %v, want a closed three-unit cycle", cycleErr.Cycle)
	}
}
