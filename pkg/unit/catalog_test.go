// SPDX-License-Identifier: MPL-2.0

package unit

import (
	"errors"
	"strings"
	"testing"
)

const (
	revA = Revision("1111111111111111111111111111111111111111")
	revB = Revision("2222222222222222222222222222222222222222")
)

func validUnit(name Name) Unit {
	return Unit{
		Name:     name,
		Source:   GitURL("https://example.com/" + string(name) + ".git"),
		Revision: revA,
	}
}

func TestCatalog_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		catalog  Catalog
		wantErr  string
		wantWrap error
	}{
		{
			name: "valid pair",
			catalog: Catalog{
				Units: []Unit{
					validUnit("cpuinfo"),
					func() Unit {
						u := validUnit("ruy")
						u.Revision = revB
						u.Options = []Option{InstallPathOf("cpuinfo_DIR", "cpuinfo", "share/cpuinfo")}
						return u
					}(),
				},
				Fixed: []FixedEntry{{Key: "LLVM_HAVE_TFLITE", Value: "ON", Type: EntryBool}},
			},
		},
		{
			name:    "empty catalog",
			catalog: Catalog{},
			wantErr: "defines no units",
		},
		{
			name:    "duplicate name",
			catalog: Catalog{Units: []Unit{validUnit("ruy"), validUnit("ruy")}},
			wantErr: "duplicate unit name",
		},
		{
			name: "bad revision",
			catalog: Catalog{Units: []Unit{func() Unit {
				u := validUnit("ruy")
				u.Revision = "main"
				return u
			}()}},
			wantErr:  "revision",
			wantWrap: ErrInvalidRevision,
		},
		{
			name: "bad source",
			catalog: Catalog{Units: []Unit{func() Unit {
				u := validUnit("ruy")
				u.Source = "ftp://example.com/ruy"
				return u
			}()}},
			wantWrap: ErrInvalidGitURL,
		},
		{
			name: "escaping subdir",
			catalog: Catalog{Units: []Unit{func() Unit {
				u := validUnit("gemmlowp")
				u.Subdir = "../contrib"
				return u
			}()}},
			wantErr: "subdir",
		},
		{
			name: "option with value and ref",
			catalog: Catalog{Units: []Unit{func() Unit {
				u := validUnit("ruy")
				v := "x"
				u.Options = []Option{{Key: "cpuinfo_DIR", Value: &v, Ref: "cpuinfo"}}
				return u
			}()}},
			wantErr: "both value and ref",
		},
		{
			name: "option with neither",
			catalog: Catalog{Units: []Unit{func() Unit {
				u := validUnit("ruy")
				u.Options = []Option{{Key: "cpuinfo_DIR"}}
				return u
			}()}},
			wantErr: "neither value nor ref",
		},
		{
			name: "path without ref",
			catalog: Catalog{Units: []Unit{func() Unit {
				u := validUnit("ruy")
				v := "x"
				u.Options = []Option{{Key: "cpuinfo_DIR", Value: &v, Path: "share"}}
				return u
			}()}},
			wantErr: "only valid together with ref",
		},
		{
			name: "duplicate option key",
			catalog: Catalog{Units: []Unit{func() Unit {
				u := validUnit("ruy")
				u.Options = []Option{Literal("RUY_MINIMAL_BUILD", "ON"), Literal("RUY_MINIMAL_BUILD", "OFF")}
				return u
			}()}},
			wantErr: "already set",
		},
		{
			name: "toggle collides with option",
			catalog: Catalog{Units: []Unit{func() Unit {
				u := validUnit("cpuinfo")
				u.Disable = []string{"CPUINFO_BUILD_BENCHMARKS"}
				u.Options = []Option{Literal("CPUINFO_BUILD_BENCHMARKS", "ON")}
				return u
			}()}},
			wantErr: "already set by disable[0]",
		},
		{
			name: "policy key in options",
			catalog: Catalog{Units: []Unit{func() Unit {
				u := validUnit("ruy")
				u.Options = []Option{Literal(KeyInstallPrefix, "/usr")}
				return u
			}()}},
			wantErr: "set by the build policy",
		},
		{
			name: "policy key in disable",
			catalog: Catalog{Units: []Unit{func() Unit {
				u := validUnit("ruy")
				u.Disable = []string{KeyBuildTesting}
				return u
			}()}},
			wantErr: "set by the build policy",
		},
		{
			name: "source-only with options",
			catalog: Catalog{Units: []Unit{func() Unit {
				u := validUnit("ml_dtypes")
				u.SourceOnly = true
				u.Options = []Option{Literal("X", "1")}
				return u
			}()}},
			wantErr: "source-only",
		},
		{
			name: "duplicate binding key",
			catalog: Catalog{Units: []Unit{
				func() Unit { u := validUnit("a"); u.Binding.Key = "SHARED_DIR"; return u }(),
				func() Unit { u := validUnit("b"); u.Binding.Key = "SHARED_DIR"; return u }(),
			}},
			wantErr: "already used by unit \"a\"",
		},
		{
			name: "fixed collides with binding",
			catalog: Catalog{
				Units: []Unit{validUnit("ruy")},
				Fixed: []FixedEntry{{Key: "ruy_DIR", Value: "/x"}},
			},
			wantErr: "collides with the binding",
		},
		{
			name: "duplicate fixed",
			catalog: Catalog{
				Units: []Unit{validUnit("ruy")},
				Fixed: []FixedEntry{{Key: "F", Value: "1"}, {Key: "F", Value: "2"}},
			},
			wantErr: "duplicate fixed key",
		},
		{
			name: "bad fixed type",
			catalog: Catalog{
				Units: []Unit{validUnit("ruy")},
				Fixed: []FixedEntry{{Key: "F", Value: "1", Type: "FILEPATH"}},
			},
			wantWrap: ErrInvalidEntryType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.catalog.Validate()
			if tt.wantErr == "" && tt.wantWrap == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("error should wrap ErrConfiguration, got: %v", err)
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("error should be *ConfigurationError, got: %T", err)
			}
			if tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
			if tt.wantWrap != nil && !errors.Is(err, tt.wantWrap) {
				t.Errorf("error should wrap %v, got: %v", tt.wantWrap, err)
			}
		})
	}
}

func TestCatalog_LookupAndNames(t *testing.T) {
	t.Parallel()

	c := Catalog{Units: []Unit{validUnit("cpuinfo"), validUnit("ruy")}}
	if u, ok := c.Lookup("ruy"); !ok || u.Name != "ruy" {
		t.Errorf("Lookup(ruy) = %v, %v", u, ok)
	}
	if _, ok := c.Lookup("eigen"); ok {
		t.Error("Lookup(eigen) should miss")
	}
	names := c.Names()
	if len(names) != 2 || names[0] != "cpuinfo" || names[1] != "ruy" {
		t.Errorf("Names() = %v", names)
	}
}

func TestConfigurationError_Error(t *testing.T) {
	t.Parallel()

	err := &ConfigurationError{Unit: "ruy", Field: "options[1].ref", Reason: "references unknown unit \"cpuinf\""}
	want := `configuration error: unit "ruy": options[1].ref: references unknown unit "cpuinf"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	cause := errors.New("boom")
	wrapped := &ConfigurationError{Field: "units_file", Err: cause}
	if !errors.Is(wrapped, cause) || !errors.Is(wrapped, ErrConfiguration) {
		t.Error("ConfigurationError should unwrap to both the sentinel and its cause")
	}
}
