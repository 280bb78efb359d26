// SPDX-License-Identifier: MPL-2.0

package configure

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/nativedeps/nativedeps/internal/registry"
	"github.com/nativedeps/nativedeps/pkg/types"
	"github.com/nativedeps/nativedeps/pkg/unit"
)

func TestConfigure_Order(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	if err := reg.Register(unit.Unit{Name: "cpuinfo"}, "/w/install/cpuinfo"); err != nil {
		t.Fatal(err)
	}

	ruy := unit.Unit{
		Name:    "ruy",
		Disable: []string{"RUY_BUILD_TESTS", "RUY_BUILD_BENCHMARKS"},
		Options: []unit.Option{
			unit.Literal("RUY_MINIMAL_BUILD", "ON"),
			unit.InstallPathOf("cpuinfo_DIR", "cpuinfo", "share/cpuinfo"),
			unit.Literal("RUY_EMPTY", ""),
		},
	}

	got, err := New(Policy{BuildType: "RelWithDebInfo"}).Configure(ruy, "/w/install/ruy", reg)
	if err != nil {
		t.Fatalf("Configure() error: %v", err)
	}

	want := []unit.Setting{
		{Key: "CMAKE_INSTALL_PREFIX", Value: "/w/install/ruy"},
		{Key: "CMAKE_POSITION_INDEPENDENT_CODE", Value: "ON"},
		{Key: "CMAKE_BUILD_TYPE", Value: "RelWithDebInfo"},
		{Key: "BUILD_TESTING", Value: "OFF"},
		{Key: "RUY_BUILD_TESTS", Value: "OFF"},
		{Key: "RUY_BUILD_BENCHMARKS", Value: "OFF"},
		{Key: "RUY_MINIMAL_BUILD", Value: "ON"},
		{Key: "cpuinfo_DIR", Value: filepath.FromSlash("/w/install/cpuinfo/share/cpuinfo")},
		{Key: "RUY_EMPTY", Value: ""},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Configure() =\n%v\nwant\n%v", got, want)
	}
}

func TestConfigure_RefReturnsRegisteredRoot(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	root := types.FilesystemPath("/opt/exotic path/abseil")
	if err := reg.Register(unit.Unit{Name: "abseil"}, root); err != nil {
		t.Fatal(err)
	}

	u := unit.Unit{Name: "protobuf", Options: []unit.Option{unit.InstallPathOf("absl_ROOT", "abseil", "")}}
	got, err := New(Policy{}).Configure(u, "/w/install/protobuf", reg)
	if err != nil {
		t.Fatal(err)
	}
	last := got[len(got)-1]
	if last.Key != "absl_ROOT" || last.Value != root.String() {
		t.Errorf("ref setting = %+v, want the registered root %q", last, root)
	}
	if got[2].Value != DefaultBuildType {
		t.Errorf("default build type = %q", got[2].Value)
	}
}

func TestConfigure_MissingReference(t *testing.T) {
	t.Parallel()

	u := unit.Unit{Name: "ruy", Options: []unit.Option{unit.InstallPathOf("cpuinfo_DIR", "cpuinfo", "share/cpuinfo")}}
	_, err := New(Policy{}).Configure(u, "/w/install/ruy", registry.New())
	if !errors.Is(err, unit.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
	if !errors.Is(err, registry.ErrNotRegistered) {
		t.Errorf("error should wrap ErrNotRegistered, got %v", err)
	}
	var cfgErr *unit.ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Unit != "ruy" || cfgErr.Field != "options[0].ref" {
		t.Errorf("error = %#v", err)
	}
}

func TestConfigure_Deterministic(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	_ = reg.Register(unit.Unit{Name: "a"}, "/w/install/a")
	u := unit.Unit{Name: "b", Options: []unit.Option{
		unit.InstallPathOf("a_DIR", "a", "lib/cmake/a"),
		unit.Literal("X", "1"),
	}}

	c := New(Policy{})
	first, err := c.Configure(u, "/w/install/b", reg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Configure(u, "/w/install/b", reg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Configure() is not deterministic")
	}
}
