// SPDX-License-Identifier: MPL-2.0

// Package manifest renders the locator file a downstream build loads to find
// every installed unit, and writes it atomically.
package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"mvdan.cc/sh/v3/syntax"

	"github.com/nativedeps/nativedeps/internal/registry"
	"github.com/nativedeps/nativedeps/pkg/types"
	"github.com/nativedeps/nativedeps/pkg/unit"
)

// Supported manifest formats.
const (
	// FormatCMake renders CMake cache entries for use with "cmake -C <file>".
	FormatCMake Format = "cmake"
	// FormatEnv renders KEY=value lines suitable for sourcing from a POSIX shell.
	FormatEnv Format = "env"
)

const headerLine = "Generated by nativedeps. Do not edit."

var (
	// ErrIO is the sentinel error wrapped by IOError.
	ErrIO = errors.New("manifest write failed")
	// ErrInvalidFormat is the sentinel error wrapped by InvalidFormatError.
	ErrInvalidFormat = errors.New("invalid manifest format")
	// ErrKeyCollision is the sentinel error wrapped by KeyCollisionError.
	ErrKeyCollision = errors.New("manifest key collision")
)

type (
	// Format selects the manifest syntax.
	Format string

	// InvalidFormatError is returned for an unknown Format.
	InvalidFormatError struct {
		Value Format
	}

	// KeyCollisionError is returned when two distinct keys would be written
	// under the same name in a format.
	KeyCollisionError struct {
		Format Format
		Name   string
		First  string
		Second string
	}

	// Binding is one manifest entry.
	Binding struct {
		Key   string
		Value string
		Type  unit.EntryType
	}

	// IOError reports a failure to produce or clear the manifest file. When
	// it is returned by Emit, no file exists at Path that was not there before.
	IOError struct {
		Path types.FilesystemPath
		Err  error
	}
)

// Validate returns nil if the Format is supported.
func (f Format) Validate() error {
	switch f {
	case FormatCMake, FormatEnv:
		return nil
	default:
		return &InvalidFormatError{Value: f}
	}
}

// String returns the string representation of the Format.
func (f Format) String() string { return string(f) }

// Error implements the error interface.
func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid manifest format %q (valid: %s, %s)", e.Value, FormatCMake, FormatEnv)
}

// Unwrap returns ErrInvalidFormat so callers can use errors.Is for programmatic detection.
func (e *InvalidFormatError) Unwrap() error { return ErrInvalidFormat }

// Error implements the error interface.
func (e *KeyCollisionError) Error() string {
	return fmt.Sprintf("keys %q and %q both map to %s variable %s", e.First, e.Second, e.Format, e.Name)
}

// Unwrap returns ErrKeyCollision so callers can use errors.Is for programmatic detection.
func (e *KeyCollisionError) Unwrap() error { return ErrKeyCollision }

// Error implements the error interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("write manifest %s: %v", e.Path, e.Err)
}

// Unwrap returns the sentinel and the cause.
func (e *IOError) Unwrap() []error { return []error{ErrIO, e.Err} }

// Bindings returns one PATH binding per registry entry in registration order,
// followed by the fixed entries in catalog order.
func Bindings(reg *registry.Registry, fixed []unit.FixedEntry) []Binding {
	entries := reg.Entries()
	out := make([]Binding, 0, len(entries)+len(fixed))
	for _, e := range entries {
		out = append(out, Binding{Key: e.Key, Value: e.Locator().String(), Type: unit.EntryPath})
	}
	for _, f := range fixed {
		out = append(out, Binding{Key: f.Key, Value: f.Value, Type: f.Type.Normalize()})
	}
	return out
}

// CheckKeys verifies that keys stay distinct once written in format. The env
// format rewrites characters a shell variable cannot hold, so keys such as
// a-b_DIR and a_b_DIR would shadow each other.
func CheckKeys(keys []string, format Format) error {
	if err := format.Validate(); err != nil {
		return err
	}
	seen := make(map[string]string, len(keys))
	for _, key := range keys {
		name := key
		if format == FormatEnv {
			name = envName(key)
		}
		if first, dup := seen[name]; dup {
			return &KeyCollisionError{Format: format, Name: name, First: first, Second: key}
		}
		seen[name] = key
	}
	return nil
}

// Render formats bindings. The output carries no timestamps, so equal
// inputs always render to equal bytes.
func Render(bindings []Binding, format Format) ([]byte, error) {
	keys := make([]string, len(bindings))
	for i, b := range bindings {
		keys[i] = b.Key
	}
	if err := CheckKeys(keys, format); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n", headerLine)
	switch format {
	case FormatCMake:
		buf.WriteString("# Load with: cmake -C <this file>\n")
		for _, b := range bindings {
			fmt.Fprintf(&buf, "set(%s \"%s\" CACHE %s \"\")\n", b.Key, cmakeEscape(b.Value), b.Type.Normalize())
		}
	case FormatEnv:
		for _, b := range bindings {
			fmt.Fprintf(&buf, "%s=%s\n", envName(b.Key), shellQuote(b.Value))
		}
	}
	return buf.Bytes(), nil
}

// Emit renders the bindings for reg and fixed and writes them to dest
// atomically: the content goes to a temporary file in dest's directory that
// is renamed into place only after it is complete and ctx is still live.
func Emit(ctx context.Context, reg *registry.Registry, fixed []unit.FixedEntry, dest types.FilesystemPath, format Format) error {
	data, err := Render(Bindings(reg, fixed), format)
	if err != nil {
		return err
	}
	return write(ctx, dest, data)
}

// Remove deletes the manifest at dest, if any. A build calls it before its
// first unit runs, because preparing a unit deletes the install tree an old
// manifest points at.
func Remove(dest types.FilesystemPath) error {
	if err := dest.Validate(); err != nil {
		return &IOError{Path: dest, Err: err}
	}
	if err := os.Remove(dest.String()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &IOError{Path: dest, Err: err}
	}
	return nil
}

func write(ctx context.Context, dest types.FilesystemPath, data []byte) error {
	fail := func(err error) error { return &IOError{Path: dest, Err: err} }

	if err := dest.Validate(); err != nil {
		return fail(err)
	}
	path := dest.String()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fail(err)
	}

	f, err := renameio.TempFile(filepath.Dir(path), path)
	if err != nil {
		return fail(err)
	}
	defer func() { _ = f.Cleanup() }()

	if _, err := f.Write(data); err != nil {
		return fail(err)
	}
	if err := f.Chmod(0o644); err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if err := f.CloseAtomicallyReplace(); err != nil {
		return fail(err)
	}
	return nil
}

func cmakeEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`)
	return r.Replace(s)
}

// envName maps a cache key to a shell variable name; characters outside
// [A-Za-z0-9_] become '_' (tensorflow-lite_DIR -> tensorflow_lite_DIR).
func envName(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
}

func shellQuote(s string) string {
	if s != "" && strings.Trim(s, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_@%+=:,./-") == "" {
		return s
	}
	q, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return q
}
