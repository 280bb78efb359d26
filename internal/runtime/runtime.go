// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nativedeps/nativedeps/pkg/types"

	"mvdan.cc/sh/v3/syntax"
)

// Runtime type constants for the available execution backends.
const (
	RuntimeTypeNative  RuntimeType = "native"
	RuntimeTypeVirtual RuntimeType = "virtual"
)

// ErrRuntimeNotAvailable is the sentinel error wrapped by RuntimeNotAvailableError.
var ErrRuntimeNotAvailable = errors.New("runtime not available")

type (
	// RuntimeNotAvailableError is returned by Registry.Get for a runtime that
	// is unknown or cannot run on this system.
	//
	//nolint:revive // mirrors RuntimeType
	RuntimeNotAvailableError struct {
		Type       RuntimeType
		Registered bool
	}

	// Command is one external program invocation. Program and Args form the
	// argv; no shell interpretation is applied by the native runtime.
	Command struct {
		// Program is the executable name or path (e.g. "git", "cmake").
		Program string
		// Args are passed verbatim.
		Args []string
		// Dir is the working directory; empty means the current directory.
		Dir string
		// Env holds KEY=VALUE entries appended to the host environment.
		Env []string
	}

	// Result contains the result of a command execution
	Result struct {
		// ExitCode is the exit code of the command
		ExitCode types.ExitCode
		// Error is set when the command could not be started or was interrupted.
		// A non-zero exit alone leaves Error nil.
		Error error
		// Output contains captured stdout
		Output string
		// ErrOutput contains captured stderr
		ErrOutput string
	}

	// Runtime runs external commands. Implementations block until the
	// command finishes or ctx is cancelled.
	Runtime interface {
		// Name returns the runtime name
		Name() string
		// Available returns whether this runtime can run commands on the current system
		Available() bool
		// Run executes cmd and captures its output.
		Run(ctx context.Context, cmd Command) *Result
	}

	// RuntimeType identifies the type of runtime.
	//
	//nolint:revive // RuntimeType is more descriptive than Type for external callers
	RuntimeType string

	// Registry holds all available runtimes
	Registry struct {
		runtimes map[RuntimeType]Runtime
	}
)

// String renders the command as a single shell-quoted line, prefixed with
// "cd <dir> &&" when a working directory is set.
func (c Command) String() string {
	words := make([]string, 0, len(c.Args)+len(c.Env)+1)
	words = append(words, c.Env...)
	words = append(words, c.Program)
	words = append(words, c.Args...)
	for i, w := range words {
		words[i] = quote(w)
	}
	line := strings.Join(words, " ")
	if c.Dir != "" {
		line = "cd " + quote(c.Dir) + " && " + line
	}
	return line
}

// Argv returns Program followed by Args.
func (c Command) Argv() []string {
	return append([]string{c.Program}, c.Args...)
}

// HasArgs reports whether Args starts with prefix.
func (c Command) HasArgs(prefix ...string) bool {
	return len(c.Args) >= len(prefix) && slices.Equal(c.Args[:len(prefix)], prefix)
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	// KEY=VALUE words keep the key bare so env prefixes stay readable.
	if k, v, ok := strings.Cut(s, "="); ok && isEnvName(k) {
		return k + "=" + quote(v)
	}
	if isShellSafe(s) {
		return s
	}
	q, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		return fmt.Sprintf("%q", s)
	}
	return q
}

func isShellSafe(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("_@%+=:,./-", r):
		default:
			return false
		}
	}
	return true
}

func isEnvName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// Success returns true if the command executed successfully
func (r *Result) Success() bool {
	return r.ExitCode == 0 && r.Error == nil
}

// Combined returns stdout followed by stderr, trimmed of surrounding whitespace.
func (r *Result) Combined() string {
	return strings.TrimSpace(strings.TrimSpace(r.Output) + "\n" + strings.TrimSpace(r.ErrOutput))
}

// NewRegistry creates a new runtime registry
func NewRegistry() *Registry {
	return &Registry{
		runtimes: make(map[RuntimeType]Runtime),
	}
}

// Register adds a runtime to the registry
func (r *Registry) Register(typ RuntimeType, rt Runtime) {
	r.runtimes[typ] = rt
}

// Get returns a runtime by type
func (r *Registry) Get(typ RuntimeType) (Runtime, error) {
	rt, ok := r.runtimes[typ]
	if !ok || !rt.Available() {
		return nil, &RuntimeNotAvailableError{Type: typ, Registered: ok}
	}
	return rt, nil
}

// Error implements the error interface.
func (e *RuntimeNotAvailableError) Error() string {
	if !e.Registered {
		return fmt.Sprintf("runtime '%s' not registered", e.Type)
	}
	return fmt.Sprintf("runtime '%s' is not available on this system", e.Type)
}

// Unwrap returns ErrRuntimeNotAvailable so callers can use errors.Is for programmatic detection.
func (e *RuntimeNotAvailableError) Unwrap() error { return ErrRuntimeNotAvailable }

// Available returns all available runtimes, sorted by name.
func (r *Registry) Available() []RuntimeType {
	var out []RuntimeType
	for typ, rt := range r.runtimes {
		if rt.Available() {
			out = append(out, typ)
		}
	}
	slices.Sort(out)
	return out
}
