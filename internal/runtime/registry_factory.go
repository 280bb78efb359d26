// SPDX-License-Identifier: MPL-2.0

package runtime

import "io"

// BuildRegistryOptions configures runtime registry construction.
type BuildRegistryOptions struct {
	// Stdout and Stderr receive a live copy of command output. Nil disables streaming.
	Stdout io.Writer
	Stderr io.Writer
}

// BuildRegistry creates the runtime registry with the native and virtual
// runtimes registered.
func BuildRegistry(opts BuildRegistryOptions) *Registry {
	reg := NewRegistry()
	reg.Register(RuntimeTypeNative, NewNativeRuntime(WithStreams(opts.Stdout, opts.Stderr)))
	reg.Register(RuntimeTypeVirtual, NewVirtualRuntime(opts.Stdout, opts.Stderr))
	return reg
}
