// SPDX-License-Identifier: MPL-2.0

// Package runtime provides the command capability used to reach external
// tools such as git and cmake.
//
// Three Runtime implementations are available:
//   - native: executes the argv directly with os/exec
//   - virtual: executes the argv through the embedded mvdan/sh interpreter
//   - Recorder: records commands and replays scripted results (dry runs and tests)
//
// Every runtime captures stdout and stderr into the Result; native and
// virtual can additionally tee output to live writers for verbose runs.
// Cancelling the context kills the running child and surfaces ctx.Err()
// in Result.Error.
package runtime
