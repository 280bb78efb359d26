// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/nativedeps/nativedeps/pkg/types"
)

type (
	// Matcher selects the commands a Recorder response applies to.
	Matcher func(Command) bool

	// Responder produces the result for a recorded command.
	Responder func(Command) *Result

	// Recorder is a Runtime that executes nothing. It records every command
	// and answers with the first matching scripted response, or success with
	// empty output when none matches. It backs dry runs and tests.
	Recorder struct {
		mu        sync.Mutex
		calls     []Command
		responses []response
		out       io.Writer
	}

	response struct {
		match Matcher
		fn    Responder
	}
)

// NewRecorder creates a Recorder. When out is non-nil every command is
// printed to it as a shell line as it is recorded.
func NewRecorder(out io.Writer) *Recorder {
	return &Recorder{out: out}
}

// Name returns the runtime name
func (r *Recorder) Name() string { return "recorder" }

// Available returns whether this runtime is available
func (r *Recorder) Available() bool { return true }

// On registers a scripted response. Responses are tried in registration order.
func (r *Recorder) On(match Matcher, fn Responder) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, response{match: match, fn: fn})
	return r
}

// Fail makes every command selected by match exit with code and stderr text.
func (r *Recorder) Fail(match Matcher, code int, stderr string) *Recorder {
	return r.On(match, func(Command) *Result {
		return &Result{ExitCode: types.ExitCode(code), ErrOutput: stderr}
	})
}

// Run records cmd and returns the scripted result. A cancelled ctx is
// reported the same way the real runtimes report it.
func (r *Recorder) Run(ctx context.Context, cmd Command) *Result {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	responses := r.responses
	r.mu.Unlock()

	if r.out != nil {
		fmt.Fprintln(r.out, cmd.String())
	}

	if err := ctx.Err(); err != nil {
		return NewErrorResult(1, err)
	}
	for _, resp := range responses {
		if resp.match(cmd) {
			return resp.fn(cmd)
		}
	}
	return NewSuccessResult("")
}

// Calls returns a copy of the recorded commands in execution order.
func (r *Recorder) Calls() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.calls))
	copy(out, r.calls)
	return out
}

// Reset forgets recorded commands. Scripted responses are kept.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// MatchArgs selects commands whose Args start with prefix.
func MatchArgs(prefix ...string) Matcher {
	return func(c Command) bool { return c.HasArgs(prefix...) }
}

// MatchDir selects commands run in dir.
func MatchDir(dir string) Matcher {
	return func(c Command) bool { return c.Dir == dir }
}

// MatchAll selects commands that satisfy every matcher.
func MatchAll(matchers ...Matcher) Matcher {
	return func(c Command) bool {
		for _, m := range matchers {
			if !m(c) {
				return false
			}
		}
		return true
	}
}

// MatchArg selects commands that carry arg anywhere in Args.
func MatchArg(arg string) Matcher {
	return func(c Command) bool { return slices.Contains(c.Args, arg) }
}
