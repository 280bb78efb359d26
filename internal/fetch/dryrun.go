// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"sync"

	"github.com/nativedeps/nativedeps/internal/runtime"
)

// DryRun scripts rec so that a GitFetcher run against it succeeds: the
// verification step answers with the revision requested by the preceding
// fetch in the same directory.
func DryRun(rec *runtime.Recorder) {
	var (
		mu      sync.Mutex
		pending = make(map[string]string)
	)

	rec.On(runtime.MatchArgs("fetch", "--depth", "1", "--no-tags", "origin"), func(c runtime.Command) *runtime.Result {
		mu.Lock()
		defer mu.Unlock()
		pending[c.Dir] = c.Args[len(c.Args)-1]
		return runtime.NewSuccessResult("")
	})
	rec.On(runtime.MatchArgs("rev-parse", "HEAD"), func(c runtime.Command) *runtime.Result {
		mu.Lock()
		defer mu.Unlock()
		return runtime.NewSuccessResult(pending[c.Dir] + "\n")
	})
}
