// Package correlation tags contexts with per-run identities so every log
// line and event emitted during one change-processing pass or rebuild can be
// tied back together. Identities are process-local and cheap: a kind prefix
// plus a monotonically increasing sequence number, no sampling and no wire
// propagation.
package correlation

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Run identifies one unit of change-processing work.
type Run struct {
	ID        string
	Kind      string
	StartedAt time.Time
}

// Elapsed returns the time since the run began.
func (r Run) Elapsed() time.Duration { return time.Since(r.StartedAt) }

type runKey struct{}

var sequence atomic.Uint64

// Begin derives a context carrying a fresh run identity. Nested Begin calls
// replace the identity: the innermost run wins, so a rebuild triggered inside
// a change pass reports its own ID.
func Begin(ctx context.Context, kind string) (context.Context, Run) {
	run := Run{
		ID:        fmt.Sprintf("%s-%06d", kind, sequence.Add(1)),
		Kind:      kind,
		StartedAt: time.Now(),
	}
	return context.WithValue(ctx, runKey{}, run), run
}

// FromContext returns the run identity active in ctx.
func FromContext(ctx context.Context) (Run, bool) {
	if ctx == nil {
		return Run{}, false
	}
	run, ok := ctx.Value(runKey{}).(Run)
	return run, ok
}

// ID returns the active run ID, empty when ctx carries none.
func ID(ctx context.Context) string {
	run, _ := FromContext(ctx)
	return run.ID
}
