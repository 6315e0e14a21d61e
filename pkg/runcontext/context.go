// Package runcontext provides context accessors for run-scoped values.
//
// The monthly pipeline is clock-driven: report dates, additions, and removals
// all derive from "now". Keeping the clock on the context lets tests pin a
// fixed time without threading a clock dependency through every service.
//
// Usage in services (read values):
//
//	now := runcontext.Now(ctx)
//	runID := runcontext.RunID(ctx)
//
// Usage in tests (inject values):
//
//	ctx = runcontext.WithTime(ctx, fixedTime)
package runcontext

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Context key types (unexported for encapsulation).
type (
	runIDKey   struct{}
	runTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyRunID   = runIDKey{}
	ContextKeyRunTime = runTimeKey{}
)

// RunID retrieves the pipeline run ID from the context.
// Returns the zero UUID if not set.
func RunID(ctx context.Context) uuid.UUID {
	if runID, ok := ctx.Value(ContextKeyRunID).(uuid.UUID); ok {
		return runID
	}
	return uuid.UUID{}
}

// WithRunID injects a run ID into the context.
func WithRunID(ctx context.Context, runID uuid.UUID) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// Now returns the run time from the context, falling back to wall-clock time.
// Services must use this instead of time.Now so tests can pin the clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRunTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed run time into the context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRunTime, t)
}
