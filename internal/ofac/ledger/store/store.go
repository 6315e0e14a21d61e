// Package store persists ledger states between monthly runs. Persistence is
// an explicit collaborator of the pipeline: Reconcile stays a pure function
// and the store moves whole state versions in and out.
package store

import (
	"context"

	"ofactrack/internal/ofac/ledger"
)

// Store loads the prior ledger state and saves the next one. Save must be
// atomic with respect to failures: an aborted run leaves the previously
// persisted state untouched.
type Store interface {
	// Load returns the persisted state, or an empty state when none exists yet.
	Load(ctx context.Context) (*ledger.State, error)
	// Save replaces the persisted state with the given version.
	Save(ctx context.Context, state *ledger.State) error
}
