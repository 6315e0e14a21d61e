// Package ledger maintains the durable (entity, country) history. The ledger
// is a versioned value: Reconcile takes the prior state and the current
// snapshot and returns the next state without touching the prior one.
// Persistence between runs belongs to the store layer, never to this package.
package ledger

import (
	"sort"
	"time"

	"ofactrack/internal/ofac/models"
)

// State is one version of the accumulated ledger: every pair ever observed,
// active and removed, plus the month-end of the last reconciled snapshot.
type State struct {
	entries    map[models.PairKey]*models.LedgerEntry
	lastReport time.Time
}

// NewState returns an empty ledger state for a first run.
func NewState() *State {
	return &State{entries: make(map[models.PairKey]*models.LedgerEntry)}
}

// Restore rebuilds a state from persisted entries. The last report date is the
// maximum observation date across entries.
func Restore(entries []*models.LedgerEntry) *State {
	s := NewState()
	for _, e := range entries {
		s.entries[e.Key] = e
		if e.ReportDate.After(s.lastReport) {
			s.lastReport = e.ReportDate
		}
	}
	return s
}

// Empty reports whether the ledger has no history yet.
func (s *State) Empty() bool { return len(s.entries) == 0 }

// Len returns the number of entries, active and removed.
func (s *State) Len() int { return len(s.entries) }

// LastReportDate returns the month-end of the most recent reconciled
// snapshot, or the zero time for an empty ledger.
func (s *State) LastReportDate() time.Time { return s.lastReport }

// Get returns the entry for a pair, if present.
func (s *State) Get(key models.PairKey) (*models.LedgerEntry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

// ActiveCount returns the number of currently active pairs.
func (s *State) ActiveCount() int {
	n := 0
	for _, e := range s.entries {
		if e.Active() {
			n++
		}
	}
	return n
}

// Entries returns all entries sorted by (entity id, country).
func (s *State) Entries() []*models.LedgerEntry {
	out := make([]*models.LedgerEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.EntityID != out[j].Key.EntityID {
			return out[i].Key.EntityID < out[j].Key.EntityID
		}
		return out[i].Key.Country < out[j].Key.Country
	})
	return out
}

// Clone deep-copies the state so a reconciliation can build the next version
// without mutating the prior one.
func (s *State) Clone() *State {
	next := &State{
		entries:    make(map[models.PairKey]*models.LedgerEntry, len(s.entries)),
		lastReport: s.lastReport,
	}
	for k, e := range s.entries {
		next.entries[k] = e.Clone()
	}
	return next
}
