package models

import (
	"time"

	dErrors "ofactrack/pkg/domain-errors"
)

// PairKey is the composite key the ledger tracks: one entity sanctioned in
// connection with several countries yields several independent pairs.
type PairKey struct {
	EntityID int
	Country  string
}

// Validate rejects malformed composite keys. A zero entity ID or blank country
// is a data-quality error, never silently reconciled.
func (k PairKey) Validate() error {
	if k.EntityID <= 0 {
		return dErrors.Newf(dErrors.CodeBadInput, "pair key has invalid entity id %d", k.EntityID)
	}
	if k.Country == "" {
		return dErrors.Newf(dErrors.CodeBadInput, "pair key for entity %d has empty country", k.EntityID)
	}
	return nil
}

// Spell is one continuous active interval for a pair. End is nil while the
// pair is still on a list.
type Spell struct {
	Start time.Time
	End   *time.Time
}

// LedgerEntry is the durable unit of record for one (entity, country) pair.
//
// Invariants:
//   - AddDate <= ReportDate
//   - RemovalDate, when set, is a month-end >= AddDate
//   - Spells are ordered by Start; only the last spell may be open
//   - entries are never deleted, only marked removed
type LedgerEntry struct {
	Key             PairKey
	Name            string
	Type            EntityType
	Program         string
	Title           string
	Remarks         string
	ProgramCategory ListCategory

	// ReportDate is the month-end of the most recent observation.
	ReportDate time.Time
	// AddDate is the first observation month-end (or the collection start for
	// backfilled entries). Preserved across removal/re-addition cycles under
	// the continuation policy.
	AddDate time.Time
	// RemovalDate is set when the pair disappears from a snapshot and cleared
	// on re-addition. Nil while active.
	RemovalDate *time.Time

	// Spells records every active interval, including closed ones, so the
	// panel can count re-additions in the month they occurred.
	Spells []Spell
}

// Active reports whether the pair is currently on a list.
func (e *LedgerEntry) Active() bool {
	return e.RemovalDate == nil
}

// Clone returns a deep copy. Reconciliation is a pure state transition, so
// entries from the prior state must never be mutated in place.
func (e *LedgerEntry) Clone() *LedgerEntry {
	cp := *e
	if e.RemovalDate != nil {
		d := *e.RemovalDate
		cp.RemovalDate = &d
	}
	cp.Spells = make([]Spell, len(e.Spells))
	for i, sp := range e.Spells {
		cp.Spells[i] = Spell{Start: sp.Start}
		if sp.End != nil {
			end := *sp.End
			cp.Spells[i].End = &end
		}
	}
	return &cp
}
