// Package events emits sanction delta notifications after each successful
// reconciliation run. Consumers see one event per pair whose status changed;
// refreshed pairs are silent.
package events

import (
	"context"
	"encoding/json"
	"time"

	"ofactrack/internal/ofac/ledger"
	"ofactrack/internal/ofac/models"
	"ofactrack/pkg/dates"
)

// Kind classifies a delta event.
type Kind string

const (
	KindAdded   Kind = "pair.added"
	KindReadded Kind = "pair.readded"
	KindRemoved Kind = "pair.removed"
)

// Event is one status change of an (entity, country) pair.
type Event struct {
	Kind       Kind      `json:"kind"`
	RunID      string    `json:"run_id"`
	EntityID   int       `json:"entity_id"`
	Country    string    `json:"country"`
	ReportDate string    `json:"report_date"`
	EmittedAt  time.Time `json:"emitted_at"`
}

// Publisher delivers delta events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, events []Event) error
	Close() error
}

// FromDelta expands a reconciliation delta into events, sorted the way the
// delta lists them (added, readded, removed).
func FromDelta(runID string, reportDate time.Time, emittedAt time.Time, delta *ledger.Delta) []Event {
	build := func(kind Kind, keys []models.PairKey) []Event {
		out := make([]Event, 0, len(keys))
		for _, k := range keys {
			out = append(out, Event{
				Kind:       kind,
				RunID:      runID,
				EntityID:   k.EntityID,
				Country:    k.Country,
				ReportDate: dates.FormatDate(reportDate),
				EmittedAt:  emittedAt,
			})
		}
		return out
	}

	events := build(KindAdded, delta.Added)
	events = append(events, build(KindReadded, delta.Readded)...)
	events = append(events, build(KindRemoved, delta.Removed)...)
	return events
}

// Marshal renders an event as its wire payload.
func Marshal(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, events []Event) error { return nil }
func (NopPublisher) Close() error                                      { return nil }
