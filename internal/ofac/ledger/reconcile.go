package ledger

import (
	"sort"
	"time"

	"ofactrack/internal/ofac/models"
	"ofactrack/internal/ofac/snapshot"
	"ofactrack/pkg/dates"
	dErrors "ofactrack/pkg/domain-errors"
)

// ReadditionPolicy decides what happens to AddDate when a removed pair
// reappears on a list.
type ReadditionPolicy int

const (
	// ContinuationPolicy preserves the original AddDate across the gap. The
	// re-addition still counts as an addition event in the month it occurred,
	// carried by the entry's spell history. Matches the historical data files.
	ContinuationPolicy ReadditionPolicy = iota
	// NewSpellPolicy restamps AddDate to the re-addition month, treating the
	// reappearance as a brand-new historical spell.
	NewSpellPolicy
)

// Options tunes one reconciliation run.
type Options struct {
	// Backfill dates a first run's additions at the collection start
	// (2022-04-30) instead of the snapshot month. Only meaningful when the
	// prior ledger is empty.
	Backfill bool
	// AllowGap permits reconciling a snapshot more than one month past the
	// prior ledger. Without it a gap is a temporal-ordering error, since the
	// caller must either backfill the missing month or confirm the skip.
	AllowGap bool
	// Readdition selects the AddDate policy for removal/re-addition cycles.
	Readdition ReadditionPolicy
}

// Delta reports what one reconciliation changed, for event publishing,
// metrics, and logging. Keys are sorted.
type Delta struct {
	Added   []models.PairKey
	Readded []models.PairKey
	Removed []models.PairKey
	// Refreshed counts pairs present in both the prior ledger and the
	// snapshot whose fields were brought up to date.
	Refreshed int
	// Rejected counts snapshot rows excluded for malformed composite keys.
	Rejected int
}

// Reconcile computes the next ledger state from the prior state and the
// current month snapshot. It is a pure state transition: prior is not
// modified, and reconciling the same snapshot against its own output is a
// no-op (report dates refresh, no add/removal events fire).
func Reconcile(prior *State, snap *snapshot.Snapshot, opts Options) (*State, Delta, error) {
	if prior == nil {
		prior = NewState()
	}

	reportDate := dates.MonthEnd(snap.ReportDate)
	if err := checkOrder(prior, reportDate, opts); err != nil {
		return nil, Delta{}, err
	}
	// A rerun of the month already reconciled refreshes fields but must not
	// fire add/removal events: the absence of a pair cannot be distinguished
	// from the pair having been removed by the earlier run.
	rerun := !prior.Empty() && reportDate.Equal(prior.lastReport)

	next := prior.Clone()
	observations, rejected := snap.Pairs()
	delta := Delta{Rejected: rejected}

	inSnapshot := make(map[models.PairKey]bool, len(observations))
	for _, ob := range observations {
		inSnapshot[ob.Key] = true

		entry, ok := next.entries[ob.Key]
		switch {
		case !ok:
			addDate := reportDate
			if opts.Backfill && prior.Empty() {
				addDate = dates.CollectionStart
			}
			next.entries[ob.Key] = &models.LedgerEntry{
				Key:             ob.Key,
				Name:            ob.Name,
				Type:            ob.Type,
				Program:         ob.Program,
				Title:           ob.Title,
				Remarks:         ob.Remarks,
				ProgramCategory: ob.ProgramCategory,
				ReportDate:      reportDate,
				AddDate:         addDate,
				Spells:          []models.Spell{{Start: addDate}},
			}
			delta.Added = append(delta.Added, ob.Key)

		case entry.Active():
			refresh(entry, ob, reportDate)
			delta.Refreshed++

		default: // previously removed, observed again
			refresh(entry, ob, reportDate)
			entry.RemovalDate = nil
			entry.Spells = append(entry.Spells, models.Spell{Start: reportDate})
			if opts.Readdition == NewSpellPolicy {
				entry.AddDate = reportDate
			}
			delta.Readded = append(delta.Readded, ob.Key)
		}
	}

	if !rerun {
		for key, entry := range next.entries {
			if entry.Active() && !inSnapshot[key] {
				end := reportDate
				entry.RemovalDate = &end
				entry.Spells[len(entry.Spells)-1].End = &end
				delta.Removed = append(delta.Removed, key)
			}
		}
	}

	next.lastReport = reportDate
	sortKeys(delta.Added)
	sortKeys(delta.Readded)
	sortKeys(delta.Removed)
	return next, delta, nil
}

func refresh(entry *models.LedgerEntry, ob snapshot.Observation, reportDate time.Time) {
	entry.Name = ob.Name
	entry.Type = ob.Type
	entry.Program = ob.Program
	entry.Title = ob.Title
	entry.Remarks = ob.Remarks
	entry.ProgramCategory = ob.ProgramCategory
	entry.ReportDate = reportDate
}

// checkOrder enforces chronological reconciliation. Reruns of the latest
// month are allowed; anything earlier, and any unconfirmed gap, is an error.
func checkOrder(prior *State, reportDate time.Time, opts Options) error {
	if prior.Empty() {
		return nil
	}
	last := prior.lastReport
	switch {
	case reportDate.Before(last):
		return dErrors.Newf(dErrors.CodeTemporalOrder,
			"snapshot for %s is older than ledger head %s",
			dates.FormatDate(reportDate), dates.FormatDate(last))
	case reportDate.Equal(last):
		return nil
	case dates.SameMonth(reportDate, dates.NextMonthEnd(last)):
		return nil
	case opts.AllowGap:
		return nil
	default:
		return dErrors.Newf(dErrors.CodeTemporalOrder,
			"snapshot for %s leaves a gap after ledger head %s; backfill the missing months or set AllowGap",
			dates.FormatDate(reportDate), dates.FormatDate(last))
	}
}

func sortKeys(keys []models.PairKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].EntityID != keys[j].EntityID {
			return keys[i].EntityID < keys[j].EntityID
		}
		return keys[i].Country < keys[j].Country
	})
}
