// Package panel derives the per-country, per-month time series of sanction
// counts from the ledger. The panel is fully derived state: it can be rebuilt
// at any time from the ledger history.
package panel

import (
	"sort"
	"strings"
	"time"

	"ofactrack/internal/ofac/ledger"
	"ofactrack/internal/ofac/models"
	"ofactrack/pkg/dates"
	dErrors "ofactrack/pkg/domain-errors"
)

// Options tunes panel aggregation.
type Options struct {
	// EntityOnly excludes individual, vessel, and aircraft entries before
	// aggregation, leaving organizations only.
	EntityOnly bool
	// FirstMonthIsStock reports the earliest panel month's additions as zero.
	// Used when the ledger was seeded by a backfill: the initial population is
	// pre-existing stock, not a wave of new designations. Levels still count it.
	FirstMonthIsStock bool
}

// Panel is the derived (country, month) series, sorted by country then date.
type Panel struct {
	Rows []models.PanelRow
}

// westBankGaza lists the country labels consolidated under the World Bank
// convention so the panel joins cleanly with other country datasets.
var westBankGaza = map[string]bool{
	"West Bank":         true,
	"Region: Gaza":      true,
	"Region: West Bank": true,
	"Palestinian":       true,
}

const consolidatedWBG = "West Bank and Gaza"

// mapCountry applies the fixed consolidation, then the fixed exclusion filter.
// Returns the final label and whether the country participates in the panel.
// The filter list is deliberately not configurable.
func mapCountry(country string) (string, bool) {
	if westBankGaza[country] {
		return consolidatedWBG, true
	}
	if country == "undetermined" ||
		strings.HasPrefix(country, "-") ||
		strings.HasPrefix(country, "Region") {
		return "", false
	}
	return country, true
}

// countrySpells is the per-country spell history the series is computed from.
type countrySpells struct {
	spells []models.Spell
	starts map[time.Time]int
	ends   map[time.Time]int
}

// Aggregate computes the panel from a ledger state. Returns a consistency
// error instead of ever emitting a panel whose running levels drift from the
// cumulative additions and removals.
func Aggregate(state *ledger.State, opts Options) (*Panel, error) {
	if state == nil || state.Empty() {
		return &Panel{}, nil
	}

	byCountry := make(map[string]*countrySpells)
	var firstStart time.Time

	for _, entry := range state.Entries() {
		if opts.EntityOnly && excludedType(entry.Type) {
			continue
		}
		country, ok := mapCountry(entry.Key.Country)
		if !ok {
			continue
		}
		cs := byCountry[country]
		if cs == nil {
			cs = &countrySpells{starts: make(map[time.Time]int), ends: make(map[time.Time]int)}
			byCountry[country] = cs
		}
		for _, sp := range entry.Spells {
			start := dates.MonthEnd(sp.Start)
			cs.starts[start]++
			normalized := models.Spell{Start: start}
			if sp.End != nil {
				end := dates.MonthEnd(*sp.End)
				cs.ends[end]++
				normalized.End = &end
			}
			cs.spells = append(cs.spells, normalized)
			if firstStart.IsZero() || start.Before(firstStart) {
				firstStart = start
			}
		}
	}

	if len(byCountry) == 0 {
		return &Panel{}, nil
	}

	months := dates.MonthEnds(firstStart, state.LastReportDate())
	countries := make([]string, 0, len(byCountry))
	for c := range byCountry {
		countries = append(countries, c)
	}
	sort.Strings(countries)

	p := &Panel{Rows: make([]models.PanelRow, 0, len(countries)*len(months))}
	for _, country := range countries {
		cs := byCountry[country]
		prevLevels := 0
		for i, m := range months {
			additions := cs.starts[m]
			removals := cs.ends[m]
			if opts.FirstMonthIsStock && i == 0 {
				additions = 0
			}
			change := additions - removals

			// Levels are counted directly from spell membership, independent
			// of the additions/removals tallies, so drift between the two is
			// detectable rather than definitionally impossible.
			levels := activeAt(cs.spells, m)

			if i == 0 {
				if !opts.FirstMonthIsStock && levels != change {
					return nil, driftErr(country, m, levels, prevLevels, change)
				}
			} else if levels != prevLevels+change {
				return nil, driftErr(country, m, levels, prevLevels, change)
			}
			if levels < 0 {
				return nil, driftErr(country, m, levels, prevLevels, change)
			}

			p.Rows = append(p.Rows, models.PanelRow{
				Country:   country,
				Date:      m,
				YrQtr:     dates.YearQuarter(m),
				YrMon:     dates.YearMonth(m),
				Levels:    levels,
				Additions: additions,
				Removals:  removals,
				Change:    change,
			})
			prevLevels = levels
		}
	}

	return p, nil
}

// activeAt counts spells covering month-end m. A spell ending in month m is no
// longer active at m: removal dates mark the first month of absence.
func activeAt(spells []models.Spell, m time.Time) int {
	n := 0
	for _, sp := range spells {
		if sp.Start.After(m) {
			continue
		}
		if sp.End == nil || sp.End.After(m) {
			n++
		}
	}
	return n
}

func excludedType(t models.EntityType) bool {
	return t == models.TypeIndividual || t == models.TypeVessel || t == models.TypeAircraft
}

func driftErr(country string, month time.Time, levels, prevLevels, change int) error {
	return dErrors.Newf(dErrors.CodeConsistency,
		"running levels drift for %s at %s: levels=%d prior=%d change=%d",
		country, dates.FormatDate(month), levels, prevLevels, change)
}

// Countries returns the distinct countries present in the panel, sorted.
func (p *Panel) Countries() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range p.Rows {
		if !seen[r.Country] {
			seen[r.Country] = true
			out = append(out, r.Country)
		}
	}
	sort.Strings(out)
	return out
}

// Series returns the rows for one country, in date order.
func (p *Panel) Series(country string) []models.PanelRow {
	var out []models.PanelRow
	for _, r := range p.Rows {
		if r.Country == country {
			out = append(out, r)
		}
	}
	return out
}
