package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"ofactrack/internal/ofac/ledger"
	"ofactrack/internal/ofac/models"
	"ofactrack/pkg/dates"
)

// csvHeader is the ofac_list.csv column contract. One row per spell of each
// (entity, country) pair: add_date is the spell start and removal_date the
// spell end, empty while the spell is open. A pair removed and later re-added
// therefore carries one closed row per past spell plus its current row.
var csvHeader = []string{
	"Ent_num", "SDN_name", "SDN_type", "Program", "Title", "Remarks",
	"Program_cat", "Country", "Rep_date", "add_date", "removal_date",
}

// CSVStore persists the ledger to a single csv file. Writes go through a temp
// file and an atomic rename so an aborted run leaves the prior file intact.
type CSVStore struct {
	path string
}

// NewCSV creates a store writing to the given file path.
func NewCSV(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Load reads and regroups the persisted spell rows into a ledger state.
// A missing file is an empty ledger, not an error.
func (s *CSVStore) Load(ctx context.Context) (*ledger.State, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return ledger.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read ledger csv: %w", err)
	}
	if len(rows) == 0 {
		return ledger.NewState(), nil
	}
	// Skip the header row.
	rows = rows[1:]

	entries := make(map[models.PairKey]*models.LedgerEntry)
	for i, rec := range rows {
		entry, spell, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("ledger csv row %d: %w", i+2, err)
		}
		if existing, ok := entries[entry.Key]; ok {
			existing.Spells = append(existing.Spells, spell)
			if entry.ReportDate.After(existing.ReportDate) {
				existing.ReportDate = entry.ReportDate
			}
		} else {
			entry.Spells = []models.Spell{spell}
			entries[entry.Key] = entry
		}
	}

	out := make([]*models.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		sort.Slice(e.Spells, func(i, j int) bool { return e.Spells[i].Start.Before(e.Spells[j].Start) })
		// Entry-level dating follows the continuation convention: first spell
		// start is the add date, last spell end (if any) the removal date.
		e.AddDate = e.Spells[0].Start
		last := e.Spells[len(e.Spells)-1]
		if last.End != nil {
			end := *last.End
			e.RemovalDate = &end
		}
		out = append(out, e)
	}
	return ledger.Restore(out), nil
}

// Save writes the full state, one row per spell, atomically replacing the file.
func (s *CSVStore) Save(ctx context.Context, state *ledger.State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".ofac_list-*.csv")
	if err != nil {
		return fmt.Errorf("create temp ledger csv: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}
	for _, entry := range state.Entries() {
		for _, spell := range entry.Spells {
			if err := w.Write(formatRow(entry, spell)); err != nil {
				return fmt.Errorf("write ledger row: %w", err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush ledger csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger csv: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace ledger csv: %w", err)
	}
	return nil
}

func formatRow(e *models.LedgerEntry, spell models.Spell) []string {
	removal := ""
	if spell.End != nil {
		removal = dates.FormatDate(*spell.End)
	}
	return []string{
		strconv.Itoa(e.Key.EntityID),
		e.Name,
		string(e.Type),
		e.Program,
		e.Title,
		e.Remarks,
		string(e.ProgramCategory),
		e.Key.Country,
		dates.FormatDate(e.ReportDate),
		dates.FormatDate(spell.Start),
		removal,
	}
}

func parseRow(rec []string) (*models.LedgerEntry, models.Spell, error) {
	entNum, err := strconv.Atoi(rec[0])
	if err != nil {
		return nil, models.Spell{}, fmt.Errorf("bad entity id %q", rec[0])
	}
	repDate, err := dates.ParseDate(rec[8])
	if err != nil {
		return nil, models.Spell{}, fmt.Errorf("bad report date %q", rec[8])
	}
	start, err := dates.ParseDate(rec[9])
	if err != nil {
		return nil, models.Spell{}, fmt.Errorf("bad add date %q", rec[9])
	}
	var end *time.Time
	if rec[10] != "" {
		parsed, err := dates.ParseDate(rec[10])
		if err != nil {
			return nil, models.Spell{}, fmt.Errorf("bad removal date %q", rec[10])
		}
		end = &parsed
	}

	entry := &models.LedgerEntry{
		Key:             models.PairKey{EntityID: entNum, Country: rec[7]},
		Name:            rec[1],
		Type:            models.EntityType(rec[2]),
		Program:         rec[3],
		Title:           rec[4],
		Remarks:         rec[5],
		ProgramCategory: models.ListCategory(rec[6]),
		ReportDate:      repDate,
	}
	return entry, models.Spell{Start: start, End: end}, nil
}
