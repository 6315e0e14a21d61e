package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"ofactrack/internal/ofac/ledger"
	"ofactrack/internal/ofac/models"
	"ofactrack/internal/ofac/panel"
	"ofactrack/internal/ofac/snapshot"
	"ofactrack/pkg/dates"
	dErrors "ofactrack/pkg/domain-errors"
)

// archivePrefix names the monthly full-list archives a backfill replays:
// ofac_full_YYYY-MM-DD.csv, one per reporting month, with a header row.
const archivePrefix = "ofac_full_"

// archiveColumns are the header names a full-list archive must carry. Unlike
// the live download files these archives are headered, so columns are located
// by name rather than position.
var archiveColumns = []string{
	"Ent_num", "SDN_name", "SDN_type", "Program", "Title", "Remarks",
	"Program_cat", "Country",
}

// BackfillHistorical rebuilds the ledger by replaying archived monthly
// snapshots from dir in chronological order, then writes the ledger and a
// stock-convention panel. The existing ledger must be empty: a backfill seeds
// history, it never splices into it.
func (s *RunService) BackfillHistorical(ctx context.Context, dir string, entityOnly bool) (*RunResult, error) {
	prior, err := s.store.Load(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load ledger")
	}
	if !prior.Empty() {
		return nil, dErrors.New(dErrors.CodeConflict, "ledger already has history; backfill requires an empty ledger")
	}

	archives, err := listArchives(dir)
	if err != nil {
		return nil, err
	}
	if len(archives) == 0 {
		return nil, dErrors.Newf(dErrors.CodeBadInput, "no %s*.csv archives under %s", archivePrefix, dir)
	}

	state := ledger.NewState()
	var total ledger.Delta
	for i, a := range archives {
		snap, err := readArchive(a.path, a.reportDate)
		if err != nil {
			return nil, err
		}
		next, delta, err := ledger.Reconcile(state, snap, ledger.Options{Backfill: i == 0})
		if err != nil {
			return nil, err
		}
		s.logger.Info("replayed archive",
			zap.String("report_date", dates.FormatDate(a.reportDate)),
			zap.Int("added", len(delta.Added)),
			zap.Int("readded", len(delta.Readded)),
			zap.Int("removed", len(delta.Removed)),
		)
		total.Added = append(total.Added, delta.Added...)
		total.Readded = append(total.Readded, delta.Readded...)
		total.Removed = append(total.Removed, delta.Removed...)
		total.Refreshed += delta.Refreshed
		total.Rejected += delta.Rejected
		state = next
	}

	p, err := panel.Aggregate(state, panel.Options{
		EntityOnly:        entityOnly,
		FirstMonthIsStock: true,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, state); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save ledger")
	}
	for _, w := range s.writers {
		if err := w.WritePanel(ctx, p); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "write panel")
		}
	}
	s.metrics.SetActivePairs(state.ActiveCount())

	return &RunResult{
		ReportDate:  state.LastReportDate(),
		Delta:       total,
		ActivePairs: state.ActiveCount(),
		PanelRows:   len(p.Rows),
	}, nil
}

type archive struct {
	path       string
	reportDate time.Time
}

// listArchives finds the monthly archives and orders them chronologically.
func listArchives(dir string) ([]archive, error) {
	matches, err := filepath.Glob(filepath.Join(dir, archivePrefix+"*.csv"))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadInput, "scan archive dir")
	}

	out := make([]archive, 0, len(matches))
	for _, path := range matches {
		base := strings.TrimSuffix(filepath.Base(path), ".csv")
		raw := strings.TrimPrefix(base, archivePrefix)
		d, err := dates.ParseDate(raw)
		if err != nil {
			return nil, dErrors.Newf(dErrors.CodeBadInput, "archive %s: name does not carry a YYYY-MM-DD date", path)
		}
		out = append(out, archive{path: path, reportDate: dates.MonthEnd(d)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].reportDate.Before(out[j].reportDate) })
	return out, nil
}

// readArchive loads one headered full-list archive as a snapshot for its
// reporting month. Archives are already flattened, so each row becomes one
// snapshot row directly.
func readArchive(path string, reportDate time.Time) (*snapshot.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeRetrieval, "open archive")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeSchema, fmt.Sprintf("read header of %s", path))
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, name := range archiveColumns {
		if _, ok := idx[name]; !ok {
			return nil, dErrors.Newf(dErrors.CodeSchema, "archive %s: missing column %q", path, name)
		}
	}
	r.FieldsPerRecord = len(header)

	snap := &snapshot.Snapshot{ReportDate: reportDate}
	line := 1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeSchema, fmt.Sprintf("read archive %s", path))
		}
		line++
		id, err := strconv.Atoi(strings.TrimSpace(rec[idx["Ent_num"]]))
		if err != nil {
			return nil, dErrors.Newf(dErrors.CodeSchema, "archive %s line %d: bad entity id %q", path, line, rec[idx["Ent_num"]])
		}
		snap.Rows = append(snap.Rows, snapshot.Row{
			Entity: models.EntityRecord{
				EntityID: id,
				Name:     rec[idx["SDN_name"]],
				Type:     models.ParseEntityType(rec[idx["SDN_type"]]),
				Program:  rec[idx["Program"]],
				Title:    rec[idx["Title"]],
				Remarks:  rec[idx["Remarks"]],
			},
			Address:         models.AddressRecord{EntityID: id, Country: strings.TrimSpace(rec[idx["Country"]])},
			ProgramCategory: models.ListCategory(rec[idx["Program_cat"]]),
			ReportDate:      reportDate,
		})
	}
	return snap, nil
}
