package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"ofactrack/internal/ofac/panel"
	"ofactrack/pkg/dates"
)

// csvHeader is the ofac_panel.csv column contract.
var csvHeader = []string{
	"Country", "Date", "yrqtr", "yrmon", "levels", "additions", "removals", "change",
}

// CSVWriter writes the panel to a csv file via temp file + atomic rename.
type CSVWriter struct {
	path string
}

// NewCSV creates a writer targeting the given file path.
func NewCSV(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

func (w *CSVWriter) WritePanel(ctx context.Context, p *panel.Panel) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(w.path), ".ofac_panel-*.csv")
	if err != nil {
		return fmt.Errorf("create temp panel csv: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	cw := csv.NewWriter(tmp)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write panel header: %w", err)
	}
	for _, row := range p.Rows {
		rec := []string{
			row.Country,
			dates.FormatDate(row.Date),
			row.YrQtr,
			row.YrMon,
			strconv.Itoa(row.Levels),
			strconv.Itoa(row.Additions),
			strconv.Itoa(row.Removals),
			strconv.Itoa(row.Change),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write panel row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush panel csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp panel csv: %w", err)
	}

	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("replace panel csv: %w", err)
	}
	return nil
}
