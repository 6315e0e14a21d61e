package handler

import (
	"ofactrack/internal/ofac/models"
	"ofactrack/internal/ofac/service"
	"ofactrack/pkg/dates"
)

// PanelRowResponse is one (country, month) observation.
type PanelRowResponse struct {
	Country   string `json:"country"`
	Date      string `json:"date"`
	YrQtr     string `json:"yrqtr"`
	YrMon     string `json:"yrmon"`
	Levels    int    `json:"levels"`
	Additions int    `json:"additions"`
	Removals  int    `json:"removals"`
	Change    int    `json:"change"`
}

// PanelResponse carries a full panel or one country's series.
type PanelResponse struct {
	Country string             `json:"country,omitempty"`
	Rows    []PanelRowResponse `json:"rows"`
}

// CountriesResponse lists the countries present in the panel.
type CountriesResponse struct {
	Countries []string `json:"countries"`
}

// SpellResponse is one active interval of a pair.
type SpellResponse struct {
	Start string  `json:"start"`
	End   *string `json:"end,omitempty"`
}

// LedgerPairResponse is one (entity, country) pairing with its history.
type LedgerPairResponse struct {
	Country         string          `json:"country"`
	Name            string          `json:"name"`
	Type            string          `json:"type"`
	Program         string          `json:"program"`
	ProgramCategory string          `json:"program_category"`
	Active          bool            `json:"active"`
	ReportDate      string          `json:"report_date"`
	AddDate         string          `json:"add_date"`
	RemovalDate     *string         `json:"removal_date,omitempty"`
	Spells          []SpellResponse `json:"spells"`
}

// LedgerEntityResponse groups all pairings of one entity.
type LedgerEntityResponse struct {
	EntityID int                  `json:"entity_id"`
	Pairs    []LedgerPairResponse `json:"pairs"`
}

// RunResponse summarizes a triggered run.
type RunResponse struct {
	RunID       string `json:"run_id"`
	ReportDate  string `json:"report_date"`
	Added       int    `json:"added"`
	Readded     int    `json:"readded"`
	Removed     int    `json:"removed"`
	Refreshed   int    `json:"refreshed"`
	ActivePairs int    `json:"active_pairs"`
	PanelRows   int    `json:"panel_rows"`
}

func fromPanelRows(rows []models.PanelRow) []PanelRowResponse {
	out := make([]PanelRowResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, PanelRowResponse{
			Country:   r.Country,
			Date:      dates.FormatDate(r.Date),
			YrQtr:     r.YrQtr,
			YrMon:     r.YrMon,
			Levels:    r.Levels,
			Additions: r.Additions,
			Removals:  r.Removals,
			Change:    r.Change,
		})
	}
	return out
}

func fromLedgerEntry(e *models.LedgerEntry) LedgerPairResponse {
	resp := LedgerPairResponse{
		Country:         e.Key.Country,
		Name:            e.Name,
		Type:            string(e.Type),
		Program:         e.Program,
		ProgramCategory: string(e.ProgramCategory),
		Active:          e.Active(),
		ReportDate:      dates.FormatDate(e.ReportDate),
		AddDate:         dates.FormatDate(e.AddDate),
	}
	if e.RemovalDate != nil {
		d := dates.FormatDate(*e.RemovalDate)
		resp.RemovalDate = &d
	}
	for _, sp := range e.Spells {
		sr := SpellResponse{Start: dates.FormatDate(sp.Start)}
		if sp.End != nil {
			end := dates.FormatDate(*sp.End)
			sr.End = &end
		}
		resp.Spells = append(resp.Spells, sr)
	}
	return resp
}

func fromRunResult(r *service.RunResult) RunResponse {
	return RunResponse{
		RunID:       r.RunID.String(),
		ReportDate:  dates.FormatDate(r.ReportDate),
		Added:       len(r.Delta.Added),
		Readded:     len(r.Delta.Readded),
		Removed:     len(r.Delta.Removed),
		Refreshed:   r.Delta.Refreshed,
		ActivePairs: r.ActivePairs,
		PanelRows:   r.PanelRows,
	}
}
