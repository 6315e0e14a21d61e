package models

import "time"

// PanelRow is one (country, month) cell of the derived panel.
//
// Invariant: for consecutive months t-1, t of the same country,
// Levels[t] = Levels[t-1] + Change[t]. The aggregator refuses to emit a panel
// where this does not hold.
type PanelRow struct {
	Country   string
	Date      time.Time
	YrQtr     string
	YrMon     string
	Levels    int
	Additions int
	Removals  int
	Change    int
}
