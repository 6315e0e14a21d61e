package store

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ofactrack/internal/ofac/models"
	"ofactrack/internal/ofac/panel"
)

func TestCSVWriterWritePanel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ofac_panel.csv")
	w := NewCSV(path)

	april := time.Date(2022, time.April, 30, 0, 0, 0, 0, time.UTC)
	p := &panel.Panel{Rows: []models.PanelRow{
		{Country: "Cuba", Date: april, YrQtr: "2022Q2", YrMon: "2022-04", Levels: 3, Additions: 3, Removals: 0, Change: 3},
		{Country: "Syria", Date: april, YrQtr: "2022Q2", YrMon: "2022-04", Levels: 1, Additions: 1, Removals: 0, Change: 1},
	}}
	require.NoError(t, w.WritePanel(context.Background(), p))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"Cuba", "2022-04-30", "2022Q2", "2022-04", "3", "3", "0", "3"}, rows[1])
	assert.Equal(t, []string{"Syria", "2022-04-30", "2022Q2", "2022-04", "1", "1", "0", "1"}, rows[2])
}

func TestCSVWriterReplacesPreviousPanel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ofac_panel.csv")
	w := NewCSV(path)
	ctx := context.Background()

	april := time.Date(2022, time.April, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, w.WritePanel(ctx, &panel.Panel{Rows: []models.PanelRow{
		{Country: "Cuba", Date: april, YrQtr: "2022Q2", YrMon: "2022-04", Levels: 1, Additions: 1},
	}}))
	require.NoError(t, w.WritePanel(ctx, &panel.Panel{}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1, "rewrite replaces the whole file")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no leftover temp files")
}
