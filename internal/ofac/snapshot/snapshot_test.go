package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ofactrack/internal/ofac/models"
)

var april = time.Date(2022, time.April, 30, 0, 0, 0, 0, time.UTC)

func rawSDN() models.RawLists {
	return models.RawLists{
		Category: models.CategorySDN,
		Primary: []models.EntityRecord{
			{EntityID: 540, Name: "MORGUL SHIPPING", Type: models.TypeEntity, Program: "CUBA"},
			{EntityID: 541, Name: "KHALED, Omar", Type: models.TypeIndividual, Program: "SDGT"},
		},
		Address: []models.AddressRecord{
			{EntityID: 540, AddressSeq: 1, Country: "Cuba"},
			{EntityID: 540, AddressSeq: 2, Country: "Panama"},
			{EntityID: 541, AddressSeq: 1, Country: "Syria"},
		},
		AltName: []models.AltNameRecord{
			{EntityID: 540, AltSeq: 1, AltName: "MORGUL LINES"},
			{EntityID: 540, AltSeq: 2, AltName: "MORGUL MARITIME"},
			{EntityID: 540, AltSeq: 3, AltName: "ML CARGO"},
		},
		Comment: []models.CommentRecord{
			{EntityID: 540, RemarksCont: "overflow"},
		},
	}
}

func TestBuildCartesianCardinality(t *testing.T) {
	snap, stats := Build(rawSDN(), april)

	// Entity 540: 2 addresses x 3 alt names = 6 rows.
	// Entity 541: 1 address x 1 substituted blank alt name = 1 row.
	require.Len(t, snap.Rows, 7)
	assert.Zero(t, stats.BadEntityID)

	count540 := 0
	for _, row := range snap.Rows {
		if row.Entity.EntityID == 540 {
			count540++
			assert.Equal(t, "overflow", row.RemarksCont)
		}
	}
	assert.Equal(t, 6, count540)
}

func TestBuildEntityWithoutChildren(t *testing.T) {
	lists := models.RawLists{
		Category: models.CategorySDN,
		Primary:  []models.EntityRecord{{EntityID: 700, Name: "LONER CORP"}},
	}

	snap, _ := Build(lists, april)
	require.Len(t, snap.Rows, 1, "entities without children survive the join")
	assert.Equal(t, models.AddressRecord{}, snap.Rows[0].Address)
	assert.Equal(t, models.AltNameRecord{}, snap.Rows[0].AltName)
}

func TestBuildRejectsNonPositiveEntityID(t *testing.T) {
	lists := models.RawLists{
		Category: models.CategorySDN,
		Primary:  []models.EntityRecord{{EntityID: 0, Name: "GHOST"}, {EntityID: 1, Name: "REAL"}},
	}

	snap, stats := Build(lists, april)
	assert.Len(t, snap.Rows, 1)
	assert.Equal(t, 1, stats.BadEntityID)
}

func TestMergeConcatenates(t *testing.T) {
	sdn, _ := Build(rawSDN(), april)
	cons, _ := Build(models.RawLists{
		Category: models.CategoryConsolidated,
		Primary:  []models.EntityRecord{{EntityID: 900, Name: "NSDN PARTY"}},
		Address:  []models.AddressRecord{{EntityID: 900, Country: "Iran"}},
	}, april)

	merged := Merge(sdn, cons)
	assert.Len(t, merged.Rows, len(sdn.Rows)+len(cons.Rows))
	assert.Equal(t, april, merged.ReportDate)
}

func TestPairsCollapsesRows(t *testing.T) {
	snap, _ := Build(rawSDN(), april)

	pairs, rejected := snap.Pairs()
	assert.Zero(t, rejected)

	// 540 appears in Cuba and Panama, 541 in Syria: three pairs from 7 rows.
	require.Len(t, pairs, 3)
	assert.Equal(t, models.PairKey{EntityID: 540, Country: "Cuba"}, pairs[0].Key)
	assert.Equal(t, models.PairKey{EntityID: 540, Country: "Panama"}, pairs[1].Key)
	assert.Equal(t, models.PairKey{EntityID: 541, Country: "Syria"}, pairs[2].Key)
}

func TestPairsRejectsBlankCountry(t *testing.T) {
	lists := models.RawLists{
		Category: models.CategorySDN,
		Primary:  []models.EntityRecord{{EntityID: 540, Name: "MORGUL"}},
	}
	snap, _ := Build(lists, april)

	pairs, rejected := snap.Pairs()
	assert.Empty(t, pairs, "substituted blank address has no country")
	assert.Equal(t, 1, rejected)
}

func TestPairsLaterCategoryWins(t *testing.T) {
	sdn, _ := Build(models.RawLists{
		Category: models.CategorySDN,
		Primary:  []models.EntityRecord{{EntityID: 540, Name: "MORGUL"}},
		Address:  []models.AddressRecord{{EntityID: 540, Country: "Cuba"}},
	}, april)
	cons, _ := Build(models.RawLists{
		Category: models.CategoryConsolidated,
		Primary:  []models.EntityRecord{{EntityID: 540, Name: "MORGUL (CONS)"}},
		Address:  []models.AddressRecord{{EntityID: 540, Country: "Cuba"}},
	}, april)

	pairs, _ := Merge(sdn, cons).Pairs()
	require.Len(t, pairs, 1)
	assert.Equal(t, models.CategoryConsolidated, pairs[0].ProgramCategory)
	assert.Equal(t, "MORGUL (CONS)", pairs[0].Name)
}
