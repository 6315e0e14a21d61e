// Package snapshot flattens the raw record sets into the denormalized row set
// the reconciler consumes.
//
// The flattening is a documented multi-way join: primary rows are joined to
// their addresses and alternate names with many-to-many semantics, so an
// entity with A addresses and N alt names yields exactly A×N rows, every
// combination carried. Entities without children are preserved (outer join).
package snapshot

import (
	"sort"
	"time"

	"ofactrack/internal/ofac/models"
)

// Row is one flattened observation: entity × address × alt name × comment,
// tagged with its list category and reporting month-end.
type Row struct {
	Entity          models.EntityRecord
	Address         models.AddressRecord // zero value when the entity has no address rows
	AltName         models.AltNameRecord // zero value when the entity has no alt-name rows
	RemarksCont     string
	ProgramCategory models.ListCategory
	ReportDate      time.Time
}

// Snapshot is the flattened row set for one reporting month. After Merge it
// holds both list categories.
type Snapshot struct {
	ReportDate time.Time
	Rows       []Row
}

// BuildStats counts rows rejected while flattening.
type BuildStats struct {
	// BadEntityID counts primary rows carrying a non-positive entity id. The
	// decoder already screens these; the builder counts any that slip through
	// rather than dropping them silently.
	BadEntityID int
}

// Build flattens one list category's raw record sets for the given reporting
// month-end. Pure transform: inputs are not modified.
func Build(lists models.RawLists, reportDate time.Time) (*Snapshot, BuildStats) {
	var stats BuildStats

	addrsByEntity := make(map[int][]models.AddressRecord, len(lists.Address))
	for _, a := range lists.Address {
		addrsByEntity[a.EntityID] = append(addrsByEntity[a.EntityID], a)
	}
	altsByEntity := make(map[int][]models.AltNameRecord, len(lists.AltName))
	for _, n := range lists.AltName {
		altsByEntity[n.EntityID] = append(altsByEntity[n.EntityID], n)
	}
	commentByEntity := make(map[int]string, len(lists.Comment))
	for _, c := range lists.Comment {
		commentByEntity[c.EntityID] = c.RemarksCont
	}

	snap := &Snapshot{ReportDate: reportDate}
	for _, e := range lists.Primary {
		if e.EntityID <= 0 {
			stats.BadEntityID++
			continue
		}

		addrs := addrsByEntity[e.EntityID]
		if len(addrs) == 0 {
			addrs = []models.AddressRecord{{}}
		}
		alts := altsByEntity[e.EntityID]
		if len(alts) == 0 {
			alts = []models.AltNameRecord{{}}
		}
		comment := commentByEntity[e.EntityID]

		// Cartesian expansion is intentional: every address paired with every
		// alternate name.
		for _, addr := range addrs {
			for _, alt := range alts {
				snap.Rows = append(snap.Rows, Row{
					Entity:          e,
					Address:         addr,
					AltName:         alt,
					RemarksCont:     comment,
					ProgramCategory: lists.Category,
					ReportDate:      reportDate,
				})
			}
		}
	}

	return snap, stats
}

// Merge unions two category snapshots into the current-month snapshot.
// Rows are concatenated without cross-category deduplication: an entity can
// legitimately appear on both lists. The collapse onto (entity, country)
// pairs happens in Pairs, where the last-observed category wins.
func Merge(sdn, cons *Snapshot) *Snapshot {
	merged := &Snapshot{
		ReportDate: sdn.ReportDate,
		Rows:       make([]Row, 0, len(sdn.Rows)+len(cons.Rows)),
	}
	merged.Rows = append(merged.Rows, sdn.Rows...)
	merged.Rows = append(merged.Rows, cons.Rows...)
	return merged
}

// Observation is the per-pair summary the ledger reconciles: the fact of the
// (entity, country) pairing plus the last-observed descriptive fields.
type Observation struct {
	Key             models.PairKey
	Name            string
	Type            models.EntityType
	Program         string
	Title           string
	Remarks         string
	ProgramCategory models.ListCategory
}

// Pairs collapses the Cartesian rows onto unique (entity, country) pairs.
// Rows with a malformed composite key (non-positive entity id or blank
// country) are excluded and counted; the ledger tracks pairings, not every
// address/alt-name variant. Results are sorted by key for determinism.
func (s *Snapshot) Pairs() ([]Observation, int) {
	seen := make(map[models.PairKey]Observation)
	rejected := 0

	for _, row := range s.Rows {
		key := models.PairKey{EntityID: row.Entity.EntityID, Country: row.Address.Country}
		if err := key.Validate(); err != nil {
			rejected++
			continue
		}
		// Later rows overwrite earlier ones so the Consolidated category and
		// the freshest descriptive fields win, matching concatenation order.
		seen[key] = Observation{
			Key:             key,
			Name:            row.Entity.Name,
			Type:            row.Entity.Type,
			Program:         row.Entity.Program,
			Title:           row.Entity.Title,
			Remarks:         row.Entity.Remarks,
			ProgramCategory: row.ProgramCategory,
		}
	}

	out := make([]Observation, 0, len(seen))
	for _, ob := range seen {
		out = append(out, ob)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.EntityID != out[j].Key.EntityID {
			return out[i].Key.EntityID < out[j].Key.EntityID
		}
		return out[i].Key.Country < out[j].Key.Country
	})
	return out, rejected
}
