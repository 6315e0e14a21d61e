// Package models defines the records flowing through the sanctions pipeline.
//
// Raw records (entity, address, alternate name, comment) are ephemeral: they
// are rebuilt from the source downloads every month and never persisted
// individually. The durable unit of record is the LedgerEntry.
package models

import "strings"

// ListCategory identifies which source list a record came from.
type ListCategory string

const (
	// CategorySDN is the Specially Designated Nationals list.
	CategorySDN ListCategory = "SDN"
	// CategoryConsolidated is the non-SDN Consolidated list. The persisted
	// category code is NSDN, matching the historical data files.
	CategoryConsolidated ListCategory = "NSDN"
)

// EntityType classifies a sanctioned party.
type EntityType string

const (
	TypeIndividual  EntityType = "individual"
	TypeVessel      EntityType = "vessel"
	TypeAircraft    EntityType = "aircraft"
	TypeEntity      EntityType = "entity"
	TypeUnspecified EntityType = "unspecified"
)

// ParseEntityType maps the raw SDN_type column onto an EntityType. The source
// encodes organizations as a blank or "-0-" field.
func ParseEntityType(raw string) EntityType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "individual":
		return TypeIndividual
	case "vessel":
		return TypeVessel
	case "aircraft":
		return TypeAircraft
	case "", "-0-":
		return TypeEntity
	default:
		return TypeUnspecified
	}
}

// EntityRecord is one physical sanctioned entity or vessel from a primary file.
//
// Invariants:
//   - EntityID is a positive integer, stable across months for the same party
//   - immutable once observed for a reporting month; only its child record
//     sets (addresses, alt names, comments) vary
type EntityRecord struct {
	EntityID    int
	Name        string
	Type        EntityType
	Program     string
	Title       string
	CallSign    string
	VesselType  string
	Tonnage     string
	GRT         string
	VesselFlag  string
	VesselOwner string
	Remarks     string
}

// AddressRecord is one address row belonging to an entity. Country is the
// geographic key the ledger tracks pairs against.
type AddressRecord struct {
	EntityID   int
	AddressSeq int
	Address    string
	Locality   string
	Country    string
	Remarks    string
}

// AltNameRecord is one alternate name row belonging to an entity.
type AltNameRecord struct {
	EntityID int
	AltSeq   int
	AltType  string
	AltName  string
	Remarks  string
}

// CommentRecord carries continuation remarks; zero or one per entity.
type CommentRecord struct {
	EntityID    int
	RemarksCont string
}

// RawLists bundles the four decoded record sets for one list category.
type RawLists struct {
	Category ListCategory
	Primary  []EntityRecord
	Address  []AddressRecord
	AltName  []AltNameRecord
	Comment  []CommentRecord
}
