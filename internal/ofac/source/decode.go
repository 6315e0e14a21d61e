package source

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"ofactrack/internal/ofac/models"
	dErrors "ofactrack/pkg/domain-errors"
)

// Column counts for the four positional file layouts. The files carry no
// header row; a record with any other width means the layout cannot be
// trusted and the whole run must abort.
const (
	primaryColumns = 12
	addressColumns = 6
	altNameColumns = 5
	commentColumns = 2
)

// DecodeStats counts the recoverable data-quality rejections of one file.
type DecodeStats struct {
	// PlaceholderRows are the blank filler lines at the end of a source file.
	PlaceholderRows int
	// BadEntityID rows carried a join key that does not parse as an integer.
	BadEntityID int
}

func (s *DecodeStats) add(o DecodeStats) {
	s.PlaceholderRows += o.PlaceholderRows
	s.BadEntityID += o.BadEntityID
}

// decodeRows reads positional records of a fixed width, filtering placeholder
// rows (second column blank) and rows whose entity id fails to parse. The
// remaining rows are handed to emit with the parsed entity id.
func decodeRows(r io.Reader, columns int, emit func(id int, rec []string)) (DecodeStats, error) {
	var stats DecodeStats

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = columns
	cr.LazyQuotes = true

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) && errors.Is(parseErr.Err, csv.ErrFieldCount) {
			return stats, dErrors.Newf(dErrors.CodeSchema,
				"line %d has wrong column count (want %d)", parseErr.Line, columns)
		}
		if err != nil {
			return stats, dErrors.Wrap(err, dErrors.CodeSchema, "malformed csv record")
		}

		// End-of-file placeholder lines have every descriptive field blank.
		if strings.TrimSpace(rec[1]) == "" {
			stats.PlaceholderRows++
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil || id <= 0 {
			stats.BadEntityID++
			continue
		}
		emit(id, rec)
	}
}

// DecodePrimary decodes a primary list file (sdn.csv / cons_prim.csv).
func DecodePrimary(r io.Reader) ([]models.EntityRecord, DecodeStats, error) {
	var out []models.EntityRecord
	stats, err := decodeRows(r, primaryColumns, func(id int, rec []string) {
		out = append(out, models.EntityRecord{
			EntityID:    id,
			Name:        clean(rec[1]),
			Type:        models.ParseEntityType(rec[2]),
			Program:     clean(rec[3]),
			Title:       clean(rec[4]),
			CallSign:    clean(rec[5]),
			VesselType:  clean(rec[6]),
			Tonnage:     clean(rec[7]),
			GRT:         clean(rec[8]),
			VesselFlag:  clean(rec[9]),
			VesselOwner: clean(rec[10]),
			Remarks:     clean(rec[11]),
		})
	})
	return out, stats, err
}

// DecodeAddress decodes an address file (add.csv / cons_add.csv).
func DecodeAddress(r io.Reader) ([]models.AddressRecord, DecodeStats, error) {
	var out []models.AddressRecord
	stats, err := decodeRows(r, addressColumns, func(id int, rec []string) {
		seq, _ := strconv.Atoi(strings.TrimSpace(rec[1]))
		out = append(out, models.AddressRecord{
			EntityID:   id,
			AddressSeq: seq,
			Address:    clean(rec[2]),
			Locality:   clean(rec[3]),
			Country:    clean(rec[4]),
			Remarks:    clean(rec[5]),
		})
	})
	return out, stats, err
}

// DecodeAltName decodes an alternate-name file (alt.csv / cons_alt.csv).
func DecodeAltName(r io.Reader) ([]models.AltNameRecord, DecodeStats, error) {
	var out []models.AltNameRecord
	stats, err := decodeRows(r, altNameColumns, func(id int, rec []string) {
		seq, _ := strconv.Atoi(strings.TrimSpace(rec[1]))
		out = append(out, models.AltNameRecord{
			EntityID: id,
			AltSeq:   seq,
			AltType:  clean(rec[2]),
			AltName:  clean(rec[3]),
			Remarks:  clean(rec[4]),
		})
	})
	return out, stats, err
}

// DecodeComment decodes a comments file (sdn_comments.csv / cons_comments.csv).
func DecodeComment(r io.Reader) ([]models.CommentRecord, DecodeStats, error) {
	var out []models.CommentRecord
	stats, err := decodeRows(r, commentColumns, func(id int, rec []string) {
		out = append(out, models.CommentRecord{
			EntityID:    id,
			RemarksCont: clean(rec[1]),
		})
	})
	return out, stats, err
}

// clean trims whitespace and normalizes the source's "-0-" null marker.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if s == "-0-" {
		return ""
	}
	return s
}
