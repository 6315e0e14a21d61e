package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"ofactrack/internal/ofac/ledger"
	"ofactrack/internal/ofac/models"
)

// PostgresStore persists ledger states in PostgreSQL, one row per spell of
// each (entity, country) pair. Save replaces the whole state inside a single
// transaction so a failed run never leaves a half-written ledger behind.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS ofac_ledger (
    ent_num     BIGINT NOT NULL,
    country     TEXT   NOT NULL,
    sdn_name    TEXT   NOT NULL DEFAULT '',
    sdn_type    TEXT   NOT NULL DEFAULT '',
    program     TEXT   NOT NULL DEFAULT '',
    title       TEXT   NOT NULL DEFAULT '',
    remarks     TEXT   NOT NULL DEFAULT '',
    program_cat TEXT   NOT NULL DEFAULT '',
    rep_date    DATE   NOT NULL,
    spell_start DATE   NOT NULL,
    spell_end   DATE,
    PRIMARY KEY (ent_num, country, spell_start)
)`

// EnsureSchema creates the ledger table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, ledgerSchema); err != nil {
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	return nil
}

// Load reads all spell rows and regroups them into a ledger state.
func (s *PostgresStore) Load(ctx context.Context) (*ledger.State, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ent_num, country, sdn_name, sdn_type, program, title, remarks,
		       program_cat, rep_date, spell_start, spell_end
		FROM ofac_ledger
		ORDER BY ent_num, country, spell_start`)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	entries := make(map[models.PairKey]*models.LedgerEntry)
	for rows.Next() {
		var (
			entry    models.LedgerEntry
			repDate  time.Time
			start    time.Time
			end      sql.NullTime
			typeStr  string
			category string
		)
		if err := rows.Scan(
			&entry.Key.EntityID, &entry.Key.Country, &entry.Name, &typeStr,
			&entry.Program, &entry.Title, &entry.Remarks, &category,
			&repDate, &start, &end,
		); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		entry.Type = models.EntityType(typeStr)
		entry.ProgramCategory = models.ListCategory(category)
		entry.ReportDate = repDate.UTC()

		spell := models.Spell{Start: start.UTC()}
		if end.Valid {
			e := end.Time.UTC()
			spell.End = &e
		}

		if existing, ok := entries[entry.Key]; ok {
			existing.Spells = append(existing.Spells, spell)
			if entry.ReportDate.After(existing.ReportDate) {
				existing.ReportDate = entry.ReportDate
			}
		} else {
			e := entry
			e.Spells = []models.Spell{spell}
			entries[e.Key] = &e
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}

	out := make([]*models.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		sort.Slice(e.Spells, func(i, j int) bool { return e.Spells[i].Start.Before(e.Spells[j].Start) })
		e.AddDate = e.Spells[0].Start
		if last := e.Spells[len(e.Spells)-1]; last.End != nil {
			end := *last.End
			e.RemovalDate = &end
		}
		out = append(out, e)
	}
	return ledger.Restore(out), nil
}

// Save replaces the persisted state in one transaction.
func (s *PostgresStore) Save(ctx context.Context, state *ledger.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ofac_ledger`); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ofac_ledger (
			ent_num, country, sdn_name, sdn_type, program, title, remarks,
			program_cat, rep_date, spell_start, spell_end
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)
	if err != nil {
		return fmt.Errorf("prepare ledger insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range state.Entries() {
		for _, spell := range entry.Spells {
			var end sql.NullTime
			if spell.End != nil {
				end = sql.NullTime{Time: *spell.End, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx,
				entry.Key.EntityID, entry.Key.Country, entry.Name, string(entry.Type),
				entry.Program, entry.Title, entry.Remarks, string(entry.ProgramCategory),
				entry.ReportDate, spell.Start, end,
			); err != nil {
				return fmt.Errorf("insert ledger row (%d, %s): %w",
					entry.Key.EntityID, entry.Key.Country, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}
