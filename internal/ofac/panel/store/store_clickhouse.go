package store

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"ofactrack/internal/ofac/panel"
)

// ClickHouseWriter mirrors the panel into a ClickHouse table for analytical
// queries. The table is truncated and reloaded on every write because the
// panel is always produced whole.
type ClickHouseWriter struct {
	conn driver.Conn
}

// ClickHouseConfig holds the connection parameters for the analytics sink.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

const panelSchema = `
CREATE TABLE IF NOT EXISTS ofac_panel (
    country   String,
    date      Date,
    yrqtr     String,
    yrmon     String,
    levels    Int32,
    additions Int32,
    removals  Int32,
    change    Int32
) ENGINE = MergeTree()
ORDER BY (country, date)`

// NewClickHouse opens a connection and ensures the panel table exists.
func NewClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseWriter, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	if err := conn.Exec(ctx, panelSchema); err != nil {
		return nil, fmt.Errorf("ensure panel schema: %w", err)
	}
	return &ClickHouseWriter{conn: conn}, nil
}

func (w *ClickHouseWriter) WritePanel(ctx context.Context, p *panel.Panel) error {
	if err := w.conn.Exec(ctx, `TRUNCATE TABLE ofac_panel`); err != nil {
		return fmt.Errorf("truncate panel table: %w", err)
	}

	batch, err := w.conn.PrepareBatch(ctx, `
		INSERT INTO ofac_panel (country, date, yrqtr, yrmon, levels, additions, removals, change)`)
	if err != nil {
		return fmt.Errorf("prepare panel batch: %w", err)
	}
	for _, row := range p.Rows {
		if err := batch.Append(
			row.Country, row.Date, row.YrQtr, row.YrMon,
			int32(row.Levels), int32(row.Additions), int32(row.Removals), int32(row.Change),
		); err != nil {
			return fmt.Errorf("append panel row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send panel batch: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
