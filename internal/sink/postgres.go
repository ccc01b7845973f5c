package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/sweeney/pump-monitor/internal/flow"
)

// PostgresStore appends results to a Postgres (or TimescaleDB) table.
// Re-inserting the same channel/start pair is a no-op.
type PostgresStore struct {
	db           *sql.DB
	tableName    string
	writeTimeout time.Duration
}

// DefaultWriteTimeout bounds a single insert.
const DefaultWriteTimeout = 2 * time.Second

// OpenPostgres connects with the lib/pq driver.
func OpenPostgres(connString, table string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewPostgresStore(db, table), nil
}

// NewPostgresStore wraps an existing handle.
func NewPostgresStore(db *sql.DB, table string) *PostgresStore {
	return &PostgresStore{db: db, tableName: table, writeTimeout: DefaultWriteTimeout}
}

// SetWriteTimeout changes the per-insert deadline. Zero or negative disables it.
func (p *PostgresStore) SetWriteTimeout(d time.Duration) {
	p.writeTimeout = d
}

// Name returns "postgres".
func (p *PostgresStore) Name() string { return "postgres" }

// EnsureSchema creates the results table if it does not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+p.tableName+` (
	pump TEXT NOT NULL,
	start_time TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ NOT NULL,
	elapsed_ms DOUBLE PRECISION NOT NULL,
	flow_rate DOUBLE PRECISION NOT NULL,
	volume DOUBLE PRECISION NOT NULL,
	total_volume DOUBLE PRECISION NOT NULL,
	pulses BIGINT NOT NULL,
	PRIMARY KEY (pump, start_time)
)`)
	if err != nil {
		return fmt.Errorf("create table %s: %w", p.tableName, err)
	}
	return nil
}

// Append inserts one row. The insert is abandoned when ctx is done or the
// write timeout passes, whichever comes first.
func (p *PostgresStore) Append(ctx context.Context, r flow.Result) error {
	if p.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.writeTimeout)
		defer cancel()
	}

	query := "INSERT INTO " + p.tableName +
		" (pump, start_time, end_time, elapsed_ms, flow_rate, volume, total_volume, pulses)" +
		" VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (pump, start_time) DO NOTHING"

	_, err := p.db.ExecContext(ctx, query,
		r.Channel,
		r.Start,
		r.End,
		r.ElapsedMs,
		r.Rate,
		r.Volume,
		r.TotalVolume,
		int64(r.Pulses),
	)
	return err
}

// Close closes the database handle.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}
