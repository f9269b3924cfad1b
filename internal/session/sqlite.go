package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/meshctl/internal/schema"
)

const storeSchemaSQL = `
CREATE TABLE IF NOT EXISTS mesh_meta (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	version INTEGER NOT NULL
);
INSERT OR IGNORE INTO mesh_meta (id, version) VALUES (1, 1);

CREATE TABLE IF NOT EXISTS mesh_rows (
	tbl  TEXT NOT NULL,
	id   TEXT NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (tbl, id)
);

CREATE TABLE IF NOT EXISTS mesh_log (
	version INTEGER NOT NULL,
	comment TEXT NOT NULL,
	at      TEXT NOT NULL
);
`

// defaultPollInterval paces Wait's version checks.
const defaultPollInterval = 50 * time.Millisecond

// Conn is a Session backed by a shared SQLite file standing in for the
// remote store. Multiple processes may open the same file; optimistic
// concurrency is enforced through the version counter in mesh_meta.
type Conn struct {
	db     *sql.DB
	schema *schema.Schema
	gen    IDGenerator
	poll   time.Duration

	mirror  map[string]map[uuid.UUID]Row
	version uint64
	alive   bool
	lastErr error
}

// ConnOption configures an opened connection.
type ConnOption func(*Conn)

// WithIDGenerator overrides the row ID generator. Tests use a sequential
// generator for deterministic IDs.
func WithIDGenerator(gen IDGenerator) ConnOption {
	return func(c *Conn) { c.gen = gen }
}

// WithPollInterval overrides how often Wait polls the store version.
func WithPollInterval(d time.Duration) ConnOption {
	return func(c *Conn) { c.poll = d }
}

// Open opens (creating if necessary) the store at path and returns a
// session on it. The mirror is empty until the first Advance.
func Open(path string, sch *schema.Schema, opts ...ConnOption) (*Conn, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to store: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY churn within this process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(storeSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize store schema: %w", err)
	}

	c := &Conn{
		db:     db,
		schema: sch,
		gen:    UUIDv7Generator{},
		poll:   defaultPollInterval,
		mirror: make(map[string]map[uuid.UUID]Row),
		alive:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases the underlying database handle.
func (c *Conn) Close() error {
	return c.db.Close()
}

// Schema implements Session.
func (c *Conn) Schema() *schema.Schema { return c.schema }

// CurrentVersion implements Session.
func (c *Conn) CurrentVersion() uint64 { return c.version }

// IsAlive implements Session.
func (c *Conn) IsAlive() bool { return c.alive }

// LastError implements Session.
func (c *Conn) LastError() error { return c.lastErr }

// RowID implements Session.
func (c *Conn) RowID() uuid.UUID { return c.gen.NewID() }

// Rows implements Session.
func (c *Conn) Rows(table string) map[uuid.UUID]Row {
	return c.mirror[table]
}

// Row implements Session.
func (c *Conn) Row(table string, id uuid.UUID) (Row, bool) {
	row, ok := c.mirror[table][id]
	return row, ok
}

// Advance implements Session: reload the mirror when the store has moved
// past the mirrored version.
func (c *Conn) Advance(ctx context.Context) {
	if !c.alive {
		return
	}
	v, err := c.storeVersion(ctx)
	if err != nil {
		c.die(err)
		return
	}
	if v == c.version {
		return
	}
	mirror, err := c.loadRows(ctx)
	if err != nil {
		c.die(err)
		return
	}
	c.mirror = mirror
	c.version = v
}

// Wait implements Session: block until the store version differs from the
// mirrored one. The store has no change notification channel, so this polls.
func (c *Conn) Wait(ctx context.Context) error {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		v, err := c.storeVersion(ctx)
		if err != nil {
			c.die(err)
			return nil
		}
		if v != c.version {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Begin implements Session.
func (c *Conn) Begin(dryRun bool) Txn {
	return &sqliteTxn{conn: c, dryRun: dryRun, base: c.version}
}

func (c *Conn) die(err error) {
	c.alive = false
	c.lastErr = err
}

func (c *Conn) storeVersion(ctx context.Context) (uint64, error) {
	var v uint64
	err := c.db.QueryRowContext(ctx, "SELECT version FROM mesh_meta WHERE id = 1").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read store version: %w", err)
	}
	return v, nil
}

func (c *Conn) loadRows(ctx context.Context) (map[string]map[uuid.UUID]Row, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT tbl, id, data FROM mesh_rows")
	if err != nil {
		return nil, fmt.Errorf("load rows: %w", err)
	}
	defer rows.Close()

	mirror := make(map[string]map[uuid.UUID]Row, len(c.schema.Tables))
	for name := range c.schema.Tables {
		mirror[name] = make(map[uuid.UUID]Row)
	}
	for rows.Next() {
		var tbl, idStr, data string
		if err := rows.Scan(&tbl, &idStr, &data); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ts, ok := c.schema.Table(tbl)
		if !ok {
			continue
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("row id %q: %w", idStr, err)
		}
		row, err := unmarshalRow(ts, []byte(data))
		if err != nil {
			return nil, fmt.Errorf("row %s/%s: %w", tbl, idStr, err)
		}
		mirror[tbl][id] = row
	}
	return mirror, rows.Err()
}
