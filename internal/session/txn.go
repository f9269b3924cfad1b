package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/meshctl/internal/schema"
)

type opKind int

const (
	opInsert opKind = iota
	opUpdate
	opDelete
)

type op struct {
	kind   opKind
	table  string
	id     uuid.UUID
	row    Row    // opInsert
	column string // opUpdate
	value  any    // opUpdate
}

type txnState int

const (
	txnPending txnState = iota
	txnCommitted
	txnAborted
)

// sqliteTxn queues operations against the snapshot version the transaction
// was opened on and applies them atomically at Commit. A concurrent writer
// moving the store past that version turns the commit into OutcomeTryAgain.
type sqliteTxn struct {
	conn    *Conn
	dryRun  bool
	base    uint64
	comment string
	ops     []op
	state   txnState
	errMsg  string
}

func (t *sqliteTxn) AddComment(text string) {
	if t.comment != "" {
		t.comment += "\n"
	}
	t.comment += text
}

func (t *sqliteTxn) Insert(table string, id uuid.UUID, row Row) {
	t.ops = append(t.ops, op{kind: opInsert, table: table, id: id, row: row.Clone()})
}

func (t *sqliteTxn) Update(table string, id uuid.UUID, column string, value any) {
	t.ops = append(t.ops, op{kind: opUpdate, table: table, id: id, column: column, value: value})
}

func (t *sqliteTxn) Delete(table string, id uuid.UUID) {
	t.ops = append(t.ops, op{kind: opDelete, table: table, id: id})
}

// Rows overlays the queued operations on the session mirror so reads
// within a batch observe earlier writes of the same batch.
func (t *sqliteTxn) Rows(table string) map[uuid.UUID]Row {
	base := t.conn.Rows(table)
	out := make(map[uuid.UUID]Row, len(base))
	for id, row := range base {
		out[id] = row.Clone()
	}
	for _, o := range t.ops {
		if o.table != table {
			continue
		}
		switch o.kind {
		case opInsert:
			out[o.id] = o.row.Clone()
		case opUpdate:
			row, ok := out[o.id]
			if !ok {
				continue
			}
			if o.value == nil {
				delete(row, o.column)
			} else {
				row[o.column] = o.value
			}
		case opDelete:
			delete(out, o.id)
		}
	}
	return out
}

func (t *sqliteTxn) Row(table string, id uuid.UUID) (Row, bool) {
	row, ok := t.Rows(table)[id]
	return row, ok
}

func (t *sqliteTxn) Abort() {
	t.state = txnAborted
	t.ops = nil
}

func (t *sqliteTxn) ErrorMessage() string { return t.errMsg }

// Commit implements Txn.
func (t *sqliteTxn) Commit(ctx context.Context) Outcome {
	switch t.state {
	case txnAborted:
		return OutcomeAborted
	case txnCommitted:
		return OutcomeUncommitted
	}
	if len(t.ops) == 0 {
		t.state = txnCommitted
		return OutcomeUnchanged
	}

	outcome, err := t.commit(ctx)
	if err != nil {
		t.errMsg = err.Error()
		return OutcomeError
	}
	t.state = txnCommitted
	return outcome
}

func (t *sqliteTxn) commit(ctx context.Context) (Outcome, error) {
	tx, err := t.conn.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var version uint64
	if err := tx.QueryRowContext(ctx, "SELECT version FROM mesh_meta WHERE id = 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("read store version: %w", err)
	}
	if version != t.base {
		return OutcomeTryAgain, nil
	}

	before, err := loadStaged(ctx, tx, t.conn.schema)
	if err != nil {
		return 0, err
	}
	staged := cloneStaged(before)
	for _, o := range t.ops {
		if err := applyOp(staged, o); err != nil {
			return 0, err
		}
	}
	collectGarbage(t.conn.schema, staged)

	changed, err := writeDiff(ctx, tx, before, staged)
	if err != nil {
		return 0, err
	}
	if !changed {
		return OutcomeUnchanged, nil
	}
	if t.dryRun {
		// Rollback via the deferred handler; the caller still sees what
		// would have happened.
		return OutcomeSuccess, nil
	}

	next := version + 1
	if _, err := tx.ExecContext(ctx, "UPDATE mesh_meta SET version = ? WHERE id = 1", next); err != nil {
		return 0, fmt.Errorf("bump version: %w", err)
	}
	if t.comment != "" {
		_, err := tx.ExecContext(ctx, "INSERT INTO mesh_log (version, comment, at) VALUES (?, ?, ?)",
			next, t.comment, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return 0, fmt.Errorf("record comment: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return OutcomeSuccess, nil
}

func loadStaged(ctx context.Context, tx *sql.Tx, sch *schema.Schema) (map[string]map[uuid.UUID]Row, error) {
	rows, err := tx.QueryContext(ctx, "SELECT tbl, id, data FROM mesh_rows")
	if err != nil {
		return nil, fmt.Errorf("load rows: %w", err)
	}
	defer rows.Close()

	staged := make(map[string]map[uuid.UUID]Row, len(sch.Tables))
	for name := range sch.Tables {
		staged[name] = make(map[uuid.UUID]Row)
	}
	for rows.Next() {
		var tbl, idStr, data string
		if err := rows.Scan(&tbl, &idStr, &data); err != nil {
			return nil, err
		}
		ts, ok := sch.Table(tbl)
		if !ok {
			continue
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, err
		}
		row, err := unmarshalRow(ts, []byte(data))
		if err != nil {
			return nil, fmt.Errorf("row %s/%s: %w", tbl, idStr, err)
		}
		staged[tbl][id] = row
	}
	return staged, rows.Err()
}

func cloneStaged(src map[string]map[uuid.UUID]Row) map[string]map[uuid.UUID]Row {
	out := make(map[string]map[uuid.UUID]Row, len(src))
	for tbl, rows := range src {
		m := make(map[uuid.UUID]Row, len(rows))
		for id, row := range rows {
			m[id] = row.Clone()
		}
		out[tbl] = m
	}
	return out
}

func applyOp(staged map[string]map[uuid.UUID]Row, o op) error {
	rows, ok := staged[o.table]
	if !ok {
		return fmt.Errorf("no table %q", o.table)
	}
	switch o.kind {
	case opInsert:
		if _, exists := rows[o.id]; exists {
			return fmt.Errorf("duplicate row %s in table %s", o.id, o.table)
		}
		rows[o.id] = o.row.Clone()
	case opUpdate:
		row, exists := rows[o.id]
		if !exists {
			return fmt.Errorf("update of missing row %s in table %s", o.id, o.table)
		}
		if o.value == nil {
			delete(row, o.column)
		} else {
			row[o.column] = o.value
		}
	case opDelete:
		if _, exists := rows[o.id]; !exists {
			return fmt.Errorf("delete of missing row %s in table %s", o.id, o.table)
		}
		delete(rows, o.id)
	}
	return nil
}

// collectGarbage removes rows in non-root tables that no strong reference
// from a reachable row can reach, then prunes dangling references out of
// the surviving rows. This mirrors the remote store's reachability rule:
// a created row that nothing strongly references simply never appears.
func collectGarbage(sch *schema.Schema, staged map[string]map[uuid.UUID]Row) {
	type key struct {
		table string
		id    uuid.UUID
	}
	reachable := make(map[key]bool)
	var frontier []key
	for tblName, rows := range staged {
		ts, _ := sch.Table(tblName)
		if ts == nil || !ts.Root {
			continue
		}
		for id := range rows {
			k := key{tblName, id}
			reachable[k] = true
			frontier = append(frontier, k)
		}
	}
	for len(frontier) > 0 {
		k := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		ts, _ := sch.Table(k.table)
		row := staged[k.table][k.id]
		for colName, col := range ts.Columns {
			if col.Strength != schema.RefStrong {
				continue
			}
			for _, ref := range row.Refs(colName) {
				if _, exists := staged[col.Ref][ref]; !exists {
					continue
				}
				rk := key{col.Ref, ref}
				if !reachable[rk] {
					reachable[rk] = true
					frontier = append(frontier, rk)
				}
			}
		}
	}

	for tblName, rows := range staged {
		ts, _ := sch.Table(tblName)
		if ts.Root {
			continue
		}
		for id := range rows {
			if !reachable[key{tblName, id}] {
				delete(rows, id)
			}
		}
	}

	// Drop references to rows that no longer exist. Weak references go
	// stale through garbage collection; strong references can only dangle
	// when they point at rows that were never created.
	for tblName, rows := range staged {
		ts, _ := sch.Table(tblName)
		for _, row := range rows {
			for colName, col := range ts.Columns {
				if !col.IsRef() {
					continue
				}
				refs := row.Refs(colName)
				if len(refs) == 0 {
					continue
				}
				kept := refs[:0]
				for _, ref := range refs {
					if _, exists := staged[col.Ref][ref]; exists {
						kept = append(kept, ref)
					}
				}
				if len(kept) == 0 {
					delete(row, colName)
				} else {
					row[colName] = kept
				}
			}
		}
	}
}

// writeDiff persists the difference between before and staged. Returns
// whether anything actually changed.
func writeDiff(ctx context.Context, tx *sql.Tx, before, staged map[string]map[uuid.UUID]Row) (bool, error) {
	changed := false
	for tblName, rows := range before {
		for id := range rows {
			if _, kept := staged[tblName][id]; !kept {
				if _, err := tx.ExecContext(ctx, "DELETE FROM mesh_rows WHERE tbl = ? AND id = ?", tblName, id.String()); err != nil {
					return false, fmt.Errorf("delete row: %w", err)
				}
				changed = true
			}
		}
	}
	for tblName, rows := range staged {
		for id, row := range rows {
			old, existed := before[tblName][id]
			if existed && old.Equal(row) {
				continue
			}
			data, err := marshalRow(row)
			if err != nil {
				return false, fmt.Errorf("encode row: %w", err)
			}
			_, err = tx.ExecContext(ctx,
				"INSERT INTO mesh_rows (tbl, id, data) VALUES (?, ?, ?) ON CONFLICT (tbl, id) DO UPDATE SET data = excluded.data",
				tblName, id.String(), string(data))
			if err != nil {
				return false, fmt.Errorf("write row: %w", err)
			}
			changed = true
		}
	}
	return changed, nil
}
