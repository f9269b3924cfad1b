// Package session provides access to the replicated mesh database.
//
// A Session keeps a local read-only mirror of the remote store and exposes
// a monotonically increasing state version. All mutation goes through a
// Txn: operations are queued against the snapshot the transaction was
// opened on and take effect only at Commit, which classifies its result
// as an Outcome. A commit built on a stale snapshot reports OutcomeTryAgain
// and the caller is expected to re-attempt after the mirror advances.
//
// Sessions are single-threaded: the engine is the only caller and never
// uses one from more than one goroutine.
package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/roach88/meshctl/internal/schema"
)

// Session is the database session collaborator the engine drives.
type Session interface {
	// Schema returns the table schema of the store.
	Schema() *schema.Schema

	// CurrentVersion returns the state version of the local mirror.
	// A fresh session reports 0 until the first Advance loads a snapshot.
	CurrentVersion() uint64

	// Advance pumps pending I/O without blocking. When the remote store
	// has moved past the mirrored version the mirror is reloaded and
	// CurrentVersion changes. Failures mark the session dead rather than
	// returning an error; check IsAlive after every pump.
	Advance(ctx context.Context)

	// IsAlive reports whether the session can still reach the store.
	IsAlive() bool

	// LastError returns the error that killed the session, if any.
	LastError() error

	// Wait blocks until the store's version differs from the mirrored one
	// or ctx is done. Returns the context error on cancellation.
	Wait(ctx context.Context) error

	// Begin opens a transaction against the current mirror snapshot.
	// With dryRun set, Commit reports what would have happened without
	// persisting anything.
	Begin(dryRun bool) Txn

	// RowID produces an identifier for a new row.
	RowID() uuid.UUID

	// Rows returns the mirrored rows of a table. The returned map is the
	// mirror itself: callers must treat it as read-only.
	Rows(table string) map[uuid.UUID]Row

	// Row returns one mirrored row.
	Row(table string, id uuid.UUID) (Row, bool)
}

// Txn is a pending transaction. Operations are queued in call order and
// applied atomically at Commit.
type Txn interface {
	// AddComment attaches a human-readable note recorded in the store's
	// transaction history at commit.
	AddComment(text string)

	// Insert queues creation of a row.
	Insert(table string, id uuid.UUID, row Row)

	// Update queues a single-column change.
	Update(table string, id uuid.UUID, column string, value any)

	// Delete queues removal of a row.
	Delete(table string, id uuid.UUID)

	// Rows returns the table's rows as the queued operations would leave
	// them: the session mirror overlaid with this transaction. Later
	// commands of a batch see rows created by earlier ones through this
	// view.
	Rows(table string) map[uuid.UUID]Row

	// Row returns one row from the overlaid view.
	Row(table string, id uuid.UUID) (Row, bool)

	// Commit applies the queued operations and classifies the result.
	Commit(ctx context.Context) Outcome

	// Abort discards the transaction.
	Abort()

	// ErrorMessage returns the store-provided failure text after
	// OutcomeError, and "" otherwise.
	ErrorMessage() string
}
