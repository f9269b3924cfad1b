package ctl

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/meshctl/internal/session"
	"github.com/roach88/meshctl/internal/table"
)

// Context is the single mutable object threaded through every command
// phase. It is exclusively owned by the phase currently executing.
//
// During the prerequisite phase Txn and Symtab are nil: no transaction
// exists yet and symbols may not be minted. During the mutate phase all
// fields are live. The postprocess phase sees the committed transaction
// read-only.
type Context struct {
	Session session.Session
	Txn     session.Txn
	Symtab  *session.SymbolTable
	Cmd     *Command

	// TryAgain signals that the state this command depends on is stale
	// and the whole batch must be retried from a fresh snapshot. Checked
	// and cleared by the engine after each command.
	TryAgain bool
}

// Rows reads a table through the open transaction when one exists, so a
// command observes the writes of the commands that ran before it in the
// batch. Outside a transaction it reads the session mirror directly.
func (c *Context) Rows(table string) map[uuid.UUID]session.Row {
	if c.Txn != nil {
		return c.Txn.Rows(table)
	}
	return c.Session.Rows(table)
}

// Row reads one row through the same view as Rows.
func (c *Context) Row(table string, id uuid.UUID) (session.Row, bool) {
	if c.Txn != nil {
		return c.Txn.Row(table, id)
	}
	return c.Session.Row(table, id)
}

// Printf appends to the current command's output buffer.
func (c *Context) Printf(format string, args ...any) {
	fmt.Fprintf(&c.Cmd.Output, format, args...)
}

// SetTable attaches a structured result to the current command. Mutually
// exclusive with text output by convention; the dispatcher prefers the
// table when both exist.
func (c *Context) SetTable(t *table.Table) {
	c.Cmd.Table = t
}
