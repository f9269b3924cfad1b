// Package engine executes a command batch against the mesh database as a
// single atomic transaction under optimistic concurrency control.
//
// The flow is: run every command's prerequisite phase once, before any
// transaction exists; then drive the session until an attempt succeeds.
// Each attempt opens one transaction, runs every mutate phase in order
// against a fresh symbol table, validates the symbol table, commits, and
// classifies the outcome. A stale snapshot (reported by the store or
// requested by a command) discards the attempt and waits for the session's
// state version to move before trying again: retrying before the view has
// advanced cannot succeed, because the same conflicting write would still
// be visible.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/roach88/meshctl/internal/ctl"
	"github.com/roach88/meshctl/internal/session"
)

// Engine drives one batch to completion.
type Engine struct {
	sess       session.Session
	dryRun     bool
	invocation string
	warnf      func(format string, args ...any)
	logger     *slog.Logger
	txnNotify  func(session.Txn)
}

// Option configures an Engine.
type Option func(*Engine)

// WithDryRun marks every transaction so the store reports what would
// change without persisting it.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) { e.dryRun = dryRun }
}

// WithInvocation attaches the escaped original command line as a
// transaction comment for audit history.
func WithInvocation(args string) Option {
	return func(e *Engine) { e.invocation = args }
}

// WithWarnf overrides where non-fatal warnings go. The default writes to
// stderr.
func WithWarnf(warnf func(format string, args ...any)) Option {
	return func(e *Engine) { e.warnf = warnf }
}

// WithLogger overrides the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTxnNotify registers an observer told about the currently open
// transaction (nil when none). The process lifecycle uses this to abort an
// in-flight transaction on forced exit; ordinary command logic never sees
// it.
func WithTxnNotify(fn func(session.Txn)) Option {
	return func(e *Engine) { e.txnNotify = fn }
}

// New creates an engine over the session.
func New(sess session.Session, opts ...Option) *Engine {
	e := &Engine{
		sess:   sess,
		warnf:  func(format string, args ...any) { fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...) },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the batch to a terminal outcome. On return with nil error
// every command has committed (or the dry run completed) and its output is
// ready for dispatch. Any non-nil error is fatal to the whole batch.
func (e *Engine) Run(ctx context.Context, cmds []*ctl.Command) error {
	// There is no point in attempting to commit more than once for any
	// given state version: if the attempt fails the database changed, and
	// an up-to-date view is needed before the transaction can succeed.
	lastSeen := e.sess.CurrentVersion()

	e.sess.Advance(ctx)
	if !e.sess.IsAlive() {
		return &FatalError{Code: CodeSessionDead, Message: "database connection failed", Err: e.sess.LastError()}
	}
	if err := e.runPrerequisites(cmds); err != nil {
		return err
	}

	for {
		e.sess.Advance(ctx)
		if !e.sess.IsAlive() {
			return &FatalError{Code: CodeSessionDead, Message: "database connection failed", Err: e.sess.LastError()}
		}

		if v := e.sess.CurrentVersion(); v != lastSeen {
			lastSeen = v
			e.logger.Debug("attempting batch", "version", v, "commands", len(cmds))
			done, err := e.attempt(ctx, cmds)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}

		if e.sess.CurrentVersion() == lastSeen {
			if err := e.sess.Wait(ctx); err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return fatalf(CodeTimeout, "timed out waiting for the database to change")
				}
				return err
			}
		}
	}
}

// runPrerequisites executes each command's read-only phase with a context
// that has no transaction and no symbol table. A prerequisite phase that
// produces output or requests a table has broken the phase contract.
func (e *Engine) runPrerequisites(cmds []*ctl.Command) error {
	for _, c := range cmds {
		if c.Syntax.Prerequisites == nil {
			continue
		}
		c.Reset()
		cctx := &ctl.Context{Session: e.sess, Cmd: c}
		if err := c.Syntax.Prerequisites(cctx); err != nil {
			return err
		}
		if c.Output.Len() != 0 || c.Table != nil {
			return fatalf(CodeInvariant, "%s: prerequisite phase produced output", c.Syntax.Name)
		}
	}
	return nil
}

// attempt executes the full batch once. It returns done=true when the
// attempt committed (or was an effect-free success) and done=false when
// the batch must be retried against a newer snapshot.
func (e *Engine) attempt(ctx context.Context, cmds []*ctl.Command) (done bool, err error) {
	txn := e.sess.Begin(e.dryRun)
	if e.txnNotify != nil {
		e.txnNotify(txn)
		defer e.txnNotify(nil)
	}
	// A read-only batch writes nothing worth auditing.
	if e.invocation != "" && ctl.MightWrite(cmds) {
		txn.AddComment("meshctl: " + e.invocation)
	}

	// Mutable state never survives a retry: fresh symbol table, empty
	// output buffers. The parsed argument and option state is reused
	// verbatim.
	symtab := session.NewSymbolTable(sessionIDs{e.sess})
	for _, c := range cmds {
		c.Reset()
	}

	cctx := &ctl.Context{Session: e.sess, Txn: txn, Symtab: symtab}
	for _, c := range cmds {
		cctx.Cmd = c
		if c.Syntax.Run != nil {
			if err := c.Syntax.Run(cctx); err != nil {
				txn.Abort()
				return false, err
			}
		}
		if cctx.TryAgain {
			e.logger.Debug("command requested retry", "command", c.Syntax.Name)
			cctx.TryAgain = false
			txn.Abort()
			return false, nil
		}
	}

	if err := e.checkSymbols(symtab); err != nil {
		txn.Abort()
		return false, err
	}

	outcome := txn.Commit(ctx)
	e.logger.Debug("transaction finished", "outcome", outcome.String())
	if outcome.Terminal() {
		for _, c := range cmds {
			if c.Syntax.Postprocess == nil {
				continue
			}
			cctx := &ctl.Context{Session: e.sess, Txn: txn, Symtab: symtab, Cmd: c}
			if err := c.Syntax.Postprocess(cctx); err != nil {
				return false, err
			}
		}
		return true, nil
	}
	switch outcome {
	case session.OutcomeTryAgain:
		return false, nil

	case session.OutcomeError:
		return false, fatalf(CodeTxn, "transaction error: %s", txn.ErrorMessage())

	case session.OutcomeAborted:
		// Cannot happen: the engine never commits after aborting.
		return false, fatalf(CodeInvariant, "transaction aborted")

	case session.OutcomeNotLocked:
		// Cannot happen: the engine never takes a store lock.
		return false, fatalf(CodeInvariant, "database not locked")

	default:
		return false, fatalf(CodeInvariant, "unexpected transaction outcome %q", outcome)
	}
}

// checkSymbols validates every symbolic name mentioned during the attempt.
// A name that was referenced but never created is fatal. A created row
// that nothing references strongly will vanish under the store's
// reachability collection, which is worth a warning but not an error:
// downstream systems may tolerate orphaned rows.
func (e *Engine) checkSymbols(symtab *session.SymbolTable) error {
	var fatal error
	symtab.ForEach(func(name string, sym *session.Symbol) {
		if fatal != nil {
			return
		}
		if !sym.Created {
			fatal = fatalf(CodeSymbol,
				"row id %q is referenced but never created (e.g. with \"-- --id=%s create ...\")", name, name)
			return
		}
		if sym.StrongRef {
			return
		}
		if sym.WeakRef {
			e.warnf("row id %q was created but only a weak reference to it was inserted, so it will not actually appear in the database", name)
		} else {
			e.warnf("row id %q was created but no reference to it was inserted, so it will not actually appear in the database", name)
		}
	})
	return fatal
}

// sessionIDs adapts a session to the symbol table's ID generator.
type sessionIDs struct {
	sess session.Session
}

func (g sessionIDs) NewID() uuid.UUID { return g.sess.RowID() }
