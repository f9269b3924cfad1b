package cli

import (
	"sync"

	"github.com/roach88/meshctl/internal/session"
)

// lifecycle tracks the transaction currently in flight so a fatal exit can
// abort it before the process dies. The engine reports transactions through
// its notify hook; only one is ever open at a time.
type lifecycle struct {
	mu  sync.Mutex
	txn session.Txn
}

func (l *lifecycle) setTxn(txn session.Txn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txn = txn
}

// abort rolls back whatever transaction is still open. Safe to call when
// none is.
func (l *lifecycle) abort() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.txn != nil {
		l.txn.Abort()
		l.txn = nil
	}
}
