package session

import "fmt"

// Outcome classifies the result of committing a transaction.
//
// Only Unchanged and Success are terminal-successful. TryAgain means the
// view the transaction was built on went stale and the whole batch must be
// retried from a fresh snapshot. Error is fatal and carries a store-provided
// message. The remaining values indicate a broken engine or collaborator
// contract and must never occur in correct operation.
type Outcome int

const (
	// OutcomeUncommitted means Commit was never completed.
	OutcomeUncommitted Outcome = iota

	// OutcomeIncomplete means the commit is still in flight.
	OutcomeIncomplete

	// OutcomeAborted means the transaction was explicitly aborted.
	OutcomeAborted

	// OutcomeUnchanged means the transaction had no effect on the store.
	OutcomeUnchanged

	// OutcomeSuccess means the transaction committed.
	OutcomeSuccess

	// OutcomeTryAgain means the snapshot went stale before commit.
	OutcomeTryAgain

	// OutcomeError means the store rejected the transaction.
	OutcomeError

	// OutcomeNotLocked means a required store lock was not held.
	OutcomeNotLocked
)

// String returns the lowercase wire-style name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeUncommitted:
		return "uncommitted"
	case OutcomeIncomplete:
		return "incomplete"
	case OutcomeAborted:
		return "aborted"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeSuccess:
		return "success"
	case OutcomeTryAgain:
		return "try again"
	case OutcomeError:
		return "error"
	case OutcomeNotLocked:
		return "not locked"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Terminal reports whether the outcome ends the retry loop successfully.
func (o Outcome) Terminal() bool {
	return o == OutcomeUnchanged || o == OutcomeSuccess
}
