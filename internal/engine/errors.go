package engine

import (
	"errors"
	"fmt"
)

// FatalCode categorizes conditions that terminate the batch.
type FatalCode string

const (
	// CodeUser indicates bad input: wrong arguments, a reference to a
	// nonexistent object, a duplicate creation without an override flag.
	CodeUser FatalCode = "USER_ERROR"

	// CodeSessionDead indicates the session lost the store.
	CodeSessionDead FatalCode = "SESSION_DEAD"

	// CodeSymbol indicates a symbolic name was referenced but no command
	// ever created a row for it.
	CodeSymbol FatalCode = "DANGLING_SYMBOL"

	// CodeTxn indicates the store rejected the transaction.
	CodeTxn FatalCode = "TXN_ERROR"

	// CodeTimeout indicates the retry loop ran out of time.
	CodeTimeout FatalCode = "TIMED_OUT"

	// CodeInvariant indicates the engine or a collaborator violated its
	// contract: an outcome that must never occur, or a prerequisite phase
	// that produced output.
	CodeInvariant FatalCode = "INVARIANT_VIOLATION"
)

// FatalError terminates the batch. Exactly one diagnostic line reaches the
// user for every fatal path.
type FatalError struct {
	Code    FatalCode
	Message string
	Err     error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *FatalError) Unwrap() error { return e.Err }

func fatalf(code FatalCode, format string, args ...any) *FatalError {
	return &FatalError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the fatal code from an error chain. Errors that are not
// FatalError classify as user errors.
func CodeOf(err error) FatalCode {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return CodeUser
}
