package ledger

import "errors"

var (
	// ErrFeeUnavailable marks a failed fee-data read. Retry policy belongs to
	// the caller.
	ErrFeeUnavailable = errors.New("fee data unavailable")

	// ErrConfirmationTimeout means the client-side observation window elapsed
	// before the required confirmation depth was reached. The ledger may still
	// include the transaction later; the timeout is advisory, not
	// authoritative.
	ErrConfirmationTimeout = errors.New("confirmation timed out")

	// ErrReverted means the transaction was included but its execution failed.
	ErrReverted = errors.New("transaction reverted")

	// ErrCodeNotObserved means a just-deployed address never showed bytecode
	// within the retry budget.
	ErrCodeNotObserved = errors.New("bytecode not observed")

	// ErrInsufficientFunds is raised by the pre-submission balance check.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
