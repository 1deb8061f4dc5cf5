package frp

import "errors"

// Sentinel errors for conditions that are a caller contract violation or a
// structural graph failure. Callers are expected to compare with errors.Is.
var (
	// ErrHasDependents is returned by the node table's drop when the node still has
	// downstream readers; the caller must unlink or drop those first.
	ErrHasDependents = errors.New("frp: node has dependents")

	// ErrInvalidNode is returned when an operation targets a node id that has
	// already been collected from the node table.
	ErrInvalidNode = errors.New("frp: invalid or collected node")

	// ErrContextBusy is returned when a second goroutine attempts to enter
	// Context.Transaction while one is already running on the same Context.
	// The engine is single-threaded cooperative (see package doc); this is
	// the caller's responsibility to avoid.
	ErrContextBusy = errors.New("frp: context is busy in another transaction")

	// ErrLoopNotClosed is returned when a transaction that created a loop
	// node (NewCellLoop / NewStreamLoop) commits without a matching Close
	// call having attached the loop's definition.
	ErrLoopNotClosed = errors.New("frp: loop node was not closed before transaction commit")

	// ErrNoCoalescerForSimultaneous is returned when two or more firings land
	// on the same stream sink in one transaction and the sink was created
	// without a coalescer. The whole outermost transaction is rolled back:
	// no pending cell write is committed and no listener fires.
	ErrNoCoalescerForSimultaneous = errors.New("frp: multiple simultaneous firings without a coalescer")

	// ErrAlreadyClosed is returned by Close when a loop node's definition has
	// already been attached.
	ErrAlreadyClosed = errors.New("frp: loop already closed")
)

// TransactionError is a structured error returned when a transaction aborts.
// It carries a machine-readable Code alongside the human-readable Message,
// mirroring the engine's convention of pairing sentinel errors (for
// errors.Is checks) with a richer wrapped type for diagnostics.
type TransactionError struct {
	// Message is the human-readable description of the failure.
	Message string

	// Code is a short machine-readable identifier, e.g. "NO_COALESCER",
	// "LOOP_NOT_CLOSED".
	Code string

	// Cause is the underlying sentinel error this wraps, if any.
	Cause error
}

// Error implements the error interface.
func (e *TransactionError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// Unwrap exposes Cause so errors.Is/errors.As can match sentinel errors.
func (e *TransactionError) Unwrap() error {
	return e.Cause
}
