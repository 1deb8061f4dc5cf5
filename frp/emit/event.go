package emit

// Event represents an observability event emitted during transaction
// propagation.
//
// A Context emits these events:
//   - "txn_committed" / "txn_aborted", once per outermost transaction
//   - "listener_panic", when a listener callback panics during delivery
//
// Events are emitted to an Emitter, which can log them, forward them to
// OpenTelemetry, or discard them entirely.
type Event struct {
	// TxnID identifies the outermost transaction that emitted this event,
	// formatted as a decimal transaction number. The number advances only
	// on commit, so a txn_aborted event carries the number of the last
	// committed transaction.
	TxnID string

	// NodeID identifies which graph node emitted this event. The Context
	// leaves it empty in every event it emits.
	NodeID string

	// Msg is a short machine-readable event name, e.g. "txn_committed",
	// "txn_aborted", "listener_panic".
	Msg string

	// Meta carries event-specific structured data. Keys set by the Context:
	//   - "duration_ms": commit duration in milliseconds (txn events)
	//   - "error": the recovered panic value (listener_panic)
	Meta map[string]interface{}
}
