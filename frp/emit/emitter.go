// Package emit provides event emission and observability for FRP
// propagation, mirroring the pluggable-backend pattern used throughout the
// rest of this module: logging, OpenTelemetry, or a null sink, selected by
// the caller via Context's functional options.
package emit

import "context"

// Emitter receives observability events from a Context's transactions.
//
// Implementations should be non-blocking and resilient: Emit must not
// panic, and a failing backend must not abort propagation.
type Emitter interface {
	// Emit sends a single event to the configured backend.
	Emit(event Event)

	// EmitBatch sends multiple events in one operation, preserving order.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until all buffered events have been sent or ctx expires.
	Flush(ctx context.Context) error
}
