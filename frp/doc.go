// Package frp implements a transactional functional-reactive propagation
// engine: a dependency graph of cells (continuous, always-valued signals) and
// streams (discrete event sequences) that is updated glitch-free,
// deterministically, and atomically inside transactions.
//
// # Model
//
// Application code builds a graph of nodes by combining sinks (external
// input points, created with NewCellSink / NewStreamSink) with pure
// combinators (MapCell, Hold, Merge, Snapshot, ...). Nothing propagates until
// a Transaction runs: Send and Cell.ChangeValue stage input, and on the
// outermost Transaction's commit the engine topologically walks the dirty
// closure of the graph, recomputes each affected node exactly once, and only
// then delivers queued listener callbacks. No listener ever observes a
// partially propagated ("glitch") state.
//
// # Cells vs. streams
//
// A Cell[T] always has a current value, readable with Sample even outside a
// transaction. A Stream[T] has no value between firings; it only carries
// data during the transaction in which it fires. Hold turns a stream into a
// cell; Updates/Value turn a cell into a stream.
//
// # Concurrency
//
// A Context is not safe for concurrent mutation from multiple goroutines.
// It expects one logical mutator at a time: a second, concurrent
// Context.Transaction call fails with ErrContextBusy. Recompute functions
// are synchronous and must not block; listener callbacks may do I/O but are
// invoked strictly sequentially, never concurrently with propagation.
package frp
