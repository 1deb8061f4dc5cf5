package frp

import (
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/reactivego/frp/emit"
)

// TxnID identifies one outermost transaction's commit, scoped to a single
// Context. It is assigned sequentially starting at 1 and is primarily useful
// for correlating emitted events and metrics with a particular propagation
// pass.
type TxnID uint64

// Context is the FRP runtime: the node table, the transaction manager, and
// the optional observability hooks (Emitter, Metrics) all live here. A zero
// Context is not usable; construct one with New.
//
// A Context is not safe for concurrent mutation from multiple goroutines —
// see the package doc and §5 of the design this implements. Context.ID is a
// random identifier useful for tagging emitted events when a process hosts
// more than one Context.
type Context struct {
	table *nodeTable

	// txnMu serializes the critical section of outermost transactions
	// (dirty-set accumulation through propagation). It is released before
	// listener delivery so that a Send/ChangeValue issued from inside a
	// listener callback can open its own, independent transaction instead
	// of deadlocking against this one (Design Notes §9, open question 3).
	txnMu sync.Mutex
	depth int

	dirty      map[NodeID]struct{}
	openLoops  map[NodeID]struct{}
	switchNodes []NodeID

	delivering       bool
	listenerQueue    []delivery
	deferredTopology []func()

	txnCounter TxnID

	// ID uniquely tags this Context instance; the engine itself does not add
	// it to emitted events, trace spans or metric labels. It plays the role the
	// teacher's per-run "runID" plays, except it is assigned once per
	// Context rather than once per execution, since a Context may run many
	// transactions over its lifetime.
	ID uuid.UUID

	emitter     emit.Emitter
	metrics     *Metrics
	tracer      trace.Tracer
	panicPolicy PanicPolicy
}

// New constructs a Context. Functional options configure observability;
// see WithEmitter, WithMetrics.
func New(opts ...Option) *Context {
	cfg := &contextConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	c := &Context{
		table:     newNodeTable(),
		dirty:     make(map[NodeID]struct{}),
		openLoops: make(map[NodeID]struct{}),
		ID:        uuid.New(),
		emitter:     cfg.emitter,
		metrics:     cfg.metrics,
		tracer:      cfg.tracer,
		panicPolicy: cfg.panicPolicy,
	}
	if c.emitter == nil {
		c.emitter = emit.NewNullEmitter()
	}
	return c
}

func (c *Context) mustNode(id NodeID) *node {
	n, ok := c.table.lookup(id)
	if !ok {
		panic("frp: use of a node id that was already collected")
	}
	return n
}

func (c *Context) markDirty(id NodeID) {
	c.dirty[id] = struct{}{}
}

// inTransaction reports whether a transaction body is currently executing on
// this Context (depth > 0). It is read only from within code that already
// runs on the owning goroutine's call stack (guarded implicitly by the
// single-writer contract), matching the cooperative single-threaded model.
func (c *Context) inTransaction() bool {
	return c.depth > 0
}

// withTransaction executes fn as part of the currently open transaction if
// one exists, or opens an implicit one otherwise. This is how Send and
// ChangeValue implement "implicit transaction if none is open" (spec §6).
func (c *Context) withTransaction(fn func() error) error {
	if c.inTransaction() {
		return fn()
	}
	return c.Transaction(fn)
}

// discardTransaction clears all staged pending cell writes and stream
// firings for nodes touched by the aborting transaction, without committing
// them to current state and without enqueueing any listener delivery —
// exactly the rollback spec.md §7 requires for NoCoalescerForSimultaneous,
// LoopNotClosed, and any error returned by the transaction body itself.
func (c *Context) discardTransaction() {
	for id := range c.dirty {
		n, ok := c.table.lookup(id)
		if !ok {
			continue
		}
		n.hasPending = false
		n.pending = nil
		n.hasFired = false
		n.firing = nil
	}
	c.dirty = make(map[NodeID]struct{})
	c.listenerQueue = nil
}
