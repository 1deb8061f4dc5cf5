package frp

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/reactivego/frp/emit"
)

// delivery is one queued listener invocation, collected during commit in
// topological order and drained after the owning transaction unlocks.
type delivery struct {
	entry *listenerEntry
	value any
}

// Transaction runs fn as one logical unit of graph mutation. Any Send or
// Cell.ChangeValue call made (directly, or indirectly through a nested
// Transaction call) while fn executes is staged, not propagated, until the
// outermost Transaction returns. On success the engine topologically
// recomputes the dirty closure exactly once and delivers queued listener
// callbacks; on any error (fn's own, or one raised by the engine — an
// unclosed loop or an uncoalesced simultaneous firing) every staged change
// is discarded and no listener runs.
//
// Nested Transaction calls made while fn runs are legal: the outermost call
// is the only one that commits. A Transaction issued by a listener callback
// during this call's delivery phase is not nested: the lock is already
// released, so it runs as its own outermost transaction and commits before
// the callback returns. A concurrent call from a second
// goroutine while this Context's critical section is occupied fails fast
// with ErrContextBusy; see the package doc for the concurrency model this
// assumes.
func (c *Context) Transaction(fn func() error) error {
	if c.depth == 0 {
		if !c.txnMu.TryLock() {
			return ErrContextBusy
		}
	}
	c.depth++
	err := fn()
	c.depth--

	if c.depth > 0 {
		return err
	}

	start := time.Now()
	var span trace.Span
	if c.tracer != nil {
		_, span = c.tracer.Start(context.Background(), "transaction")
	}
	var commitErr error
	switch {
	case err != nil:
		c.discardTransaction()
		commitErr = err
	default:
		if loopErr := c.checkUnclosedLoops(); loopErr != nil {
			c.discardTransaction()
			commitErr = loopErr
		} else if propErr := c.propagate(); propErr != nil {
			c.discardTransaction()
			commitErr = propErr
		} else {
			c.txnCounter++
		}
	}

	pending := c.listenerQueue
	c.listenerQueue = nil
	deferredTopology := c.deferredTopology
	c.deferredTopology = nil
	txnID := strconv.FormatUint(uint64(c.txnCounter), 10)
	c.txnMu.Unlock()

	duration := time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordPropagation(duration)
	}

	outcome := "committed"
	if commitErr != nil {
		outcome = "aborted"
	}
	if c.metrics != nil {
		c.metrics.RecordTransaction(outcome)
	}
	c.emitter.Emit(emit.Event{
		TxnID: txnID,
		Msg:   "txn_" + outcome,
		Meta:  map[string]interface{}{"duration_ms": duration.Milliseconds()},
	})
	if span != nil {
		span.SetAttributes(
			attribute.String("reactivego.txn_id", txnID),
			attribute.String("reactivego.outcome", outcome),
		)
		if commitErr != nil {
			span.RecordError(commitErr)
			span.SetStatus(codes.Error, commitErr.Error())
		}
		span.End()
	}

	if commitErr != nil {
		return commitErr
	}

	c.deliverListeners(pending)
	deferredTopology = append(deferredTopology, c.deferredTopology...)
	c.deferredTopology = nil
	for _, mutate := range deferredTopology {
		mutate()
	}
	return nil
}

// checkUnclosedLoops fails the commit if any loop node created during this
// transaction never had Close called on it; such nodes are then dropped
// since they can never be made usable.
func (c *Context) checkUnclosedLoops() error {
	if len(c.openLoops) == 0 {
		return nil
	}
	ids := make([]NodeID, 0, len(c.openLoops))
	for id := range c.openLoops {
		ids = append(ids, id)
	}
	c.openLoops = make(map[NodeID]struct{})
	for _, id := range ids {
		_ = c.table.drop(id)
	}
	return &TransactionError{
		Message: "loop node created without a matching Close before commit",
		Code:    "LOOP_NOT_CLOSED",
		Cause:   ErrLoopNotClosed,
	}
}

// deliverListeners invokes queued callbacks strictly sequentially, in the
// topological/registration order they were enqueued during commit. A
// listener callback that panics is recovered and counted; whether delivery
// then continues or the panic is re-raised is governed by PanicPolicy
// (WithPanicPolicy), checked once the whole pass finishes so every other
// queued listener still gets a chance to run first.
func (c *Context) deliverListeners(pending []delivery) {
	c.delivering = true
	defer func() { c.delivering = false }()
	var firstPanic any
	for _, d := range pending {
		if r := c.invokeListener(d); r != nil && firstPanic == nil {
			firstPanic = r
		}
	}
	if firstPanic != nil && c.panicPolicy == PanicPolicyPropagate {
		panic(firstPanic)
	}
}

func (c *Context) invokeListener(d delivery) (recovered any) {
	var span trace.Span
	if c.tracer != nil {
		_, span = c.tracer.Start(context.Background(), "listener_dispatch")
		defer span.End()
	}
	defer func() {
		if r := recover(); r != nil {
			recovered = r
			if c.metrics != nil {
				c.metrics.RecordListenerPanic()
			}
			if span != nil {
				span.RecordError(fmt.Errorf("%v", r))
				span.SetStatus(codes.Error, "listener panic")
			}
			c.emitter.Emit(emit.Event{
				TxnID: strconv.FormatUint(uint64(c.txnCounter), 10),
				Msg:   "listener_panic",
				Meta:  map[string]interface{}{"error": fmt.Sprint(r)},
			})
		}
	}()
	if d.entry.cellFn != nil {
		d.entry.cellFn(d.value)
	} else if d.entry.streamFn != nil {
		d.entry.streamFn(d.value)
	}
	return nil
}

// deferTopologyMutation queues a graph-structure change (Listen/Unlisten)
// requested while a listener callback is running, so it applies after the
// delivery pass finishes rather than mutating the table mid-iteration.
func (c *Context) deferTopologyMutation(fn func()) {
	c.deferredTopology = append(c.deferredTopology, fn)
}
