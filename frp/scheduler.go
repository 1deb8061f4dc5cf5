package frp

import (
	"container/heap"
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// propagate runs the single topological pass that advances every node
// touched by the current transaction's dirty set. It is called once, by
// Transaction, only when the transaction body returned no error and no
// loop node was left unclosed.
func (c *Context) propagate() error {
	c.rewireSwitches()

	if len(c.dirty) == 0 {
		return nil
	}

	order, err := c.topoSort()
	if err != nil {
		return err
	}

	if c.metrics != nil {
		c.metrics.RecordDirtySetSize(len(order))
	}

	for _, id := range order {
		n, ok := c.table.lookup(id)
		if !ok || n.recompute == nil {
			continue
		}
		value, changed := n.recompute(c, n)
		if !changed {
			continue
		}
		if n.kind.isCell() {
			n.pending = value
			n.hasPending = true
			continue
		}
		if n.hasFired {
			if n.coalesce == nil {
				return &TransactionError{
					Message: "two firings landed on the same stream in one transaction with no coalescer",
					Code:    "NO_COALESCER",
					Cause:   ErrNoCoalescerForSimultaneous,
				}
			}
			n.firing = n.coalesce(n.firing, value)
		} else {
			n.firing = value
			n.hasFired = true
		}
	}

	// Commit pass, in topological order so listener queueing happens in the
	// order spec.md §4.2 requires: transaction-commit order overall, and
	// topological order of the emitting nodes within one transaction.
	for _, id := range order {
		n, ok := c.table.lookup(id)
		if !ok {
			continue
		}
		if n.kind.isCell() {
			if n.hasPending {
				n.value = n.pending
				c.enqueueCellListeners(n)
			}
		} else if n.hasFired {
			c.enqueueStreamListeners(n)
		}
	}

	for _, id := range order {
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
	if c.metrics != nil {
		c.metrics.SetNodeCount(c.liveNodeCount())
	}
	return nil
}

func (c *Context) liveNodeCount() int {
	count := 0
	for _, n := range c.table.nodes {
		if n != nil {
			count++
		}
	}
	return count
}

// enqueueCellListeners appends one delivery per registered listener on a
// cell that just committed a new value, in ascending (registration) order.
func (c *Context) enqueueCellListeners(n *node) {
	c.enqueueListeners(n, n.value)
}

func (c *Context) enqueueStreamListeners(n *node) {
	c.enqueueListeners(n, n.firing)
}

func (c *Context) enqueueListeners(n *node, value any) {
	if len(n.listeners) == 0 {
		return
	}
	ids := make([]int, 0, len(n.listeners))
	for id := range n.listeners {
		ids = append(ids, id)
	}
	// Simple ascending sort; listener counts per node are small.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	for _, id := range ids {
		c.listenerQueue = append(c.listenerQueue, delivery{entry: n.listeners[id], value: value})
	}
}

// newValue returns the "post-update" value a node offers to normal
// (ordering-significant) downstream readers this transaction: its freshly
// computed pending cell value or this-transaction firing if one exists,
// else its last committed value. Combinators that need the glitch-free,
// same-transaction value (map, lift, apply, hold, merge, switch selection)
// read through this accessor.
func (c *Context) newValue(id NodeID) (any, bool) {
	n, ok := c.table.lookup(id)
	if !ok {
		return nil, false
	}
	if n.kind.isCell() {
		if n.hasPending {
			return n.pending, true
		}
		return n.value, true
	}
	if n.hasFired {
		return n.firing, true
	}
	return nil, false
}

// oldValue returns a cell's last-committed value, ignoring any pending
// write staged this transaction. snapshot and gate read their *sampled*
// cell argument through this accessor: this is the "hold-delay" property
// (spec.md §4.4) that lets a loop's defining expression snapshot the loop
// cell without creating a scheduling cycle — the read never depends on
// whether the sampled cell has been visited yet this pass.
func (c *Context) oldValue(id NodeID) any {
	n, ok := c.table.lookup(id)
	if !ok {
		return nil
	}
	return n.value
}

// topoSort expands the dirty set to its transitive downstream closure
// (using only ordering-significant edges — see node.downstream) and
// returns a deterministic topological order via Kahn's algorithm, breaking
// ties by ascending NodeID.
func (c *Context) topoSort() ([]NodeID, error) {
	S := make(map[NodeID]struct{}, len(c.dirty)*2)
	frontier := make([]NodeID, 0, len(c.dirty))
	for id := range c.dirty {
		S[id] = struct{}{}
		frontier = append(frontier, id)
	}
	for len(frontier) > 0 {
		id := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		n, ok := c.table.lookup(id)
		if !ok {
			continue
		}
		for dst := range n.downstream {
			if _, seen := S[dst]; !seen {
				S[dst] = struct{}{}
				frontier = append(frontier, dst)
			}
		}
	}

	indeg := make(map[NodeID]int, len(S))
	for id := range S {
		indeg[id] = 0
	}
	for id := range S {
		n, _ := c.table.lookup(id)
		for dst := range n.downstream {
			if _, ok := S[dst]; ok {
				indeg[dst]++
			}
		}
	}

	h := &idHeap{}
	for id := range S {
		if indeg[id] == 0 {
			heap.Push(h, id)
		}
	}

	order := make([]NodeID, 0, len(S))
	for h.Len() > 0 {
		id := heap.Pop(h).(NodeID)
		order = append(order, id)
		n, ok := c.table.lookup(id)
		if !ok {
			continue
		}
		for dst := range n.downstream {
			if _, inS := S[dst]; !inS {
				continue
			}
			indeg[dst]--
			if indeg[dst] == 0 {
				heap.Push(h, dst)
			}
		}
	}

	if len(order) != len(S) {
		return nil, &TransactionError{
			Message: "propagation graph contains a cycle outside loop/snapshot back-edges",
			Code:    "CYCLE",
		}
	}
	return order, nil
}

// idHeap is a min-heap of NodeID, giving Kahn's algorithm its deterministic
// ascending-id tie-break.
type idHeap []NodeID

func (h idHeap) Len() int            { return len(h) }
func (h idHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x interface{}) { *h = append(*h, x.(NodeID)) }
func (h *idHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// rewireSwitches re-evaluates every live switch node's outer selector. A
// kindCellSwitch relinks its dynamic upstream edge immediately: per
// spec.md:84 a cell switch takes effect the instant the outer cell's new
// selection is observed, so a same-transaction switch-and-write against the
// newly selected inner cell must be visible right away. A kindStreamSwitch
// is the opposite (spec.md:115, "switchS... as observed in T"): its new
// edge is only recorded as pending here and applied at the very start of
// the *next* transaction's rewireSwitches call, so a stream-switch and a
// same-transaction send still observe whichever stream was selected before
// this transaction started. This runs before the dirty set is expanded so
// a cell switch's new edge participates correctly in this transaction's
// topological sort.
func (c *Context) rewireSwitches() {
	live := c.switchNodes[:0]
	for _, id := range c.switchNodes {
		n, ok := c.table.lookup(id)
		if !ok {
			continue
		}
		live = append(live, id)

		if n.kind == kindStreamSwitch && n.hasPendingSwitchTo {
			c.applySwitchRelink(n, n.pendingSwitchTo)
			n.hasPendingSwitchTo = false
		}

		if n.dynamicSelector == nil {
			continue
		}
		outerValue, ok := c.newValue(n.outerID)
		if !ok {
			continue
		}
		target := n.dynamicSelector(outerValue)
		if n.hasSwitch && target == n.switchTo {
			continue
		}

		if n.kind == kindStreamSwitch {
			n.pendingSwitchTo = target
			n.hasPendingSwitchTo = true
			continue
		}

		c.applySwitchRelink(n, target)
		c.markDirty(n.id)
	}
	c.switchNodes = live
}

// applySwitchRelink atomically moves a switch node's dynamic upstream edge
// from its current switchTo onto target, and emits a trace span describing
// the rewiring when a tracer is configured (WithTracer).
func (c *Context) applySwitchRelink(n *node, target NodeID) {
	from := n.switchTo
	if n.hasSwitch {
		c.table.unlink(n.switchTo, n.id)
	}
	c.table.link(target, n.id)
	n.switchTo = target
	n.hasSwitch = true

	if c.tracer == nil {
		return
	}
	_, span := c.tracer.Start(context.Background(), "switch_rewire")
	span.SetAttributes(
		attribute.Int64("reactivego.switch_node_id", int64(n.id)),
		attribute.Int64("reactivego.from_node_id", int64(from)),
		attribute.Int64("reactivego.to_node_id", int64(target)),
	)
	span.End()
}
