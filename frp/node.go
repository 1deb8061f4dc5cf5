package frp

// NodeID is a stable, dense, monotonically assigned identifier for a graph
// node. Identity is compared only by equality; ids are never reused within
// the lifetime of a Context (see DESIGN.md for the id-reuse trade-off this
// resolves).
type NodeID uint64

// nodeKind tags the nine node shapes the engine distinguishes. The kind
// never changes after allocation, except that switch nodes additionally
// rewrite their dynamic upstream edge during propagation (see scheduler.go).
type nodeKind uint8

const (
	kindCellSink nodeKind = iota
	kindCellDerived
	kindCellHold
	kindCellSwitch
	kindCellLoop
	kindStreamSink
	kindStreamDerived
	kindStreamSwitch
	kindStreamLoop
)

func (k nodeKind) isCell() bool {
	switch k {
	case kindCellSink, kindCellDerived, kindCellHold, kindCellSwitch, kindCellLoop:
		return true
	default:
		return false
	}
}

func (k nodeKind) isLoop() bool {
	return k == kindCellLoop || k == kindStreamLoop
}

func (k nodeKind) isSwitch() bool {
	return k == kindCellSwitch || k == kindStreamSwitch
}

// recomputeFunc evaluates a derived node against the current (mid-propagation)
// snapshot of its upstream nodes. For a cell it returns (newValue, changed);
// for a stream it returns (firing, fired). ctx gives access to sibling node
// state (sample/firing reads) during the scheduler's single pass.
type recomputeFunc func(ctx *Context, n *node) (value any, changed bool)

// coalesceFunc combines two firings landing on the same stream node within a
// single transaction. Associativity/commutativity are the caller's concern
// (spec Design Note 2): the engine applies it left-to-right in send order.
type coalesceFunc func(a, b any) any

// listenerEntry is one registered observer on a node.
type listenerEntry struct {
	id       int
	cellFn   func(any)
	streamFn func(any)
}

// node is the universal graph vertex: cells and streams are both represented
// by this struct, distinguished by kind. Type safety for callers is restored
// one layer up by the generic Cell[T] / Stream[T] wrappers in cell.go and
// stream.go, which assert the stored `any` back to T.
type node struct {
	id   NodeID
	kind nodeKind

	// value is the cell's current, committed value. Unused for streams.
	value any
	// pending is the cell's staged next value, valid only while hasPending.
	pending    any
	hasPending bool

	// firing is the stream's firing for the in-progress transaction, valid
	// only while hasFired. Both are cleared once the transaction commits.
	firing  any
	hasFired bool

	// upstream lists the node ids this node reads, in the order combinators
	// declared them. Recompute functions read their inputs by captured id,
	// not through this slice.
	upstream []NodeID
	// downstream is the inverse edge set, maintained as edges are linked.
	downstream map[NodeID]struct{}

	recompute recomputeFunc
	coalesce  coalesceFunc

	// switchTo is the current dynamic upstream edge for switchC/switchS
	// nodes; it is rewired atomically during propagation (see scheduler.go).
	switchTo  NodeID
	hasSwitch bool
	// pendingSwitchTo/hasPendingSwitchTo hold a stream-switch's next
	// selector, detected this transaction but not yet applied: unlike
	// kindCellSwitch, a kindStreamSwitch's new edge only becomes live at
	// the start of the *next* transaction's propagation, so this
	// transaction's firing still observes the previously selected stream
	// (see rewireSwitches).
	pendingSwitchTo    NodeID
	hasPendingSwitchTo bool
	// outerID is the node carrying the "which inner node is selected right
	// now" value for a switch node, and dynamicSelector extracts the
	// target NodeID from that node's current value. Both are set once at
	// construction in SwitchC/SwitchS.
	outerID         NodeID
	dynamicSelector func(any) NodeID

	// loopClosed is false until Close() attaches the loop's real recompute
	// and upstream edges. createdAtTxn is not set or read anywhere; unclosed
	// loops are detected at commit through Context.openLoops.
	loopClosed  bool
	createdAtTxn uint64

	listeners      map[int]*listenerEntry
	nextListenerID int

	// onListenInitial, when set, is invoked once synchronously whenever a
	// new listener attaches (used by Cell.Value to deliver the cell's
	// current value the same way Cell.Listen does).
	onListenInitial func(ctx *Context) (any, bool)

	// refCount tracks external Cell[T]/Stream[T] handles plus live
	// listeners; when it reaches zero and downstream is empty the node is
	// eligible for collection from the table.
	refCount int
}

// nodeTable is a dense, id-keyed store of graph nodes. Allocation returns
// monotonically increasing ids from 0 and uses the id as a direct slice
// index for O(1) access, exactly as spec.md §4.1 describes.
type nodeTable struct {
	nodes []*node
}

func newNodeTable() *nodeTable {
	return &nodeTable{nodes: make([]*node, 0, 64)}
}

// allocate creates a new node of the given kind and returns its id.
func (t *nodeTable) allocate(kind nodeKind) *node {
	id := NodeID(len(t.nodes))
	n := &node{
		id:         id,
		kind:       kind,
		downstream: make(map[NodeID]struct{}),
		listeners:  make(map[int]*listenerEntry),
		refCount:   1,
	}
	t.nodes = append(t.nodes, n)
	return n
}

// lookup returns the node for id, or (nil, false) if it has been collected.
func (t *nodeTable) lookup(id NodeID) (*node, bool) {
	if int(id) >= len(t.nodes) {
		return nil, false
	}
	n := t.nodes[id]
	return n, n != nil
}

// link adds an edge src -> dst (dst reads src). Idempotent.
func (t *nodeTable) link(src, dst NodeID) {
	srcNode, ok := t.lookup(src)
	if !ok {
		return
	}
	dstNode, ok := t.lookup(dst)
	if !ok {
		return
	}
	if _, exists := srcNode.downstream[dst]; exists {
		return
	}
	srcNode.downstream[dst] = struct{}{}
	dstNode.upstream = append(dstNode.upstream, src)
}

// unlink removes the edge src -> dst. No-op if absent.
func (t *nodeTable) unlink(src, dst NodeID) {
	srcNode, ok := t.lookup(src)
	if !ok {
		return
	}
	dstNode, ok := t.lookup(dst)
	if !ok {
		return
	}
	if _, exists := srcNode.downstream[dst]; !exists {
		return
	}
	delete(srcNode.downstream, dst)
	for i, u := range dstNode.upstream {
		if u == src {
			dstNode.upstream = append(dstNode.upstream[:i], dstNode.upstream[i+1:]...)
			break
		}
	}
}

// drop removes a node from the table. Fails with ErrHasDependents if the
// node still has downstream readers.
func (t *nodeTable) drop(id NodeID) error {
	n, ok := t.lookup(id)
	if !ok {
		return ErrInvalidNode
	}
	if len(n.downstream) > 0 {
		return ErrHasDependents
	}
	for _, u := range n.upstream {
		t.unlink(u, id)
	}
	t.nodes[id] = nil
	return nil
}

// retain/release implement the simple reference-count lifecycle described in
// spec.md §3: nodes live until no external holder and no listener reference
// them. release drops the node once both are exhausted and it has no
// dependents; if it still has dependents, release leaves it in the table,
// and it is not collected later when those dependents are dropped.
func (t *nodeTable) retain(id NodeID) {
	if n, ok := t.lookup(id); ok {
		n.refCount++
	}
}

func (t *nodeTable) release(id NodeID) {
	n, ok := t.lookup(id)
	if !ok {
		return
	}
	n.refCount--
	if n.refCount > 0 {
		return
	}
	if len(n.downstream) > 0 {
		return
	}
	_ = t.drop(id)
}
