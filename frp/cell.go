package frp

// Cell[T] is a continuous, always-valued signal: Sample returns its current
// value even outside a transaction, and every combinator in this file
// builds a new Cell whose value is a pure function of its upstream cells
// and streams.
//
// Cell is a thin, typed handle onto a graph node; the zero Cell is not
// valid, construct one with NewCellSink, Hold, a combinator, or NewCellLoop.
type Cell[T any] struct {
	ctx *Context
	id  NodeID
}

// ID returns the underlying graph node id, primarily useful for logging.
func (c Cell[T]) ID() NodeID { return c.id }

// NewCellSink creates an externally-writable cell seeded with initial.
// Call ChangeValue to stage a new value.
func NewCellSink[T any](ctx *Context, initial T) Cell[T] {
	n := ctx.table.allocate(kindCellSink)
	n.value = initial
	return Cell[T]{ctx: ctx, id: n.id}
}

// Sample reads the cell's current, last-committed value. Safe to call at
// any time, including outside a transaction and from within a recompute
// function (where it observes the pre-transaction value — see oldValue).
func (c Cell[T]) Sample() T {
	n := c.ctx.mustNode(c.id)
	return n.value.(T)
}

// ChangeValue stages v as the cell's next value. If called outside an open
// Transaction, an implicit one is opened and committed before ChangeValue
// returns.
func (c Cell[T]) ChangeValue(v T) error {
	return c.ctx.withTransaction(func() error {
		n := c.ctx.mustNode(c.id)
		n.pending = v
		n.hasPending = true
		c.ctx.markDirty(c.id)
		return nil
	})
}

// Listen subscribes fn to every future value and delivers the current value
// synchronously before Listen returns (spec.md §4.6).
func (c Cell[T]) Listen(fn func(T)) Unlisten {
	return listenCell(c.ctx, c.id, fn)
}

// Updates returns a stream that fires the cell's new value every time it
// changes, and does not fire at listen time.
func (c Cell[T]) Updates() Stream[T] {
	ctx := c.ctx
	cellID := c.id
	n := ctx.table.allocate(kindStreamDerived)
	n.recompute = func(ctx *Context, self *node) (any, bool) {
		cn, ok := ctx.table.lookup(cellID)
		if !ok || !cn.hasPending {
			return nil, false
		}
		return cn.pending, true
	}
	ctx.table.link(cellID, n.id)
	return Stream[T]{ctx: ctx, id: n.id}
}

// Value returns a stream equivalent to Updates, except it additionally
// fires the cell's current value once, synchronously, at the moment
// Listen is called on it — the same initial-delivery contract Cell.Listen
// gives, expressed as a stream.
func (c Cell[T]) Value() Stream[T] {
	s := c.Updates()
	n := s.ctx.mustNode(s.id)
	cellID := c.id
	n.onListenInitial = func(ctx *Context) (any, bool) {
		cn, ok := ctx.table.lookup(cellID)
		if !ok {
			return nil, false
		}
		return cn.value, true
	}
	return s
}

// MapCell applies a pure function to every value of c, producing a
// dependent cell that updates glitch-free in the same transaction as c.
func MapCell[T, R any](c Cell[T], f func(T) R) Cell[R] {
	ctx := c.ctx
	n := ctx.table.allocate(kindCellDerived)
	n.recompute = func(ctx *Context, self *node) (any, bool) {
		v, ok := ctx.newValue(c.id)
		if !ok {
			return nil, false
		}
		return f(v.(T)), true
	}
	ctx.table.link(c.id, n.id)
	n.value = f(c.Sample())
	return Cell[R]{ctx: ctx, id: n.id}
}

// Lift2 combines two cells with a pure function, recomputed whenever either
// input changes.
func Lift2[A, B, R any](a Cell[A], b Cell[B], f func(A, B) R) Cell[R] {
	ctx := a.ctx
	n := ctx.table.allocate(kindCellDerived)
	n.recompute = func(ctx *Context, self *node) (any, bool) {
		av, _ := ctx.newValue(a.id)
		bv, _ := ctx.newValue(b.id)
		return f(av.(A), bv.(B)), true
	}
	ctx.table.link(a.id, n.id)
	ctx.table.link(b.id, n.id)
	n.value = f(a.Sample(), b.Sample())
	return Cell[R]{ctx: ctx, id: n.id}
}

// Lift3 combines three cells with a pure function.
func Lift3[A, B, C, R any](a Cell[A], b Cell[B], c Cell[C], f func(A, B, C) R) Cell[R] {
	ctx := a.ctx
	n := ctx.table.allocate(kindCellDerived)
	n.recompute = func(ctx *Context, self *node) (any, bool) {
		av, _ := ctx.newValue(a.id)
		bv, _ := ctx.newValue(b.id)
		cv, _ := ctx.newValue(c.id)
		return f(av.(A), bv.(B), cv.(C)), true
	}
	ctx.table.link(a.id, n.id)
	ctx.table.link(b.id, n.id)
	ctx.table.link(c.id, n.id)
	n.value = f(a.Sample(), b.Sample(), c.Sample())
	return Cell[R]{ctx: ctx, id: n.id}
}

// Lift4 combines four cells with a pure function.
func Lift4[A, B, C, D, R any](a Cell[A], b Cell[B], c Cell[C], d Cell[D], f func(A, B, C, D) R) Cell[R] {
	ctx := a.ctx
	n := ctx.table.allocate(kindCellDerived)
	n.recompute = func(ctx *Context, self *node) (any, bool) {
		av, _ := ctx.newValue(a.id)
		bv, _ := ctx.newValue(b.id)
		cv, _ := ctx.newValue(c.id)
		dv, _ := ctx.newValue(d.id)
		return f(av.(A), bv.(B), cv.(C), dv.(D)), true
	}
	ctx.table.link(a.id, n.id)
	ctx.table.link(b.id, n.id)
	ctx.table.link(c.id, n.id)
	ctx.table.link(d.id, n.id)
	n.value = f(a.Sample(), b.Sample(), c.Sample(), d.Sample())
	return Cell[R]{ctx: ctx, id: n.id}
}

// Apply applies a cell of functions to a cell of arguments, recomputed
// whenever either changes — the applicative-functor combinator that makes
// arbitrary-arity lifting possible without a family of LiftN functions.
func Apply[A, R any](cf Cell[func(A) R], ca Cell[A]) Cell[R] {
	ctx := cf.ctx
	n := ctx.table.allocate(kindCellDerived)
	n.recompute = func(ctx *Context, self *node) (any, bool) {
		fv, _ := ctx.newValue(cf.id)
		av, _ := ctx.newValue(ca.id)
		return fv.(func(A) R)(av.(A)), true
	}
	ctx.table.link(cf.id, n.id)
	ctx.table.link(ca.id, n.id)
	n.value = cf.Sample()(ca.Sample())
	return Cell[R]{ctx: ctx, id: n.id}
}

// Hold turns a stream into a cell: the cell holds initial until s first
// fires, and thereafter holds the most recent firing. A firing of s and a
// read of the resulting cell via snapshot/gate in the very same transaction
// still see the pre-firing value — the hold-delay property (spec.md §4.4).
func Hold[T any](s Stream[T], initial T) Cell[T] {
	ctx := s.ctx
	n := ctx.table.allocate(kindCellHold)
	n.value = initial
	n.recompute = func(ctx *Context, self *node) (any, bool) {
		v, ok := ctx.newValue(s.id)
		if !ok {
			return nil, false
		}
		return v, true
	}
	ctx.table.link(s.id, n.id)
	return Cell[T]{ctx: ctx, id: n.id}
}

// SwitchC flattens a cell of cells into a cell that always tracks whichever
// inner cell is currently selected. When outer changes, the switch node's
// dynamic upstream edge is rewired atomically at the start of the next
// propagation pass (scheduler.go, rewireSwitches); within that same
// transaction SwitchC's value is the newly selected inner cell's value.
func SwitchC[T any](outer Cell[Cell[T]]) Cell[T] {
	ctx := outer.ctx
	n := ctx.table.allocate(kindCellSwitch)
	n.outerID = outer.id
	n.dynamicSelector = func(v any) NodeID { return v.(Cell[T]).id }

	initial := outer.Sample()
	n.switchTo = initial.id
	n.hasSwitch = true
	n.value = initial.Sample()
	n.recompute = func(ctx *Context, self *node) (any, bool) {
		v, ok := ctx.newValue(self.switchTo)
		if !ok {
			return nil, false
		}
		return v, true
	}

	ctx.table.link(outer.id, n.id)
	ctx.table.link(initial.id, n.id)
	ctx.switchNodes = append(ctx.switchNodes, n.id)

	return Cell[T]{ctx: ctx, id: n.id}
}

// NewCellLoop forward-declares a cell whose definition will be supplied by
// a later Close call in the same transaction, enabling mutually recursive
// definitions such as running accumulators (spec.md §8 scenario 6). It is a
// programming error to read Sample on a loop cell before Close attaches a
// definition with an initial value, or to let the creating transaction
// commit without calling Close (ErrLoopNotClosed).
func NewCellLoop[T any](ctx *Context) Cell[T] {
	n := ctx.table.allocate(kindCellLoop)
	ctx.openLoops[n.id] = struct{}{}
	return Cell[T]{ctx: ctx, id: n.id}
}

// Close attaches def as the loop cell's definition. def typically reads the
// loop cell itself via Snapshot or Gate, which is safe because those
// combinators only ever read a cell's pre-transaction value (oldValue),
// breaking the apparent cycle. Close must be called in the same
// transaction that created the loop cell via NewCellLoop.
func (c Cell[T]) Close(def Cell[T]) error {
	n := c.ctx.mustNode(c.id)
	if n.loopClosed {
		return ErrAlreadyClosed
	}
	n.loopClosed = true
	delete(c.ctx.openLoops, c.id)
	n.value = def.Sample()
	n.recompute = func(ctx *Context, self *node) (any, bool) {
		v, ok := ctx.newValue(def.id)
		if !ok {
			return nil, false
		}
		return v, true
	}
	c.ctx.table.link(def.id, c.id)
	return nil
}
