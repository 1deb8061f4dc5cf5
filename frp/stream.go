package frp

// Stream[T] is a discrete sequence of events: it carries a value only
// during the transaction in which it fires, and has no value in between.
//
// Stream is a thin, typed handle onto a graph node; the zero Stream is not
// valid, construct one with NewStreamSink, a combinator, or NewStreamLoop.
type Stream[T any] struct {
	ctx *Context
	id  NodeID
}

// ID returns the underlying graph node id.
func (s Stream[T]) ID() NodeID { return s.id }

// NewStreamSink creates an externally-fireable stream with no coalescer:
// two Send calls landing in the same transaction abort it with
// ErrNoCoalescerForSimultaneous.
func NewStreamSink[T any](ctx *Context) Stream[T] {
	n := ctx.table.allocate(kindStreamSink)
	return Stream[T]{ctx: ctx, id: n.id}
}

// NewStreamSinkWithCoalescer creates a stream sink that combines
// simultaneous same-transaction firings with combine, applied left to
// right in Send order (spec Design Note 2).
func NewStreamSinkWithCoalescer[T any](ctx *Context, combine func(a, b T) T) Stream[T] {
	n := ctx.table.allocate(kindStreamSink)
	n.coalesce = func(a, b any) any { return combine(a.(T), b.(T)) }
	return Stream[T]{ctx: ctx, id: n.id}
}

// Send fires v on s. If called outside an open Transaction, an implicit
// one is opened and committed before Send returns.
func (s Stream[T]) Send(v T) error {
	return s.ctx.withTransaction(func() error {
		n := s.ctx.mustNode(s.id)
		if n.hasFired {
			if n.coalesce == nil {
				return &TransactionError{
					Message: "two sends landed on the same stream sink in one transaction with no coalescer",
					Code:    "NO_COALESCER",
					Cause:   ErrNoCoalescerForSimultaneous,
				}
			}
			n.firing = n.coalesce(n.firing, v)
		} else {
			n.firing = v
			n.hasFired = true
		}
		s.ctx.markDirty(s.id)
		return nil
	})
}

// Listen subscribes fn to every future firing. Unlike Cell.Listen there is
// no synchronous initial delivery: a stream has no value between firings.
// The one exception is a stream returned by Cell.Value, which delivers the
// cell's current value once at Listen time.
func (s Stream[T]) Listen(fn func(T)) Unlisten {
	return listenStream(s.ctx, s.id, fn)
}

// OrElse merges s with other, preferring s's firing when both fire in the
// same transaction.
func (s Stream[T]) OrElse(other Stream[T]) Stream[T] {
	return Merge(s, other, func(a, _ T) T { return a })
}

// Filter keeps only firings for which pred returns true.
func (s Stream[T]) Filter(pred func(T) bool) Stream[T] {
	ctx := s.ctx
	n := ctx.table.allocate(kindStreamDerived)
	n.recompute = func(ctx *Context, self *node) (any, bool) {
		v, ok := ctx.newValue(s.id)
		if !ok || !pred(v.(T)) {
			return nil, false
		}
		return v, true
	}
	ctx.table.link(s.id, n.id)
	return Stream[T]{ctx: ctx, id: n.id}
}

// Gate suppresses firings while cond's sampled value is false. Per the
// hold-delay property, Gate reads cond's pre-transaction value, so gating a
// stream with a cell that's also updating this same transaction uses the
// value the cell held before the update (spec.md §4.5).
func (s Stream[T]) Gate(cond Cell[bool]) Stream[T] {
	ctx := s.ctx
	n := ctx.table.allocate(kindStreamDerived)
	n.recompute = func(ctx *Context, self *node) (any, bool) {
		v, ok := ctx.newValue(s.id)
		if !ok {
			return nil, false
		}
		if open, _ := ctx.oldValue(cond.id).(bool); !open {
			return nil, false
		}
		return v, true
	}
	ctx.table.link(s.id, n.id)
	ctx.table.retain(cond.id)
	return Stream[T]{ctx: ctx, id: n.id}
}

// Once fires only the first time s fires, and is silent thereafter.
func (s Stream[T]) Once() Stream[T] {
	ctx := s.ctx
	n := ctx.table.allocate(kindStreamDerived)
	done := false
	n.recompute = func(ctx *Context, self *node) (any, bool) {
		if done {
			return nil, false
		}
		v, ok := ctx.newValue(s.id)
		if !ok {
			return nil, false
		}
		done = true
		return v, true
	}
	ctx.table.link(s.id, n.id)
	return Stream[T]{ctx: ctx, id: n.id}
}

// Defer re-exposes s's firing one dependency-rank later in the same
// transaction's topological pass. The scheduler already sequences every
// node strictly after its upstream, so Defer is a pass-through whose only
// job is to give downstream code a node that is guaranteed to observe s's
// firing rather than racing its own recompute against it.
func (s Stream[T]) Defer() Stream[T] {
	ctx := s.ctx
	n := ctx.table.allocate(kindStreamDerived)
	n.recompute = func(ctx *Context, self *node) (any, bool) {
		return ctx.newValue(s.id)
	}
	ctx.table.link(s.id, n.id)
	return Stream[T]{ctx: ctx, id: n.id}
}

// MapStream applies a pure function to every firing of s.
func MapStream[T, R any](s Stream[T], f func(T) R) Stream[R] {
	ctx := s.ctx
	n := ctx.table.allocate(kindStreamDerived)
	n.recompute = func(ctx *Context, self *node) (any, bool) {
		v, ok := ctx.newValue(s.id)
		if !ok {
			return nil, false
		}
		return f(v.(T)), true
	}
	ctx.table.link(s.id, n.id)
	return Stream[R]{ctx: ctx, id: n.id}
}

// MapTo replaces every firing of s with a constant value.
func MapTo[T, R any](s Stream[T], value R) Stream[R] {
	return MapStream(s, func(T) R { return value })
}

// Option is a minimal optional value, used by FilterOption to combine
// filtering and mapping in a single combinator.
type Option[T any] struct {
	value T
	valid bool
}

// Some wraps a present value.
func Some[T any](v T) Option[T] { return Option[T]{value: v, valid: true} }

// None represents an absent value.
func None[T any]() Option[T] { return Option[T]{} }

// Get returns the wrapped value and whether it is present.
func (o Option[T]) Get() (T, bool) { return o.value, o.valid }

// FilterOption applies f to every firing of s, keeping only the firings for
// which f returns a present Option.
func FilterOption[T, R any](s Stream[T], f func(T) Option[R]) Stream[R] {
	ctx := s.ctx
	n := ctx.table.allocate(kindStreamDerived)
	n.recompute = func(ctx *Context, self *node) (any, bool) {
		v, ok := ctx.newValue(s.id)
		if !ok {
			return nil, false
		}
		opt := f(v.(T))
		if !opt.valid {
			return nil, false
		}
		return opt.value, true
	}
	ctx.table.link(s.id, n.id)
	return Stream[R]{ctx: ctx, id: n.id}
}

// Merge combines a and b into one stream. combine resolves the case where
// both fire in the same transaction; it is never called otherwise.
func Merge[T any](a, b Stream[T], combine func(a, b T) T) Stream[T] {
	ctx := a.ctx
	n := ctx.table.allocate(kindStreamDerived)
	n.recompute = func(ctx *Context, self *node) (any, bool) {
		av, aok := ctx.newValue(a.id)
		bv, bok := ctx.newValue(b.id)
		switch {
		case aok && bok:
			return combine(av.(T), bv.(T)), true
		case aok:
			return av, true
		case bok:
			return bv, true
		default:
			return nil, false
		}
	}
	ctx.table.link(a.id, n.id)
	ctx.table.link(b.id, n.id)
	return Stream[T]{ctx: ctx, id: n.id}
}

// Snapshot fires whenever s fires, combining s's firing with c's
// pre-transaction value. Because the cell argument is read through
// oldValue rather than newValue, Snapshot is exactly the combinator that
// lets a loop cell's definition safely read the loop cell itself without
// creating a propagation cycle (spec.md §4.4, scenario 6).
func Snapshot[T, C, R any](s Stream[T], c Cell[C], f func(T, C) R) Stream[R] {
	ctx := s.ctx
	n := ctx.table.allocate(kindStreamDerived)
	n.recompute = func(ctx *Context, self *node) (any, bool) {
		v, ok := ctx.newValue(s.id)
		if !ok {
			return nil, false
		}
		cv := ctx.oldValue(c.id)
		return f(v.(T), cv.(C)), true
	}
	ctx.table.link(s.id, n.id)
	ctx.table.retain(c.id)
	return Stream[R]{ctx: ctx, id: n.id}
}

// Accum folds s into a running cell, starting at initial: each firing
// combines with the current accumulated value (read pre-firing, per
// Snapshot's hold-delay semantics) to produce the next one. This is the
// general form of spec.md §8 scenario 6's running-total accumulator,
// implemented the same way: a forward-declared loop cell closed by a
// Snapshot+Hold built from it. Accum must be called inside the Transaction
// that should observe the loop closing — see NewCellLoop.
func Accum[T, R any](s Stream[T], initial R, f func(event T, acc R) R) Cell[R] {
	ctx := s.ctx
	loop := NewCellLoop[R](ctx)
	updated := Snapshot(s, loop, f)
	sum := Hold(updated, initial)
	_ = loop.Close(sum)
	return sum
}

type collectPair[R, S any] struct {
	result R
	state  S
}

// Collect is Accum's stream-producing sibling: f receives each firing plus
// the current hidden state and returns both the emitted result and the
// next state.
func Collect[T, S, R any](s Stream[T], initial S, f func(event T, state S) (R, S)) Stream[R] {
	ctx := s.ctx
	stateLoop := NewCellLoop[S](ctx)
	pairs := Snapshot(s, stateLoop, func(ev T, st S) collectPair[R, S] {
		r, ns := f(ev, st)
		return collectPair[R, S]{result: r, state: ns}
	})
	nextState := Hold(MapStream(pairs, func(p collectPair[R, S]) S { return p.state }), initial)
	_ = stateLoop.Close(nextState)
	return MapStream(pairs, func(p collectPair[R, S]) R { return p.result })
}

// SwitchS flattens a cell of streams into a stream that always fires
// whichever inner stream was selected as of the *start* of the current
// transaction (spec.md §8 scenario 7). Unlike SwitchC, a selector change
// staged in transaction T does not take effect until T+1: if the outer
// cell switches to a new inner stream and that same transaction also sends
// on the newly selected stream, the firing is dropped, while a
// simultaneous send on the *previously* selected stream still passes
// through. The dynamic edge itself is rewired one transaction later, at
// the start of the next propagation pass (see rewireSwitches).
func SwitchS[T any](outer Cell[Stream[T]]) Stream[T] {
	ctx := outer.ctx
	n := ctx.table.allocate(kindStreamSwitch)
	n.outerID = outer.id
	n.dynamicSelector = func(v any) NodeID { return v.(Stream[T]).id }

	initial := outer.Sample()
	n.switchTo = initial.id
	n.hasSwitch = true
	n.recompute = func(ctx *Context, self *node) (any, bool) {
		return ctx.newValue(self.switchTo)
	}

	ctx.table.link(outer.id, n.id)
	ctx.table.link(initial.id, n.id)
	ctx.switchNodes = append(ctx.switchNodes, n.id)

	return Stream[T]{ctx: ctx, id: n.id}
}

// NewStreamLoop forward-declares a stream whose definition will be
// supplied by Close in the same transaction.
func NewStreamLoop[T any](ctx *Context) Stream[T] {
	n := ctx.table.allocate(kindStreamLoop)
	ctx.openLoops[n.id] = struct{}{}
	return Stream[T]{ctx: ctx, id: n.id}
}

// Close attaches def as the loop stream's definition. Must be called in the
// same transaction that created the loop via NewStreamLoop.
func (s Stream[T]) Close(def Stream[T]) error {
	n := s.ctx.mustNode(s.id)
	if n.loopClosed {
		return ErrAlreadyClosed
	}
	n.loopClosed = true
	delete(s.ctx.openLoops, s.id)
	n.recompute = func(ctx *Context, self *node) (any, bool) {
		return ctx.newValue(def.id)
	}
	s.ctx.table.link(def.id, s.id)
	return nil
}
