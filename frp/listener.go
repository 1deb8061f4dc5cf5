package frp

// Unlisten detaches a previously registered listener. Calling it more than
// once is a no-op. If called from inside a listener callback (i.e. during
// delivery of some other node's firing), the detach is deferred until
// delivery for this transaction finishes, so the listener set a callback
// observes mid-delivery never shifts under it.
type Unlisten func()

// listenCell registers fn on cell id and delivers the cell's current value
// to it synchronously, inside the attaching transaction, before returning —
// the cell-listener contract spec.md §4.6 describes. fn continues to
// receive every subsequent committed value until the returned Unlisten is
// called.
func listenCell[T any](ctx *Context, id NodeID, fn func(T)) Unlisten {
	var lid int
	_ = ctx.withTransaction(func() error {
		n := ctx.mustNode(id)
		lid = n.nextListenerID
		n.nextListenerID++
		entry := &listenerEntry{id: lid, cellFn: func(v any) { fn(v.(T)) }}
		registerListener(ctx, n, entry)
		entry.cellFn(n.value)
		return nil
	})
	return unlistenFunc(ctx, id, lid)
}

// listenStream registers fn on stream id. Unlike listenCell there is no
// initial synchronous delivery, since a stream carries no value between
// firings — except when the node has an onListenInitial hook (set by
// Cell.Value), whose value is then delivered once, synchronously.
func listenStream[T any](ctx *Context, id NodeID, fn func(T)) Unlisten {
	var lid int
	_ = ctx.withTransaction(func() error {
		n := ctx.mustNode(id)
		lid = n.nextListenerID
		n.nextListenerID++
		entry := &listenerEntry{id: lid, streamFn: func(v any) { fn(v.(T)) }}
		registerListener(ctx, n, entry)
		if n.onListenInitial != nil {
			if v, ok := n.onListenInitial(ctx); ok {
				entry.streamFn(v)
			}
		}
		return nil
	})
	return unlistenFunc(ctx, id, lid)
}

func registerListener(ctx *Context, n *node, entry *listenerEntry) {
	apply := func() {
		n.listeners[entry.id] = entry
		n.refCount++
	}
	if ctx.delivering {
		ctx.deferTopologyMutation(apply)
		return
	}
	apply()
}

func unlistenFunc(ctx *Context, id NodeID, lid int) Unlisten {
	return func() {
		apply := func() {
			n, ok := ctx.table.lookup(id)
			if !ok {
				return
			}
			if _, exists := n.listeners[lid]; !exists {
				return
			}
			delete(n.listeners, lid)
			n.refCount--
			if n.refCount <= 0 && len(n.downstream) == 0 {
				_ = ctx.table.drop(id)
			}
		}
		if ctx.delivering {
			ctx.deferTopologyMutation(apply)
			return
		}
		apply()
	}
}
