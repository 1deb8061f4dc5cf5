package frp

import "testing"

func TestNodeTableAllocateAssignsDenseIDs(t *testing.T) {
	table := newNodeTable()
	a := table.allocate(kindCellSink)
	b := table.allocate(kindCellSink)
	c := table.allocate(kindCellSink)

	if a.id != 0 || b.id != 1 || c.id != 2 {
		t.Fatalf("got ids %d, %d, %d, want 0, 1, 2", a.id, b.id, c.id)
	}
}

func TestNodeTableLinkIsIdempotent(t *testing.T) {
	table := newNodeTable()
	a := table.allocate(kindCellSink)
	b := table.allocate(kindCellDerived)

	table.link(a.id, b.id)
	table.link(a.id, b.id)

	if len(b.upstream) != 1 {
		t.Fatalf("upstream = %v, want exactly one entry", b.upstream)
	}
	if _, ok := a.downstream[b.id]; !ok {
		t.Fatalf("expected a -> b edge in downstream set")
	}
}

func TestNodeTableUnlinkRemovesEdge(t *testing.T) {
	table := newNodeTable()
	a := table.allocate(kindCellSink)
	b := table.allocate(kindCellDerived)

	table.link(a.id, b.id)
	table.unlink(a.id, b.id)

	if len(b.upstream) != 0 {
		t.Fatalf("upstream = %v, want empty", b.upstream)
	}
	if _, ok := a.downstream[b.id]; ok {
		t.Fatalf("expected a -> b edge to be removed")
	}
}

func TestNodeTableDropFailsWithDependents(t *testing.T) {
	table := newNodeTable()
	a := table.allocate(kindCellSink)
	b := table.allocate(kindCellDerived)
	table.link(a.id, b.id)

	if err := table.drop(a.id); err != ErrHasDependents {
		t.Fatalf("drop() = %v, want ErrHasDependents", err)
	}
}

func TestNodeTableDropUnlinksUpstream(t *testing.T) {
	table := newNodeTable()
	a := table.allocate(kindCellSink)
	b := table.allocate(kindCellDerived)
	table.link(a.id, b.id)

	if err := table.drop(b.id); err != nil {
		t.Fatalf("drop(b): %v", err)
	}
	if _, ok := a.downstream[b.id]; ok {
		t.Fatalf("expected a's downstream edge to b to be removed on drop")
	}
	if _, ok := table.lookup(b.id); ok {
		t.Fatalf("expected b to be collected")
	}
}

func TestNodeTableRetainReleaseLifecycle(t *testing.T) {
	table := newNodeTable()
	a := table.allocate(kindCellSink) // refCount starts at 1

	table.retain(a.id)
	table.release(a.id) // back to 1, still alive
	if _, ok := table.lookup(a.id); !ok {
		t.Fatalf("expected node to still be live after retain+release pair")
	}

	table.release(a.id) // refCount -> 0, no dependents: collected
	if _, ok := table.lookup(a.id); ok {
		t.Fatalf("expected node to be collected once refCount reached zero")
	}
}

func TestNodeTableReleaseDefersWhileDependentsExist(t *testing.T) {
	table := newNodeTable()
	a := table.allocate(kindCellSink)
	b := table.allocate(kindCellDerived)
	table.link(a.id, b.id)

	table.release(a.id)
	if _, ok := table.lookup(a.id); !ok {
		t.Fatalf("expected a to survive release while b still depends on it")
	}
}
