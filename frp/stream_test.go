package frp

import (
	"errors"
	"testing"
)

func TestStreamSinkWithoutCoalescerRejectsSimultaneousSends(t *testing.T) {
	ctx := New()
	s := NewStreamSink[int](ctx)

	err := ctx.Transaction(func() error {
		if err := s.Send(1); err != nil {
			return err
		}
		return s.Send(2)
	})

	if !errors.Is(err, ErrNoCoalescerForSimultaneous) {
		t.Fatalf("Transaction() = %v, want ErrNoCoalescerForSimultaneous", err)
	}
}

func TestMapToReplacesFiringValue(t *testing.T) {
	ctx := New()
	s := NewStreamSink[int](ctx)
	tagged := MapTo[int](s, "fired")

	var got []string
	tagged.Listen(func(v string) { got = append(got, v) })

	if err := s.Send(1); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(got) != 1 || got[0] != "fired" {
		t.Fatalf("got %v, want [fired]", got)
	}
}

func TestFilterOptionCombinesFilterAndMap(t *testing.T) {
	ctx := New()
	s := NewStreamSink[int](ctx)
	evensDoubled := FilterOption(s, func(v int) Option[int] {
		if v%2 != 0 {
			return None[int]()
		}
		return Some(v * 2)
	})

	var got []int
	evensDoubled.Listen(func(v int) { got = append(got, v) })

	for _, v := range []int{1, 2, 3, 4} {
		if err := s.Send(v); err != nil {
			t.Fatalf("Send(%d): %v", v, err)
		}
	}

	want := []int{4, 8}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestGateSuppressesWhileConditionIsFalse(t *testing.T) {
	ctx := New()
	s := NewStreamSink[int](ctx)
	cond := NewCellSink[bool](ctx, false)
	gated := s.Gate(cond)

	var got []int
	gated.Listen(func(v int) { got = append(got, v) })

	if err := s.Send(1); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v, want no firing while gate is closed", got)
	}

	if err := cond.ChangeValue(true); err != nil {
		t.Fatalf("ChangeValue: %v", err)
	}
	if err := s.Send(2); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("got %v, want [2]", got)
	}
}

func TestGateReadsConditionsPreTransactionValue(t *testing.T) {
	ctx := New()
	s := NewStreamSink[int](ctx)
	cond := NewCellSink[bool](ctx, true)
	gated := s.Gate(cond)

	var got []int
	gated.Listen(func(v int) { got = append(got, v) })

	// Closing the gate and firing in the same transaction: Gate must still
	// see cond's pre-transaction value (true), so this firing passes.
	err := ctx.Transaction(func() error {
		if err := cond.ChangeValue(false); err != nil {
			return err
		}
		return s.Send(10)
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	if len(got) != 1 || got[0] != 10 {
		t.Fatalf("got %v, want [10] (gate observes pre-transaction value)", got)
	}
}

func TestOnceFiresOnlyTheFirstTime(t *testing.T) {
	ctx := New()
	s := NewStreamSink[int](ctx)
	once := s.Once()

	var got []int
	once.Listen(func(v int) { got = append(got, v) })

	for _, v := range []int{1, 2, 3} {
		if err := s.Send(v); err != nil {
			t.Fatalf("Send(%d): %v", v, err)
		}
	}

	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("got %v, want [1]", got)
	}
}

func TestCollectEmitsResultAndThreadsState(t *testing.T) {
	ctx := New()
	s := NewStreamSink[int](ctx)

	var running Stream[int]
	if err := ctx.Transaction(func() error {
		running = Collect(s, 0, func(ev, state int) (int, int) {
			next := state + ev
			return next, next
		})
		return nil
	}); err != nil {
		t.Fatalf("building Collect: %v", err)
	}

	var got []int
	running.Listen(func(v int) { got = append(got, v) })

	for _, v := range []int{1, 2, 3} {
		if err := s.Send(v); err != nil {
			t.Fatalf("Send(%d): %v", v, err)
		}
	}

	want := []int{1, 3, 6}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// TestSwitchSDropsSameTransactionFiringOnNewlySelectedStream isolates the
// property spec.md §8 scenario 7 depends on: switching stream selector and
// sending on the newly selected stream within the same transaction drops
// that firing, while a simultaneous send on the still-selected-as-of-this-
// transaction old stream passes through. The new edge only goes live on the
// transaction after the switch.
func TestSwitchSDropsSameTransactionFiringOnNewlySelectedStream(t *testing.T) {
	ctx := New()
	oldStream := NewStreamSink[int](ctx)
	newStream := NewStreamSink[int](ctx)
	outer := NewCellSink[Stream[int]](ctx, oldStream)
	switched := SwitchS(outer)

	var got []int
	switched.Listen(func(v int) { got = append(got, v) })

	err := ctx.Transaction(func() error {
		if err := oldStream.Send(100); err != nil {
			return err
		}
		if err := outer.ChangeValue(newStream); err != nil {
			return err
		}
		return newStream.Send(200)
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	if len(got) != 1 || got[0] != 100 {
		t.Fatalf("got %v, want [100]: same-transaction old-stream firing must pass, new-stream firing must drop", got)
	}

	if err := newStream.Send(300); err != nil {
		t.Fatalf("newStream.Send(300): %v", err)
	}
	if len(got) != 2 || got[1] != 300 {
		t.Fatalf("got %v, want [100 300]: next transaction's firing on the newly selected stream must pass", got)
	}

	if err := oldStream.Send(400); err != nil {
		t.Fatalf("oldStream.Send(400): %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want no further firings: the old stream must no longer be selected", got)
	}
}

func TestStreamLoopRequiresCloseBeforeCommit(t *testing.T) {
	ctx := New()
	err := ctx.Transaction(func() error {
		_ = NewStreamLoop[int](ctx)
		return nil
	})
	var txErr *TransactionError
	if !errors.As(err, &txErr) || txErr.Code != "LOOP_NOT_CLOSED" {
		t.Fatalf("Transaction() = %v, want LOOP_NOT_CLOSED", err)
	}
}
