package emit

import "testing"

func TestNullEmitterIsANoOp(t *testing.T) {
	e := NewNullEmitter()

	// Exercising the full interface is the test: none of this should panic
	// or block, and there is no observable state to assert on.
	e.Emit(Event{TxnID: "1", Msg: "anything"})
	if err := e.EmitBatch(nil, []Event{{TxnID: "1", Msg: "a"}}); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	if err := e.Flush(nil); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}
