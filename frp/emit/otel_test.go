package emit

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return recorder, tp
}

func TestOTelEmitterRecordsOneSpanPerEvent(t *testing.T) {
	recorder, tp := newRecordingTracer()
	e := NewOTelEmitter(tp.Tracer("reactivego-test"))

	e.Emit(Event{TxnID: "1", NodeID: "5", Msg: "txn_committed"})

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d ended spans, want 1", len(spans))
	}
	if spans[0].Name() != "txn_committed" {
		t.Fatalf("span name = %q, want txn_committed", spans[0].Name())
	}
}

func TestOTelEmitterEmitBatchRecordsAllSpans(t *testing.T) {
	recorder, tp := newRecordingTracer()
	e := NewOTelEmitter(tp.Tracer("reactivego-test"))

	if err := e.EmitBatch(context.Background(), []Event{
		{TxnID: "1", Msg: "a"},
		{TxnID: "1", Msg: "b"},
	}); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}

	if got := len(recorder.Ended()); got != 2 {
		t.Fatalf("got %d ended spans, want 2", got)
	}
}

func TestOTelEmitterRecordsErrorMetadataOnSpan(t *testing.T) {
	recorder, tp := newRecordingTracer()
	e := NewOTelEmitter(tp.Tracer("reactivego-test"))

	e.Emit(Event{TxnID: "1", Msg: "listener_panic", Meta: map[string]interface{}{"error": "boom"}})

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d ended spans, want 1", len(spans))
	}
	if len(spans[0].Events()) == 0 {
		t.Fatalf("expected span to record an error event")
	}
}
