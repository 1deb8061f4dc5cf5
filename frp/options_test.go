package frp

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dshills/reactivego/frp/emit"
)

func TestWithEmitterOverridesDefault(t *testing.T) {
	var buf bytes.Buffer
	logEmitter := emit.NewLogEmitter(&buf, false)
	ctx := New(WithEmitter(logEmitter))

	if ctx.emitter != logEmitter {
		t.Fatalf("expected configured emitter to be wired onto Context")
	}

	_ = ctx.Transaction(func() error { return nil })
	if buf.Len() == 0 {
		t.Fatalf("expected the transaction commit event to be written through the emitter")
	}
}

func TestWithMetricsWiresCollector(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	ctx := New(WithMetrics(m))
	if ctx.metrics != m {
		t.Fatalf("expected configured metrics to be wired onto Context")
	}
}

func TestWithPanicPolicyDefaultsToRecover(t *testing.T) {
	ctx := New()
	if ctx.panicPolicy != PanicPolicyRecover {
		t.Fatalf("panicPolicy = %v, want PanicPolicyRecover by default", ctx.panicPolicy)
	}
}

func TestWithTracerRecordsTransactionAndListenerSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ctx := New(WithTracer(tp.Tracer("reactivego-test")))

	s := NewStreamSink[int](ctx)
	s.Listen(func(int) {})
	if err := s.Send(1); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var gotTxn, gotListener bool
	for _, span := range recorder.Ended() {
		switch span.Name() {
		case "transaction":
			gotTxn = true
		case "listener_dispatch":
			gotListener = true
		}
	}
	if !gotTxn {
		t.Fatalf("expected a transaction span to be recorded")
	}
	if !gotListener {
		t.Fatalf("expected a listener_dispatch span to be recorded")
	}
}

func TestWithTracerRecordsSwitchRewireSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ctx := New(WithTracer(tp.Tracer("reactivego-test")))

	a := NewCellSink[int](ctx, 1)
	b := NewCellSink[int](ctx, 2)
	outer := NewCellSink[Cell[int]](ctx, a)
	_ = SwitchC(outer)

	if err := outer.ChangeValue(b); err != nil {
		t.Fatalf("ChangeValue: %v", err)
	}

	for _, span := range recorder.Ended() {
		if span.Name() == "switch_rewire" {
			return
		}
	}
	t.Fatalf("expected a switch_rewire span to be recorded")
}

func TestWithPanicPolicyPropagateReraises(t *testing.T) {
	ctx := New(WithPanicPolicy(PanicPolicyPropagate))
	s := NewStreamSink[int](ctx)
	s.Listen(func(int) { panic("boom") })

	defer func() {
		if recover() == nil {
			t.Fatalf("expected Send to re-panic under PanicPolicyPropagate")
		}
	}()
	_ = s.Send(1)
}
