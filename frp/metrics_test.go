package frp

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordTransactionIncrementsByOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.RecordTransaction("committed")
	m.RecordTransaction("committed")
	m.RecordTransaction("aborted")

	if got := testutil.ToFloat64(m.transactions.WithLabelValues("committed")); got != 2 {
		t.Fatalf("committed count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.transactions.WithLabelValues("aborted")); got != 1 {
		t.Fatalf("aborted count = %v, want 1", got)
	}
}

func TestMetricsDisableSuppressesRecording(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.Disable()

	m.RecordTransaction("committed")
	m.SetNodeCount(5)
	m.RecordPropagation(time.Millisecond)
	m.RecordDirtySetSize(3)
	m.RecordListenerPanic()

	if got := testutil.ToFloat64(m.transactions.WithLabelValues("committed")); got != 0 {
		t.Fatalf("expected no recording while disabled, got %v", got)
	}

	m.Enable()
	m.RecordTransaction("committed")
	if got := testutil.ToFloat64(m.transactions.WithLabelValues("committed")); got != 1 {
		t.Fatalf("expected recording to resume after Enable, got %v", got)
	}
}

func TestContextWiresNodeCountIntoMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	ctx := New(WithMetrics(m))

	a := NewCellSink[int](ctx, 1)
	_ = MapCell(a, func(v int) int { return v + 1 })

	if err := a.ChangeValue(2); err != nil {
		t.Fatalf("ChangeValue: %v", err)
	}

	if got := testutil.ToFloat64(m.nodes); got < 2 {
		t.Fatalf("nodes gauge = %v, want at least 2", got)
	}
}
