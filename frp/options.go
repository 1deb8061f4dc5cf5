package frp

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/reactivego/frp/emit"
)

// Option configures a Context at construction time. Options compose: later
// options override earlier ones for the same field.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	ctx := frp.New(
//	    frp.WithMetrics(frp.NewMetrics(registry)),
//	    frp.WithEmitter(emit.NewLogEmitter(os.Stderr, true)),
//	)
type Option func(*contextConfig)

type contextConfig struct {
	emitter     emit.Emitter
	metrics     *Metrics
	tracer      trace.Tracer
	panicPolicy PanicPolicy
}

// PanicPolicy controls what happens when a listener callback panics during
// delivery.
type PanicPolicy int

const (
	// PanicPolicyRecover records the panic (metrics + emitted event) and
	// continues delivering to the remaining queued listeners. This is the
	// default: one misbehaving observer must not stop propagation from
	// reaching the others.
	PanicPolicyRecover PanicPolicy = iota
	// PanicPolicyPropagate records the panic the same way, then re-panics
	// once the current delivery pass finishes, so a supervising goroutine
	// (or test) sees it.
	PanicPolicyPropagate
)

// WithPanicPolicy overrides how listener panics are handled. Defaults to
// PanicPolicyRecover.
func WithPanicPolicy(p PanicPolicy) Option {
	return func(cfg *contextConfig) {
		cfg.panicPolicy = p
	}
}

// WithEmitter sets the observability sink for transaction and node events.
// Defaults to emit.NewNullEmitter().
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *contextConfig) {
		cfg.emitter = e
	}
}

// WithMetrics attaches Prometheus metrics collection to the Context.
func WithMetrics(m *Metrics) Option {
	return func(cfg *contextConfig) {
		cfg.metrics = m
	}
}

// WithTracer attaches an OpenTelemetry tracer the Context uses directly,
// independent of whichever Emitter is configured: one "transaction" span
// per outermost Transaction commit/abort, one "listener_dispatch" span per
// delivered callback, and one "switch_rewire" span whenever a SwitchC or
// SwitchS node's dynamic upstream edge actually moves.
func WithTracer(t trace.Tracer) Option {
	return func(cfg *contextConfig) {
		cfg.tracer = t
	}
}
