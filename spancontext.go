package spanz

import (
	"encoding/binary"

	"github.com/openzipkin/zipkin-go/model"
	"go.opentelemetry.io/otel/trace"
)

// SpanContext locates a span within a trace.
// It is immutable; hex renderings are computed once at construction.
type SpanContext struct {
	traceIDHigh  uint64
	traceID      uint64
	parentSpanID uint64
	spanID       uint64

	traceIDHex  string
	parentIDHex string
	spanIDHex   string
}

// NewSpanContext builds a SpanContext from raw identifiers.
// A zero parentSpanID means the span has no parent.
func NewSpanContext(traceIDHigh, traceID, parentSpanID, spanID uint64) SpanContext {
	sc := SpanContext{
		traceIDHigh:  traceIDHigh,
		traceID:      traceID,
		parentSpanID: parentSpanID,
		spanID:       spanID,
		traceIDHex:   model.TraceID{High: traceIDHigh, Low: traceID}.String(),
		spanIDHex:    model.ID(spanID).String(),
	}
	if parentSpanID != 0 {
		sc.parentIDHex = model.ID(parentSpanID).String()
	}
	return sc
}

// NewRootSpanContext starts a new trace. The single draw serves as both the
// trace id and the span id.
func NewRootSpanContext(ids IDSource) SpanContext {
	id := ids.NextID()
	return NewSpanContext(0, id, 0, id)
}

// NewChildSpanContext creates a span in parent's trace whose parent is parent.
func NewChildSpanContext(parent SpanContext, ids IDSource) SpanContext {
	return NewSpanContext(parent.traceIDHigh, parent.traceID, parent.spanID, ids.NextID())
}

// TraceIDHigh returns the upper 64 bits of a 128-bit trace id, or zero.
func (sc SpanContext) TraceIDHigh() uint64 { return sc.traceIDHigh }

// TraceID returns the lower 64 bits of the trace id.
func (sc SpanContext) TraceID() uint64 { return sc.traceID }

// ParentSpanID returns the parent's span id, or zero for a root.
func (sc SpanContext) ParentSpanID() uint64 { return sc.parentSpanID }

// SpanID returns the span id.
func (sc SpanContext) SpanID() uint64 { return sc.spanID }

// IsRoot reports whether the span has no parent.
func (sc SpanContext) IsRoot() bool { return sc.parentSpanID == 0 }

// TraceIDString returns the trace id as 16 lowercase hex chars, or 32 when
// the trace id is 128 bits wide.
func (sc SpanContext) TraceIDString() string { return sc.traceIDHex }

// ParentSpanIDString returns the parent id as 16 lowercase hex chars, or ""
// for a root.
func (sc SpanContext) ParentSpanIDString() string { return sc.parentIDHex }

// SpanIDString returns the span id as 16 lowercase hex chars.
func (sc SpanContext) SpanIDString() string { return sc.spanIDHex }

// OTel converts the span context into its OpenTelemetry form so that
// OTel-instrumented libraries running inside the flow see this span as their
// (remote, sampled) parent.
func (sc SpanContext) OTel() trace.SpanContext {
	var tid trace.TraceID
	binary.BigEndian.PutUint64(tid[:8], sc.traceIDHigh)
	binary.BigEndian.PutUint64(tid[8:], sc.traceID)

	var sid trace.SpanID
	binary.BigEndian.PutUint64(sid[:], sc.spanID)

	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
}
