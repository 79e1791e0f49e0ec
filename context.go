package spanz

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// slotKeyType is a private type for context keys to avoid collisions.
type slotKeyType string

const slotKey slotKeyType = "spanz"

// WithSlot returns a context carrying slot, for engines that pass a
// context.Context between their start and end calls.
func WithSlot(ctx context.Context, slot *Slot) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, slotKey, slot)
}

// SlotFromContext returns the slot stored by WithSlot, or nil.
func SlotFromContext(ctx context.Context) *Slot {
	if ctx == nil {
		return nil
	}
	slot, _ := ctx.Value(slotKey).(*Slot)
	return slot
}

// ThreadContextFromContext returns the occupant of the context's slot, or nil.
func ThreadContextFromContext(ctx context.Context) *ThreadContext {
	if slot := SlotFromContext(ctx); slot != nil {
		return slot.Get()
	}
	return nil
}

// ContextWithThreadContext stores tc's slot in ctx together with tc's entry
// parent as the OpenTelemetry remote parent, so OTel-instrumented code called
// from the flow joins the same trace under a span that is reported.
func ContextWithThreadContext(ctx context.Context, tc *ThreadContext) context.Context {
	ctx = WithSlot(ctx, tc.Slot())
	return trace.ContextWithRemoteSpanContext(ctx, tc.EntryParent().OTel())
}
