// Package spanz is the in-process span engine of an instrumentation agent.
//
// spanz is driven by a weaving engine that calls into it at the entry and
// exit of instrumented methods. It keeps the active trace context of each
// logical flow, assigns identifiers, times every unit of work and hands a
// Zipkin-shaped Record to a Reporter when the work ends.
//
// Core Components:
//   - Agent: Engine-facing entry point. Starts transactions and owns the reporter.
//   - Slot: Single-occupancy carrier of the active ThreadContext for one flow.
//   - ThreadContext: Per-flow state with factories for every entry kind.
//   - Entry: A timed unit of work that emits one Record when ended.
//   - AuxThreadContext: Captured parent identity used to continue a flow on another goroutine.
//   - Reporter: Receives finished records.
//
// Basic Usage:
//
//	agent := spanz.New(collector)
//
//	slot := spanz.NewSlot()
//	root := agent.StartTransaction("Web", "/users", spanz.StaticMessage("GET /users"),
//		"http request", slot, 0, 0)
//
//	call := slot.Get().StartServiceCallEntry("HTTP", "GET /profile",
//		spanz.StaticMessage("GET http://profile/users/1"), "http client request")
//	call.End()
//
//	root.End() // Clears the slot.
//
// Continuing a flow on another goroutine:
//
//	aux := slot.Get().CreateAuxThreadContext()
//	go func() {
//		workerSlot := spanz.NewSlot()
//		entry := aux.Start(workerSlot)
//		defer entry.End()
//		// workerSlot.Get() is a child of the originating span.
//	}()
//
// Thread Safety:
//
// Agent and IDSource implementations are safe for concurrent use. Slots,
// ThreadContexts and Entries belong to one flow and are NOT synchronized;
// hand work to another goroutine through AuxThreadContext only.
//
// Caller Contract:
//
// Ending an entry twice, ending it from a flow other than the one that
// started it, or starting a transaction into a slot that another goroutine
// is using are caller errors. They are not detected: a second End emits a
// second record.
package spanz

// Tag represents a record tag key.
type Tag = string

// Tag keys set by the engine.
const (
	TypeTag  Tag = "type"
	ErrorTag Tag = "error"
)

// TimerName identifies an engine timer. Accepted for the engine's call
// signature and otherwise ignored.
type TimerName = string

// Timer is the engine's timer handle.
type Timer interface {
	Stop()
}

type nopTimer struct{}

func (nopTimer) Stop() {}

// NopTimer is returned wherever the engine asks for a timer.
var NopTimer Timer = nopTimer{}
