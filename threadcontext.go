package spanz

import "time"

// ThreadContext is the state of one logical flow while it is installed in a
// Slot. The engine calls its factories at every instrumented boundary.
// Not safe for concurrent use.
//
//nolint:govet // Field order groups references before scalars
type ThreadContext struct {
	agent            *Agent
	slot             *Slot
	requestInfo      *RequestInfo
	spanContext      SpanContext
	entryParent      SpanContext
	nestingGroupID   int
	suppressionKeyID int
	asyncComplete    bool
}

func newThreadContext(agent *Agent, slot *Slot, sc SpanContext, info *RequestInfo,
	nestingGroupID, suppressionKeyID int) *ThreadContext {
	return &ThreadContext{
		agent:            agent,
		slot:             slot,
		spanContext:      sc,
		entryParent:      sc,
		requestInfo:      info,
		nestingGroupID:   nestingGroupID,
		suppressionKeyID: suppressionKeyID,
	}
}

// Slot returns the slot this context is installed in.
func (tc *ThreadContext) Slot() *Slot { return tc.slot }

// SpanContext returns the identity of the span that owns this flow.
func (tc *ThreadContext) SpanContext() SpanContext { return tc.spanContext }

// EntryParent returns the span that entries started on this flow report as
// their parent. On a continued flow it is the captured span, since the
// continuation itself emits no record.
func (tc *ThreadContext) EntryParent() SpanContext { return tc.entryParent }

// IsInTransaction always reports true: a ThreadContext exists only inside one.
func (*ThreadContext) IsInTransaction() bool { return true }

// StartTransaction returns NopEntry. A flow that already has a context keeps
// it; nested transactions are not started.
func (*ThreadContext) StartTransaction(_, _ string, _ MessageSupplier, _ TimerName) *Entry {
	return NopEntry
}

// StartLocalSpan starts an untagged child entry named by the supplier's text.
func (tc *ThreadContext) StartLocalSpan(supplier MessageSupplier, _ TimerName) *Entry {
	return tc.child(KindLocal, "", "", supplier, nil)
}

// StartServiceCallEntry starts a child entry for a call to another service.
// The record is named by the supplier's text, or text when supplier is nil,
// and tagged with typ.
func (tc *ThreadContext) StartServiceCallEntry(typ, text string, supplier MessageSupplier, _ TimerName) *Entry {
	return tc.child(KindServiceCall, typ, text, supplier, nil)
}

// StartOutgoingSpan starts a child span for an outbound call, tagged with typ.
func (tc *ThreadContext) StartOutgoingSpan(typ string, supplier MessageSupplier, _ TimerName) *Entry {
	return tc.child(KindOutgoing, typ, "", supplier, nil)
}

// StartQueryEntry starts a child entry named prefix + text + suffix, where
// prefix and suffix come from the supplier at finish time.
func (tc *ThreadContext) StartQueryEntry(queryType, text string, supplier QueryMessageSupplier, _ TimerName) *Entry {
	return tc.child(KindQueryEntry, queryType, text, nil, supplier)
}

// StartQuerySpan starts a child span named by the query text, tagged with the
// query type and every non-nil detail of the supplier's message.
func (tc *ThreadContext) StartQuerySpan(queryType, text string, supplier QueryMessageSupplier, _ TimerName) *Entry {
	return tc.child(KindQuerySpan, queryType, text, nil, supplier)
}

// StartTimer returns a no-op timer.
func (*ThreadContext) StartTimer(_ TimerName) Timer {
	return NopTimer
}

// child builds an entry one level below the flow's entry parent. The flow's
// own span context is left unchanged. A failure while building yields
// NopEntry.
func (tc *ThreadContext) child(kind Kind, typ, text string, message MessageSupplier, query QueryMessageSupplier) (e *Entry) {
	defer func() {
		if r := recover(); r != nil {
			tc.agent.startFailed(r, kind)
			e = NopEntry
		}
	}()

	e = tc.agent.newEntry(kind, NewChildSpanContext(tc.entryParent, tc.agent.ids), typ, text)
	e.message = message
	e.query = query
	return e
}

// CreateAuxThreadContext captures this flow's entry parent and request info
// so the flow can be continued elsewhere.
func (tc *ThreadContext) CreateAuxThreadContext() *AuxThreadContext {
	return &AuxThreadContext{
		agent:       tc.agent,
		parent:      tc.entryParent,
		requestInfo: tc.requestInfo,
	}
}

// RequestInfo returns the request metadata, or nil.
func (tc *ThreadContext) RequestInfo() *RequestInfo { return tc.requestInfo }

// SetRequestInfo replaces the request metadata.
func (tc *ThreadContext) SetRequestInfo(info *RequestInfo) { tc.requestInfo = info }

// CurrentNestingGroupID returns the engine's nesting group.
func (tc *ThreadContext) CurrentNestingGroupID() int { return tc.nestingGroupID }

// SetCurrentNestingGroupID stores the engine's nesting group.
func (tc *ThreadContext) SetCurrentNestingGroupID(id int) { tc.nestingGroupID = id }

// CurrentSuppressionKeyID returns the engine's suppression key.
func (tc *ThreadContext) CurrentSuppressionKeyID() int { return tc.suppressionKeyID }

// SetCurrentSuppressionKeyID stores the engine's suppression key.
func (tc *ThreadContext) SetCurrentSuppressionKeyID(id int) { tc.suppressionKeyID = id }

// SetTransactionAsyncComplete marks the flow's asynchronous work as done.
func (tc *ThreadContext) SetTransactionAsyncComplete() { tc.asyncComplete = true }

// AsyncComplete reports whether SetTransactionAsyncComplete was called.
func (tc *ThreadContext) AsyncComplete() bool { return tc.asyncComplete }

// Transaction metadata is not part of the record format. The setters below
// exist for the engine's contract and do nothing.

func (*ThreadContext) SetTransactionAsync() {}
func (*ThreadContext) SetTransactionOuter() {}
func (*ThreadContext) SetTransactionType(_ string, _ int) {}
func (*ThreadContext) SetTransactionName(_ string, _ int) {}
func (*ThreadContext) SetTransactionUser(_ string, _ int) {}
func (*ThreadContext) AddTransactionAttribute(_, _ string) {}
func (*ThreadContext) SetTransactionSlowThreshold(_ time.Duration, _ int) {}
func (*ThreadContext) SetTransactionError(_ error) {}
func (*ThreadContext) SetTransactionErrorMessage(_ string) {}
func (*ThreadContext) AddErrorEntry(_ error) {}
func (*ThreadContext) AddErrorEntryMessage(_ string) {}
