package spanz

// AuxThreadContext continues a flow on another goroutine. It is immutable
// and may be started any number of times, once per destination slot.
type AuxThreadContext struct {
	agent       *Agent
	requestInfo *RequestInfo
	parent      SpanContext
}

// Parent returns the captured span context.
func (a *AuxThreadContext) Parent() SpanContext { return a.parent }

// Start installs a child of the captured span into slot and returns an entry
// whose End clears the slot again. Entries started on the installed context
// report the captured span as their parent. If slot is already occupied the
// occupant is kept and NopEntry is returned, as it is when the start fails.
func (a *AuxThreadContext) Start(slot *Slot) *Entry {
	return a.start(slot, false)
}

// StartAndMarkAsyncTransactionComplete is Start, additionally marking the
// resulting (or already installed) context as async complete.
func (a *AuxThreadContext) StartAndMarkAsyncTransactionComplete(slot *Slot) *Entry {
	return a.start(slot, true)
}

func (a *AuxThreadContext) start(slot *Slot, completeAsync bool) (e *Entry) {
	installed := false
	defer func() {
		if r := recover(); r != nil {
			if installed {
				slot.Clear()
			}
			a.agent.startFailed(r, KindAuxRoot)
			e = NopEntry
		}
	}()

	if tc := slot.Get(); tc != nil {
		// Pooled worker still inside a flow; do not overwrite it.
		if completeAsync {
			tc.SetTransactionAsyncComplete()
		}
		return NopEntry
	}

	sc := NewChildSpanContext(a.parent, a.agent.ids)
	tc := newThreadContext(a.agent, slot, sc, a.requestInfo, 0, 0)
	// The continuation emits no record, so entries hang off the captured span.
	tc.entryParent = a.parent
	slot.Set(tc)
	installed = true
	if completeAsync {
		tc.SetTransactionAsyncComplete()
	}

	e = a.agent.newEntry(KindAuxRoot, sc, "", "")
	e.slot = slot
	return e
}
