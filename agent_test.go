package spanz

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
)

func TestAgentRootOnly(t *testing.T) {
	h := newHarness(t)
	slot := NewSlot()

	root := h.startRoot(slot, "A", "B", "C")
	require.True(t, slot.Occupied())
	root.End()

	records := h.collector.Export()
	require.Len(t, records, 1)

	want := Record{
		TraceID:   "0000000000000001",
		ID:        "0000000000000001",
		Name:      "C",
		Timestamp: uint64(testEpoch.UnixMicro()),
		Duration:  1,
	}
	if diff := cmp.Diff(want, records[0]); diff != "" {
		t.Errorf("root record mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, records[0].HasParent())
	assert.False(t, slot.Occupied(), "ending the root clears the slot")
}

func TestAgentRootWithServiceCall(t *testing.T) {
	h := newHarness(t)
	slot := NewSlot()

	root := h.startRoot(slot, "A", "B", "C")
	call := slot.Get().StartServiceCallEntry("X", "Y", StaticMessage("Z"), "")
	call.End()
	root.End()

	records := h.collector.Export()
	require.Len(t, records, 2)

	child, parent := records[0], records[1]
	assert.Equal(t, "Z", child.Name)
	assert.Equal(t, parent.ID, child.ParentID)
	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.NotEqual(t, parent.ID, child.ID)
}

func TestAgentRootWithManySiblings(t *testing.T) {
	h := newHarness(t)
	slot := NewSlot()

	root := h.startRoot(slot, "A", "B", "C")
	for i := 0; i < 10; i++ {
		slot.Get().StartServiceCallEntry("X", "Y", StaticMessage("Z"), "").End()
	}
	root.End()

	records := h.collector.Export()
	require.Len(t, records, 11)

	rootRec := records[10]
	ids := make(map[string]struct{})
	for _, rec := range records {
		assert.Equal(t, rootRec.TraceID, rec.TraceID)
		ids[rec.ID] = struct{}{}
	}
	assert.Len(t, ids, 11)
	for _, rec := range records[:10] {
		assert.Equal(t, rootRec.ID, rec.ParentID)
	}
}

func TestAgentRootIdentity(t *testing.T) {
	collector := NewSyncCollector("random")
	defer collector.Close()
	agent := New(collector)

	for i := 0; i < 50; i++ {
		slot := NewSlot()
		root := agent.StartTransaction("A", "B", StaticMessage("C"), "", slot, 0, 0)
		sc := slot.Get().SpanContext()
		assert.Equal(t, sc.TraceID(), sc.SpanID())
		assert.Zero(t, sc.ParentSpanID())
		root.End()
	}

	for _, rec := range collector.Export() {
		assert.Equal(t, rec.TraceID, rec.ID)
		assert.Empty(t, rec.ParentID)
	}
}

func TestAgentReentrantStart(t *testing.T) {
	h := newHarness(t)
	slot := NewSlot()

	root := h.startRoot(slot, "A", "B", "C")
	installed := slot.Get()

	again := h.startRoot(slot, "D", "E", "F")
	assert.Same(t, NopEntry, again)
	assert.Same(t, installed, slot.Get(), "re-entrant start keeps the installed context")

	nested := installed.StartTransaction("D", "E", StaticMessage("F"), "")
	assert.Same(t, NopEntry, nested)

	again.End()
	nested.End()
	assert.Same(t, installed, slot.Get())

	root.End()
	assert.Len(t, h.collector.Export(), 1)
}

func TestAgentThreadContextSeeds(t *testing.T) {
	h := newHarness(t)
	slot := NewSlot()

	root := h.agent.StartTransaction("A", "B", StaticMessage("C"), "", slot, 7, 11)
	tc := slot.Get()

	assert.True(t, tc.IsInTransaction())
	assert.Same(t, slot, tc.Slot())
	assert.Equal(t, 7, tc.CurrentNestingGroupID())
	assert.Equal(t, 11, tc.CurrentSuppressionKeyID())

	tc.SetCurrentNestingGroupID(8)
	tc.SetCurrentSuppressionKeyID(12)
	assert.Equal(t, 8, tc.CurrentNestingGroupID())
	assert.Equal(t, 12, tc.CurrentSuppressionKeyID())

	assert.Nil(t, tc.RequestInfo())
	info := &RequestInfo{Method: "GET", URI: "/users"}
	tc.SetRequestInfo(info)
	assert.Same(t, info, tc.RequestInfo())

	root.End()
}

func TestAgentInertTransactionSetters(t *testing.T) {
	h := newHarness(t)
	slot := NewSlot()
	root := h.startRoot(slot, "A", "B", "C")
	tc := slot.Get()

	require.NotPanics(t, func() {
		tc.SetTransactionAsync()
		tc.SetTransactionOuter()
		tc.SetTransactionType("T", 1)
		tc.SetTransactionName("N", 1)
		tc.SetTransactionUser("U", 1)
		tc.AddTransactionAttribute("k", "v")
		tc.SetTransactionSlowThreshold(time.Second, 1)
		tc.SetTransactionError(assert.AnError)
		tc.SetTransactionErrorMessage("bad")
		tc.AddErrorEntry(assert.AnError)
		tc.AddErrorEntryMessage("bad")
		tc.StartTimer("timer").Stop()
	})
	root.End()

	records := h.collector.Export()
	require.Len(t, records, 1)
	assert.Equal(t, "C", records[0].Name)
	assert.Nil(t, records[0].Tags)
}

func TestAgentSetReporter(t *testing.T) {
	h := newHarness(t)
	slot := NewSlot()

	var swapped []Record
	h.agent.SetReporter(ReporterFunc(func(rec Record) { swapped = append(swapped, rec) }))

	h.startRoot(slot, "A", "B", "C").End()
	assert.Len(t, swapped, 1)
	assert.Zero(t, h.collector.Count())

	h.agent.SetReporter(nil)
	require.NotNil(t, h.agent.Reporter())
	require.NotPanics(t, h.startRoot(slot, "A", "B", "C").End)
	assert.Len(t, swapped, 1)
}

func TestAgentSetReporterConcurrent(t *testing.T) {
	first := NewSyncCollector("first")
	second := NewSyncCollector("second")
	defer first.Close()
	defer second.Close()

	agent := New(first)
	const flows = 20
	const perFlow = 50

	var wg sync.WaitGroup
	for i := 0; i < flows; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perFlow; j++ {
				slot := NewSlot()
				agent.StartTransaction("A", "B", StaticMessage("C"), "", slot, 0, 0).End()
			}
		}()
	}
	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			agent.SetReporter(second)
		} else {
			agent.SetReporter(first)
		}
	}
	wg.Wait()

	assert.Equal(t, flows*perFlow, first.Count()+second.Count(), "every record reaches exactly one reporter")
}

func TestAgentReporterPanicIsContained(t *testing.T) {
	h := newHarness(t)
	h.agent.SetReporter(ReporterFunc(func(Record) { panic("exporter down") }))

	var hooked []Record
	h.agent.SetPanicHook(func(rec Record, _ interface{}) { hooked = append(hooked, rec) })

	slot := NewSlot()
	root := h.startRoot(slot, "A", "B", "C")
	require.NotPanics(t, root.End)

	require.Len(t, hooked, 1)
	assert.Equal(t, "C", hooked[0].Name)
	assert.False(t, slot.Occupied())
	require.NotNil(t, h.hook.LastEntry())
	assert.Equal(t, "reporter panicked", h.hook.LastEntry().Message)
}

// switchIDs hands out sequential ids until fail is set, then panics.
type switchIDs struct {
	seqIDs
	fail atomic.Bool
}

func (s *switchIDs) NextID() uint64 {
	if s.fail.Load() {
		panic("id source exhausted")
	}
	return s.seqIDs.NextID()
}

func TestAgentStartFailureIsContained(t *testing.T) {
	h := newHarness(t)
	ids := &switchIDs{}
	agent := h.agent.WithIDSource(ids)
	ids.fail.Store(true)

	slot := NewSlot()
	var root *Entry
	require.NotPanics(t, func() {
		root = agent.StartTransaction("A", "B", StaticMessage("C"), "", slot, 0, 0)
	})
	assert.Same(t, NopEntry, root)
	assert.False(t, slot.Occupied(), "a failed start leaves the slot as it was")

	entry := h.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "span not started, start failed", entry.Message)
	assert.Equal(t, "root", entry.Data["kind"])
	assert.Contains(t, entry.Data[logrus.ErrorKey].(error).Error(), "id source exhausted")

	root.End()
	assert.Zero(t, h.collector.Count())
}

func TestAgentFactoryFailureIsContained(t *testing.T) {
	h := newHarness(t)
	ids := &switchIDs{}
	agent := h.agent.WithIDSource(ids)

	slot := NewSlot()
	root := agent.StartTransaction("A", "B", StaticMessage("C"), "", slot, 0, 0)
	tc := slot.Get()
	aux := tc.CreateAuxThreadContext()
	ids.fail.Store(true)

	starts := map[string]func() *Entry{
		"local":   func() *Entry { return tc.StartLocalSpan(StaticMessage("x"), "") },
		"call":    func() *Entry { return tc.StartServiceCallEntry("HTTP", "x", nil, "") },
		"out":     func() *Entry { return tc.StartOutgoingSpan("HTTP", StaticMessage("x"), "") },
		"query":   func() *Entry { return tc.StartQueryEntry("SQL", "x", nil, "") },
		"qspan":   func() *Entry { return tc.StartQuerySpan("SQL", "x", nil, "") },
		"aux":     func() *Entry { return aux.Start(NewSlot()) },
		"auxMark": func() *Entry { return aux.StartAndMarkAsyncTransactionComplete(NewSlot()) },
	}
	for name, start := range starts {
		t.Run(name, func(t *testing.T) {
			var e *Entry
			require.NotPanics(t, func() { e = start() })
			assert.Same(t, NopEntry, e)
			e.End()
		})
	}

	// The shared no-op entry was not touched by the failed starts.
	assert.Nil(t, NopEntry.MessageSupplier())
	assert.Same(t, tc, slot.Get())

	ids.fail.Store(false)
	root.End()
	records := h.collector.Export()
	require.Len(t, records, 1)
	assert.Equal(t, "C", records[0].Name)
}

func TestAgentNilSlotIsContained(t *testing.T) {
	h := newHarness(t)

	var e *Entry
	require.NotPanics(t, func() { e = h.startRoot(nil, "A", "B", "C") })
	assert.Same(t, NopEntry, e)

	slot := NewSlot()
	root := h.startRoot(slot, "A", "B", "C")
	aux := slot.Get().CreateAuxThreadContext()
	require.NotPanics(t, func() { e = aux.Start(nil) })
	assert.Same(t, NopEntry, e)
	assert.Equal(t, "aux-root", h.hook.LastEntry().Data["kind"])

	root.End()
	assert.Equal(t, 1, h.collector.Count())
}

func TestAgentWithClockKeepsReporter(t *testing.T) {
	collector := NewSyncCollector("clock")
	defer collector.Close()

	base := New(collector)
	clock := clockz.NewFakeClockAt(time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC))
	agent := base.WithClock(clock)
	require.NotSame(t, base, agent)

	slot := NewSlot()
	agent.StartTransaction("A", "B", StaticMessage("C"), "", slot, 0, 0).End()

	records := collector.Export()
	require.Len(t, records, 1)
	assert.Equal(t, uint64(time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC).UnixMicro()), records[0].Timestamp)

	// Swapping on the derived agent leaves the original alone.
	agent.SetReporter(nil)
	assert.Same(t, collector, base.Reporter())
}

func TestRecordJSON(t *testing.T) {
	h := newHarness(t)
	slot := NewSlot()

	root := h.startRoot(slot, "A", "B", "C")
	slot.Get().StartOutgoingSpan("HTTP", StaticMessage("GET /"), "").EndWithError(assert.AnError)
	root.End()

	records := h.collector.Export()
	require.Len(t, records, 2)

	var child, parent map[string]any
	raw, err := json.Marshal(records[0])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &child))
	raw, err = json.Marshal(records[1])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &parent))

	assert.Equal(t, "0000000000000001", child["traceId"])
	assert.Equal(t, "0000000000000001", child["parentId"])
	assert.Equal(t, "0000000000000002", child["id"])
	assert.Equal(t, map[string]any{"type": "HTTP", "error": assert.AnError.Error()}, child["tags"])

	assert.NotContains(t, parent, "parentId")
	assert.NotContains(t, parent, "tags")
	assert.Contains(t, parent, "timestamp")
	assert.EqualValues(t, 1, parent["duration"])
}
