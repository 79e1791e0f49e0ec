package spanz

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/zoobzio/clockz"
)

// reporterHolder lets the reporter interface live behind an atomic pointer.
type reporterHolder struct {
	Reporter
}

// Agent is the entry point the weaving engine calls to start transactions.
// It owns the reporter, the id source, the clock and the logger shared by
// every flow it starts. Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order optimized for functionality over memory
type Agent struct {
	reporter  atomic.Pointer[reporterHolder]
	ids       IDSource
	clock     clockz.Clock
	log       logrus.FieldLogger
	panicHook func(rec Record, r interface{})
}

// New creates an agent reporting to reporter.
// Uses the real clock, RandomIDs and the standard logrus logger.
// A nil reporter discards records.
func New(reporter Reporter) *Agent {
	a := &Agent{
		ids:   RandomIDs(),
		clock: clockz.RealClock,
		log:   logrus.StandardLogger(),
	}
	a.SetReporter(reporter)
	return a
}

func (a *Agent) clone() *Agent {
	c := &Agent{
		ids:       a.ids,
		clock:     a.clock,
		log:       a.log,
		panicHook: a.panicHook,
	}
	c.reporter.Store(a.reporter.Load())
	return c
}

// WithClock returns a new agent with the specified clock.
// Enables clock injection for deterministic testing.
func (a *Agent) WithClock(clock clockz.Clock) *Agent {
	c := a.clone()
	c.clock = clock
	return c
}

// WithIDSource returns a new agent drawing identifiers from ids.
func (a *Agent) WithIDSource(ids IDSource) *Agent {
	c := a.clone()
	c.ids = ids
	return c
}

// WithLogger returns a new agent logging to log.
func (a *Agent) WithLogger(log logrus.FieldLogger) *Agent {
	c := a.clone()
	c.log = log
	return c
}

// SetPanicHook sets a function called when the reporter panics on a record.
// Must be set before the agent is shared between goroutines.
func (a *Agent) SetPanicHook(hook func(rec Record, r interface{})) {
	a.panicHook = hook
}

// SetReporter replaces the reporter. Finishing entries observe either the old
// or the new reporter, never a partial one. Nil discards records.
func (a *Agent) SetReporter(reporter Reporter) {
	if reporter == nil {
		reporter = NopReporter
	}
	a.reporter.Store(&reporterHolder{Reporter: reporter})
}

// Reporter returns the current reporter.
func (a *Agent) Reporter() Reporter {
	return a.reporter.Load().Reporter
}

// StartTransaction starts the root entry of a new trace and installs a fresh
// ThreadContext into slot; ending the entry clears the slot.
//
// If slot is already occupied the call is re-entrant: the installed context
// stays authoritative and NopEntry is returned. A failure while starting is
// logged, leaves slot as it was and also returns NopEntry.
func (a *Agent) StartTransaction(txType, txName string, supplier MessageSupplier, _ TimerName,
	slot *Slot, nestingGroupID, suppressionKeyID int) (e *Entry) {
	installed := false
	defer func() {
		if r := recover(); r != nil {
			if installed {
				slot.Clear()
			}
			a.startFailed(r, KindRoot)
			e = NopEntry
		}
	}()

	if slot.Occupied() {
		return NopEntry
	}

	sc := NewRootSpanContext(a.ids)
	slot.Set(newThreadContext(a, slot, sc, nil, nestingGroupID, suppressionKeyID))
	installed = true

	e = a.newEntry(KindRoot, sc, txType, txName)
	e.message = supplier
	e.slot = slot
	return e
}

// startFailed logs a recovered panic from building an entry.
func (a *Agent) startFailed(r interface{}, kind Kind) {
	a.log.WithError(panicError(r)).
		WithField("kind", kind.String()).
		Warn("span not started, start failed")
}

// report hands rec to the current reporter. The reporter is external code;
// a panic is logged and swallowed so the instrumented call never sees it.
func (a *Agent) report(rec Record) {
	defer func() {
		if r := recover(); r != nil {
			a.log.WithError(panicError(r)).
				WithField("span_id", rec.ID).
				WithField("trace_id", rec.TraceID).
				Error("reporter panicked")
			if a.panicHook != nil {
				a.panicHook(rec, r)
			}
		}
	}()
	a.reporter.Load().Report(rec)
}

func (a *Agent) nowMicros() uint64 {
	us := a.clock.Now().UnixMicro()
	if us < 0 {
		return 0
	}
	return uint64(us)
}

func (a *Agent) logger() logrus.FieldLogger {
	return a.log
}
