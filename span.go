package spanz

import (
	"fmt"
	"time"
)

// Kind discriminates the entry variants. All kinds share one finish
// algorithm and differ only in how the record is named and tagged.
type Kind uint8

const (
	// KindNop is the inert entry returned when a start must not take effect.
	KindNop Kind = iota
	// KindRoot is the incoming span that owns its slot.
	KindRoot
	// KindAuxRoot re-establishes a flow on another goroutine. It owns its slot
	// and emits no record.
	KindAuxRoot
	KindLocal
	KindServiceCall
	KindOutgoing
	KindQueryEntry
	KindQuerySpan
)

var kindNames = [...]string{
	KindNop:         "nop",
	KindRoot:        "root",
	KindAuxRoot:     "aux-root",
	KindLocal:       "local",
	KindServiceCall: "service-call",
	KindOutgoing:    "outgoing",
	KindQueryEntry:  "query-entry",
	KindQuerySpan:   "query-span",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Entry is a unit of work started by the engine.
// Entries are NOT thread-safe and must be ended at most once, by the flow
// that started them.
//
//nolint:govet // Field order groups references before scalars
type Entry struct {
	agent   *Agent
	slot    *Slot
	message MessageSupplier
	query   QueryMessageSupplier
	ctx     SpanContext
	typ     string
	text    string
	start   uint64
	kind    Kind
}

// NopEntry is returned by starts that are not allowed to take effect, such
// as a transaction started into an occupied slot. Ending it does nothing.
var NopEntry = &Entry{kind: KindNop}

// failure carries what an error ending knows about the failure. The message
// is resolved inside the guarded record build.
type failure struct {
	err     error
	message string
}

func (a *Agent) newEntry(kind Kind, ctx SpanContext, typ, text string) *Entry {
	return &Entry{
		agent: a,
		ctx:   ctx,
		typ:   typ,
		text:  text,
		start: a.nowMicros(),
		kind:  kind,
	}
}

// Kind returns the entry variant.
func (e *Entry) Kind() Kind { return e.kind }

// SpanContext returns the entry's identity.
func (e *Entry) SpanContext() SpanContext { return e.ctx }

// StartMicros returns the start timestamp in microseconds since the epoch.
func (e *Entry) StartMicros() uint64 { return e.start }

// MessageSupplier returns the supplier given at start, or nil for query and
// auxiliary entries.
func (e *Entry) MessageSupplier() MessageSupplier { return e.message }

// End finishes the entry and reports its record.
func (e *Entry) End() {
	e.finish(nil)
}

// EndWithLocationStackTrace finishes the entry. Stack capture is not part of
// the record format; the threshold is ignored.
func (e *Entry) EndWithLocationStackTrace(_ time.Duration) {
	e.finish(nil)
}

// EndWithInfo finishes the entry. The informational error is not recorded.
func (e *Entry) EndWithInfo(_ error) {
	e.finish(nil)
}

// EndWithError finishes the entry and tags it with err's best message.
func (e *Entry) EndWithError(err error) {
	e.finish(&failure{err: err})
}

// EndWithErrorMessage finishes the entry and tags it with message.
func (e *Entry) EndWithErrorMessage(message string) {
	e.finish(&failure{message: message})
}

// EndWithErrorCause finishes the entry and tags it with err's best message,
// or message when err has none.
func (e *Entry) EndWithErrorCause(message string, err error) {
	e.finish(&failure{err: err, message: message})
}

// Extend returns a no-op timer.
func (*Entry) Extend() Timer { return NopTimer }

// ExtendSyncTimer returns a no-op timer.
func (*Entry) ExtendSyncTimer() Timer { return NopTimer }

// StopSyncTimer is a no-op.
func (*Entry) StopSyncTimer() {}

// RowNavigationAttempted is a no-op. Row counts are not recorded.
func (*Entry) RowNavigationAttempted() {}

// IncrementCurrRow is a no-op.
func (*Entry) IncrementCurrRow() {}

// SetCurrRow is a no-op.
func (*Entry) SetCurrRow(_ int64) {}

func (e *Entry) finish(f *failure) {
	switch e.kind {
	case KindNop:
		return
	case KindAuxRoot:
		e.slot.Clear()
		return
	case KindRoot:
		defer e.slot.Clear()
	}

	end := e.agent.nowMicros()
	rec, err := e.record(end, f)
	if err != nil {
		e.agent.logger().
			WithError(err).
			WithField("span_id", e.ctx.SpanIDString()).
			WithField("kind", e.kind.String()).
			Warn("dropping span, record could not be built")
		return
	}
	e.agent.report(rec)
}

// record assembles the wire record. Suppliers and errors belong to the
// instrumented application, so any panic they raise is returned as an error.
func (e *Entry) record(end uint64, f *failure) (rec Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()

	duration := uint64(1)
	if end > e.start && end-e.start > 1 {
		duration = end - e.start
	}

	rec = Record{
		TraceID:   e.ctx.TraceIDString(),
		ParentID:  e.ctx.ParentSpanIDString(),
		ID:        e.ctx.SpanIDString(),
		Timestamp: e.start,
		Duration:  duration,
	}

	switch e.kind {
	case KindQueryEntry:
		var qm QueryMessage
		if e.query != nil {
			qm = e.query.QueryMessage()
		}
		rec.Name = qm.Prefix + e.text + qm.Suffix
	case KindQuerySpan:
		// Query spans carry the type and every non-nil detail, empty or not.
		rec.Name = e.text
		rec.Tags = map[Tag]string{TypeTag: e.typ}
		if e.query != nil {
			for k, v := range e.query.QueryMessage().Detail {
				if v != nil {
					rec.Tags[k] = fmt.Sprint(v)
				}
			}
		}
	case KindOutgoing, KindServiceCall:
		rec.Name = e.messageText()
		e.tag(&rec, TypeTag, e.typ)
	default:
		rec.Name = e.messageText()
	}

	if f != nil {
		e.tag(&rec, ErrorTag, bestMessage(f.err, f.message))
	}
	return rec, nil
}

func (e *Entry) messageText() string {
	if e.message == nil {
		return e.text
	}
	return e.message.Message().Text
}

func (*Entry) tag(rec *Record, key Tag, value string) {
	if value == "" {
		return
	}
	if rec.Tags == nil {
		rec.Tags = make(map[Tag]string, 2)
	}
	rec.Tags[key] = value
}
