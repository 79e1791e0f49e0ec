package spanz

import (
	"github.com/sirupsen/logrus"
)

// Reporter receives finished records. Report is fire-and-forget: it should
// not block, and spanz never retries or queues on its behalf.
type Reporter interface {
	Report(rec Record)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(rec Record)

// Report implements Reporter.
func (f ReporterFunc) Report(rec Record) { f(rec) }

// NopReporter discards every record.
var NopReporter Reporter = ReporterFunc(func(Record) {})

// ConsoleReporter logs every record at info level.
type ConsoleReporter struct {
	log logrus.FieldLogger
}

// NewConsoleReporter creates a reporter logging to log, or to the standard
// logrus logger when log is nil.
func NewConsoleReporter(log logrus.FieldLogger) *ConsoleReporter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ConsoleReporter{log: log}
}

// Report implements Reporter.
func (c *ConsoleReporter) Report(rec Record) {
	fields := logrus.Fields{
		"trace_id":  rec.TraceID,
		"id":        rec.ID,
		"name":      rec.Name,
		"timestamp": rec.Timestamp,
		"duration":  rec.Duration,
	}
	if rec.HasParent() {
		fields["parent_id"] = rec.ParentID
	}
	for k, v := range rec.Tags {
		fields["tag."+k] = v
	}
	c.log.WithFields(fields).Info("span")
}
