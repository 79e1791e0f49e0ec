package spanz

import (
	"io"
	"log"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/openzipkin/zipkin-go/reporter"
	zipkinhttp "github.com/openzipkin/zipkin-go/reporter/http"
	"github.com/sirupsen/logrus"
)

// ZipkinReporter forwards records to a zipkin-go reporter, which owns
// batching and transport.
type ZipkinReporter struct {
	out    reporter.Reporter
	log    logrus.FieldLogger
	closer io.Closer
}

// NewZipkinReporter wraps out. Records that cannot be converted are logged
// to log and dropped.
func NewZipkinReporter(out reporter.Reporter, log logrus.FieldLogger) *ZipkinReporter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ZipkinReporter{out: out, log: log}
}

// NewZipkinHTTPReporter posts batches of up to batchSize spans to a Zipkin v2
// endpoint such as http://127.0.0.1:9411/api/v2/spans. Transport errors are
// written to logger at warn level.
func NewZipkinHTTPReporter(endpoint string, batchSize int, batchInterval time.Duration, logger *logrus.Logger) *ZipkinReporter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	w := logger.WriterLevel(logrus.WarnLevel)

	opts := []zipkinhttp.ReporterOption{
		zipkinhttp.Logger(log.New(w, "", 0)),
	}
	if batchSize > 0 {
		opts = append(opts, zipkinhttp.BatchSize(batchSize))
	}
	if batchInterval > 0 {
		opts = append(opts, zipkinhttp.BatchInterval(batchInterval))
	}

	z := NewZipkinReporter(zipkinhttp.NewReporter(endpoint, opts...), logger)
	z.closer = w
	return z
}

// Report implements Reporter.
func (z *ZipkinReporter) Report(rec Record) {
	sm, err := rec.SpanModel()
	if err != nil {
		z.log.WithError(err).WithField("name", rec.Name).Warn("dropping span, not a valid zipkin span")
		return
	}
	z.out.Send(sm)
}

// Close flushes and closes the underlying reporter.
func (z *ZipkinReporter) Close() error {
	err := z.out.Close()
	if z.closer != nil {
		err = errors.CombineErrors(err, z.closer.Close())
	}
	return errors.Wrap(err, "closing zipkin reporter")
}
