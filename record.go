package spanz

import (
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/openzipkin/zipkin-go/model"
)

// Record is the exporter-facing form of a finished entry.
// Timestamp and Duration are in microseconds; Duration is at least 1.
//
//nolint:govet // Field order follows the wire format
type Record struct {
	TraceID   string         `json:"traceId"`
	ParentID  string         `json:"parentId,omitempty"`
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Timestamp uint64         `json:"timestamp"`
	Duration  uint64         `json:"duration"`
	Tags      map[Tag]string `json:"tags,omitempty"`
}

// HasParent reports whether the record carries a parent id.
func (r Record) HasParent() bool {
	return r.ParentID != ""
}

// SpanModel converts the record to a zipkin-go span model.
func (r Record) SpanModel() (model.SpanModel, error) {
	traceID, err := model.TraceIDFromHex(r.TraceID)
	if err != nil {
		return model.SpanModel{}, errors.Wrapf(err, "trace id %q", r.TraceID)
	}
	id, err := parseHexID(r.ID)
	if err != nil {
		return model.SpanModel{}, errors.Wrapf(err, "span id %q", r.ID)
	}

	sc := model.SpanContext{
		TraceID: traceID,
		ID:      id,
	}
	if r.ParentID != "" {
		parentID, err := parseHexID(r.ParentID)
		if err != nil {
			return model.SpanModel{}, errors.Wrapf(err, "parent id %q", r.ParentID)
		}
		sc.ParentID = &parentID
	}

	return model.SpanModel{
		SpanContext: sc,
		Name:        r.Name,
		Timestamp:   time.UnixMicro(int64(r.Timestamp)),
		Duration:    time.Duration(r.Duration) * time.Microsecond,
		Tags:        r.Tags,
	}, nil
}

func parseHexID(s string) (model.ID, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, errors.New("zero id")
	}
	return model.ID(v), nil
}
