package spanz

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/zoobzio/clockz"
)

// testEpoch is the fake clock's start, chosen so microsecond timestamps are
// easy to read in failures.
var testEpoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeClock interface {
	clockz.Clock
	Advance(d time.Duration)
}

// seqIDs hands out 1, 2, 3, ... so expected hex ids can be written down.
type seqIDs struct {
	next atomic.Uint64
}

func (s *seqIDs) NextID() uint64 {
	return s.next.Add(1)
}

type harness struct {
	agent     *Agent
	collector *Collector
	clock     fakeClock
	hook      *test.Hook
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	collector := NewSyncCollector("test")
	t.Cleanup(collector.Close)

	clock := clockz.NewFakeClockAt(testEpoch)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	agent := New(collector).
		WithClock(clock).
		WithIDSource(&seqIDs{}).
		WithLogger(logger)

	return &harness{
		agent:     agent,
		collector: collector,
		clock:     clock,
		hook:      hook,
	}
}

// startRoot starts a transaction the way the engine does in tests.
func (h *harness) startRoot(slot *Slot, txType, txName, message string) *Entry {
	return h.agent.StartTransaction(txType, txName, StaticMessage(message), "test timer", slot, 0, 0)
}
