package spanz

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector is a Reporter that buffers records for batch export.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field alignment optimized for readability over memory efficiency
type Collector struct {
	records      []Record
	recordsCh    chan Record
	stopCh       chan struct{}
	done         chan struct{}
	droppedCount atomic.Int64
	name         string
	mu           sync.Mutex
	closeMu      sync.RWMutex // Orders reports before the close that stops the loop.
	closeOnce    sync.Once
	closed       atomic.Bool
	syncMode     atomic.Bool // Bypass channel for synchronous collection.
}

// NewCollector creates a new collector with the specified name and buffer size.
func NewCollector(name string, bufferSize int) *Collector {
	c := &Collector{
		name:      name,
		records:   make([]Record, 0, 8),
		recordsCh: make(chan Record, bufferSize),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	go c.start()
	return c
}

// NewSyncCollector creates a collector that buffers records on the
// reporting goroutine. Records are visible to Export as soon as Report
// returns, which keeps tests deterministic.
func NewSyncCollector(name string) *Collector {
	c := NewCollector(name, 1)
	c.SetSyncMode(true)
	return c
}

// Name returns the collector's name.
func (c *Collector) Name() string {
	return c.name
}

// start runs the collector's main loop, receiving records from the channel.
func (c *Collector) start() {
	defer close(c.done)

	for {
		select {
		case <-c.stopCh:
			// Drain remaining records before shutdown.
			for {
				select {
				case rec := <-c.recordsCh:
					c.buffer(rec)
				default:
					return
				}
			}
		case rec := <-c.recordsCh:
			c.buffer(rec)
		}
	}
}

// Close stops the collector, draining queued records into the buffer.
// Records reported after Close are dropped and counted.
func (c *Collector) Close() {
	c.closeOnce.Do(func() {
		c.closeMu.Lock()
		c.closed.Store(true)
		close(c.stopCh)
		c.closeMu.Unlock()

		select {
		case <-c.done:
		case <-time.After(100 * time.Millisecond):
		}
	})
}

// Report implements Reporter with backpressure protection.
// If the internal channel is full the record is dropped and the drop counter
// is incremented.
func (c *Collector) Report(rec Record) {
	// A report that passes the closed check enqueues before Close stops the
	// loop, so the drain picks it up.
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()

	if c.closed.Load() {
		c.droppedCount.Add(1)
		return
	}

	// Copy tags so later mutation by the caller cannot reach the buffer.
	if rec.Tags != nil {
		tags := make(map[Tag]string, len(rec.Tags))
		for k, v := range rec.Tags {
			tags[k] = v
		}
		rec.Tags = tags
	}

	if c.syncMode.Load() {
		c.buffer(rec)
		return
	}

	select {
	case c.recordsCh <- rec:
	default:
		c.droppedCount.Add(1)
	}
}

// buffer appends a record to the internal buffer.
func (c *Collector) buffer(rec Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.records) >= cap(c.records) {
		currentCap := cap(c.records)
		var newCap int
		if currentCap < 1024 {
			newCap = currentCap * 2
		} else {
			// Grow by 50% for large buffers to avoid excessive memory usage.
			newCap = currentCap + currentCap/2
		}
		if newCap < 32 {
			newCap = 32
		}
		grown := make([]Record, len(c.records), newCap)
		copy(grown, c.records)
		c.records = grown
	}
	c.records = append(c.records, rec)
}

// Export returns all buffered records in report order and clears the buffer.
// The returned slice is safe to modify without affecting the collector.
func (c *Collector) Export() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.records) == 0 {
		return nil
	}

	result := make([]Record, len(c.records))
	copy(result, c.records)

	// Shrink only when very oversized to avoid allocation churn.
	if cap(c.records) > 256 && len(c.records) < cap(c.records)/8 {
		newCap := cap(c.records) / 4
		if newCap < 32 {
			newCap = 32
		}
		c.records = make([]Record, 0, newCap)
	} else {
		c.records = c.records[:0]
	}

	return result
}

// Count returns the current number of buffered records.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// DroppedCount returns the total number of records dropped due to
// backpressure or after Close.
func (c *Collector) DroppedCount() int64 {
	return c.droppedCount.Load()
}

// SetSyncMode enables synchronous collection.
// When enabled, records are buffered directly without using the channel.
func (c *Collector) SetSyncMode(sync bool) {
	c.syncMode.Store(sync)
}

// Reset clears all buffered records and resets the drop counter.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = c.records[:0]
	c.droppedCount.Store(0)
}
