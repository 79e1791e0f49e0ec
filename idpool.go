package spanz

import (
	"math/rand/v2"
	"sync"
)

// IDSource generates span and trace identifiers.
// Implementations must be safe for concurrent use and never return zero.
type IDSource interface {
	NextID() uint64
}

type randomIDs struct{}

// RandomIDs returns the default IDSource.
// Draws are uniform over 64 bits and resampled while zero, which is reserved
// for "no parent".
func RandomIDs() IDSource {
	return randomIDs{}
}

func (randomIDs) NextID() uint64 {
	return nextRandomID(rand.Uint64)
}

func nextRandomID(draw func() uint64) uint64 {
	id := draw()
	for id == 0 {
		id = draw()
	}
	return id
}

// IDPool keeps a buffer of pre-generated IDs filled by a background goroutine.
// NextID falls back to the factory when the buffer is drained.
type IDPool struct {
	factory func() uint64
	ids     chan uint64
	stopCh  chan struct{}
	mu      sync.Mutex
	closed  bool
}

// NewIDPool creates a new ID pool with the specified capacity.
// A nil factory draws from RandomIDs.
func NewIDPool(capacity int, factory func() uint64) *IDPool {
	if factory == nil {
		factory = RandomIDs().NextID
	}
	pool := &IDPool{
		ids:     make(chan uint64, capacity),
		factory: factory,
		stopCh:  make(chan struct{}),
	}
	go pool.refill()
	return pool
}

// NextID implements IDSource.
func (p *IDPool) NextID() uint64 {
	select {
	case id := <-p.ids:
		return id
	default:
		// Pool empty, generate directly.
		return p.factory()
	}
}

// refill maintains the pool by generating IDs in background.
func (p *IDPool) refill() {
	for {
		select {
		case <-p.stopCh:
			return
		default:
			select {
			case p.ids <- p.factory():
			case <-p.stopCh:
				return
			}
		}
	}
}

// Close stops the refill goroutine. NextID keeps working after Close,
// draining what is buffered and then calling the factory directly.
func (p *IDPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		close(p.stopCh)
		p.closed = true
	}
}
