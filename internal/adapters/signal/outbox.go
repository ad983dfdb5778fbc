package signal

import (
	"sync"

	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/metrics"
)

// outbox is a bounded per-connection send queue. When it is full, lossy
// frames give way first: the oldest queued one is dropped to make room, or
// the incoming one is shed. A full queue holding only lossless frames means
// the peer cannot keep up. So does shedding more than maxShed frames
// between two writer drains.
type outbox struct {
	mu      sync.Mutex
	queue   []core.Frame
	limit   int
	maxShed int
	strikes int
	closed  bool

	// ready holds a token while the queue is non-empty.
	ready chan struct{}
}

func newOutbox(limit, maxShed int) *outbox {
	if limit <= 0 {
		limit = 1
	}
	return &outbox{
		queue:   make([]core.Frame, 0, limit),
		limit:   limit,
		maxShed: maxShed,
		ready:   make(chan struct{}, 1),
	}
}

func (o *outbox) push(f core.Frame) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return core.ErrConnClosed
	}

	if len(o.queue) < o.limit {
		o.queue = append(o.queue, f)
		o.notify()
		return nil
	}

	i := o.oldestLossy()
	switch {
	case i >= 0:
		o.queue = append(o.queue[:i], o.queue[i+1:]...)
		o.queue = append(o.queue, f)
		metrics.FramesShed.Inc()
		o.strikes++
		if o.overShed() {
			return core.ErrBackpressure
		}
		o.notify()
		return nil
	case f.Lossy:
		o.strikes++
		if o.overShed() {
			return core.ErrBackpressure
		}
		return core.ErrShed
	default:
		return core.ErrBackpressure
	}
}

// drain hands every queued frame to the writer.
func (o *outbox) drain() []core.Frame {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.queue
	o.queue = make([]core.Frame, 0, o.limit)
	o.strikes = 0
	return out
}

func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.queue = nil
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

func (o *outbox) oldestLossy() int {
	for i, f := range o.queue {
		if f.Lossy {
			return i
		}
	}
	return -1
}

func (o *outbox) overShed() bool {
	return o.maxShed > 0 && o.strikes > o.maxShed
}

func (o *outbox) notify() {
	select {
	case o.ready <- struct{}{}:
	default:
	}
}
