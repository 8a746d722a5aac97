package engine

import (
	"context"
	"sync"

	"github.com/w3b2/w3b2-solana-go/types"
)

// queue is a single-consumer bounded event queue with the drop-oldest
// policy: a full queue evicts its head and the eviction count rides on the
// next popped record as Warning.Lagged. The policy is part of the delivery
// contract; a blocking alternative must not be substituted silently.
type queue struct {
	mu      sync.Mutex
	buf     []types.Record
	cap     int
	dropped uint64
	closed  bool
	err     error
	signal  chan struct{}
}

func newQueue(capacity int) *queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &queue{
		cap:    capacity,
		signal: make(chan struct{}, 1),
	}
}

// push enqueues a record, evicting the oldest when full. Returns the number
// of records evicted by this push (0 or 1). No-op after close.
func (q *queue) push(rec types.Record) uint64 {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0
	}
	var evicted uint64
	if len(q.buf) >= q.cap {
		q.buf = q.buf[1:]
		q.dropped++
		evicted = 1
	}
	q.buf = append(q.buf, rec)
	q.mu.Unlock()

	q.notify()
	return evicted
}

// close ends the queue. Buffered records remain poppable; once drained, pop
// returns err (or ErrStreamEnd when err is nil).
func (q *queue) close(err error) {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.err = err
	}
	q.mu.Unlock()
	q.notify()
}

func (q *queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// pop blocks until a record is available, the queue is drained and closed,
// or ctx is cancelled. Cancel-safe: no record is lost on cancellation.
func (q *queue) pop(ctx context.Context) (*types.Record, error) {
	for {
		q.mu.Lock()
		if len(q.buf) > 0 {
			rec := q.buf[0]
			q.buf = q.buf[1:]
			if q.dropped > 0 {
				rec.Warning.Lagged = q.dropped
				q.dropped = 0
			}
			q.mu.Unlock()
			return &rec, nil
		}
		if q.closed {
			err := q.err
			q.mu.Unlock()
			if err == nil {
				err = ErrStreamEnd
			}
			return nil, err
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.signal:
		}
	}
}
