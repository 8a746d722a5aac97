package engine

import (
	"context"
	"sync"

	"github.com/w3b2/w3b2-solana-go/types"
)

// Listener is one subscriber's handle on a PDA subscription: an ordered,
// finite catch-up stream followed by an ordered live stream. Each stream is
// single-consumer. The handle must be closed explicitly; Close is idempotent
// and the last close on a subscription drains its workers.
type Listener struct {
	id      string
	pda     string
	catchup *queue
	live    *queue

	closeOnce sync.Once
	release   func(id string)
}

// NextCatchup returns the next historical event. It ends with ErrStreamEnd
// once catch-up completes, or a terminal subscription error.
func (l *Listener) NextCatchup(ctx context.Context) (*types.Record, error) {
	return l.catchup.pop(ctx)
}

// NextLive returns the next live event. It ends with ErrStreamEnd when the
// subscription closes, or a terminal subscription error.
func (l *Listener) NextLive(ctx context.Context) (*types.Record, error) {
	return l.live.pop(ctx)
}

// Close releases the handle and decrements the subscription refcount. Safe
// to call any number of times, from any goroutine.
func (l *Listener) Close() {
	l.closeOnce.Do(func() {
		l.catchup.close(nil)
		l.live.close(nil)
		if l.release != nil {
			l.release(l.id)
		}
	})
}
