package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/w3b2/w3b2-solana-go/store"
	"github.com/w3b2/w3b2-solana-go/types"
)

// ErrStreamEnd is the clean end of a listener stream: catch-up completed, or
// the subscription closed without error.
var ErrStreamEnd = errors.New("stream end")

// ErrManagerClosed is returned by Subscribe after the manager shut down.
var ErrManagerClosed = errors.New("event manager closed")

// State is the per-PDA subscription lifecycle.
type State uint8

const (
	StateIdle State = iota
	StateStarting
	StateCatchingUp
	StateLive
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateCatchingUp:
		return "catching_up"
	case StateLive:
		return "live"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// subscription is the shared state of one PDA's worker pair and its
// listeners. The mutex guards membership and delivery interleaving; queue
// operations themselves never block under it.
type subscription struct {
	pda  solana.PublicKey
	kind types.ProfileKind

	mu        sync.Mutex
	state     State
	listeners map[string]*Listener

	cursor     store.Cursor
	haveCursor bool

	// Pre-release live buffer: notifications that arrived before catch-up
	// closed. Bounded; overflow drops the oldest and the count is attached
	// to the next released event.
	pending     []types.Record
	pendingCap  int
	overflowed  uint64
	released    bool

	// seen dedupes live signatures across reconnects; replayed records what
	// the catch-up walk covered, to drop staged duplicates at hand-off.
	seen     map[solana.Signature]struct{}
	seenCap  int
	replayed map[solana.Signature]struct{}

	cancel context.CancelFunc
	done   chan struct{}
	failed error
}

func newSubscription(pda solana.PublicKey, kind types.ProfileKind, pendingCap int) *subscription {
	return &subscription{
		pda:        pda,
		kind:       kind,
		state:      StateStarting,
		listeners:  make(map[string]*Listener),
		pendingCap: pendingCap,
		seen:       make(map[solana.Signature]struct{}),
		seenCap:    4 * pendingCap,
		replayed:   make(map[solana.Signature]struct{}),
		done:       make(chan struct{}),
	}
}

func (s *subscription) currentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// attach registers a listener. A listener joining after catch-up closed gets
// an immediately-ended catch-up stream. Returns false when the subscription
// is already draining or closed; the caller starts a fresh one.
func (s *subscription) attach(l *Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDraining || s.state == StateClosed {
		return false
	}
	s.listeners[l.id] = l
	if s.released {
		l.catchup.close(nil)
	}
	if s.failed != nil {
		l.catchup.close(s.failed)
		l.live.close(s.failed)
	}
	return true
}

// detach removes a listener and reports how many remain.
func (s *subscription) detach(id string) int {
	s.mu.Lock()
	delete(s.listeners, id)
	n := len(s.listeners)
	s.mu.Unlock()
	return n
}

// emitCatchup fans one historical event out to every listener.
func (s *subscription) emitCatchup(rec types.Record) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var evicted uint64
	for _, l := range s.listeners {
		evicted += l.catchup.push(rec)
	}
	return evicted
}

// bufferLive stages a live event while catch-up is still open, or delivers
// it directly once released. Returns events evicted from listener queues.
func (s *subscription) bufferLive(rec types.Record) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.released {
		if len(s.pending) >= s.pendingCap {
			s.pending = s.pending[1:]
			s.overflowed++
		}
		s.pending = append(s.pending, rec)
		return 0
	}
	return s.deliverLiveLocked(rec)
}

func (s *subscription) deliverLiveLocked(rec types.Record) uint64 {
	if s.overflowed > 0 {
		rec.Warning.LiveBacklogOverflow = s.overflowed
		s.overflowed = 0
	}
	var evicted uint64
	for _, l := range s.listeners {
		evicted += l.live.push(rec)
	}
	return evicted
}

// release transitions to Live: close every catch-up stream and flush the
// staged live events in order.
func (s *subscription) release() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.released = true
	s.state = StateLive
	for _, l := range s.listeners {
		l.catchup.close(nil)
	}
	var evicted uint64
	for _, rec := range s.pending {
		// Staged notifications the catch-up walk already replayed are
		// duplicates at the hand-off boundary.
		if _, dup := s.replayed[rec.Signature]; dup {
			continue
		}
		evicted += s.deliverLiveLocked(rec)
	}
	s.pending = nil
	s.replayed = nil
	return evicted
}

// fail closes both streams of every listener with a terminal error.
func (s *subscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed != nil {
		return
	}
	s.failed = err
	s.state = StateClosed
	for _, l := range s.listeners {
		l.catchup.close(err)
		l.live.close(err)
	}
}

// closeAll ends both streams cleanly (drain on last listener drop).
func (s *subscription) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
	for _, l := range s.listeners {
		l.catchup.close(nil)
		l.live.close(nil)
	}
}

// markSeen records a delivered live signature, bounding the dedup set.
func (s *subscription) markSeen(sig solana.Signature) {
	s.mu.Lock()
	if len(s.seen) >= s.seenCap {
		// Reset rather than track precisely; the cursor's slot bound still
		// rejects genuinely old notifications.
		s.seen = make(map[solana.Signature]struct{})
	}
	s.seen[sig] = struct{}{}
	s.mu.Unlock()
}

// markReplayed records one signature covered by the catch-up walk.
func (s *subscription) markReplayed(sig solana.Signature) {
	s.mu.Lock()
	if s.replayed != nil {
		s.replayed[sig] = struct{}{}
	}
	s.mu.Unlock()
}

func (s *subscription) wasSeen(sig solana.Signature) bool {
	s.mu.Lock()
	_, ok := s.seen[sig]
	s.mu.Unlock()
	return ok
}

// snapshotCursor returns the worker pair's current cursor view.
func (s *subscription) snapshotCursor() (store.Cursor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor, s.haveCursor
}

func (s *subscription) setCursor(c store.Cursor) {
	s.mu.Lock()
	s.cursor = c
	s.haveCursor = true
	s.mu.Unlock()
}
