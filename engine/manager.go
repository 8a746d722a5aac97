// Package engine is the event synchronizer: for each subscribed PDA it runs
// a catch-up worker and a live worker sharing one durable cursor, and fans
// decoded events out to listener handles.
package engine

import (
	"context"
	"sync"

	"cosmossdk.io/log"
	"github.com/creachadair/taskgroup"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/w3b2/w3b2-solana-go/chain"
	"github.com/w3b2/w3b2-solana-go/decoder"
	"github.com/w3b2/w3b2-solana-go/metrics"
	"github.com/w3b2/w3b2-solana-go/store"
	"github.com/w3b2/w3b2-solana-go/types"
)

// Config bounds the engine's buffers and retry schedule.
type Config struct {
	SignaturesPageSize    int
	CatchupBufferCapacity int
	LiveBufferCapacity    int
	ListenerQueueCapacity int
	MaxRetries            int
	Backoff               chain.Backoff
}

// DefaultConfig matches the documented configuration defaults.
func DefaultConfig() Config {
	return Config{
		SignaturesPageSize:    1000,
		CatchupBufferCapacity: 1024,
		LiveBufferCapacity:    1024,
		ListenerQueueCapacity: 256,
		MaxRetries:            5,
		Backoff:               chain.DefaultBackoff(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SignaturesPageSize <= 0 {
		c.SignaturesPageSize = d.SignaturesPageSize
	}
	if c.CatchupBufferCapacity <= 0 {
		c.CatchupBufferCapacity = d.CatchupBufferCapacity
	}
	if c.LiveBufferCapacity <= 0 {
		c.LiveBufferCapacity = d.LiveBufferCapacity
	}
	if c.ListenerQueueCapacity <= 0 {
		c.ListenerQueueCapacity = d.ListenerQueueCapacity
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.Backoff == (chain.Backoff{}) {
		c.Backoff = d.Backoff
	}
	return c
}

// Manager owns the worker pairs. One pair per PDA regardless of listener
// count; the cursor is single-writer because only that pair touches it.
type Manager struct {
	logger log.Logger
	client chain.Client
	store  store.Store
	dec    *decoder.Decoder
	cfg    Config
	met    *metrics.Engine

	subs  cmap.ConcurrentMap[string, *subscription]
	group *taskgroup.Group

	mu     sync.Mutex
	closed bool
}

func NewManager(logger log.Logger, client chain.Client, st store.Store, programID solana.PublicKey, cfg Config, met *metrics.Engine) *Manager {
	return &Manager{
		logger: logger.With("module", "engine"),
		client: client,
		store:  st,
		dec:    decoder.New(programID),
		cfg:    cfg.withDefaults(),
		met:    met,
		subs:   cmap.New[*subscription](),
		group:  taskgroup.New(nil),
	}
}

// Subscribe returns a listener handle for the PDA, spawning the worker pair
// on the first subscription. The first handle's streams begin at the stored
// cursor (or full history when none exists); a handle that joins an existing
// subscription receives only the events emitted after it joins, and its
// catch-up stream is already ended when catch-up has completed.
func (m *Manager) Subscribe(ctx context.Context, pda solana.PublicKey, kind types.ProfileKind) (*Listener, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := pda.String()

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrManagerClosed
		}

		sub, ok := m.subs.Get(key)
		if !ok {
			sub = newSubscription(pda, kind, m.cfg.LiveBufferCapacity)
			m.subs.Set(key, sub)
			m.spawnPair(sub, key)
			m.met.SubscriptionDelta(1)
		}
		m.mu.Unlock()

		l := &Listener{
			id:      uuid.NewString(),
			pda:     key,
			catchup: newQueue(m.cfg.CatchupBufferCapacity),
			live:    newQueue(m.cfg.ListenerQueueCapacity),
		}
		l.release = func(id string) {
			m.met.ListenerDelta(-1)
			if sub.detach(id) == 0 {
				m.drain(key, sub)
			}
		}

		if sub.attach(l) {
			m.met.ListenerDelta(1)
			return l, nil
		}

		// Lost the race with a drain: wait for the pair to exit, clear the
		// table entry and start over.
		select {
		case <-sub.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		m.subs.RemoveCb(key, func(_ string, cur *subscription, exists bool) bool {
			return exists && cur == sub
		})
	}
}

// State reports the lifecycle state for a PDA; StateIdle when unknown.
func (m *Manager) State(pda solana.PublicKey) State {
	if sub, ok := m.subs.Get(pda.String()); ok {
		return sub.currentState()
	}
	return StateIdle
}

// Cursor exposes the stored cursor for a PDA (gateway surface).
func (m *Manager) Cursor(pda solana.PublicKey) (store.Cursor, bool, error) {
	return m.store.Get(pda)
}

// Close cancels every worker pair and waits for them to drain.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	for item := range m.subs.IterBuffered() {
		sub := item.Val
		sub.mu.Lock()
		cancel := sub.cancel
		sub.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}
	_ = m.group.Wait()
	for item := range m.subs.IterBuffered() {
		item.Val.closeAll()
		m.subs.Remove(item.Key)
	}
}

func (m *Manager) spawnPair(sub *subscription, key string) {
	runCtx, cancel := context.WithCancel(context.Background())
	sub.mu.Lock()
	sub.cancel = cancel
	sub.state = StateCatchingUp
	sub.mu.Unlock()

	var pair sync.WaitGroup
	pair.Add(2)

	m.group.Go(func() error {
		defer pair.Done()
		if err := m.runCatchup(runCtx, sub); err != nil {
			m.failPair(sub, cancel, err)
		}
		return nil
	})
	m.group.Go(func() error {
		defer pair.Done()
		if err := m.runLive(runCtx, sub); err != nil {
			m.failPair(sub, cancel, err)
		}
		return nil
	})
	m.group.Go(func() error {
		pair.Wait()
		close(sub.done)
		return nil
	})
}

// failPair surfaces a fatal subscription error: both streams close with the
// error, the partner worker is cancelled and the table entry is released
// once the pair exits. The cursor stays on disk.
func (m *Manager) failPair(sub *subscription, cancel context.CancelFunc, err error) {
	m.logger.Error("subscription failed", "pda", sub.pda.String(), "error", err)
	sub.fail(err)
	cancel()

	key := sub.pda.String()
	m.group.Go(func() error {
		<-sub.done
		removed := m.subs.RemoveCb(key, func(_ string, cur *subscription, exists bool) bool {
			return exists && cur == sub
		})
		if removed {
			m.met.SubscriptionDelta(-1)
		}
		return nil
	})
}

// drain runs when the last listener closes: cancel the pair, await exit,
// release the table entry. The cursor is retained for future resumption.
func (m *Manager) drain(key string, sub *subscription) {
	sub.mu.Lock()
	if len(sub.listeners) > 0 || sub.state == StateDraining || sub.state == StateClosed {
		sub.mu.Unlock()
		return
	}
	sub.state = StateDraining
	cancel := sub.cancel
	sub.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	m.group.Go(func() error {
		<-sub.done
		sub.closeAll()
		m.subs.RemoveCb(key, func(_ string, cur *subscription, exists bool) bool {
			return exists && cur == sub
		})
		m.met.SubscriptionDelta(-1)
		m.logger.Debug("subscription drained", "pda", key)
		return nil
	})
}
