package engine

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/gagliardetto/solana-go"

	"github.com/w3b2/w3b2-solana-go/chain"
	"github.com/w3b2/w3b2-solana-go/store"
	"github.com/w3b2/w3b2-solana-go/types"
)

var testProgram = solana.MustPublicKeyFromBase58("BPFLoaderUpgradeab1e11111111111111111111111")

func testLogger() log.Logger { return log.NewNopLogger() }

func sigN(n byte) solana.Signature {
	var s solana.Signature
	for i := range s {
		s[i] = n
	}
	return s
}

func keyN(n byte) solana.PublicKey {
	var k solana.PublicKey
	for i := range k {
		k[i] = n
	}
	return k
}

// eventLogs renders the framework's log shape for one emitted event.
func eventLogs(t *testing.T, evs ...types.Event) []string {
	t.Helper()
	logs := []string{"Program " + testProgram.String() + " invoke [1]"}
	for _, ev := range evs {
		payload, err := types.EncodeEvent(ev)
		if err != nil {
			t.Fatalf("encode event: %v", err)
		}
		logs = append(logs, "Program data: "+base64.StdEncoding.EncodeToString(payload))
	}
	return append(logs, "Program "+testProgram.String()+" success")
}

func base64Std(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func depositEvent(pda solana.PublicKey, amount uint64, ts int64) types.Event {
	return &types.UserDeposited{User: pda, Amount: amount, Ts: ts}
}

type fakeTx struct {
	sig    solana.Signature
	slot   uint64
	logs   []string
	failed bool
}

// fakeChain is a deterministic in-memory chain.Client. Transactions are held
// in chronological order; live streams are fed by the test.
type fakeChain struct {
	mu      sync.Mutex
	txs     []fakeTx
	streams []*fakeStream

	fetchErr      error
	signaturesErr error
}

func newFakeChain() *fakeChain { return &fakeChain{} }

func (f *fakeChain) addTx(tx fakeTx) {
	f.mu.Lock()
	f.txs = append(f.txs, tx)
	f.mu.Unlock()
}

func (f *fakeChain) SignaturesFor(ctx context.Context, pda solana.PublicKey, before, until solana.Signature, limit int) ([]chain.SignatureInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signaturesErr != nil {
		return nil, f.signaturesErr
	}

	// Walk newest-first applying the before/until window.
	var out []chain.SignatureInfo
	started := before.IsZero()
	for i := len(f.txs) - 1; i >= 0; i-- {
		tx := f.txs[i]
		if !started {
			if tx.sig == before {
				started = true
			}
			continue
		}
		if !until.IsZero() && tx.sig == until {
			break
		}
		out = append(out, chain.SignatureInfo{
			Signature: tx.sig,
			Slot:      tx.slot,
			Failed:    tx.failed,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeChain) FetchTx(ctx context.Context, sig solana.Signature) (*chain.TxInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	for _, tx := range f.txs {
		if tx.sig == sig {
			return &chain.TxInfo{
				Signature: tx.sig,
				Slot:      tx.slot,
				Logs:      tx.logs,
				Failed:    tx.failed,
			}, nil
		}
	}
	return nil, &chain.Error{Op: "fetch_tx", Err: chain.ErrTxNotFound, Retryable: false}
}

func (f *fakeChain) SubscribeLogs(ctx context.Context, pda solana.PublicKey) (chain.LogStream, error) {
	s := &fakeStream{ch: make(chan *chain.LogNotification, 64), done: make(chan struct{})}
	f.mu.Lock()
	f.streams = append(f.streams, s)
	f.mu.Unlock()
	return s, nil
}

// waitStream blocks until at least one live subscription is open, so a test
// push cannot fall into the void.
func (f *fakeChain) waitStream(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		n := len(f.streams)
		f.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no live stream opened in time")
}

// push feeds every open stream, as the node fans notifications out.
func (f *fakeChain) push(n *chain.LogNotification) {
	f.mu.Lock()
	streams := append([]*fakeStream(nil), f.streams...)
	f.mu.Unlock()
	for _, s := range streams {
		s.push(n)
	}
}

type fakeStream struct {
	ch        chan *chain.LogNotification
	done      chan struct{}
	closeOnce sync.Once
}

func (s *fakeStream) push(n *chain.LogNotification) {
	select {
	case s.ch <- n:
	case <-s.done:
	}
}

func (s *fakeStream) Recv(ctx context.Context) (*chain.LogNotification, error) {
	select {
	case <-ctx.Done():
		return nil, &chain.Error{Op: "log_recv", Err: ctx.Err(), Retryable: false}
	case <-s.done:
		return nil, &chain.Error{Op: "log_recv", Err: chain.ErrStreamClosed, Retryable: true}
	case n := <-s.ch:
		return n, nil
	}
}

func (s *fakeStream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func testManager(t *testing.T, client chain.Client, st store.Store) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Backoff = chain.Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2, Jitter: 0}
	m := NewManager(testLogger(), client, st, testProgram, cfg, nil)
	t.Cleanup(m.Close)
	return m
}

// drainCatchup pops the catch-up stream to its end.
func drainCatchup(t *testing.T, l *Listener) []*types.Record {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out []*types.Record
	for {
		rec, err := l.NextCatchup(ctx)
		if err == ErrStreamEnd {
			return out
		}
		if err != nil {
			t.Fatalf("catch-up stream error: %v", err)
		}
		out = append(out, rec)
	}
}

func nextLive(t *testing.T, l *Listener) *types.Record {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec, err := l.NextLive(ctx)
	if err != nil {
		t.Fatalf("live stream error: %v", err)
	}
	return rec
}
