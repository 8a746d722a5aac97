package submitter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/w3b2/w3b2-solana-go/chain"
)

func sig(n byte) solana.Signature {
	var s solana.Signature
	for i := range s {
		s[i] = n
	}
	return s
}

type fakeBroadcaster struct {
	mu sync.Mutex

	sendSig solana.Signature
	sendErr error
	lastTx  []byte

	statuses []*chain.SignatureStatus
	statErr  error
}

func (f *fakeBroadcaster) SendRawTransaction(ctx context.Context, signedTx []byte) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastTx = append([]byte(nil), signedTx...)
	return f.sendSig, f.sendErr
}

func (f *fakeBroadcaster) SignatureStatus(ctx context.Context, s solana.Signature) (*chain.SignatureStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statErr != nil {
		return nil, f.statErr
	}
	if len(f.statuses) == 0 {
		return nil, nil
	}
	st := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return st, nil
}

func testSubmitter(f *fakeBroadcaster, opts Options) *Submitter {
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Millisecond
	}
	if opts.Timeout == 0 {
		opts.Timeout = 250 * time.Millisecond
	}
	return New(log.NewNopLogger(), f, opts)
}

func TestSubmitConfirms(t *testing.T) {
	t.Parallel()

	f := &fakeBroadcaster{
		sendSig: sig(9),
		statuses: []*chain.SignatureStatus{
			nil, // not yet visible
			{ConfirmationStatus: rpc.ConfirmationStatusProcessed},
			{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
		},
	}

	got, err := testSubmitter(f, Options{}).Submit(context.Background(), []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got != sig(9) {
		t.Fatalf("signature %s", got)
	}
	if len(f.lastTx) != 3 {
		t.Fatal("transaction bytes not forwarded")
	}
}

func TestSubmitSurfacesProgramError(t *testing.T) {
	t.Parallel()

	f := &fakeBroadcaster{
		sendSig: sig(9),
		statuses: []*chain.SignatureStatus{{
			ConfirmationStatus: rpc.ConfirmationStatusConfirmed,
			Err: map[string]interface{}{
				"InstructionError": []interface{}{
					float64(1),
					map[string]interface{}{"Custom": float64(6001)},
				},
			},
		}},
	}

	_, err := testSubmitter(f, Options{}).Submit(context.Background(), []byte{1})
	var ee *ExecutionError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if !ee.Custom || ee.Code != 6001 {
		t.Fatalf("program error code %d custom=%v", ee.Code, ee.Custom)
	}
}

func TestSubmitPreflightRejection(t *testing.T) {
	t.Parallel()

	f := &fakeBroadcaster{sendErr: errors.New("Transaction signature verification failure")}

	_, err := testSubmitter(f, Options{}).Submit(context.Background(), []byte{1})
	if !errors.Is(err, ErrPreflight) {
		t.Fatalf("expected ErrPreflight, got %v", err)
	}
}

func TestSubmitEmptyBlobRejected(t *testing.T) {
	t.Parallel()

	_, err := testSubmitter(&fakeBroadcaster{}, Options{}).Submit(context.Background(), nil)
	if !errors.Is(err, ErrPreflight) {
		t.Fatalf("expected ErrPreflight, got %v", err)
	}
}

func TestSubmitTimesOut(t *testing.T) {
	t.Parallel()

	// Status never reaches the requested commitment.
	f := &fakeBroadcaster{
		sendSig:  sig(9),
		statuses: []*chain.SignatureStatus{{ConfirmationStatus: rpc.ConfirmationStatusProcessed}},
	}

	got, err := testSubmitter(f, Options{Commitment: rpc.ConfirmationStatusFinalized}).Submit(context.Background(), []byte{1})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	// The signature is still returned for follow-up.
	if got != sig(9) {
		t.Fatalf("signature %s", got)
	}
}

func TestReachedOrdering(t *testing.T) {
	t.Parallel()

	if !reached(rpc.ConfirmationStatusFinalized, rpc.ConfirmationStatusConfirmed) {
		t.Fatal("finalized satisfies confirmed")
	}
	if reached(rpc.ConfirmationStatusProcessed, rpc.ConfirmationStatusConfirmed) {
		t.Fatal("processed does not satisfy confirmed")
	}
}
