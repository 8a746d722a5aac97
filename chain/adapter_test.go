package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

func sig(n byte) solana.Signature {
	var s solana.Signature
	for i := range s {
		s[i] = n
	}
	return s
}

type fakeRPC struct {
	signatures []*rpc.TransactionSignature
	sigErrs    []error

	txResult *rpc.GetTransactionResult
	txErr    error

	health    string
	healthErr error

	calls int
}

func (f *fakeRPC) GetHealth(ctx context.Context) (string, error) {
	return f.health, f.healthErr
}

func (f *fakeRPC) GetSignaturesForAddressWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error) {
	f.calls++
	if len(f.sigErrs) > 0 {
		err := f.sigErrs[0]
		f.sigErrs = f.sigErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.signatures, nil
}

func (f *fakeRPC) GetTransaction(ctx context.Context, txSig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	f.calls++
	return f.txResult, f.txErr
}

func (f *fakeRPC) SendRawTransactionWithOpts(ctx context.Context, payload []byte, opts rpc.TransactionOpts) (solana.Signature, error) {
	return sig(1), nil
}

func (f *fakeRPC) GetSignatureStatuses(ctx context.Context, search bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	return &rpc.GetSignatureStatusesResult{}, nil
}

func (f *fakeRPC) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	return nil, rpc.ErrNotFound
}

func testAdapter(f *fakeRPC) *Adapter {
	return NewAdapter(log.NewNopLogger(), f, nil, Options{
		CallTimeout: time.Second,
		MaxRetries:  3,
		Backoff:     Backoff{Initial: time.Millisecond, Max: 2 * time.Millisecond, Factor: 2},
	})
}

// The node promises no order among transactions of one slot; the adapter
// pins slot-descending, then signature-descending.
func TestSignaturesForDeterministicOrder(t *testing.T) {
	t.Parallel()

	f := &fakeRPC{signatures: []*rpc.TransactionSignature{
		{Signature: sig(1), Slot: 100},
		{Signature: sig(3), Slot: 101},
		{Signature: sig(2), Slot: 101},
	}}

	out, err := testAdapter(f).SignaturesFor(context.Background(), solana.PublicKey{}, solana.Signature{}, solana.Signature{}, 10)
	if err != nil {
		t.Fatalf("signatures: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d entries", len(out))
	}
	if out[0].Signature != sig(3) || out[1].Signature != sig(2) || out[2].Signature != sig(1) {
		t.Fatalf("order not pinned: %v %v %v", out[0].Slot, out[1].Slot, out[2].Slot)
	}
}

func TestSignaturesForRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	f := &fakeRPC{
		sigErrs: []error{errors.New("429 Too many requests"), nil},
		signatures: []*rpc.TransactionSignature{
			{Signature: sig(1), Slot: 5},
		},
	}

	out, err := testAdapter(f).SignaturesFor(context.Background(), solana.PublicKey{}, solana.Signature{}, solana.Signature{}, 10)
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if len(out) != 1 || f.calls != 2 {
		t.Fatalf("entries=%d calls=%d", len(out), f.calls)
	}
}

func TestFetchTxTruncatedLogsIsFatal(t *testing.T) {
	t.Parallel()

	f := &fakeRPC{txResult: &rpc.GetTransactionResult{Slot: 7, Meta: nil}}

	_, err := testAdapter(f).FetchTx(context.Background(), sig(1))
	if !errors.Is(err, ErrLogsTruncated) {
		t.Fatalf("expected ErrLogsTruncated, got %v", err)
	}
	if IsRetryable(err) {
		t.Fatal("truncated logs must be fatal")
	}
}

func TestFetchTxMissingIsRetryable(t *testing.T) {
	t.Parallel()

	f := &fakeRPC{txResult: nil}

	_, err := testAdapter(f).FetchTx(context.Background(), sig(1))
	if !errors.Is(err, ErrTxNotFound) {
		t.Fatalf("expected ErrTxNotFound, got %v", err)
	}
	if !IsRetryable(err) {
		t.Fatal("commitment lag must be retryable")
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	if err := testAdapter(&fakeRPC{health: rpc.HealthOk}).Health(context.Background()); err != nil {
		t.Fatalf("healthy node reported: %v", err)
	}
	if err := testAdapter(&fakeRPC{health: "behind"}).Health(context.Background()); err == nil {
		t.Fatal("unhealthy node not reported")
	}
}

func TestRetryGivesUpAfterBoundedAttempts(t *testing.T) {
	t.Parallel()

	f := &fakeRPC{sigErrs: []error{
		errors.New("connection reset by peer"),
		errors.New("connection reset by peer"),
		errors.New("connection reset by peer"),
		errors.New("connection reset by peer"),
	}}

	_, err := testAdapter(f).SignaturesFor(context.Background(), solana.PublicKey{}, solana.Signature{}, solana.Signature{}, 10)
	if err == nil {
		t.Fatal("expected exhausted retries to fail")
	}
	if !IsRetryable(err) {
		t.Fatal("exhausted transient failure keeps its classification")
	}
	if f.calls != 3 {
		t.Fatalf("expected 3 bounded attempts, got %d", f.calls)
	}
}

func TestClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"deadline", context.DeadlineExceeded, true},
		{"rate limit text", errors.New("429 Too many requests"), true},
		{"reset", errors.New("read tcp: connection reset"), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"plain rejection", errors.New("invalid param"), false},
		{"cancel", context.Canceled, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := retryable(tc.err); got != tc.retryable {
				t.Fatalf("retryable(%v) = %v, want %v", tc.err, got, tc.retryable)
			}
		})
	}
}

func TestBackoffSchedule(t *testing.T) {
	t.Parallel()

	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Factor: 2}
	if b.Next(0) != 100*time.Millisecond {
		t.Fatalf("attempt 0: %v", b.Next(0))
	}
	if b.Next(1) != 200*time.Millisecond {
		t.Fatalf("attempt 1: %v", b.Next(1))
	}
	if b.Next(10) != time.Second {
		t.Fatalf("attempt 10 must cap at max: %v", b.Next(10))
	}
	if b.Next(-5) != 100*time.Millisecond {
		t.Fatalf("negative attempt: %v", b.Next(-5))
	}
}

func TestBackoffJitterBounded(t *testing.T) {
	t.Parallel()

	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Factor: 2, Jitter: 0.1}
	for i := 0; i < 100; i++ {
		d := b.Next(0)
		if d < 90*time.Millisecond || d > 110*time.Millisecond {
			t.Fatalf("jittered delay out of band: %v", d)
		}
	}
}

func TestBackoffSleepHonorsCancellation(t *testing.T) {
	t.Parallel()

	b := Backoff{Initial: 10 * time.Second, Max: 10 * time.Second, Factor: 1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Sleep(ctx, 0); err == nil {
		t.Fatal("expected context error")
	}
}
