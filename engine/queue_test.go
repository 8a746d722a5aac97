package engine

import (
	"context"
	"testing"
	"time"

	"github.com/w3b2/w3b2-solana-go/types"
)

func rec(slot uint64) types.Record {
	return types.Record{Slot: slot, Event: &types.UserDeposited{Ts: int64(slot)}}
}

func TestQueueDropOldestSetsLagged(t *testing.T) {
	t.Parallel()

	q := newQueue(2)
	q.push(rec(1))
	q.push(rec(2))
	if evicted := q.push(rec(3)); evicted != 1 {
		t.Fatalf("expected one eviction, got %d", evicted)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := q.pop(ctx)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	// Oldest (slot 1) was evicted; the survivor carries the lag count.
	if got.Slot != 2 {
		t.Fatalf("expected slot 2 first, got %d", got.Slot)
	}
	if got.Warning.Lagged != 1 {
		t.Fatalf("expected lagged=1, got %d", got.Warning.Lagged)
	}

	got, err = q.pop(ctx)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if got.Slot != 3 || !got.Warning.Zero() {
		t.Fatalf("unexpected second record: %+v", got)
	}
}

func TestQueueCloseDrainsThenEnds(t *testing.T) {
	t.Parallel()

	q := newQueue(4)
	q.push(rec(1))
	q.close(nil)
	q.push(rec(2)) // ignored after close

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if got, err := q.pop(ctx); err != nil || got.Slot != 1 {
		t.Fatalf("expected buffered record, got %v / %v", got, err)
	}
	if _, err := q.pop(ctx); err != ErrStreamEnd {
		t.Fatalf("expected ErrStreamEnd, got %v", err)
	}
}

func TestQueuePopCancelSafe(t *testing.T) {
	t.Parallel()

	q := newQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.pop(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline error, got %v", err)
	}

	// The record pushed after cancellation is still delivered to the next pop.
	q.push(rec(9))
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	got, err := q.pop(ctx2)
	if err != nil || got.Slot != 9 {
		t.Fatalf("expected slot 9 after cancel, got %v / %v", got, err)
	}
}
