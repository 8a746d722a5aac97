package engine

import (
	"context"
	"fmt"

	"github.com/w3b2/w3b2-solana-go/chain"
	"github.com/w3b2/w3b2-solana-go/decoder"
	"github.com/w3b2/w3b2-solana-go/types"
)

// runLive owns the PDA's log subscription: it reconnects with backoff on
// stream loss, dedupes against the cursor and the recently-seen set, and
// stages events until the catch-up channel has closed. It exits only on
// cancellation or a fatal error.
func (m *Manager) runLive(ctx context.Context, sub *subscription) error {
	failStreak := 0
	opened := false

	for {
		if ctx.Err() != nil {
			return nil
		}

		stream, err := m.client.SubscribeLogs(ctx, sub.pda)
		if err != nil {
			if !chain.IsRetryable(err) {
				return fmt.Errorf("subscribe logs: %w", err)
			}
			failStreak++
			if failStreak > m.cfg.MaxRetries {
				return fmt.Errorf("subscribe logs: %w", err)
			}
			if err := m.cfg.Backoff.Sleep(ctx, failStreak-1); err != nil {
				return nil
			}
			continue
		}
		if opened {
			m.met.Reconnect()
		}
		opened = true
		failStreak = 0

		err = m.consumeStream(ctx, sub, stream)
		stream.Close()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && !chain.IsRetryable(err) {
			return err
		}

		m.logger.Debug("live stream lost, reconnecting", "pda", sub.pda.String(), "error", err)
		if err := m.cfg.Backoff.Sleep(ctx, 0); err != nil {
			return nil
		}
	}
}

func (m *Manager) consumeStream(ctx context.Context, sub *subscription, stream chain.LogStream) error {
	for {
		n, err := stream.Recv(ctx)
		if err != nil {
			return err
		}
		if err := m.handleNotification(ctx, sub, n); err != nil {
			return err
		}
	}
}

func (m *Manager) handleNotification(ctx context.Context, sub *subscription, n *chain.LogNotification) error {
	if n.Failed {
		return nil
	}

	cursor, have := sub.snapshotCursor()
	if have {
		// Resume boundary duplicate, or a notification older than what the
		// catch-up walk already covered.
		if n.Signature == cursor.LastSignature {
			return nil
		}
		if n.Slot < cursor.LastSlot {
			return nil
		}
	}
	if sub.wasSeen(n.Signature) {
		return nil
	}

	decoded, err := m.dec.Decode(n.Logs)
	if err != nil {
		m.met.Poisoned()
		return fmt.Errorf("decode %s: %w", n.Signature, err)
	}

	concerned := decoder.ConcernedBy(decoded, sub.pda)
	sub.markSeen(n.Signature)
	if len(concerned) == 0 {
		return nil
	}

	for _, de := range concerned {
		rec := types.Record{
			Signature: n.Signature,
			Slot:      n.Slot,
			Index:     de.Index,
			Event:     de.Event,
		}
		evicted := sub.bufferLive(rec)
		m.met.Delivered("live")
		m.met.Dropped("listener_queue", float64(evicted))
	}

	// Only a released subscription advances the cursor from the live side:
	// staged events are not yet delivered, and a crash must let the next
	// catch-up walk cover them.
	sub.mu.Lock()
	released := sub.released
	cursor = sub.cursor
	sub.mu.Unlock()
	if released {
		cursor.LastSignature = n.Signature
		cursor.LastSlot = n.Slot
		cursor.CatchupComplete = true
		if err := m.persistCursor(ctx, sub, cursor); err != nil {
			return fmt.Errorf("persist cursor: %w", err)
		}
	}
	return nil
}
