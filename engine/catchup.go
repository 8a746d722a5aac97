package engine

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/w3b2/w3b2-solana-go/chain"
	"github.com/w3b2/w3b2-solana-go/decoder"
	"github.com/w3b2/w3b2-solana-go/store"
	"github.com/w3b2/w3b2-solana-go/types"
)

// runCatchup walks the PDA's history backward from the tip to the stored
// cursor, then delivers the collected transactions forward in chain order.
// The cursor advances only after an event batch has been emitted and
// persisted, so a crash resumes at the next signature.
func (m *Manager) runCatchup(ctx context.Context, sub *subscription) error {
	cursor, have, err := m.loadCursor(ctx, sub.pda)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	if have {
		sub.setCursor(cursor)
	}

	working, err := m.collectSignatures(ctx, sub.pda, cursor)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}

	m.logger.Debug("catch-up walk collected",
		"pda", sub.pda.String(), "signatures", len(working), "resume", have)

	// working is newest-first; the oldest watermark is its tail.
	if len(working) > 0 && cursor.OldestSignature.IsZero() {
		cursor.OldestSignature = working[len(working)-1].Signature
	}

	for i := len(working) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return nil
		}
		info := working[i]
		if info.Signature == cursor.LastSignature {
			continue
		}

		if !info.Failed {
			if err := m.replayTx(ctx, sub, info); err != nil {
				return err
			}
		}
		sub.markReplayed(info.Signature)

		cursor.LastSignature = info.Signature
		cursor.LastSlot = info.Slot
		if err := m.persistCursor(ctx, sub, cursor); err != nil {
			return fmt.Errorf("persist cursor: %w", err)
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	cursor.CatchupComplete = true
	if err := m.persistCursor(ctx, sub, cursor); err != nil {
		return fmt.Errorf("persist cursor: %w", err)
	}

	evicted := sub.release()
	m.met.Dropped("listener_queue", float64(evicted))
	m.logger.Info("catch-up complete", "pda", sub.pda.String(), "slot", cursor.LastSlot)
	return nil
}

// collectSignatures pages backward until the stored cursor or history end.
func (m *Manager) collectSignatures(ctx context.Context, pda solana.PublicKey, cursor store.Cursor) ([]chain.SignatureInfo, error) {
	var (
		working []chain.SignatureInfo
		before  solana.Signature
	)
	for {
		if ctx.Err() != nil {
			return nil, nil
		}
		page, err := m.client.SignaturesFor(ctx, pda, before, cursor.LastSignature, m.cfg.SignaturesPageSize)
		if err != nil {
			return nil, fmt.Errorf("signatures for %s: %w", pda, err)
		}
		working = append(working, page...)
		if len(page) < m.cfg.SignaturesPageSize {
			return working, nil
		}
		before = page[len(page)-1].Signature
	}
}

// replayTx fetches, decodes and emits one historical transaction's events.
func (m *Manager) replayTx(ctx context.Context, sub *subscription, info chain.SignatureInfo) error {
	tx, err := m.client.FetchTx(ctx, info.Signature)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", info.Signature, err)
	}
	if tx.Failed {
		return nil
	}

	decoded, err := m.dec.Decode(tx.Logs)
	if err != nil {
		m.met.Poisoned()
		return fmt.Errorf("decode %s: %w", info.Signature, err)
	}

	for _, de := range decoder.ConcernedBy(decoded, sub.pda) {
		rec := types.Record{
			Signature: info.Signature,
			Slot:      tx.Slot,
			BlockTime: tx.BlockTime,
			Index:     de.Index,
			Event:     de.Event,
		}
		evicted := sub.emitCatchup(rec)
		m.met.Delivered("catchup")
		m.met.Dropped("listener_queue", float64(evicted))
	}
	return nil
}

// loadCursor reads the stored cursor, retrying transient storage failures.
func (m *Manager) loadCursor(ctx context.Context, pda solana.PublicKey) (store.Cursor, bool, error) {
	var (
		cursor store.Cursor
		have   bool
	)
	err := m.retryStorage(ctx, func() error {
		var err error
		cursor, have, err = m.store.Get(pda)
		return err
	})
	return cursor, have, err
}

// persistCursor writes the cursor and mirrors it into the subscription.
func (m *Manager) persistCursor(ctx context.Context, sub *subscription, c store.Cursor) error {
	err := m.retryStorage(ctx, func() error {
		return m.store.Put(sub.pda, c)
	})
	if err != nil {
		return err
	}
	sub.setCursor(c)
	return nil
}

func (m *Manager) retryStorage(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < m.cfg.MaxRetries; attempt++ {
		if err := op(); err != nil {
			lastErr = err
			if err := m.cfg.Backoff.Sleep(ctx, attempt); err != nil {
				return err
			}
			continue
		}
		return nil
	}
	return lastErr
}
