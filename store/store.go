// Package store persists per-PDA sync cursors. A cursor records how far the
// worker pair for one PDA has progressed through chain history; it survives
// restarts and subscription teardown.
package store

import (
	"encoding/binary"
	"errors"

	"github.com/gagliardetto/solana-go"
)

// CursorVersion is the only record version this build reads or writes.
// Records with any other version are treated as absent.
const CursorVersion = 1

// cursorRecordSize: version(1) + last_signature(64) + last_slot(8) +
// oldest_signature(64) + catchup_complete(1).
const cursorRecordSize = 138

// Cursor is the per-PDA persistent sync position. Exclusively mutated by the
// worker pair owning the PDA; stale reads by others are tolerated.
type Cursor struct {
	LastSignature   solana.Signature
	LastSlot        uint64
	OldestSignature solana.Signature
	CatchupComplete bool
}

// Zero reports whether the cursor records no known signature.
func (c Cursor) Zero() bool {
	return c.LastSignature.IsZero() && c.LastSlot == 0
}

// ErrCorrupt marks a record that could not be decoded. Callers treat the
// cursor as absent and force a fresh catch-up.
var ErrCorrupt = errors.New("cursor record corrupt")

// Store maps PDA -> Cursor. Put is atomic per key: a successful Put is
// visible to every subsequent Get, across a crash-restart for durable
// backends. I/O failures are retryable by the caller.
type Store interface {
	Get(pda solana.PublicKey) (Cursor, bool, error)
	Put(pda solana.PublicKey, c Cursor) error
	Remove(pda solana.PublicKey) error
	Keys() ([]solana.PublicKey, error)
	Close() error
}

func encodeCursor(c Cursor) []byte {
	out := make([]byte, cursorRecordSize)
	out[0] = CursorVersion
	copy(out[1:65], c.LastSignature[:])
	binary.LittleEndian.PutUint64(out[65:73], c.LastSlot)
	copy(out[73:137], c.OldestSignature[:])
	if c.CatchupComplete {
		out[137] = 1
	}
	return out
}

func decodeCursor(raw []byte) (Cursor, error) {
	if len(raw) != cursorRecordSize {
		return Cursor{}, ErrCorrupt
	}
	if raw[0] != CursorVersion {
		return Cursor{}, ErrCorrupt
	}
	var c Cursor
	copy(c.LastSignature[:], raw[1:65])
	c.LastSlot = binary.LittleEndian.Uint64(raw[65:73])
	copy(c.OldestSignature[:], raw[73:137])
	switch raw[137] {
	case 0:
	case 1:
		c.CatchupComplete = true
	default:
		return Cursor{}, ErrCorrupt
	}
	return c, nil
}
