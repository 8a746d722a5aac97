package store

import (
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Memory is the in-memory Store backend, primarily for tests and ephemeral
// deployments. It round-trips through the binary record codec so the two
// backends cannot drift.
type Memory struct {
	mu      sync.RWMutex
	records map[solana.PublicKey][]byte
}

func NewMemory() *Memory {
	return &Memory{records: make(map[solana.PublicKey][]byte)}
}

func (m *Memory) Get(pda solana.PublicKey) (Cursor, bool, error) {
	m.mu.RLock()
	raw, ok := m.records[pda]
	m.mu.RUnlock()
	if !ok {
		return Cursor{}, false, nil
	}
	c, err := decodeCursor(raw)
	if err != nil {
		// Corrupt record: treated as absent, fresh catch-up is forced.
		return Cursor{}, false, nil
	}
	return c, true, nil
}

func (m *Memory) Put(pda solana.PublicKey, c Cursor) error {
	raw := encodeCursor(c)
	m.mu.Lock()
	m.records[pda] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(pda solana.PublicKey) error {
	m.mu.Lock()
	delete(m.records, pda)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Keys() ([]solana.PublicKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]solana.PublicKey, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *Memory) Close() error { return nil }

// corrupt overwrites a record with garbage. Test hook.
func (m *Memory) corrupt(pda solana.PublicKey, raw []byte) {
	m.mu.Lock()
	m.records[pda] = raw
	m.mu.Unlock()
}
