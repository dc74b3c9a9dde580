package store

import (
	"context"
	"sync"

	"github.com/Garsondee/Pixel-Planet/internal/grid"
)

// MemoryStore keeps values in process memory. Several contexts in one
// process may share a MemoryStore the way separate processes share a file.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string][]byte
	seq    uint64

	// returned by SaveSnapshot when set
	failWrites error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// FailWrites makes every subsequent SaveSnapshot return err; nil restores
// normal behaviour.
func (m *MemoryStore) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = err
}

func (m *MemoryStore) LoadSnapshot(_ context.Context) (grid.Snapshot, error) {
	m.mu.Lock()
	pixels, history := m.values[KeyPixels], m.values[KeyHistory]
	m.mu.Unlock()
	return DecodeSnapshot(pixels, history)
}

func (m *MemoryStore) SaveSnapshot(_ context.Context, s grid.Snapshot) error {
	pixels, history, err := EncodeSnapshot(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites != nil {
		return m.failWrites
	}
	m.values[KeyPixels] = pixels
	m.values[KeyHistory] = history
	return nil
}

func (m *MemoryStore) LoadLabel(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.values[KeyLabel]), nil
}

func (m *MemoryStore) SaveLabel(_ context.Context, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[KeyLabel] = []byte(label)
	return nil
}

func (m *MemoryStore) WriteSignal(_ context.Context, origin string, payload []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := appendSignal(m.values[KeySignal], Signal{Seq: m.seq + 1, Origin: origin, Payload: payload})
	if err != nil {
		return 0, err
	}
	m.seq++
	m.values[KeySignal] = raw
	return m.seq, nil
}

func (m *MemoryStore) ReadSignals(_ context.Context) ([]Signal, error) {
	m.mu.Lock()
	raw := m.values[KeySignal]
	m.mu.Unlock()
	return decodeSignals(raw)
}

func (m *MemoryStore) Close() error {
	return nil
}
