package queue

import (
	"context"
	"errors"
	"os"
	"sync"

	"llm-signal-advisor/internal/interfaces"
	"llm-signal-advisor/internal/staging"
)

// FileStore persists the queue as one JSON file, rewritten whole.
type FileStore struct {
	Path string
}

var _ interfaces.QueueStore = (*FileStore)(nil)

func (s *FileStore) Load(_ context.Context) ([]byte, bool, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *FileStore) Save(_ context.Context, b []byte) error {
	return staging.WriteFileAtomic(s.Path, b)
}

// MemoryStore keeps the queue in memory.
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saved bool
	Saves int
}

var _ interfaces.QueueStore = (*MemoryStore)(nil)

// NewMemoryStore returns a store already holding raw.
func NewMemoryStore(raw []byte) *MemoryStore {
	return &MemoryStore{data: append([]byte(nil), raw...), saved: true}
}

func (s *MemoryStore) Load(_ context.Context) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.saved {
		return nil, false, nil
	}
	return append([]byte(nil), s.data...), true, nil
}

func (s *MemoryStore) Save(_ context.Context, b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), b...)
	s.saved = true
	s.Saves++
	return nil
}

// Bytes returns the stored state.
func (s *MemoryStore) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}
