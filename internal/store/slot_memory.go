package store

import (
	"context"
	"sync"
)

// MemorySlot keeps the roster bytes in process memory.
type MemorySlot struct {
	mu   sync.Mutex
	data []byte
	set  bool
}

// NewMemorySlot creates an empty MemorySlot.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

// Read returns a copy of the stored bytes.
func (s *MemorySlot) Read(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.set {
		return nil, ErrSlotEmpty
	}
	return append([]byte(nil), s.data...), nil
}

// Write stores a copy of data.
func (s *MemorySlot) Write(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append([]byte(nil), data...)
	s.set = true
	return nil
}

// Clear forgets the stored bytes.
func (s *MemorySlot) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = nil
	s.set = false
	return nil
}

// Exists reports whether anything is stored.
func (s *MemorySlot) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}
