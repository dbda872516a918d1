package tempstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MemoryStore keeps a private copy of each document in memory.
type MemoryStore struct{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Acquire(ctx context.Context, data []byte, suggestedName string) (*Handle, error) {
	if err := validateInput(data); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	return &Handle{
		ID:   uuid.New().String(),
		Name: suggestedName,
		Size: int64(len(buf)),
		data: buf,
	}, nil
}

func (s *MemoryStore) Release(h *Handle) error {
	if h == nil {
		return fmt.Errorf("nil handle")
	}
	if !h.markReleased() {
		return ErrAlreadyReleased
	}
	h.data = nil
	return nil
}
