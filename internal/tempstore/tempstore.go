/**
 * Temporary document storage
 *
 * Scoped acquisition of a transient buffer for one uploaded document.
 * Every Acquire is paired with exactly one Release by the caller, usually
 * through a defer placed directly after the Acquire succeeds.
 */

package tempstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/adverant/nexus/taxdoc-worker/internal/errors"
)

var (
	// ErrAlreadyReleased is returned when a handle is released twice.
	ErrAlreadyReleased = stderrors.New("temporary resource already released")

	// ErrResourceGone is returned when the backing resource vanished before release.
	ErrResourceGone = stderrors.New("temporary resource no longer exists")
)

// Manager acquires and releases transient document buffers
type Manager interface {
	Acquire(ctx context.Context, data []byte, suggestedName string) (*Handle, error)
	Release(h *Handle) error
}

// Handle identifies one acquired document buffer. It is owned by a single
// pipeline invocation and must not be shared.
type Handle struct {
	ID   string
	Name string // suggested (original) filename
	Path string // empty for in-memory handles
	Size int64

	data     []byte
	released atomic.Bool
}

// ReadAll returns the document bytes behind the handle.
func (h *Handle) ReadAll() ([]byte, error) {
	if h == nil {
		return nil, fmt.Errorf("nil handle")
	}
	if h.released.Load() {
		return nil, ErrAlreadyReleased
	}
	if h.Path == "" {
		return h.data, nil
	}

	data, err := os.ReadFile(h.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrResourceGone
		}
		return nil, fmt.Errorf("failed to read temporary file %s: %w", h.Path, err)
	}
	return data, nil
}

// Released reports whether Release has already run for this handle.
func (h *Handle) Released() bool {
	return h.released.Load()
}

// markReleased flips the handle into the released state, returning false
// when it already was.
func (h *Handle) markReleased() bool {
	return h.released.CompareAndSwap(false, true)
}

// New returns the Manager for the configured storage kind ("disk" or "memory").
func New(kind, dir string) (Manager, error) {
	switch kind {
	case "", "disk":
		return NewDiskStore(dir)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown temp storage kind: %s", kind)
	}
}

func validateInput(data []byte) error {
	if len(data) == 0 {
		return errors.NewInputValidationError("", "no document provided")
	}
	return nil
}
