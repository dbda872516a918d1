package tempstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DiskStore keeps each document in its own file under dir.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the directory if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create temp dir %s: %w", dir, err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the directory documents are written to.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Acquire writes data to a fresh file.
func (s *DiskStore) Acquire(ctx context.Context, data []byte, suggestedName string) (*Handle, error) {
	if err := validateInput(data); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	path := filepath.Join(s.dir, "taxdoc-"+id+sanitizeExt(suggestedName))

	// O_EXCL: a collision means someone else owns the path
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	return &Handle{
		ID:   id,
		Name: suggestedName,
		Path: path,
		Size: int64(len(data)),
	}, nil
}

// Release removes the file behind h.
func (s *DiskStore) Release(h *Handle) error {
	if h == nil {
		return fmt.Errorf("nil handle")
	}
	if !h.markReleased() {
		return ErrAlreadyReleased
	}

	if err := os.Remove(h.Path); err != nil {
		if os.IsNotExist(err) {
			return ErrResourceGone
		}
		return fmt.Errorf("failed to remove %s: %w", h.Path, err)
	}
	return nil
}

// sanitizeExt keeps a short alphanumeric extension from name, so tesseract
// and friends can still sniff the format from the path.
func sanitizeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
