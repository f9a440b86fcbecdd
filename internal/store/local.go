package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Local is the filesystem backend: write to a temp sibling, then
// atomically rename over the target. message is accepted for
// interface parity with the remote backend and ignored — a local
// filesystem has no commit log.
type Local struct {
	Root string
}

// NewLocal roots a Local backend at dir, creating it if absent.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store root %s: %w", dir, err)
	}
	return &Local{Root: dir}, nil
}

func (l *Local) abs(path string) string {
	return filepath.Join(l.Root, filepath.FromSlash(path))
}

// Put writes data atomically: a temp file in the same directory as
// the target, then os.Rename, which is atomic on POSIX filesystems.
func (l *Local) Put(_ context.Context, path string, data []byte, _ string) error {
	target := l.abs(path)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", path, err)
	}

	tmp := target + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename into place %s: %w", path, err)
	}
	return nil
}

// PutBatch writes every file via Put. A local filesystem has no
// multi-file transaction primitive; atomicity across files is not
// offered in local mode (only the remote backend batches into one
// commit) — each individual file write is still atomic.
func (l *Local) PutBatch(ctx context.Context, files []FileWrite, message string) error {
	for _, f := range files {
		if err := l.Put(ctx, f.Path, f.Data, message); err != nil {
			return err
		}
	}
	return nil
}

// Get reads path, reporting ok=false if it does not exist.
func (l *Local) Get(_ context.Context, path string) ([]byte, bool, error) {
	data, err := os.ReadFile(l.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return data, true, nil
}

// Exists reports whether path is present.
func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(l.abs(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}
