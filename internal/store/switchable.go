package store

import (
	"context"
	"fmt"
	"sync"
)

// Switchable is a Backend whose underlying implementation can be
// swapped at runtime. The registry, manifest, and crawl-state store
// are all constructed once against a Switchable; the pipeline runner
// retargets it to a freshly opened per-run working branch without
// reconstructing any of them.
type Switchable struct {
	mu    sync.RWMutex
	inner Backend
}

// NewSwitchable wraps inner (which may be nil until Set is called).
func NewSwitchable(inner Backend) *Switchable {
	return &Switchable{inner: inner}
}

// Set retargets the Switchable to a new backend.
func (s *Switchable) Set(inner Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner = inner
}

func (s *Switchable) current() (Backend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.inner == nil {
		return nil, fmt.Errorf("switchable backend: no backend set")
	}
	return s.inner, nil
}

func (s *Switchable) Put(ctx context.Context, path string, data []byte, message string) error {
	b, err := s.current()
	if err != nil {
		return err
	}
	return b.Put(ctx, path, data, message)
}

func (s *Switchable) PutBatch(ctx context.Context, files []FileWrite, message string) error {
	b, err := s.current()
	if err != nil {
		return err
	}
	return b.PutBatch(ctx, files, message)
}

func (s *Switchable) Get(ctx context.Context, path string) ([]byte, bool, error) {
	b, err := s.current()
	if err != nil {
		return nil, false, err
	}
	return b.Get(ctx, path)
}

func (s *Switchable) Exists(ctx context.Context, path string) (bool, error) {
	b, err := s.current()
	if err != nil {
		return false, err
	}
	return b.Exists(ctx, path)
}
