package store

import (
	"context"
	"fmt"
	"time"

	"github.com/terrencegiggy/content-pipeline/internal/errs"
	"github.com/terrencegiggy/content-pipeline/internal/githubapi"
)

// Remote is the GitHub-backed backend: single Put calls go through
// the Contents API (one call, one commit); PutBatch builds one Git
// tree referencing every blob and advances the working branch in one
// ref update, retrying on a not-fast-forward conflict.
type Remote struct {
	client *githubapi.Client
	branch string

	maxConflictRetries int
	retryBackoff       time.Duration
}

// NewRemote wraps client against the given working branch.
func NewRemote(client *githubapi.Client, branch string) *Remote {
	return &Remote{
		client:             client,
		branch:             branch,
		maxConflictRetries: 3,
		retryBackoff:       2 * time.Second,
	}
}

// Put creates or updates a single file against the working branch.
func (r *Remote) Put(ctx context.Context, path string, data []byte, message string) error {
	_, existingSHA, err := r.client.GetFile(ctx, path, r.branch)
	if err != nil && !githubapi.IsNotFound(err) {
		return r.classify(err)
	}
	if err := r.client.PutFile(ctx, path, data, message, r.branch, existingSHA); err != nil {
		return r.classify(err)
	}
	return nil
}

// PutBatch builds one tree + one commit covering every file and
// fast-forwards the branch to it. On a 409 not-fast-forward, it
// re-reads the branch tip, re-parents the commit, and retries up to
// maxConflictRetries times before surfacing ErrCommitConflict-class
// error to the caller.
func (r *Remote) PutBatch(ctx context.Context, files []FileWrite, message string) error {
	if len(files) == 0 {
		return nil
	}

	gfiles := make([]githubapi.FileWrite, len(files))
	for i, f := range files {
		gfiles[i] = githubapi.FileWrite{Path: f.Path, Content: f.Data}
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxConflictRetries; attempt++ {
		parentSHA, err := r.client.GetRefSHA(ctx, r.branch)
		if err != nil {
			return r.classify(err)
		}

		commitSHA, err := r.client.CommitBatch(ctx, parentSHA, gfiles, message)
		if err != nil {
			return r.classify(err)
		}

		err = r.client.UpdateRef(ctx, r.branch, commitSHA, false)
		if err == nil {
			return nil
		}
		if !githubapi.IsConflict(err) {
			return r.classify(err)
		}

		lastErr = err
		if attempt < r.maxConflictRetries {
			time.Sleep(r.retryBackoff)
		}
	}
	return fmt.Errorf("put_batch: not-fast-forward after %d retries: %w: %w", r.maxConflictRetries, errs.ErrCommitConflict, lastErr)
}

// Get reads path at the working branch's current tip.
func (r *Remote) Get(ctx context.Context, path string) ([]byte, bool, error) {
	data, _, err := r.client.GetFile(ctx, path, r.branch)
	if err != nil {
		if githubapi.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, r.classify(err)
	}
	if data == nil {
		return nil, false, nil
	}
	return data, true, nil
}

// Exists reports whether path is present on the working branch.
func (r *Remote) Exists(ctx context.Context, path string) (bool, error) {
	_, ok, err := r.Get(ctx, path)
	return ok, err
}

// classify distinguishes fatal 4xx errors (other than 409, handled by
// the caller) from retryable transport/5xx failures. Retry-with-
// backoff for transport/5xx is the operation layer's job (§7); this
// function only adds context so callers can tell the two apart via
// githubapi.IsServerError/IsNotFound without a second round trip.
func (r *Remote) classify(err error) error {
	if err == nil {
		return nil
	}
	if githubapi.IsServerError(err) {
		return fmt.Errorf("github store: transient: %w", err)
	}
	return fmt.Errorf("github store: %w", err)
}
