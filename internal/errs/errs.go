// Package errs defines the closed set of error kinds the pipeline
// distinguishes, per the error handling design: transient, permanent,
// rate-limited, commit-conflict, and invariant violations each drive
// different propagation policy.
package errs

import "errors"

var (
	// ErrTransient marks a network/service failure eligible for
	// operation-layer retry and source-layer backoff (timeout, DNS,
	// 5xx, 429).
	ErrTransient = errors.New("transient error")

	// ErrPermanent marks a per-source failure that is not retried
	// within the run but does not deprecate the source automatically
	// (4xx other than 304, invalid TLS chain, robots blocks the
	// entire scope).
	ErrPermanent = errors.New("permanent source error")

	// ErrRateLimited marks an extractor signaling a rate limit. The
	// extraction driver treats this as a distinguishable kind that
	// triggers a partial-progress flush and exit code 42.
	ErrRateLimited = errors.New("rate limited")

	// ErrCommitConflict marks a not-fast-forward ref update. Retried
	// internally up to 3 times by the store adapter; surfaced as
	// fatal after that.
	ErrCommitConflict = errors.New("commit conflict")

	// ErrInvariantViolation marks corrupt durable state (unknown
	// manifest version, malformed crawl state). Fatal, no mutation.
	ErrInvariantViolation = errors.New("invariant violation")
)

// IsRetryable reports whether err (or anything it wraps) is a
// transient condition the caller may retry with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
