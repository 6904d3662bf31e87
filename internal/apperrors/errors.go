// Package apperrors defines the sentinel error classes the processing
// pipeline uses to distinguish transient from fatal failures.
package apperrors

import "errors"

var (
	// ErrDecodeLog indicates a log's topics or data did not match the
	// ABI shape its classified standard requires. Always fatal: either
	// the node returned a corrupted response or two unrelated events
	// collided on the same signature hash.
	ErrDecodeLog = errors.New("log decode error")

	// ErrStoreUnavailable indicates the document store rejected or
	// failed to apply a write. Fatal on the first failure: the write is
	// not retried.
	ErrStoreUnavailable = errors.New("document store unavailable")
)
