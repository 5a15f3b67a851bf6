// Package herrors defines the error kinds surfaced by the cache core and its
// storage backends.
package herrors

import "errors"

// ErrNotFound is returned by AddResponse/UpdatePair when no pair exists
// with the given id.
var ErrNotFound = errors.New("hishel: pair not found")

// ErrAlreadyComplete is returned by AddResponse when the target pair has
// already been completed by a previous call. Two concurrent AddResponse
// calls for the same pair id are defined to fail the loser with this error.
var ErrAlreadyComplete = errors.New("hishel: pair already complete")

// ErrIDMismatch is returned by UpdatePair when the replacement pair (or the
// pair returned by the update function) carries a different id than the
// pair being updated.
var ErrIDMismatch = errors.New("hishel: update changed pair id")

// ErrCorrupt marks a pair that fails the corruption predicate of the
// cleanup scan (incomplete beyond the grace period, or missing its
// end-of-stream sentinel). Corrupt pairs are filtered from reads and
// reaped by cleanup.
var ErrCorrupt = errors.New("hishel: pair is corrupt")

// ErrStorage wraps a backend I/O failure. Callers should use errors.Is
// against ErrStorage after unwrapping, or errors.As to recover the
// underlying cause.
var ErrStorage = errors.New("hishel: storage error")

// ErrTransport wraps a SendRequest failure. It never accompanies a mutation
// of stored cache state.
var ErrTransport = errors.New("hishel: transport error")
