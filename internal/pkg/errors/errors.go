package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks malformed datasets or arguments. Always fatal.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable marks transient connectivity failures against the graph store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrStoreWrite marks a failed write transaction.
	ErrStoreWrite = errors.New("store write failed")
	// ErrLocked is returned when another run holds the ingestion lock.
	ErrLocked = errors.New("run lock held")
	// ErrLockLost means the run lock expired or was taken over mid-run.
	ErrLockLost = errors.New("run lock lost")
)
