package logic

import "errors"

// Sentinel errors for remote lookups. Callers branch on these to tell a
// definitive "gone" apart from a transient failure.
var (
	ErrNotFound          = errors.New("remote object not found")
	ErrTombstoned        = errors.New("remote object is gone")
	ErrRemoteUnreachable = errors.New("remote server unreachable")
)
