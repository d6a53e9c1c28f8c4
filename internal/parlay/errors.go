package parlay

import "errors"

var (
	// ErrSnapshotUnavailable wraps any failure to obtain a market snapshot.
	ErrSnapshotUnavailable = errors.New("market snapshot unavailable")
	// ErrNoSnapshotSource is returned when the pipeline was built without a source.
	ErrNoSnapshotSource = errors.New("no snapshot source configured")
)
