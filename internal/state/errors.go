package state

import "errors"

var (
	// ErrNotPublished is returned before the first snapshot has been published.
	ErrNotPublished = errors.New("state: no snapshot published yet")
	// ErrStale is returned when no snapshot has been published within the stale threshold.
	ErrStale = errors.New("state: flight data is stale")
)
