package queue

import "errors"

var (
	// ErrJobNotFound reports a claim or lookup against an id that does
	// not exist.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotQueued reports a claim-by-id race: the job exists but is
	// no longer in the queued state.
	ErrJobNotQueued = errors.New("job not queued")
	// ErrContentNotFound reports a lookup for an unknown content id.
	ErrContentNotFound = errors.New("content not found")
)
