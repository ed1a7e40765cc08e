package ranking

import "errors"

// Sentinel kinds for engine input errors. Store-level conditions
// (unknown participants) propagate as repository errors.
var (
	ErrSameParticipant = errors.New("participants must be distinct")
	ErrUnknownOutcome  = errors.New("unknown match outcome")
)
