package computation

import "errors"

// Request-scoped outcomes. None of them are fatal; the dispatcher maps each to a
// protocol.ResponseCode. Operations returning one of these errors have not
// changed any state.
var (
	ErrAlreadyExists    = errors.New("computation already exists")
	ErrQuorumInvalid    = errors.New("quorum invalid for participant set")
	ErrNotAuthorized    = errors.New("sender is not a participant")
	ErrNotParticipant   = errors.New("contributor is not a participant")
	ErrLocked           = errors.New("computation is locked")
	ErrQuorumNotReached = errors.New("quorum not reached")
	ErrNoResults        = errors.New("no results")
	ErrInvalidRequest   = errors.New("invalid request")
)
