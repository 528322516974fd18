// Package enclave is the request dispatcher of the coordinator.
//
// An Enclave owns the computation registry and is the only way to reach it.
// Each call to Handle takes an authenticated sender identity and a decoded
// protocol.ClientRequest, runs it to completion, and returns exactly one
// response plus any notifications addressed to other inboxes:
//
//	SetupComputation     -> Registry.Create
//	SubmitValue          -> Computation.Submit (sender is the contributor)
//	GetComputationResult -> computation.Compute
//	ListComputations     -> Registry.List filtered by sender
//
// Errors never escape Handle. They are mapped to response codes:
//
//	ErrQuorumInvalid, ErrQuorumNotReached -> QUORUM_NOT_REACHED
//	ErrNotAuthorized, ErrNotParticipant   -> NOT_AUTHORISED
//	ErrLocked                             -> COMPUTATION_LOCKED
//	ErrNoResults                          -> NO_RESULTS
//	ErrAlreadyExists                      -> ALREADY_EXISTS
//	anything else                         -> INVALID_REQUEST
//
// A request naming a computation that does not exist is answered NOT_AUTHORISED,
// the same as a request from an outsider, so names cannot be probed.
package enclave
