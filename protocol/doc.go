// Package protocol defines the logical request and response shapes exchanged
// between participants and the computation enclave.
//
// Participants send a ClientRequest wrapped in a Signed envelope. The signer's
// public key is the authenticated sender identity; nothing else in the request
// names the sender. The enclave answers with a Response carrying a ResponseCode
// and, for key-match computations, additional Mail addressed to inbox routes
// derived from the recipients' identities.
//
// # Requests
//
//   - SetupComputation: declare a named computation, its kind, participants and quorum
//   - SubmitValue: contribute a value (and optional commentary) to a computation
//   - GetComputationResult: compute or read the result of a computation
//   - ListComputations: list computations the sender participates in
//
// # Response codes
//
//   - SUCCESS: the request applied and the payload is present
//   - QUORUM_NOT_REACHED: the quorum is invalid at setup or not yet met at read time
//   - NOT_AUTHORISED: the sender is not a participant of the named computation
//   - NO_RESULTS: a filtered read yielded nothing, or no submitted value was usable
//   - COMPUTATION_LOCKED: a submission arrived after the one-shot result was produced
//   - CHECK_INBOX: the result is delivered as Mail to the route named in the response
//   - ALREADY_EXISTS: a computation with the requested name exists
//   - INVALID_REQUEST: the request was malformed or exceeded configured limits
//
// Messages are serialized as JSON. The signature covers the serialized object
// followed by the signer's public key.
package protocol
