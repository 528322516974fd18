// Package crypto provides the identity and authentication primitives used by the
// computation coordinator.
//
// Participants are identified solely by Ed25519 public keys. The package provides:
//
//   - PublicKey, the participant identity, with a stable hex form used as a map key
//   - PrivateKey and Signature for authenticating requests and responses
//   - InboxRoute, the hash-derived route key-match notifications are addressed to
//
// Transport encryption is not provided here. Requests and responses are signed so
// that the coordinator can attribute every request to exactly one identity; the
// confidentiality of mail in transit is the responsibility of the transport.
package crypto
