package protocol

import (
	"errors"
	"fmt"

	"github.com/flashbots/quorumcompute/crypto"
)

// ComputationKind selects how submissions of a computation are combined.
type ComputationKind string

const (
	// Average reveals the arithmetic mean of the latest values.
	Average ComputationKind = "avg"
	// Minimum reveals the identity of the contributor holding the smallest latest value.
	Minimum ComputationKind = "min"
	// Maximum reveals the identity of the contributor holding the largest latest value.
	Maximum ComputationKind = "max"
	// KeyMatch groups contributors that submitted identical values.
	KeyMatch ComputationKind = "key"
)

// Valid returns true if the kind is recognized.
func (k ComputationKind) Valid() bool {
	switch k {
	case Average, Minimum, Maximum, KeyMatch:
		return true
	}
	return false
}

// Locks reports whether the first successful result freezes the computation.
func (k ComputationKind) Locks() bool {
	return k != KeyMatch
}

// ResponseCode is attached to every response produced by the enclave.
type ResponseCode string

const (
	Success           ResponseCode = "SUCCESS"
	QuorumNotReached  ResponseCode = "QUORUM_NOT_REACHED"
	NotAuthorised     ResponseCode = "NOT_AUTHORISED"
	NoResults         ResponseCode = "NO_RESULTS"
	ComputationLocked ResponseCode = "COMPUTATION_LOCKED"
	CheckInbox        ResponseCode = "CHECK_INBOX"
	AlreadyExists     ResponseCode = "ALREADY_EXISTS"
	InvalidRequest    ResponseCode = "INVALID_REQUEST"
)

// RequestType tags the payload carried by a ClientRequest.
type RequestType string

const (
	SetupComputationRequest     RequestType = "setup_computation"
	SubmitValueRequest          RequestType = "submit_value"
	GetComputationResultRequest RequestType = "get_computation_result"
	ListComputationsRequest     RequestType = "list_computations"
)

// SetupComputation declares a new computation.
type SetupComputation struct {
	Name         string             `json:"name"`
	Kind         ComputationKind    `json:"kind"`
	Participants []crypto.PublicKey `json:"participants"`
	Quorum       int                `json:"quorum"`
}

// SubmitValue contributes a value to a computation on behalf of the sender.
type SubmitValue struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Message string `json:"message,omitempty"`
}

// GetComputationResult asks for the result of a computation.
type GetComputationResult struct {
	Name string `json:"name"`
}

// ListComputations asks for the computations the sender participates in.
type ListComputations struct{}

// ClientRequest is the single request shape accepted by the enclave.
// Exactly one payload matching Type must be set.
//
// Nonce must strictly increase across the signed requests of one sender, so a
// relayed request is accepted at most once. The signer sets it.
type ClientRequest struct {
	Type   RequestType           `json:"type"`
	Nonce  uint64                `json:"nonce"`
	Setup  *SetupComputation     `json:"setup,omitempty"`
	Submit *SubmitValue          `json:"submit,omitempty"`
	Result *GetComputationResult `json:"result,omitempty"`
	List   *ListComputations     `json:"list,omitempty"`
}

// ErrMalformedRequest is returned by Validate for requests whose payload does not match their type.
var ErrMalformedRequest = errors.New("malformed request")

// Validate checks that exactly the payload named by Type is present.
func (r *ClientRequest) Validate() error {
	set := 0
	for _, present := range []bool{r.Setup != nil, r.Submit != nil, r.Result != nil, r.List != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: %d payloads set", ErrMalformedRequest, set)
	}

	var ok bool
	switch r.Type {
	case SetupComputationRequest:
		ok = r.Setup != nil
	case SubmitValueRequest:
		ok = r.Submit != nil
	case GetComputationResultRequest:
		ok = r.Result != nil
	case ListComputationsRequest:
		ok = r.List != nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedRequest, r.Type)
	}
	if !ok {
		return fmt.Errorf("%w: payload does not match type %q", ErrMalformedRequest, r.Type)
	}
	return nil
}

// NewSetupRequest wraps a SetupComputation.
func NewSetupRequest(name string, kind ComputationKind, participants []crypto.PublicKey, quorum int) *ClientRequest {
	return &ClientRequest{Type: SetupComputationRequest, Setup: &SetupComputation{
		Name:         name,
		Kind:         kind,
		Participants: participants,
		Quorum:       quorum,
	}}
}

// NewSubmitRequest wraps a SubmitValue.
func NewSubmitRequest(name, value, message string) *ClientRequest {
	return &ClientRequest{Type: SubmitValueRequest, Submit: &SubmitValue{Name: name, Value: value, Message: message}}
}

// NewResultRequest wraps a GetComputationResult.
func NewResultRequest(name string) *ClientRequest {
	return &ClientRequest{Type: GetComputationResultRequest, Result: &GetComputationResult{Name: name}}
}

// NewListRequest wraps a ListComputations.
func NewListRequest() *ClientRequest {
	return &ClientRequest{Type: ListComputationsRequest, List: &ListComputations{}}
}

// ComputationSummary describes a computation to one of its participants.
type ComputationSummary struct {
	Name         string          `json:"name"`
	Kind         ComputationKind `json:"kind"`
	Participants int             `json:"participants"`
	Quorum       int             `json:"quorum"`
	Contributors int             `json:"contributors"`
	Locked       bool            `json:"locked"`
}

// Commentary is a free-text annotation attached to a submission.
// Commentary is visible to every participant regardless of value visibility.
type Commentary struct {
	Contributor crypto.PublicKey `json:"contributor"`
	Message     string           `json:"message"`
}

// Response is the reply to a ClientRequest.
//
// Message carries the visible result: the mean for averages, the winning
// contributor's identity for minimum and maximum. For CHECK_INBOX responses
// Route names the inbox holding the deferred payload.
type Response struct {
	Code         ResponseCode         `json:"code"`
	Message      string               `json:"message,omitempty"`
	Route        string               `json:"route,omitempty"`
	Computations []ComputationSummary `json:"computations,omitempty"`
	Commentary   []Commentary         `json:"commentary,omitempty"`
}

// KeyMatchGroup is one group of contributors that submitted the same key.
type KeyMatchGroup struct {
	Key          string             `json:"key"`
	Contributors []crypto.PublicKey `json:"contributors"`
	Commentary   []Commentary       `json:"commentary,omitempty"`
}

// KeyMatchResult is the deferred payload for a key-match computation.
// Each recipient only sees groups for keys it submitted itself.
type KeyMatchResult struct {
	Computation string          `json:"computation"`
	Matches     []KeyMatchGroup `json:"matches"`
}

// Mail is a payload addressed to an inbox route.
// Exactly one of Response or KeyMatch is set.
type Mail struct {
	Route    string          `json:"route"`
	Response *Response       `json:"response,omitempty"`
	KeyMatch *KeyMatchResult `json:"key_match,omitempty"`
}

// EnclaveInfo lets participants authenticate the enclave before sending mail.
// Attestation is evidence over tdx.ReportData(PublicKey); every mail delivered
// through the host is signed by PublicKey.
type EnclaveInfo struct {
	PublicKey       crypto.PublicKey `json:"public_key"`
	AttestationType string           `json:"attestation_type"`
	Attestation     []byte           `json:"attestation"`
	Config          *EngineConfig    `json:"config,omitempty"`
}

// CollectRequest asks the host to drain an inbox route.
// Key-match routes may only be collected by the identity they are derived
// from; correlation routes by anyone holding the correlation id.
type CollectRequest struct {
	Route    string `json:"route"`
	IssuedAt int64  `json:"issued_at"`
}
