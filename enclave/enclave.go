package enclave

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/flashbots/quorumcompute/computation"
	"github.com/flashbots/quorumcompute/crypto"
	"github.com/flashbots/quorumcompute/protocol"
)

// Reply is everything produced by handling one request.
// Response goes back to the sender; each notification is addressed to an
// inbox route and is delivered by the host.
type Reply struct {
	Response      *protocol.Response
	Notifications []*protocol.Mail
}

// Enclave dispatches authenticated requests to the computation engine.
// It is the only entry point into engine state and holds nothing besides the
// registry it routes to.
type Enclave struct {
	registry *computation.Registry
	config   *protocol.EngineConfig
	log      *slog.Logger

	nonceMu sync.Mutex
	nonces  map[string]uint64
}

// ErrReplayedRequest is returned by HandleSigned for a signed request whose
// nonce does not exceed the latest one accepted from the same sender.
var ErrReplayedRequest = errors.New("replayed request")

// New creates an enclave with an empty registry.
// A nil config selects protocol.DefaultEngineConfig and a nil logger discards output.
func New(config *protocol.EngineConfig, log *slog.Logger) *Enclave {
	if config == nil {
		config = protocol.DefaultEngineConfig()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Enclave{
		registry: computation.NewRegistry(),
		config:   config,
		log:      log,
		nonces:   make(map[string]uint64),
	}
}

// Config returns the limits this enclave enforces.
func (e *Enclave) Config() *protocol.EngineConfig {
	return e.config
}

// HandleSigned authenticates a signed request and handles it on behalf of the
// signer. Requests failing signature verification or replaying an earlier
// nonce are never dispatched.
func (e *Enclave) HandleSigned(signed *protocol.Signed[protocol.ClientRequest]) (*Reply, crypto.PublicKey, error) {
	req, sender, err := signed.Recover()
	if err != nil {
		return nil, nil, err
	}
	if err := e.acceptNonce(sender, req.Nonce); err != nil {
		e.log.Warn("rejected signed request", "sender", sender.Short(), "err", err)
		return nil, sender, err
	}
	return e.Handle(sender, req), sender, nil
}

// acceptNonce records nonce as the latest from sender if it is newer than any
// accepted before.
func (e *Enclave) acceptNonce(sender crypto.PublicKey, nonce uint64) error {
	e.nonceMu.Lock()
	defer e.nonceMu.Unlock()

	id := sender.String()
	if last := e.nonces[id]; nonce <= last {
		return fmt.Errorf("%w: nonce %d, latest accepted %d", ErrReplayedRequest, nonce, last)
	}
	e.nonces[id] = nonce
	return nil
}

// Handle runs one request to completion on behalf of sender. Every outcome,
// including invalid input, is reported through the response code.
func (e *Enclave) Handle(sender crypto.PublicKey, req *protocol.ClientRequest) *Reply {
	reply, name, err := e.dispatch(sender, req)
	if err != nil {
		reply = &Reply{Response: errorResponse(err)}
	}

	attrs := []any{
		"sender", sender.Short(),
		"code", reply.Response.Code,
	}
	if req != nil {
		attrs = append(attrs, "type", req.Type)
	}
	if name != "" {
		attrs = append(attrs, "computation", name)
	}
	if len(reply.Notifications) > 0 {
		attrs = append(attrs, "notifications", len(reply.Notifications))
	}
	if err != nil {
		attrs = append(attrs, "err", err)
	}
	e.log.Debug("handled request", attrs...)

	return reply
}

func (e *Enclave) dispatch(sender crypto.PublicKey, req *protocol.ClientRequest) (*Reply, string, error) {
	if req == nil {
		return nil, "", fmt.Errorf("%w: empty request", computation.ErrInvalidRequest)
	}
	if len(sender) == 0 {
		return nil, "", fmt.Errorf("%w: missing sender identity", computation.ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w: %w", computation.ErrInvalidRequest, err)
	}

	switch req.Type {
	case protocol.SetupComputationRequest:
		reply, err := e.setup(req.Setup)
		return reply, req.Setup.Name, err
	case protocol.SubmitValueRequest:
		reply, err := e.submit(sender, req.Submit)
		return reply, req.Submit.Name, err
	case protocol.GetComputationResultRequest:
		reply, err := e.result(sender, req.Result)
		return reply, req.Result.Name, err
	case protocol.ListComputationsRequest:
		reply, err := e.list(sender)
		return reply, "", err
	}
	return nil, "", fmt.Errorf("%w: unknown request type %q", computation.ErrInvalidRequest, req.Type)
}

func (e *Enclave) setup(req *protocol.SetupComputation) (*Reply, error) {
	if err := e.checkName(req.Name); err != nil {
		return nil, err
	}
	if limit := e.config.MaxParticipants; limit > 0 && len(req.Participants) > limit {
		return nil, fmt.Errorf("%w: %d participants exceeds limit of %d", computation.ErrInvalidRequest, len(req.Participants), limit)
	}

	c, err := e.registry.Create(req.Name, req.Kind, req.Participants, req.Quorum)
	if err != nil {
		return nil, err
	}

	e.log.Info("computation created",
		"computation", c.Name(),
		"kind", c.Kind(),
		"participants", len(c.Participants()),
		"quorum", c.Quorum())

	return &Reply{Response: &protocol.Response{
		Code:    protocol.Success,
		Message: c.Name(),
	}}, nil
}

func (e *Enclave) submit(sender crypto.PublicKey, req *protocol.SubmitValue) (*Reply, error) {
	if err := e.checkName(req.Name); err != nil {
		return nil, err
	}
	if limit := e.config.MaxValueLength; limit > 0 && len(req.Value) > limit {
		return nil, fmt.Errorf("%w: value exceeds %d bytes", computation.ErrInvalidRequest, limit)
	}
	if limit := e.config.MaxMessageLength; limit > 0 && len(req.Message) > limit {
		return nil, fmt.Errorf("%w: message exceeds %d bytes", computation.ErrInvalidRequest, limit)
	}

	c, err := e.lookup(sender, req.Name)
	if err != nil {
		return nil, err
	}

	if _, err := c.Submit(sender, req.Value, req.Message); err != nil {
		return nil, err
	}

	return &Reply{Response: &protocol.Response{
		Code:    protocol.Success,
		Message: c.Name(),
	}}, nil
}

func (e *Enclave) result(sender crypto.PublicKey, req *protocol.GetComputationResult) (*Reply, error) {
	if err := e.checkName(req.Name); err != nil {
		return nil, err
	}

	c, err := e.lookup(sender, req.Name)
	if err != nil {
		return nil, err
	}

	wasLocked := c.Locked()
	outcome, err := computation.Compute(c, sender)
	if err != nil {
		return nil, err
	}
	if !wasLocked && c.Locked() {
		e.log.Info("computation locked", "computation", c.Name(), "kind", c.Kind())
	}

	return &Reply{
		Response:      outcome.Response,
		Notifications: outcome.Notifications,
	}, nil
}

func (e *Enclave) list(sender crypto.PublicKey) (*Reply, error) {
	summaries := e.registry.List(sender)
	if len(summaries) == 0 {
		return nil, fmt.Errorf("%w: %s participates in no computations", computation.ErrNoResults, sender.Short())
	}
	return &Reply{Response: &protocol.Response{
		Code:         protocol.Success,
		Computations: summaries,
	}}, nil
}

// lookup resolves a computation for sender. Unknown names are reported the
// same way as computations the sender is not part of.
func (e *Enclave) lookup(sender crypto.PublicKey, name string) (*computation.Computation, error) {
	c, ok := e.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", computation.ErrNotAuthorized, sender.Short())
	}
	return c, nil
}

func (e *Enclave) checkName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty computation name", computation.ErrInvalidRequest)
	}
	if limit := e.config.MaxNameLength; limit > 0 && len(name) > limit {
		return fmt.Errorf("%w: name exceeds %d bytes", computation.ErrInvalidRequest, limit)
	}
	return nil
}

// ResponseCode maps an engine error to the code reported to the sender.
func ResponseCode(err error) protocol.ResponseCode {
	switch {
	case err == nil:
		return protocol.Success
	case errors.Is(err, computation.ErrQuorumInvalid), errors.Is(err, computation.ErrQuorumNotReached):
		return protocol.QuorumNotReached
	case errors.Is(err, computation.ErrNotAuthorized), errors.Is(err, computation.ErrNotParticipant):
		return protocol.NotAuthorised
	case errors.Is(err, computation.ErrLocked):
		return protocol.ComputationLocked
	case errors.Is(err, computation.ErrNoResults):
		return protocol.NoResults
	case errors.Is(err, computation.ErrAlreadyExists):
		return protocol.AlreadyExists
	default:
		return protocol.InvalidRequest
	}
}

func errorResponse(err error) *protocol.Response {
	return &protocol.Response{
		Code:    ResponseCode(err),
		Message: err.Error(),
	}
}
