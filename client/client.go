package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flashbots/quorumcompute/crypto"
	"github.com/flashbots/quorumcompute/protocol"
	"github.com/flashbots/quorumcompute/services"
	"github.com/flashbots/quorumcompute/tdx"
	"go.uber.org/atomic"
)

var (
	// ErrEnclaveNotVerified is returned when mail is read before the enclave key is pinned.
	ErrEnclaveNotVerified = errors.New("enclave key not verified")
	// ErrUntrustedMail is returned for mail not signed by the pinned enclave key.
	ErrUntrustedMail = errors.New("mail not signed by enclave")
	// ErrNoResponse is returned when no reply arrived before the context expired.
	ErrNoResponse = errors.New("no response received")
)

// Client sends signed requests to a coordinator host on behalf of one
// participant and collects the replies from its inboxes.
//
// Call Verify before reading any mail: it checks the enclave's attestation and
// pins the key every mail must be signed with.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	signingKey   crypto.PrivateKey
	publicKey    crypto.PublicKey
	enclaveKey   crypto.PublicKey
	pollInterval time.Duration
	now          func() time.Time

	// nonce is the last request nonce used. Nonces follow the wall clock in
	// nanoseconds so they keep increasing across client restarts.
	nonce atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithPollInterval sets how often Do polls for a reply.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// WithEnclaveKey pins an enclave key verified out of band.
func WithEnclaveKey(pk crypto.PublicKey) Option {
	return func(c *Client) { c.enclaveKey = crypto.NewPublicKeyFromBytes(pk) }
}

// New creates a client for the host at baseURL signing with signingKey.
func New(baseURL string, signingKey crypto.PrivateKey, opts ...Option) (*Client, error) {
	publicKey, err := signingKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("deriving public key: %w", err)
	}

	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		signingKey:   signingKey,
		publicKey:    publicKey,
		pollInterval: 100 * time.Millisecond,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PublicKey returns the participant identity the client signs as.
func (c *Client) PublicKey() crypto.PublicKey {
	return c.publicKey
}

// Route returns the inbox route key-match notifications for this participant arrive on.
func (c *Client) Route() string {
	return crypto.InboxRoute(c.publicKey)
}

// Verify fetches the enclave's attestation, checks it with provider against
// source (which may be nil to skip the measurement check) and pins the key.
func (c *Client) Verify(ctx context.Context, provider tdx.Provider, source tdx.MeasurementSource) (*protocol.EnclaveInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/attestation", nil)
	if err != nil {
		return nil, err
	}
	var info protocol.EnclaveInfo
	if err := c.doJSON(req, http.StatusOK, &info); err != nil {
		return nil, fmt.Errorf("fetching attestation: %w", err)
	}

	if _, err := tdx.VerifyEnclaveInfo(ctx, provider, source, &info); err != nil {
		return nil, err
	}

	c.enclaveKey = info.PublicKey
	return &info, nil
}

// Send posts a signed request and returns the correlation id its reply will
// be delivered under.
func (c *Client) Send(ctx context.Context, request *protocol.ClientRequest) (string, error) {
	r := *request
	r.Nonce = c.nextNonce()
	signed, err := protocol.NewSigned(c.signingKey, &r)
	if err != nil {
		return "", fmt.Errorf("signing request: %w", err)
	}
	req, err := c.newJSONRequest(ctx, "/mail", signed)
	if err != nil {
		return "", err
	}

	var receipt services.MailReceipt
	if err := c.doJSON(req, http.StatusAccepted, &receipt); err != nil {
		return "", fmt.Errorf("sending mail: %w", err)
	}
	return receipt.CorrelationID, nil
}

func (c *Client) nextNonce() uint64 {
	for {
		last := c.nonce.Load()
		next := max(last+1, uint64(c.now().UnixNano()))
		if c.nonce.CompareAndSwap(last, next) {
			return next
		}
	}
}

// Collect drains route and returns its mail after checking the enclave signature.
func (c *Client) Collect(ctx context.Context, route string) ([]*protocol.Mail, error) {
	if len(c.enclaveKey) == 0 {
		return nil, ErrEnclaveNotVerified
	}

	signed, err := protocol.NewSigned(c.signingKey, &protocol.CollectRequest{
		Route:    route,
		IssuedAt: c.now().Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("signing collect request: %w", err)
	}
	req, err := c.newJSONRequest(ctx, "/inbox", signed)
	if err != nil {
		return nil, err
	}

	var collected []*services.SignedMail
	if err := c.doJSON(req, http.StatusOK, &collected); err != nil {
		return nil, fmt.Errorf("collecting mail: %w", err)
	}

	out := make([]*protocol.Mail, 0, len(collected))
	for _, s := range collected {
		mail, signer, err := s.Recover()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUntrustedMail, err)
		}
		if !signer.Equal(c.enclaveKey) {
			return nil, ErrUntrustedMail
		}
		out = append(out, mail)
	}
	return out, nil
}

// Do sends request and waits for its reply.
func (c *Client) Do(ctx context.Context, request *protocol.ClientRequest) (*protocol.Response, error) {
	correlationID, err := c.Send(ctx, request)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		mail, err := c.Collect(ctx, correlationID)
		if err != nil {
			return nil, err
		}
		for _, m := range mail {
			if m.Response != nil {
				return m.Response, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrNoResponse, ctx.Err())
		case <-ticker.C:
		}
	}
}

// KeyMatches drains this participant's key-match inbox.
func (c *Client) KeyMatches(ctx context.Context) ([]*protocol.KeyMatchResult, error) {
	mail, err := c.Collect(ctx, c.Route())
	if err != nil {
		return nil, err
	}
	var out []*protocol.KeyMatchResult
	for _, m := range mail {
		if m.KeyMatch != nil {
			out = append(out, m.KeyMatch)
		}
	}
	return out, nil
}

// Setup declares a computation.
func (c *Client) Setup(ctx context.Context, name string, kind protocol.ComputationKind, participants []crypto.PublicKey, quorum int) (*protocol.Response, error) {
	return c.Do(ctx, protocol.NewSetupRequest(name, kind, participants, quorum))
}

// Submit contributes value, with optional commentary, to a computation.
func (c *Client) Submit(ctx context.Context, name, value, message string) (*protocol.Response, error) {
	return c.Do(ctx, protocol.NewSubmitRequest(name, value, message))
}

// Result asks for the result of a computation.
func (c *Client) Result(ctx context.Context, name string) (*protocol.Response, error) {
	return c.Do(ctx, protocol.NewResultRequest(name))
}

// List asks for the computations this participant is part of.
func (c *Client) List(ctx context.Context) (*protocol.Response, error) {
	return c.Do(ctx, protocol.NewListRequest())
}

func (c *Client) newJSONRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) doJSON(req *http.Request, wantStatus int, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("host returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
