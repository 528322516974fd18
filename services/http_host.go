package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/flashbots/quorumcompute/crypto"
	"github.com/flashbots/quorumcompute/enclave"
	"github.com/flashbots/quorumcompute/protocol"
	"github.com/flashbots/quorumcompute/tdx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

// HTTPHost relays signed requests to the enclave and serves its mail.
//
// The host holds no engine state. Every reply is posted to the inbox route
// named by the request's correlation id, and key-match notifications to the
// routes the enclave addressed them to, each signed by the enclave key.
type HTTPHost struct {
	enclave    *enclave.Enclave
	inbox      Inbox
	signingKey crypto.PrivateKey
	info       *protocol.EnclaveInfo
	config     *HostConfig
	limiter    *clientLimiter
	log        *slog.Logger
	now        func() time.Time
}

// NewHTTPHost creates a host for e. The enclave signing key is attested once
// with provider and published on /attestation.
func NewHTTPHost(config *HostConfig, e *enclave.Enclave, inbox Inbox, signingKey crypto.PrivateKey, provider tdx.Provider) (*HTTPHost, error) {
	if config == nil {
		config = &HostConfig{}
	}
	log := config.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	pubKey, err := signingKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("deriving enclave public key: %w", err)
	}
	evidence, err := tdx.AttestKey(provider, pubKey)
	if err != nil {
		return nil, fmt.Errorf("attesting enclave key: %w", err)
	}

	return &HTTPHost{
		enclave:    e,
		inbox:      inbox,
		signingKey: signingKey,
		info: &protocol.EnclaveInfo{
			PublicKey:       pubKey,
			AttestationType: provider.AttestationType(),
			Attestation:     evidence,
			Config:          e.Config(),
		},
		config:  config,
		limiter: newClientLimiter(config.RateLimit),
		log:     log,
		now:     time.Now,
	}, nil
}

// EnclaveInfo returns what the host publishes on /attestation.
func (h *HTTPHost) EnclaveInfo() *protocol.EnclaveInfo {
	return h.info
}

// RegisterRoutes registers the host's HTTP routes.
func (h *HTTPHost) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if len(h.config.CORSOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: h.config.CORSOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost},
				AllowedHeaders: []string{"Content-Type", CorrelationIDHeader},
				ExposedHeaders: []string{CorrelationIDHeader},
				MaxAge:         300,
			}))
			// Preflight requests must match a route for the group middleware to run.
			for _, path := range []string{"/attestation", "/config", "/mail", "/inbox"} {
				r.Options(path, func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusNoContent)
				})
			}
		}

		r.Get("/attestation", h.handleAttestation)
		r.Get("/config", h.handleConfig)

		r.Group(func(r chi.Router) {
			r.Use(h.limiter.middleware)
			r.Post("/mail", h.handleMail)
			r.Post("/inbox", h.handleCollect)
		})
	})
}

func (h *HTTPHost) maxBodyBytes() int64 {
	if h.config.MaxBodyBytes > 0 {
		return h.config.MaxBodyBytes
	}
	return defaultMaxBodyBytes
}

func (h *HTTPHost) collectMaxSkew() time.Duration {
	if h.config.CollectMaxSkew > 0 {
		return h.config.CollectMaxSkew
	}
	return defaultCollectMaxSkew
}

func (h *HTTPHost) handleAttestation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.info)
}

func (h *HTTPHost) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.enclave.Config())
}

func (h *HTTPHost) handleMail(w http.ResponseWriter, r *http.Request) {
	correlationID, err := requestCorrelationID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes())
	var signedReq protocol.Signed[protocol.ClientRequest]
	if err := json.NewDecoder(r.Body).Decode(&signedReq); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reply, sender, err := h.enclave.HandleSigned(&signedReq)
	switch {
	case errors.Is(err, enclave.ErrReplayedRequest):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, fmt.Errorf("invalid signature: %w", err).Error(), http.StatusForbidden)
		return
	}

	// The request has been applied. Only a lost response is reported to the
	// sender; lost notifications are logged.
	if err := h.deliver(r, &protocol.Mail{Route: correlationID, Response: reply.Response}); err != nil {
		h.log.Error("delivering response failed", "route", correlationID, "err", err)
		http.Error(w, "could not deliver response", http.StatusInternalServerError)
		return
	}

	delivered := 0
	for _, mail := range reply.Notifications {
		if err := h.deliver(r, mail); err != nil {
			h.log.Error("delivering notification failed", "route", mail.Route, "err", err)
			continue
		}
		delivered++
	}

	h.log.Debug("mail relayed",
		"sender", sender.Short(),
		"correlationID", correlationID,
		"notifications", delivered)

	w.Header().Set(CorrelationIDHeader, correlationID)
	writeJSON(w, http.StatusAccepted, &MailReceipt{CorrelationID: correlationID})
}

func (h *HTTPHost) deliver(r *http.Request, mail *protocol.Mail) error {
	signed, err := protocol.NewSigned(h.signingKey, mail)
	if err != nil {
		return fmt.Errorf("signing mail: %w", err)
	}
	return h.inbox.Post(r.Context(), signed)
}

func (h *HTTPHost) handleCollect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes())
	var signedReq protocol.Signed[protocol.CollectRequest]
	if err := json.NewDecoder(r.Body).Decode(&signedReq); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req, signer, err := signedReq.Recover()
	if err != nil {
		http.Error(w, fmt.Errorf("invalid signature: %w", err).Error(), http.StatusForbidden)
		return
	}

	if err := h.authorizeCollect(req, signer); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	mail, err := h.inbox.Collect(r.Context(), req.Route)
	if err != nil {
		h.log.Error("collecting mail failed", "err", err)
		http.Error(w, "could not collect mail", http.StatusInternalServerError)
		return
	}
	if mail == nil {
		mail = []*SignedMail{}
	}
	writeJSON(w, http.StatusOK, mail)
}

var errCollectNotAllowed = errors.New("route may not be collected by this identity")

func (h *HTTPHost) authorizeCollect(req *protocol.CollectRequest, signer crypto.PublicKey) error {
	if req.Route == "" || len(req.Route) > maxRouteLength {
		return fmt.Errorf("invalid route %q", req.Route)
	}

	issued := time.Unix(req.IssuedAt, 0)
	if skew := h.now().Sub(issued).Abs(); skew > h.collectMaxSkew() {
		return fmt.Errorf("collect request issued %s away from host time", skew.Round(time.Second))
	}

	if strings.HasPrefix(req.Route, crypto.KeyMatchRoutePrefix) && req.Route != crypto.InboxRoute(signer) {
		return errCollectNotAllowed
	}
	return nil
}

// requestCorrelationID returns the client's correlation id in canonical form,
// or a fresh one if the client did not choose any.
func requestCorrelationID(r *http.Request) (string, error) {
	header := r.Header.Get(CorrelationIDHeader)
	if header == "" {
		return uuid.NewString(), nil
	}
	id, err := uuid.Parse(header)
	if err != nil {
		return "", fmt.Errorf("invalid correlation id: %w", err)
	}
	return id.String(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
