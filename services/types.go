package services

import (
	"log/slog"
	"time"
)

// CorrelationIDHeader carries the route a request's response is posted to.
// Clients may choose it (it must be a UUID) or let the host generate one.
const CorrelationIDHeader = "X-Correlation-Id"

// MailReceipt acknowledges a request. The response itself is delivered to the
// inbox route named by CorrelationID.
type MailReceipt struct {
	CorrelationID string `json:"correlation_id"`
}

// HostConfig configures the HTTP host.
type HostConfig struct {
	// RateLimit bounds requests per client address on /mail and /inbox.
	RateLimit RateLimitConfig

	// CORSOrigins lists origins allowed to call the host from a browser.
	// Empty disables CORS headers.
	CORSOrigins []string

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64

	// CollectMaxSkew bounds the age of signed collect requests. Defaults to 5 minutes.
	CollectMaxSkew time.Duration

	Log *slog.Logger
}

const (
	defaultMaxBodyBytes   = 1 << 20
	defaultCollectMaxSkew = 5 * time.Minute
	maxRouteLength        = 128
)
