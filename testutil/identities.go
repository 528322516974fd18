package testutil

import (
	"testing"

	"github.com/flashbots/quorumcompute/crypto"
	"github.com/flashbots/quorumcompute/protocol"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

// Participant is a generated identity with its signing key.
type Participant struct {
	Name       string
	PublicKey  crypto.PublicKey
	PrivateKey crypto.PrivateKey

	nonce atomic.Uint64
}

// Sign wraps req in a signed envelope from p. Requests without a nonce get
// the next one in p's sequence; req itself is not modified.
func (p *Participant) Sign(t testing.TB, req *protocol.ClientRequest) *protocol.Signed[protocol.ClientRequest] {
	t.Helper()
	r := *req
	if r.Nonce == 0 {
		r.Nonce = p.nonce.Inc()
	}
	signed, err := protocol.NewSigned(p.PrivateKey, &r)
	require.NoError(t, err)
	return signed
}

// Route returns the inbox route key-match notifications for p are posted to.
func (p *Participant) Route() string {
	return crypto.InboxRoute(p.PublicKey)
}

var participantNames = []string{"alice", "bob", "charley", "dave", "erin", "frank", "grace", "heidi"}

// GenerateParticipants creates n participants with fresh Ed25519 keys.
// The first eight are named alice, bob, charley and so on.
func GenerateParticipants(t testing.TB, n int) []*Participant {
	t.Helper()
	out := make([]*Participant, n)
	for i := range out {
		pub, priv, err := crypto.GenerateKeyPair()
		require.NoError(t, err)
		name := pub.Short()
		if i < len(participantNames) {
			name = participantNames[i]
		}
		out[i] = &Participant{Name: name, PublicKey: pub, PrivateKey: priv}
	}
	return out
}

// PublicKeys returns the identities of participants in order.
func PublicKeys(participants ...*Participant) []crypto.PublicKey {
	out := make([]crypto.PublicKey, len(participants))
	for i, p := range participants {
		out[i] = p.PublicKey
	}
	return out
}

// EngineConfigOption modifies an EngineConfig.
type EngineConfigOption func(*protocol.EngineConfig)

// WithMaxParticipants sets the participant limit.
func WithMaxParticipants(n int) EngineConfigOption {
	return func(cfg *protocol.EngineConfig) { cfg.MaxParticipants = n }
}

// WithMaxValueLength sets the value length limit.
func WithMaxValueLength(n int) EngineConfigOption {
	return func(cfg *protocol.EngineConfig) { cfg.MaxValueLength = n }
}

// WithMaxMessageLength sets the commentary length limit.
func WithMaxMessageLength(n int) EngineConfigOption {
	return func(cfg *protocol.EngineConfig) { cfg.MaxMessageLength = n }
}

// WithMaxNameLength sets the computation name limit.
func WithMaxNameLength(n int) EngineConfigOption {
	return func(cfg *protocol.EngineConfig) { cfg.MaxNameLength = n }
}

// EngineConfig returns the default limits with options applied.
func EngineConfig(options ...EngineConfigOption) *protocol.EngineConfig {
	cfg := protocol.DefaultEngineConfig()
	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}
