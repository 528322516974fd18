package common

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flashbots/quorumcompute/protocol"
	"github.com/flashbots/quorumcompute/services"
	"github.com/flashbots/quorumcompute/tdx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigOverDefaults(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(`
http_addr: ":9090"
log:
  format: json
  level: debug
engine:
  max_participants: 8
rate_limit:
  rps: 1.5
  burst: 3
cors_origins: ["https://app.example"]
collect_max_skew: 30s
inbox:
  backend: postgres
  postgres:
    host: db
    port: 5432
    user: quorum
    database: quorum
attestation:
  provider: remote
  remote_url: http://dcap:8080
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, LogConfig{Format: "json", Level: "debug"}, cfg.Log)
	assert.Equal(t, 8, cfg.Engine.MaxParticipants)
	assert.Equal(t, protocol.DefaultEngineConfig().MaxValueLength, cfg.Engine.MaxValueLength)
	assert.Equal(t, services.RateLimitConfig{RPS: 1.5, Burst: 3}, cfg.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.CollectMaxSkew)
	assert.Equal(t, "db", cfg.Inbox.Postgres.Host)
	assert.Equal(t, tdx.RemoteProviderName, cfg.Attestation.Provider)

	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultConfig().Server, cfg.Server)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
}

func TestParseConfigEmpty(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
	require.Equal(t, protocol.DefaultEngineConfig(), cfg.Engine)
}

func TestParseConfigRejectsUnknownKeys(t *testing.T) {
	_, err := ParseConfig(strings.NewReader("http_adr: \":9090\"\n"))
	require.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_addr: \":7000\"\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.HTTPAddr)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no address", func(c *Config) { c.HTTPAddr = "" }},
		{"unknown inbox", func(c *Config) { c.Inbox.Backend = "redis" }},
		{"postgres without settings", func(c *Config) { c.Inbox.Backend = InboxPostgres }},
		{"remote without url", func(c *Config) { c.Attestation.Provider = tdx.RemoteProviderName }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
	}

	require.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadOrGenerateSigningKey(t *testing.T) {
	generated, err := LoadOrGenerateSigningKey("")
	require.NoError(t, err)

	loaded, err := LoadOrGenerateSigningKey(hex.EncodeToString(generated.Bytes()))
	require.NoError(t, err)
	require.Equal(t, generated, loaded)

	_, err = LoadOrGenerateSigningKey("zz")
	require.Error(t, err)
	_, err = LoadOrGenerateSigningKey("abcd")
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(LogConfig{Format: "json", Level: "warn"}, &buf)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown", "computation", "salary")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"shown"`)
	require.Contains(t, buf.String(), `"computation":"salary"`)

	_, err = NewLogger(LogConfig{Format: "xml"}, &buf)
	require.Error(t, err)
}

func TestNewInbox(t *testing.T) {
	inbox, closeInbox, err := NewInbox(InboxConfig{})
	require.NoError(t, err)
	require.IsType(t, &services.InMemoryInbox{}, inbox)
	require.NoError(t, closeInbox())

	_, _, err = NewInbox(InboxConfig{Backend: InboxPostgres})
	require.Error(t, err)
	_, _, err = NewInbox(InboxConfig{Backend: "redis"})
	require.Error(t, err)
}

func TestHostConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CORSOrigins = []string{"https://app.example"}

	host := cfg.HostConfig(nil)
	require.Equal(t, cfg.RateLimit, host.RateLimit)
	require.Equal(t, cfg.CORSOrigins, host.CORSOrigins)
	require.Equal(t, cfg.CollectMaxSkew, host.CollectMaxSkew)
}
