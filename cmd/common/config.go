// Package common provides configuration and wiring shared by the coordinator
// binaries:
//
//   - YAML configuration with defaults
//   - Enclave signing key loading and generation
//   - Logger, attestation provider, measurement source and inbox factories
package common

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/flashbots/quorumcompute/crypto"
	"github.com/flashbots/quorumcompute/protocol"
	"github.com/flashbots/quorumcompute/services"
	"github.com/flashbots/quorumcompute/tdx"
	"gopkg.in/yaml.v3"
)

// Config is the coordinator configuration file.
type Config struct {
	HTTPAddr string    `yaml:"http_addr"`
	Log      LogConfig `yaml:"log"`

	// SigningKey is the hex-encoded enclave key. A fresh key is generated when empty.
	SigningKey string `yaml:"signing_key"`

	Engine      *protocol.EngineConfig   `yaml:"engine"`
	RateLimit   services.RateLimitConfig `yaml:"rate_limit"`
	CORSOrigins []string                 `yaml:"cors_origins"`

	// MaxBodyBytes caps request bodies on /mail and /inbox.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// CollectMaxSkew bounds the clock difference accepted on collect requests.
	CollectMaxSkew time.Duration `yaml:"collect_max_skew"`

	Inbox       InboxConfig       `yaml:"inbox"`
	Attestation AttestationConfig `yaml:"attestation"`
	Server      ServerConfig      `yaml:"server"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Format string `yaml:"format"` // text or json
	Level  string `yaml:"level"`  // debug, info, warn or error
}

// InboxConfig selects where mail is kept until collected.
type InboxConfig struct {
	Backend  string                   `yaml:"backend"` // memory or postgres
	Postgres *services.PostgresConfig `yaml:"postgres"`
}

// AttestationConfig selects how the enclave key is attested.
type AttestationConfig struct {
	Provider        string        `yaml:"provider"` // dummy, tdx or remote
	RemoteURL       string        `yaml:"remote_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MeasurementsURL string        `yaml:"measurements_url"`
}

// ServerConfig holds HTTP server lifecycle settings.
type ServerConfig struct {
	ReadTimeout              time.Duration `yaml:"read_timeout"`
	WriteTimeout             time.Duration `yaml:"write_timeout"`
	RequestTimeout           time.Duration `yaml:"request_timeout"`
	DrainDuration            time.Duration `yaml:"drain_duration"`
	GracefulShutdownDuration time.Duration `yaml:"graceful_shutdown_duration"`
	EnablePprof              bool          `yaml:"enable_pprof"`
}

const (
	InboxMemory   = "memory"
	InboxPostgres = "postgres"
)

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr: ":8080",
		Log:      LogConfig{Format: "text", Level: "info"},
		Engine:   protocol.DefaultEngineConfig(),
		RateLimit: services.RateLimitConfig{
			RPS:   20,
			Burst: 40,
		},
		MaxBodyBytes:   1 << 20,
		CollectMaxSkew: 5 * time.Minute,
		Inbox:          InboxConfig{Backend: InboxMemory},
		Attestation: AttestationConfig{
			Provider: tdx.DummyProviderName,
			Timeout:  30 * time.Second,
		},
		Server: ServerConfig{
			ReadTimeout:              15 * time.Second,
			WriteTimeout:             15 * time.Second,
			RequestTimeout:           30 * time.Second,
			DrainDuration:            5 * time.Second,
			GracefulShutdownDuration: 10 * time.Second,
		},
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()
	return ParseConfig(f)
}

// ParseConfig decodes YAML over the defaults. Unknown keys are rejected.
func ParseConfig(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail only at startup.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("http_addr is required")
	}
	switch c.Inbox.Backend {
	case "", InboxMemory:
	case InboxPostgres:
		if c.Inbox.Postgres == nil {
			return errors.New("inbox.postgres is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown inbox backend %q", c.Inbox.Backend)
	}
	if c.Attestation.Provider == tdx.RemoteProviderName && c.Attestation.RemoteURL == "" {
		return errors.New("attestation.remote_url is required for the remote provider")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// HostConfig returns the host settings for the given logger.
func (c *Config) HostConfig(log *slog.Logger) *services.HostConfig {
	return &services.HostConfig{
		RateLimit:      c.RateLimit,
		CORSOrigins:    c.CORSOrigins,
		MaxBodyBytes:   c.MaxBodyBytes,
		CollectMaxSkew: c.CollectMaxSkew,
		Log:            log,
	}
}

// LoadOrGenerateSigningKey loads an Ed25519 private key from a hex string,
// or generates a new key pair if hexKey is empty.
func LoadOrGenerateSigningKey(hexKey string) (crypto.PrivateKey, error) {
	if hexKey != "" {
		keyBytes, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		key := crypto.NewPrivateKeyFromBytes(keyBytes)
		if _, err := key.PublicKey(); err != nil {
			return nil, err
		}
		return key, nil
	}
	_, privKey, err := crypto.GenerateKeyPair()
	return privKey, err
}

// NewLogger creates the process logger.
func NewLogger(cfg LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// NewAttestationProvider creates the TEE provider named in cfg.
func NewAttestationProvider(cfg AttestationConfig) (tdx.Provider, error) {
	return tdx.NewProvider(cfg.Provider, cfg.RemoteURL, cfg.Timeout)
}

// NewMeasurementSource creates a measurement source from a URL.
// Returns nil if measurementsURL is empty, indicating no measurement
// verification should be performed.
func NewMeasurementSource(measurementsURL string) tdx.MeasurementSource {
	if measurementsURL != "" {
		return tdx.NewRemoteMeasurementSource(measurementsURL)
	}
	return nil
}

// NewInbox creates the configured inbox. The returned closer releases its
// resources and is never nil.
func NewInbox(cfg InboxConfig) (services.Inbox, func() error, error) {
	switch cfg.Backend {
	case "", InboxMemory:
		return services.NewInMemoryInbox(), func() error { return nil }, nil
	case InboxPostgres:
		if cfg.Postgres == nil {
			return nil, nil, errors.New("missing postgres settings")
		}
		inbox, err := services.NewPostgresInbox(cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return inbox, inbox.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown inbox backend %q", cfg.Backend)
	}
}
