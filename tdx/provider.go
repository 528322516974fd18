package tdx

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/flashbots/quorumcompute/crypto"
)

// Provider produces and checks attestation evidence over 64 bytes of report data.
type Provider interface {
	AttestationType() string
	Attest(reportData [64]byte) ([]byte, error)
	Verify(attestationReport []byte, expectedReportData [64]byte) (map[int][]byte, error)
}

var (
	_ Provider = (*DummyProvider)(nil)
	_ Provider = (*TDXProvider)(nil)
	_ Provider = (*RemoteDCAPProvider)(nil)
)

// Provider names accepted by NewProvider.
const (
	DummyProviderName  = "dummy"
	TDXProviderName    = "tdx"
	RemoteProviderName = "remote"
)

// ErrAttestationMismatch is returned when evidence does not cover the expected report data.
var ErrAttestationMismatch = errors.New("attestation mismatch")

// NewProvider selects an attestation provider by name. An empty name selects
// the dummy provider. The remote provider requires remoteURL.
func NewProvider(name string, remoteURL string, timeout time.Duration) (Provider, error) {
	switch name {
	case "", DummyProviderName:
		return &DummyProvider{}, nil
	case TDXProviderName:
		return &TDXProvider{}, nil
	case RemoteProviderName:
		if remoteURL == "" {
			return nil, errors.New("remote attestation provider requires a url")
		}
		return &RemoteDCAPProvider{URL: remoteURL, Timeout: timeout}, nil
	}
	return nil, fmt.Errorf("unknown attestation provider %q", name)
}

const reportDataDomain = "quorumcompute/enclave-signing-key/v1"

// ReportData binds the enclave signing key into TDX report data.
// The first 32 bytes are sha256(domain || key), the rest is zero.
func ReportData(enclaveKey crypto.PublicKey) [64]byte {
	h := sha256.New()
	h.Write([]byte(reportDataDomain))
	h.Write(enclaveKey.Bytes())

	var reportData [64]byte
	copy(reportData[:], h.Sum(nil))
	return reportData
}

// AttestKey produces evidence that enclaveKey belongs to the attested environment.
func AttestKey(p Provider, enclaveKey crypto.PublicKey) ([]byte, error) {
	return p.Attest(ReportData(enclaveKey))
}

// VerifyKey checks evidence produced by AttestKey and returns the attested measurements.
func VerifyKey(p Provider, evidence []byte, enclaveKey crypto.PublicKey) (map[int][]byte, error) {
	if len(evidence) == 0 {
		return nil, errors.New("no attestation evidence")
	}
	return p.Verify(evidence, ReportData(enclaveKey))
}

// DummyProvider provides mock attestation for testing without TEE hardware.
// Its evidence is the report data itself and its measurements are the register
// indices, so they can be pinned as known values.
type DummyProvider struct{}

func (p *DummyProvider) AttestationType() string {
	return "dummy-tdx"
}

// Attest returns the report data as a mock attestation.
func (p *DummyProvider) Attest(reportData [64]byte) ([]byte, error) {
	return bytes.Clone(reportData[:]), nil
}

// Verify checks that attestation matches expected report data.
func (p *DummyProvider) Verify(attestationReport []byte, expectedReportData [64]byte) (map[int][]byte, error) {
	if !bytes.Equal(attestationReport, expectedReportData[:]) {
		return nil, ErrAttestationMismatch
	}

	measurements := make(map[int][]byte, 5)
	for i := 0; i < 5; i++ {
		measurements[i] = []byte{byte(i)}
	}
	return measurements, nil
}
