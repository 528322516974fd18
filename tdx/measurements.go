package tdx

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/flashbots/quorumcompute/protocol"
)

// Measurements maps register indices to measured values.
type Measurements map[int][]byte

// PublishedMeasurements lists the acceptable builds of the enclave.
//
// JSON format:
//
//	[
//	  {
//	    "measurement_id": "quorumcompute-v0.1.0-tdx",
//	    "measurements": {
//	      "0": {"expected": "hex-encoded-mrtd..."},
//	      "1": {"expected": "hex-encoded-rtmr0..."}
//	    }
//	  }
//	]
//
// An enclave is accepted if its measurements match every register of any entry.
type PublishedMeasurements []MeasurementEntry

// MeasurementEntry is one acceptable build.
type MeasurementEntry struct {
	MeasurementID string                   `json:"measurement_id"`
	Measurements  map[int]MeasurementValue `json:"measurements"`
}

// MeasurementValue holds an expected hex-encoded register value.
type MeasurementValue struct {
	Expected string `json:"expected"`
}

// MeasurementSource provides the measurements participants accept.
type MeasurementSource interface {
	AllowedMeasurements(ctx context.Context) (PublishedMeasurements, error)
}

// StaticMeasurementSource serves a fixed list of measurements.
type StaticMeasurementSource struct {
	Measurements PublishedMeasurements
}

func (s *StaticMeasurementSource) AllowedMeasurements(context.Context) (PublishedMeasurements, error) {
	return s.Measurements, nil
}

// DummyMeasurementSource accepts exactly the measurements reported by DummyProvider.
// Only use in demo and test deployments.
func DummyMeasurementSource() *StaticMeasurementSource {
	values := make(map[int]MeasurementValue, 5)
	for i := 0; i < 5; i++ {
		values[i] = MeasurementValue{Expected: hex.EncodeToString([]byte{byte(i)})}
	}
	return &StaticMeasurementSource{Measurements: PublishedMeasurements{
		{MeasurementID: "dummy-attestation", Measurements: values},
	}}
}

// RemoteMeasurementSource fetches published measurements from a URL and caches
// them for CacheFor.
type RemoteMeasurementSource struct {
	URL        string
	HTTPClient *http.Client
	CacheFor   time.Duration

	mu        sync.Mutex
	fetchedAt time.Time
	cached    PublishedMeasurements
}

// NewRemoteMeasurementSource creates a source with an hour of caching.
func NewRemoteMeasurementSource(url string) *RemoteMeasurementSource {
	return &RemoteMeasurementSource{
		URL:        url,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		CacheFor:   time.Hour,
	}
}

func (r *RemoteMeasurementSource) AllowedMeasurements(ctx context.Context) (PublishedMeasurements, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil && time.Since(r.fetchedAt) < r.CacheFor {
		return r.cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching measurements: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("measurements returned %d: %s", resp.StatusCode, body)
	}

	var published PublishedMeasurements
	if err := json.NewDecoder(resp.Body).Decode(&published); err != nil {
		return nil, fmt.Errorf("decoding measurements: %w", err)
	}

	r.cached = published
	r.fetchedAt = time.Now()
	return published, nil
}

// ErrMeasurementsNotAllowed is returned when no published entry matches.
var ErrMeasurementsNotAllowed = errors.New("measurements do not match any allowed set")

// MatchMeasurements returns the first published entry whose registers all match actual.
func MatchMeasurements(allowed PublishedMeasurements, actual Measurements) (*MeasurementEntry, error) {
	for i := range allowed {
		entry := &allowed[i]
		if entryMatches(entry, actual) {
			return entry, nil
		}
	}
	return nil, ErrMeasurementsNotAllowed
}

func entryMatches(entry *MeasurementEntry, actual Measurements) bool {
	for idx, expected := range entry.Measurements {
		value, ok := actual[idx]
		if !ok || expected.Expected != hex.EncodeToString(value) {
			return false
		}
	}
	return true
}

// VerifyEnclaveInfo checks that info carries valid evidence over its signing
// key and, when source is set, that the attested build is an allowed one.
func VerifyEnclaveInfo(ctx context.Context, p Provider, source MeasurementSource, info *protocol.EnclaveInfo) (*MeasurementEntry, error) {
	if info == nil || len(info.PublicKey) == 0 {
		return nil, errors.New("enclave info has no public key")
	}
	if info.AttestationType != p.AttestationType() {
		return nil, fmt.Errorf("attestation type %q, expected %q", info.AttestationType, p.AttestationType())
	}

	measurements, err := VerifyKey(p, info.Attestation, info.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("verifying attestation: %w", err)
	}
	if source == nil {
		return &MeasurementEntry{}, nil
	}

	allowed, err := source.AllowedMeasurements(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching allowed measurements: %w", err)
	}
	return MatchMeasurements(allowed, measurements)
}
