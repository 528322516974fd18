package computation

import (
	"fmt"
	"sort"
	"sync"

	"github.com/flashbots/quorumcompute/crypto"
	"github.com/flashbots/quorumcompute/protocol"
)

// Registry maps computation names to computations.
//
// The registry lock only guards the name map. Each computation carries its own
// mutex, so the registry is never held while a computation is being mutated.
type Registry struct {
	mu           sync.RWMutex
	computations map[string]*Computation
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		computations: make(map[string]*Computation),
	}
}

// Create registers a new computation.
//
// Duplicate participants are collapsed before the quorum is checked, so the
// quorum is always compared against the number of distinct identities. A
// computation failing validation is never stored.
func (r *Registry) Create(name string, kind protocol.ComputationKind, participants []crypto.PublicKey, quorum int) (*Computation, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty computation name", ErrInvalidRequest)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown computation kind %q", ErrInvalidRequest, kind)
	}

	unique, err := distinctParticipants(participants)
	if err != nil {
		return nil, err
	}
	if err := ValidateQuorum(len(unique), quorum); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.computations[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}

	c := newComputation(name, kind, unique, quorum)
	r.computations[name] = c
	return c, nil
}

// Get returns the computation registered under name.
func (r *Registry) Get(name string) (*Computation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.computations[name]
	return c, ok
}

// List returns summaries of the computations identity participates in, sorted
// by name. Computations identity is not part of are never included.
func (r *Registry) List(identity crypto.PublicKey) []protocol.ComputationSummary {
	r.mu.RLock()
	visible := make([]*Computation, 0)
	for _, c := range r.computations {
		if IsParticipant(c, identity) {
			visible = append(visible, c)
		}
	}
	r.mu.RUnlock()

	sort.Slice(visible, func(i, j int) bool { return visible[i].name < visible[j].name })

	out := make([]protocol.ComputationSummary, 0, len(visible))
	for _, c := range visible {
		out = append(out, c.Summary())
	}
	return out
}

// Len returns the number of registered computations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.computations)
}

func distinctParticipants(participants []crypto.PublicKey) ([]crypto.PublicKey, error) {
	seen := make(map[string]struct{}, len(participants))
	unique := make([]crypto.PublicKey, 0, len(participants))
	for _, p := range participants {
		if len(p) == 0 {
			return nil, fmt.Errorf("%w: empty participant key", ErrInvalidRequest)
		}
		key := p.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, crypto.NewPublicKeyFromBytes(p))
	}
	return unique, nil
}
