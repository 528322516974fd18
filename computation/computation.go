package computation

import (
	"fmt"
	"sync"

	"github.com/flashbots/quorumcompute/crypto"
	"github.com/flashbots/quorumcompute/protocol"
)

// Computation is a named multi-party computation.
//
// Name, kind, participants and quorum are fixed at creation. Submissions and the
// lock flag are guarded by the computation's own mutex, so requests touching
// different computations never contend with each other.
type Computation struct {
	name         string
	kind         protocol.ComputationKind
	participants []crypto.PublicKey
	members      map[string]struct{}
	quorum       int

	mu          sync.Mutex
	locked      bool
	frozen      *protocol.Response
	submissions *Submissions

	// notified records, per recipient and key, the key-match group last
	// delivered to that recipient.
	notified map[string]map[string]groupSize
}

func newComputation(name string, kind protocol.ComputationKind, participants []crypto.PublicKey, quorum int) *Computation {
	members := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		members[p.String()] = struct{}{}
	}
	return &Computation{
		name:         name,
		kind:         kind,
		participants: participants,
		members:      members,
		quorum:       quorum,
		submissions:  newSubmissions(),
		notified:     make(map[string]map[string]groupSize),
	}
}

// Name returns the computation's unique name.
func (c *Computation) Name() string { return c.name }

// Kind returns the computation's kind.
func (c *Computation) Kind() protocol.ComputationKind { return c.kind }

// Quorum returns the number of distinct contributors required for a result.
func (c *Computation) Quorum() int { return c.quorum }

// Participants returns a copy of the participant set in declaration order.
func (c *Computation) Participants() []crypto.PublicKey {
	out := make([]crypto.PublicKey, len(c.participants))
	copy(out, c.participants)
	return out
}

// Locked reports whether the computation has produced its one-shot result.
func (c *Computation) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked
}

// Submit appends a submission from contributor.
// It fails with ErrNotParticipant for outsiders and ErrLocked once a locking
// computation has produced its result.
func (c *Computation) Submit(contributor crypto.PublicKey, value, message string) (*Submission, error) {
	if !IsParticipant(c, contributor) {
		return nil, fmt.Errorf("%w: %s", ErrNotParticipant, contributor.Short())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kind.Locks() && c.locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, c.name)
	}

	return c.submissions.append(contributor, value, message), nil
}

// Submissions returns a snapshot of every submission in insertion order.
func (c *Computation) Submissions() []*Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submissions.All()
}

// Latest returns a snapshot of the latest submission per contributor.
func (c *Computation) Latest() map[string]*Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submissions.Latest()
}

// Summary describes the computation for ListComputations.
func (c *Computation) Summary() protocol.ComputationSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.ComputationSummary{
		Name:         c.name,
		Kind:         c.kind,
		Participants: len(c.participants),
		Quorum:       c.quorum,
		Contributors: c.submissions.Contributors(),
		Locked:       c.locked,
	}
}
