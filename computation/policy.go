package computation

import (
	"fmt"

	"github.com/flashbots/quorumcompute/crypto"
)

// ValidateQuorum checks that 1 <= quorum <= participants.
func ValidateQuorum(participants, quorum int) error {
	if quorum < 1 || quorum > participants {
		return fmt.Errorf("%w: quorum %d with %d participants", ErrQuorumInvalid, quorum, participants)
	}
	return nil
}

// IsParticipant reports whether identity may act on the computation.
func IsParticipant(c *Computation, identity crypto.PublicKey) bool {
	_, ok := c.members[identity.String()]
	return ok
}

// HasQuorum reports whether enough distinct contributors have submitted.
func HasQuorum(c *Computation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasQuorum()
}

// hasQuorum must be called with c.mu held.
func (c *Computation) hasQuorum() bool {
	return c.submissions.Contributors() >= c.quorum
}
