package computation

import (
	"sort"

	"github.com/flashbots/quorumcompute/crypto"
)

// Submission is one value contributed to a computation.
type Submission struct {
	Contributor crypto.PublicKey
	Value       string
	Message     string

	// Sequence counts the contributor's submissions, starting at 1.
	Sequence int
	// Position is the submission's index in the computation's log.
	Position int
}

// Submissions is the append-only submission log of one computation.
// It is not safe for concurrent use; the owning Computation serializes access.
type Submissions struct {
	log    []*Submission
	latest map[string]*Submission
}

func newSubmissions() *Submissions {
	return &Submissions{latest: make(map[string]*Submission)}
}

// append records a submission. Earlier submissions by the same contributor are kept.
func (s *Submissions) append(contributor crypto.PublicKey, value, message string) *Submission {
	key := contributor.String()
	seq := 1
	if prev, ok := s.latest[key]; ok {
		seq = prev.Sequence + 1
	}

	sub := &Submission{
		Contributor: crypto.NewPublicKeyFromBytes(contributor),
		Value:       value,
		Message:     message,
		Sequence:    seq,
		Position:    len(s.log),
	}
	s.log = append(s.log, sub)
	s.latest[key] = sub
	return sub
}

// All returns every submission in insertion order.
func (s *Submissions) All() []*Submission {
	out := make([]*Submission, len(s.log))
	copy(out, s.log)
	return out
}

// Latest returns the highest-sequence submission of every contributor, keyed by
// the contributor's identity string.
func (s *Submissions) Latest() map[string]*Submission {
	out := make(map[string]*Submission, len(s.latest))
	for k, v := range s.latest {
		out[k] = v
	}
	return out
}

// LatestInOrder returns the latest submission of every contributor ordered by
// log position, so that earlier writers come first.
func (s *Submissions) LatestInOrder() []*Submission {
	out := make([]*Submission, 0, len(s.latest))
	for _, sub := range s.latest {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// Contributors returns the number of distinct contributors.
func (s *Submissions) Contributors() int {
	return len(s.latest)
}

// Len returns the number of submissions in the log.
func (s *Submissions) Len() int {
	return len(s.log)
}
