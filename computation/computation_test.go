package computation

import (
	"testing"

	"github.com/flashbots/quorumcompute/crypto"
	"github.com/flashbots/quorumcompute/protocol"
	"github.com/stretchr/testify/require"
)

func generateIdentities(t *testing.T, n int) []crypto.PublicKey {
	t.Helper()
	ids := make([]crypto.PublicKey, n)
	for i := range ids {
		pub, _, err := crypto.GenerateKeyPair()
		require.NoError(t, err)
		ids[i] = pub
	}
	return ids
}

func TestSubmissionsLatestAndAll(t *testing.T) {
	ids := generateIdentities(t, 2)
	alice, bob := ids[0], ids[1]

	s := newSubmissions()
	s.append(alice, "100", "first")
	s.append(bob, "200", "")
	s.append(alice, "400", "revised")

	all := s.All()
	require.Len(t, all, 3)
	require.Equal(t, []string{"100", "200", "400"}, []string{all[0].Value, all[1].Value, all[2].Value})
	require.Equal(t, []int{0, 1, 2}, []int{all[0].Position, all[1].Position, all[2].Position})
	require.Equal(t, 1, all[0].Sequence)
	require.Equal(t, 1, all[1].Sequence)
	require.Equal(t, 2, all[2].Sequence)

	latest := s.Latest()
	require.Len(t, latest, 2)
	require.Equal(t, "400", latest[alice.String()].Value)
	require.Equal(t, "200", latest[bob.String()].Value)
	require.Equal(t, 2, s.Contributors())
	require.Equal(t, 3, s.Len())

	ordered := s.LatestInOrder()
	require.Len(t, ordered, 2)
	require.Equal(t, "200", ordered[0].Value)
	require.Equal(t, "400", ordered[1].Value)
}

func TestSubmissionsDoNotAliasCallerKey(t *testing.T) {
	ids := generateIdentities(t, 1)
	key := crypto.NewPublicKeyFromBytes(ids[0])

	s := newSubmissions()
	sub := s.append(key, "1", "")
	key[0] ^= 0xff

	require.True(t, sub.Contributor.Equal(ids[0]))
}

func TestComputationSubmit(t *testing.T) {
	ids := generateIdentities(t, 3)
	alice, bob, outsider := ids[0], ids[1], ids[2]

	r := NewRegistry()
	c, err := r.Create("max", protocol.Maximum, []crypto.PublicKey{alice, bob}, 2)
	require.NoError(t, err)

	_, err = c.Submit(outsider, "10", "")
	require.ErrorIs(t, err, ErrNotParticipant)
	require.Empty(t, c.Submissions())

	sub, err := c.Submit(alice, "10", "hello")
	require.NoError(t, err)
	require.Equal(t, 1, sub.Sequence)

	sub, err = c.Submit(alice, "20", "")
	require.NoError(t, err)
	require.Equal(t, 2, sub.Sequence)

	require.False(t, HasQuorum(c))
	_, err = c.Submit(bob, "5", "")
	require.NoError(t, err)
	require.True(t, HasQuorum(c))

	_, err = Compute(c, alice)
	require.NoError(t, err)
	require.True(t, c.Locked())

	_, err = c.Submit(bob, "500", "")
	require.ErrorIs(t, err, ErrLocked)
	require.Len(t, c.Submissions(), 3)
}

func TestKeyMatchNeverLocks(t *testing.T) {
	ids := generateIdentities(t, 2)
	alice, bob := ids[0], ids[1]

	r := NewRegistry()
	c, err := r.Create("keys", protocol.KeyMatch, ids, 1)
	require.NoError(t, err)

	_, err = c.Submit(alice, "KEY", "")
	require.NoError(t, err)

	_, err = Compute(c, alice)
	require.NoError(t, err)
	require.False(t, c.Locked())

	_, err = c.Submit(bob, "KEY", "")
	require.NoError(t, err)
	_, err = c.Submit(alice, "OTHER", "")
	require.NoError(t, err)
	require.Len(t, c.Submissions(), 3)
}

func TestSummary(t *testing.T) {
	ids := generateIdentities(t, 3)

	r := NewRegistry()
	c, err := r.Create("avg", protocol.Average, ids, 2)
	require.NoError(t, err)

	_, err = c.Submit(ids[0], "1", "")
	require.NoError(t, err)
	_, err = c.Submit(ids[0], "2", "")
	require.NoError(t, err)

	require.Equal(t, protocol.ComputationSummary{
		Name:         "avg",
		Kind:         protocol.Average,
		Participants: 3,
		Quorum:       2,
		Contributors: 1,
		Locked:       false,
	}, c.Summary())
}
