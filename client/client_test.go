package client

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flashbots/quorumcompute/api/httpserver"
	"github.com/flashbots/quorumcompute/crypto"
	"github.com/flashbots/quorumcompute/enclave"
	"github.com/flashbots/quorumcompute/protocol"
	"github.com/flashbots/quorumcompute/services"
	"github.com/flashbots/quorumcompute/tdx"
	"github.com/flashbots/quorumcompute/testutil"
	"github.com/stretchr/testify/require"
)

func startCoordinator(t *testing.T) *httptest.Server {
	t.Helper()

	_, enclaveKey, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	host, err := services.NewHTTPHost(nil, enclave.New(nil, nil), services.NewInMemoryInbox(), enclaveKey, &tdx.DummyProvider{})
	require.NoError(t, err)

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr: "127.0.0.1:0",
		Log:        slog.New(slog.DiscardHandler),
	}, host)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newVerifiedClients(t *testing.T, ts *httptest.Server, ps ...*testutil.Participant) []*Client {
	t.Helper()
	out := make([]*Client, len(ps))
	for i, p := range ps {
		c, err := New(ts.URL, p.PrivateKey, WithHTTPClient(ts.Client()), WithPollInterval(5*time.Millisecond))
		require.NoError(t, err)
		_, err = c.Verify(context.Background(), &tdx.DummyProvider{}, tdx.DummyMeasurementSource())
		require.NoError(t, err)
		out[i] = c
	}
	return out
}

func TestClientEndToEnd(t *testing.T) {
	ts := startCoordinator(t)
	ps := testutil.GenerateParticipants(t, 3)
	clients := newVerifiedClients(t, ts, ps...)
	alice, bob, charley := clients[0], clients[1], clients[2]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := alice.Setup(ctx, "max", protocol.Maximum, testutil.PublicKeys(ps...), 3)
	require.NoError(t, err)
	require.Equal(t, protocol.Success, resp.Code)

	for c, v := range map[*Client]string{alice: "-10", bob: "0", charley: "300"} {
		resp, err := c.Submit(ctx, "max", v, "")
		require.NoError(t, err)
		require.Equal(t, protocol.Success, resp.Code)
	}

	resp, err = bob.Result(ctx, "max")
	require.NoError(t, err)
	require.Equal(t, protocol.Success, resp.Code)
	require.Equal(t, charley.PublicKey().String(), resp.Message)

	resp, err = alice.Submit(ctx, "max", "400", "")
	require.NoError(t, err)
	require.Equal(t, protocol.ComputationLocked, resp.Code)

	resp, err = charley.List(ctx)
	require.NoError(t, err)
	require.Equal(t, protocol.Success, resp.Code)
	require.True(t, resp.Computations[0].Locked)
}

func TestClientKeyMatches(t *testing.T) {
	ts := startCoordinator(t)
	ps := testutil.GenerateParticipants(t, 2)
	clients := newVerifiedClients(t, ts, ps...)
	alice, bob := clients[0], clients[1]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := alice.Setup(ctx, "key", protocol.KeyMatch, testutil.PublicKeys(ps...), 2)
	require.NoError(t, err)
	_, err = alice.Submit(ctx, "key", "shared", "me too")
	require.NoError(t, err)
	_, err = bob.Submit(ctx, "key", "shared", "")
	require.NoError(t, err)

	resp, err := bob.Result(ctx, "key")
	require.NoError(t, err)
	require.Equal(t, protocol.CheckInbox, resp.Code)
	require.Equal(t, bob.Route(), resp.Route)

	for _, c := range clients {
		results, err := c.KeyMatches(ctx)
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, "key", results[0].Computation)
		require.Equal(t, []crypto.PublicKey{alice.PublicKey(), bob.PublicKey()}, results[0].Matches[0].Contributors)
		require.Equal(t, "me too", results[0].Matches[0].Commentary[0].Message)
	}
}

func TestClientRejectsUnverifiedEnclave(t *testing.T) {
	ts := startCoordinator(t)
	p := testutil.GenerateParticipants(t, 1)[0]

	c, err := New(ts.URL, p.PrivateKey, WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	_, err = c.Collect(context.Background(), c.Route())
	require.ErrorIs(t, err, ErrEnclaveNotVerified)

	strict := &tdx.StaticMeasurementSource{Measurements: tdx.PublishedMeasurements{
		{MeasurementID: "prod", Measurements: map[int]tdx.MeasurementValue{0: {Expected: "ff"}}},
	}}
	_, err = c.Verify(context.Background(), &tdx.DummyProvider{}, strict)
	require.ErrorIs(t, err, tdx.ErrMeasurementsNotAllowed)

	// Pinning the wrong key makes every mail untrusted.
	other, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	c, err = New(ts.URL, p.PrivateKey, WithHTTPClient(ts.Client()), WithEnclaveKey(other))
	require.NoError(t, err)
	_, err = c.List(context.Background())
	require.ErrorIs(t, err, ErrUntrustedMail)
}

func TestClientSendThenCollect(t *testing.T) {
	ts := startCoordinator(t)
	p := testutil.GenerateParticipants(t, 1)[0]
	c := newVerifiedClients(t, ts, p)[0]

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id, err := c.Send(ctx, protocol.NewListRequest())
	require.NoError(t, err)
	mail, err := c.Collect(ctx, id)
	require.NoError(t, err)
	require.Len(t, mail, 1)
	require.Equal(t, protocol.NoResults, mail[0].Response.Code)
}

func TestClientDoTimesOut(t *testing.T) {
	ts := startCoordinator(t)
	p := testutil.GenerateParticipants(t, 1)[0]
	c := newVerifiedClients(t, ts, p)[0]

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Do(ctx, protocol.NewListRequest())
	require.Error(t, err)
}
