package services

import (
	"context"
	"testing"

	"github.com/flashbots/quorumcompute/crypto"
	"github.com/flashbots/quorumcompute/protocol"
	"github.com/stretchr/testify/require"
)

func signedMail(t *testing.T, key crypto.PrivateKey, route string, code protocol.ResponseCode) *SignedMail {
	t.Helper()
	signed, err := protocol.NewSigned(key, &protocol.Mail{Route: route, Response: &protocol.Response{Code: code}})
	require.NoError(t, err)
	return signed
}

func TestInMemoryInboxDrains(t *testing.T) {
	_, key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	ctx := context.Background()
	inbox := NewInMemoryInbox()

	require.NoError(t, inbox.Post(ctx, signedMail(t, key, "a", protocol.Success)))
	require.NoError(t, inbox.Post(ctx, signedMail(t, key, "a", protocol.NoResults)))
	require.NoError(t, inbox.Post(ctx, signedMail(t, key, "b", protocol.CheckInbox)))
	require.Equal(t, 2, inbox.Pending("a"))

	mail, err := inbox.Collect(ctx, "a")
	require.NoError(t, err)
	require.Len(t, mail, 2)
	require.Equal(t, protocol.Success, mail[0].Object.Response.Code)
	require.Equal(t, protocol.NoResults, mail[1].Object.Response.Code)

	mail, err = inbox.Collect(ctx, "a")
	require.NoError(t, err)
	require.Empty(t, mail)
	require.Equal(t, 1, inbox.Pending("b"))
}

func TestInMemoryInboxRejectsUnroutedMail(t *testing.T) {
	_, key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	inbox := NewInMemoryInbox()
	require.ErrorIs(t, inbox.Post(context.Background(), nil), ErrEmptyRoute)
	require.ErrorIs(t, inbox.Post(context.Background(), signedMail(t, key, "", protocol.Success)), ErrEmptyRoute)
}
