package protocol

import (
	"encoding/json"
	"testing"

	"github.com/flashbots/quorumcompute/crypto"
	"github.com/stretchr/testify/require"
)

func TestSignedRecover(t *testing.T) {
	pubKey, privKey, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	signed, err := NewSigned(privKey, NewSubmitRequest("avg", "100", "from alice"))
	require.NoError(t, err)

	data, err := json.Marshal(signed)
	require.NoError(t, err)

	decoded, err := UnmarshalMessage[Signed[ClientRequest]](data)
	require.NoError(t, err)

	req, signer, err := decoded.Recover()
	require.NoError(t, err)
	require.True(t, signer.Equal(pubKey))
	require.Equal(t, SubmitValueRequest, req.Type)
	require.Equal(t, "100", req.Submit.Value)
}

func TestSignedRecoverRejectsTampering(t *testing.T) {
	_, privKey, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	otherPub, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	signed, err := NewSigned(privKey, NewSubmitRequest("avg", "100", ""))
	require.NoError(t, err)

	signed.Object.Submit.Value = "900"
	_, _, err = signed.Recover()
	require.ErrorIs(t, err, ErrInvalidSignature)

	signed, err = NewSigned(privKey, NewSubmitRequest("avg", "100", ""))
	require.NoError(t, err)
	signed.PublicKey = otherPub
	_, _, err = signed.Recover()
	require.ErrorIs(t, err, ErrInvalidSignature)

	_, _, err = (&Signed[ClientRequest]{}).Recover()
	require.Error(t, err)
}

func TestClientRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     *ClientRequest
		wantErr bool
	}{
		{"setup", NewSetupRequest("c", Average, nil, 1), false},
		{"submit", NewSubmitRequest("c", "1", ""), false},
		{"result", NewResultRequest("c"), false},
		{"list", NewListRequest(), false},
		{"no payload", &ClientRequest{Type: ListComputationsRequest}, true},
		{"unknown type", &ClientRequest{Type: "delete", List: &ListComputations{}}, true},
		{"mismatched payload", &ClientRequest{Type: SubmitValueRequest, Result: &GetComputationResult{}}, true},
		{"two payloads", &ClientRequest{Type: ListComputationsRequest, List: &ListComputations{}, Result: &GetComputationResult{}}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr {
				require.ErrorIs(t, err, ErrMalformedRequest)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestComputationKind(t *testing.T) {
	for _, k := range []ComputationKind{Average, Minimum, Maximum, KeyMatch} {
		require.True(t, k.Valid(), k)
	}
	require.False(t, ComputationKind("median").Valid())

	require.True(t, Average.Locks())
	require.True(t, Minimum.Locks())
	require.True(t, Maximum.Locks())
	require.False(t, KeyMatch.Locks())
}
