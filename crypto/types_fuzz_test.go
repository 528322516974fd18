package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func FuzzSignVerify(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte("hello"))
	f.Add([]byte("test message 123"))
	f.Add(make([]byte, 1000))

	f.Fuzz(func(t *testing.T, data []byte) {
		pubKey, privKey, err := GenerateKeyPair()
		if err != nil {
			t.Fatalf("failed to generate key pair: %v", err)
		}

		signature, err := Sign(privKey, data)
		if err != nil {
			t.Fatalf("signing failed: %v", err)
		}

		// Invariant 1: Signature has correct length (Ed25519 = 64 bytes)
		if len(signature) != 64 {
			t.Errorf("signature wrong length: got %d, want 64", len(signature))
		}

		// Invariant 2: Signature verifies with correct public key
		if !signature.Verify(pubKey, data) {
			t.Error("signature verification failed with correct key")
		}

		// Invariant 3: Signature fails with wrong public key
		wrongPubKey, _, _ := GenerateKeyPair()
		if signature.Verify(wrongPubKey, data) {
			t.Error("signature should not verify with wrong public key")
		}

		// Invariant 4: Modified data fails verification
		if len(data) > 0 {
			modifiedData := make([]byte, len(data))
			copy(modifiedData, data)
			modifiedData[0] ^= 0xFF
			if signature.Verify(pubKey, modifiedData) {
				t.Error("signature should not verify with modified data")
			}
		}

		// Invariant 5: Truncated keys never verify
		if signature.Verify(pubKey[:16], data) {
			t.Error("signature should not verify with a truncated key")
		}
	})
}

func FuzzPublicKeyEqual(f *testing.F) {
	f.Add([]byte{}, []byte{})
	f.Add([]byte{1, 2, 3}, []byte{1, 2, 3})
	f.Add([]byte{1, 2, 3}, []byte{1, 2, 4})
	f.Add(make([]byte, 32), make([]byte, 31))

	f.Fuzz(func(t *testing.T, a, b []byte) {
		got := PublicKey(a).Equal(PublicKey(b))
		if got != bytes.Equal(a, b) {
			t.Errorf("Equal(%x, %x) = %v", a, b, got)
		}
		if got != (PublicKey(a).String() == PublicKey(b).String()) {
			t.Error("Equal disagrees with String comparison")
		}
	})
}

func FuzzInboxRoute(f *testing.F) {
	f.Add([]byte{})
	f.Add(make([]byte, 32))

	f.Fuzz(func(t *testing.T, pubKeyBytes []byte) {
		route := InboxRoute(PublicKey(pubKeyBytes))

		if !strings.HasPrefix(route, KeyMatchRoutePrefix) {
			t.Errorf("route %q missing prefix", route)
		}
		if len(route) != len(KeyMatchRoutePrefix)+64 {
			t.Errorf("route %q has wrong length", route)
		}
		if route != InboxRoute(NewPublicKeyFromBytes(pubKeyBytes)) {
			t.Error("InboxRoute is not deterministic")
		}
	})
}

func FuzzPrivateKeyPublicKey(f *testing.F) {
	f.Add(uint8(0))

	f.Fuzz(func(t *testing.T, _ uint8) {
		pubKey, privKey, err := GenerateKeyPair()
		if err != nil {
			t.Fatalf("failed to generate key pair: %v", err)
		}

		extractedPubKey, err := privKey.PublicKey()
		if err != nil {
			t.Fatalf("failed to extract public key: %v", err)
		}

		if !bytes.Equal(pubKey, extractedPubKey) {
			t.Error("extracted public key doesn't match generated public key")
		}
		if len(pubKey) != 32 {
			t.Errorf("public key wrong size: got %d, want 32", len(pubKey))
		}
		if len(privKey) != 64 {
			t.Errorf("private key wrong size: got %d, want 64", len(privKey))
		}
	})
}

func FuzzNewPublicKeyFromString(f *testing.F) {
	f.Add("")
	f.Add("00")
	f.Add("0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")
	f.Add("0A")
	f.Add("invalid")
	f.Add("0g")

	f.Fuzz(func(t *testing.T, input string) {
		pubKey, err := NewPublicKeyFromString(input)
		if err != nil {
			return
		}

		// hex decoding accepts either case, String always emits lowercase
		if !strings.EqualFold(pubKey.String(), input) {
			t.Errorf("string round trip failed: got %s, want %s", pubKey.String(), input)
		}

		if len(pubKey) != len(input)/2 {
			t.Errorf("bytes length mismatch: got %d, want %d", len(pubKey), len(input)/2)
		}
	})
}
