package blind

import (
	"crypto/rand"
	"crypto/rsa"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) (*rsa.PrivateKey, PublicKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return priv, PublicKey{N: priv.N, E: big.NewInt(int64(priv.E))}
}

// TestBlindSignVerify is property P1/P9: blind, sign the blinded integer,
// unblind, and verify against the original message.
func TestBlindSignVerify(t *testing.T) {
	priv, pub := testKey(t)
	msg := []byte("serial||denomination||currency||issued_at")

	blinded, r, err := Blind(msg, pub)
	require.NoError(t, err)

	blindSig := new(big.Int).Exp(blinded, priv.D, priv.N)

	s, err := Unblind(blindSig, r, pub)
	require.NoError(t, err)

	require.True(t, Verify(msg, s, pub))
}

// TestVerifyTamperFails is property P4 at the blind-primitive level:
// flipping a byte of the signed message breaks verification.
func TestVerifyTamperFails(t *testing.T) {
	priv, pub := testKey(t)
	msg := []byte("serial||denomination||currency||issued_at")

	blinded, r, err := Blind(msg, pub)
	require.NoError(t, err)
	blindSig := new(big.Int).Exp(blinded, priv.D, priv.N)
	s, err := Unblind(blindSig, r, pub)
	require.NoError(t, err)

	tampered := append([]byte(nil), msg...)
	tampered[0] ^= 0x01

	require.False(t, Verify(tampered, s, pub))
}

// TestUnlinkability is property P2: two independent blind/sign/unblind runs
// over different messages never reuse the same blinding factor or signature.
func TestUnlinkability(t *testing.T) {
	priv, pub := testKey(t)

	blinded1, r1, err := Blind([]byte("token-a"), pub)
	require.NoError(t, err)
	blinded2, r2, err := Blind([]byte("token-b"), pub)
	require.NoError(t, err)

	require.NotEqual(t, 0, blinded1.Cmp(blinded2))
	require.NotEqual(t, 0, r1.Cmp(r2))

	sig1 := new(big.Int).Exp(blinded1, priv.D, priv.N)
	sig2 := new(big.Int).Exp(blinded2, priv.D, priv.N)
	require.NotEqual(t, 0, sig1.Cmp(sig2))
}
