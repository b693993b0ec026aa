package walletcore

import (
	"crypto/rand"
	"crypto/rsa"
	"math/big"
	"testing"
	"time"

	"github.com/chronocoders/ecash/ecashutil"
	"github.com/chronocoders/ecash/issuer"
	"github.com/chronocoders/ecash/token"
	"github.com/stretchr/testify/require"
)

func testSetup(t *testing.T) (*issuer.Engine, *Wallet) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	signer := issuer.NewSigner(priv.N, big.NewInt(int64(priv.E)), priv.D, "key-1")
	eng := issuer.NewEngine(issuer.Config{
		Signer:        signer,
		Denominations: []uint64{10, 50, 100},
		Currency:      "USD",
		InstitutionID: "inst-1",
		Validity:      90 * 24 * time.Hour,
	})

	w := New(IssuerKeys{
		KeyID:         eng.KeyID(),
		InstitutionID: eng.InstitutionID(),
		PublicKey:     eng.PublicKey(),
		Denominations: eng.Denominations(),
		Currency:      eng.Currency(),
	})

	return eng, w
}

// withdraw runs a full withdraw round trip through the issuer engine,
// mimicking what api's withdraw handler does, and returns the minted
// tokens.
func withdraw(t *testing.T, eng *issuer.Engine, w *Wallet, amount, denom uint64) []token.Token {
	t.Helper()
	blinded, metadata, err := w.PrepareWithdrawal(amount, denom)
	require.NoError(t, err)

	sigs := make([]token.BlindSignature, len(blinded))
	for i, bt := range blinded {
		sig, err := eng.SignBlindedToken(bt)
		require.NoError(t, err)
		sigs[i] = sig
	}

	expiresAt := eng.ExpiryTime(time.Now())
	tokens, err := w.FinalizeWithdrawal(sigs, metadata, expiresAt)
	require.NoError(t, err)
	return tokens
}

// TestRoundTrip is property P1: withdrawal followed by verify_token on
// every returned token must succeed.
func TestRoundTrip(t *testing.T) {
	eng, w := testSetup(t)
	tokens := withdraw(t, eng, w, 100, 50)
	require.Len(t, tokens, 2)

	for _, tok := range tokens {
		ok, err := eng.VerifyToken(&tok, time.Now())
		require.NoError(t, err)
		require.True(t, ok)
	}
}

// TestOverMint is scenario S2: amount=75, denomination=50 mints
// ceil(75/50)=2 tokens, granting change by design.
func TestOverMint(t *testing.T) {
	eng, w := testSetup(t)
	tokens := withdraw(t, eng, w, 75, 50)
	require.Len(t, tokens, 2)

	var total uint64
	for _, tok := range tokens {
		total += tok.Denomination
	}
	require.Equal(t, uint64(100), total)
}

// TestPrepareWithdrawalRejectsUnknownDenomination is scenario S3.
func TestPrepareWithdrawalRejectsUnknownDenomination(t *testing.T) {
	_, w := testSetup(t)
	_, _, err := w.PrepareWithdrawal(50, 25)
	require.ErrorIs(t, err, ecashutil.ErrInvalidDenomination)
}

// TestFinalizeWithdrawalProtocolMismatch covers the len(sigs)!=len(metadata)
// precondition from spec §4.4.
func TestFinalizeWithdrawalProtocolMismatch(t *testing.T) {
	_, w := testSetup(t)
	_, metadata, err := w.PrepareWithdrawal(50, 50)
	require.NoError(t, err)

	_, err = w.FinalizeWithdrawal(nil, metadata, time.Now())
	require.ErrorIs(t, err, ecashutil.ErrProtocolMismatch)
}

// TestFinalizeWithdrawalBadSignatureFailsWholeBatch is property P4/spec §4.4:
// one bad signature fails the entire batch, no partial success.
func TestFinalizeWithdrawalBadSignatureFailsWholeBatch(t *testing.T) {
	eng, w := testSetup(t)
	blinded, metadata, err := w.PrepareWithdrawal(100, 50)
	require.NoError(t, err)
	require.Len(t, blinded, 2)

	sigs := make([]token.BlindSignature, len(blinded))
	for i, bt := range blinded {
		sig, err := eng.SignBlindedToken(bt)
		require.NoError(t, err)
		sigs[i] = sig
	}
	// Tamper with the second signature.
	tampered := append([]byte(nil), sigs[1].Signature...)
	tampered[len(tampered)-1] ^= 0x01
	sigs[1].Signature = tampered

	_, err = w.FinalizeWithdrawal(sigs, metadata, eng.ExpiryTime(time.Now()))
	require.ErrorIs(t, err, ecashutil.ErrInvalidSignature)
}

func TestCanonicalTupleUsesStoredIssuedAt(t *testing.T) {
	// Regression for the "re-derive issued_at from wall clock" bug spec
	// §9 flags: both sides must use the metadata's issued_at.
	serial := [32]byte{1, 2, 3}
	issuedAt := time.Unix(1_700_000_000, 0).UTC()

	walletSide := token.CanonicalTuple(serial[:], 50, "USD", issuedAt)
	issuerSide := token.CanonicalTupleForToken(&token.Token{
		SerialNumber: serial[:],
		Denomination: 50,
		Currency:     "USD",
		IssuedAt:     issuedAt,
	})

	require.Equal(t, walletSide, issuerSide)
}
