package bignum

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModPowMatchesBigIntExp(t *testing.T) {
	m := big.NewInt(3233) // 61 * 53, small RSA-ish modulus for a sanity check
	base := big.NewInt(65)
	exp := big.NewInt(17)

	got := ModPow(base, exp, m)
	want := new(big.Int).Exp(base, exp, m)

	require.Equal(t, 0, got.Cmp(want))
}

func TestGCD(t *testing.T) {
	require.Equal(t, int64(6), GCD(big.NewInt(54), big.NewInt(24)).Int64())
	require.Equal(t, int64(1), GCD(big.NewInt(17), big.NewInt(13)).Int64())
}

// TestModInverseRoundTrip is property P8: for all r coprime to n,
// (r * r^-1) mod n == 1.
func TestModInverseRoundTrip(t *testing.T) {
	n, _ := new(big.Int).SetString(
		"1000000000000000000000000000000000000000000000003", 10)

	for i := 0; i < 50; i++ {
		r, err := rand.Int(rand.Reader, n)
		require.NoError(t, err)
		if r.Sign() == 0 {
			continue
		}
		if GCD(r, n).Cmp(big.NewInt(1)) != 0 {
			continue
		}

		inv, err := ModInverse(r, n)
		require.NoError(t, err)

		product := new(big.Int).Mul(r, inv)
		product.Mod(product, n)
		require.Equal(t, int64(1), product.Int64())
	}
}

func TestModInverseNotCoprime(t *testing.T) {
	_, err := ModInverse(big.NewInt(4), big.NewInt(8))
	require.Error(t, err)
	var notCoprime *ErrNotCoprime
	require.ErrorAs(t, err, &notCoprime)
}
