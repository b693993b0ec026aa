// Package blind implements the RSA blind-signing primitives from spec §4.2
// (component C2): blinding a hashed message with a random factor,
// unblinding a blind signature, and verifying an unblinded signature.
//
// This is textbook RSA-FDH blind signing with SHA-256 and no OAEP/PSS
// padding, exactly as spec §4.2 and §9 specify. It is a known limitation,
// not an oversight: wire compatibility depends on every implementation
// hashing and blinding the canonical tuple (token.CanonicalTuple) the same
// way, with no padding to vary. A properly padded variant would need its
// own key_id to avoid being silently interoperable with this one.
package blind

import (
	"crypto/rand"
	"crypto/sha256"
	"math/big"

	"github.com/chronocoders/ecash/bignum"
	"github.com/chronocoders/ecash/ecashlog"
	"github.com/chronocoders/ecash/ecashutil"
)

var log = ecashlog.SubLogger(ecashlog.SubsystemBlind)

// PublicKey is the issuer's RSA public key, (n, e).
type PublicKey struct {
	N *big.Int
	E *big.Int
}

// hashToInt reduces SHA-256(msg) to a big.Int. For any modulus of at least
// 1024 bits this is always strictly less than N, per spec §4.2.
func hashToInt(msg []byte) *big.Int {
	h := sha256.Sum256(msg)
	return new(big.Int).SetBytes(h[:])
}

// maxBlindAttempts bounds the reject-and-retry loop for drawing a blinding
// factor coprime to N. In practice this almost always succeeds on the first
// draw (N is a product of two large primes), so this is only a backstop
// against pathological moduli.
const maxBlindAttempts = 64

// Blind implements spec §4.2's blind(): it hashes msg, draws a random
// blinding factor r coprime to pub.N, and returns (m*r^e mod n, r).
func Blind(msg []byte, pub PublicKey) (blinded, r *big.Int, err error) {
	m := hashToInt(msg)

	byteLen := (pub.N.BitLen() + 7) / 8
	buf := make([]byte, byteLen)

	for attempt := 0; attempt < maxBlindAttempts; attempt++ {
		if _, err := rand.Read(buf); err != nil {
			return nil, nil, ecashutil.Wrap(err, "blind: reading random factor")
		}

		candidate := new(big.Int).SetBytes(buf)
		candidate.Mod(candidate, pub.N)
		if candidate.Cmp(big.NewInt(2)) < 0 {
			continue
		}

		if bignum.GCD(candidate, pub.N).Cmp(big.NewInt(1)) != 0 {
			log.Debugf("blind: rejected factor not coprime with N, retrying")
			continue
		}

		rE := bignum.ModPow(candidate, pub.E, pub.N)
		blinded := new(big.Int).Mul(m, rE)
		blinded.Mod(blinded, pub.N)

		return blinded, candidate, nil
	}

	return nil, nil, ecashutil.ErrBlindingFailed
}

// Unblind implements spec §4.2's unblind(): s = blindSig * r^-1 mod n.
func Unblind(blindSig, r *big.Int, pub PublicKey) (*big.Int, error) {
	rInv, err := bignum.ModInverse(r, pub.N)
	if err != nil {
		return nil, ecashutil.Wrap(err, "unblind: r has no inverse mod n")
	}

	s := new(big.Int).Mul(blindSig, rInv)
	s.Mod(s, pub.N)
	return s, nil
}

// Verify implements spec §4.2's verify(): returns true iff s^e mod n equals
// int(SHA-256(msg)).
func Verify(msg []byte, s *big.Int, pub PublicKey) bool {
	m := hashToInt(msg)
	got := bignum.ModPow(s, pub.E, pub.N)
	return got.Cmp(m) == 0
}
