// Package bignum implements the arbitrary-precision modular arithmetic
// helpers the blind-signing protocol is built on (spec §4.1, component C1):
// modular exponentiation, gcd, and modular inverse via the extended
// Euclidean algorithm. math/big supplies the underlying arbitrary-precision
// representation — reimplementing bignum arithmetic itself is out of scope —
// but the algorithms here are written out rather than delegated to
// big.Int's own Exp/ModInverse, since this component is named as part of
// the hard engineering core this module exists to demonstrate.
package bignum

import (
	"math/big"

	"github.com/chronocoders/ecash/ecashlog"
)

var log = ecashlog.SubLogger(ecashlog.SubsystemBignum)

// ModPow computes base^exp mod m using right-to-left square-and-multiply
// (the exponent is consumed from its least significant bit upward).
// m must be positive; the result is in [0, m).
func ModPow(base, exp, m *big.Int) *big.Int {
	if m.Sign() <= 0 {
		panic("bignum: modulus must be positive")
	}

	result := big.NewInt(1)
	b := new(big.Int).Mod(base, m)
	e := new(big.Int).Set(exp)

	zero := big.NewInt(0)
	two := big.NewInt(2)

	for e.Cmp(zero) > 0 {
		if new(big.Int).Mod(e, two).Sign() != 0 {
			result.Mul(result, b)
			result.Mod(result, m)
		}
		b.Mul(b, b)
		b.Mod(b, m)
		e.Rsh(e, 1)
	}

	return result
}

// GCD returns the greatest common divisor of a and b, both assumed
// non-negative.
func GCD(a, b *big.Int) *big.Int {
	x, y := new(big.Int).Set(a), new(big.Int).Set(b)
	zero := big.NewInt(0)
	for y.Cmp(zero) != 0 {
		x, y = y, new(big.Int).Mod(x, y)
	}
	return x
}

// ErrNotCoprime is returned by ModInverse when gcd(a, m) != 1, i.e. no
// inverse exists. blind.Blind never hits it: it rejects any factor not
// coprime with N (via GCD) and draws a fresh one. blind.Unblind returns it
// wrapped as an internal error.
type ErrNotCoprime struct {
	A, M *big.Int
}

func (e *ErrNotCoprime) Error() string {
	return "bignum: " + e.A.String() + " has no inverse mod " + e.M.String()
}

// ModInverse returns x such that a*x ≡ 1 (mod m), computed via the extended
// Euclidean algorithm. It returns ErrNotCoprime if gcd(a, m) != 1.
func ModInverse(a, m *big.Int) (*big.Int, error) {
	if m.Sign() <= 0 {
		panic("bignum: modulus must be positive")
	}

	// Extended Euclid: track (old_r, r) and (old_s, s) such that at each
	// step old_r = old_s*a + k*m for some k, until r reaches 0.
	oldR, r := new(big.Int).Mod(a, m), new(big.Int).Set(m)
	oldS, s := big.NewInt(1), big.NewInt(0)

	zero := big.NewInt(0)
	for r.Cmp(zero) != 0 {
		q := new(big.Int)
		tmp := new(big.Int)
		q.DivMod(oldR, r, tmp)

		oldR, r = r, tmp

		newS := new(big.Int).Mul(q, s)
		newS.Sub(oldS, newS)
		oldS, s = s, newS
	}

	if oldR.Cmp(big.NewInt(1)) != 0 {
		return nil, &ErrNotCoprime{A: a, M: m}
	}

	inv := new(big.Int).Mod(oldS, m)
	if inv.Sign() < 0 {
		inv.Add(inv, m)
	}
	return inv, nil
}
