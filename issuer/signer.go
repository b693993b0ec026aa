// Package issuer implements the Institution side of the protocol: the RSA
// signer (spec §4.3, component C3) and the issuer protocol engine that
// validates denominations, signs blinded tokens, and reverifies presented
// tokens (spec §4.5, component C6).
package issuer

import (
	"math/big"

	"github.com/chronocoders/ecash/bignum"
	"github.com/chronocoders/ecash/ecashlog"
)

var log = ecashlog.SubLogger(ecashlog.SubsystemIssuer)

// Signer holds the Institution's RSA private key and exposes exactly the
// one operation it's trusted for: raising a blinded integer to the private
// exponent. It never sees an unblinded token (spec §4.3).
type Signer struct {
	n, e, d *big.Int
	keyID   string
}

// NewSigner constructs a Signer from an RSA key's (n, e, d) and an opaque
// key_id used to tag signatures and tokens for future key rotation (spec
// §3's Issuer Key entity). Rotation itself (replacing the key at runtime)
// is explicitly out of scope (spec §1 Non-goals); a new Signer is simply
// constructed and swapped in by the caller.
func NewSigner(n, e, d *big.Int, keyID string) *Signer {
	return &Signer{n: n, e: e, d: d, keyID: keyID}
}

// KeyID returns the opaque identifier for this key pair.
func (s *Signer) KeyID() string { return s.keyID }

// N returns the modulus, needed by callers (issuer.Engine, the /keys
// endpoint) to construct a blind.PublicKey or render the decimal wire form.
func (s *Signer) N() *big.Int { return s.n }

// E returns the public exponent.
func (s *Signer) E() *big.Int { return s.e }

// SignBlinded implements spec §4.3's sign_blinded(): blinded^d mod n.
func (s *Signer) SignBlinded(blinded *big.Int) *big.Int {
	return bignum.ModPow(blinded, s.d, s.n)
}
