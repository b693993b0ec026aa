package issuer

import (
	"math/big"
	"time"

	"github.com/chronocoders/ecash/blind"
	"github.com/chronocoders/ecash/ecashutil"
	"github.com/chronocoders/ecash/token"
)

// Engine is the Institution's protocol engine (spec §4.5, component C6). It
// is constructed once at bootstrap from an immutable Signer and
// denomination set and handed to request handlers as a shared read-only
// value (spec §9's re-architecture note) — never package-level state.
type Engine struct {
	signer        *Signer
	denominations map[uint64]struct{}
	currency      string
	institutionID string
	validity      time.Duration
}

// Config collects the immutable parameters an Engine is built from.
type Config struct {
	Signer        *Signer
	Denominations []uint64
	Currency      string
	InstitutionID string
	// Validity is the token lifetime handed out by ExpiryTime; spec §4.5
	// defaults this to 90 days when unset.
	Validity time.Duration
}

const defaultValidity = 90 * 24 * time.Hour

// NewEngine builds an Engine from cfg. The denomination set and signer are
// immutable for the lifetime of the Engine (spec §3).
func NewEngine(cfg Config) *Engine {
	validity := cfg.Validity
	if validity <= 0 {
		validity = defaultValidity
	}

	set := make(map[uint64]struct{}, len(cfg.Denominations))
	for _, d := range cfg.Denominations {
		set[d] = struct{}{}
	}

	return &Engine{
		signer:        cfg.Signer,
		denominations: set,
		currency:      cfg.Currency,
		institutionID: cfg.InstitutionID,
		validity:      validity,
	}
}

// PublicKey returns the Institution's RSA public key for blind.Blind/Verify.
func (e *Engine) PublicKey() blind.PublicKey {
	return blind.PublicKey{N: e.signer.N(), E: e.signer.E()}
}

// KeyID returns the key_id carried on every signature and token.
func (e *Engine) KeyID() string { return e.signer.KeyID() }

// InstitutionID returns the opaque institution identifier stamped on every
// minted Token.
func (e *Engine) InstitutionID() string { return e.institutionID }

// Currency returns the single currency this Institution accepts (spec §1
// Non-goals: no multi-currency combining).
func (e *Engine) Currency() string { return e.currency }

// Denominations returns the accepted face values in ascending order.
func (e *Engine) Denominations() []uint64 {
	out := make([]uint64, 0, len(e.denominations))
	for d := range e.denominations {
		out = append(out, d)
	}
	// Simple insertion sort: the accepted set is tiny (a handful of face
	// values), so this avoids pulling in sort for a handful of uint64s.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// AcceptsDenomination reports whether d is in the accepted set (spec §4.5,
// §4.6).
func (e *Engine) AcceptsDenomination(d uint64) bool {
	_, ok := e.denominations[d]
	return ok
}

// ExpiryTime implements spec §4.5's expiry_time(): now + configured
// validity. The Wallet never computes this itself; it is always supplied
// by the Institution in the withdraw response (spec §4.4, §9).
func (e *Engine) ExpiryTime(now time.Time) time.Time {
	return now.Add(e.validity)
}

// SignBlindedToken implements spec §4.5/§4.6's sign_blinded_token(): checks
// the denomination is accepted, then signs the blinded integer.
func (e *Engine) SignBlindedToken(bt token.BlindedToken) (token.BlindSignature, error) {
	if !e.AcceptsDenomination(bt.Denomination) {
		return token.BlindSignature{}, ecashutil.ErrInvalidDenomination
	}

	blinded := new(big.Int).SetBytes(bt.BlindedMessage)
	sig := e.signer.SignBlinded(blinded)

	return token.BlindSignature{
		Signature: sig.Bytes(),
		KeyID:     e.signer.KeyID(),
	}, nil
}

// VerifyToken implements spec §4.5/§4.6's verify_token(): checks expiry,
// checks the denomination is still accepted, then reconstructs the
// canonical tuple from the token's own fields — never from a freshly
// observed wall clock (spec §9) — and verifies the unblinded signature.
func (e *Engine) VerifyToken(t *token.Token, now time.Time) (bool, error) {
	if t.IsExpired(now) {
		return false, nil
	}
	if !e.AcceptsDenomination(t.Denomination) {
		return false, ecashutil.ErrInvalidDenomination
	}

	msg := token.CanonicalTupleForToken(t)
	s := new(big.Int).SetBytes(t.Signature)

	return blind.Verify(msg, s, e.PublicKey()), nil
}
