// Package token holds the wire and in-memory representations of the
// eCash token lifecycle (spec §3, component C4) and the single canonical
// byte-encoding function both the Wallet (walletcore) and the Institution
// (issuer) depend on, so they can never disagree about what got signed.
package token

import (
	"encoding/binary"
	"encoding/hex"
	"time"
)

// BlindedToken is what the Wallet sends to the Institution in a withdraw
// request: a blinded message awaiting signature, plus the denomination the
// Institution validates against its accepted set and the currency
// (spec §3, §4.6).
type BlindedToken struct {
	BlindedMessage []byte `json:"blinded_message"`
	Denomination   uint64 `json:"denomination"`
	Currency       string `json:"currency"`
}

// BlindSignature is what the Institution returns for each BlindedToken: the
// still-blinded signature, and the key_id it was produced under.
type BlindSignature struct {
	Signature []byte `json:"signature"`
	KeyID     string `json:"key_id"`
}

// Metadata is wallet-local bookkeeping, never sent over the wire: the
// secret serial and blinding factor needed to unblind the matching
// BlindSignature, paired positionally with the BlindedToken it was derived
// from (spec §3).
type Metadata struct {
	Serial         [32]byte
	BlindingFactor []byte
	Denomination   uint64
	Currency       string
	IssuedAt       time.Time
}

// Token is a minted, bearer-owned eCash token (spec §3). Signature is the
// unblinded RSA signature over CanonicalTuple(Token).
type Token struct {
	SerialNumber  []byte    `json:"serial_number"`
	Denomination  uint64    `json:"denomination"`
	Currency      string    `json:"currency"`
	Signature     []byte    `json:"signature"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	InstitutionID string    `json:"institution_id"`
	KeyID         string    `json:"key_id"`
}

// IsExpired reports whether the token is past its validity window as of
// now. expires_at is inclusive of "now" per spec §3 ("inclusive of 'now'
// rejects"): a token expiring exactly now is treated as expired.
func (t *Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// SerialHex is the ledger/spent-set key for this token: hex(serial), per
// spec §3's Spent Record and §4.6/§4.8.
func (t *Token) SerialHex() string {
	return hex.EncodeToString(t.SerialNumber)
}

// CanonicalTuple builds the exact byte sequence that is hashed and signed,
// per spec §3's authoritative definition:
//
//	serial(32) || denomination_u64_be(8) || currency_utf8(variable) || issued_at_unix_i64_be(8)
//
// Both walletcore.Wallet and issuer.Engine call this single function so
// there is no possibility of the two sides diverging (spec §9's
// re-architecture note on the duplicated message builder).
func CanonicalTuple(serial []byte, denomination uint64, currency string, issuedAt time.Time) []byte {
	buf := make([]byte, 0, 32+8+len(currency)+8)
	buf = append(buf, serial...)

	var denomBuf [8]byte
	binary.BigEndian.PutUint64(denomBuf[:], denomination)
	buf = append(buf, denomBuf[:]...)

	buf = append(buf, []byte(currency)...)

	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(issuedAt.Unix()))
	buf = append(buf, tsBuf[:]...)

	return buf
}

// CanonicalTupleForToken is a convenience wrapper around CanonicalTuple for
// an already-minted Token, used by issuer.Engine.VerifyToken.
func CanonicalTupleForToken(t *Token) []byte {
	return CanonicalTuple(t.SerialNumber, t.Denomination, t.Currency, t.IssuedAt)
}
