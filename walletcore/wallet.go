// Package walletcore implements the Wallet side of the protocol: preparing
// a batch of blinded tokens for withdrawal and finalizing a withdrawal by
// unblinding and verifying the Institution's signatures (spec §4.4,
// component C5).
package walletcore

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/chronocoders/ecash/blind"
	"github.com/chronocoders/ecash/ecashlog"
	"github.com/chronocoders/ecash/ecashutil"
	"github.com/chronocoders/ecash/token"
)

var log = ecashlog.SubLogger(ecashlog.SubsystemWalletCore)

// IssuerKeys is everything the Wallet needs to know about the Institution
// it's transacting with: its public key, accepted denominations, and
// identifiers. It holds what a GET /api/v1/keys response advertises (spec
// §4.9), with the decimal key strings parsed, plus the currency, which that
// response does not carry. A Wallet is always constructed directly from it
// rather than ever existing half-initialized (spec §9's
// re-architecture note on the Option<CoreWallet> pattern).
type IssuerKeys struct {
	KeyID         string
	InstitutionID string
	PublicKey     blind.PublicKey
	Denominations []uint64
	Currency      string
}

func (k IssuerKeys) accepts(d uint64) bool {
	for _, v := range k.Denominations {
		if v == d {
			return true
		}
	}
	return false
}

// Wallet is the holder's protocol engine (spec §4.4, component C5). There
// is no constructor that produces a usable Wallet without a complete set of
// issuer keys: New is the only way to build one.
type Wallet struct {
	keys IssuerKeys
}

// New constructs a Wallet from the Institution's advertised keys. This is
// the engine's only constructor, by design (spec §9).
func New(keys IssuerKeys) *Wallet {
	return &Wallet{keys: keys}
}

// PrepareWithdrawal implements spec §4.4's prepare_withdrawal(): it mints
// ceil(amount/denomination) fresh blinded tokens, each paired positionally
// with the wallet-local metadata needed to unblind the matching signature
// later. issuedAt is recorded once per slot here and carried through
// finalization — it is never recomputed (spec §9).
func (w *Wallet) PrepareWithdrawal(amount, denomination uint64) ([]token.BlindedToken, []token.Metadata, error) {
	if !w.keys.accepts(denomination) {
		return nil, nil, ecashutil.ErrInvalidDenomination
	}

	count := int(math.Ceil(float64(amount) / float64(denomination)))
	if count <= 0 {
		count = 0
	}

	blindedTokens := make([]token.BlindedToken, 0, count)
	metadata := make([]token.Metadata, 0, count)

	for i := 0; i < count; i++ {
		var serial [32]byte
		if _, err := rand.Read(serial[:]); err != nil {
			return nil, nil, ecashutil.Wrap(err, "minting serial")
		}

		issuedAt := time.Now().UTC()
		msg := token.CanonicalTuple(serial[:], denomination, w.keys.Currency, issuedAt)

		blinded, r, err := blind.Blind(msg, w.keys.PublicKey)
		if err != nil {
			return nil, nil, err
		}

		blindedTokens = append(blindedTokens, token.BlindedToken{
			BlindedMessage: blinded.Bytes(),
			Denomination:   denomination,
			Currency:       w.keys.Currency,
		})
		metadata = append(metadata, token.Metadata{
			Serial:         serial,
			BlindingFactor: r.Bytes(),
			Denomination:   denomination,
			Currency:       w.keys.Currency,
			IssuedAt:       issuedAt,
		})
	}

	return blindedTokens, metadata, nil
}

// FinalizeWithdrawal implements spec §4.4's finalize_withdrawal(): it
// unblinds and verifies every signature against its paired metadata, all or
// nothing — a single bad signature fails the whole batch (spec §4.4, §7).
func (w *Wallet) FinalizeWithdrawal(sigs []token.BlindSignature, metadata []token.Metadata, expiresAt time.Time) ([]token.Token, error) {
	if len(sigs) != len(metadata) {
		return nil, ecashutil.ErrProtocolMismatch
	}

	tokens := make([]token.Token, len(sigs))
	for i, sig := range sigs {
		md := metadata[i]

		blindSig := new(big.Int).SetBytes(sig.Signature)
		r := new(big.Int).SetBytes(md.BlindingFactor)

		s, err := blind.Unblind(blindSig, r, w.keys.PublicKey)
		if err != nil {
			return nil, err
		}

		msg := token.CanonicalTuple(md.Serial[:], md.Denomination, md.Currency, md.IssuedAt)
		if !blind.Verify(msg, s, w.keys.PublicKey) {
			log.Warnf("finalize withdrawal: signature %d of %d failed verification", i+1, len(sigs))
			return nil, ecashutil.ErrInvalidSignature
		}

		tokens[i] = token.Token{
			SerialNumber:  append([]byte(nil), md.Serial[:]...),
			Denomination:  md.Denomination,
			Currency:      md.Currency,
			Signature:     s.Bytes(),
			IssuedAt:      md.IssuedAt,
			ExpiresAt:     expiresAt,
			InstitutionID: w.keys.InstitutionID,
			KeyID:         sig.KeyID,
		}
	}

	return tokens, nil
}
