package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/chronocoders/ecash/api"
	"github.com/chronocoders/ecash/blind"
	"github.com/chronocoders/ecash/token"
	"github.com/chronocoders/ecash/walletcore"
	"github.com/chronocoders/ecash/walletstore"
)

// fetchIssuerKeys retrieves the issuer's public key material and builds the
// walletcore.IssuerKeys the wallet engine needs to prepare withdrawals and
// verify signatures.
func fetchIssuerKeys(c *client) (walletcore.IssuerKeys, error) {
	resp, err := c.Keys()
	if err != nil {
		return walletcore.IssuerKeys{}, err
	}

	n, ok := new(big.Int).SetString(resp.PublicKeyN, 10)
	if !ok {
		return walletcore.IssuerKeys{}, fmt.Errorf("fetchIssuerKeys: malformed public_key_n %q", resp.PublicKeyN)
	}
	e, ok := new(big.Int).SetString(resp.PublicKeyE, 10)
	if !ok {
		return walletcore.IssuerKeys{}, fmt.Errorf("fetchIssuerKeys: malformed public_key_e %q", resp.PublicKeyE)
	}

	return walletcore.IssuerKeys{
		KeyID:         resp.KeyID,
		InstitutionID: resp.InstitutionID,
		PublicKey:     blind.PublicKey{N: n, E: e},
		Denominations: resp.Denominations,
		Currency:      "USD",
	}, nil
}

// runWithdraw executes a full withdrawal: prepare locally, submit the
// blinded tokens, finalize the returned signatures, and persist the
// resulting tokens to the local store.
func runWithdraw(ctx context.Context, c *client, store *walletstore.Store, w *walletcore.Wallet, amount, denomination uint64) ([]token.Token, error) {
	blinded, metadata, err := w.PrepareWithdrawal(amount, denomination)
	if err != nil {
		return nil, fmt.Errorf("preparing withdrawal: %w", err)
	}

	reqTokens := make([]api.BlindedTokenRequest, len(blinded))
	for i, bt := range blinded {
		reqTokens[i] = api.BlindedTokenRequest{
			BlindedMessage: bt.BlindedMessage,
			Denomination:   bt.Denomination,
			Currency:       bt.Currency,
		}
	}

	resp, err := c.Withdraw(api.WithdrawRequest{Amount: amount, Denomination: denomination, BlindedTokens: reqTokens})
	if err != nil {
		return nil, fmt.Errorf("submitting withdrawal: %w", err)
	}

	sigs := make([]token.BlindSignature, len(resp.BlindSignatures))
	for i, s := range resp.BlindSignatures {
		sigs[i] = token.BlindSignature{Signature: s.Signature, KeyID: s.KeyID}
	}

	tokens, err := w.FinalizeWithdrawal(sigs, metadata, resp.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("finalizing withdrawal: %w", err)
	}

	for _, tok := range tokens {
		if err := store.PutAvailable(ctx, tok); err != nil {
			return nil, fmt.Errorf("persisting token: %w", err)
		}
	}

	return tokens, nil
}

// runSpend selects available tokens covering amount from the local store
// (in the order the store lists them, oldest first, stopping once the total
// reaches amount; denominations are not chosen to minimise overpayment) and
// redeems them against the issuer.
func runSpend(ctx context.Context, c *client, store *walletstore.Store, amount uint64) (*api.RedeemResponse, error) {
	available, err := store.Available(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing available tokens: %w", err)
	}

	var selected []walletstore.StoredToken
	var total uint64
	for _, st := range available {
		if total >= amount {
			break
		}
		selected = append(selected, st)
		total += st.Token.Denomination
	}
	if total < amount {
		return nil, fmt.Errorf("insufficient balance: have %d, need %d", total, amount)
	}

	reqTokens := make([]api.TokenRequest, len(selected))
	ids := make([]int64, len(selected))
	for i, st := range selected {
		reqTokens[i] = api.TokenRequest{
			SerialNumber: st.Token.SerialNumber, Denomination: st.Token.Denomination,
			Currency: st.Token.Currency, Signature: st.Token.Signature,
			IssuedAt: st.Token.IssuedAt, ExpiresAt: st.Token.ExpiresAt,
			InstitutionID: st.Token.InstitutionID, KeyID: st.Token.KeyID,
		}
		ids[i] = st.ID
	}

	resp, err := c.Redeem(api.RedeemRequest{Tokens: reqTokens})
	if err != nil {
		return nil, fmt.Errorf("redeeming tokens: %w", err)
	}

	if err := store.MarkSpent(ctx, ids); err != nil {
		return nil, fmt.Errorf("marking tokens spent locally: %w", err)
	}

	return resp, nil
}
