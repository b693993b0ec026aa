package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/chronocoders/ecash/issuer"
	"github.com/chronocoders/ecash/ledger"
	"github.com/chronocoders/ecash/metrics"
	"github.com/chronocoders/ecash/redemption"
	"github.com/chronocoders/ecash/token"
	"github.com/chronocoders/ecash/walletcore"
)

type fakeSpentSet struct {
	mu   sync.Mutex
	data map[string]struct{}
}

func newFakeSpentSet() *fakeSpentSet { return &fakeSpentSet{data: make(map[string]struct{})} }

func (f *fakeSpentSet) IsSpent(_ context.Context, serialHex string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[serialHex]
	return ok, nil
}

func (f *fakeSpentSet) CheckAndMark(_ context.Context, serialHex string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[serialHex]; ok {
		return false, nil
	}
	f.data[serialHex] = struct{}{}
	return true, nil
}

func (f *fakeSpentSet) Health(context.Context) error { return nil }

type fakeLedger struct {
	mu    sync.Mutex
	spent map[string]*ledger.Record
}

func newFakeLedger() *fakeLedger { return &fakeLedger{spent: make(map[string]*ledger.Record)} }

func (f *fakeLedger) HasSpent(_ context.Context, serialHex string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.spent[serialHex]
	return ok, nil
}

func (f *fakeLedger) RecordSpent(_ context.Context, _ []byte, serialHex string, denomination uint64, currency string, merchantID *string) (*ledger.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := &ledger.Record{SerialHex: serialHex, Denomination: denomination, Currency: currency}
	f.spent[serialHex] = rec
	return rec, nil
}

func (f *fakeLedger) AppendTransaction(context.Context, ledger.TransactionEntry) error { return nil }

func (f *fakeLedger) Health(context.Context) error { return nil }

func testServer(t *testing.T) (*Server, *issuer.Engine, *walletcore.Wallet) {
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

	w := walletcore.New(walletcore.IssuerKeys{
		KeyID:         eng.KeyID(),
		InstitutionID: eng.InstitutionID(),
		PublicKey:     eng.PublicKey(),
		Denominations: eng.Denominations(),
		Currency:      eng.Currency(),
	})

	coord := redemption.New(eng, newFakeSpentSet(), newFakeLedger(), 90*24*time.Hour)
	m := metrics.New(prometheus.NewRegistry())
	srv := New(eng, coord, newFakeLedger(), newFakeSpentSet(), m)
	return srv, eng, w
}

func TestHandleHealth(t *testing.T) {
	srv, _, _ := testServer(t)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
}

func TestHandleKeys(t *testing.T) {
	srv, eng, _ := testServer(t)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/keys", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body KeysResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, eng.KeyID(), body.KeyID)
	require.Equal(t, eng.PublicKey().N.String(), body.PublicKeyN)
	require.ElementsMatch(t, []uint64{10, 50, 100}, body.Denominations)
}

// TestHandleWithdrawRejectsBadCount is property P7.
func TestHandleWithdrawRejectsBadCount(t *testing.T) {
	srv, _, w := testServer(t)
	blinded, _, err := w.PrepareWithdrawal(100, 50)
	require.NoError(t, err)
	require.Len(t, blinded, 2)

	req := WithdrawRequest{
		Amount:       100,
		Denomination: 50,
		BlindedTokens: []BlindedTokenRequest{
			{BlindedMessage: blinded[0].BlindedMessage, Denomination: 50, Currency: "USD"},
		},
	}
	body, _ := json.Marshal(req)

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/withdraw", bytes.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

// TestHandleWithdrawRejectsUnknownDenomination is property P6.
func TestHandleWithdrawRejectsUnknownDenomination(t *testing.T) {
	srv, _, _ := testServer(t)
	req := WithdrawRequest{Amount: 25, Denomination: 25, BlindedTokens: []BlindedTokenRequest{{}}}
	body, _ := json.Marshal(req)

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/withdraw", bytes.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleWithdrawThenRedeemRoundTrip(t *testing.T) {
	srv, _, w := testServer(t)
	blinded, metadata, err := w.PrepareWithdrawal(50, 50)
	require.NoError(t, err)

	reqTokens := make([]BlindedTokenRequest, len(blinded))
	for i, bt := range blinded {
		reqTokens[i] = BlindedTokenRequest{BlindedMessage: bt.BlindedMessage, Denomination: bt.Denomination, Currency: bt.Currency}
	}
	withdrawReq := WithdrawRequest{Amount: 50, Denomination: 50, BlindedTokens: reqTokens}
	body, _ := json.Marshal(withdrawReq)

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/withdraw", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)

	var withdrawResp WithdrawResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &withdrawResp))

	sigs := make([]token.BlindSignature, len(withdrawResp.BlindSignatures))
	for i, s := range withdrawResp.BlindSignatures {
		sigs[i] = token.BlindSignature{Signature: s.Signature, KeyID: s.KeyID}
	}
	tokens, err := w.FinalizeWithdrawal(sigs, metadata, withdrawResp.ExpiresAt)
	require.NoError(t, err)
	require.Len(t, tokens, 1)

	redeemReq := RedeemRequest{Tokens: []TokenRequest{{
		SerialNumber: tokens[0].SerialNumber, Denomination: tokens[0].Denomination,
		Currency: tokens[0].Currency, Signature: tokens[0].Signature,
		IssuedAt: tokens[0].IssuedAt, ExpiresAt: tokens[0].ExpiresAt,
		InstitutionID: tokens[0].InstitutionID, KeyID: tokens[0].KeyID,
	}}}
	redeemBody, _ := json.Marshal(redeemReq)

	rr2 := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr2, httptest.NewRequest(http.MethodPost, "/api/v1/redeem", bytes.NewReader(redeemBody)))
	require.Equal(t, http.StatusOK, rr2.Code)

	var redeemResp RedeemResponse
	require.NoError(t, json.Unmarshal(rr2.Body.Bytes(), &redeemResp))
	require.Equal(t, 1, redeemResp.AcceptedCount)
	require.Equal(t, uint64(50), redeemResp.TotalAmount)

	// Re-redeeming the same token must 409.
	rr3 := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr3, httptest.NewRequest(http.MethodPost, "/api/v1/redeem", bytes.NewReader(redeemBody)))
	require.Equal(t, http.StatusConflict, rr3.Code)
}
