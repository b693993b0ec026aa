// Package api implements the public request/response surface (spec §4.9,
// component C10): Withdraw, Redeem, Verify, Keys, and Health, routed with
// gorilla/mux the way the teacher's rpcserver wires its REST gateway.
package api

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/chronocoders/ecash/ecashlog"
	"github.com/chronocoders/ecash/ecashutil"
	"github.com/chronocoders/ecash/issuer"
	"github.com/chronocoders/ecash/ledger"
	"github.com/chronocoders/ecash/metrics"
	"github.com/chronocoders/ecash/redemption"
	"github.com/chronocoders/ecash/spentset"
	"github.com/chronocoders/ecash/token"
)

var log = ecashlog.SubLogger(ecashlog.SubsystemAPI)

// Server holds everything the HTTP handlers need: the issuer engine for
// signing and verification, the redemption coordinator for the double-spend
// machinery, and direct handles to the ledger/spent-set for health checks.
type Server struct {
	engine  *issuer.Engine
	coord   *redemption.Coordinator
	ledger  ledger.Ledger
	spent   spentset.Set
	metrics *metrics.Metrics
	router  *mux.Router
}

// New builds a Server and registers its routes.
func New(engine *issuer.Engine, coord *redemption.Coordinator, led ledger.Ledger, spent spentset.Set, m *metrics.Metrics) *Server {
	s := &Server{engine: engine, coord: coord, ledger: led, spent: spent, metrics: m, router: mux.NewRouter()}
	s.routes()
	return s
}

// Router returns the http.Handler to pass to http.Server.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/keys", s.handleKeys).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/withdraw", s.handleWithdraw).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/redeem", s.handleRedeem).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/verify", s.handleVerify).Methods(http.MethodPost)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("api: failed to encode response body: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	if domainErr, ok := err.(*ecashutil.Error); ok {
		if domainErr.Kind == ecashutil.KindInternal {
			log.Errorf("api: internal error: %v", domainErr)
		}
		writeJSON(w, domainErr.Kind.HTTPStatus(), errorResponse{Error: domainErr.Error()})
		return
	}
	log.Errorf("api: unclassified error: %v", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

// handleHealth implements GET /health. Per spec §4.9 it never returns a
// 5xx for a downstream outage — the outage is surfaced in the body instead.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	database := "ok"
	if err := s.ledger.Health(r.Context()); err != nil {
		database = "unavailable"
	}
	redisStatus := "ok"
	if err := s.spent.Health(r.Context()); err != nil {
		redisStatus = "unavailable"
	}

	status := "ok"
	if database != "ok" || redisStatus != "ok" {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Database:  database,
		Redis:     redisStatus,
		Timestamp: time.Now().UTC(),
	})
}

// handleKeys implements GET /api/v1/keys.
func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	pub := s.engine.PublicKey()
	writeJSON(w, http.StatusOK, KeysResponse{
		KeyID:         s.engine.KeyID(),
		InstitutionID: s.engine.InstitutionID(),
		PublicKeyN:    pub.N.String(),
		PublicKeyE:    pub.E.String(),
		Denominations: s.engine.Denominations(),
	})
}

// handleWithdraw implements POST /api/v1/withdraw (spec §4.9, properties
// P6/P7): rejects unknown denominations and a blinded_tokens count that
// doesn't match ceil(amount/denomination), both before signing anything.
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ecashutil.ErrInvalidRequest)
		return
	}

	if req.Denomination == 0 || !s.engine.AcceptsDenomination(req.Denomination) {
		writeError(w, ecashutil.ErrInvalidDenomination)
		return
	}
	if req.Amount == 0 {
		writeError(w, ecashutil.ErrInvalidRequest)
		return
	}

	expectedCount := int(math.Ceil(float64(req.Amount) / float64(req.Denomination)))
	if len(req.BlindedTokens) != expectedCount {
		writeError(w, ecashutil.ErrInvalidRequest)
		return
	}

	sigs := make([]BlindSignatureResponse, 0, len(req.BlindedTokens))
	for _, bt := range req.BlindedTokens {
		sig, err := s.engine.SignBlindedToken(toDomainBlindedToken(bt))
		if err != nil {
			writeError(w, err)
			return
		}
		sigs = append(sigs, fromDomainBlindSignature(sig))
	}

	expiresAt := s.engine.ExpiryTime(time.Now())
	txID := uuid.New().String()

	s.metrics.WithdrawTotal.Inc()
	s.coord.AppendTransactionLog(r.Context(), ledger.TransactionEntry{
		Kind:          ledger.TransactionWithdraw,
		Amount:        req.Amount,
		Denomination:  req.Denomination,
		TokenCount:    len(sigs),
		InstitutionID: s.engine.InstitutionID(),
		KeyID:         s.engine.KeyID(),
		Status:        "ok",
	})

	writeJSON(w, http.StatusOK, WithdrawResponse{
		BlindSignatures: sigs,
		KeyID:           s.engine.KeyID(),
		ExpiresAt:       expiresAt,
		TransactionID:   txID,
	})
}

// handleRedeem implements POST /api/v1/redeem (spec §4.8/§4.9).
func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer s.metrics.ObserveRedeemDuration(start)

	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ecashutil.ErrInvalidRequest)
		return
	}
	if len(req.Tokens) == 0 {
		writeError(w, ecashutil.ErrInvalidRequest)
		return
	}

	tokens := make([]token.Token, len(req.Tokens))
	for i, t := range req.Tokens {
		tokens[i] = toDomainToken(t)
	}

	result, err := s.coord.Redeem(r.Context(), tokens, req.MerchantID)
	if err != nil {
		reason := ecashutil.KindInternal.String()
		if domainErr, ok := err.(*ecashutil.Error); ok {
			reason = domainErr.Kind.String()
		}
		s.metrics.RedeemRejectedTotal.WithLabelValues(reason).Inc()

		errMsg := err.Error()
		s.coord.AppendTransactionLog(r.Context(), ledger.TransactionEntry{
			Kind:          ledger.TransactionRedeem,
			TokenCount:    len(tokens),
			InstitutionID: s.engine.InstitutionID(),
			KeyID:         s.engine.KeyID(),
			Status:        "rejected",
			ErrorMessage:  &errMsg,
		})
		writeError(w, err)
		return
	}

	s.metrics.RedeemAcceptedTotal.Add(float64(result.AcceptedCount))
	txID := uuid.New().String()
	s.coord.AppendTransactionLog(r.Context(), ledger.TransactionEntry{
		Kind:          ledger.TransactionRedeem,
		Amount:        result.TotalAmount,
		TokenCount:    result.AcceptedCount,
		InstitutionID: s.engine.InstitutionID(),
		KeyID:         s.engine.KeyID(),
		Status:        "ok",
	})

	writeJSON(w, http.StatusOK, RedeemResponse{
		AcceptedCount: result.AcceptedCount,
		TotalAmount:   result.TotalAmount,
		TransactionID: txID,
		Timestamp:     time.Now().UTC(),
	})
}

// handleVerify implements POST /api/v1/verify. It never fails with an
// error status — it surfaces token state in the body (spec §4.9).
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, VerifyResponse{Message: "malformed request"})
		return
	}

	tok := toDomainToken(req.Token)
	now := time.Now()
	expired := tok.IsExpired(now)

	spent, err := s.ledger.HasSpent(r.Context(), tok.SerialHex())
	if err != nil {
		writeJSON(w, http.StatusOK, VerifyResponse{Message: "unable to check spend status"})
		return
	}

	valid, err := s.engine.VerifyToken(&tok, now)
	if err != nil {
		writeJSON(w, http.StatusOK, VerifyResponse{Expired: expired, Spent: spent, Message: err.Error()})
		return
	}

	message := "valid"
	switch {
	case expired:
		message = "expired"
	case !valid:
		message = "invalid signature"
	case spent:
		message = "already spent"
	}

	writeJSON(w, http.StatusOK, VerifyResponse{Valid: valid && !expired && !spent, Expired: expired, Spent: spent, Message: message})
}
