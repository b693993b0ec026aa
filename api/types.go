package api

import "time"

// BlindedTokenRequest mirrors token.BlindedToken on the wire.
type BlindedTokenRequest struct {
	BlindedMessage []byte `json:"blinded_message"`
	Denomination   uint64 `json:"denomination"`
	Currency       string `json:"currency"`
}

// WithdrawRequest is the POST /api/v1/withdraw request body (spec §4.9).
type WithdrawRequest struct {
	Amount        uint64                `json:"amount"`
	Denomination  uint64                `json:"denomination"`
	BlindedTokens []BlindedTokenRequest `json:"blinded_tokens"`
}

// BlindSignatureResponse mirrors token.BlindSignature on the wire.
type BlindSignatureResponse struct {
	Signature []byte `json:"signature"`
	KeyID     string `json:"key_id"`
}

// WithdrawResponse is the POST /api/v1/withdraw response body.
type WithdrawResponse struct {
	BlindSignatures []BlindSignatureResponse `json:"blind_signatures"`
	KeyID           string                   `json:"key_id"`
	ExpiresAt       time.Time                `json:"expires_at"`
	TransactionID   string                   `json:"transaction_id"`
}

// TokenRequest mirrors token.Token on the wire.
type TokenRequest struct {
	SerialNumber  []byte    `json:"serial_number"`
	Denomination  uint64    `json:"denomination"`
	Currency      string    `json:"currency"`
	Signature     []byte    `json:"signature"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	InstitutionID string    `json:"institution_id"`
	KeyID         string    `json:"key_id"`
}

// RedeemRequest is the POST /api/v1/redeem request body (spec §4.9).
type RedeemRequest struct {
	Tokens     []TokenRequest `json:"tokens"`
	MerchantID *string        `json:"merchant_id,omitempty"`
}

// RedeemResponse is the POST /api/v1/redeem response body.
type RedeemResponse struct {
	AcceptedCount int       `json:"accepted_count"`
	TotalAmount   uint64    `json:"total_amount"`
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// VerifyRequest is the POST /api/v1/verify request body.
type VerifyRequest struct {
	Token TokenRequest `json:"token"`
}

// VerifyResponse never fails; it surfaces token state (spec §4.9).
type VerifyResponse struct {
	Valid   bool   `json:"valid"`
	Expired bool   `json:"expired"`
	Spent   bool   `json:"spent"`
	Message string `json:"message"`
}

// KeysResponse is the GET /api/v1/keys response body.
type KeysResponse struct {
	KeyID         string     `json:"key_id"`
	InstitutionID string     `json:"institution_id"`
	PublicKeyN    string     `json:"public_key_n"`
	PublicKeyE    string     `json:"public_key_e"`
	Denominations []uint64   `json:"denominations"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// HealthResponse is the GET /health response body.
type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Redis     string    `json:"redis"`
	Timestamp time.Time `json:"timestamp"`
}

// errorResponse is the body written for every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}
