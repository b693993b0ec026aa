package api

import "github.com/chronocoders/ecash/token"

func toDomainBlindedToken(r BlindedTokenRequest) token.BlindedToken {
	return token.BlindedToken{
		BlindedMessage: r.BlindedMessage,
		Denomination:   r.Denomination,
		Currency:       r.Currency,
	}
}

func fromDomainBlindSignature(sig token.BlindSignature) BlindSignatureResponse {
	return BlindSignatureResponse{Signature: sig.Signature, KeyID: sig.KeyID}
}

func toDomainToken(r TokenRequest) token.Token {
	return token.Token{
		SerialNumber:  r.SerialNumber,
		Denomination:  r.Denomination,
		Currency:      r.Currency,
		Signature:     r.Signature,
		IssuedAt:      r.IssuedAt,
		ExpiresAt:     r.ExpiresAt,
		InstitutionID: r.InstitutionID,
		KeyID:         r.KeyID,
	}
}
