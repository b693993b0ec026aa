package main

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"

	"github.com/chronocoders/ecash/issuer"
	"github.com/chronocoders/ecash/serverconfig"
)

// loadSigner reads the PEM-encoded RSA private key at cfg.SigningKeyPath
// and wraps it in an issuer.Signer bound to cfg.KeyID.
func loadSigner(cfg *serverconfig.Config) (*issuer.Signer, error) {
	raw, err := os.ReadFile(cfg.SigningKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", cfg.SigningKeyPath, err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found", cfg.SigningKeyPath)
	}

	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		key, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err2 != nil {
			return nil, fmt.Errorf("%s: not a PKCS1 or PKCS8 RSA key: %w", cfg.SigningKeyPath, err)
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%s: PKCS8 key is not RSA", cfg.SigningKeyPath)
		}
		priv = rsaKey
	}

	return issuer.NewSigner(priv.N, big.NewInt(int64(priv.E)), priv.D, cfg.KeyID), nil
}
