package zklogin

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// SaltDeriver computes the per-user secret salt from a server-held master
// seed and the identity claims of an OAuth ID token. The salt is never
// stored; identical inputs always produce the identical salt, which is what
// keeps a user's address stable across logins.
type SaltDeriver struct {
	masterSeed string
}

// NewSaltDeriver fails on an empty seed. Salt derivation is a hard runtime
// requirement; there is no degraded mode.
func NewSaltDeriver(masterSeed string) (*SaltDeriver, error) {
	if masterSeed == "" {
		return nil, fmt.Errorf("master seed is empty")
	}
	return &SaltDeriver{masterSeed: masterSeed}, nil
}

// DeriveSalt decodes the token's claims without signature verification
// (verification is delegated to the prover and the nonce check) and hashes
// masterSeed+iss+aud+sub into a 128-bit non-negative integer.
func (d *SaltDeriver) DeriveSalt(idToken string) (*big.Int, error) {
	iss, aud, sub, _, err := decodeIdentityClaims(idToken)
	if err != nil {
		return nil, err
	}

	combined := d.masterSeed + iss + aud + sub
	digest := sha256.Sum256([]byte(combined))
	return new(big.Int).SetBytes(digest[:16]), nil
}

// decodeIdentityClaims parses the token without verifying its signature and
// returns iss, first aud, sub and the nonce claim.
func decodeIdentityClaims(idToken string) (iss, aud, sub, nonce string, err error) {
	token, err := jwt.ParseString(idToken, jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return "", "", "", "", fmt.Errorf("unable to parse id token: %w", err)
	}
	iss = token.Issuer()
	if audiences := token.Audience(); len(audiences) > 0 {
		aud = audiences[0]
	}
	sub = token.Subject()
	nonce, _ = token.PrivateClaims()["nonce"].(string)
	return iss, aud, sub, nonce, nil
}
