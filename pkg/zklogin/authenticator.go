package zklogin

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/sprinkle-app/sprinkle-go/pkg/seal"
)

// ProofService is the prover dependency of the authenticator, satisfied by
// ProverClient.
type ProofService interface {
	RequestProof(ctx context.Context, jwt, extendedEphemeralPublicKey string, maxEpoch uint64, randomness, salt string) (*Proof, error)
}

// AuthRequest carries the OAuth ID token from the callback together with the
// ephemeral session material the client kept across the redirect.
type AuthRequest struct {
	IDToken             string `json:"idToken" validate:"required"`
	Nonce               string `json:"nonce" validate:"required"`
	EphemeralPrivateKey string `json:"ephemeralPrivateKey" validate:"required"`
	MaxEpoch            uint64 `json:"maxEpoch" validate:"required"`
	Randomness          string `json:"randomness" validate:"required"`
}

// AuthResult is the outcome of a successful login: the user's address and
// the sealed session to hand back as an opaque handle.
type AuthResult struct {
	Address       string
	SealedSession string
}

// SessionData is the plaintext content of a sealed session. It holds the
// proof and the ephemeral private key, so it only ever exists decrypted in
// memory during a signing request.
type SessionData struct {
	ZkProof             *Proof `json:"zkProof"`
	AddressSeed         string `json:"addressSeed"`
	Nonce               string `json:"nonce"`
	EphemeralPrivateKey string `json:"ephemeralPrivateKey"`
	MaxEpoch            uint64 `json:"maxEpoch"`
	Randomness          string `json:"randomness"`
}

// Authenticator runs the login pipeline: nonce check, salt, address, proof,
// sealed session. The whole operation is atomic from the caller's view; a
// failure at any step leaves no state behind.
type Authenticator struct {
	saltDeriver *SaltDeriver
	prover      ProofService
	sealer      *seal.Sealer
	sessionTTL  time.Duration
}

func NewAuthenticator(saltDeriver *SaltDeriver, prover ProofService, sealer *seal.Sealer, sessionTTL time.Duration) *Authenticator {
	return &Authenticator{
		saltDeriver: saltDeriver,
		prover:      prover,
		sealer:      sealer,
		sessionTTL:  sessionTTL,
	}
}

func (a *Authenticator) SessionTTL() time.Duration {
	return a.sessionTTL
}

// Authenticate exchanges a verified-by-binding ID token for a blockchain
// address and a sealed session. The nonce check runs before anything else;
// an ID token minted for a different login attempt never reaches the prover.
func (a *Authenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	attemptID := ksuid.New().String()

	_, aud, sub, tokenNonce, err := decodeIdentityClaims(req.IDToken)
	if err != nil {
		loginAttempts.WithLabelValues("invalid_token").Inc()
		return nil, fmt.Errorf("%w: %s", ErrSessionDataInvalid, err)
	}

	if tokenNonce != req.Nonce {
		loginAttempts.WithLabelValues("nonce_mismatch").Inc()
		slog.Warn("Nonce mismatch, possible token replay", "attempt", attemptID)
		return nil, ErrNonceMismatch
	}

	ephemeralKey, err := DecodePrivateKey(req.EphemeralPrivateKey)
	if err != nil {
		loginAttempts.WithLabelValues("invalid_session").Inc()
		return nil, fmt.Errorf("%w: %s", ErrSessionDataInvalid, err)
	}

	salt, err := a.saltDeriver.DeriveSalt(req.IDToken)
	if err != nil {
		loginAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("unable to derive salt: %w", err)
	}

	address, err := DeriveAddress(req.IDToken, salt)
	if err != nil {
		loginAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("unable to derive address: %w", err)
	}

	extendedPublicKey := ExtendedEphemeralPublicKey(ephemeralKey.Public().(ed25519.PublicKey))

	proof, err := a.prover.RequestProof(ctx, req.IDToken, extendedPublicKey, req.MaxEpoch, req.Randomness, salt.String())
	if err != nil {
		loginAttempts.WithLabelValues("prover_failed").Inc()
		return nil, err
	}

	addressSeed := AddressSeed(salt, "sub", sub, aud)

	sessionData := SessionData{
		ZkProof:             proof,
		AddressSeed:         addressSeed.String(),
		Nonce:               req.Nonce,
		EphemeralPrivateKey: req.EphemeralPrivateKey,
		MaxEpoch:            req.MaxEpoch,
		Randomness:          req.Randomness,
	}
	payload, err := json.Marshal(sessionData)
	if err != nil {
		loginAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("unable to encode session data: %w", err)
	}

	sealedSession, err := a.sealer.Seal(payload, a.sessionTTL)
	if err != nil {
		loginAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("unable to seal session: %w", err)
	}

	loginAttempts.WithLabelValues("success").Inc()
	slog.Info("zkLogin authenticated", "attempt", attemptID, "address", address, "maxEpoch", req.MaxEpoch)

	return &AuthResult{
		Address:       address,
		SealedSession: sealedSession,
	}, nil
}
