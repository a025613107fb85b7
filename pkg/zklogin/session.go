package zklogin

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/url"
	"strconv"

	"github.com/zeebo/blake3"
)

// epochSafetyMargin keeps the ephemeral key and proof valid across minor
// epoch drift during the OAuth round trip.
const epochSafetyMargin = 2

// EpochSource reads the current epoch from verified ledger state.
type EpochSource interface {
	GetCurrentEpoch(ctx context.Context) (uint64, error)
}

// SessionParams is the ephemeral material for one login attempt. The caller
// keeps it in short-lived client storage across the OAuth redirect; the
// server holds nothing.
type SessionParams struct {
	Nonce               string `json:"nonce"`
	EphemeralPrivateKey string `json:"ephemeralPrivateKey"`
	MaxEpoch            uint64 `json:"maxEpoch"`
	Randomness          string `json:"randomness"`
}

// SessionGenerator creates ephemeral key material bound to the current epoch.
type SessionGenerator struct {
	epochs EpochSource
}

func NewSessionGenerator(epochs EpochSource) *SessionGenerator {
	return &SessionGenerator{epochs: epochs}
}

// BeginSession generates a fresh ephemeral key pair, randomness and the
// nonce committing to them. An epoch fetch failure is fatal to the attempt.
func (g *SessionGenerator) BeginSession(ctx context.Context) (*SessionParams, error) {
	epoch, err := g.epochs.GetCurrentEpoch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEpochFetchFailed, err)
	}
	maxEpoch := epoch + epochSafetyMargin

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("unable to generate ephemeral key: %w", err)
	}

	randomness, err := generateRandomness()
	if err != nil {
		return nil, err
	}

	return &SessionParams{
		Nonce:               ComputeNonce(pub, maxEpoch, randomness),
		EphemeralPrivateKey: EncodePrivateKey(priv),
		MaxEpoch:            maxEpoch,
		Randomness:          randomness,
	}, nil
}

// generateRandomness draws a 128-bit scalar, rendered in decimal as the
// prover expects it.
func generateRandomness() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("unable to generate randomness: %w", err)
	}
	return new(big.Int).SetBytes(buf).String(), nil
}

// ComputeNonce derives the commitment embedded in the OAuth request:
// the leading 20 bytes of blake3(flagged public key, maxEpoch, randomness),
// base64url without padding. The ID token returned by the provider must
// carry exactly this value or the login attempt is rejected.
func ComputeNonce(pub ed25519.PublicKey, maxEpoch uint64, randomness string) string {
	h := blake3.New()
	h.Write([]byte{0x00})
	h.Write(pub)
	h.Write([]byte(strconv.FormatUint(maxEpoch, 10)))
	h.Write([]byte(randomness))
	sum := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum[:20])
}

// EncodePrivateKey serializes the 32-byte ed25519 seed.
func EncodePrivateKey(priv ed25519.PrivateKey) string {
	return base64.StdEncoding.EncodeToString(priv.Seed())
}

// DecodePrivateKey reconstructs an ed25519 key pair from its encoded seed.
func DecodePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	seed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("unable to decode ephemeral private key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ephemeral private key has wrong length %d", len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// ExtendedEphemeralPublicKey is the flagged public key encoding the prover
// consumes: base64(scheme flag, 32 raw key bytes).
func ExtendedEphemeralPublicKey(pub ed25519.PublicKey) string {
	flagged := append([]byte{0x00}, pub...)
	return base64.StdEncoding.EncodeToString(flagged)
}

// ProviderConfig identifies the app at the OpenID provider used for login.
type ProviderConfig struct {
	AuthEndpoint string `yaml:"auth_endpoint"`
	ClientID     string `yaml:"client_id"`
	RedirectURI  string `yaml:"redirect_uri"`
}

// AuthURL builds the implicit-flow redirect carrying the session nonce.
func (p *ProviderConfig) AuthURL(nonce string) string {
	query := url.Values{}
	query.Add("client_id", p.ClientID)
	query.Add("redirect_uri", p.RedirectURI)
	query.Add("response_type", "id_token")
	query.Add("scope", "openid")
	query.Add("nonce", nonce)
	return fmt.Sprintf("%s?%s", p.AuthEndpoint, query.Encode())
}
