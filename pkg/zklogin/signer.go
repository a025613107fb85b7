package zklogin

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/sprinkle-app/sprinkle-go/pkg/seal"
	"github.com/zeebo/blake3"
)

// transactionIntent is the domain separator prepended to transaction bytes
// before hashing, so a transaction signature can never be confused with a
// signature over other message kinds.
var transactionIntent = []byte{0x00, 0x00, 0x00}

// CompositeSignature is the on-chain signature structure: the ephemeral
// key's signature over the transaction plus the proof material a verifier
// needs to tie that key to the claimed address. Produced fresh per
// transaction, never reused.
type CompositeSignature struct {
	Proof         *Proof `cbor:"proof"`
	AddressSeed   string `cbor:"addressSeed"`
	MaxEpoch      uint64 `cbor:"maxEpoch"`
	UserSignature []byte `cbor:"userSignature"`
}

// Encode serializes the signature for submission: base64(scheme flag, body).
func (s *CompositeSignature) Encode() (string, error) {
	body, err := cbor.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("unable to serialize signature: %w", err)
	}
	return base64.StdEncoding.EncodeToString(append([]byte{zkLoginScheme}, body...)), nil
}

// Signer turns a sealed session and transaction bytes into a composite
// signature. There is no refresh path: any session failure means a fresh
// login.
type Signer struct {
	sealer        *seal.Sealer
	maxSessionAge seal.UnsealOptions
}

func NewSigner(sealer *seal.Sealer, maxAge seal.UnsealOptions) *Signer {
	return &Signer{sealer: sealer, maxSessionAge: maxAge}
}

// ResolveSession unseals and decodes a session token, enforcing both the
// embedded expiry and the configured maximum age.
func (s *Signer) ResolveSession(sealedSession string) (*SessionData, error) {
	if sealedSession == "" {
		return nil, ErrSessionDataMissing
	}
	payload, err := s.sealer.Unseal(sealedSession, s.maxSessionAge)
	if err != nil {
		return nil, err
	}
	var data SessionData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionDataInvalid, err)
	}
	if data.ZkProof == nil || data.EphemeralPrivateKey == "" {
		return nil, ErrSessionDataInvalid
	}
	return &data, nil
}

// SignTransaction signs transaction bytes with the session's ephemeral key
// and combines the result with the proof and address seed.
func (s *Signer) SignTransaction(data *SessionData, txBytes []byte) (*CompositeSignature, error) {
	if _, ok := new(big.Int).SetString(data.AddressSeed, 10); !ok {
		return nil, fmt.Errorf("%w: malformed address seed", ErrSessionDataInvalid)
	}

	ephemeralKey, err := DecodePrivateKey(data.EphemeralPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionDataInvalid, err)
	}

	h := blake3.New()
	h.Write(transactionIntent)
	h.Write(txBytes)
	digest := h.Sum(nil)

	signature := ed25519.Sign(ephemeralKey, digest)
	signatures.Inc()

	return &CompositeSignature{
		Proof:         data.ZkProof,
		AddressSeed:   data.AddressSeed,
		MaxEpoch:      data.MaxEpoch,
		UserSignature: signature,
	}, nil
}
