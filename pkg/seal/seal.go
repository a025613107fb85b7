// Package seal issues and opens encrypted, expiring session tokens.
//
// A sealed token is a compact JWE (RSA-OAEP-256 + A256GCM) whose plaintext
// is a CBOR envelope carrying the caller's data together with issued-at and
// expires-at timestamps. The timestamps live inside the ciphertext, so expiry
// holds even if the transport-level expiry (e.g. a cookie max-age) is
// stripped or the token is replayed through another channel.
//
// Sealing needs only the public key; unsealing needs the private key. This
// lets any process issue sessions while verification stays confined to the
// trusted backend.
package seal

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwe"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

var (
	// ErrTokenInvalid covers tampered ciphertext, a wrong key and garbage input.
	ErrTokenInvalid       = errors.New("sealed token invalid")
	ErrTokenExpired       = errors.New("sealed token expired")
	ErrTokenMissingExpiry = errors.New("sealed token missing expiry")
	ErrTokenTooOld        = errors.New("sealed token too old")
	ErrNoSealingKey       = errors.New("no sealing key configured")
	ErrNoUnsealingKey     = errors.New("no unsealing key configured")
)

type envelope struct {
	Data      []byte `cbor:"data"`
	IssuedAt  int64  `cbor:"iat"`
	ExpiresAt int64  `cbor:"exp,omitempty"`
}

type UnsealOptions struct {
	// ValidateExpiration enables the embedded iat/exp checks.
	ValidateExpiration bool
	// MaxAge, when positive, rejects tokens issued before now-MaxAge even if
	// their embedded expiry is still in the future.
	MaxAge time.Duration
}

// Sealer seals and unseals session tokens. Either key half may be nil on a
// given instance; the corresponding operation then fails.
type Sealer struct {
	encKey jwk.Key // RSA public key
	decKey jwk.Key // RSA private key
	now    func() time.Time
}

type Option func(*Sealer) error

func WithEncryptionKey(key jwk.Key) Option {
	return func(s *Sealer) error {
		s.encKey = key
		return nil
	}
}

func WithDecryptionKey(key jwk.Key) Option {
	return func(s *Sealer) error {
		s.decKey = key
		pub, err := key.PublicKey()
		if err != nil {
			return fmt.Errorf("unable to derive public key: %w", err)
		}
		if s.encKey == nil {
			s.encKey = pub
		}
		return nil
	}
}

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sealer) error {
		s.now = now
		return nil
	}
}

func NewSealer(opts ...Option) (*Sealer, error) {
	s := &Sealer{
		now: time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.encKey == nil && s.decKey == nil {
		return nil, ErrNoSealingKey
	}
	return s, nil
}

// Seal encrypts data into an opaque token that expires after ttl.
func (s *Sealer) Seal(data []byte, ttl time.Duration) (string, error) {
	if s.encKey == nil {
		return "", ErrNoSealingKey
	}
	now := s.now()
	plaintext, err := cbor.Marshal(envelope{
		Data:      data,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("unable to encode envelope: %w", err)
	}
	token, err := jwe.Encrypt(plaintext,
		jwe.WithKey(jwa.RSA_OAEP_256, s.encKey),
		jwe.WithContentEncryption(jwa.A256GCM),
	)
	if err != nil {
		return "", fmt.Errorf("unable to encrypt envelope: %w", err)
	}
	return string(token), nil
}

// Unseal decrypts a token and returns the original data. With
// opts.ValidateExpiration, the embedded timestamps are enforced.
func (s *Sealer) Unseal(token string, opts UnsealOptions) ([]byte, error) {
	if s.decKey == nil {
		return nil, ErrNoUnsealingKey
	}
	plaintext, err := jwe.Decrypt([]byte(token), jwe.WithKey(jwa.RSA_OAEP_256, s.decKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTokenInvalid, err)
	}
	var env envelope
	if err := cbor.Unmarshal(plaintext, &env); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTokenInvalid, err)
	}

	if opts.ValidateExpiration {
		now := s.now().Unix()
		if env.ExpiresAt == 0 {
			return nil, ErrTokenMissingExpiry
		}
		if env.ExpiresAt < now {
			return nil, ErrTokenExpired
		}
		if opts.MaxAge > 0 && env.IssuedAt < now-int64(opts.MaxAge.Seconds()) {
			return nil, ErrTokenTooOld
		}
	}

	return env.Data, nil
}
