package seal

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// KeyFromBase64PEM parses an RSA key from a base64-wrapped PEM string, the
// form the key pair is distributed in via environment variables.
func KeyFromBase64PEM(encoded string) (jwk.Key, error) {
	pemBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("unable to decode key: %w", err)
	}
	key, err := jwk.ParseKey(pemBytes, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("unable to parse key: %w", err)
	}
	return key, nil
}

// RandomKey generates a throwaway RSA key pair. Sessions sealed with it do
// not survive a restart, so it is only suitable for development.
func RandomKey() (jwk.Key, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("could not generate key: %w", err)
	}
	key, err := jwk.FromRaw(privateKey)
	if err != nil {
		return nil, fmt.Errorf("could not create jwk from key: %w", err)
	}
	return key, nil
}

// WithDecryptionKeyFromEnv loads the private key from a base64 PEM value,
// falling back to a random key when the value is empty.
func WithDecryptionKeyFromEnv(encoded string) Option {
	return func(s *Sealer) error {
		if encoded == "" {
			slog.Warn("No sealing key configured, generating a throwaway key pair")
			key, err := RandomKey()
			if err != nil {
				return err
			}
			return WithDecryptionKey(key)(s)
		}
		key, err := KeyFromBase64PEM(encoded)
		if err != nil {
			return err
		}
		return WithDecryptionKey(key)(s)
	}
}
