package zklogin

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/zeebo/blake3"
)

// zkLoginScheme is the signature scheme flag for zkLogin keys, prefixed to
// address preimages and serialized signatures.
const zkLoginScheme byte = 0x05

// AddressSeed commits to (salt, claim, aud) as a 128-bit integer. It is
// embedded in every composite signature so a verifier can recompute the
// signer's address without ever learning the salt.
func AddressSeed(salt *big.Int, claimName, claimValue, aud string) *big.Int {
	h := blake3.New()
	h.Write(salt.Bytes())
	h.Write([]byte{0})
	h.Write([]byte(claimName))
	h.Write([]byte{0})
	h.Write([]byte(claimValue))
	h.Write([]byte{0})
	h.Write([]byte(aud))
	sum := h.Sum(nil)
	return new(big.Int).SetBytes(sum[:16])
}

// DeriveAddress computes the user's blockchain address from the ID token and
// salt. Pure; the same identity maps to the same address for as long as the
// master seed behind the salt is unchanged.
func DeriveAddress(idToken string, salt *big.Int) (string, error) {
	iss, aud, sub, _, err := decodeIdentityClaims(idToken)
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", fmt.Errorf("id token has no subject claim")
	}

	seed := AddressSeed(salt, "sub", sub, aud)
	seedBytes := seed.FillBytes(make([]byte, 32))

	h := blake3.New()
	h.Write([]byte{zkLoginScheme})
	h.Write([]byte{byte(len(iss))})
	h.Write([]byte(iss))
	h.Write(seedBytes)
	sum := h.Sum(nil)

	return "0x" + hex.EncodeToString(sum), nil
}
