package zklogin_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

// makeIDToken builds a synthetic unsigned ID token. Signature verification
// is delegated to the prover, so the pipeline under test only ever decodes
// the payload segment.
func makeIDToken(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	header, err := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	if err != nil {
		t.Fatal(err)
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}
	return base64.RawURLEncoding.EncodeToString(header) + "." +
		base64.RawURLEncoding.EncodeToString(payload) + "."
}

func defaultClaims(nonce string) map[string]interface{} {
	return map[string]interface{}{
		"iss":   "https://accounts.example.com",
		"aud":   "client1",
		"sub":   "user42",
		"nonce": nonce,
	}
}
