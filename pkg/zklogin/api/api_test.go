package api_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sprinkle-app/sprinkle-go/pkg/seal"
	"github.com/sprinkle-app/sprinkle-go/pkg/zklogin"
	zkloginapi "github.com/sprinkle-app/sprinkle-go/pkg/zklogin/api"
)

const cannedProofJSON = `{
	"proofPoints": {
		"a": ["1", "2", "1"],
		"b": [["3", "4"], ["5", "6"], ["1", "0"]],
		"c": ["7", "8", "1"]
	},
	"issBase64Details": {"value": "aXNzdmFsdWU", "indexMod4": 2},
	"headerBase64": "aGVhZGVy"
}`

type testValidator struct {
	validate *validator.Validate
}

func (v *testValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

type fakeEpochSource struct{}

func (fakeEpochSource) GetCurrentEpoch(ctx context.Context) (uint64, error) {
	return 100, nil
}

func makeIDToken(t *testing.T, nonce string) string {
	t.Helper()
	header, _ := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	payload, _ := json.Marshal(map[string]interface{}{
		"iss":   "https://accounts.example.com",
		"aud":   "client1",
		"sub":   "user42",
		"nonce": nonce,
	})
	return base64.RawURLEncoding.EncodeToString(header) + "." +
		base64.RawURLEncoding.EncodeToString(payload) + "."
}

type testEnv struct {
	echo        *echo.Echo
	proverCalls *atomic.Int64
	session     *zklogin.SessionParams
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	var proverCalls atomic.Int64
	prover := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proverCalls.Add(1)
		w.Write([]byte(cannedProofJSON))
	}))
	t.Cleanup(prover.Close)

	saltDeriver, err := zklogin.NewSaltDeriver("seed")
	if err != nil {
		t.Fatal(err)
	}
	key, err := seal.RandomKey()
	if err != nil {
		t.Fatal(err)
	}
	sealer, err := seal.NewSealer(seal.WithDecryptionKey(key))
	if err != nil {
		t.Fatal(err)
	}

	generator := zklogin.NewSessionGenerator(fakeEpochSource{})
	authenticator := zklogin.NewAuthenticator(saltDeriver, zklogin.NewProverClient(prover.URL, "backend-key"), sealer, time.Hour)
	signer := zklogin.NewSigner(sealer, seal.UnsealOptions{ValidateExpiration: true, MaxAge: time.Hour})
	provider := &zklogin.ProviderConfig{
		AuthEndpoint: "https://accounts.example.com/auth",
		ClientID:     "client1",
		RedirectURI:  "https://app.example.com/zklogin/callback",
	}

	e := echo.New()
	e.Validator = &testValidator{validate: validator.New()}
	zkloginapi.NewAPI(generator, authenticator, signer, provider).MountRoutes(e.Group("/zklogin"))

	session, err := generator.BeginSession(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	return &testEnv{echo: e, proverCalls: &proverCalls, session: session}
}

func (env *testEnv) authenticate(t *testing.T, nonce, tokenNonce string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(zklogin.AuthRequest{
		IDToken:             makeIDToken(t, tokenNonce),
		Nonce:               nonce,
		EphemeralPrivateKey: env.session.EphemeralPrivateKey,
		MaxEpoch:            env.session.MaxEpoch,
		Randomness:          env.session.Randomness,
	})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/zklogin/authenticate", strings.NewReader(string(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == zkloginapi.CookieName {
			return cookie
		}
	}
	return nil
}

func TestAuthenticateSetsCookie(t *testing.T) {
	env := newTestEnv(t)

	rec := env.authenticate(t, env.session.Nonce, env.session.Nonce)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["zkLoginAddress"] == "" {
		t.Error("response has no address")
	}

	cookie := sessionCookie(rec)
	if cookie == nil {
		t.Fatal("no session cookie set")
	}
	if !cookie.HttpOnly || cookie.Path != "/" || cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie attributes wrong: %+v", cookie)
	}
	if cookie.MaxAge != int(time.Hour.Seconds()) {
		t.Errorf("cookie max-age = %d, want %d", cookie.MaxAge, int(time.Hour.Seconds()))
	}
}

func TestAuthenticateNonceMismatchNoCookie(t *testing.T) {
	env := newTestEnv(t)

	rec := env.authenticate(t, "xyz", "abc")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "nonce") {
		t.Error("error response leaks the failed validation step")
	}
	if sessionCookie(rec) != nil {
		t.Error("cookie must not be set on failure")
	}
	if env.proverCalls.Load() != 0 {
		t.Error("prover must not be called on nonce mismatch")
	}
}

func TestAuthenticateDuplicateCallback(t *testing.T) {
	env := newTestEnv(t)

	first := env.authenticate(t, env.session.Nonce, env.session.Nonce)
	if first.Code != http.StatusOK {
		t.Fatalf("first attempt failed: %d", first.Code)
	}
	second := env.authenticate(t, env.session.Nonce, env.session.Nonce)
	if second.Code != http.StatusOK {
		t.Fatalf("duplicate attempt failed: %d", second.Code)
	}

	if got := env.proverCalls.Load(); got != 1 {
		t.Errorf("prover called %d times for duplicate callbacks, want 1", got)
	}

	var firstResp, secondResp map[string]string
	json.Unmarshal(first.Body.Bytes(), &firstResp)
	json.Unmarshal(second.Body.Bytes(), &secondResp)
	if firstResp["zkLoginAddress"] != secondResp["zkLoginAddress"] {
		t.Error("duplicate callback returned a different address")
	}
}

func TestGetSessionOmitsPrivateKey(t *testing.T) {
	env := newTestEnv(t)

	auth := env.authenticate(t, env.session.Nonce, env.session.Nonce)
	cookie := sessionCookie(auth)
	if cookie == nil {
		t.Fatal("no cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/zklogin/session", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "ephemeralPrivateKey") {
		t.Error("session response leaks the ephemeral private key")
	}
	if !strings.Contains(rec.Body.String(), "addressSeed") {
		t.Error("session response has no address seed")
	}
}

func TestGetSessionWithoutCookie(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/zklogin/session", nil)
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSignEndpoint(t *testing.T) {
	env := newTestEnv(t)

	auth := env.authenticate(t, env.session.Nonce, env.session.Nonce)
	cookie := sessionCookie(auth)
	if cookie == nil {
		t.Fatal("no cookie")
	}

	body, _ := json.Marshal(map[string]string{
		"transactionBytes": base64.StdEncoding.EncodeToString([]byte("tx-bytes")),
	})
	req := httptest.NewRequest(http.MethodPost, "/zklogin/sign", strings.NewReader(string(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	raw, err := base64.StdEncoding.DecodeString(resp["signature"])
	if err != nil {
		t.Fatal("signature is not base64: ", err)
	}
	if len(raw) == 0 || raw[0] != 0x05 {
		t.Error("signature missing the zkLogin scheme flag")
	}
}

func TestBeginEndpoint(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/zklogin/begin", nil)
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		zklogin.SessionParams
		AuthURL string `json:"authUrl"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Nonce == "" || resp.MaxEpoch != 102 {
		t.Errorf("unexpected session params: %+v", resp.SessionParams)
	}
	if !strings.Contains(resp.AuthURL, "nonce="+resp.Nonce) {
		t.Error("auth url does not carry the session nonce")
	}
}

func TestExtractIDToken(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://app.example.com/zklogin/callback#id_token=tok-frag", "tok-frag"},
		{"https://app.example.com/zklogin/callback?id_token=tok-query", "tok-query"},
		{"https://app.example.com/zklogin/callback#state=x&id_token=tok-both", "tok-both"},
		{"https://app.example.com/zklogin/callback", ""},
	}
	for _, tc := range cases {
		got, err := zkloginapi.ExtractIDToken(tc.url)
		if err != nil {
			t.Errorf("%s: %v", tc.url, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestDeleteSession(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodDelete, "/zklogin/session", nil)
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	cookie := sessionCookie(rec)
	if cookie == nil {
		t.Fatal("no expiring cookie set")
	}
	if cookie.MaxAge >= 0 {
		t.Error("cookie must be expired")
	}
}
