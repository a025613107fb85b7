// Package api exposes the zkLogin pipeline over HTTP. The sealed session
// travels as an HTTP-only cookie; the core packages never see cookie
// mechanics.
package api

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sprinkle-app/sprinkle-go/pkg/seal"
	"github.com/sprinkle-app/sprinkle-go/pkg/zklogin"
)

const CookieName = "zkLoginJWE"

// Fixed user-facing messages. Which validation step failed is logged
// server-side only.
const (
	msgSignInFailed   = "Sign in failed"
	msgSessionMissing = "Session data not found. Please try signing in again."
	msgSessionInvalid = "Invalid session data. Please try signing in again."
	msgSessionExpired = "Session expired. Please sign in again."
)

type API struct {
	generator     *zklogin.SessionGenerator
	authenticator *zklogin.Authenticator
	signer        *zklogin.Signer
	provider      *zklogin.ProviderConfig
	attempts      *attemptRegistry
	secureCookies bool
}

func NewAPI(generator *zklogin.SessionGenerator, authenticator *zklogin.Authenticator, signer *zklogin.Signer, provider *zklogin.ProviderConfig) *API {
	return &API{
		generator:     generator,
		authenticator: authenticator,
		signer:        signer,
		provider:      provider,
		attempts:      newAttemptRegistry(2 * time.Minute),
		secureCookies: true,
	}
}

// WithInsecureCookies drops the Secure cookie attribute for local
// development over plain HTTP.
func (a *API) WithInsecureCookies() *API {
	a.secureCookies = false
	return a
}

func (a *API) MountRoutes(group *echo.Group) {
	group.GET("/begin", a.BeginSession)
	group.GET("/callback", a.Callback)
	group.POST("/authenticate", a.Authenticate)
	group.GET("/session", a.GetSession)
	group.DELETE("/session", a.DeleteSession)
	group.POST("/sign", a.Sign)
}

type beginResponse struct {
	zklogin.SessionParams
	AuthURL string `json:"authUrl"`
}

func (a *API) BeginSession(c echo.Context) error {
	params, err := a.generator.BeginSession(c.Request().Context())
	if err != nil {
		slog.Error("Unable to begin login session", "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Cannot start login, retry")
	}
	return c.JSON(http.StatusOK, beginResponse{
		SessionParams: *params,
		AuthURL:       a.provider.AuthURL(params.Nonce),
	})
}

func (a *API) Authenticate(c echo.Context) error {
	var req zklogin.AuthRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgSessionInvalid)
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgSessionInvalid)
	}

	// Duplicate callback deliveries (browser back button, double redirect)
	// replay the same nonce. The first result is returned again instead of
	// paying for a second proof.
	if cached, inFlight := a.attempts.begin(req.Nonce); cached != nil {
		return a.respondAuthenticated(c, cached)
	} else if inFlight {
		return echo.NewHTTPError(http.StatusConflict, msgSignInFailed)
	}

	result, err := a.authenticator.Authenticate(c.Request().Context(), &req)
	if err != nil {
		a.attempts.abandon(req.Nonce)
		slog.Error("Authentication failed", "error", err)
		switch {
		case errors.Is(err, zklogin.ErrNonceMismatch),
			errors.Is(err, zklogin.ErrSessionDataInvalid):
			return echo.NewHTTPError(http.StatusBadRequest, msgSignInFailed)
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, msgSignInFailed)
		}
	}
	a.attempts.complete(req.Nonce, result)

	return a.respondAuthenticated(c, result)
}

func (a *API) respondAuthenticated(c echo.Context, result *zklogin.AuthResult) error {
	ttl := a.authenticator.SessionTTL()
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    result.SealedSession,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
	})
	return c.JSON(http.StatusOK, map[string]string{
		"zkLoginAddress": result.Address,
	})
}

type sessionResponse struct {
	ZkProof     *zklogin.Proof `json:"zkProof"`
	AddressSeed string         `json:"addressSeed"`
	Nonce       string         `json:"nonce"`
	MaxEpoch    uint64         `json:"maxEpoch"`
	Randomness  string         `json:"randomness"`
}

func (a *API) resolveCookie(c echo.Context) (*zklogin.SessionData, error) {
	cookie, err := c.Cookie(CookieName)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, msgSessionMissing)
	}
	data, err := a.signer.ResolveSession(cookie.Value)
	if err != nil {
		slog.Warn("Unable to resolve session cookie", "error", err)
		switch {
		case errors.Is(err, seal.ErrTokenExpired), errors.Is(err, seal.ErrTokenTooOld):
			return nil, echo.NewHTTPError(http.StatusUnauthorized, msgSessionExpired)
		case errors.Is(err, zklogin.ErrSessionDataMissing):
			return nil, echo.NewHTTPError(http.StatusUnauthorized, msgSessionMissing)
		default:
			return nil, echo.NewHTTPError(http.StatusUnauthorized, msgSessionInvalid)
		}
	}
	return data, nil
}

// GetSession returns the non-secret parts of the current session. The
// ephemeral private key never leaves the sealed cookie.
func (a *API) GetSession(c echo.Context) error {
	data, err := a.resolveCookie(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse{
		ZkProof:     data.ZkProof,
		AddressSeed: data.AddressSeed,
		Nonce:       data.Nonce,
		MaxEpoch:    data.MaxEpoch,
		Randomness:  data.Randomness,
	})
}

func (a *API) DeleteSession(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})
	return c.NoContent(http.StatusNoContent)
}

type signRequest struct {
	TransactionBytes string `json:"transactionBytes" validate:"required,base64"`
}

type signResponse struct {
	Signature string `json:"signature"`
}

func (a *API) Sign(c echo.Context) error {
	var req signRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request")
	}

	data, err := a.resolveCookie(c)
	if err != nil {
		return err
	}

	txBytes, err := base64.StdEncoding.DecodeString(req.TransactionBytes)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request")
	}

	signature, err := a.signer.SignTransaction(data, txBytes)
	if err != nil {
		slog.Error("Unable to sign transaction", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Signing failed")
	}
	encoded, err := signature.Encode()
	if err != nil {
		slog.Error("Unable to encode signature", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Signing failed")
	}
	return c.JSON(http.StatusOK, signResponse{Signature: encoded})
}
