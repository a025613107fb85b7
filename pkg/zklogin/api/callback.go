package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

// ExtractIDToken pulls the id_token from a callback URL. Providers deliver
// it either in the fragment (implicit flow default) or as a query parameter,
// depending on response_mode.
func ExtractIDToken(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if token := u.Query().Get("id_token"); token != "" {
		return token, nil
	}
	fragment, err := url.ParseQuery(strings.TrimPrefix(u.Fragment, "#"))
	if err != nil {
		return "", err
	}
	return fragment.Get("id_token"), nil
}

// Callback finishes the OAuth round trip. The ephemeral session material
// lives only in the browser's short-lived storage, so the server cannot
// complete the login by itself: this page picks up the id_token (fragment or
// query), joins it with the stored session params and posts the pair to the
// authenticate endpoint. The stored params are discarded after a single use.
func (a *API) Callback(c echo.Context) error {
	return c.HTML(http.StatusOK, callbackPage)
}

const callbackPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Signing you in…</title></head>
<body>
<p id="status">Signing you in…</p>
<script>
(function () {
  function fail(message) {
    document.getElementById("status").textContent = message;
    var link = document.createElement("a");
    link.href = "/login";
    link.textContent = "Back to login";
    document.body.appendChild(link);
  }

  var params = new URLSearchParams(window.location.hash.slice(1));
  var idToken = params.get("id_token") ||
    new URLSearchParams(window.location.search).get("id_token");
  if (!idToken) {
    fail("No ID token received");
    return;
  }

  var raw = sessionStorage.getItem("sprinkle-temp-zklogin");
  sessionStorage.removeItem("sprinkle-temp-zklogin");
  if (!raw) {
    fail("Session data not found. Please try signing in again.");
    return;
  }

  var session;
  try {
    session = JSON.parse(raw);
  } catch (e) {
    fail("Invalid session data. Please try signing in again.");
    return;
  }

  fetch("/zklogin/authenticate", {
    method: "POST",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify({
      idToken: idToken,
      nonce: session.nonce,
      ephemeralPrivateKey: session.ephemeralPrivateKey,
      maxEpoch: session.maxEpoch,
      randomness: session.randomness
    })
  }).then(function (resp) {
    if (!resp.ok) {
      fail("Sign in failed");
      return;
    }
    window.location.replace("/");
  }).catch(function () {
    fail("Sign in failed");
  });
})();
</script>
</body>
</html>`
