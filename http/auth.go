package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

// HeaderClientID carries the client-chosen connection id used to correlate
// logs across reconnects.
const HeaderClientID = "X-Toft-Client-Id"

// HeaderAppKey carries the client application identifier used to scope
// session metrics.
const HeaderAppKey = "X-Toft-App-Key"

// GetBearerToken extracts the bearer token from an Authorization header.
func GetBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// GetClientID returns the client connection id from the request headers.
func GetClientID(r *http.Request) string {
	return r.Header.Get(HeaderClientID)
}

// GetAppKey returns the client application identifier from the request
// headers.
func GetAppKey(r *http.Request) string {
	return r.Header.Get(HeaderAppKey)
}

func verifySecret(secret string, r *http.Request) error {
	if secret == "" {
		return nil
	}

	token := GetBearerToken(r)
	if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		return errors.New("invalid auth token").
			WithType("http_unauthorized").
			WithTag("client_id", GetClientID(r))
	}
	return nil
}

// VerifyAuthToken returns a websocket handshake function that rejects
// connections whose bearer token does not match the shared secret. An empty
// secret disables authentication.
func VerifyAuthToken(secret string) func(*websocket.Config, *http.Request) error {
	return func(c *websocket.Config, r *http.Request) error {
		if err := verifySecret(secret, r); err != nil {
			logs.WithTag("client_id", GetClientID(r)).Error(err)
			return err
		}
		return nil
	}
}

// VerifyAuthTokenHandler guards an HTTP handler with the shared secret.
func VerifyAuthTokenHandler(secret string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := verifySecret(secret, r); err != nil {
			logs.WithTag("client_id", GetClientID(r)).Error(err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}
}
