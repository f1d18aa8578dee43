package api

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// minTokenLength is the sanity check applied in permissive mode when no
// verification key is configured.
const minTokenLength = 10

// Authenticator validates Bearer tokens on protected endpoints. With a
// configured RSA public key it fully verifies RS256 JWTs; without one it
// runs in permissive mode and only checks the token shape, matching
// development deployments where the userservice key is not mounted.
type Authenticator struct {
	publicKey *rsa.PublicKey
}

// NewAuthenticator loads the verification key from publicKeyPath. An
// empty path yields a permissive authenticator.
func NewAuthenticator(publicKeyPath string) (*Authenticator, error) {
	if publicKeyPath == "" {
		slog.Warn("no JWT public key configured, running with permissive auth")
		return &Authenticator{}, nil
	}

	pem, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWT public key: %w", err)
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT public key: %w", err)
	}

	slog.Info("JWT verification enabled", "key_path", publicKeyPath)
	return &Authenticator{publicKey: key}, nil
}

// Permissive reports whether full JWT verification is disabled.
func (a *Authenticator) Permissive() bool {
	return a.publicKey == nil
}

// verify checks one bearer token.
func (a *Authenticator) verify(token string) error {
	if a.publicKey == nil {
		if len(token) <= minTokenLength {
			return fmt.Errorf("malformed token")
		}
		return nil
	}

	_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.publicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))

	if err != nil {
		return fmt.Errorf("token verification failed: %w", err)
	}
	return nil
}

// Middleware enforces authentication and stashes the raw Authorization
// header in the context for downstream service calls.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := bearerToken(header)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "authorization token is required",
			})
			return
		}

		if err := a.verify(token); err != nil {
			slog.Warn("rejected request",
				"path", r.URL.Path,
				"error", err,
			)
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "invalid authorization token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), AuthHeaderKey, header)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
