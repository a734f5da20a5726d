package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const playerIDKey contextKey = "playerID"

var errUnauthenticated = errors.New("unauthenticated")

// Identity validates HS256 player tokens. The player id is the sub claim.
type Identity struct {
	secret []byte
}

func NewIdentity(secret string) *Identity {
	return &Identity{secret: []byte(secret)}
}

func (i *Identity) PlayerFromToken(raw string) (string, error) {
	if raw == "" {
		return "", errUnauthenticated
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", errUnauthenticated, err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || !isValidPlayerID(sub) {
		return "", fmt.Errorf("%w: invalid subject", errUnauthenticated)
	}
	return sub, nil
}

func (i *Identity) IssueToken(playerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   playerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(i.secret)
}

// Middleware resolves the player from a bearer token or, for socket
// upgrades that cannot set headers, the token query parameter.
func (i *Identity) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		playerID, err := i.PlayerFromToken(bearerToken(r))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{OK: false, Error: "unauthorized"})
			return
		}
		ctx := context.WithValue(r.Context(), playerIDKey, playerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

func playerIDFrom(ctx context.Context) (string, bool) {
	playerID, ok := ctx.Value(playerIDKey).(string)
	return playerID, ok && playerID != ""
}

// requireServiceKey guards collaborator routes with a shared key.
func requireServiceKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-Service-Key")
			if key == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorResponse{OK: false, Error: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
