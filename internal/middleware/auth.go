// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/watchpost/watchpost/internal/models"
)

const ViewerIDKey contextKey = "viewer_id"

// ViewerClaims are the JWT claims Watchpost reads from a bearer token. The
// token only supplies a viewer identity; Watchpost performs no authorization.
type ViewerClaims struct {
	ViewerID string `json:"viewer_id"`
	jwt.RegisteredClaims
}

// ViewerIdentity validates a Bearer token when present and stores the viewer
// identity in the request context. With require false, unauthenticated
// requests pass through anonymously; a malformed or forged token is still
// rejected rather than silently ignored.
func ViewerIdentity(secret string, require bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				if require {
					respondAuthError(w, "missing Authorization header")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				respondAuthError(w, "Authorization header must use Bearer scheme")
				return
			}

			viewerID, err := parseViewerToken(token, secret)
			if err != nil {
				respondAuthError(w, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ViewerIDKey, viewerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetViewerID extracts the authenticated viewer identity from context.
// Returns empty string for anonymous requests.
func GetViewerID(ctx context.Context) string {
	if id, ok := ctx.Value(ViewerIDKey).(string); ok {
		return id
	}
	return ""
}

// IssueViewerToken signs a viewer identity token. Used by tests and by
// operators minting tokens for player clients.
func IssueViewerToken(viewerID, secret string, ttl time.Duration) (string, error) {
	claims := ViewerClaims{
		ViewerID: viewerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseViewerToken(tokenString, secret string) (string, error) {
	claims := &ViewerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.ViewerID == "" {
		return "", fmt.Errorf("token carries no viewer identity")
	}
	return claims.ViewerID, nil
}

func respondAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(models.APIResponse{
		Status: "error",
		Error: &models.APIError{
			Code:    "AUTHENTICATION_ERROR",
			Message: message,
		},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}
