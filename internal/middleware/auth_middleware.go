package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/qcom/otpauth/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

type contextKey string

const claimContextKey contextKey = "claim"

// Authenticator verifies an access token and returns the identity it carries.
type Authenticator interface {
	Authenticate(accessToken string) (*models.IdentityClaim, error)
}

type AuthMiddleware struct {
	auth   Authenticator
	logger *logrus.Logger
}

func NewAuthMiddleware(auth Authenticator, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		auth:   auth,
		logger: logger,
	}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claim, err := m.auth.Authenticate(AccessToken(r))
		if err != nil {
			if !errors.Is(err, models.ErrUnauthorized) {
				m.logger.WithError(err).Error("Failed to authenticate request")
			}
			respondUnauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), claimContextKey, claim)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessToken returns the access token from the access_token cookie, or
// from a Bearer Authorization header when no cookie is set.
func AccessToken(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}

	authHeader := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// ClaimFromContext returns the identity stored by RequireAuth.
func ClaimFromContext(ctx context.Context) (*models.IdentityClaim, bool) {
	claim, ok := ctx.Value(claimContextKey).(*models.IdentityClaim)
	return claim, ok
}

func respondUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {
			"code":    "UNAUTHORIZED",
			"message": "Invalid or expired token",
		},
	})
}
