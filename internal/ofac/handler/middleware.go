package handler

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	dErrors "ofactrack/pkg/domain-errors"
	"ofactrack/pkg/httputil"
)

// AdminAuth guards mutating endpoints. Two schemes are supported: a static
// admin token checked against a bcrypt hash, or an HS256 JWT carrying
// role=admin. The static token takes precedence when both are configured;
// with neither configured every request is rejected, so the run endpoint is
// never accidentally open.
type AdminAuth struct {
	tokenHash  string
	signingKey []byte
	logger     *zap.Logger
}

// NewAdminAuth builds the guard from the configured credentials.
func NewAdminAuth(tokenHash string, signingKey string, logger *zap.Logger) *AdminAuth {
	return &AdminAuth{
		tokenHash:  tokenHash,
		signingKey: []byte(signingKey),
		logger:     logger,
	}
}

// Require wraps a handler with the admin check.
func (a *AdminAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
			return
		}
		if !a.authorized(token) {
			a.logger.Warn("admin auth rejected", zap.String("path", r.URL.Path))
			httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Error: "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *AdminAuth) authorized(token string) bool {
	if a.tokenHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(a.tokenHash), []byte(token)) == nil
	}
	if len(a.signingKey) == 0 {
		return false
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.Newf(dErrors.CodeBadInput, "unexpected signing method %v", t.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return false
	}
	role, _ := claims["role"].(string)
	return role == "admin"
}
