package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"relaychat/internal/core"
)

const principalKey = "relaychat.userID"

// IssueToken mints a signed HS256 token for the given user id. It exists for
// tooling and tests; production deployments typically mint tokens in the
// identity layer and only verify them here.
func IssueToken(userID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// jwtAuth verifies the Authorization bearer token and stores the subject
// claim in the request context as the acting principal. A user record is
// kept for every authenticated subject; that write is best-effort and never
// blocks the request.
func (s *Server) jwtAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c.Request())
			if raw == "" {
				return writeError(c, core.NewAuthenticationError("missing bearer token"))
			}
			sub, err := verifyToken(raw, s.cfg.JWTSecret)
			if err != nil {
				return writeError(c, core.NewAuthenticationError("invalid bearer token"))
			}
			if _, err := s.repo.EnsureUser(c.Request().Context(), sub); err != nil {
				slog.Error("failed to ensure user record", "external_id", sub, "error", err)
			}
			c.Set(principalKey, sub)
			return next(c)
		}
	}
}

func verifyToken(raw, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", jwt.ErrTokenInvalidSubject
	}
	return claims.Subject, nil
}

// principal returns the authenticated user id set by jwtAuth, or "" when the
// route is not behind authentication.
func principal(c echo.Context) string {
	if v, ok := c.Get(principalKey).(string); ok {
		return v
	}
	return ""
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
