package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"bizconnect/internal/domain/entity"
	"bizconnect/pkg/errors"
	"bizconnect/pkg/logger"
	"bizconnect/pkg/response"
)

const (
	ContextKeyUID       = "uid"
	ContextKeyPrincipal = "principal"
)

// TokenVerifier turns a bearer token into the authenticated principal.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (entity.Principal, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return response.Error(c, errors.Unauthorized("Authorization header is required", nil))
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return response.Error(c, errors.Unauthorized("Invalid authorization format", nil))
		}

		principal, err := m.verifier.VerifyToken(c.Request().Context(), parts[1])
		if err != nil || principal.UserID == "" {
			logger.Debug("Authenticate: rejected token: %v", err)
			return response.Error(c, errors.Unauthorized("Invalid or expired token", err))
		}

		c.Set(ContextKeyUID, principal.UserID)
		c.Set(ContextKeyPrincipal, principal)

		return next(c)
	}
}

// PrincipalFrom returns the principal stored by Authenticate.
func PrincipalFrom(c echo.Context) (entity.Principal, bool) {
	principal, ok := c.Get(ContextKeyPrincipal).(entity.Principal)
	return principal, ok
}
