package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"bizconnect/internal/domain/entity"
	"bizconnect/internal/infrastructure/jwtauth"
	"bizconnect/pkg/errors"
	"bizconnect/pkg/response"
)

const devTokenTTL = 24 * time.Hour

type DevTokenHandler struct {
	verifier *jwtauth.Verifier
}

func NewDevTokenHandler(verifier *jwtauth.Verifier) *DevTokenHandler {
	return &DevTokenHandler{
		verifier: verifier,
	}
}

type devTokenRequest struct {
	UserID     string `json:"user_id" validate:"required"`
	Role       string `json:"role" validate:"omitempty,oneof=user business"`
	BusinessID string `json:"business_id" validate:"required_if=Role business"`
}

// GenerateToken signs a development token for any principal. Only mounted with AUTH_MODE=jwt.
func (h *DevTokenHandler) GenerateToken(c echo.Context) error {
	var req devTokenRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	p := entity.Principal{
		UserID:     req.UserID,
		Role:       entity.RoleUser,
		BusinessID: req.BusinessID,
	}
	if req.Role == entity.RoleBusiness {
		p.Role = entity.RoleBusiness
	}

	token, expiresAt, err := h.verifier.Issue(p, devTokenTTL)
	if err != nil {
		return response.Error(c, errors.Internal("Failed to sign token", err))
	}

	return response.Success(c, map[string]interface{}{
		"token":      token,
		"expires_at": expiresAt,
		"principal":  p,
	})
}
