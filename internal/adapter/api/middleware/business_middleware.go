package middleware

import (
	"github.com/labstack/echo/v4"

	"bizconnect/pkg/errors"
	"bizconnect/pkg/response"
)

// BusinessOnly admits principals that speak for a business. Must run after Authenticate.
func BusinessOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		principal, ok := PrincipalFrom(c)
		if !ok {
			return response.Error(c, errors.Unauthorized("Authentication required", nil))
		}

		if !principal.ActsAsBusiness() {
			return response.Error(c, errors.Forbidden("Business account required", nil))
		}

		return next(c)
	}
}
