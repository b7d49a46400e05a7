package middleware

import (
	"github.com/labstack/echo/v4"

	"bizconnect/internal/infrastructure/ratelimit"
	"bizconnect/pkg/errors"
	"bizconnect/pkg/logger"
	"bizconnect/pkg/response"
)

// RateLimit throttles requests per client IP. Limiter failures other than a rejection
// let the request through so a Redis outage does not take the API down.
func RateLimit(limiter ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			if err := limiter.Admit(c.Request().Context(), "ip:"+ip); err != nil {
				if errors.Is(err, errors.CodeTooManyRequests) {
					logger.Warn("RATE LIMIT: Blocked request from IP %s", ip)
					return response.Error(c, err)
				}
				logger.Error("RATE LIMIT: limiter unavailable, allowing %s: %v", ip, err)
			}

			return next(c)
		}
	}
}
