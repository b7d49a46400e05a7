package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"bizconnect/internal/infrastructure/metrics"
)

// Metrics counts requests by route template, so ids in paths do not explode cardinality.
func Metrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			status := c.Response().Status
			if err != nil {
				if httpErr, ok := err.(*echo.HTTPError); ok {
					status = httpErr.Code
				}
			}
			m.ObserveRequest(c.Request().Method, c.Path(), strconv.Itoa(status))
			return err
		}
	}
}
