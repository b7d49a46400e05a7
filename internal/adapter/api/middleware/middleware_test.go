package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"bizconnect/internal/domain/entity"
	"bizconnect/internal/infrastructure/metrics"
	"bizconnect/internal/infrastructure/ratelimit"
	apperrors "bizconnect/pkg/errors"
)

type staticVerifier map[string]entity.Principal

func (v staticVerifier) VerifyToken(ctx context.Context, token string) (entity.Principal, error) {
	p, ok := v[token]
	if !ok {
		return entity.Principal{}, errors.New("unknown token")
	}
	return p, nil
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate(t *testing.T) {
	e := echo.New()
	auth := NewAuthMiddleware(staticVerifier{
		"user-token": {UserID: "user-1", Role: entity.RoleUser},
	})
	e.GET("/me", func(c echo.Context) error {
		p, ok := PrincipalFrom(c)
		assert.True(t, ok)
		assert.Equal(t, "user-1", c.Get(ContextKeyUID))
		return c.String(http.StatusOK, p.UserID)
	}, auth.Authenticate)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token user-token")
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec = serve(e, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), apperrors.CodeUnauthorized)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	rec = serve(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())
}

func TestBusinessOnly(t *testing.T) {
	e := echo.New()
	auth := NewAuthMiddleware(staticVerifier{
		"user-token": {UserID: "user-1", Role: entity.RoleUser},
		"biz-token":  {UserID: "owner-1", Role: entity.RoleBusiness, BusinessID: "biz-1"},
	})
	e.GET("/inbox", okHandler, auth.Authenticate, BusinessOnly)

	req := httptest.NewRequest(http.MethodGet, "/inbox", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	assert.Equal(t, http.StatusForbidden, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/inbox", nil)
	req.Header.Set("Authorization", "Bearer biz-token")
	assert.Equal(t, http.StatusOK, serve(e, req).Code)
}

func TestRateLimit(t *testing.T) {
	e := echo.New()
	e.GET("/", okHandler, RateLimit(ratelimit.NewRateLimiter(2, time.Minute)))

	newReq := func(ip string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		return req
	}

	assert.Equal(t, http.StatusOK, serve(e, newReq("10.0.0.1")).Code)
	assert.Equal(t, http.StatusOK, serve(e, newReq("10.0.0.1")).Code)
	rec := serve(e, newReq("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serve(e, newReq("10.0.0.2")).Code)
}

type failingLimiter struct{}

func (failingLimiter) Admit(ctx context.Context, key string) error {
	return apperrors.Unavailable("Rate limiter unavailable", errors.New("redis down"))
}

func TestRateLimit_FailsOpen(t *testing.T) {
	e := echo.New()
	e.GET("/", okHandler, RateLimit(failingLimiter{}))

	assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
}

func TestMetrics(t *testing.T) {
	m := metrics.New()
	e := echo.New()
	e.Use(Metrics(m))
	e.GET("/v1/conversations/:id", okHandler)

	serve(e, httptest.NewRequest(http.MethodGet, "/v1/conversations/abc", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/v1/conversations/:id",status="200"} 1`)
}
