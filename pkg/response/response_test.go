package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "bizconnect/pkg/errors"
	"bizconnect/pkg/utils"
)

func newContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorTranslatesAppError(t *testing.T) {
	c, rec := newContext()

	err := fmt.Errorf("wrapped: %w", apperrors.Forbidden("You do not own this conversation", nil))
	require.NoError(t, Error(c, err))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decode(t, rec)
	assert.False(t, body.Success)
	assert.Equal(t, apperrors.CodeForbidden, body.Error.Code)
}

func TestErrorSetsRetryAfter(t *testing.T) {
	c, rec := newContext()

	require.NoError(t, Error(c, apperrors.TooManyRequests("slow down", 2400*time.Millisecond)))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
}

func TestErrorHidesUnknownErrors(t *testing.T) {
	c, rec := newContext()

	require.NoError(t, Error(c, fmt.Errorf("pq: connection refused")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, apperrors.CodeInternal, body.Error.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestPaginated(t *testing.T) {
	c, rec := newContext()

	require.NoError(t, Paginated(c, []string{"a", "b"}, utils.NewPagination(1, 2, 5)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_pages":3`)
	assert.Contains(t, rec.Body.String(), `"has_next":true`)
}

func TestErrorTranslatesEchoHTTPError(t *testing.T) {
	c, rec := newContext()

	require.NoError(t, Error(c, echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is required")))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, apperrors.CodeUnauthorized, body.Error.Code)
	assert.Equal(t, "Authorization header is required", body.Error.Message)
}
