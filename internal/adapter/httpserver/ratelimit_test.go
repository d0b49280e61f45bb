package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hanzzx311/skyport/internal/platform/config"
	apperrors "github.com/hanzzx311/skyport/internal/platform/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRemoteAddr = "1.2.3.4:1234"

func serveLimited(e *echo.Echo, handler echo.HandlerFunc, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := ErrorHandlingMiddleware()(handler)(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestRateLimiterAllowsRequestsUnderLimit(t *testing.T) {
	srv := newTestServer(t, newMockApp())
	e := echo.New()
	mw := srv.newRateLimiter(10, 3) // 10 req/s, burst 3

	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for range 3 {
		rec := serveLimited(e, handler, testRemoteAddr)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiterBlocksExcessiveRequests(t *testing.T) {
	srv := newTestServer(t, newMockApp())
	e := echo.New()
	mw := srv.newRateLimiter(0.01, 1) // very low rate, burst 1

	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	rec := serveLimited(e, handler, testRemoteAddr)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serveLimited(e, handler, testRemoteAddr)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	assert.Equal(t, "100", rec.Header().Get("Retry-After"))

	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rate limit exceeded", resp.Error)
	assert.Equal(t, apperrors.TypeRateLimited, resp.Type)
	assert.Equal(t, 100, resp.RetryAfter)
}

func TestRateLimiterDifferentIPsAreIndependent(t *testing.T) {
	srv := newTestServer(t, newMockApp())
	e := echo.New()
	mw := srv.newRateLimiter(0.01, 1)

	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	assert.Equal(t, http.StatusOK, serveLimited(e, handler, testRemoteAddr).Code)
	assert.Equal(t, http.StatusOK, serveLimited(e, handler, "5.6.7.8:5678").Code)
	assert.Equal(t, http.StatusTooManyRequests, serveLimited(e, handler, testRemoteAddr).Code)
}

func postFrom(env *testEnv, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(url.Values{}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = remoteAddr
	return env.do(req)
}

func TestPostLimiter_ThirtyFirstPostRejected(t *testing.T) {
	env := newTestEnv(t, newMockApp())

	for i := range 30 {
		rec := postFrom(env, "/nowhere", testRemoteAddr)
		require.NotEqual(t, http.StatusTooManyRequests, rec.Code, "request %d", i+1)
	}

	rec := postFrom(env, "/nowhere", testRemoteAddr)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests", rec.Body.String())
}

func TestPostLimiter_WindowResets(t *testing.T) {
	env := newTestEnv(t, newMockApp())

	for range 31 {
		postFrom(env, "/nowhere", testRemoteAddr)
	}
	require.Equal(t, http.StatusTooManyRequests, postFrom(env, "/nowhere", testRemoteAddr).Code)

	env.clock.Advance(61 * time.Second)

	assert.NotEqual(t, http.StatusTooManyRequests, postFrom(env, "/nowhere", testRemoteAddr).Code)
}

func TestPostLimiter_GetsNeverLimited(t *testing.T) {
	env := newTestEnv(t, newMockApp())

	for range 40 {
		req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
		req.RemoteAddr = testRemoteAddr
		require.Equal(t, http.StatusOK, env.do(req).Code)
	}

	assert.NotEqual(t, http.StatusTooManyRequests, postFrom(env, "/nowhere", testRemoteAddr).Code)
}

func TestPostLimiter_ClientsAreIndependent(t *testing.T) {
	env := newTestEnv(t, newMockApp())

	for range 31 {
		postFrom(env, "/nowhere", testRemoteAddr)
	}
	require.Equal(t, http.StatusTooManyRequests, postFrom(env, "/nowhere", testRemoteAddr).Code)

	assert.NotEqual(t, http.StatusTooManyRequests, postFrom(env, "/nowhere", "9.9.9.9:1000").Code)
}

type brokenStore struct{}

func (brokenStore) Allow(string) (bool, error) {
	return false, errors.New("connection refused")
}

var _ middleware.RateLimiterStore = brokenStore{}

func TestPostLimiter_StoreErrorFailsOpen(t *testing.T) {
	env := newTestEnv(t, newMockApp(), func(_ *config.Config, d *Deps) {
		d.PostLimit = brokenStore{}
	})

	for range 40 {
		rec := postFrom(env, "/nowhere", testRemoteAddr)
		require.NotEqual(t, http.StatusTooManyRequests, rec.Code)
	}
}
