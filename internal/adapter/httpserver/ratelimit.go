package httpserver

import (
	"log/slog"
	"math"
	"net/http"
	"time"

	apperrors "github.com/hanzzx311/skyport/internal/platform/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const (
	rateLimiterExpiry = 5 * time.Minute

	// postLimitMessage is the fixed body of a POST rejected by the window limiter.
	postLimitMessage = "Too many requests"
)

func clientIP(c echo.Context) (string, error) {
	return c.RealIP(), nil
}

// newRateLimiter is a per-IP token bucket for endpoints that need a tighter
// budget than the global POST window, such as password login.
func (s *Server) newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	var retryAfter time.Duration
	if ratePerSecond > 0 {
		retryAfter = time.Duration(math.Round(float64(time.Second) / ratePerSecond))
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: clientIP,
		Store:               store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			s.countRejection("login")
			return apperrors.RateLimitedError("rate limit exceeded", retryAfter)
		},
	})
}

// newPostRateLimiter applies the fixed-window store to POST requests only;
// every other method bypasses it.
func (s *Server) newPostRateLimiter() echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().Method != http.MethodPost
		},
		IdentifierExtractor: clientIP,
		Store:               failOpen{inner: s.postLimit},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			s.countRejection("post")
			return c.String(http.StatusTooManyRequests, postLimitMessage)
		},
	})
}

// failOpen lets requests through when the backing store returns an error.
type failOpen struct {
	inner middleware.RateLimiterStore
}

func (f failOpen) Allow(identifier string) (bool, error) {
	ok, err := f.inner.Allow(identifier)
	if err != nil {
		slog.Warn("Rate limit store unavailable, allowing request", "error", err)
		return true, nil
	}
	return ok, nil
}
