package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hanzzx311/skyport/internal/domain"
	"github.com/hanzzx311/skyport/internal/platform/correlation"
	apperrors "github.com/hanzzx311/skyport/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

const (
	// SessionName is the session cookie name.
	SessionName = "skyport.sid"

	langCookieName   = "lang"
	langCookieMaxAge = 90000 // seconds

	assetsPrefix = "/assets"
)

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.FromRequest(c.Request())
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlation.HeaderName, id)
		return next(c)
	}
}

func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			structuredErr := apperrors.AsStructuredError(err)
			logError(c, structuredErr)

			if secs := structuredErr.RetryAfterSeconds(); secs > 0 {
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
			}

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	if userID := c.Get(ctxKeyUserID); userID != nil {
		attrs = append(attrs, "user_id", userID)
	}

	ctx := c.Request().Context()
	switch err.Type {
	case apperrors.TypeValidation:
		slog.InfoContext(ctx, "Validation error", attrs...)
	case apperrors.TypeRateLimited:
		slog.InfoContext(ctx, "Rate limited", attrs...)
	case apperrors.TypeForbidden:
		slog.WarnContext(ctx, "Forbidden", attrs...)
	default:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	}
}

// sessionMiddleware loads the request's session and saves it just before the
// response header is written. Fresh sessions that never received a value are
// not persisted and set no cookie.
func (s *Server) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		session, err := s.sessionStore.Get(c.Request(), SessionName)
		if err != nil {
			return apperrors.InternalError("failed to load session", err)
		}
		c.Set(ctxKeySession, session)

		c.Response().Before(func() {
			if session.IsNew && len(session.Values) == 0 {
				return
			}
			if err := session.Save(c.Request(), c.Response().Writer); err != nil {
				slog.ErrorContext(c.Request().Context(), "Failed to save session", "error", err)
			}
		})

		return next(c)
	}
}

// loadUserMiddleware resolves the session's user. References to users that
// no longer exist are dropped from the session.
func (s *Server) loadUserMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		session := currentSession(c)
		if session == nil {
			return next(c)
		}

		raw, ok := session.Values[domain.SessionKeyUserID].(string)
		if !ok || raw == "" {
			return next(c)
		}

		userID, err := uuid.Parse(raw)
		if err != nil {
			delete(session.Values, domain.SessionKeyUserID)
			return next(c)
		}

		user, err := s.app.GetUserByID(c.Request().Context(), userID)
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			slog.WarnContext(c.Request().Context(), "Session references unknown user, dropping it", "user_id", userID)
			delete(session.Values, domain.SessionKeyUserID)
		case err != nil:
			return apperrors.InternalError("failed to load user", err)
		default:
			c.Set(ctxKeyUser, user)
			c.Set(ctxKeyUserID, user.ID)
			setLocal(c, "user", user)
		}

		return next(c)
	}
}

// translationMiddleware picks the request language from the lang cookie, then
// the session, then the default, and publishes its translation table.
func (s *Server) translationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var candidates []string
		if cookie, err := c.Cookie(langCookieName); err == nil {
			candidates = append(candidates, cookie.Value)
		}
		if session := currentSession(c); session != nil {
			if lang, ok := session.Values[domain.SessionKeyLang].(string); ok {
				candidates = append(candidates, lang)
			}
		}

		lang := s.languages.Resolve(candidates...)
		setLocal(c, "lang", lang)
		setLocal(c, "translations", s.languages.Translations(lang))

		return next(c)
	}
}

// settingsMiddleware publishes the global settings snapshot. Settings are
// read on every request so edits show up immediately.
func (s *Server) settingsMiddleware(skip func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skip(c) {
				return next(c)
			}

			ctx := c.Request().Context()
			settings, err := s.app.Settings(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to read settings", "error", err)
				return apperrors.InternalError("failed to load settings", err)
			}
			languages, err := s.languages.Languages()
			if err != nil {
				slog.ErrorContext(ctx, "Failed to list languages", "error", err)
				return apperrors.InternalError("failed to list languages", err)
			}

			l := localsOf(c)
			l["languages"] = languages
			l["ogTitle"] = s.config.OGTitle
			l["ogDescription"] = s.config.OGDescription
			l["footer"] = settings.Footer
			l["theme"] = s.theme
			l["name"] = settings.Name
			l["logo"] = settings.Logo
			l["plugins"] = s.plugins.Configs()

			return next(c)
		}
	}
}

// cacheControlMiddleware disables client caching of dynamic responses and
// gives assets a one-second lifetime.
func cacheControlMiddleware(skip func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skip(c) {
				return next(c)
			}

			h := c.Response().Header()
			if isAssetPath(c.Request().URL.Path) {
				h.Set(echo.HeaderCacheControl, "public, max-age=1")
			} else {
				h.Set(echo.HeaderCacheControl, "no-store")
			}
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "5")

			return next(c)
		}
	}
}

func isAssetPath(path string) bool {
	return path == assetsPrefix || strings.HasPrefix(path, assetsPrefix+"/")
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if currentUser(c) == nil {
			return c.Redirect(http.StatusFound, "/login")
		}
		return next(c)
	}
}

func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := currentUser(c)
		if user == nil {
			return c.Redirect(http.StatusFound, "/login")
		}
		if !user.Admin {
			return apperrors.ForbiddenError("admin access required")
		}
		return next(c)
	}
}
