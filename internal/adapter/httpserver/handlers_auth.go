package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hanzzx311/skyport/internal/domain"
	apperrors "github.com/hanzzx311/skyport/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

func (s *Server) authModule(csrf echo.MiddlewareFunc) RouteModule {
	loginLimiter := s.newRateLimiter(s.config.LoginRatePerSecond, s.config.LoginRateBurst)

	return RouteModule{
		Name: "auth",
		Routes: []Route{
			{Method: http.MethodGet, Path: "/login", Handler: s.handleLoginPage, Middleware: []echo.MiddlewareFunc{csrf}},
			{Method: http.MethodPost, Path: "/auth/login", Handler: s.handleLogin, Middleware: []echo.MiddlewareFunc{loginLimiter, csrf}},
			{Method: http.MethodPost, Path: "/auth/logout", Handler: s.handleLogout, Middleware: []echo.MiddlewareFunc{s.requireAuth, csrf}},
		},
	}
}

func (s *Server) handleLoginPage(c echo.Context) error {
	if currentUser(c) != nil {
		return redirect(c, "/dashboard")
	}

	data := map[string]any{
		"failed": c.QueryParam("error") != "",
	}
	return s.render(c, http.StatusOK, "login", data)
}

func (s *Server) handleLogin(c echo.Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")
	if username == "" || password == "" {
		s.countLogin("failure")
		return redirectSeeOther(c, "/login?error=missing")
	}

	ctx := c.Request().Context()
	user, err := s.app.Authenticate(ctx, username, password)
	if errors.Is(err, domain.ErrInvalidLogin) {
		s.countLogin("failure")
		slog.InfoContext(ctx, "Login failed", "username", username, "ip", c.RealIP())
		return redirectSeeOther(c, "/login?error=invalid")
	}
	if err != nil {
		return apperrors.InternalError("failed to authenticate", err)
	}

	session := currentSession(c)
	if session == nil {
		return apperrors.InternalError("session unavailable", nil)
	}
	lang, _ := session.Values[domain.SessionKeyLang].(string)
	if user.Lang != "" {
		lang = user.Lang
	}
	if err := s.regenerateSession(c); err != nil {
		return apperrors.InternalError("failed to rotate session", err)
	}
	session.Values[domain.SessionKeyUserID] = user.ID.String()
	if lang != "" {
		session.Values[domain.SessionKeyLang] = lang
	}

	s.countLogin("success")
	slog.InfoContext(ctx, "User logged in", "user_id", user.ID, "username", user.Username)
	return redirectSeeOther(c, "/dashboard")
}

func (s *Server) handleLogout(c echo.Context) error {
	if session := currentSession(c); session != nil {
		session.Values = map[any]any{}
		session.Options.MaxAge = -1
	}
	return redirectSeeOther(c, "/login")
}

// regenerateSession drops the stored record behind the current session so
// the next save issues a new ID. Values carried over are cleared.
func (s *Server) regenerateSession(c echo.Context) error {
	session := currentSession(c)
	if session.ID != "" {
		if err := s.sessionStore.Delete(c.Request().Context(), session.ID); err != nil {
			return err
		}
	}
	session.ID = ""
	session.IsNew = true
	session.Values = map[any]any{}
	return nil
}

func redirect(c echo.Context, to string) error {
	if err := c.Redirect(http.StatusFound, to); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}

func redirectSeeOther(c echo.Context, to string) error {
	if err := c.Redirect(http.StatusSeeOther, to); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}
