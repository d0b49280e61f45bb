package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hanzzx311/skyport/internal/domain"
	apperrors "github.com/hanzzx311/skyport/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

func (s *Server) adminModule(csrf echo.MiddlewareFunc) RouteModule {
	return RouteModule{
		Name: "admin",
		Routes: []Route{
			{Method: http.MethodGet, Path: "/admin/settings", Handler: s.handleSettingsPage, Middleware: []echo.MiddlewareFunc{s.requireAdmin, csrf}},
			{Method: http.MethodPost, Path: "/admin/settings", Handler: s.handleSaveSettings, Middleware: []echo.MiddlewareFunc{s.requireAdmin, csrf}},
		},
	}
}

// pluginsModule is the plugin manager.
func (s *Server) pluginsModule(csrf echo.MiddlewareFunc) RouteModule {
	return RouteModule{
		Name: "plugins",
		Routes: []Route{
			{Method: http.MethodGet, Path: "/admin/plugins", Handler: s.handlePluginsPage, Middleware: []echo.MiddlewareFunc{s.requireAdmin, csrf}},
			{Method: http.MethodGet, Path: "/api/plugins", Handler: s.handleListPlugins, Middleware: []echo.MiddlewareFunc{s.requireAuth}},
		},
	}
}

func (s *Server) handleSettingsPage(c echo.Context) error {
	settings, err := s.app.Settings(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to load settings", err)
	}

	return s.render(c, http.StatusOK, "admin/settings", map[string]any{
		"settings": settings,
		"saved":    c.QueryParam("saved") != "",
	})
}

func (s *Server) handleSaveSettings(c echo.Context) error {
	settings := domain.Settings{
		Name:   c.FormValue("name"),
		Footer: c.FormValue("footer"),
		Logo:   c.FormValue("logo"),
	}

	err := s.app.UpdateSettings(c.Request().Context(), settings)
	if errors.Is(err, domain.ErrInvalidSettings) {
		return apperrors.InvalidInput(err)
	}
	if err != nil {
		return apperrors.InternalError("failed to save settings", err)
	}

	return redirectSeeOther(c, "/admin/settings?saved=1")
}

func (s *Server) handlePluginsPage(c echo.Context) error {
	return s.render(c, http.StatusOK, "admin/plugins", map[string]any{
		"descriptors": s.plugins.Descriptors(),
	})
}

func (s *Server) handleListPlugins(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.plugins.Descriptors()); err != nil {
		return fmt.Errorf("failed to write plugin list: %w", err)
	}
	return nil
}
