package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) indexModule() RouteModule {
	return RouteModule{
		Name: "index",
		Routes: []Route{
			{Method: http.MethodGet, Path: "/", Handler: s.handleIndex},
		},
	}
}

func (s *Server) dashboardModule(csrf echo.MiddlewareFunc) RouteModule {
	return RouteModule{
		Name: "dashboard",
		Routes: []Route{
			{Method: http.MethodGet, Path: "/dashboard", Handler: s.handleDashboard, Middleware: []echo.MiddlewareFunc{s.requireAuth, csrf}},
		},
	}
}

func (s *Server) handleIndex(c echo.Context) error {
	if currentUser(c) != nil {
		return redirect(c, "/dashboard")
	}
	return redirect(c, "/login")
}

func (s *Server) handleDashboard(c echo.Context) error {
	return s.render(c, http.StatusOK, "dashboard", map[string]any{
		"user": currentUser(c),
	})
}

// handleNotFound renders the 404 page for every unmatched request.
func (s *Server) handleNotFound(c echo.Context) error {
	data := map[string]any{
		"name": s.app.SiteName(c.Request().Context()),
		"path": c.Request().URL.Path,
	}

	if !s.renderer.Has(notFoundView) {
		return c.String(http.StatusNotFound, "Not Found")
	}
	return s.render(c, http.StatusNotFound, notFoundView, data)
}

const notFoundView = "errors/404"
