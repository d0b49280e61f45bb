package httpserver

import (
	"cmp"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/hanzzx311/skyport/internal/plugin"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const bodyLimit = "2M"

// Route is one endpoint of a route module.
type Route struct {
	Method     string
	Path       string
	Handler    echo.HandlerFunc
	Middleware []echo.MiddlewareFunc
}

// RouteModule groups the routes of one feature. Modules are mounted sorted by
// name; routes keep their declared order.
type RouteModule struct {
	Name   string
	Routes []Route
}

// Guards are the access-control middlewares handed to plugin route modules.
type Guards struct {
	RequireAuth  echo.MiddlewareFunc
	RequireAdmin echo.MiddlewareFunc
	CSRF         echo.MiddlewareFunc
}

// PluginModule contributes routes on behalf of a loaded plugin. Plugin must
// name a plugin present in the registry.
type PluginModule struct {
	Plugin string
	Routes func(desc plugin.Descriptor, guards Guards) []Route
}

func (s *Server) registerRoutes() error {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(ErrorHandlingMiddleware())
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         63072000, // 2 years; only sent over HTTPS
		HSTSPreloadEnabled: true,
		ContentSecurityPolicy: "default-src 'self'; " +
			"script-src 'self' 'unsafe-inline'; " +
			"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com; " +
			"font-src 'self' https://fonts.gstatic.com; " +
			"img-src 'self' data: https:; " +
			"frame-ancestors 'none'",
		ReferrerPolicy: "strict-origin-when-cross-origin",
	}))
	s.echo.Use(middleware.BodyLimit(bodyLimit))
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(s.sessionMiddleware)
	s.echo.Use(s.loadUserMiddleware)
	s.echo.Use(s.translationMiddleware)
	s.echo.Use(s.newPostRateLimiter())

	// Routes mounted ahead of the settings and cache middlewares.
	early := map[string]bool{}
	s.echo.GET("/setLanguage", s.handleSetLanguage)
	early["/setLanguage"] = true
	skipEarly := func(c echo.Context) bool { return early[c.Path()] }

	// Health, version and metrics answer for the process itself and must not
	// depend on the site settings row.
	skipSettings := func(c echo.Context) bool {
		return skipEarly(c) || isOperationalPath(c.Path())
	}

	s.echo.Use(s.settingsMiddleware(skipSettings))
	if s.config.IsProduction() {
		s.echo.Use(cacheControlMiddleware(skipEarly))
	}
	s.echo.Use(middleware.StaticWithConfig(middleware.StaticConfig{
		Root: s.config.PublicDir,
	}))

	pluginModules, err := s.pluginRouteModules()
	if err != nil {
		return err
	}

	s.mountModules(s.appModules())
	s.mountModules(pluginModules)

	s.echo.RouteNotFound("/*", s.handleNotFound)
	return nil
}

func isOperationalPath(path string) bool {
	return path == "/metrics" || path == "/version" || strings.HasPrefix(path, "/health/")
}

func (s *Server) appModules() []RouteModule {
	csrf := s.setupCSRFMiddleware()

	modules := []RouteModule{
		s.indexModule(),
		s.authModule(csrf),
		s.dashboardModule(csrf),
		s.adminModule(csrf),
		s.pluginsModule(csrf),
		s.healthModule(),
	}
	if s.metricsPage != nil {
		modules = append(modules, RouteModule{
			Name: "metrics",
			Routes: []Route{
				{Method: http.MethodGet, Path: "/metrics", Handler: echo.WrapHandler(s.metricsPage)},
			},
		})
	}
	return modules
}

// pluginRouteModules resolves every compiled plugin module against the
// loaded registry.
func (s *Server) pluginRouteModules() ([]RouteModule, error) {
	guards := Guards{
		RequireAuth:  s.requireAuth,
		RequireAdmin: s.requireAdmin,
		CSRF:         s.setupCSRFMiddleware(),
	}

	seen := map[string]bool{}
	modules := make([]RouteModule, 0, len(s.pluginModules))
	for _, pm := range s.pluginModules {
		desc, ok := s.plugins.Get(pm.Plugin)
		if !ok {
			return nil, fmt.Errorf("route module for unknown plugin %q", pm.Plugin)
		}
		if seen[pm.Plugin] {
			return nil, fmt.Errorf("duplicate route module for plugin %q", pm.Plugin)
		}
		seen[pm.Plugin] = true

		modules = append(modules, RouteModule{
			Name:   "plugin:" + pm.Plugin,
			Routes: pm.Routes(desc, guards),
		})
	}
	return modules, nil
}

func (s *Server) mountModules(modules []RouteModule) {
	slices.SortStableFunc(modules, func(a, b RouteModule) int {
		return cmp.Compare(a.Name, b.Name)
	})

	for _, m := range modules {
		for _, r := range m.Routes {
			s.echo.Add(r.Method, r.Path, r.Handler, r.Middleware...)
		}
		s.mounted = append(s.mounted, m.Name)
		slog.Debug("Mounted route module", "module", m.Name, "routes", len(m.Routes))
	}
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}

func (s *Server) setupCSRFMiddleware() echo.MiddlewareFunc {
	secure := s.config.IsProduction()
	maxAge := int(s.config.SessionMaxAge.Seconds())

	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "form:csrf_token,header:X-CSRF-Token",
		CookieName:     "csrf_token",
		CookiePath:     "/",
		CookieMaxAge:   maxAge,
		CookieHTTPOnly: true,
		CookieSecure:   secure,
		CookieSameSite: http.SameSiteStrictMode,
	})
}
