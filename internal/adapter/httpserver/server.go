package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/hanzzx311/skyport/internal/adapter/metrics"
	"github.com/hanzzx311/skyport/internal/domain"
	"github.com/hanzzx311/skyport/internal/platform/config"
	"github.com/hanzzx311/skyport/internal/plugin"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type appService interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	SetUserLanguage(ctx context.Context, userID uuid.UUID, lang string) error
	Settings(ctx context.Context) (*domain.Settings, error)
	UpdateSettings(ctx context.Context, settings domain.Settings) error
	SiteName(ctx context.Context) string
}

type languageRegistry interface {
	Languages() ([]string, error)
	Has(code string) bool
	Resolve(candidates ...string) string
	Translations(code string) map[string]string
}

// sessionStore is a gorilla store whose records can be dropped by ID, which
// login needs to rotate the session.
type sessionStore interface {
	sessions.Store
	Delete(ctx context.Context, id string) error
}

// Deps are the collaborators a Server is composed from. Metrics and
// HealthChecks are optional.
type Deps struct {
	App           appService
	Languages     languageRegistry
	Plugins       *plugin.Registry
	PluginModules []PluginModule
	Theme         domain.Theme
	Sessions      sessionStore
	PostLimit     middleware.RateLimiterStore
	Renderer      *Renderer
	HTTPMetrics   *metrics.HTTPMetrics
	PanelMetrics  *metrics.PanelMetrics
	MetricsPage   http.Handler
	HealthChecks  []HealthCheck
	Clock         clockwork.Clock
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app           appService
	languages     languageRegistry
	plugins       *plugin.Registry
	pluginModules []PluginModule
	theme         domain.Theme

	sessionStore sessionStore
	postLimit    middleware.RateLimiterStore
	renderer     *Renderer

	httpMetrics  *metrics.HTTPMetrics
	panelMetrics *metrics.PanelMetrics
	metricsPage  http.Handler

	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time

	mounted []string
}

func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.App == nil || deps.Languages == nil || deps.Plugins == nil || deps.Sessions == nil || deps.PostLimit == nil || deps.Renderer == nil {
		return nil, errors.New("httpserver: missing required dependency")
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Theme == nil {
		deps.Theme = domain.Theme{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = deps.Renderer

	srv := &Server{
		echo:          e,
		config:        cfg,
		app:           deps.App,
		languages:     deps.Languages,
		plugins:       deps.Plugins,
		pluginModules: deps.PluginModules,
		theme:         deps.Theme,
		sessionStore:  deps.Sessions,
		postLimit:     deps.PostLimit,
		renderer:      deps.Renderer,
		httpMetrics:   deps.HTTPMetrics,
		panelMetrics:  deps.PanelMetrics,
		metricsPage:   deps.MetricsPage,
		healthChecks:  deps.HealthChecks,
		clock:         deps.Clock,
		startTime:     deps.Clock.Now(),
	}

	if err := srv.registerRoutes(); err != nil {
		return nil, err
	}

	return srv, nil
}

// Start binds the listener, logs the listening line, then serves until
// Shutdown. It returns http.ErrServerClosed after a graceful stop.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.echo.Listener = ln

	slog.Info("Skyport is listening", "addr", ln.Addr().String(), "port", s.config.Port)
	if err := s.echo.Start(addr); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP lets the composed application be driven without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// MountedModules lists route module names in the order they were mounted.
func (s *Server) MountedModules() []string {
	return append([]string(nil), s.mounted...)
}

// render writes a template through the echo renderer, which merges view
// locals into data.
func (s *Server) render(c echo.Context, code int, name string, data map[string]any) error {
	if err := c.Render(code, name, data); err != nil {
		slog.ErrorContext(c.Request().Context(), "Template execution failed", "template", name, "path", c.Request().URL.Path, "error", err)
		if err := c.String(http.StatusInternalServerError, "Failed to render page"); err != nil {
			return fmt.Errorf("failed to send error response: %w", err)
		}
	}
	return nil
}

func (s *Server) countRejection(limiter string) {
	if s.panelMetrics != nil {
		s.panelMetrics.RateLimitRejections.WithLabelValues(limiter).Inc()
	}
}

func (s *Server) countLogin(result string) {
	if s.panelMetrics != nil {
		s.panelMetrics.LoginAttempts.WithLabelValues(result).Inc()
	}
}

func (s *Server) countLanguageChange(result string) {
	if s.panelMetrics != nil {
		s.panelMetrics.LanguageChanges.WithLabelValues(result).Inc()
	}
}
