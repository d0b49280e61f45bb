package main

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/hanzzx311/skyport/internal/adapter/httpserver"
	"github.com/hanzzx311/skyport/internal/adapter/memory"
	"github.com/hanzzx311/skyport/internal/adapter/metrics"
	"github.com/hanzzx311/skyport/internal/adapter/redis"
	"github.com/hanzzx311/skyport/internal/adapter/sqlite"
	"github.com/hanzzx311/skyport/internal/app"
	"github.com/hanzzx311/skyport/internal/domain"
	"github.com/hanzzx311/skyport/internal/i18n"
	"github.com/hanzzx311/skyport/internal/platform/config"
	"github.com/hanzzx311/skyport/internal/platform/logging"
	"github.com/hanzzx311/skyport/internal/platform/password"
	"github.com/hanzzx311/skyport/internal/platform/version"
	"github.com/hanzzx311/skyport/internal/plugin"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4/middleware"
	"github.com/urfave/cli/v3"
)

//go:embed ascii.txt
var asciiArt string

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func serve(ctx context.Context, _ *cli.Command) error {
	clock := clockwork.NewRealClock()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)

	printBanner()
	slog.Info("Application starting", "env", cfg.AppEnv, "version", version.Version)

	setupCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	db, err := sqlite.Open(setupCtx, cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	appSvc := app.NewService(
		sqlite.NewUserRepo(db, clock),
		sqlite.NewKVStore(db, clock),
		password.NewHasher(password.DefaultParams),
		clock,
	)
	seed := app.AdminSeed{Username: cfg.AdminUsername, Email: cfg.AdminEmail, Password: cfg.AdminPassword}
	if err := appSvc.Init(setupCtx, seed); err != nil {
		return fmt.Errorf("failed to initialise panel data: %w", err)
	}

	languages, err := i18n.NewRegistry(cfg.LangDir)
	if err != nil {
		return err
	}
	plugins, err := plugin.Load(cfg.PluginsDir)
	if err != nil {
		return fmt.Errorf("failed to load plugins: %w", err)
	}
	slog.Info("Plugins loaded", "count", plugins.Len())

	theme, err := loadTheme(cfg.ThemePath)
	if err != nil {
		return err
	}

	renderer, err := httpserver.NewRenderer(append([]string{cfg.ViewsDir}, plugins.ViewDirs()...)...)
	if err != nil {
		return err
	}

	sessionStore := newSessionStore(cfg, db, clock)
	stopCleanup := sessionStore.StartCleanup(cfg.SessionCleanupInterval)
	defer stopCleanup()

	healthChecks := []httpserver.HealthCheck{
		{Name: "sqlite", Check: db.PingContext},
	}

	reg := metrics.NewRegistry()

	var postLimit middleware.RateLimiterStore
	if cfg.RedisURL != "" {
		rdb, err := redis.NewClient(setupCtx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		rdb.AddHook(redis.NewMetricsHook(metrics.NewRedisMetrics(reg)))

		postLimit = redis.NewWindowStore(rdb, "post", cfg.PostRateLimit, cfg.PostRateWindow)
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	} else {
		windows := memory.NewWindowStore(clock, cfg.PostRateLimit, cfg.PostRateWindow)
		stopEviction := windows.StartEviction()
		defer stopEviction()
		postLimit = windows
	}

	srv, err := httpserver.NewServer(cfg, httpserver.Deps{
		App:           appSvc,
		Languages:     languages,
		Plugins:       plugins,
		PluginModules: installedModules(plugins, compiledPlugins()),
		Theme:         theme,
		Sessions:      sessionStore,
		PostLimit:     postLimit,
		Renderer:      renderer,
		HTTPMetrics:   metrics.NewHTTPMetrics(reg),
		PanelMetrics:  metrics.NewPanelMetrics(reg),
		MetricsPage:   metrics.Handler(reg),
		HealthChecks:  healthChecks,
		Clock:         clock,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	slog.Debug("Route modules mounted", "modules", srv.MountedModules())

	done := runGracefulShutdown(srv)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-done
	slog.Info("Skyport stopped")
	return nil
}

func printBanner() {
	_, _ = color.New(color.FgHiBlack).Println(version.Banner(asciiArt))
}

func newSessionStore(cfg *config.Config, db *sql.DB, clock clockwork.Clock) *sqlite.SessionStore {
	store := sqlite.NewSessionStore(db, clock, []byte(cfg.SessionSecret))
	store.MaxAge(int(cfg.SessionMaxAge.Seconds()))
	store.Options.HttpOnly = true
	store.Options.SameSite = http.SameSiteLaxMode
	store.Options.Secure = cfg.IsProduction()
	return store
}

// loadTheme reads the theme document once; the panel does not start
// without one.
func loadTheme(path string) (domain.Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read theme: %w", err)
	}

	var theme domain.Theme
	if err := json.Unmarshal(data, &theme); err != nil {
		return nil, fmt.Errorf("failed to parse theme %s: %w", path, err)
	}
	return theme, nil
}

func runGracefulShutdown(srv *httpserver.Server) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}
