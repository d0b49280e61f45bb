package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hanzzx311/skyport/internal/platform/version"
	"github.com/labstack/echo/v4"
)

const (
	startupCheckTimeout   = 2 * time.Second
	readinessCheckTimeout = 5 * time.Second

	checkPassed = "ok"
)

var errNoLanguages = errors.New("no languages loaded")

// HealthCheck is a named dependency check run by /health/startup and
// /health/ready.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// healthReport lists every check by name with "ok" or its error text.
type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) healthModule() RouteModule {
	return RouteModule{
		Name: "health",
		Routes: []Route{
			{Method: http.MethodGet, Path: "/health/startup", Handler: s.handleStartup},
			{Method: http.MethodGet, Path: "/health/live", Handler: s.handleLiveness},
			{Method: http.MethodGet, Path: "/health/ready", Handler: s.handleReadiness},
			{Method: http.MethodGet, Path: "/version", Handler: s.handleVersion},
		},
	}
}

// handleStartup also requires the language registry to list at least one
// language, since no page can render before that.
func (s *Server) handleStartup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), startupCheckTimeout)
	defer cancel()

	checks := append([]HealthCheck{{Name: "languages", Check: s.checkLanguages}}, s.healthChecks...)
	return writeHealthReport(c, runHealthChecks(ctx, checks))
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status":  "ok",
		"uptime":  s.clock.Since(s.startTime).Seconds(),
		"version": version.Version,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessCheckTimeout)
	defer cancel()

	return writeHealthReport(c, runHealthChecks(ctx, s.healthChecks))
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}

func (s *Server) checkLanguages(context.Context) error {
	codes, err := s.languages.Languages()
	if err != nil {
		return err
	}
	if len(codes) == 0 {
		return errNoLanguages
	}
	return nil
}

// runHealthChecks runs every check, even after a failure, so the report
// names all broken dependencies at once.
func runHealthChecks(ctx context.Context, checks []HealthCheck) healthReport {
	report := healthReport{Status: "ready"}
	if len(checks) == 0 {
		return report
	}

	report.Checks = make(map[string]string, len(checks))
	for _, hc := range checks {
		if err := hc.Check(ctx); err != nil {
			report.Status = "unhealthy"
			report.Checks[hc.Name] = err.Error()
			continue
		}
		report.Checks[hc.Name] = checkPassed
	}
	return report
}

func writeHealthReport(c echo.Context, report healthReport) error {
	status := http.StatusOK
	if report.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	if err := c.JSON(status, report); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
