package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hanzzx311/skyport/internal/adapter/memory"
	"github.com/hanzzx311/skyport/internal/adapter/metrics"
	"github.com/hanzzx311/skyport/internal/adapter/sqlite"
	"github.com/hanzzx311/skyport/internal/domain"
	"github.com/hanzzx311/skyport/internal/i18n"
	"github.com/hanzzx311/skyport/internal/platform/config"
	"github.com/hanzzx311/skyport/internal/plugin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockAppService struct {
	mu sync.Mutex

	users    map[uuid.UUID]*domain.User
	settings *domain.Settings
	siteName string

	settingsErr    error
	setLanguageErr error

	languageUpdates map[uuid.UUID]string
	savedSettings   []domain.Settings
}

func newMockApp() *mockAppService {
	return &mockAppService{
		users:           map[uuid.UUID]*domain.User{},
		settings:        &domain.Settings{Name: "Skyport", Footer: "Powered by Skyport", Logo: "/assets/logo.png"},
		siteName:        domain.DefaultSiteName,
		languageUpdates: map[uuid.UUID]string{},
	}
}

// addUser stores a user whose password is "<username>-password".
func (m *mockAppService) addUser(username string, admin bool) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &domain.User{ID: uuid.New(), Username: username, Admin: admin}
	m.users[u.ID] = u
	return u
}

func (m *mockAppService) GetUserByID(_ context.Context, userID uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockAppService) Authenticate(_ context.Context, username, password string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username && password == username+"-password" {
			return u, nil
		}
	}
	return nil, domain.ErrInvalidLogin
}

func (m *mockAppService) SetUserLanguage(_ context.Context, userID uuid.UUID, lang string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setLanguageErr != nil {
		return m.setLanguageErr
	}
	m.languageUpdates[userID] = lang
	return nil
}

func (m *mockAppService) Settings(_ context.Context) (*domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settingsErr != nil {
		return nil, m.settingsErr
	}
	s := *m.settings
	return &s, nil
}

func (m *mockAppService) UpdateSettings(_ context.Context, settings domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if strings.TrimSpace(settings.Name) == "" {
		return domain.ErrInvalidSettings
	}
	m.savedSettings = append(m.savedSettings, settings)
	m.settings = &settings
	return nil
}

func (m *mockAppService) SiteName(_ context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.siteName
}

// --- Test fixtures ---

var testViews = map[string]string{
	"partials/head.html":  `<title>{{.name}}</title>`,
	"errors/404.html":     `{{template "partials/head" .}}404 {{.name}} {{.path}}`,
	"login.html":          `Login|{{.name}}|{{.footer}}|{{.ogTitle}}|{{range .languages}}{{.}},{{end}}|{{.lang}}|{{t .translations "welcome"}}|{{if .failed}}failed{{end}}|{{.csrf}}`,
	"dashboard.html":      `Dashboard {{.user.Username}}`,
	"admin/settings.html": `Settings {{.settings.Name}}{{if .saved}} saved{{end}}`,
	"admin/plugins.html":  `Plugins{{range .descriptors}} {{.Name}}{{end}}`,
	"example/widget.html": `Widget {{.greeting}}`,
	"plugin-only.html":    `app version wins`,
}

var testPluginViews = map[string]string{
	"plugin-only.html":     `plugin version`,
	"example/landing.html": `Landing {{.name}}`,
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
}

type testEnv struct {
	srv      *Server
	app      *mockAppService
	clock    *clockwork.FakeClock
	cfg      *config.Config
	sessions *sqlite.SessionStore
	langDir  string
}

type testOption func(*config.Config, *Deps)

func withHealthChecks(checks ...HealthCheck) testOption {
	return func(_ *config.Config, d *Deps) {
		d.HealthChecks = checks
	}
}

func withProduction() testOption {
	return func(cfg *config.Config, _ *Deps) {
		cfg.AppEnv = config.ModeProduction
	}
}

func withPluginModules(modules ...PluginModule) testOption {
	return func(_ *config.Config, d *Deps) {
		d.PluginModules = modules
	}
}

// withMetrics wires HTTP metrics and the /metrics page to a fresh registry.
func withMetrics(m **metrics.HTTPMetrics) testOption {
	return func(_ *config.Config, d *Deps) {
		reg := prometheus.NewRegistry()
		d.HTTPMetrics = metrics.NewHTTPMetrics(reg)
		d.MetricsPage = metrics.Handler(reg)
		*m = d.HTTPMetrics
	}
}

func newTestEnv(t *testing.T, app *mockAppService, opts ...testOption) *testEnv {
	t.Helper()
	root := t.TempDir()

	langDir := filepath.Join(root, "lang")
	writeTree(t, langDir, map[string]string{
		"en.json": `{"welcome":"Welcome"}`,
		"de.json": `{"welcome":"Willkommen"}`,
	})
	languages, err := i18n.NewRegistry(langDir)
	require.NoError(t, err)

	pluginDir := filepath.Join(root, "plugins")
	writeTree(t, pluginDir, map[string]string{
		"example/plugin.yaml": "name: example\nversion: 1.0.0\nconfig:\n  greeting: hello\n",
	})
	for name, body := range testPluginViews {
		writeTree(t, filepath.Join(pluginDir, "example", "views"), map[string]string{name: body})
	}
	plugins, err := plugin.Load(pluginDir)
	require.NoError(t, err)

	viewsDir := filepath.Join(root, "views")
	writeTree(t, viewsDir, testViews)
	renderer, err := NewRenderer(append([]string{viewsDir}, plugins.ViewDirs()...)...)
	require.NoError(t, err)

	publicDir := filepath.Join(root, "public")
	writeTree(t, publicDir, map[string]string{
		"assets/app.css": "body{}",
		"robots.txt":     "User-agent: *",
	})

	db, err := sqlite.Open(context.Background(), filepath.Join(root, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := clockwork.NewFakeClock()
	sessionStore := sqlite.NewSessionStore(db, clock, []byte("test-secret-key-32-bytes-long!!!"))
	sessionStore.MaxAge(3600)

	cfg := &config.Config{
		AppEnv:             "development",
		Host:               "127.0.0.1",
		Port:               "0",
		OGTitle:            "Skyport Panel",
		OGDescription:      "Test panel",
		PublicDir:          publicDir,
		SessionMaxAge:      time.Hour,
		LoginRatePerSecond: 0.01,
		LoginRateBurst:     5,
	}

	deps := Deps{
		App:          app,
		Languages:    languages,
		Plugins:      plugins,
		Theme:        domain.Theme{"primary": "#123456"},
		Sessions:     sessionStore,
		PostLimit:    memory.NewWindowStore(clock, 30, time.Minute),
		Renderer:     renderer,
		Clock:        clock,
		HealthChecks: nil,
	}
	for _, opt := range opts {
		opt(cfg, &deps)
	}

	srv, err := NewServer(cfg, deps)
	require.NoError(t, err)

	return &testEnv{srv: srv, app: app, clock: clock, cfg: cfg, sessions: sessionStore, langDir: langDir}
}

func newTestServer(t *testing.T, app *mockAppService, opts ...testOption) *Server {
	t.Helper()
	return newTestEnv(t, app, opts...).srv
}

// do sends a request through the full middleware chain.
func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return e.do(req)
}

const testCSRFToken = "test-csrf-token-0123456789abcdef"

// postForm sends a form POST carrying a matching CSRF cookie and token.
func (e *testEnv) postForm(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf_token", testCSRFToken)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return e.do(req)
}

// login signs in as user and returns the session cookie.
func (e *testEnv) login(t *testing.T, user *domain.User) *http.Cookie {
	t.Helper()
	rec := e.postForm("/auth/login", url.Values{
		"username": {user.Username},
		"password": {user.Username + "-password"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.Equal(t, "/dashboard", rec.Header().Get("Location"))

	cookie := findCookie(rec, SessionName)
	require.NotNil(t, cookie, "login must issue a session cookie")
	return cookie
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
