package example

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hanzzx311/skyport/internal/adapter/httpserver"
	"github.com/hanzzx311/skyport/internal/plugin"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRenderer struct {
	name string
	data map[string]any
}

func (r *stubRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	r.name = name
	r.data, _ = data.(map[string]any)
	_, err := io.WriteString(w, "rendered")
	return err
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func TestModule(t *testing.T) {
	m := Module()
	assert.Equal(t, Name, m.Plugin)

	desc := plugin.Descriptor{Name: Name, Version: "1.0.0", Config: map[string]any{"greeting": "Howdy"}}
	routes := m.Routes(desc, httpserver.Guards{RequireAuth: passThrough})
	require.Len(t, routes, 1)
	assert.Equal(t, http.MethodGet, routes[0].Method)
	assert.Equal(t, "/example", routes[0].Path)
	assert.Len(t, routes[0].Middleware, 1)

	renderer := &stubRenderer{}
	e := echo.New()
	e.Renderer = renderer
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/example", nil), rec)

	require.NoError(t, routes[0].Handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "example/index", renderer.name)
	assert.Equal(t, "Howdy", renderer.data["greeting"])
}

func TestModule_DefaultGreeting(t *testing.T) {
	routes := Module().Routes(plugin.Descriptor{Name: Name}, httpserver.Guards{RequireAuth: passThrough})

	renderer := &stubRenderer{}
	e := echo.New()
	e.Renderer = renderer
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/example", nil), httptest.NewRecorder())

	require.NoError(t, routes[0].Handler(c))
	assert.Equal(t, defaultGreeting, renderer.data["greeting"])
}

func TestManifestLoads(t *testing.T) {
	dir := t.TempDir()
	manifest, err := os.ReadFile("plugin.yaml")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, Name), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, Name, "plugin.yaml"), manifest, 0o600))

	reg, err := plugin.Load(dir)
	require.NoError(t, err)

	desc, ok := reg.Get(Name)
	require.True(t, ok)
	assert.Equal(t, "1.0.0", desc.Version)
	assert.NotEmpty(t, desc.Config["greeting"])
}
