package httpserver

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/hanzzx311/skyport/internal/domain"
	apperrors "github.com/hanzzx311/skyport/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminSettings_RequiresAdmin(t *testing.T) {
	app := newMockApp()
	env := newTestEnv(t, app)

	rec := env.get("/admin/settings")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	session := env.login(t, app.addUser("bob", false))
	rec = env.get("/admin/settings", session)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, apperrors.TypeForbidden, resp.Type)
}

func TestAdminSettings_Page(t *testing.T) {
	app := newMockApp()
	env := newTestEnv(t, app)
	session := env.login(t, app.addUser("root", true))

	rec := env.get("/admin/settings?saved=1", session)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Settings Skyport saved", rec.Body.String())
}

func TestAdminSettings_Save(t *testing.T) {
	app := newMockApp()
	env := newTestEnv(t, app)
	session := env.login(t, app.addUser("root", true))

	rec := env.postForm("/admin/settings", url.Values{
		"name":   {"Hangar"},
		"footer": {"(c) Hangar"},
		"logo":   {"/assets/hangar.png"},
	}, session)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/settings?saved=1", rec.Header().Get("Location"))
	require.Len(t, app.savedSettings, 1)
	assert.Equal(t, domain.Settings{Name: "Hangar", Footer: "(c) Hangar", Logo: "/assets/hangar.png"}, app.savedSettings[0])

	// No caching: the next request sees the new value.
	rec = env.get("/login")
	assert.Contains(t, rec.Body.String(), "Login|Hangar|(c) Hangar|")
}

func TestAdminSettings_SaveValidation(t *testing.T) {
	app := newMockApp()
	env := newTestEnv(t, app)
	session := env.login(t, app.addUser("root", true))

	rec := env.postForm("/admin/settings", url.Values{"name": {"  "}}, session)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, apperrors.TypeValidation, resp.Type)
}

func TestPluginsPage(t *testing.T) {
	app := newMockApp()
	env := newTestEnv(t, app)
	session := env.login(t, app.addUser("root", true))

	rec := env.get("/admin/plugins", session)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Plugins example", rec.Body.String())
}

func TestListPlugins(t *testing.T) {
	app := newMockApp()
	env := newTestEnv(t, app)

	rec := env.get("/api/plugins")
	assert.Equal(t, http.StatusFound, rec.Code)

	session := env.login(t, app.addUser("alice", false))
	rec = env.get("/api/plugins", session)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"name":"example","version":"1.0.0","description":"","author":"","config":{"greeting":"hello"}}]`, rec.Body.String())
}
