package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "en.json", `{"welcome":"Welcome"}`)
	writeFile(t, dir, "de.json", `{"welcome":"Willkommen"}`)
	reg, err := NewRegistry(dir)
	require.NoError(t, err)
	return reg, dir
}

func TestNewRegistry_MissingDir(t *testing.T) {
	_, err := NewRegistry(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestNewRegistry_NotADir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "file", "")
	_, err := NewRegistry(filepath.Join(dir, "file"))
	assert.Error(t, err)
}

func TestLanguages_SortedAndCutAtFirstDot(t *testing.T) {
	reg, dir := newTestRegistry(t)
	writeFile(t, dir, "pt.BR.json", `{}`)
	writeFile(t, dir, "en.bak", ``)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "fr"), 0o755))

	codes, err := reg.Languages()
	require.NoError(t, err)
	assert.Equal(t, []string{"de", "en", "pt"}, codes)
}

func TestLanguages_RecomputedPerCall(t *testing.T) {
	reg, dir := newTestRegistry(t)
	assert.False(t, reg.Has("es"))

	writeFile(t, dir, "es.json", `{}`)
	assert.True(t, reg.Has("es"))
}

func TestHas(t *testing.T) {
	reg, _ := newTestRegistry(t)

	assert.True(t, reg.Has("en"))
	assert.True(t, reg.Has("de"))
	assert.False(t, reg.Has(""))
	assert.False(t, reg.Has("xx"))
	assert.False(t, reg.Has("../en"))
}

func TestResolve(t *testing.T) {
	reg, _ := newTestRegistry(t)

	assert.Equal(t, "de", reg.Resolve("xx", "de"))
	assert.Equal(t, "de", reg.Resolve("de", "en"))
	assert.Equal(t, DefaultLanguage, reg.Resolve("", "xx"))
	assert.Equal(t, DefaultLanguage, reg.Resolve())
}

func TestTranslations(t *testing.T) {
	reg, dir := newTestRegistry(t)
	writeFile(t, dir, "broken.json", `{not json`)

	assert.Equal(t, map[string]string{"welcome": "Willkommen"}, reg.Translations("de"))
	assert.Empty(t, reg.Translations("xx"))
	assert.Empty(t, reg.Translations("broken"))
	assert.Empty(t, reg.Translations("../de"))
}
