// Package i18n lists the translation files available to the panel and loads
// their tables. The directory is re-read on every call so files dropped in
// at runtime become selectable without a restart.
package i18n

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultLanguage is used when neither the cookie nor the session names an
// available language.
const DefaultLanguage = "en"

type Registry struct {
	dir string
}

// NewRegistry fails when dir is not a readable directory.
func NewRegistry(dir string) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open language directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("language path %q is not a directory", dir)
	}
	return &Registry{dir: dir}, nil
}

// Languages returns the sorted language codes, one per file, each being the
// file name up to its first dot.
func (r *Registry) Languages() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list languages: %w", err)
	}

	codes := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		code, _, _ := strings.Cut(entry.Name(), ".")
		if code == "" {
			continue
		}
		codes = append(codes, code)
	}

	slices.Sort(codes)
	return slices.Compact(codes), nil
}

// Has reports whether code names an available language. Listing errors count
// as "no".
func (r *Registry) Has(code string) bool {
	if code == "" {
		return false
	}
	codes, err := r.Languages()
	if err != nil {
		slog.Warn("Language listing failed", "error", err)
		return false
	}
	_, found := slices.BinarySearch(codes, code)
	return found
}

// Resolve returns the first candidate that is available, else DefaultLanguage.
func (r *Registry) Resolve(candidates ...string) string {
	for _, c := range candidates {
		if r.Has(c) {
			return c
		}
	}
	return DefaultLanguage
}

// Translations loads <dir>/<code>.json. A missing or malformed file yields an
// empty table.
func (r *Registry) Translations(code string) map[string]string {
	table := map[string]string{}
	if code == "" || strings.ContainsAny(code, `/\`) {
		return table
	}

	path := filepath.Join(r.dir, code+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Translation file unavailable", "lang", code, "error", err)
		return table
	}
	if err := json.Unmarshal(data, &table); err != nil {
		slog.Warn("Translation file is malformed", "lang", code, "path", path, "error", err)
		return map[string]string{}
	}
	return table
}
