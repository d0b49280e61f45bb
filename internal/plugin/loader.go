// Package plugin discovers plugins on disk. Each plugin is a subdirectory of
// the plugin root holding a plugin.yaml manifest and, optionally, a views/
// directory whose templates are rendered alongside the panel's own.
//
// The registry is built once during startup and never mutated afterwards.
package plugin

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

const (
	ManifestFile = "plugin.yaml"
	ViewsDir     = "views"
)

var validName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Manifest is the on-disk plugin.yaml document.
type Manifest struct {
	Name        string         `yaml:"name"`
	Version     string         `yaml:"version"`
	Description string         `yaml:"description"`
	Author      string         `yaml:"author"`
	Config      map[string]any `yaml:"config"`
}

// Descriptor is a loaded plugin.
type Descriptor struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Author      string         `json:"author"`
	Config      map[string]any `json:"config"`
	Dir         string         `json:"-"`
	ViewDir     string         `json:"-"` // empty when the plugin ships no views
}

type Registry struct {
	descriptors []Descriptor // sorted by directory name
	byName      map[string]int
}

// Load reads every plugin under dir. Any failure aborts the whole load.
func Load(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	reg := &Registry{byName: make(map[string]int)}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		desc, err := loadOne(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("plugin %q: %w", entry.Name(), err)
		}
		if _, dup := reg.byName[desc.Name]; dup {
			return nil, fmt.Errorf("plugin %q: duplicate plugin name %q", entry.Name(), desc.Name)
		}

		reg.byName[desc.Name] = len(reg.descriptors)
		reg.descriptors = append(reg.descriptors, desc)
	}

	return reg, nil
}

func loadOne(dir string) (Descriptor, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Descriptor{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if !validName.MatchString(m.Name) {
		return Descriptor{}, fmt.Errorf("invalid plugin name %q", m.Name)
	}
	if m.Config == nil {
		m.Config = map[string]any{}
	}

	desc := Descriptor{
		Name:        m.Name,
		Version:     m.Version,
		Description: m.Description,
		Author:      m.Author,
		Config:      m.Config,
		Dir:         dir,
	}

	views := filepath.Join(dir, ViewsDir)
	info, err := os.Stat(views)
	switch {
	case err == nil && info.IsDir():
		desc.ViewDir = views
	case err == nil:
		return Descriptor{}, fmt.Errorf("%s is not a directory", views)
	case !errors.Is(err, os.ErrNotExist):
		return Descriptor{}, fmt.Errorf("failed to stat views: %w", err)
	}

	return desc, nil
}

// Len returns the number of loaded plugins.
func (r *Registry) Len() int {
	return len(r.descriptors)
}

// Get returns a copy of the named descriptor.
func (r *Registry) Get(name string) (Descriptor, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[i].clone(), true
}

// Descriptors returns copies of all descriptors in load order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	for i, d := range r.descriptors {
		out[i] = d.clone()
	}
	return out
}

// Configs returns each plugin's config in load order, with the plugin name
// filled in under "name" when the manifest config does not set one.
func (r *Registry) Configs() []map[string]any {
	out := make([]map[string]any, len(r.descriptors))
	for i, d := range r.descriptors {
		cfg := maps.Clone(d.Config)
		if _, ok := cfg["name"]; !ok {
			cfg["name"] = d.Name
		}
		out[i] = cfg
	}
	return out
}

// ViewDirs returns the view directories of plugins that ship views, in load
// order.
func (r *Registry) ViewDirs() []string {
	var dirs []string
	for _, d := range r.descriptors {
		if d.ViewDir != "" {
			dirs = append(dirs, d.ViewDir)
		}
	}
	return dirs
}

func (d Descriptor) clone() Descriptor {
	d.Config = maps.Clone(d.Config)
	return d
}
