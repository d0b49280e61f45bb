package domain

import "context"

// Well-known keys of the persistent key-value store.
const (
	KeySettings = "settings"
	KeySiteName = "name"
)

// DefaultSiteName is shown wherever no site name has been configured.
const DefaultSiteName = "Skyport"

// Settings is the global settings record stored under KeySettings.
type Settings struct {
	Name   string `json:"name"`
	Footer string `json:"footer"`
	Logo   string `json:"logo"`
}

// Theme is the free-form theme document loaded once at startup.
type Theme map[string]any

// KeyValueStore persists JSON-encoded values by key.
type KeyValueStore interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any) error
	Exists(ctx context.Context, key string) (bool, error)
}
