package main

import (
	"log/slog"

	"github.com/hanzzx311/skyport/internal/adapter/httpserver"
	"github.com/hanzzx311/skyport/internal/plugin"
	"github.com/hanzzx311/skyport/plugins/example"
)

// compiledPlugins lists the route modules built into this binary.
func compiledPlugins() []httpserver.PluginModule {
	return []httpserver.PluginModule{
		example.Module(),
	}
}

// installedModules keeps the modules whose plugin directory is present.
func installedModules(reg *plugin.Registry, modules []httpserver.PluginModule) []httpserver.PluginModule {
	var out []httpserver.PluginModule
	for _, m := range modules {
		if _, ok := reg.Get(m.Plugin); !ok {
			slog.Info("Plugin not installed, skipping its routes", "plugin", m.Plugin)
			continue
		}
		out = append(out, m)
	}
	return out
}
