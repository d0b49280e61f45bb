// Package example is a minimal plugin that mounts one authenticated page.
package example

import (
	"fmt"
	"net/http"

	"github.com/hanzzx311/skyport/internal/adapter/httpserver"
	"github.com/hanzzx311/skyport/internal/plugin"
	"github.com/labstack/echo/v4"
)

// Name matches the name in plugin.yaml.
const Name = "example"

const defaultGreeting = "Hello"

func Module() httpserver.PluginModule {
	return httpserver.PluginModule{
		Plugin: Name,
		Routes: routes,
	}
}

func routes(desc plugin.Descriptor, guards httpserver.Guards) []httpserver.Route {
	greeting, ok := desc.Config["greeting"].(string)
	if !ok || greeting == "" {
		greeting = defaultGreeting
	}

	return []httpserver.Route{
		{
			Method:     http.MethodGet,
			Path:       "/example",
			Handler:    indexHandler(desc, greeting),
			Middleware: []echo.MiddlewareFunc{guards.RequireAuth},
		},
	}
}

func indexHandler(desc plugin.Descriptor, greeting string) echo.HandlerFunc {
	return func(c echo.Context) error {
		data := map[string]any{
			"plugin":   desc,
			"greeting": greeting,
		}
		if err := c.Render(http.StatusOK, "example/index", data); err != nil {
			return fmt.Errorf("failed to render example page: %w", err)
		}
		return nil
	}
}
