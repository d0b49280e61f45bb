package httpserver

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	templateExt    = ".html"
	partialsPrefix = "partials/"
	csrfContextKey = "csrf"
)

// Renderer serves html/template pages collected from several view roots.
// A page's name is its path below the root without the extension; when two
// roots define the same name the earlier root wins. Templates under
// partials/ are shared by every page.
type Renderer struct {
	pages map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	// t looks key up in a translation table, echoing the key when missing.
	"t": func(table map[string]string, key string) string {
		if v, ok := table[key]; ok && v != "" {
			return v
		}
		return key
	},
}

func NewRenderer(roots ...string) (*Renderer, error) {
	sources := map[string]string{}
	var order []string

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || filepath.Ext(path) != templateExt {
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			name := strings.TrimSuffix(filepath.ToSlash(rel), templateExt)
			if _, seen := sources[name]; seen {
				return nil
			}

			body, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			sources[name] = string(body)
			order = append(order, name)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load views from %s: %w", root, err)
		}
	}

	base := template.New("").Funcs(templateFuncs)
	for _, name := range order {
		if !strings.HasPrefix(name, partialsPrefix) {
			continue
		}
		if _, err := base.New(name).Parse(sources[name]); err != nil {
			return nil, fmt.Errorf("failed to parse partial %s: %w", name, err)
		}
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range order {
		if strings.HasPrefix(name, partialsPrefix) {
			continue
		}
		page, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone partials: %w", err)
		}
		if _, err := page.New(name).Parse(sources[name]); err != nil {
			return nil, fmt.Errorf("failed to parse view %s: %w", name, err)
		}
		r.pages[name] = page
	}

	return r, nil
}

// Has reports whether a page named name was loaded.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Render implements echo.Renderer. Handler data is laid over the request's
// view locals.
func (r *Renderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	page, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("view %q not found", name)
	}

	if err := page.ExecuteTemplate(w, name, viewData(c, data)); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	return nil
}

func viewData(c echo.Context, data any) any {
	merged := map[string]any{}
	if c != nil {
		maps.Copy(merged, localsOf(c))
		if token, ok := c.Get(csrfContextKey).(string); ok {
			merged["csrf"] = token
		}
	}

	switch d := data.(type) {
	case nil:
	case map[string]any:
		maps.Copy(merged, d)
	default:
		merged["data"] = d
	}
	return merged
}
