// ABOUTME: Template loading and rendering for admin UI.
// ABOUTME: Each page is parsed together with the shared layout.

package admin

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/2389/hbx/services/core"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = map[string]string{
	"dashboard":  "templates/dashboard.html",
	"logs":       "templates/logs.html",
	"server-log": "templates/server_log.html",
	"resource":   "templates/resource.html",
}

var funcs = template.FuncMap{
	"healthClass": func(status string) string {
		switch status {
		case core.StatusHealthy:
			return "bg-green-100 text-green-800"
		case core.StatusDegraded:
			return "bg-yellow-100 text-yellow-800"
		default:
			return "bg-red-100 text-red-800"
		}
	},
}

var pageTmpls = parsePages()

func parsePages() map[string]*template.Template {
	layout := template.Must(template.New("admin").Funcs(funcs).ParseFS(templateFS, "templates/layout.html"))
	out := make(map[string]*template.Template, len(pages))
	for name, path := range pages {
		out[name] = template.Must(template.Must(layout.Clone()).ParseFS(templateFS, path))
	}
	return out
}

func renderPage(w io.Writer, page string, data any) error {
	tmpl, ok := pageTmpls[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}
