// ABOUTME: Service admin routes that wire the schema renderer to HTTP handlers.
// ABOUTME: Generic list and detail pages for any service exposing a DataProvider.

package admin

import (
	"html/template"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/2389/hbx/services/core"
)

// ServiceHandlers serves /admin/services/{service}/{resource}.
type ServiceHandlers struct{}

func (h *ServiceHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/services/{service}/{resource}", func(r chi.Router) {
		r.Get("/", h.ListView)
		r.Get("/{id}", h.DetailView)
	})
}

// lookup resolves the service and resource schema, writing a 404 when
// either is unknown.
func lookup(w http.ResponseWriter, r *http.Request) (core.Service, *core.ResourceSchema, bool) {
	svc, ok := core.Get(chi.URLParam(r, "service"))
	if !ok {
		http.Error(w, "Service not found", http.StatusNotFound)
		return nil, nil, false
	}
	res, ok := svc.Schema().Find(chi.URLParam(r, "resource"))
	if !ok {
		http.Error(w, "Resource not found", http.StatusNotFound)
		return nil, nil, false
	}
	return svc, res, true
}

func (h *ServiceHandlers) ListView(w http.ResponseWriter, r *http.Request) {
	svc, res, ok := lookup(w, r)
	if !ok {
		return
	}

	resources := []map[string]any{}
	if dp, ok := svc.(core.DataProvider); ok {
		list, err := dp.ListResources(r.Context(), res.Slug, core.ListOptions{Limit: 100})
		if err != nil {
			log.Warn().Err(err).Str("service", svc.Name()).Str("resource", res.Slug).Msg("failed to list resources")
		} else {
			resources = list
		}
	}

	base := "/admin/services/" + svc.Name() + "/" + res.Slug
	renderResourcePage(w, svc.Name(), res.Name, RenderResourceList(*res, resources, base))
}

func (h *ServiceHandlers) DetailView(w http.ResponseWriter, r *http.Request) {
	svc, res, ok := lookup(w, r)
	if !ok {
		return
	}
	dp, ok := svc.(core.DataProvider)
	if !ok {
		http.Error(w, "Service has no browsable data", http.StatusNotFound)
		return
	}

	id := chi.URLParam(r, "id")
	if v, err := url.PathUnescape(id); err == nil {
		id = v
	}
	data, err := dp.GetResource(r.Context(), res.Slug, id)
	if err != nil {
		http.Error(w, "Not found: "+err.Error(), http.StatusNotFound)
		return
	}
	renderResourcePage(w, svc.Name(), res.Name, RenderResourceDetail(*res, data))
}

func renderResourcePage(w http.ResponseWriter, service, resource, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := renderPage(w, "resource", map[string]any{
		"Title":    resource,
		"Service":  service,
		"Resource": resource,
		"Body":     template.HTML(body),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to render resource page")
	}
}
