// ABOUTME: Plugins service for the fake management server.
// ABOUTME: Serves the installed plugin list, registry search and the config editor.

package plugins

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/2389/hbx/internal/seed"
	"github.com/2389/hbx/services/core"
)

func init() {
	core.Register(New())
}

type Service struct {
	store *PluginStore
}

func New() *Service {
	return &Service{}
}

func (s *Service) Name() string {
	return "plugins"
}

func (s *Service) Health() core.HealthStatus {
	if s.store == nil {
		return core.HealthStatus{Status: core.StatusUnavailable, Message: "Plugins service not initialized"}
	}
	return core.HealthStatus{Status: core.StatusHealthy, Message: "Plugin registry operational"}
}

func (s *Service) Init(deps core.Deps) error {
	st, err := NewPluginStore(deps.DB)
	if err != nil {
		return err
	}
	s.store = st
	return nil
}

// Store exposes the registry for tests and the admin UI.
func (s *Service) Store() *PluginStore {
	return s.store
}

func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/plugins", s.listInstalled)
	r.Get("/plugins/search/{query}", s.search)
	r.Put("/plugins/{name}/disable", s.setDisabled(true))
	r.Put("/plugins/{name}/enable", s.setDisabled(false))
	r.Get("/config-editor/plugin/{name}", s.getConfig)
	r.Post("/config-editor/plugin/{name}", s.saveConfig)
}

func (s *Service) Seed(ctx context.Context, catalog *seed.Catalog) (core.SeedData, error) {
	if s.store == nil {
		return core.SeedData{}, fmt.Errorf("plugins service not initialized")
	}

	installed, configured := 0, 0
	for _, p := range catalog.Plugins {
		if err := ctx.Err(); err != nil {
			return core.SeedData{}, err
		}
		err := s.store.UpsertPlugin(&Plugin{
			Name:             p.Name,
			DisplayName:      p.DisplayName,
			Description:      p.Description,
			Author:           p.Author,
			InstalledVersion: p.InstalledVersion,
			LatestVersion:    p.LatestVersion,
			Verified:         p.Verified,
			Disabled:         p.Disabled,
		})
		if err != nil {
			return core.SeedData{}, err
		}
		if p.InstalledVersion != "" {
			installed++
		}
		if len(p.Configs) > 0 {
			if err := s.store.ReplaceConfig(p.Name, p.Configs); err != nil {
				return core.SeedData{}, err
			}
			configured++
		}
	}

	return core.SeedData{
		Summary: fmt.Sprintf("Created %d plugins (%d installed, %d configured)", len(catalog.Plugins), installed, configured),
		Records: map[string]int{"plugins": len(catalog.Plugins), "configs": configured},
	}, nil
}

func (s *Service) Schema() core.ServiceSchema {
	return core.ServiceSchema{
		Resources: []core.ResourceSchema{
			{
				Name: "Plugins",
				Slug: "plugins",
				Fields: []core.FieldSchema{
					{Name: "name", Type: "string", Display: "Name", Required: true},
					{Name: "displayName", Type: "string", Display: "Display Name"},
					{Name: "installedVersion", Type: "string", Display: "Installed"},
					{Name: "latestVersion", Type: "string", Display: "Latest"},
					{Name: "updateAvailable", Type: "bool", Display: "Update"},
					{Name: "disabled", Type: "bool", Display: "Disabled", Editable: true},
				},
				Actions: []core.ActionSchema{
					{Name: "disable", HTTPMethod: "PUT", Endpoint: "/api/plugins/{name}/disable", Confirm: true},
					{Name: "enable", HTTPMethod: "PUT", Endpoint: "/api/plugins/{name}/enable"},
				},
				ListColumns: []string{"name", "installedVersion", "latestVersion", "updateAvailable", "disabled"},
			},
		},
	}
}

func (s *Service) ListResources(ctx context.Context, slug string, opts core.ListOptions) ([]map[string]any, error) {
	if slug != "plugins" {
		return nil, fmt.Errorf("unknown resource %q", slug)
	}
	if s.store == nil {
		return nil, fmt.Errorf("plugins service not initialized")
	}
	list, err := s.store.ListAll(opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(list))
	for _, p := range list {
		out = append(out, resourceMap(p))
	}
	return out, nil
}

func (s *Service) GetResource(ctx context.Context, slug, id string) (map[string]any, error) {
	if slug != "plugins" {
		return nil, fmt.Errorf("unknown resource %q", slug)
	}
	if s.store == nil {
		return nil, fmt.Errorf("plugins service not initialized")
	}
	p, err := s.store.GetPlugin(id)
	if err != nil {
		return nil, err
	}
	return resourceMap(p), nil
}

func resourceMap(p *Plugin) map[string]any {
	return map[string]any{
		"id":               p.Name,
		"name":             p.Name,
		"displayName":      p.DisplayName,
		"installedVersion": p.InstalledVersion,
		"latestVersion":    p.LatestVersion,
		"updateAvailable":  p.UpdateAvailable(),
		"disabled":         p.Disabled,
	}
}

// pathParam returns a URL parameter with percent-escapes removed, so that
// scoped names like @scope%2Fplugin arrive whole.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
