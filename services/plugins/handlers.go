// ABOUTME: HTTP handlers for the plugins service.
// ABOUTME: Responses use the same wire types the client decodes.

package plugins

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/2389/hbx/internal/api"
	apierrors "github.com/2389/hbx/internal/errors"
)

func toWire(p *Plugin) api.Plugin {
	return api.Plugin{
		Name:             p.Name,
		DisplayName:      p.DisplayName,
		Description:      p.Description,
		Author:           p.Author,
		InstalledVersion: p.InstalledVersion,
		LatestVersion:    p.LatestVersion,
		UpdateAvailable:  p.UpdateAvailable(),
		Disabled:         p.Disabled,
		Verified:         p.Verified,
		Installed:        p.Installed(),
	}
}

func (s *Service) ready(w http.ResponseWriter) bool {
	if s.store == nil {
		apierrors.WriteError(w, http.StatusServiceUnavailable, apierrors.ErrServiceUnavailable, "Plugins service not initialized")
		return false
	}
	return true
}

// listInstalled handles GET /api/plugins. Plugins with updates come first.
func (s *Service) listInstalled(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	list, err := s.store.ListInstalled()
	if err != nil {
		log.Error().Err(err).Msg("failed to list plugins")
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrDatabaseError, "Failed to list plugins")
		return
	}

	out := make([]api.Plugin, 0, len(list))
	for _, p := range list {
		out = append(out, toWire(p))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdateAvailable && !out[j].UpdateAvailable
	})
	apierrors.WriteJSON(w, http.StatusOK, out)
}

// search handles GET /api/plugins/search/{query}.
func (s *Service) search(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	query := pathParam(r, "query")
	if query == "" {
		apierrors.WriteErrorWithField(w, http.StatusBadRequest, apierrors.ErrMissingField, "Search query is required", "query")
		return
	}

	list, err := s.store.Search(query, 30)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("plugin search failed")
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrDatabaseError, "Search failed")
		return
	}
	out := make([]api.Plugin, 0, len(list))
	for _, p := range list {
		out = append(out, toWire(p))
	}
	apierrors.WriteJSON(w, http.StatusOK, out)
}

// getConfig handles GET /api/config-editor/plugin/{name}.
func (s *Service) getConfig(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	name := pathParam(r, "name")
	blocks, err := s.store.ConfigBlocks(name)
	if errors.Is(err, ErrNotFound) {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrNotFound, "Plugin not found: "+name)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("plugin", name).Msg("failed to read config")
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrDatabaseError, "Failed to read plugin config")
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, blocks)
}

// saveConfig handles POST /api/config-editor/plugin/{name}, replacing every block.
func (s *Service) saveConfig(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	name := pathParam(r, "name")

	var blocks []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&blocks); err != nil {
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrInvalidBody, "Body must be an array of config blocks")
		return
	}
	for i, b := range blocks {
		_, platform := b["platform"]
		_, accessory := b["accessory"]
		if !platform && !accessory {
			apierrors.WriteErrorWithDetails(w, http.StatusBadRequest, apierrors.ErrValidationFailed,
				"Each block needs a platform or accessory", "block "+strconv.Itoa(i))
			return
		}
	}

	err := s.store.ReplaceConfig(name, blocks)
	if errors.Is(err, ErrNotFound) {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrNotFound, "Plugin not found: "+name)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("plugin", name).Msg("failed to save config")
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrDatabaseError, "Failed to save plugin config")
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, blocks)
}

func (s *Service) setDisabled(disabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.ready(w) {
			return
		}
		name := pathParam(r, "name")
		err := s.store.SetDisabled(name, disabled)
		if errors.Is(err, ErrNotFound) {
			apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrNotFound, "Plugin not found: "+name)
			return
		}
		if err != nil {
			apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrDatabaseError, "Failed to update plugin")
			return
		}
		p, _ := s.store.GetPlugin(name)
		apierrors.WriteJSON(w, http.StatusOK, toWire(p))
	}
}
