// ABOUTME: HTTP handlers for the bridges service.
// ABOUTME: Pairing listing, accessory reset and a REST view of child bridges.

package bridges

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/2389/hbx/internal/auth"
	apierrors "github.com/2389/hbx/internal/errors"
)

func (s *Service) ready(w http.ResponseWriter) bool {
	if s.store == nil {
		apierrors.WriteError(w, http.StatusServiceUnavailable, apierrors.ErrServiceUnavailable, "Bridges service not initialized")
		return false
	}
	return true
}

func (s *Service) listPairings(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	list, err := s.store.ListPairings()
	if err != nil {
		log.Error().Err(err).Msg("failed to list pairings")
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrDatabaseError, "Failed to list pairings")
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, list)
}

func (s *Service) removeAccessories(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	id := chi.URLParam(r, "id")
	if v, err := url.PathUnescape(id); err == nil {
		id = v
	}

	err := s.store.RemoveAccessories(id)
	if errors.Is(err, ErrNotFound) {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrNotFound, "Pairing not found: "+id)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("pairing", id).Msg("failed to remove accessories")
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrDatabaseError, "Failed to remove accessories")
		return
	}

	log.Info().Str("pairing", id).Str("user", auth.UserFromContext(r.Context())).Msg("removed cached accessories")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) listBridges(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	list, err := s.store.ListBridges()
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrDatabaseError, "Failed to list child bridges")
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, list)
}
