// ABOUTME: Host power actions and host status endpoints.
// ABOUTME: Power actions are recorded and logged, never executed.

package platform

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/2389/hbx/internal/api"
	"github.com/2389/hbx/internal/auth"
	apierrors "github.com/2389/hbx/internal/errors"
)

const (
	ActionShutdown = "shutdown-host"
	ActionRestart  = "restart-host"
)

// Action is one recorded host power request.
type Action struct {
	ID          int64
	Action      string
	RequestedBy string
	CreatedAt   time.Time
}

func (a Action) resourceMap() map[string]any {
	return map[string]any{
		"id":          a.ID,
		"action":      a.Action,
		"requestedBy": a.RequestedBy,
		"createdAt":   a.CreatedAt,
	}
}

func (s *Service) recordAction(action, user string) error {
	_, err := s.db.Exec(`INSERT INTO platform_actions (action, requested_by, created_at) VALUES (?, ?, ?)`, action, user, time.Now())
	return err
}

func (s *Service) listActions(limit, offset int) ([]Action, error) {
	rows, err := s.db.Query(`SELECT id, action, requested_by, created_at FROM platform_actions ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Action
	for rows.Next() {
		var a Action
		if err := rows.Scan(&a.ID, &a.Action, &a.RequestedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Service) hostAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.logs == nil {
			apierrors.WriteError(w, http.StatusServiceUnavailable, apierrors.ErrServiceUnavailable, "Platform service not initialized")
			return
		}
		if claims, ok := auth.ClaimsFromContext(r.Context()); ok && !claims.Admin {
			apierrors.WriteError(w, http.StatusForbidden, apierrors.ErrForbidden, "Administrator access required")
			return
		}

		user := auth.UserFromContext(r.Context())
		if err := s.recordAction(action, user); err != nil {
			log.Error().Err(err).Str("action", action).Msg("failed to record host action")
			apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrDatabaseError, "Failed to record host action")
			return
		}
		s.metrics.ObservePlatformAction(action)
		if _, err := s.logs.AppendLogLine("platform", "[homebridge-config-ui-x] Host "+action+" requested by "+user); err != nil {
			log.Warn().Err(err).Msg("failed to append host action log line")
		}
		log.Warn().Str("action", action).Str("user", user).Msg("host action requested (simulated)")

		apierrors.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func (s *Service) cpuStatus(w http.ResponseWriter, r *http.Request) {
	perCore, err := cpu.PercentWithContext(r.Context(), 200*time.Millisecond, true)
	if err != nil {
		log.Error().Err(err).Msg("failed to read cpu load")
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrInternal, "Failed to read CPU load")
		return
	}
	cores, err := cpu.CountsWithContext(r.Context(), true)
	if err != nil || cores == 0 {
		cores = len(perCore)
	}

	var total float64
	for _, p := range perCore {
		total += p
	}
	status := api.CPUStatus{PerCore: perCore, Cores: cores}
	if len(perCore) > 0 {
		status.CurrentLoad = total / float64(len(perCore))
	}
	apierrors.WriteJSON(w, http.StatusOK, status)
}

func (s *Service) ramStatus(w http.ResponseWriter, r *http.Request) {
	vm, err := mem.VirtualMemoryWithContext(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to read memory")
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrInternal, "Failed to read memory")
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, api.RAMStatus{
		Total:       vm.Total,
		Used:        vm.Used,
		Available:   vm.Available,
		UsedPercent: vm.UsedPercent,
	})
}
