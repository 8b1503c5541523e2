// ABOUTME: HTTP handlers for admin UI pages.
// ABOUTME: Serves the service dashboard, request log and server log views.

package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/2389/hbx/internal/store"
	"github.com/2389/hbx/services/core"
)

type Handlers struct {
	store *store.Store
}

func NewHandlers(s *store.Store) *Handlers {
	return &Handlers{store: s}
}

func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/", h.dashboard)
		r.Get("/logs", h.logsList)
		r.Get("/server-log", h.serverLog)
		(&ServiceHandlers{}).RegisterRoutes(r)
	})
}

func (h *Handlers) render(w http.ResponseWriter, page string, data map[string]any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderPage(w, page, data); err != nil {
		log.Error().Err(err).Str("page", page).Msg("failed to render admin page")
	}
}

func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetRequestLogStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.render(w, "dashboard", map[string]any{
		"Title":    "Dashboard",
		"Stats":    stats,
		"Services": getServiceDashboardData(h.store),
	})
}

func (h *Handlers) logsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	statusCode, _ := strconv.Atoi(q.Get("status"))

	logs, err := h.store.GetRequestLogs(&store.RequestLogQuery{
		Limit:       100,
		ServiceName: q.Get("service"),
		Method:      q.Get("method"),
		PathPrefix:  q.Get("path"),
		StatusCode:  statusCode,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, entry := range logs {
		entry.RequestBody = prettyJSON(entry.RequestBody)
		entry.ResponseBody = prettyJSON(entry.ResponseBody)
	}

	h.render(w, "logs", map[string]any{
		"Title":           "Requests",
		"Logs":            logs,
		"ServiceNames":    core.Names(),
		"SelectedService": q.Get("service"),
		"Method":          q.Get("method"),
		"PathPrefix":      q.Get("path"),
	})
}

func (h *Handlers) serverLog(w http.ResponseWriter, r *http.Request) {
	lines, err := h.store.TailLogLines(200)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.render(w, "server-log", map[string]any{
		"Title": "Server Log",
		"Lines": lines,
	})
}

// prettyJSON formats JSON with indentation, or returns original string if not valid JSON
func prettyJSON(s string) string {
	if s == "" {
		return s
	}
	var obj any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return s
	}
	formatted, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return s
	}
	return string(formatted)
}

// ServiceDashboardData is one card on the dashboard.
type ServiceDashboardData struct {
	Name         string
	Health       core.HealthStatus
	RequestCount int
	ErrorRate    float64
	Resources    []ResourceLink
}

type ResourceLink struct {
	Name string
	URL  string
}

func getServiceDashboardData(s *store.Store) []ServiceDashboardData {
	since := time.Now().UTC().Add(-24 * time.Hour)
	var out []ServiceDashboardData

	for _, svc := range core.All() {
		name := svc.Name()
		count, _ := s.GetServiceRequestCount(name, since)
		rate, _ := s.GetServiceErrorRate(name, since)

		var links []ResourceLink
		for _, res := range svc.Schema().Resources {
			links = append(links, ResourceLink{
				Name: res.Name,
				URL:  fmt.Sprintf("/admin/services/%s/%s", name, res.Slug),
			})
		}

		out = append(out, ServiceDashboardData{
			Name:         name,
			Health:       svc.Health(),
			RequestCount: count,
			ErrorRate:    rate,
			Resources:    links,
		})
	}
	return out
}
