// ABOUTME: Platform service for the fake management server.
// ABOUTME: Host power actions, host status and the log namespace.

package platform

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/2389/hbx/internal/logs"
	"github.com/2389/hbx/internal/metrics"
	"github.com/2389/hbx/internal/seed"
	"github.com/2389/hbx/internal/store"
	"github.com/2389/hbx/internal/ws"
	"github.com/2389/hbx/services/core"
)

const (
	defaultBacklog   = 200
	defaultPoll      = 250 * time.Millisecond
	defaultHeartbeat = 15 * time.Second
)

func init() {
	core.Register(New())
}

type Service struct {
	db      *sql.DB
	logs    *store.Store
	metrics *metrics.Registry
	socket  *ws.Server

	backlog   int
	poll      time.Duration
	heartbeat time.Duration

	mu      sync.Mutex
	tailing map[*ws.Session]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New() *Service {
	return &Service{
		backlog:   defaultBacklog,
		poll:      defaultPoll,
		heartbeat: defaultHeartbeat,
	}
}

func (s *Service) Name() string {
	return "platform"
}

func (s *Service) Health() core.HealthStatus {
	if s.logs == nil {
		return core.HealthStatus{Status: core.StatusUnavailable, Message: "Platform service not initialized"}
	}
	return core.HealthStatus{Status: core.StatusHealthy, Message: "Platform tools operational"}
}

func (s *Service) Init(deps core.Deps) error {
	if deps.Store == nil {
		return fmt.Errorf("platform service needs the shared store")
	}
	if s.cancel != nil {
		s.Close()
	}
	s.db = deps.Store.DB()
	if err := s.initTables(); err != nil {
		return err
	}
	s.logs = deps.Store
	s.metrics = deps.Metrics
	s.tailing = make(map[*ws.Session]bool)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	opts := []ws.ServerOption{ws.WithMetrics(deps.Metrics)}
	if deps.Auth != nil {
		opts = append(opts, ws.WithTokenValidator(deps.Auth.Username))
	}
	s.socket = ws.NewServer(logs.Namespace, opts...)
	s.socket.Handle(logs.EventTailLog, s.handleTail)
	s.socket.Handle(logs.EventResize, s.handleResize)

	if s.heartbeat > 0 {
		s.wg.Add(1)
		go s.runHeartbeat()
	}
	return nil
}

func (s *Service) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS platform_actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			requested_by TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Namespaces() []*ws.Server {
	if s.socket == nil {
		return nil
	}
	return []*ws.Server{s.socket}
}

// Close stops the heartbeat and every running tail.
func (s *Service) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

func (s *Service) RegisterRoutes(r chi.Router) {
	r.Put("/platform-tools/linux/shutdown-host", s.hostAction(ActionShutdown))
	r.Put("/platform-tools/linux/restart-host", s.hostAction(ActionRestart))
	r.Get("/status/cpu", s.cpuStatus)
	r.Get("/status/ram", s.ramStatus)
}

func (s *Service) Seed(ctx context.Context, catalog *seed.Catalog) (core.SeedData, error) {
	if s.logs == nil {
		return core.SeedData{}, fmt.Errorf("platform service not initialized")
	}
	for _, line := range catalog.LogLines {
		if err := ctx.Err(); err != nil {
			return core.SeedData{}, err
		}
		if _, err := s.logs.AppendLogLine("homebridge", line); err != nil {
			return core.SeedData{}, err
		}
	}
	return core.SeedData{
		Summary: fmt.Sprintf("Created %d log lines", len(catalog.LogLines)),
		Records: map[string]int{"log_lines": len(catalog.LogLines)},
	}, nil
}

// runHeartbeat appends a synthetic runtime line every heartbeat so tails
// have something to follow.
func (s *Service) runHeartbeat() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for n := 0; ; n++ {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.logs.AppendLogLine("homebridge", seed.LogLine(n)); err != nil {
				log.Warn().Err(err).Msg("failed to append heartbeat log line")
			}
		}
	}
}

func (s *Service) Schema() core.ServiceSchema {
	return core.ServiceSchema{
		Resources: []core.ResourceSchema{
			{
				Name: "Host Actions",
				Slug: "actions",
				Fields: []core.FieldSchema{
					{Name: "id", Type: "string", Display: "ID"},
					{Name: "action", Type: "string", Display: "Action"},
					{Name: "requestedBy", Type: "string", Display: "Requested By"},
					{Name: "createdAt", Type: "datetime", Display: "When"},
				},
				ListColumns: []string{"action", "requestedBy", "createdAt"},
			},
		},
	}
}

func (s *Service) ListResources(ctx context.Context, slug string, opts core.ListOptions) ([]map[string]any, error) {
	if slug != "actions" {
		return nil, fmt.Errorf("unknown resource %q", slug)
	}
	if s.db == nil {
		return nil, fmt.Errorf("platform service not initialized")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	actions, err := s.listActions(limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.resourceMap())
	}
	return out, nil
}

func (s *Service) GetResource(ctx context.Context, slug, id string) (map[string]any, error) {
	if slug != "actions" {
		return nil, fmt.Errorf("unknown resource %q", slug)
	}
	if s.db == nil {
		return nil, fmt.Errorf("platform service not initialized")
	}
	a := &Action{}
	err := s.db.QueryRow(`SELECT id, action, requested_by, created_at FROM platform_actions WHERE id = ?`, id).
		Scan(&a.ID, &a.Action, &a.RequestedBy, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a.resourceMap(), nil
}
