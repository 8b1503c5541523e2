// ABOUTME: Bridges service for the fake management server.
// ABOUTME: Owns child bridge status, the child-bridges socket namespace and pairings.

package bridges

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/2389/hbx/internal/api"
	"github.com/2389/hbx/internal/childbridge"
	"github.com/2389/hbx/internal/metrics"
	"github.com/2389/hbx/internal/seed"
	"github.com/2389/hbx/internal/ws"
	"github.com/2389/hbx/services/core"
)

func init() {
	core.Register(New())
}

type Service struct {
	store        *BridgeStore
	socket       *ws.Server
	metrics      *metrics.Registry
	restartDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New() *Service {
	return &Service{}
}

func (s *Service) Name() string {
	return "bridges"
}

func (s *Service) Health() core.HealthStatus {
	if s.store == nil {
		return core.HealthStatus{Status: core.StatusUnavailable, Message: "Bridges service not initialized"}
	}
	counts, err := s.store.CountByStatus()
	if err != nil {
		return core.HealthStatus{Status: core.StatusDegraded, Message: err.Error()}
	}
	if n := counts[string(childbridge.StateError)]; n > 0 {
		return core.HealthStatus{Status: core.StatusDegraded, Message: fmt.Sprintf("%d child bridges in error", n)}
	}
	return core.HealthStatus{Status: core.StatusHealthy, Message: "Child bridges operational"}
}

func (s *Service) Init(deps core.Deps) error {
	st, err := NewBridgeStore(deps.DB)
	if err != nil {
		return err
	}
	if s.cancel != nil {
		s.Close()
	}

	s.store = st
	s.metrics = deps.Metrics
	s.restartDelay = deps.Server.RestartDelay()
	s.ctx, s.cancel = context.WithCancel(context.Background())

	opts := []ws.ServerOption{ws.WithMetrics(deps.Metrics)}
	if deps.Auth != nil {
		opts = append(opts, ws.WithTokenValidator(deps.Auth.Username))
	}
	s.socket = ws.NewServer(childbridge.Namespace, opts...)
	s.socket.Handle(childbridge.EventGetStatus, s.handleGetStatus)
	s.socket.Handle(childbridge.EventMonitor, s.handleMonitor)
	s.socket.Handle(childbridge.EventRestart, s.handleRestart)
	s.socket.Handle(childbridge.EventStop, s.handleStop)
	s.socket.Handle(childbridge.EventStart, s.handleStart)

	s.observe()
	return nil
}

func (s *Service) Namespaces() []*ws.Server {
	if s.socket == nil {
		return nil
	}
	return []*ws.Server{s.socket}
}

// Close stops pending restart transitions.
func (s *Service) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

func (s *Service) Store() *BridgeStore {
	return s.store
}

func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/server/pairings", s.listPairings)
	r.Delete("/server/pairings/{id}/accessories", s.removeAccessories)
	r.Get("/status/homebridge/child-bridges", s.listBridges)
}

// Seed creates one child bridge and pairing per catalog bridge, plus the
// main bridge pairing, a standalone camera, and a bridge pairing left behind
// by a removed plugin.
func (s *Service) Seed(ctx context.Context, catalog *seed.Catalog) (core.SeedData, error) {
	if s.store == nil {
		return core.SeedData{}, fmt.Errorf("bridges service not initialized")
	}

	mainUser := seed.BridgeUsername("homebridge")
	pairings := []api.Pairing{
		{ID: PairingID(mainUser), Username: mainUser, Main: true, Category: "bridge", DisplayName: "Homebridge", SetupCode: seed.BridgePin("homebridge"), IsPaired: true, Accessories: 24},
	}

	for i, b := range catalog.ChildBridges {
		if err := ctx.Err(); err != nil {
			return core.SeedData{}, err
		}
		identifier, setupURI := NewIdentity(b.Pin)
		row := &childbridge.Status{
			Username:        b.Username,
			Identifier:      identifier,
			Name:            b.Name,
			Plugin:          b.Plugin,
			Pin:             b.Pin,
			SetupURI:        setupURI,
			Status:          childbridge.StateOK,
			PID:             2000 + i,
			Paired:          b.Paired,
			ManuallyStopped: b.Stopped,
		}
		if b.Stopped {
			row.Status = childbridge.StateDown
			row.PID = 0
		}
		if err := s.store.UpsertBridge(row); err != nil {
			return core.SeedData{}, err
		}
		pairings = append(pairings, api.Pairing{
			ID:          PairingID(b.Username),
			Username:    b.Username,
			Category:    "bridge",
			DisplayName: b.Name,
			SetupCode:   b.Pin,
			IsPaired:    b.Paired,
			Accessories: 1 + len(b.Name)%6,
		})
	}

	cameraUser := seed.BridgeUsername("camera-ffmpeg-front-door")
	orphanUser := seed.BridgeUsername("homebridge-removed-plugin")
	pairings = append(pairings,
		api.Pairing{ID: PairingID(cameraUser), Username: cameraUser, Category: "camera", DisplayName: "Front Door", SetupCode: seed.BridgePin("front-door"), IsPaired: true, Accessories: 1},
		api.Pairing{ID: PairingID(orphanUser), Username: orphanUser, Category: "bridge", DisplayName: "Old Bridge", SetupCode: seed.BridgePin("old-bridge"), IsPaired: true, Accessories: 3},
	)
	for i := range pairings {
		if err := s.store.UpsertPairing(&pairings[i]); err != nil {
			return core.SeedData{}, err
		}
	}
	s.observe()

	return core.SeedData{
		Summary: fmt.Sprintf("Created %d child bridges and %d pairings", len(catalog.ChildBridges), len(pairings)),
		Records: map[string]int{"child_bridges": len(catalog.ChildBridges), "pairings": len(pairings)},
	}, nil
}

func (s *Service) Schema() core.ServiceSchema {
	return core.ServiceSchema{
		Resources: []core.ResourceSchema{
			{
				Name: "Child Bridges",
				Slug: "child-bridges",
				Fields: []core.FieldSchema{
					{Name: "username", Type: "string", Display: "Username", Required: true},
					{Name: "name", Type: "string", Display: "Name"},
					{Name: "plugin", Type: "string", Display: "Plugin"},
					{Name: "status", Type: "string", Display: "Status"},
					{Name: "pid", Type: "string", Display: "PID"},
					{Name: "paired", Type: "bool", Display: "Paired"},
					{Name: "manuallyStopped", Type: "bool", Display: "Stopped"},
				},
				ListColumns: []string{"name", "plugin", "status", "paired", "manuallyStopped"},
			},
			{
				Name: "Pairings",
				Slug: "pairings",
				Fields: []core.FieldSchema{
					{Name: "id", Type: "string", Display: "ID"},
					{Name: "displayName", Type: "string", Display: "Name"},
					{Name: "category", Type: "string", Display: "Category"},
					{Name: "main", Type: "bool", Display: "Main"},
					{Name: "accessories", Type: "string", Display: "Accessories"},
				},
				Actions: []core.ActionSchema{
					{Name: "reset accessories", HTTPMethod: "DELETE", Endpoint: "/api/server/pairings/{id}/accessories", Confirm: true},
				},
				ListColumns: []string{"displayName", "category", "main", "accessories"},
			},
		},
	}
}

func (s *Service) ListResources(ctx context.Context, slug string, opts core.ListOptions) ([]map[string]any, error) {
	if s.store == nil {
		return nil, fmt.Errorf("bridges service not initialized")
	}
	switch slug {
	case "child-bridges":
		list, err := s.store.ListBridges()
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(list))
		for _, b := range page(list, opts) {
			out = append(out, bridgeMap(b))
		}
		return out, nil
	case "pairings":
		list, err := s.store.ListPairings()
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(list))
		for _, p := range page(list, opts) {
			out = append(out, pairingMap(p))
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown resource %q", slug)
}

func (s *Service) GetResource(ctx context.Context, slug, id string) (map[string]any, error) {
	if s.store == nil {
		return nil, fmt.Errorf("bridges service not initialized")
	}
	switch slug {
	case "child-bridges":
		b, err := s.store.GetBridge(id)
		if err != nil {
			return nil, err
		}
		return bridgeMap(*b), nil
	case "pairings":
		list, err := s.store.ListPairings()
		if err != nil {
			return nil, err
		}
		for _, p := range list {
			if p.ID == id {
				return pairingMap(p), nil
			}
		}
		return nil, ErrNotFound
	}
	return nil, fmt.Errorf("unknown resource %q", slug)
}

func page[T any](list []T, opts core.ListOptions) []T {
	if opts.Offset >= len(list) {
		return nil
	}
	list = list[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(list) {
		list = list[:opts.Limit]
	}
	return list
}

func bridgeMap(b childbridge.Status) map[string]any {
	return map[string]any{
		"id":              b.Username,
		"username":        b.Username,
		"name":            b.Name,
		"plugin":          b.Plugin,
		"status":          string(b.Status),
		"pid":             b.PID,
		"paired":          b.Paired,
		"manuallyStopped": b.ManuallyStopped,
	}
}

func pairingMap(p api.Pairing) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"displayName": p.DisplayName,
		"category":    p.Category,
		"main":        p.Main,
		"accessories": p.Accessories,
	}
}

// observe publishes the per-status gauge.
func (s *Service) observe() {
	counts, err := s.store.CountByStatus()
	if err != nil {
		log.Warn().Err(err).Msg("failed to count child bridges")
		return
	}
	s.metrics.SetChildBridges(counts)
}
