// ABOUTME: Core service interface for the fake management server.
// ABOUTME: Defines the contract every API area (plugins, bridges, ...) implements.

package core

import (
	"context"
	"database/sql"

	"github.com/go-chi/chi/v5"

	"github.com/2389/hbx/internal/auth"
	"github.com/2389/hbx/internal/config"
	"github.com/2389/hbx/internal/metrics"
	"github.com/2389/hbx/internal/seed"
	"github.com/2389/hbx/internal/store"
	"github.com/2389/hbx/internal/ws"
)

// Service defines the interface that all fake server areas implement
type Service interface {
	// Metadata
	Name() string
	Health() HealthStatus

	// HTTP routes, mounted under /api
	RegisterRoutes(r chi.Router)

	// Admin UI
	Schema() ServiceSchema

	// Data generation
	Seed(ctx context.Context, catalog *seed.Catalog) (SeedData, error)
}

// Deps are the shared collaborators handed to every service before use.
type Deps struct {
	DB      *sql.DB
	Store   *store.Store
	Auth    *auth.Service
	Metrics *metrics.Registry
	Server  config.ServerConfig
}

// Initializer is implemented by services that need shared collaborators.
// Init creates the service's tables and may be called again with new deps.
type Initializer interface {
	Init(deps Deps) error
}

// SocketProvider is implemented by services that own WebSocket namespaces.
type SocketProvider interface {
	Namespaces() []*ws.Server
}

// Closer is implemented by services with background work to stop.
type Closer interface {
	Close() error
}

// HealthStatus represents service health
type HealthStatus struct {
	Status  string // "healthy", "degraded", "unavailable"
	Message string
}

const (
	StatusHealthy     = "healthy"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// SeedData represents data generation results
type SeedData struct {
	Summary string         // Human-readable summary
	Records map[string]int // Resource counts: {"plugins": 12}
}
