// ABOUTME: Accounts service for the fake management server.
// ABOUTME: Login, UI settings and user management.

package accounts

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/2389/hbx/internal/api"
	"github.com/2389/hbx/internal/auth"
	"github.com/2389/hbx/internal/config"
	"github.com/2389/hbx/internal/seed"
	"github.com/2389/hbx/services/core"
)

// Reported by GET /api/auth/settings.
const (
	PackageName    = "homebridge-config-ui-x"
	PackageVersion = "4.62.0"
)

func init() {
	core.Register(New())
}

type Service struct {
	store  *UserStore
	auth   *auth.Service
	server config.ServerConfig
}

func New() *Service {
	return &Service{}
}

func (s *Service) Name() string {
	return "accounts"
}

func (s *Service) Health() core.HealthStatus {
	if s.store == nil || s.auth == nil {
		return core.HealthStatus{Status: core.StatusUnavailable, Message: "Accounts service not initialized"}
	}
	if n, err := s.store.CountAdmins(); err != nil || n == 0 {
		return core.HealthStatus{Status: core.StatusDegraded, Message: "No administrator account"}
	}
	return core.HealthStatus{Status: core.StatusHealthy, Message: "Accounts operational"}
}

// Init creates the users table and makes sure the configured administrator
// exists on an empty database.
func (s *Service) Init(deps core.Deps) error {
	st, err := NewUserStore(deps.DB)
	if err != nil {
		return err
	}
	s.store = st
	s.auth = deps.Auth
	s.server = deps.Server

	users, err := st.ListUsers()
	if err != nil {
		return err
	}
	if len(users) == 0 && deps.Server.AdminUsername != "" {
		if _, err := s.ensureUser(seed.UserData{
			Username: deps.Server.AdminUsername,
			Name:     "Administrator",
			Password: deps.Server.AdminPassword,
			Admin:    true,
		}); err != nil {
			return err
		}
		log.Info().Str("username", deps.Server.AdminUsername).Msg("created administrator account")
	}
	return nil
}

func (s *Service) Store() *UserStore {
	return s.store
}

func (s *Service) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", s.login)
	r.Get("/auth/settings", s.settings)

	r.Get("/users", s.listUsers)
	r.Post("/users", s.addUser)
	r.Patch("/users/{id}", s.updateUser)
	r.Delete("/users/{id}", s.deleteUser)
}

// ensureUser creates the user unless the username is taken.
func (s *Service) ensureUser(u seed.UserData) (bool, error) {
	_, err := s.store.CreateUser(api.UserInput{Username: u.Username, Name: u.Name, Password: u.Password, Admin: u.Admin})
	if errors.Is(err, ErrDuplicateUsername) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) Seed(ctx context.Context, catalog *seed.Catalog) (core.SeedData, error) {
	if s.store == nil {
		return core.SeedData{}, fmt.Errorf("accounts service not initialized")
	}

	users := catalog.Users
	if s.server.AdminUsername != "" {
		users = append([]seed.UserData{{
			Username: s.server.AdminUsername,
			Name:     "Administrator",
			Password: s.server.AdminPassword,
			Admin:    true,
		}}, users...)
	}

	created := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return core.SeedData{}, err
		}
		ok, err := s.ensureUser(u)
		if err != nil {
			return core.SeedData{}, err
		}
		if ok {
			created++
		}
	}
	return core.SeedData{
		Summary: fmt.Sprintf("Created %d users", created),
		Records: map[string]int{"users": created},
	}, nil
}

func (s *Service) Schema() core.ServiceSchema {
	return core.ServiceSchema{
		Resources: []core.ResourceSchema{
			{
				Name: "Users",
				Slug: "users",
				Fields: []core.FieldSchema{
					{Name: "id", Type: "string", Display: "ID"},
					{Name: "username", Type: "string", Display: "Username", Required: true, Editable: true},
					{Name: "name", Type: "string", Display: "Name", Required: true, Editable: true},
					{Name: "admin", Type: "bool", Display: "Admin", Editable: true},
				},
				Actions: []core.ActionSchema{
					{Name: "delete", HTTPMethod: "DELETE", Endpoint: "/api/users/{id}", Confirm: true},
				},
				ListColumns: []string{"id", "username", "name", "admin"},
			},
		},
	}
}

func (s *Service) ListResources(ctx context.Context, slug string, opts core.ListOptions) ([]map[string]any, error) {
	if slug != "users" {
		return nil, fmt.Errorf("unknown resource %q", slug)
	}
	if s.store == nil {
		return nil, fmt.Errorf("accounts service not initialized")
	}
	users, err := s.store.ListUsers()
	if err != nil {
		return nil, err
	}
	out := []map[string]any{}
	for i, u := range users {
		if i < opts.Offset || (opts.Limit > 0 && len(out) >= opts.Limit) {
			continue
		}
		out = append(out, userMap(u))
	}
	return out, nil
}

func (s *Service) GetResource(ctx context.Context, slug, id string) (map[string]any, error) {
	if slug != "users" {
		return nil, fmt.Errorf("unknown resource %q", slug)
	}
	if s.store == nil {
		return nil, fmt.Errorf("accounts service not initialized")
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		return nil, ErrNotFound
	}
	u, err := s.store.GetUser(n)
	if err != nil {
		return nil, err
	}
	return userMap(*u), nil
}

func userMap(u api.User) map[string]any {
	return map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"name":     u.Name,
		"admin":    u.Admin,
	}
}
