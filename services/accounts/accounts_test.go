// ABOUTME: Tests for the accounts service.
// ABOUTME: Runs login and user management through the auth middleware.

package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389/hbx/internal/api"
	"github.com/2389/hbx/internal/auth"
	"github.com/2389/hbx/internal/config"
	"github.com/2389/hbx/internal/seed"
	"github.com/2389/hbx/internal/store"
	"github.com/2389/hbx/services/core"
)

type testEnv struct {
	svc    *Service
	router http.Handler
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := store.New(filepath.Join(t.TempDir(), "accounts.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	authSvc, err := auth.NewService("accounts-test-secret-0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	svc := New()
	err = svc.Init(core.Deps{
		DB:   db.DB(),
		Auth: authSvc,
		Server: config.ServerConfig{
			AdminUsername:         "admin",
			AdminPassword:         "secret",
			ServiceMode:           true,
			RecommendChildBridges: true,
		},
	})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	r := chi.NewRouter()
	r.Use(authSvc.Middleware)
	r.Route("/api", svc.RegisterRoutes)
	return &testEnv{svc: svc, router: r}
}

func (e *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	w := e.do("POST", "/api/auth/login", "", `{"username":"`+username+`","password":"`+password+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("login %s: expected 201, got %d: %s", username, w.Code, w.Body.String())
	}
	var s api.Session
	json.Unmarshal(w.Body.Bytes(), &s)
	if s.AccessToken == "" || s.TokenType != "Bearer" || s.ExpiresIn != 3600 {
		t.Fatalf("unexpected session: %+v", s)
	}
	return s.AccessToken
}

func TestLogin(t *testing.T) {
	env := setupEnv(t)
	env.login(t, "admin", "secret")

	w := env.do("POST", "/api/auth/login", "", `{"username":"admin","password":"wrong"}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for wrong password, got %d", w.Code)
	}
	w = env.do("POST", "/api/auth/login", "", `{"username":"admin"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing password, got %d", w.Code)
	}
}

func TestSettingsIsPublic(t *testing.T) {
	env := setupEnv(t)
	w := env.do("GET", "/api/auth/settings", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var s api.Settings
	json.Unmarshal(w.Body.Bytes(), &s)
	if !s.Env.ServiceMode || !s.Env.RecommendChildBridges || s.Env.PackageName != PackageName {
		t.Errorf("unexpected settings: %+v", s.Env)
	}
}

func TestUsersRequireToken(t *testing.T) {
	env := setupEnv(t)
	w := env.do("GET", "/api/users", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", w.Code)
	}
}

func TestUserLifecycle(t *testing.T) {
	env := setupEnv(t)
	token := env.login(t, "admin", "secret")

	w := env.do("POST", "/api/users", token, `{"username":"bob","name":"Bob","password":"pw","admin":false}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var bob api.User
	json.Unmarshal(w.Body.Bytes(), &bob)

	w = env.do("POST", "/api/users", token, `{"username":"bob","name":"Bob 2","password":"pw"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate username, got %d", w.Code)
	}

	path := "/api/users/" + strconv.Itoa(bob.ID)
	w = env.do("PATCH", path, token, `{"username":"robert","name":"Robert","admin":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	env.login(t, "robert", "pw")

	w = env.do("GET", "/api/users", token, "")
	var users []api.User
	json.Unmarshal(w.Body.Bytes(), &users)
	if len(users) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(users))
	}

	w = env.do("DELETE", path, token, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d: %s", w.Code, w.Body.String())
	}
	w = env.do("DELETE", path, token, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestNonAdminRestrictions(t *testing.T) {
	env := setupEnv(t)
	admin := env.login(t, "admin", "secret")
	w := env.do("POST", "/api/users", admin, `{"username":"viewer","name":"Viewer","password":"pw"}`)
	var viewer api.User
	json.Unmarshal(w.Body.Bytes(), &viewer)

	token := env.login(t, "viewer", "pw")
	if w := env.do("GET", "/api/users", token, ""); w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 listing users as viewer, got %d", w.Code)
	}

	w = env.do("PATCH", "/api/users/"+strconv.Itoa(viewer.ID), token, `{"username":"viewer","name":"Renamed","admin":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 editing self, got %d: %s", w.Code, w.Body.String())
	}
	var updated api.User
	json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.Name != "Renamed" || updated.Admin {
		t.Errorf("viewer should rename but not self-promote: %+v", updated)
	}

	if w := env.do("PATCH", "/api/users/1", token, `{"username":"admin","name":"Hacked"}`); w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 editing another user, got %d", w.Code)
	}
}

func TestLastAdminProtection(t *testing.T) {
	env := setupEnv(t)
	token := env.login(t, "admin", "secret")

	if w := env.do("DELETE", "/api/users/1", token, ""); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 deleting yourself, got %d", w.Code)
	}
	if w := env.do("PATCH", "/api/users/1", token, `{"username":"admin","name":"Admin","admin":false}`); w.Code != http.StatusConflict {
		t.Errorf("Expected 409 demoting the last admin, got %d", w.Code)
	}
}

func TestSeedSkipsExistingUsers(t *testing.T) {
	env := setupEnv(t)
	catalog, _ := seed.Static().Generate(context.Background(), 0)

	data, err := env.svc.Seed(context.Background(), catalog)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	// admin already exists from Init.
	if data.Records["users"] != len(catalog.Users)-1 {
		t.Errorf("created %d users, want %d", data.Records["users"], len(catalog.Users)-1)
	}
	if env.svc.Health().Status != core.StatusHealthy {
		t.Errorf("unexpected health: %+v", env.svc.Health())
	}
}
