// ABOUTME: Tests for the management API client.
// ABOUTME: Uses httptest servers to check paths, auth headers and errors.

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, username string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": username,
		"name":     "Test " + username,
		"admin":    true,
	})
	s, err := tok.SignedString([]byte("test-secret-test-secret-test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"ftp://host", "://bad", "localhost:8581"} {
		if _, err := New(raw); err == nil {
			t.Errorf("New(%q) expected error", raw)
		}
	}
}

func TestLoginStoresSession(t *testing.T) {
	token := signedToken(t, "admin")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["username"] != "admin" || body["password"] != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]any{"code": "unauthorized", "message": "Invalid credentials", "status": 401})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"access_token": token, "token_type": "Bearer", "expires_in": 28800})
		case "/api/users":
			if got := r.Header.Get("Authorization"); got != "Bearer "+token {
				t.Errorf("Authorization = %q", got)
			}
			json.NewEncoder(w).Encode([]User{{ID: 1, Username: "admin", Admin: true}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.Login(context.Background(), "admin", "wrong"); !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if c.Session() != nil {
		t.Fatal("failed login must not store a session")
	}

	s, err := c.Login(context.Background(), "admin", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if s.Username != "admin" || !s.Admin || s.ExpiresIn != 28800 {
		t.Errorf("unexpected session: %+v", s)
	}

	users, err := c.Users(context.Background())
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	if len(users) != 1 || users[0].Username != "admin" {
		t.Errorf("unexpected users: %+v", users)
	}

	c.Logout()
	if c.Token() != "" {
		t.Error("token should be cleared after logout")
	}
}

func TestWithTokenReadsClaims(t *testing.T) {
	c, err := New("http://localhost:8581", WithToken(signedToken(t, "bob")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Session().Username; got != "bob" {
		t.Errorf("Username = %q, want bob", got)
	}
}

func TestPathParametersAreEscaped(t *testing.T) {
	var gotRaw []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRaw = append(gotRaw, r.URL.EscapedPath())
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	ctx := context.Background()
	if _, err := c.PluginConfig(ctx, "@scope/homebridge-x"); err != nil {
		t.Fatalf("PluginConfig: %v", err)
	}
	if _, err := c.SearchPlugins(ctx, "hue lights"); err != nil {
		t.Fatalf("SearchPlugins: %v", err)
	}
	if err := c.RemovePairingAccessories(ctx, "0E:1F"); err != nil {
		t.Fatalf("RemovePairingAccessories: %v", err)
	}

	want := []string{
		"/api/config-editor/plugin/@scope%2Fhomebridge-x",
		"/api/plugins/search/hue%20lights",
		"/api/server/pairings/0E:1F/accessories",
	}
	for i, w := range want {
		if i >= len(gotRaw) || gotRaw[i] != w {
			t.Errorf("request %d path = %v, want %q", i, gotRaw, w)
		}
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/plain" {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"not_found","message":"User not found","status":404}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	err := c.DeleteUser(context.Background(), 7)
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := Message(err); got != "User not found" {
		t.Errorf("Message = %q", got)
	}

	err = c.Get(context.Background(), "/plain", nil)
	if StatusOf(err) != http.StatusBadGateway {
		t.Fatalf("expected 502, got %v", err)
	}
	if got := Message(err); !strings.Contains(got, "boom") {
		t.Errorf("Message = %q, want body text", got)
	}
}

func TestSocketURL(t *testing.T) {
	c, _ := New("https://example.com:8581/", WithToken("abc"))
	if got := c.SocketURL("child-bridges"); got != "wss://example.com:8581/ws/child-bridges?token=abc" {
		t.Errorf("SocketURL = %q", got)
	}
	c, _ = New("http://localhost:8581")
	if got := c.SocketURL("log"); got != "ws://localhost:8581/ws/log" {
		t.Errorf("SocketURL = %q", got)
	}
}

func TestConfigBlockHelpers(t *testing.T) {
	var blocks []ConfigBlock
	raw := `[{"platform":"Hue","_bridge":{"username":"0E:11:22:33:44:55"}},{"accessory":"Switch","_bridge":{}}]`
	if err := json.Unmarshal([]byte(raw), &blocks); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !blocks[0].HasPlatform() || blocks[1].HasPlatform() {
		t.Error("HasPlatform mismatch")
	}
	if blocks[0].BridgeUsername() != "0E:11:22:33:44:55" || blocks[1].BridgeUsername() != "" {
		t.Error("BridgeUsername mismatch")
	}
}
