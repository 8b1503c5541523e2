// ABOUTME: Tests for HTTP request logging middleware.
// ABOUTME: Verifies body buffering limits, status capture, redaction and service mapping.

package logging

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/2389/hbx/internal/metrics"
)

func newWrapped() (*responseWriter, *httptest.ResponseRecorder) {
	rr := httptest.NewRecorder()
	return &responseWriter{
		ResponseWriter: rr,
		statusCode:     200,
		body:           &bytes.Buffer{},
	}, rr
}

func TestResponseWriter_BuffersResponseBody(t *testing.T) {
	tests := []struct {
		name           string
		responseBody   string
		expectedCapped bool
	}{
		{"small response", "Hello, World!", false},
		{"response at limit", strings.Repeat("x", maxBodySize), false},
		{"response exceeds limit", strings.Repeat("x", maxBodySize+1000), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped, _ := newWrapped()

			n, err := wrapped.Write([]byte(tt.responseBody))
			if err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if n != len(tt.responseBody) {
				t.Errorf("Write() returned %d, want %d", n, len(tt.responseBody))
			}

			buffered := wrapped.body.String()
			if len(buffered) > maxBodySize {
				t.Errorf("Buffered body size %d exceeds maxBodySize %d", len(buffered), maxBodySize)
			}
			if tt.expectedCapped && len(buffered) != maxBodySize {
				t.Errorf("Expected buffered body to be capped at %d, got %d", maxBodySize, len(buffered))
			}
		})
	}
}

func TestResponseWriter_CapturesStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		explicit bool
		code     int
	}{
		{"explicit status", true, http.StatusCreated},
		{"implicit status", false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped, _ := newWrapped()
			if tt.explicit {
				wrapped.WriteHeader(tt.code)
			}
			wrapped.Write([]byte("body"))

			if wrapped.statusCode != tt.code {
				t.Errorf("statusCode = %d, want %d", wrapped.statusCode, tt.code)
			}
		})
	}
}

func TestResponseWriter_HijackUnsupported(t *testing.T) {
	wrapped, _ := newWrapped()
	if _, _, err := wrapped.Hijack(); err != http.ErrNotSupported {
		t.Errorf("Hijack() error = %v, want %v", err, http.ErrNotSupported)
	}
}

func TestMiddleware_RestoresRequestBody(t *testing.T) {
	originalBody := `{"name":"Living Room"}`
	var handlerReadBody string

	handler := Middleware(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		handlerReadBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("PATCH", "/api/users/1", strings.NewReader(originalBody))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if handlerReadBody != originalBody {
		t.Errorf("Handler read body = %q, want %q", handlerReadBody, originalBody)
	}
}

func TestMiddleware_RecordsMetrics(t *testing.T) {
	reg := metrics.New()
	handler := Middleware(nil, reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/plugins", nil))

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `hbx_http_requests_total{method="GET",service="plugins",status="404"} 1`) {
		t.Error("expected request to be counted under the plugins service")
	}
}

func TestMiddleware_SkipsHealthAndAdmin(t *testing.T) {
	reg := metrics.New()
	handler := Middleware(nil, reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/healthz", "/admin/", "/metrics"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if strings.Contains(rec.Body.String(), "hbx_http_requests_total{") {
		t.Error("skipped paths should not be counted")
	}
}

func TestRedactPasswords(t *testing.T) {
	if got := redactPasswords(`{"username":"a","password":"b"}`); got != "[redacted]" {
		t.Errorf("expected redaction, got %q", got)
	}
	if got := redactPasswords(`{"name":"a"}`); got != `{"name":"a"}` {
		t.Errorf("unexpected redaction: %q", got)
	}
}

func TestGetServiceFromPath(t *testing.T) {
	tests := map[string]string{
		"/api/plugins":                           "plugins",
		"/api/plugins/search/hue":                "plugins",
		"/api/config-editor/plugin/x":            "plugins",
		"/api/server/pairings":                   "bridges",
		"/ws/child-bridges":                      "bridges",
		"/api/auth/login":                        "accounts",
		"/api/users/2":                           "accounts",
		"/api/platform-tools/linux/restart-host": "platform",
		"/ws/log":                                "platform",
		"/favicon.ico":                           "unknown",
	}
	for path, want := range tests {
		if got := GetServiceFromPath(path); got != want {
			t.Errorf("GetServiceFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}
