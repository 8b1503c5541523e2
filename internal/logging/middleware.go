// ABOUTME: HTTP request logging middleware.
// ABOUTME: Captures method, path, status, duration and bodies into the store and metrics.

package logging

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/2389/hbx/internal/auth"
	"github.com/2389/hbx/internal/metrics"
	"github.com/2389/hbx/internal/store"
)

const maxBodySize = 10 * 1024 // 10KB limit for body capture

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
	body       *bytes.Buffer
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	if rw.body.Len() < maxBodySize {
		toCopy := len(b)
		if rw.body.Len()+toCopy > maxBodySize {
			toCopy = maxBodySize - rw.body.Len()
		}
		rw.body.Write(b[:toCopy])
	}
	return rw.ResponseWriter.Write(b)
}

// Hijack implements http.Hijacker so WebSocket namespaces can upgrade.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	rw.written = true
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func skipLogging(path string) bool {
	return path == "/healthz" || path == "/metrics" || strings.HasPrefix(path, "/admin/") || path == "/admin"
}

// Middleware records every request. A nil store or registry disables that sink.
func Middleware(s *store.Store, m *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipLogging(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			serviceName := GetServiceFromPath(r.URL.Path)
			ctx, caller := auth.TrackUser(r.Context())
			r = r.WithContext(ctx)

			var requestBody string
			if r.Body != nil {
				bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
				if err == nil {
					requestBody = redactPasswords(string(bodyBytes))
					r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
				}
			}

			start := time.Now()
			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}

			next.ServeHTTP(wrapped, r)

			elapsed := time.Since(start)
			m.ObserveRequest(serviceName, r.Method, wrapped.statusCode, elapsed.Seconds())

			if s == nil {
				return
			}

			ip := r.RemoteAddr
			if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
				ip = strings.TrimSpace(strings.Split(forwarded, ",")[0])
			}

			entry := &store.RequestLog{
				ServiceName:  serviceName,
				Method:       r.Method,
				Path:         r.URL.Path,
				StatusCode:   wrapped.statusCode,
				DurationMs:   int(elapsed.Milliseconds()),
				UserID:       caller(),
				IPAddress:    ip,
				UserAgent:    r.Header.Get("User-Agent"),
				RequestBody:  requestBody,
				ResponseBody: wrapped.body.String(),
			}
			go func() {
				if err := s.LogRequest(entry); err != nil {
					log.Warn().Err(err).Str("path", entry.Path).Msg("failed to store request log")
				}
			}()
		})
	}
}

// redactPasswords keeps credentials out of the request log.
func redactPasswords(body string) string {
	if !strings.Contains(body, "assword") {
		return body
	}
	return "[redacted]"
}
