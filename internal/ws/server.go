// ABOUTME: Server side of a WebSocket namespace, mounted on the chi router.
// ABOUTME: Routes emits and requests to handlers and pushes events to watching sessions.

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/2389/hbx/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range []string{"localhost", "127.0.0.1", "::1"} {
			if strings.Contains(origin, allowed) {
				return true
			}
		}
		return false
	},
}

// HandlerFunc serves one event. The returned value becomes the response
// payload for requests and is ignored for emits.
type HandlerFunc func(ctx context.Context, sess *Session, data json.RawMessage) (any, error)

// TokenValidator maps the ?token= query value to a username.
type TokenValidator func(token string) (string, error)

// Server is one namespace.
type Server struct {
	namespace string
	validate  TokenValidator
	metrics   *metrics.Registry

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	sessions map[*Session]struct{}
}

type ServerOption func(*Server)

func WithTokenValidator(v TokenValidator) ServerOption {
	return func(s *Server) { s.validate = v }
}

func WithMetrics(m *metrics.Registry) ServerOption {
	return func(s *Server) { s.metrics = m }
}

func NewServer(namespace string, opts ...ServerOption) *Server {
	s := &Server{
		namespace: namespace,
		handlers:  make(map[string]HandlerFunc),
		sessions:  make(map[*Session]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Namespace() string {
	return s.namespace
}

// Handle registers the handler for an event, replacing any previous one.
func (s *Server) Handle(event string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = h
}

// Broadcast pushes an event to every session watching it.
func (s *Server) Broadcast(event string, payload any) {
	data, err := encodeFrame(TypeEvent, 0, event, payload)
	if err != nil {
		log.Error().Err(err).Str("namespace", s.namespace).Msg("failed to encode broadcast")
		return
	}

	s.mu.RLock()
	targets := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		if sess.watching(event) {
			targets = append(targets, sess)
		}
	}
	s.mu.RUnlock()

	for _, sess := range targets {
		sess.sendRaw(event, data)
	}
}

// Sessions returns the number of connected sessions.
func (s *Server) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ServeHTTP upgrades the request and runs the session until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := ""
	if s.validate != nil {
		var err error
		user, err = s.validate(r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("namespace", s.namespace).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		server:  s,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		ctx:     ctx,
		cancel:  cancel,
		User:    user,
		watched: make(map[string]bool),
	}

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	log.Debug().Str("namespace", s.namespace).Str("user", user).Msg("websocket session opened")

	go sess.writePump()
	sess.readPump()
}

func (s *Server) remove(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}

func (s *Server) handler(event string) (HandlerFunc, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[event]
	return h, ok
}

// Session is one connected client.
type Session struct {
	server    *Server
	conn      *websocket.Conn
	send      chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeConn sync.Once

	User string

	mu      sync.RWMutex
	watched map[string]bool
}

// Context is cancelled when the session disconnects.
func (sess *Session) Context() context.Context {
	return sess.ctx
}

// Watch subscribes the session to broadcasts of event.
func (sess *Session) Watch(event string) {
	sess.mu.Lock()
	sess.watched[event] = true
	sess.mu.Unlock()
}

func (sess *Session) watching(event string) bool {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return sess.watched[event]
}

// Push sends an event to this session only.
func (sess *Session) Push(event string, payload any) error {
	data, err := encodeFrame(TypeEvent, 0, event, payload)
	if err != nil {
		return err
	}
	sess.sendRaw(event, data)
	return nil
}

func (sess *Session) sendRaw(event string, data []byte) {
	select {
	case sess.send <- data:
		sess.server.metrics.ObserveFrame(sess.server.namespace, event, "out")
	case <-sess.ctx.Done():
	default:
		log.Warn().Str("namespace", sess.server.namespace).Str("event", event).
			Msg("session send buffer full, dropping frame")
	}
}

func (sess *Session) readPump() {
	defer func() {
		sess.server.remove(sess)
		sess.cancel()
		sess.closeConn.Do(func() {
			sess.conn.Close()
		})
		log.Debug().Str("namespace", sess.server.namespace).Msg("websocket session closed")
	}()

	sess.conn.SetReadLimit(maxMessageSize)
	if err := sess.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("namespace", sess.server.namespace).Msg("websocket read failed")
			}
			return
		}
		// Any inbound frame proves the peer is alive.
		sess.conn.SetReadDeadline(time.Now().Add(pongWait))

		var f Frame
		if err := json.Unmarshal(message, &f); err != nil {
			sess.respondError(0, "invalid_format", "Failed to parse message")
			continue
		}
		sess.server.metrics.ObserveFrame(sess.server.namespace, f.Event, "in")
		sess.dispatch(f)
	}
}

func (sess *Session) dispatch(f Frame) {
	h, ok := sess.server.handler(f.Event)
	if !ok {
		if f.Type == TypeRequest {
			sess.respondError(f.ID, "unknown_event", "Unknown event: "+f.Event)
		} else {
			log.Debug().Str("namespace", sess.server.namespace).Str("event", f.Event).Msg("no handler for event")
		}
		return
	}

	result, err := h(sess.ctx, sess, f.Data)
	if f.Type != TypeRequest {
		if err != nil {
			log.Warn().Err(err).Str("event", f.Event).Msg("emit handler failed")
		}
		return
	}
	if err != nil {
		code := "handler_error"
		var fe *FrameError
		if errors.As(err, &fe) {
			code = fe.Code
			err = errors.New(fe.Message)
		}
		sess.respondError(f.ID, code, err.Error())
		return
	}

	data, err := encodeFrame(TypeResponse, f.ID, f.Event, result)
	if err != nil {
		sess.respondError(f.ID, "internal_error", err.Error())
		return
	}
	sess.sendRaw(f.Event, data)
}

func (sess *Session) respondError(id int64, code, message string) {
	data, err := json.Marshal(Frame{Type: TypeResponse, ID: id, Error: &FrameError{Code: code, Message: message}})
	if err != nil {
		return
	}
	sess.sendRaw("error", data)
}

func (sess *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sess.closeConn.Do(func() {
			sess.conn.Close()
		})
	}()

	for {
		select {
		case message := <-sess.send:
			if err := sess.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := sess.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn().Err(err).Msg("failed to write websocket frame")
				return
			}
		case <-ticker.C:
			if err := sess.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sess.ctx.Done():
			return
		}
	}
}
