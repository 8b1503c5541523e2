// ABOUTME: Client side of a WebSocket namespace connection.
// ABOUTME: Supports emits, correlated point requests and cancellable event subscriptions.

package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Conn is a client connection to one namespace. Safe for concurrent use.
type Conn struct {
	conn *websocket.Conn
	send chan []byte

	ctx       context.Context
	cancel    context.CancelFunc
	closeConn sync.Once

	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan Frame
	subs    map[string]map[*Subscription]struct{}
	closed  bool
	err     error
}

// Dial connects to a namespace URL such as ws://host/ws/child-bridges?token=...
func Dial(ctx context.Context, url string) (*Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("dial %s: unauthorized: %w", url, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	cctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		ctx:     cctx,
		cancel:  cancel,
		pending: make(map[int64]chan Frame),
		subs:    make(map[string]map[*Subscription]struct{}),
	}
	conn.SetReadLimit(maxMessageSize)

	go c.writePump()
	go c.readPump()
	return c, nil
}

// Done is closed once the connection is gone.
func (c *Conn) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Err returns the reason the connection ended, or nil while it is open.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close tears the connection down and closes every subscription.
func (c *Conn) Close() error {
	c.shutdown(ErrClosed)
	return nil
}

// Emit sends a fire-and-forget event.
func (c *Conn) Emit(event string, payload any) error {
	data, err := encodeFrame(TypeEmit, 0, event, payload)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

// Request sends a point request and waits for its response. out may be nil.
func (c *Conn) Request(ctx context.Context, event string, payload, out any) error {
	id := c.nextID.Add(1)
	data, err := encodeFrame(TypeRequest, id, event, payload)
	if err != nil {
		return err
	}

	ch := make(chan Frame, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.enqueue(data); err != nil {
		return err
	}

	select {
	case f := <-ch:
		if f.Error != nil {
			return fmt.Errorf("%s: %w", event, f.Error)
		}
		if out != nil && len(f.Data) > 0 {
			if err := json.Unmarshal(f.Data, out); err != nil {
				return fmt.Errorf("failed to decode %s response: %w", event, err)
			}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrClosed
	}
}

// Subscription delivers the payloads of one pushed event until closed.
// Payloads queue without bound, so a slow reader never loses an event and
// never stalls the connection.
type Subscription struct {
	conn  *Conn
	event string
	ch    chan json.RawMessage

	mu    sync.Mutex
	queue []json.RawMessage
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// Subscribe registers interest in a pushed event. The returned channel is
// closed by Subscription.Close or when the connection ends.
func (c *Conn) Subscribe(event string) *Subscription {
	s := &Subscription{
		conn:  c,
		event: event,
		ch:    make(chan json.RawMessage),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go s.pump()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		s.once.Do(func() { close(s.done) })
		return s
	}
	if c.subs[event] == nil {
		c.subs[event] = make(map[*Subscription]struct{})
	}
	c.subs[event][s] = struct{}{}
	return s
}

func (s *Subscription) C() <-chan json.RawMessage {
	return s.ch
}

// Close stops delivery. Queued payloads not yet received are discarded.
func (s *Subscription) Close() {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	s.closeLocked()
}

// closeLocked requires conn.mu held.
func (s *Subscription) closeLocked() {
	s.once.Do(func() {
		if set := s.conn.subs[s.event]; set != nil {
			delete(set, s)
			if len(set) == 0 {
				delete(s.conn.subs, s.event)
			}
		}
		close(s.done)
	})
}

func (s *Subscription) push(data json.RawMessage) {
	s.mu.Lock()
	s.queue = append(s.queue, data)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pump hands queued payloads to the reader in arrival order and closes ch
// once the subscription is done.
func (s *Subscription) pump() {
	defer close(s.ch)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		next := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.ch <- next:
		case <-s.done:
			return
		}
	}
}

func (c *Conn) enqueue(data []byte) error {
	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	}
}

func (c *Conn) shutdown(reason error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.err = reason
	for _, set := range c.subs {
		for s := range set {
			s.closeLocked()
		}
	}
	c.mu.Unlock()

	c.cancel()
	c.closeConn.Do(func() {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		c.conn.Close()
	})
}

func (c *Conn) readPump() {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("websocket read failed")
			}
			c.shutdown(err)
			return
		}

		var f Frame
		if err := json.Unmarshal(message, &f); err != nil {
			log.Warn().Err(err).Msg("dropping malformed websocket frame")
			continue
		}
		c.dispatch(f)
	}
}

func (c *Conn) dispatch(f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch f.Type {
	case TypeResponse:
		if ch, ok := c.pending[f.ID]; ok {
			ch <- f
			delete(c.pending, f.ID)
		}
	case TypeEvent:
		for s := range c.subs[f.Event] {
			s.push(f.Data)
		}
	}
}

func (c *Conn) writePump() {
	for {
		select {
		case message := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.shutdown(err)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn().Err(err).Msg("websocket write failed")
				c.shutdown(err)
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
