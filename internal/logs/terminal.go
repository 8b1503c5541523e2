// ABOUTME: Log terminal client for the log namespace.
// ABOUTME: Requests a tail sized to the terminal and streams stdout frames to a writer.

package logs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/2389/hbx/internal/ws"
)

const Namespace = "log"

const (
	EventTailLog = "tail-log"
	EventResize  = "resize"
	EventStdout  = "stdout"
)

// Size is the terminal geometry sent with tail and resize requests.
type Size struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// Channel is the namespace connection. *ws.Conn satisfies it.
type Channel interface {
	Emit(event string, payload any) error
	Subscribe(event string) *ws.Subscription
}

type Terminal struct {
	ch   Channel
	out  io.Writer
	size Size
}

func NewTerminal(ch Channel, out io.Writer, size Size) *Terminal {
	if size.Cols <= 0 {
		size.Cols = 80
	}
	if size.Rows <= 0 {
		size.Rows = 24
	}
	return &Terminal{ch: ch, out: out, size: size}
}

// Run starts the tail and copies output until ctx ends or the connection
// closes. A closed connection is reported as ws.ErrClosed.
func (t *Terminal) Run(ctx context.Context) error {
	sub := t.ch.Subscribe(EventStdout)
	defer sub.Close()

	if err := t.ch.Emit(EventTailLog, t.size); err != nil {
		return fmt.Errorf("failed to start log tail: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-sub.C():
			if !ok {
				return ws.ErrClosed
			}
			var chunk string
			if err := json.Unmarshal(data, &chunk); err != nil {
				log.Warn().Err(err).Msg("ignoring non-text log frame")
				continue
			}
			if _, err := io.WriteString(t.out, chunk); err != nil {
				return fmt.Errorf("failed to write log output: %w", err)
			}
		}
	}
}

// Resize tells the server the terminal geometry changed.
func (t *Terminal) Resize(size Size) error {
	t.size = size
	return t.ch.Emit(EventResize, size)
}
