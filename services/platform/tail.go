// ABOUTME: Log namespace handlers.
// ABOUTME: tail-log sends the backlog, then follows new lines until the session ends.

package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/2389/hbx/internal/logs"
	"github.com/2389/hbx/internal/store"
	"github.com/2389/hbx/internal/ws"
)

// formatLine renders a stored line the way the bridge prints it.
func formatLine(l store.LogLine) string {
	return fmt.Sprintf("[%s] %s\r\n", l.CreatedAt.Local().Format("1/2/2006, 3:04:05 PM"), l.Line)
}

// handleTail starts one follower per session. A repeated tail-log is ignored.
func (s *Service) handleTail(ctx context.Context, sess *ws.Session, data json.RawMessage) (any, error) {
	var size logs.Size
	if len(data) > 0 {
		if err := json.Unmarshal(data, &size); err != nil {
			return nil, &ws.FrameError{Code: "invalid_payload", Message: "tail-log expects {cols, rows}"}
		}
	}

	s.mu.Lock()
	if s.tailing[sess] {
		s.mu.Unlock()
		return nil, nil
	}
	s.tailing[sess] = true
	s.mu.Unlock()

	log.Debug().Str("user", sess.User).Int("cols", size.Cols).Int("rows", size.Rows).Msg("log tail started")
	s.wg.Add(1)
	go s.follow(sess)
	return nil, nil
}

func (s *Service) handleResize(ctx context.Context, sess *ws.Session, data json.RawMessage) (any, error) {
	var size logs.Size
	if err := json.Unmarshal(data, &size); err != nil {
		return nil, &ws.FrameError{Code: "invalid_payload", Message: "resize expects {cols, rows}"}
	}
	log.Debug().Str("user", sess.User).Int("cols", size.Cols).Int("rows", size.Rows).Msg("log terminal resized")
	return nil, nil
}

func (s *Service) follow(sess *ws.Session) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.tailing, sess)
		s.mu.Unlock()
	}()

	lines, err := s.logs.TailLogLines(s.backlog)
	if err != nil {
		log.Error().Err(err).Msg("failed to read log backlog")
		return
	}
	var last int64
	for _, l := range lines {
		if err := sess.Push(logs.EventStdout, formatLine(l)); err != nil {
			return
		}
		last = l.ID
	}

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		select {
		case <-sess.Context().Done():
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			lines, err := s.logs.LogLinesAfter(last)
			if err != nil {
				log.Warn().Err(err).Msg("failed to poll log lines")
				continue
			}
			for _, l := range lines {
				if err := sess.Push(logs.EventStdout, formatLine(l)); err != nil {
					return
				}
				last = l.ID
			}
		}
	}
}
