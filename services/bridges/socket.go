// ABOUTME: Socket handlers for the child-bridges namespace.
// ABOUTME: Control events change the stored status and broadcast the new row.

package bridges

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/2389/hbx/internal/childbridge"
	"github.com/2389/hbx/internal/ws"
)

func (s *Service) handleGetStatus(ctx context.Context, sess *ws.Session, data json.RawMessage) (any, error) {
	return s.store.ListBridges()
}

func (s *Service) handleMonitor(ctx context.Context, sess *ws.Session, data json.RawMessage) (any, error) {
	sess.Watch(childbridge.EventStatusUpdate)
	log.Debug().Str("user", sess.User).Msg("session monitoring child bridges")
	return nil, nil
}

func (s *Service) handleRestart(ctx context.Context, sess *ws.Session, data json.RawMessage) (any, error) {
	username, err := decodeUsername(data)
	if err != nil {
		return nil, err
	}
	row, err := s.transition(username, func(b *childbridge.Status) {
		b.Status = childbridge.StatePending
		b.ManuallyStopped = false
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("username", username).Str("user", sess.User).Msg("restarting child bridge")
	s.settle(username, row.PID+100)
	return nil, nil
}

func (s *Service) handleStop(ctx context.Context, sess *ws.Session, data json.RawMessage) (any, error) {
	username, err := decodeUsername(data)
	if err != nil {
		return nil, err
	}
	_, err = s.transition(username, func(b *childbridge.Status) {
		b.Status = childbridge.StateDown
		b.ManuallyStopped = true
		b.PID = 0
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("username", username).Str("user", sess.User).Msg("stopped child bridge")
	return nil, nil
}

func (s *Service) handleStart(ctx context.Context, sess *ws.Session, data json.RawMessage) (any, error) {
	username, err := decodeUsername(data)
	if err != nil {
		return nil, err
	}
	_, err = s.transition(username, func(b *childbridge.Status) {
		b.Status = childbridge.StatePending
		b.ManuallyStopped = false
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("username", username).Str("user", sess.User).Msg("starting child bridge")
	s.settle(username, 3000+len(username))
	return nil, nil
}

// transition updates a bridge row and broadcasts the result.
func (s *Service) transition(username string, fn func(*childbridge.Status)) (*childbridge.Status, error) {
	row, err := s.store.UpdateBridge(username, fn)
	if errors.Is(err, ErrNotFound) {
		return nil, &ws.FrameError{Code: "not_found", Message: "unknown child bridge " + username}
	}
	if err != nil {
		return nil, err
	}
	s.socket.Broadcast(childbridge.EventStatusUpdate, row)
	s.observe()
	return row, nil
}

// settle moves a pending bridge to ok after the restart delay.
func (s *Service) settle(username string, pid int) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.restartDelay):
		}
		_, err := s.transition(username, func(b *childbridge.Status) {
			if b.Status == childbridge.StatePending {
				b.Status = childbridge.StateOK
				b.PID = pid
			}
		})
		if err != nil {
			log.Warn().Err(err).Str("username", username).Msg("child bridge failed to settle")
		}
	}()
}

// decodeUsername reads the bare JSON string payload of a control event.
func decodeUsername(data json.RawMessage) (string, error) {
	var username string
	if err := json.Unmarshal(data, &username); err != nil || username == "" {
		return "", &ws.FrameError{Code: "invalid_payload", Message: "payload must be a child bridge username"}
	}
	return username, nil
}
