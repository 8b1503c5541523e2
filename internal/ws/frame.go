// ABOUTME: JSON frame format shared by the namespace client and server.
// ABOUTME: Frames are emits, point requests, their responses, or pushed events.

package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512 * 1024 // 512 KB
	sendBuffer     = 256
)

type FrameType string

const (
	TypeEmit     FrameType = "emit"
	TypeRequest  FrameType = "request"
	TypeResponse FrameType = "response"
	TypeEvent    FrameType = "event"
)

// Frame is one message on a namespace connection. ID pairs a request with
// its response and is zero otherwise.
type Frame struct {
	Type  FrameType       `json:"type"`
	ID    int64           `json:"id,omitempty"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *FrameError     `json:"error,omitempty"`
}

// FrameError is carried by a response whose handler failed.
type FrameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrClosed is returned by operations on a closed connection.
var ErrClosed = errors.New("ws: connection closed")

func encodeFrame(typ FrameType, id int64, event string, payload any) ([]byte, error) {
	f := Frame{Type: typ, ID: id, Event: event}
	if payload != nil {
		if raw, ok := payload.(json.RawMessage); ok {
			f.Data = raw
		} else {
			data, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("failed to encode %s payload: %w", event, err)
			}
			f.Data = data
		}
	}
	return json.Marshal(f)
}
