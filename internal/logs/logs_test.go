// ABOUTME: Tests for the log terminal and capture files.

package logs

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/2389/hbx/internal/ws"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTerminalStreamsTail(t *testing.T) {
	srv := ws.NewServer(Namespace)
	sizes := make(chan Size, 2)
	srv.Handle(EventTailLog, func(ctx context.Context, sess *ws.Session, data json.RawMessage) (any, error) {
		var s Size
		json.Unmarshal(data, &s)
		sizes <- s
		sess.Push(EventStdout, "line one\r\n")
		sess.Push(EventStdout, "line two\r\n")
		return nil, nil
	})
	srv.Handle(EventResize, func(ctx context.Context, sess *ws.Session, data json.RawMessage) (any, error) {
		var s Size
		json.Unmarshal(data, &s)
		sizes <- s
		return nil, nil
	})
	hs := httptest.NewServer(srv)
	defer hs.Close()

	conn, err := ws.Dial(context.Background(), "ws"+strings.TrimPrefix(hs.URL, "http"))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	out := &syncBuffer{}
	term := NewTerminal(conn, out, Size{Cols: 120})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- term.Run(ctx) }()

	select {
	case s := <-sizes:
		if s.Cols != 120 || s.Rows != 24 {
			t.Errorf("tail size = %+v", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tail-log never requested")
	}

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "line two") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := out.String(); got != "line one\r\nline two\r\n" {
		t.Errorf("output = %q", got)
	}

	if err := term.Resize(Size{Cols: 100, Rows: 40}); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	select {
	case s := <-sizes:
		if s.Cols != 100 || s.Rows != 40 {
			t.Errorf("resize = %+v", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("resize never received")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run = %v", err)
	}
}

func TestCaptureRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"plain.log", "packed.log.lz4"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			w, err := OpenCapture(path)
			if err != nil {
				t.Fatalf("OpenCapture: %v", err)
			}
			text := strings.Repeat("[homebridge] Loaded plugin: homebridge-hue\n", 50)
			io.WriteString(w, text)
			if err := w.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			raw, _ := os.ReadFile(path)
			if strings.HasSuffix(name, ".lz4") && bytes.Contains(raw, []byte("Loaded plugin")) && len(raw) >= len(text) {
				t.Error("lz4 capture does not look compressed")
			}

			r, err := OpenReplay(path)
			if err != nil {
				t.Fatalf("OpenReplay: %v", err)
			}
			defer r.Close()
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if string(got) != text {
				t.Errorf("round trip mismatch: %d bytes vs %d", len(got), len(text))
			}
		})
	}
}
