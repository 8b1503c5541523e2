// ABOUTME: File capture for log output.
// ABOUTME: Paths ending in .lz4 are written as an lz4 frame stream.

package logs

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4"
)

type capture struct {
	file *os.File
	lz   *lz4.Writer
}

// OpenCapture creates path for writing log output.
func OpenCapture(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file: %w", err)
	}
	c := &capture{file: f}
	if strings.HasSuffix(strings.ToLower(path), ".lz4") {
		c.lz = lz4.NewWriter(f)
	}
	return c, nil
}

func (c *capture) Write(p []byte) (int, error) {
	if c.lz != nil {
		return c.lz.Write(p)
	}
	return c.file.Write(p)
}

func (c *capture) Close() error {
	if c.lz != nil {
		if err := c.lz.Close(); err != nil {
			c.file.Close()
			return fmt.Errorf("failed to flush lz4 stream: %w", err)
		}
	}
	return c.file.Close()
}

// OpenReplay opens a capture file for reading, decompressing .lz4 files.
func OpenReplay(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".lz4") {
		return f, nil
	}
	return struct {
		io.Reader
		io.Closer
	}{lz4.NewReader(f), f}, nil
}
