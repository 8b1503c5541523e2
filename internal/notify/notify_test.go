package notify

import (
	"bytes"
	"strings"
	"testing"
)

func TestConsolePrints(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Success(TitleSuccess, "")
	c.Error(TitleError, "Failed to load plugins")

	out := buf.String()
	if !strings.Contains(out, "✓ Success\n") {
		t.Errorf("missing success line in %q", out)
	}
	if !strings.Contains(out, "✗ Error: Failed to load plugins\n") {
		t.Errorf("missing error line in %q", out)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Success("a", "b")
	r.Error("c", "d")
	r.Error("e", "f")

	if r.Count(KindError) != 2 || r.Count(KindSuccess) != 1 {
		t.Errorf("unexpected counts: %+v", r.All())
	}
	if got := r.All()[0]; got.Title != "a" || got.Message != "b" {
		t.Errorf("unexpected first item: %+v", got)
	}
}
