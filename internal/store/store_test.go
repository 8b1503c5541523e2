// ABOUTME: Tests for SQLite store initialization, request logs, and log lines.
// ABOUTME: Each test opens a fresh database in a temp directory.

package store

import (
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "hbx.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_AppliesMigrations(t *testing.T) {
	s := setupTestDB(t)

	for _, table := range []string{"schema_migrations", "request_logs", "server_log_lines"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}

	version, err := s.currentMigrationVersion()
	if err != nil {
		t.Fatalf("currentMigrationVersion() error = %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("version = %d, want %d", version, CurrentSchemaVersion)
	}
}

func TestNewStore_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hbx.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	s.Close()

	s, err = New(path)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer s.Close()

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != CurrentSchemaVersion {
		t.Errorf("expected %d migration rows, got %d", CurrentSchemaVersion, count)
	}
}

func TestRequestLogs_FilterAndStats(t *testing.T) {
	s := setupTestDB(t)

	entries := []*RequestLog{
		{ServiceName: "plugins", Method: "GET", Path: "/api/plugins", StatusCode: 200, DurationMs: 10},
		{ServiceName: "plugins", Method: "GET", Path: "/api/plugins/search/hue", StatusCode: 200, DurationMs: 20},
		{ServiceName: "bridges", Method: "DELETE", Path: "/api/server/pairings/0E1A/accessories", StatusCode: 404, DurationMs: 30},
	}
	for _, e := range entries {
		if err := s.LogRequest(e); err != nil {
			t.Fatalf("LogRequest() error = %v", err)
		}
	}

	logs, err := s.GetRequestLogs(&RequestLogQuery{ServiceName: "plugins"})
	if err != nil {
		t.Fatalf("GetRequestLogs() error = %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 plugin logs, got %d", len(logs))
	}
	if logs[0].Path != "/api/plugins/search/hue" {
		t.Errorf("expected newest first, got %s", logs[0].Path)
	}

	logs, err = s.GetRequestLogs(&RequestLogQuery{PathPrefix: "/api/server/"})
	if err != nil {
		t.Fatalf("GetRequestLogs() error = %v", err)
	}
	if len(logs) != 1 || logs[0].StatusCode != 404 {
		t.Errorf("unexpected prefix filter result: %+v", logs)
	}

	stats, err := s.GetRequestLogStats()
	if err != nil {
		t.Fatalf("GetRequestLogStats() error = %v", err)
	}
	if stats.TotalRequests != 3 || stats.ErrorRequests != 1 || stats.UniqueEndpoints != 3 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.AvgDurationMs != 20 {
		t.Errorf("AvgDurationMs = %d, want 20", stats.AvgDurationMs)
	}

	rate, err := s.GetServiceErrorRate("bridges", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetServiceErrorRate() error = %v", err)
	}
	if rate != 100 {
		t.Errorf("error rate = %v, want 100", rate)
	}
}

func TestLogLines_TailAndAfter(t *testing.T) {
	s := setupTestDB(t)

	var ids []int64
	for _, line := range []string{"one", "two", "three", "four"} {
		id, err := s.AppendLogLine("", line)
		if err != nil {
			t.Fatalf("AppendLogLine() error = %v", err)
		}
		ids = append(ids, id)
	}

	tail, err := s.TailLogLines(2)
	if err != nil {
		t.Fatalf("TailLogLines() error = %v", err)
	}
	if len(tail) != 2 || tail[0].Line != "three" || tail[1].Line != "four" {
		t.Errorf("unexpected tail: %+v", tail)
	}
	if tail[0].Source != "homebridge" {
		t.Errorf("expected default source, got %q", tail[0].Source)
	}

	after, err := s.LogLinesAfter(ids[1])
	if err != nil {
		t.Fatalf("LogLinesAfter() error = %v", err)
	}
	if len(after) != 2 || after[0].Line != "three" {
		t.Errorf("unexpected lines after %d: %+v", ids[1], after)
	}
}
