// ABOUTME: Tests for the plugins store.
// ABOUTME: Covers upsert, search ordering, config blocks and semver updates.

package plugins

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/2389/hbx/internal/store"
)

func setupTestStore(t *testing.T) *PluginStore {
	t.Helper()
	db, err := store.New(filepath.Join(t.TempDir(), "plugins.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewPluginStore(db.DB())
	if err != nil {
		t.Fatalf("failed to create plugin store: %v", err)
	}
	return s
}

func TestUpsertAndGetPlugin(t *testing.T) {
	s := setupTestStore(t)

	p := &Plugin{Name: "homebridge-hue", DisplayName: "Hue", InstalledVersion: "1.0.0", LatestVersion: "1.1.0"}
	if err := s.UpsertPlugin(p); err != nil {
		t.Fatalf("UpsertPlugin failed: %v", err)
	}

	p.DisplayName = "Homebridge Hue"
	if err := s.UpsertPlugin(p); err != nil {
		t.Fatalf("second UpsertPlugin failed: %v", err)
	}

	got, err := s.GetPlugin("homebridge-hue")
	if err != nil {
		t.Fatalf("GetPlugin failed: %v", err)
	}
	if got.DisplayName != "Homebridge Hue" {
		t.Errorf("DisplayName = %q, want updated value", got.DisplayName)
	}
	if !got.UpdateAvailable() {
		t.Error("expected update to be available")
	}

	if _, err := s.GetPlugin("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPlugin(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpdateAvailable(t *testing.T) {
	tests := []struct {
		name      string
		installed string
		latest    string
		want      bool
	}{
		{"newer patch", "1.0.0", "1.0.1", true},
		{"same", "1.0.0", "1.0.0", false},
		{"older", "2.0.0", "1.9.9", false},
		{"not installed", "", "1.0.0", false},
		{"prerelease not offered", "1.0.0", "1.1.0-beta.1", false},
		{"prerelease to prerelease", "1.1.0-beta.1", "1.1.0-beta.2", true},
		{"invalid version", "latest", "1.0.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Plugin{InstalledVersion: tt.installed, LatestVersion: tt.latest}
			if got := p.UpdateAvailable(); got != tt.want {
				t.Errorf("UpdateAvailable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListInstalledAndCount(t *testing.T) {
	s := setupTestStore(t)
	s.UpsertPlugin(&Plugin{Name: "b-installed", InstalledVersion: "1.0.0"})
	s.UpsertPlugin(&Plugin{Name: "a-installed", InstalledVersion: "1.0.0"})
	s.UpsertPlugin(&Plugin{Name: "c-search-only", LatestVersion: "1.0.0"})

	list, err := s.ListInstalled()
	if err != nil {
		t.Fatalf("ListInstalled failed: %v", err)
	}
	if len(list) != 2 || list[0].Name != "a-installed" || list[1].Name != "b-installed" {
		t.Fatalf("unexpected installed list: %+v", list)
	}

	installed, total, err := s.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if installed != 2 || total != 3 {
		t.Errorf("Count = (%d, %d), want (2, 3)", installed, total)
	}
}

func TestSearchOrdering(t *testing.T) {
	s := setupTestStore(t)
	s.UpsertPlugin(&Plugin{Name: "homebridge-hue-lights", Description: "lights"})
	s.UpsertPlugin(&Plugin{Name: "homebridge-deconz", Description: "Hue compatible", Verified: true})
	s.UpsertPlugin(&Plugin{Name: "hue", Description: "exact"})
	s.UpsertPlugin(&Plugin{Name: "homebridge-ring"})

	list, err := s.Search("Hue", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	var names []string
	for _, p := range list {
		names = append(names, p.Name)
	}
	want := []string{"hue", "homebridge-deconz", "homebridge-hue-lights"}
	if len(names) != len(want) {
		t.Fatalf("Search names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Search names = %v, want %v", names, want)
		}
	}
}

func TestSearchEscapesWildcards(t *testing.T) {
	s := setupTestStore(t)
	s.UpsertPlugin(&Plugin{Name: "homebridge-100%"})
	s.UpsertPlugin(&Plugin{Name: "homebridge-1000"})

	list, err := s.Search("100%", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(list) != 1 || list[0].Name != "homebridge-100%" {
		t.Fatalf("expected only the literal match, got %+v", list)
	}
}

func TestConfigBlocks(t *testing.T) {
	s := setupTestStore(t)
	s.UpsertPlugin(&Plugin{Name: "homebridge-hue", InstalledVersion: "1.0.0"})

	blocks, err := s.ConfigBlocks("homebridge-hue")
	if err != nil {
		t.Fatalf("ConfigBlocks failed: %v", err)
	}
	if blocks == nil || len(blocks) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", blocks)
	}

	want := []map[string]any{
		{"platform": "Hue", "_bridge": map[string]any{"username": "0E:11:22:33:44:55"}},
		{"platform": "HueExtra"},
	}
	if err := s.ReplaceConfig("homebridge-hue", want); err != nil {
		t.Fatalf("ReplaceConfig failed: %v", err)
	}

	blocks, err = s.ConfigBlocks("homebridge-hue")
	if err != nil {
		t.Fatalf("ConfigBlocks failed: %v", err)
	}
	if len(blocks) != 2 || blocks[0]["platform"] != "Hue" || blocks[1]["platform"] != "HueExtra" {
		t.Fatalf("unexpected blocks: %#v", blocks)
	}
	bridge, _ := blocks[0]["_bridge"].(map[string]any)
	if bridge["username"] != "0E:11:22:33:44:55" {
		t.Errorf("bridge username not preserved: %#v", blocks[0])
	}

	if _, err := s.ConfigBlocks("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ConfigBlocks(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.ReplaceConfig("missing", want); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReplaceConfig(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSetDisabled(t *testing.T) {
	s := setupTestStore(t)
	s.UpsertPlugin(&Plugin{Name: "homebridge-myq", InstalledVersion: "1.0.0"})

	if err := s.SetDisabled("homebridge-myq", true); err != nil {
		t.Fatalf("SetDisabled failed: %v", err)
	}
	p, _ := s.GetPlugin("homebridge-myq")
	if !p.Disabled {
		t.Error("expected plugin to be disabled")
	}
	if err := s.SetDisabled("missing", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetDisabled(missing) error = %v, want ErrNotFound", err)
	}
}
