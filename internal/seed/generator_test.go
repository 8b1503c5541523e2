// ABOUTME: Tests for the static catalog and derived bridge identities.

package seed

import (
	"context"
	"regexp"
	"testing"
)

func TestStaticCatalog(t *testing.T) {
	c, err := Static().Generate(context.Background(), 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(c.Plugins) != len(staticPluginIdeas) {
		t.Errorf("plugins = %d, want %d", len(c.Plugins), len(staticPluginIdeas))
	}
	if len(c.ChildBridges) == 0 {
		t.Fatal("expected child bridges")
	}
	if len(c.Users) == 0 || !c.Users[0].Admin {
		t.Error("expected an admin user first")
	}
	if len(c.LogLines) == 0 {
		t.Error("expected a log backlog")
	}

	byName := map[string]PluginData{}
	for _, p := range c.Plugins {
		byName[p.Name] = p
	}
	hue := byName["homebridge-hue"]
	if len(hue.Configs) != 1 || hue.Configs[0]["platform"] != "Hue" {
		t.Errorf("hue configs = %v", hue.Configs)
	}
	bridge, ok := hue.Configs[0]["_bridge"].(map[string]any)
	if !ok || bridge["username"] != BridgeUsername("homebridge-hue") {
		t.Errorf("hue _bridge = %v", hue.Configs[0]["_bridge"])
	}
	if len(byName["homebridge-roomba-stv"].Configs) != 0 {
		t.Error("plugin without platform or accessory should be unconfigured")
	}
	if len(byName["homebridge-z2m"].Configs) != 0 || byName["homebridge-z2m"].InstalledVersion != "" {
		t.Error("search-only plugin should not be installed or configured")
	}

	for _, b := range c.ChildBridges {
		if b.Plugin == "homebridge-ring" && b.Paired {
			t.Error("ring bridge should be unpaired")
		}
	}
}

func TestStaticIdeasLimit(t *testing.T) {
	if got := len(staticIdeas(5)); got != 5 {
		t.Errorf("staticIdeas(5) = %d", got)
	}
	if got := len(staticIdeas(1)); got != 2 {
		t.Errorf("staticIdeas(1) = %d, want 2", got)
	}
}

func TestBridgeIdentityFormat(t *testing.T) {
	mac := regexp.MustCompile(`^0E(:[0-9A-F]{2}){5}$`)
	pin := regexp.MustCompile(`^\d{3}-\d{2}-\d{3}$`)
	for _, name := range []string{"homebridge-hue", "homebridge-ring", "@scope/x"} {
		if u := BridgeUsername(name); !mac.MatchString(u) {
			t.Errorf("BridgeUsername(%q) = %q", name, u)
		}
		if p := BridgePin(name); !pin.MatchString(p) {
			t.Errorf("BridgePin(%q) = %q", name, p)
		}
		if BridgeUsername(name) != BridgeUsername(name) {
			t.Error("usernames must be stable")
		}
	}
}

func TestBuildCatalogDedupes(t *testing.T) {
	c := buildCatalog([]pluginIdea{
		{Name: "a", InstalledVersion: "1.0.0", Platform: "A", ChildBridge: true},
		{Name: "a", InstalledVersion: "2.0.0"},
		{Name: ""},
	})
	if len(c.Plugins) != 1 || c.Plugins[0].InstalledVersion != "1.0.0" {
		t.Errorf("plugins = %+v", c.Plugins)
	}
	if c.Plugins[0].LatestVersion != "1.0.0" {
		t.Error("missing latest version should default to installed")
	}
	if len(c.ChildBridges) != 1 {
		t.Errorf("bridges = %+v", c.ChildBridges)
	}
}
