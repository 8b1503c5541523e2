// ABOUTME: Tests for the schema-based HTML renderer.
// ABOUTME: Field formatting, escaping and action buttons.

package admin

import (
	"strings"
	"testing"
	"time"

	"github.com/2389/hbx/services/core"
)

var bridgeSchema = core.ResourceSchema{
	Name: "Child Bridges",
	Slug: "child-bridges",
	Fields: []core.FieldSchema{
		{Name: "name", Type: "string", Display: "Name"},
		{Name: "paired", Type: "bool", Display: "Paired"},
		{Name: "updated", Type: "datetime", Display: "Updated"},
	},
	ListColumns: []string{"name", "paired"},
	Actions: []core.ActionSchema{
		{Name: "restart", HTTPMethod: "POST", Endpoint: "/api/child-bridges/{id}/restart"},
		{Name: "delete", HTTPMethod: "DELETE", Endpoint: "/api/child-bridges/{id}", Confirm: true},
	},
}

func TestRenderResourceList(t *testing.T) {
	tests := []struct {
		name      string
		resources []map[string]any
		want      []string
		notWant   []string
	}{
		{
			name: "rows with links and actions",
			resources: []map[string]any{
				{"id": "0E:11", "name": "Hue <Bridge>", "paired": true},
			},
			want: []string{
				`<th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Name</th>`,
				`<th class="px-6 py-3 text-right text-xs font-medium text-gray-500 uppercase">Actions</th>`,
				`href="/admin/x/0E:11"`,
				`Hue &lt;Bridge&gt;`,
				`>Yes</td>`,
				`hx-post="/api/child-bridges/0E:11/restart"`,
			},
			notWant: []string{"<Bridge>", "Nothing here yet"},
		},
		{
			name:      "empty list",
			resources: nil,
			want:      []string{"Nothing here yet", `colspan="3"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderResourceList(bridgeSchema, tt.resources, "/admin/x")
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("missing %q in:\n%s", want, got)
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(got, notWant) {
					t.Errorf("unexpected %q in:\n%s", notWant, got)
				}
			}
		})
	}
}

func TestRenderResourceDetail(t *testing.T) {
	when := time.Date(2026, 10, 16, 12, 0, 0, 0, time.Local)
	got := RenderResourceDetail(bridgeSchema, map[string]any{
		"id":      "0E:11",
		"name":    "Hue",
		"paired":  false,
		"updated": when,
	})

	for _, want := range []string{
		`<dt class="text-sm font-medium text-gray-500">Paired</dt>`,
		`<dd class="text-sm text-gray-900 col-span-2">No</dd>`,
		"2026-10-16 12:00:00",
		`hx-delete="/api/child-bridges/0E:11"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}

	empty := RenderResourceDetail(bridgeSchema, map[string]any{})
	if strings.Count(empty, "No value") != 3 {
		t.Errorf("expected a placeholder for every missing field, got:\n%s", empty)
	}
	if strings.Contains(empty, "hx-") {
		t.Error("actions need an id")
	}
}

func TestRenderActions(t *testing.T) {
	tests := []struct {
		name   string
		action core.ActionSchema
		want   string
	}{
		{"get link", core.ActionSchema{Name: "view", HTTPMethod: "GET", Endpoint: "/x/{id}"}, `<a href="/x/a%2Fb" class="text-blue-600 hover:text-blue-900">View</a>`},
		{"put", core.ActionSchema{Name: "enable", HTTPMethod: "PUT", Endpoint: "/p/{name}/enable"}, `hx-put="/p/a%2Fb/enable"`},
		{"patch", core.ActionSchema{Name: "edit", HTTPMethod: "PATCH", Endpoint: "/u/{id}"}, `hx-patch="/u/a%2Fb"`},
		{"delete confirm", core.ActionSchema{Name: "delete", HTTPMethod: "DELETE", Endpoint: "/u/{id}", Confirm: true}, `hx-confirm="Delete?" class="text-red-600 hover:text-red-900"`},
		{"unknown method", core.ActionSchema{Name: "poke", HTTPMethod: "OPTIONS", Endpoint: "/p"}, `hx-post="/p"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderActions([]core.ActionSchema{tt.action}, "a/b")
			if !strings.Contains(got, tt.want) {
				t.Errorf("RenderActions() = %s, want substring %s", got, tt.want)
			}
		})
	}
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{true, true}, {false, false}, {"true", true}, {"1", true}, {"no", false},
		{1, true}, {0, false}, {int64(2), true}, {nil, false}, {3.5, false},
	}
	for _, tt := range tests {
		if got := isTruthy(tt.in); got != tt.want {
			t.Errorf("isTruthy(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
