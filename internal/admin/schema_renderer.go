// ABOUTME: Schema-based HTML renderer for service resources.
// ABOUTME: Generates Tailwind-styled tables, detail lists and htmx action buttons.

package admin

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/2389/hbx/services/core"
)

// RenderResourceList generates a table whose first column links to the
// detail page under base.
func RenderResourceList(schema core.ResourceSchema, resources []map[string]any, base string) string {
	var sb strings.Builder

	sb.WriteString(`<table class="min-w-full divide-y divide-gray-200">`)
	sb.WriteString(`<thead class="bg-gray-50"><tr>`)
	for _, col := range schema.ListColumns {
		if field := findField(schema.Fields, col); field != nil {
			fmt.Fprintf(&sb, `<th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">%s</th>`,
				html.EscapeString(field.Display))
		}
	}
	if len(schema.Actions) > 0 {
		sb.WriteString(`<th class="px-6 py-3 text-right text-xs font-medium text-gray-500 uppercase">Actions</th>`)
	}
	sb.WriteString(`</tr></thead>`)

	sb.WriteString(`<tbody class="bg-white divide-y divide-gray-200">`)
	if len(resources) == 0 {
		fmt.Fprintf(&sb, `<tr><td colspan="%d" class="px-6 py-4 text-sm text-gray-400">Nothing here yet</td></tr>`,
			len(schema.ListColumns)+1)
	}
	for _, resource := range resources {
		id := formatValue(resource["id"])
		sb.WriteString(`<tr>`)
		for i, col := range schema.ListColumns {
			field := findField(schema.Fields, col)
			if field == nil {
				continue
			}
			cell := html.EscapeString(formatCell(field.Type, resource[col]))
			if i == 0 && base != "" && id != "" {
				cell = fmt.Sprintf(`<a class="text-blue-600 hover:text-blue-900" href="%s/%s">%s</a>`,
					html.EscapeString(base), html.EscapeString(url.PathEscape(id)), cell)
			}
			fmt.Fprintf(&sb, `<td class="px-6 py-4 whitespace-nowrap text-sm text-gray-900">%s</td>`, cell)
		}
		if len(schema.Actions) > 0 {
			sb.WriteString(`<td class="px-6 py-4 whitespace-nowrap text-right text-sm space-x-3">`)
			sb.WriteString(RenderActions(schema.Actions, id))
			sb.WriteString(`</td>`)
		}
		sb.WriteString(`</tr>`)
	}
	sb.WriteString(`</tbody></table>`)
	return sb.String()
}

// RenderResourceDetail generates a definition list of every schema field.
func RenderResourceDetail(schema core.ResourceSchema, data map[string]any) string {
	var sb strings.Builder

	sb.WriteString(`<dl class="divide-y divide-gray-200">`)
	for _, field := range schema.Fields {
		sb.WriteString(`<div class="px-6 py-4 grid grid-cols-3 gap-4">`)
		fmt.Fprintf(&sb, `<dt class="text-sm font-medium text-gray-500">%s</dt>`, html.EscapeString(field.Display))
		fmt.Fprintf(&sb, `<dd class="text-sm text-gray-900 col-span-2">%s</dd>`, formatDetailValue(field.Type, data[field.Name]))
		sb.WriteString(`</div>`)
	}
	sb.WriteString(`</dl>`)

	if id := formatValue(data["id"]); id != "" && len(schema.Actions) > 0 {
		sb.WriteString(`<div class="px-6 py-4 space-x-3">`)
		sb.WriteString(RenderActions(schema.Actions, id))
		sb.WriteString(`</div>`)
	}
	return sb.String()
}

// RenderActions generates buttons for actions. {id} and {name} in the
// endpoint are replaced with the escaped resource id.
func RenderActions(actions []core.ActionSchema, resourceID string) string {
	escaped := url.PathEscape(resourceID)
	var parts []string

	for _, action := range actions {
		endpoint := strings.NewReplacer("{id}", escaped, "{name}", escaped).Replace(action.Endpoint)
		label := html.EscapeString(capitalize(action.Name))

		if action.HTTPMethod == "GET" {
			parts = append(parts, fmt.Sprintf(`<a href="%s" class="text-blue-600 hover:text-blue-900">%s</a>`,
				html.EscapeString(endpoint), label))
			continue
		}

		confirm := ""
		if action.Confirm {
			confirm = fmt.Sprintf(` hx-confirm="%s?"`, html.EscapeString(capitalize(action.Name)))
		}
		class := "text-blue-600 hover:text-blue-900"
		if action.HTTPMethod == "DELETE" {
			class = "text-red-600 hover:text-red-900"
		}
		parts = append(parts, fmt.Sprintf(`<button %s="%s"%s class="%s">%s</button>`,
			htmxAttribute(action.HTTPMethod), html.EscapeString(endpoint), confirm, class, label))
	}
	return strings.Join(parts, " ")
}

func findField(fields []core.FieldSchema, name string) *core.FieldSchema {
	for i := range fields {
		if fields[i].Name == name {
			return &fields[i]
		}
	}
	return nil
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

func formatCell(fieldType string, value any) string {
	switch fieldType {
	case "bool":
		if isTruthy(value) {
			return "Yes"
		}
		return "No"
	case "datetime":
		if t, ok := value.(time.Time); ok {
			return t.Local().Format("2006-01-02 15:04:05")
		}
	}
	return formatValue(value)
}

func formatDetailValue(fieldType string, value any) string {
	s := formatCell(fieldType, value)
	if value == nil || s == "" {
		return `<span class="text-gray-400">No value</span>`
	}
	return html.EscapeString(s)
}

func isTruthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	case int:
		return v != 0
	case int64:
		return v != 0
	default:
		return false
	}
}

func htmxAttribute(method string) string {
	switch method {
	case "DELETE":
		return "hx-delete"
	case "PUT":
		return "hx-put"
	case "PATCH":
		return "hx-patch"
	default:
		return "hx-post"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
