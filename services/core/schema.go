// ABOUTME: Schema definitions for admin UI generation.
// ABOUTME: Services define schemas, the admin package renders them.

package core

// ServiceSchema defines the admin UI for a service
type ServiceSchema struct {
	Resources []ResourceSchema
}

// ResourceSchema defines a resource (Plugins, Child Bridges, etc.)
type ResourceSchema struct {
	Name        string         // "Plugins", "Users"
	Slug        string         // "plugins", "users" (URL path)
	Fields      []FieldSchema  // What data to show
	Actions     []ActionSchema // Available operations
	ListColumns []string       // Which fields in list view
}

// FieldSchema defines a field in a resource
type FieldSchema struct {
	Name     string // "name", "status"
	Type     string // "string", "bool", "datetime", "text"
	Display  string // "Name", "Status"
	Required bool
	Editable bool
}

// ActionSchema defines an action on a resource
type ActionSchema struct {
	Name       string // "restart", "delete"
	HTTPMethod string // "POST", "DELETE"
	Endpoint   string // Template: "/users/{id}"
	Confirm    bool   // Show confirmation dialog?
}

// Find returns the resource with the given slug.
func (s ServiceSchema) Find(slug string) (*ResourceSchema, bool) {
	for i := range s.Resources {
		if s.Resources[i].Slug == slug {
			return &s.Resources[i], true
		}
	}
	return nil, false
}
