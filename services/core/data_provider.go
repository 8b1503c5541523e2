// ABOUTME: Optional DataProvider interface for exposing service data to admin UI
// ABOUTME: Services implement this to enable admin viewing of their resources

package core

import "context"

// DataProvider is an optional interface that services can implement
// to expose their data to the admin UI in a standardized way
type DataProvider interface {
	Service
	ListResources(ctx context.Context, resourceSlug string, opts ListOptions) ([]map[string]any, error)
	GetResource(ctx context.Context, resourceSlug string, id string) (map[string]any, error)
}

// ListOptions provides pagination options for listing resources
type ListOptions struct {
	Limit  int
	Offset int
}
