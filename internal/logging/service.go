// ABOUTME: Service detection for request logging.
// ABOUTME: Maps an API path to the fake-server service that owns it.

package logging

import "strings"

var servicePrefixes = []struct {
	prefix  string
	service string
}{
	{"/api/auth/", "accounts"},
	{"/api/users", "accounts"},
	{"/api/plugins", "plugins"},
	{"/api/config-editor/", "plugins"},
	{"/api/server/", "bridges"},
	{"/ws/child-bridges", "bridges"},
	{"/api/platform-tools/", "platform"},
	{"/api/status/", "platform"},
	{"/ws/log", "platform"},
}

// GetServiceFromPath determines which service handles a given path
func GetServiceFromPath(path string) string {
	for _, p := range servicePrefixes {
		if strings.HasPrefix(path, p.prefix) {
			return p.service
		}
	}
	return "unknown"
}
