// Package config provides URL construction helpers for the preview server.
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ChannelPath is the URL path of the HMR websocket endpoint.
const ChannelPath = "/__preview/hmr"

// HealthPath is the URL path of the health check endpoint.
const HealthPath = "/__preview/healthz"

// InspectorPath is the URL path of the inspector relay endpoint.
const InspectorPath = "/__preview/inspector"

// BaseURL returns the absolute serving base URL for this project,
// e.g. "http://localhost:7800/preview".
func (c *ProjectConfig) BaseURL() string {
	return fmt.Sprintf("http://localhost:%d%s", c.Server.Port, c.Server.BasePath)
}

// ChannelURL returns the websocket URL reload clients connect to.
//
// Parameters:
//   - projectID: The project session identifier
//
// Returns:
//   - string: The ws:// channel URL with the project query parameter set
func (c *ProjectConfig) ChannelURL(projectID string) string {
	return fmt.Sprintf("ws://localhost:%d%s?project=%s",
		c.Server.Port, ChannelPath, url.QueryEscape(projectID))
}

// JoinBase joins a served file path onto a base URL, avoiding duplicate
// slashes. The path is expected to be root-relative ("/src/app.ts").
func JoinBase(baseURL, path string) string {
	base := strings.TrimSuffix(baseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
