// Package broadcast coordinates hot-reload update delivery for project
// sessions.
//
// One Session exists per active project; it owns the monotonically
// increasing broadcast version counter and the registry of connected
// channels. File-change batches enter through NotifyChange and leave as
// versioned broadcasts pushed to every connected reload client.
package broadcast

import "encoding/json"

// Message kinds on the HMR channel (server → client).
const (
	KindUpdate      = "update"
	KindFullReload  = "full-reload"
	KindServerError = "server-error"
	KindPong        = "pong"
)

// Message kinds on the HMR channel (client → server).
const (
	KindConnect = "hmr-connect"
	KindPing    = "ping"
)

// Error type discriminators carried by server-error broadcasts.
const (
	// ErrorTypeBundle marks transform/compile failures. Clients show a
	// blocking overlay only for these.
	ErrorTypeBundle = "bundle"

	// ErrorTypeRuntime marks errors observed at runtime; never an overlay.
	ErrorTypeRuntime = "runtime"
)

// UpdateKind classifies one unit of change.
const (
	UpdateCSS = "css"
	UpdateJS  = "js"
)

// Update is one unit of change inside an update broadcast.
type Update struct {
	// Kind is "js" or "css".
	Kind string `json:"kind"`

	// Path is the served root-relative path of the changed file.
	Path string `json:"path"`

	// Timestamp is a cache-busting value, not wall-clock-sensitive.
	Timestamp int64 `json:"timestamp"`
}

// ErrorPayload describes a server-side failure pushed to clients.
type ErrorPayload struct {
	// Type is "bundle" or "runtime".
	Type string `json:"type"`

	// Message is the human-readable failure description.
	Message string `json:"message"`

	// Path is the file the failure originated from, when known.
	Path string `json:"path,omitempty"`

	// Overlay is true when the client should show a blocking overlay.
	Overlay bool `json:"overlay"`
}

// Broadcast is the wire message pushed to reload clients. Version is
// always the session counter value after incrementing for this broadcast.
type Broadcast struct {
	// Kind is "update", "full-reload", "server-error", or "pong".
	Kind string `json:"kind"`

	// Version is the session's post-increment counter value.
	Version int64 `json:"version"`

	// Updates carries per-file changes for "update" broadcasts only.
	Updates []Update `json:"updates,omitempty"`

	// Error carries failure detail for "server-error" broadcasts only.
	Error *ErrorPayload `json:"error,omitempty"`
}

// ClientMessage is a message received from a reload client.
type ClientMessage struct {
	// Kind is "hmr-connect" or "ping".
	Kind string `json:"kind"`

	// LastSeenVersion is the highest broadcast version the client saw
	// before (re)connecting. Nil on a fresh page load.
	LastSeenVersion *int64 `json:"lastSeenVersion,omitempty"`
}

// Encode marshals a broadcast for the wire.
func (b Broadcast) Encode() []byte {
	data, _ := json.Marshal(b)
	return data
}
