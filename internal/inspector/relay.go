// Package inspector bridges the remote-debugging engine embedded in a
// sandboxed preview frame and a host inspector panel. Frames flow through a
// relay that tags its own housekeeping requests, flattens console output
// into display strings, and resynchronizes the host view after a reload.
package inspector

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// hmrLogTag marks hot-reload client log lines. Console frames carrying it
// are not surfaced as application logs.
const hmrLogTag = "[preview-hmr]"

// activationMethods is the fixed sequence issued to the engine when the
// host signals it has loaded, enabling every domain the panel relies on.
var activationMethods = []string{
	"Page.enable",
	"Network.enable",
	"Runtime.enable",
	"Debugger.enable",
	"DOMStorage.enable",
	"DOM.enable",
	"CSS.enable",
	"Overlay.enable",
}

// Event names on the host→relay direction.
const (
	HostEventDev    = "DEV"
	HostEventLoaded = "LOADED"
)

// HostMessage is one inbound frame from the host panel.
type HostMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ConsoleLog is the flattened console event sent to the host in place of a
// raw console-API frame's argument list.
type ConsoleLog struct {
	Type      string `json:"type"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// readyAnnouncement is sent to the host exactly once per relay.
type readyAnnouncement struct {
	Type string `json:"type"`
}

// Sink delivers one JSON frame to a transport. Send errors terminate the
// frame, not the relay.
type Sink func(frame []byte) error

// Relay is the bridge for one preview frame. HandleEngineFrame and
// HandleHostMessage may be called from different goroutines.
type Relay struct {
	toHost   Sink
	toEngine Sink

	mu sync.Mutex

	// idPrefix namespaces request ids this relay assigns, so locally
	// originated acks are recognizable among the host's own traffic.
	idPrefix string
	nextID   int
	localIDs map[string]struct{}

	// pending holds engine frames produced before a host attached.
	pending [][]byte
	hostUp  bool

	readyOnce sync.Once
}

// NewRelay creates a relay wired to the given transports.
//
// Parameters:
//   - toHost: Sink delivering frames to the host panel
//   - toEngine: Sink delivering frames to the embedded debugging engine
//
// Returns:
//   - *Relay: A relay ready to receive frames
func NewRelay(toHost, toEngine Sink) *Relay {
	return &Relay{
		toHost:   toHost,
		toEngine: toEngine,
		idPrefix: "relay-" + uuid.NewString()[:8],
		localIDs: make(map[string]struct{}),
	}
}

// AnnounceReady sends the one-time initialization signal to the host and
// flushes any engine frames buffered before the host attached.
func (r *Relay) AnnounceReady() {
	r.readyOnce.Do(func() {
		frame, _ := json.Marshal(readyAnnouncement{Type: "__chobitsu-ready"})
		_ = r.toHost(frame)
	})

	r.mu.Lock()
	r.hostUp = true
	buffered := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, f := range buffered {
		_ = r.toHost(f)
	}
}

// HandleEngineFrame processes one outbound frame from the debugging engine.
// Acks for the relay's own requests are dropped; console-API frames
// additionally produce a flattened log event; everything else is forwarded
// verbatim. Frames that fail to parse are forwarded unmodified.
func (r *Relay) HandleEngineFrame(frame []byte) {
	if !gjson.ValidBytes(frame) {
		r.forward(frame)
		return
	}
	parsed := gjson.ParseBytes(frame)

	if id := parsed.Get("id"); id.Exists() && r.consumeLocalID(id.String()) {
		return
	}

	if parsed.Get("method").String() == "Runtime.consoleAPICalled" {
		if logEvent, ok := r.flattenConsole(parsed.Get("params")); ok {
			r.forward(logEvent)
		}
	}

	r.forward(frame)
}

// HandleHostMessage processes one inbound frame from the host panel.
//
// Parameters:
//   - data: The raw JSON frame
//
// Returns:
//   - error: Non-nil when the frame is not a recognized host message
func (r *Relay) HandleHostMessage(data []byte) error {
	var msg HostMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse host message: %w", err)
	}

	switch msg.Event {
	case HostEventDev:
		if len(msg.Data) > 0 {
			return r.toEngine(msg.Data)
		}
		return nil
	case HostEventLoaded:
		r.activate()
		return nil
	default:
		return fmt.Errorf("unknown host event %q", msg.Event)
	}
}

// activate issues the domain-enable sequence to the engine and announces a
// synthetic navigation pair so the host resynchronizes its document view
// without a real navigation.
func (r *Relay) activate() {
	for _, method := range activationMethods {
		frame, err := sjson.SetBytes([]byte(`{}`), "id", r.issueID())
		if err != nil {
			continue
		}
		frame, err = sjson.SetBytes(frame, "method", method)
		if err != nil {
			continue
		}
		_ = r.toEngine(frame)
	}

	nav, _ := sjson.SetBytes([]byte(`{"method":"Page.frameNavigated"}`),
		"params.frame.id", uuid.NewString())
	r.forward(nav)
	r.forward([]byte(`{"method":"DOM.documentUpdated","params":{}}`))
}

// flattenConsole turns a console-API params object into a single log event.
// The second return is false when the line is internally tagged and should
// not be surfaced.
func (r *Relay) flattenConsole(params gjson.Result) ([]byte, bool) {
	var parts []string
	for _, arg := range params.Get("args").Array() {
		parts = append(parts, displayString(arg))
	}
	message := strings.Join(parts, " ")
	if strings.HasPrefix(message, hmrLogTag) {
		return nil, false
	}

	ts := int64(params.Get("timestamp").Float())
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	frame, err := json.Marshal(ConsoleLog{
		Type:      "__console-log",
		Level:     consoleLevel(params.Get("type").String()),
		Message:   message,
		Timestamp: ts,
	})
	if err != nil {
		return nil, false
	}
	return frame, true
}

// displayString renders one remote-object console argument: string values
// verbatim, undefined literalized, other primitives stringified, and
// everything else by description or type name.
func displayString(arg gjson.Result) string {
	switch arg.Get("type").String() {
	case "string":
		return arg.Get("value").String()
	case "undefined":
		return "undefined"
	case "number", "boolean", "bigint", "symbol":
		if v := arg.Get("value"); v.Exists() {
			return v.String()
		}
		return arg.Get("description").String()
	default:
		if d := arg.Get("description"); d.Exists() {
			return d.String()
		}
		return arg.Get("type").String()
	}
}

// consoleLevel maps a console-API call type onto the host log levels.
func consoleLevel(callType string) string {
	switch callType {
	case "warning":
		return "warn"
	case "error", "assert":
		return "error"
	case "debug":
		return "debug"
	case "info":
		return "info"
	default:
		return "log"
	}
}

// issueID assigns a fresh locally-scoped request id and records it so the
// matching ack can be dropped.
func (r *Relay) issueID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := fmt.Sprintf("%s-%d", r.idPrefix, r.nextID)
	r.localIDs[id] = struct{}{}
	return id
}

// consumeLocalID reports whether id was issued by this relay, removing it
// so each ack is dropped at most once.
func (r *Relay) consumeLocalID(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.localIDs[id]; !ok {
		return false
	}
	delete(r.localIDs, id)
	return true
}

// forward delivers one frame to the host, buffering while no host is
// attached yet.
func (r *Relay) forward(frame []byte) {
	r.mu.Lock()
	if !r.hostUp {
		r.pending = append(r.pending, frame)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	_ = r.toHost(frame)
}
