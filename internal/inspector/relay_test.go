package inspector

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/tidwall/gjson"
)

// frameRecorder collects frames written to one side of the relay.
type frameRecorder struct {
	mu     sync.Mutex
	frames []string
}

func (f *frameRecorder) sink(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, string(frame))
	return nil
}

func (f *frameRecorder) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.frames))
	copy(out, f.frames)
	return out
}

func newAttachedRelay() (*Relay, *frameRecorder, *frameRecorder) {
	host := &frameRecorder{}
	engine := &frameRecorder{}
	r := NewRelay(host.sink, engine.sink)
	r.AnnounceReady()
	return r, host, engine
}

func TestAnnounceReady_SentExactlyOnce(t *testing.T) {
	host := &frameRecorder{}
	r := NewRelay(host.sink, (&frameRecorder{}).sink)

	r.AnnounceReady()
	r.AnnounceReady()

	ready := 0
	for _, f := range host.all() {
		if gjson.Get(f, "type").String() == "__chobitsu-ready" {
			ready++
		}
	}
	if ready != 1 {
		t.Errorf("ready announcements = %d, want 1", ready)
	}
}

func TestHandleEngineFrame_BuffersUntilHostAttaches(t *testing.T) {
	host := &frameRecorder{}
	r := NewRelay(host.sink, (&frameRecorder{}).sink)

	r.HandleEngineFrame([]byte(`{"method":"Network.requestWillBeSent","params":{}}`))
	if len(host.all()) != 0 {
		t.Fatal("frame delivered before host attached")
	}

	r.AnnounceReady()

	frames := host.all()
	if len(frames) != 2 {
		t.Fatalf("frames after attach = %d, want ready + buffered", len(frames))
	}
	if gjson.Get(frames[1], "method").String() != "Network.requestWillBeSent" {
		t.Errorf("buffered frame not flushed: %q", frames[1])
	}
}

func TestHandleEngineFrame_ForwardsVerbatim(t *testing.T) {
	r, host, _ := newAttachedRelay()

	raw := `{"id":7,"result":{"frameTree":{}}}`
	r.HandleEngineFrame([]byte(raw))

	frames := host.all()
	if len(frames) != 2 || frames[1] != raw {
		t.Errorf("frames = %v, want verbatim forward of %q", frames, raw)
	}
}

func TestHandleEngineFrame_MalformedForwardedUnmodified(t *testing.T) {
	r, host, _ := newAttachedRelay()

	raw := `{"method": "Netw` // truncated JSON
	r.HandleEngineFrame([]byte(raw))

	frames := host.all()
	if len(frames) != 2 || frames[1] != raw {
		t.Errorf("malformed frame altered or dropped: %v", frames)
	}
}

func TestHandleHostMessage_LoadedTriggersActivationSequence(t *testing.T) {
	r, host, engine := newAttachedRelay()

	if err := r.HandleHostMessage([]byte(`{"event":"LOADED"}`)); err != nil {
		t.Fatalf("HandleHostMessage() error = %v", err)
	}

	sent := engine.all()
	if len(sent) != len(activationMethods) {
		t.Fatalf("engine received %d frames, want %d", len(sent), len(activationMethods))
	}
	for i, method := range activationMethods {
		if got := gjson.Get(sent[i], "method").String(); got != method {
			t.Errorf("activation[%d] = %q, want %q", i, got, method)
		}
		if gjson.Get(sent[i], "id").String() == "" {
			t.Errorf("activation[%d] carries no request id", i)
		}
	}

	// The host gets a synthetic navigation pair to resynchronize.
	var methods []string
	for _, f := range host.all() {
		if m := gjson.Get(f, "method").String(); m != "" {
			methods = append(methods, m)
		}
	}
	want := []string{"Page.frameNavigated", "DOM.documentUpdated"}
	if len(methods) != 2 || methods[0] != want[0] || methods[1] != want[1] {
		t.Errorf("synthetic host frames = %v, want %v", methods, want)
	}
}

func TestHandleEngineFrame_DropsAcksForLocalRequests(t *testing.T) {
	r, host, engine := newAttachedRelay()
	_ = r.HandleHostMessage([]byte(`{"event":"LOADED"}`))

	hostBefore := len(host.all())
	for _, sent := range engine.all() {
		id := gjson.Get(sent, "id").String()
		ack, _ := json.Marshal(map[string]any{"id": id, "result": map[string]any{}})
		r.HandleEngineFrame(ack)
	}

	if got := len(host.all()); got != hostBefore {
		t.Errorf("local acks leaked to host: %d new frames", got-hostBefore)
	}

	// A host-originated ack with an unknown id still flows through.
	r.HandleEngineFrame([]byte(`{"id":42,"result":{}}`))
	if got := len(host.all()); got != hostBefore+1 {
		t.Error("foreign ack was dropped")
	}
}

func TestHandleHostMessage_DevForwardsPayloadToEngine(t *testing.T) {
	r, _, engine := newAttachedRelay()

	payload := `{"id":42,"method":"DOM.getDocument"}`
	if err := r.HandleHostMessage([]byte(`{"event":"DEV","data":` + payload + `}`)); err != nil {
		t.Fatalf("HandleHostMessage() error = %v", err)
	}

	sent := engine.all()
	if len(sent) != 1 || sent[0] != payload {
		t.Errorf("engine frames = %v, want raw payload", sent)
	}
}

func TestHandleHostMessage_MalformedRejected(t *testing.T) {
	r, _, _ := newAttachedRelay()

	if err := r.HandleHostMessage([]byte(`not json`)); err == nil {
		t.Error("malformed host frame accepted")
	}
	if err := r.HandleHostMessage([]byte(`{"event":"NOPE"}`)); err == nil {
		t.Error("unknown host event accepted")
	}
}

func TestFlattenConsole_ArgumentRendering(t *testing.T) {
	r, host, _ := newAttachedRelay()

	frame := `{
		"method": "Runtime.consoleAPICalled",
		"params": {
			"type": "warning",
			"timestamp": 1700000000000,
			"args": [
				{"type": "string", "value": "count:"},
				{"type": "number", "value": 3},
				{"type": "boolean", "value": true},
				{"type": "undefined"},
				{"type": "object", "description": "Array(2)"},
				{"type": "function"}
			]
		}
	}`
	r.HandleEngineFrame([]byte(frame))

	var logEvent string
	for _, f := range host.all() {
		if gjson.Get(f, "type").String() == "__console-log" {
			logEvent = f
		}
	}
	if logEvent == "" {
		t.Fatal("no console-log event emitted")
	}
	if got := gjson.Get(logEvent, "level").String(); got != "warn" {
		t.Errorf("level = %q, want warn", got)
	}
	wantMsg := "count: 3 true undefined Array(2) function"
	if got := gjson.Get(logEvent, "message").String(); got != wantMsg {
		t.Errorf("message = %q, want %q", got, wantMsg)
	}
	if got := gjson.Get(logEvent, "timestamp").Int(); got != 1700000000000 {
		t.Errorf("timestamp = %d, want the frame's timestamp", got)
	}

	// The raw frame is still forwarded alongside the flattened event.
	found := false
	for _, f := range host.all() {
		if gjson.Get(f, "method").String() == "Runtime.consoleAPICalled" {
			found = true
		}
	}
	if !found {
		t.Error("raw console frame was not forwarded")
	}
}

func TestFlattenConsole_SkipsHotReloadTaggedLines(t *testing.T) {
	r, host, _ := newAttachedRelay()

	frame := `{
		"method": "Runtime.consoleAPICalled",
		"params": {
			"type": "log",
			"args": [{"type": "string", "value": "[preview-hmr] connected"}]
		}
	}`
	r.HandleEngineFrame([]byte(frame))

	for _, f := range host.all() {
		if gjson.Get(f, "type").String() == "__console-log" {
			t.Fatalf("tagged line surfaced as console log: %q", f)
		}
	}
}

func TestConsoleLevel_Mapping(t *testing.T) {
	tests := []struct {
		callType string
		want     string
	}{
		{"log", "log"},
		{"warning", "warn"},
		{"error", "error"},
		{"assert", "error"},
		{"debug", "debug"},
		{"info", "info"},
		{"table", "log"},
	}
	for _, tt := range tests {
		if got := consoleLevel(tt.callType); got != tt.want {
			t.Errorf("consoleLevel(%q) = %q, want %q", tt.callType, got, tt.want)
		}
	}
}

func TestDisplayString_NumberWithoutValueUsesDescription(t *testing.T) {
	arg := gjson.Parse(`{"type":"number","description":"Infinity"}`)
	if got := displayString(arg); got != "Infinity" {
		t.Errorf("displayString() = %q, want Infinity", got)
	}
	if !strings.Contains(displayString(gjson.Parse(`{"type":"symbol","value":"Symbol(x)"}`)), "Symbol") {
		t.Error("symbol value not rendered")
	}
}
