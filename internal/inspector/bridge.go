package inspector

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const bridgeWriteTimeout = 10 * time.Second

// Roles a connection declares when attaching to a bridge.
const (
	RoleHost   = "host"
	RoleEngine = "engine"
)

var bridgeUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The preview frame runs sandboxed with a null origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Bridge pairs the two websocket ends of one preview frame's inspector
// traffic and pipes them through a Relay. Either side may attach first;
// engine frames buffer in the relay until the host arrives.
type Bridge struct {
	relay *Relay

	mu     sync.Mutex
	host   *websocket.Conn
	engine *websocket.Conn
}

// NewBridge creates an empty bridge.
func NewBridge() *Bridge {
	b := &Bridge{}
	b.relay = NewRelay(b.sendHost, b.sendEngine)
	return b
}

// Attach upgrades an HTTP request into the bridge under the given role and
// blocks for the connection's lifetime.
//
// Parameters:
//   - w: The response writer to upgrade
//   - r: The upgrade request
//   - role: RoleHost or RoleEngine
//
// Returns:
//   - error: Non-nil when the role is unknown, the slot is taken, or the
//     upgrade fails
func (b *Bridge) Attach(w http.ResponseWriter, r *http.Request, role string) error {
	if role != RoleHost && role != RoleEngine {
		return fmt.Errorf("unknown inspector role %q", role)
	}

	conn, err := bridgeUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade inspector connection: %w", err)
	}

	if err := b.register(role, conn); err != nil {
		_ = conn.Close()
		return err
	}
	defer b.unregister(role, conn)

	if role == RoleHost {
		b.relay.AnnounceReady()
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil
		}
		switch role {
		case RoleHost:
			// One corrupt frame must not destabilize the bridge.
			if err := b.relay.HandleHostMessage(data); err != nil {
				log.Debug("ignoring malformed inspector frame", "err", err)
			}
		case RoleEngine:
			b.relay.HandleEngineFrame(data)
		}
	}
}

func (b *Bridge) register(role string, conn *websocket.Conn) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch role {
	case RoleHost:
		if b.host != nil {
			return fmt.Errorf("inspector host already attached")
		}
		b.host = conn
	case RoleEngine:
		if b.engine != nil {
			return fmt.Errorf("inspector engine already attached")
		}
		b.engine = conn
	}
	return nil
}

func (b *Bridge) unregister(role string, conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if role == RoleHost && b.host == conn {
		b.host = nil
	}
	if role == RoleEngine && b.engine == conn {
		b.engine = nil
	}
	_ = conn.Close()
}

// sendHost and sendEngine are the relay's sinks. Writes are serialized
// under the bridge mutex since both relay directions may emit concurrently.

func (b *Bridge) sendHost(frame []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.host == nil {
		return fmt.Errorf("no inspector host attached")
	}
	_ = b.host.SetWriteDeadline(time.Now().Add(bridgeWriteTimeout))
	return b.host.WriteMessage(websocket.TextMessage, frame)
}

func (b *Bridge) sendEngine(frame []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.engine == nil {
		return fmt.Errorf("no inspector engine attached")
	}
	_ = b.engine.SetWriteDeadline(time.Now().Add(bridgeWriteTimeout))
	return b.engine.WriteMessage(websocket.TextMessage, frame)
}

// Bridges is a by-project registry of inspector bridges.
type Bridges struct {
	mu      sync.Mutex
	bridges map[string]*Bridge
}

// NewBridges creates an empty registry.
func NewBridges() *Bridges {
	return &Bridges{bridges: make(map[string]*Bridge)}
}

// Bridge returns the bridge for projectID, creating it on first use.
func (s *Bridges) Bridge(projectID string) *Bridge {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bridges[projectID]
	if !ok {
		b = NewBridge()
		s.bridges[projectID] = b
	}
	return b
}
