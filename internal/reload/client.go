// Package reload implements the hot-reload client: a duplex channel to the
// broadcast coordinator, in-place CSS/JS updates, debounced full reloads,
// and reconnection with bounded exponential backoff.
//
// The same protocol runs inside served pages as injected JavaScript; this
// implementation drives native preview shells and is the reference for the
// reconnection and missed-update semantics.
package reload

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/sandview/previewd/internal/broadcast"
)

// State is the client's connection state. Transitions are explicit:
// Disconnected → Connecting → Connected → Disconnected.
type State int

const (
	// StateDisconnected means no channel and no dial in flight.
	StateDisconnected State = iota

	// StateConnecting means a dial attempt is in flight.
	StateConnecting

	// StateConnected means the channel is open.
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Applier applies broadcast effects to the preview surface. Implementations
// are driven from the client's single event goroutine and need no locking
// of their own.
type Applier interface {
	// ApplyCSS replaces the style element tagged with path using the
	// cache-busting timestamp.
	ApplyCSS(path string, timestamp int64)

	// ApplyJS re-imports the module at path suffixed with the
	// cache-busting timestamp.
	ApplyJS(path string, timestamp int64)

	// Navigate performs a full reload, carrying the last seen version so
	// it survives into the next page instance.
	Navigate(lastSeenVersion int64)

	// ShowServerError surfaces a server-side failure to the host frame.
	ShowServerError(payload broadcast.ErrorPayload)
}

// conn is the subset of a websocket connection the client uses. Tests
// substitute fakes.
type conn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens a channel connection.
type Dialer func(ctx context.Context, url string) (conn, error)

// Options configures a reload client.
type Options struct {
	// ChannelURL is the websocket URL of the HMR channel.
	ChannelURL string

	// Applier receives update effects.
	Applier Applier

	// LastSeenVersion is the version carried over from a previous page
	// instance, or -1 when this is a fresh load.
	LastSeenVersion int64

	// ReloadDebounce is the full-reload coalescing window.
	ReloadDebounce time.Duration

	// BackoffBase is the first reconnect delay; it doubles per attempt.
	BackoffBase time.Duration

	// BackoffMax caps the per-attempt delay.
	BackoffMax time.Duration

	// MaxAttempts caps automatic reconnects; 0 uses the default.
	MaxAttempts int

	// PingInterval is the keepalive cadence on an open channel.
	PingInterval time.Duration

	// Dial overrides the websocket dialer. Nil uses gorilla/websocket.
	Dial Dialer
}

// Defaults applied by NewClient for zero-valued options.
const (
	DefaultReloadDebounce = 300 * time.Millisecond
	DefaultBackoffBase    = 500 * time.Millisecond
	DefaultBackoffMax     = 8 * time.Second
	DefaultMaxAttempts    = 8
	DefaultPingInterval   = 25 * time.Second
)

// Client is a reload client for one page. All state is owned by the client
// and mutated under one mutex; timers re-arm by cancel-then-restart so a
// burst collapses to a single action.
type Client struct {
	opts Options

	mu       sync.Mutex
	state    State
	lastSeen int64
	attempts int
	conn     conn

	// pendingReload is the debounce handle for full reloads. Nil when no
	// reload is pending.
	pendingReload *time.Timer

	// pendingRetry is the scheduled reconnect attempt, nil when none.
	pendingRetry *time.Timer

	closed bool
	done   chan struct{}

	// generation invalidates read/ping loops from torn-down connections.
	generation int
}

// NewClient creates a reload client. It does not connect.
//
// Parameters:
//   - opts: Client configuration
//
// Returns:
//   - *Client: A new client instance
func NewClient(opts Options) *Client {
	if opts.ReloadDebounce == 0 {
		opts.ReloadDebounce = DefaultReloadDebounce
	}
	if opts.BackoffBase == 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if opts.BackoffMax == 0 {
		opts.BackoffMax = DefaultBackoffMax
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.PingInterval == 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.Dial == nil {
		opts.Dial = gorillaDial
	}
	return &Client{
		opts:     opts,
		lastSeen: opts.LastSeenVersion,
		done:     make(chan struct{}),
	}
}

// gorillaDial is the production dialer.
func gorillaDial(ctx context.Context, url string) (conn, error) {
	d := websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	c, _, err := d.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Connect starts the first connection attempt. Non-blocking; connection
// progress is observable through State.
func (c *Client) Connect(ctx context.Context) {
	go c.connect(ctx)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastSeenVersion returns the highest broadcast version seen so far, or -1.
func (c *Client) LastSeenVersion() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// Attempts returns the automatic reconnect attempts consumed since the
// last successful connect or manual reset.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// connect performs one dial attempt and starts the channel loops on
// success.
func (c *Client) connect(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()

	wsConn, err := c.opts.Dial(ctx, c.opts.ChannelURL)
	if err != nil {
		log.Debug("channel dial failed", "err", err)
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.scheduleReconnect(ctx)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = wsConn.Close()
		return
	}
	c.state = StateConnected
	c.attempts = 0
	c.conn = wsConn
	c.generation++
	gen := c.generation
	lastSeen := c.lastSeen
	c.mu.Unlock()

	hello := broadcast.ClientMessage{Kind: broadcast.KindConnect}
	if lastSeen >= 0 {
		v := lastSeen
		hello.LastSeenVersion = &v
	}
	if err := wsConn.WriteJSON(hello); err != nil {
		c.teardown(ctx, gen)
		return
	}

	go c.readLoop(ctx, wsConn, gen)
	go c.pingLoop(ctx, wsConn, gen)
}

// readLoop consumes broadcasts until the connection dies.
func (c *Client) readLoop(ctx context.Context, wsConn conn, gen int) {
	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			c.teardown(ctx, gen)
			return
		}
		var b broadcast.Broadcast
		if err := json.Unmarshal(data, &b); err != nil {
			continue
		}
		c.HandleBroadcast(b)
	}
}

// pingLoop keeps the channel alive.
func (c *Client) pingLoop(ctx context.Context, wsConn conn, gen int) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			stale := c.generation != gen
			c.mu.Unlock()
			if stale {
				return
			}
			if err := wsConn.WriteJSON(broadcast.ClientMessage{Kind: broadcast.KindPing}); err != nil {
				c.teardown(ctx, gen)
				return
			}
		}
	}
}

// HandleBroadcast applies one inbound broadcast. Exported so transports
// other than the built-in websocket loop can drive the client.
func (c *Client) HandleBroadcast(b broadcast.Broadcast) {
	c.mu.Lock()
	// A full-reload carries the authoritative session version. Adopt it
	// even when lower: a restarted server's counter regresses, and holding
	// the old higher value would keep every reconnect stale.
	if b.Kind == broadcast.KindFullReload || b.Version > c.lastSeen {
		c.lastSeen = b.Version
	}
	applier := c.opts.Applier
	c.mu.Unlock()

	switch b.Kind {
	case broadcast.KindUpdate:
		for _, u := range b.Updates {
			switch u.Kind {
			case broadcast.UpdateCSS:
				applier.ApplyCSS(u.Path, u.Timestamp)
			case broadcast.UpdateJS:
				applier.ApplyJS(u.Path, u.Timestamp)
			}
		}
	case broadcast.KindFullReload:
		c.scheduleReload()
	case broadcast.KindServerError:
		if b.Error != nil {
			applier.ShowServerError(*b.Error)
		}
	}
}

// scheduleReload arms the full-reload debounce. Each request within the
// window cancels and restarts the timer, so a burst of reload requests
// produces exactly one navigation, timed from the last request.
func (c *Client) scheduleReload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.pendingReload != nil {
		c.pendingReload.Stop()
	}
	c.pendingReload = time.AfterFunc(c.opts.ReloadDebounce, func() {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.pendingReload = nil
		version := c.lastSeen
		applier := c.opts.Applier
		c.mu.Unlock()

		applier.Navigate(version)
	})
}

// teardown handles an unexpected connection loss for generation gen and
// schedules a reconnect.
func (c *Client) teardown(ctx context.Context, gen int) {
	c.mu.Lock()
	if c.closed || c.generation != gen {
		c.mu.Unlock()
		return
	}
	c.generation++
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected
	c.mu.Unlock()

	c.scheduleReconnect(ctx)
}

// scheduleReconnect arms the next automatic dial with exponential backoff:
// base delay doubling per attempt up to the ceiling, stopping entirely once
// the attempt cap is reached.
func (c *Client) scheduleReconnect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.attempts >= c.opts.MaxAttempts {
		log.Debug("reconnect attempts exhausted", "attempts", c.attempts)
		return
	}

	delay := c.opts.BackoffBase << uint(c.attempts)
	if delay > c.opts.BackoffMax {
		delay = c.opts.BackoffMax
	}
	c.attempts++

	if c.pendingRetry != nil {
		c.pendingRetry.Stop()
	}
	c.pendingRetry = time.AfterFunc(delay, func() {
		c.mu.Lock()
		closed := c.closed
		c.pendingRetry = nil
		c.mu.Unlock()
		if !closed {
			c.connect(ctx)
		}
	})
}

// ManualReconnect resets the attempt counter to zero and dials
// immediately, resuming automatic retry from a clean slate.
func (c *Client) ManualReconnect(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.attempts = 0
	if c.pendingRetry != nil {
		c.pendingRetry.Stop()
		c.pendingRetry = nil
	}
	c.mu.Unlock()

	c.connect(ctx)
}

// Close tears the client down: the connection is closed and every pending
// timer is cancelled so nothing fires after teardown.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.generation++
	close(c.done)
	if c.pendingReload != nil {
		c.pendingReload.Stop()
		c.pendingReload = nil
	}
	if c.pendingRetry != nil {
		c.pendingRetry.Stop()
		c.pendingRetry = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected
}
