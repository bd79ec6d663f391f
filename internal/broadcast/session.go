package broadcast

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Channel is one connected reload client. Send must not block the caller;
// implementations buffer and drop slow consumers.
type Channel interface {
	Send(b Broadcast)
}

// Session coordinates broadcasts for one project. It owns the only
// cross-request mutable state in the server: the version counter and the
// channel registry. All mutations are linearized behind a single mutex so
// concurrent change batches still produce strictly increasing, gap-free
// versions.
type Session struct {
	// ProjectID identifies the project this session coordinates.
	ProjectID string

	// ID uniquely identifies this session instance. A new ID after a
	// process restart is what makes version regression detectable.
	ID string

	mu         sync.Mutex
	version    int64
	channels   map[Channel]struct{}
	lastActive time.Time
}

// newSession creates a session for a project. The version counter starts
// at 0 and never resets while the session is alive.
func newSession(projectID string) *Session {
	return &Session{
		ProjectID:  projectID,
		ID:         uuid.NewString(),
		channels:   make(map[Channel]struct{}),
		lastActive: time.Now(),
	}
}

// Version returns the session's current broadcast version.
func (s *Session) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Connect registers a channel with the session.
//
// If the client reports a lastSeenVersion that differs from the session's
// current version, the client is stale and immediately receives a
// full-reload rather than being left silently behind. A lower value means
// missed broadcasts; a higher value means the server restarted and the
// counter regressed.
//
// Parameters:
//   - ch: The connected channel
//   - lastSeenVersion: The client's last seen version, nil on a fresh load
func (s *Session) Connect(ch Channel, lastSeenVersion *int64) {
	s.mu.Lock()
	s.channels[ch] = struct{}{}
	s.lastActive = time.Now()
	version := s.version
	stale := lastSeenVersion != nil && *lastSeenVersion != version
	s.mu.Unlock()

	if stale {
		log.Debug("stale client on connect, forcing reload",
			"project", s.ProjectID, "clientVersion", *lastSeenVersion, "sessionVersion", version)
		ch.Send(Broadcast{Kind: KindFullReload, Version: version})
	}
}

// Disconnect removes a channel from the session.
func (s *Session) Disconnect(ch Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, ch)
	s.lastActive = time.Now()
}

// NotifyChange turns one file-change batch into exactly one broadcast.
//
// The version counter is incremented by exactly 1 regardless of batch size.
// Stylesheet changes become css updates applied in place; any other file in
// the batch escalates the whole batch to a full reload, because a safe
// hot swap of script or markup cannot be guaranteed without a module
// accept graph.
//
// Parameters:
//   - paths: Served root-relative paths of the changed files
func (s *Session) NotifyChange(paths []string) {
	if len(paths) == 0 {
		return
	}

	updates, escalate := classify(paths)

	msg := Broadcast{Kind: KindUpdate, Updates: updates}
	if escalate {
		msg = Broadcast{Kind: KindFullReload}
	}
	s.broadcast(msg)
}

// NotifyError pushes a server-error broadcast, bumping the version counter
// but carrying no update list.
//
// Parameters:
//   - payload: The classified error to deliver
func (s *Session) NotifyError(payload ErrorPayload) {
	s.broadcast(Broadcast{Kind: KindServerError, Error: &payload})
}

// broadcast increments the version and delivers the message, tagged with
// the post-increment value, to every connected channel.
func (s *Session) broadcast(msg Broadcast) {
	s.mu.Lock()
	s.version++
	msg.Version = s.version
	targets := make([]Channel, 0, len(s.channels))
	for ch := range s.channels {
		targets = append(targets, ch)
	}
	s.lastActive = time.Now()
	s.mu.Unlock()

	log.Debug("broadcast", "project", s.ProjectID, "kind", msg.Kind,
		"version", msg.Version, "channels", len(targets))
	for _, ch := range targets {
		ch.Send(msg)
	}
}

// idle reports whether the session has no connected channels and has been
// inactive past the given timeout.
func (s *Session) idle(timeout time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels) == 0 && now.Sub(s.lastActive) > timeout
}

// classify splits a change batch into css updates and a full-reload
// escalation flag. Timestamps are fresh cache-busting values.
func classify(paths []string) ([]Update, bool) {
	now := time.Now().UnixMilli()
	var updates []Update
	escalate := false
	for _, p := range paths {
		if strings.HasSuffix(p, ".css") {
			updates = append(updates, Update{Kind: UpdateCSS, Path: p, Timestamp: now})
		} else {
			escalate = true
		}
	}
	return updates, escalate
}
