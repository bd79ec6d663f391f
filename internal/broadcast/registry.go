package broadcast

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// reapInterval is how often the registry sweeps for idle sessions.
const reapInterval = 30 * time.Second

// Registry owns the per-project sessions of one hosting process. Sessions
// are created on first use (first client connection or first file-change
// event) and destroyed after sitting idle past the timeout.
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	idleTimeout time.Duration
	done        chan struct{}
	closeOnce   sync.Once
}

// NewRegistry creates a session registry and starts its idle reaper.
//
// Parameters:
//   - idleTimeout: How long a session with no channels survives
//
// Returns:
//   - *Registry: A new registry instance
func NewRegistry(idleTimeout time.Duration) *Registry {
	r := &Registry{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
		done:        make(chan struct{}),
	}
	go r.reapLoop()
	return r
}

// Session returns the project's session, creating it on first use.
//
// Parameters:
//   - projectID: The project identifier
//
// Returns:
//   - *Session: The session for the project
func (r *Registry) Session(projectID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[projectID]
	if !ok {
		s = newSession(projectID)
		r.sessions[projectID] = s
		log.Debug("session created", "project", projectID, "session", s.ID)
	}
	return s
}

// Peek returns the project's session without creating one.
func (r *Registry) Peek(projectID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[projectID]
	return s, ok
}

// Close stops the reaper. Safe to call multiple times.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
}

// reapLoop periodically destroys idle sessions.
func (r *Registry) reapLoop() {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case now := <-ticker.C:
			r.reap(now)
		}
	}
}

// reap removes every session idle past the timeout.
func (r *Registry) reap(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.idle(r.idleTimeout, now) {
			delete(r.sessions, id)
			log.Debug("session reaped", "project", id, "session", s.ID)
		}
	}
}
