package multiplayer

import (
	"errors"
	"sync"
)

// ErrSessionExists is returned when a session ID is registered twice.
var ErrSessionExists = errors.New("multiplayer: session already registered")

// SessionHandle is how the coordinator and matches reach a connected
// player without knowing about SSH or Bubble Tea.
type SessionHandle interface {
	ID() SessionID
	// Send delivers an event without blocking.
	Send(evt SessionEvent)
	// Done is closed when the player's connection ends.
	Done() <-chan struct{}
}

// ChannelSession is a SessionHandle whose events are read from a buffered
// channel, typically by a Bubble Tea command.
type ChannelSession struct {
	id     SessionID
	events chan SessionEvent
	done   chan struct{}
	once   sync.Once
}

// NewChannelSession creates a session buffering up to size events.
func NewChannelSession(id SessionID, size int) *ChannelSession {
	return &ChannelSession{
		id:     id,
		events: make(chan SessionEvent, max(size, 1)),
		done:   make(chan struct{}),
	}
}

func (s *ChannelSession) ID() SessionID { return s.id }

// Send queues evt, dropping the oldest queued event while the buffer is
// full. Sends after Close are discarded.
func (s *ChannelSession) Send(evt SessionEvent) {
	select {
	case <-s.done:
		return
	default:
	}
	for {
		select {
		case s.events <- evt:
			return
		default:
		}
		select {
		case <-s.events:
		default:
		}
	}
}

// Events returns the event channel.
func (s *ChannelSession) Events() <-chan SessionEvent { return s.events }

func (s *ChannelSession) Done() <-chan struct{} { return s.done }

// Close ends the session. It may be called more than once.
func (s *ChannelSession) Close() {
	s.once.Do(func() { close(s.done) })
}

// SessionRegistry maps session IDs to connected sessions. It is safe for
// concurrent use.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[SessionID]SessionHandle
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[SessionID]SessionHandle)}
}

// Register adds h. An ID already in use by a live session is rejected.
func (r *SessionRegistry) Register(h SessionHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[h.ID()]; ok {
		select {
		case <-old.Done():
		default:
			return ErrSessionExists
		}
	}
	r.sessions[h.ID()] = h
	return nil
}

// Unregister removes h if it is still the session registered under its ID.
func (r *SessionRegistry) Unregister(h SessionHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[h.ID()] == h {
		delete(r.sessions, h.ID())
	}
}

// Get looks a session up by ID.
func (r *SessionRegistry) Get(id SessionID) (SessionHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.sessions[id]
	return h, ok
}
