package app

import (
	"sync"

	"live-quiz-service/internal/domain"
)

// Channel is a push connection to a single client. Send must not block.
type Channel interface {
	Send(msg domain.Envelope) error
	Close() error
}

// Registration pairs a user with their live channel in a session.
type Registration struct {
	UserID  string
	Channel Channel
}

// Registry maps (session, user) to the user's current push channel.
// It is the only structure shared across sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]Channel
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]map[string]Channel)}
}

// Register installs ch for the pair and returns the channel it replaced, if any.
// The caller owns closing the replaced channel.
func (r *Registry) Register(sessionID, userID string, ch Channel) (Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, ok := r.sessions[sessionID]
	if !ok {
		users = make(map[string]Channel)
		r.sessions[sessionID] = users
	}
	prev, replaced := users[userID]
	users[userID] = ch
	if replaced && prev == ch {
		return nil, false
	}
	return prev, replaced
}

// Unregister removes the pair. Missing entries are ignored.
func (r *Registry) Unregister(sessionID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteLocked(sessionID, userID)
}

// UnregisterChannel removes the pair only while it still points at ch, so tearing down
// an old socket never evicts a newer reconnection.
func (r *Registry) UnregisterChannel(sessionID, userID string, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[sessionID][userID]; !ok || current != ch {
		return false
	}
	r.deleteLocked(sessionID, userID)
	return true
}

// Lookup returns the channel currently registered for the pair.
func (r *Registry) Lookup(sessionID, userID string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.sessions[sessionID][userID]
	return ch, ok
}

// ChannelsFor returns a copy of the session's live channels.
func (r *Registry) ChannelsFor(sessionID string) []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := r.sessions[sessionID]
	out := make([]Registration, 0, len(users))
	for userID, ch := range users {
		out = append(out, Registration{UserID: userID, Channel: ch})
	}
	return out
}

// DropSession forgets every channel of a session and returns them for closing.
func (r *Registry) DropSession(sessionID string) []Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	out := make([]Channel, 0, len(users))
	for _, ch := range users {
		out = append(out, ch)
	}
	return out
}

func (r *Registry) deleteLocked(sessionID, userID string) {
	users, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(r.sessions, sessionID)
	}
}
