package hub

import (
	"Chatline/internal/event"
	"errors"
	"sync"
)

var (
	ErrNotConnected = errors.New("user has no live connection")
	ErrSendRefused  = errors.New("connection refused the event")
)

// Registry maps each user to its single live connection and back.
// All reads and writes are serialized by one RWMutex; sends to a looked up
// client happen while the read lock is held so an unregister cannot
// interleave between lookup and enqueue.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Client
	byConn map[string]string // client id -> user id
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]*Client),
		byConn: make(map[string]string),
	}
}

// Register makes c the connection for userID, overwriting any previous one.
// The superseded client, if any, is returned so the caller can decide what to do with it.
func (r *Registry) Register(userID string, c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.byUser[userID]
	if ok && prev != c {
		delete(r.byConn, prev.ID)
	} else {
		prev = nil
	}

	r.byUser[userID] = c
	r.byConn[c.ID] = userID
	return prev
}

// Unregister removes the mapping only if c is still the registered connection for userID.
// It reports whether anything was removed; a stale or repeated call is a no-op.
func (r *Registry) Unregister(userID string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byUser[userID]
	if !ok || current != c {
		return false
	}

	delete(r.byUser, userID)
	delete(r.byConn, c.ID)
	return true
}

func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byUser[userID]
	return c, ok
}

func (r *Registry) ReverseLookup(c *Client) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.byConn[c.ID]
	return userID, ok
}

// SendTo enqueues ev on userID's connection. It returns ErrNotConnected when the user
// has no registered connection and ErrSendRefused when that connection is closing or full.
func (r *Registry) SendTo(userID string, ev event.WsEvent) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byUser[userID]
	if !ok {
		return ErrNotConnected
	}
	if !c.trySend(ev) {
		return ErrSendRefused
	}
	return nil
}

// Broadcast enqueues ev on every registered connection except the one belonging to exceptUserID.
// It returns the number of connections that accepted the event.
func (r *Registry) Broadcast(exceptUserID string, ev event.WsEvent) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sent := 0
	for userID, c := range r.byUser {
		if userID == exceptUserID {
			continue
		}
		if c.trySend(ev) {
			sent++
		}
	}
	return sent
}

// Snapshot returns the currently registered clients in no particular order.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.byUser))
	for _, c := range r.byUser {
		clients = append(clients, c)
	}
	return clients
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
