package relay

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrDuplicateIdentity is returned by Add when the identity is already registered.
var ErrDuplicateIdentity = errors.New("connection identity already registered")

// Registry is the authoritative set of live connections, keyed by identity.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*Connection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[uuid.UUID]*Connection)}
}

// Add inserts conn. The existing entry is kept on ErrDuplicateIdentity.
func (r *Registry) Add(conn *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[conn.ID()]; exists {
		return ErrDuplicateIdentity
	}
	r.conns[conn.ID()] = conn
	return nil
}

// Remove deletes conn and reports whether it was present.
// An entry with the same identity but a different Connection is left alone.
func (r *Registry) Remove(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.conns[conn.ID()]
	if !exists || current != conn {
		return false
	}
	delete(r.conns, conn.ID())
	return true
}

// Snapshot returns a copy of the current members in no particular order.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
