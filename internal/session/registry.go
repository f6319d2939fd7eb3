// Package session keeps the in-memory association between live connections and
// the rooms and players they act for. The store stays authoritative; a lost
// binding is repaired by joining again with the same name.
package session

import "sync"

type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

type Binding struct {
	ConnectionID string
	GameID       string
	RoomCode     string
	PlayerID     string
	Role         Role
}

func (that Binding) IsPlayer() bool {
	return that.Role == RolePlayer && that.PlayerID != ""
}

type Registry interface {
	Bind(binding Binding)
	Lookup(connID string) (Binding, bool)
	Unbind(connID string) (Binding, bool)
	IsLive(connID, playerID string) bool
}

type MemoryRegistry struct {
	mu       sync.RWMutex
	bindings map[string]Binding
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		bindings: make(map[string]Binding),
	}
}

// Bind - stores the binding, replacing whatever the connection was bound to.
func (that *MemoryRegistry) Bind(binding Binding) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.bindings[binding.ConnectionID] = binding
}

func (that *MemoryRegistry) Lookup(connID string) (Binding, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	binding, ok := that.bindings[connID]
	return binding, ok
}

func (that *MemoryRegistry) Unbind(connID string) (Binding, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	binding, ok := that.bindings[connID]
	if ok {
		delete(that.bindings, connID)
	}
	return binding, ok
}

// IsLive reports whether connID is currently bound to playerID.
func (that *MemoryRegistry) IsLive(connID, playerID string) bool {
	if connID == "" {
		return false
	}

	binding, ok := that.Lookup(connID)
	return ok && binding.PlayerID == playerID
}

func (that *MemoryRegistry) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.bindings)
}
