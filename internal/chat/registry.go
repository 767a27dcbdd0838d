package chat

import (
	"sync"
)

// Registry tracks which live connections are currently in which room. It
// holds liveness only; durable membership is the database's record. Both
// indexes are guarded by a single lock so they can never disagree.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	conns map[*Client]string
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[*Client]struct{}),
		conns: make(map[*Client]string),
	}
}

// Add registers c under roomId and records the reverse mapping. A repeated
// add for the same room is a no-op. A connection may be in at most one room,
// so adding to a different room moves it.
func (reg *Registry) Add(roomId string, c *Client) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if cur, ok := reg.conns[c]; ok {
		if cur == roomId {
			return
		}
		reg.removeLocked(cur, c)
	}

	if reg.rooms[roomId] == nil {
		reg.rooms[roomId] = make(map[*Client]struct{})
	}
	reg.rooms[roomId][c] = struct{}{}
	reg.conns[c] = roomId
}

// Remove drops c from its room's live list and the reverse index. It
// reports the room the connection was in. Removing an unregistered
// connection is a no-op.
func (reg *Registry) Remove(c *Client) (string, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	roomId, ok := reg.conns[c]
	if !ok {
		return "", false
	}

	reg.removeLocked(roomId, c)
	return roomId, true
}

func (reg *Registry) removeLocked(roomId string, c *Client) {
	delete(reg.conns, c)
	if clients, ok := reg.rooms[roomId]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(reg.rooms, roomId)
		}
	}
}

// Room reports which room the connection is currently in, if any.
func (reg *Registry) Room(c *Client) (string, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	roomId, ok := reg.conns[c]
	return roomId, ok
}

// Connections returns a snapshot of the live connections in a room. The
// caller may iterate it without holding the registry lock.
func (reg *Registry) Connections(roomId string) []*Client {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	clients := make([]*Client, 0, len(reg.rooms[roomId]))
	for c := range reg.rooms[roomId] {
		clients = append(clients, c)
	}

	return clients
}

// Occupancy returns the number of live connections in a room.
func (reg *Registry) Occupancy(roomId string) int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return len(reg.rooms[roomId])
}
