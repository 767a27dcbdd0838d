package chat

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tastebud/server/internal/database"
	"github.com/teris-io/shortid"
)

// Directory is the process-scoped cache of the rooms table. It is loaded
// once at startup and kept in sync on create/delete; every chat event reads
// rooms from here instead of the database.
type Directory struct {
	db     database.Repository
	mu     sync.RWMutex
	rooms  map[string]database.Room
	loaded bool
}

func NewDirectory(db database.Repository) *Directory {
	return &Directory{
		db:    db,
		rooms: make(map[string]database.Room),
	}
}

// Load rebuilds the cache from the store. It must complete before the
// directory serves lookups.
func (d *Directory) Load() error {
	rooms, err := d.db.ListRooms()
	if err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.rooms = make(map[string]database.Room, len(rooms))
	for _, room := range rooms {
		d.rooms[room.ExternalId] = room
	}
	d.loaded = true

	return nil
}

// Create persists a new room and inserts it into the cache. Names are not
// unique; concurrent creates under the same name each get a distinct id.
func (d *Directory) Create(name string, capacity int, kind string) (database.Room, error) {
	if !d.isLoaded() {
		return database.Room{}, ErrNotLoaded
	}

	sid, err := shortid.Generate()
	if err != nil {
		return database.Room{}, fmt.Errorf("generate room id: %w", err)
	}

	room, err := d.db.CreateRoom(database.CreateRoomParams{
		ExternalId: sid,
		Name:       name,
		Capacity:   capacity,
		Kind:       kind,
	})
	if err != nil {
		return database.Room{}, fmt.Errorf("create room: %w", err)
	}

	d.mu.Lock()
	d.rooms[room.ExternalId] = room
	d.mu.Unlock()

	return room, nil
}

func (d *Directory) Get(externalId string) (database.Room, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	room, ok := d.rooms[externalId]
	if !ok {
		return database.Room{}, ErrRoomNotFound
	}

	return room, nil
}

func (d *Directory) List() []database.Room {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rooms := make([]database.Room, 0, len(d.rooms))
	for _, room := range d.rooms {
		rooms = append(rooms, room)
	}

	return rooms
}

func (d *Directory) ListByCreation() []database.Room {
	rooms := d.List()
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})

	return rooms
}

// Delete removes the room from the cache and the store. The store delete
// cascades memberships and messages.
func (d *Directory) Delete(externalId string) error {
	d.mu.Lock()
	room, ok := d.rooms[externalId]
	if !ok {
		d.mu.Unlock()
		return ErrRoomNotFound
	}
	delete(d.rooms, externalId)
	d.mu.Unlock()

	if err := d.db.DeleteRoom(room.Id); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("delete room %q: %w", externalId, err)
	}

	return nil
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.rooms)
}

func (d *Directory) isLoaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.loaded
}
