package chat

import (
	"context"
	"log"
	"sync"

	"github.com/tastebud/server/internal/database"
	"github.com/tastebud/server/internal/stats"
)

const (
	statLiveConnections  = "LiveConnections"
	statMessagesRelayed  = "MessagesRelayed"
	statDroppedSends     = "DroppedSends"
	statRoomsDeleted     = "RoomsDeleted"
	defaultHistoryWindow = 50
)

// Server is the message relay: it dispatches inbound envelopes to room and
// membership updates and fans TALK events out to the room's live
// connections. All handlers run on the connection's read goroutine;
// concurrency across connections is absorbed by the registry and the
// directory.
type Server struct {
	log         *log.Logger
	db          database.Repository
	directory   *Directory
	registry    *Registry
	stats       stats.StatsProvider
	clients     map[*Client]struct{}
	clientsLock sync.Mutex
}

func NewServer(logger *log.Logger, db database.Repository, directory *Directory, st stats.StatsProvider) *Server {
	for _, name := range []string{
		statLiveConnections,
		statMessagesRelayed,
		statDroppedSends,
		statRoomsDeleted,
	} {
		st.RegisterMetric(name)
	}

	return &Server{
		log:       logger,
		db:        db,
		directory: directory,
		registry:  NewRegistry(),
		stats:     st,
		clients:   make(map[*Client]struct{}),
	}
}

func (s *Server) Directory() *Directory {
	return s.directory
}

// Occupancy returns the number of live connections in a room.
func (s *Server) Occupancy(externalId string) int {
	return s.registry.Occupancy(externalId)
}

func (s *Server) RegisterClient(c *Client) {
	s.clientsLock.Lock()
	s.clients[c] = struct{}{}
	s.clientsLock.Unlock()

	s.stats.Incr(statLiveConnections)
	s.log.Printf("registered session %s for %q", c.sessionId, c.member.Username)
}

func (s *Server) deregisterClient(c *Client) {
	s.clientsLock.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.clientsLock.Unlock()

	if ok {
		s.stats.Decr(statLiveConnections)
		s.log.Printf("deregistered session %s", c.sessionId)
	}
}

// handleEnvelope dispatches one inbound event. Anything that is not an
// ENTER or CLOSE is treated as a talk event.
func (s *Server) handleEnvelope(c *Client, env *Envelope) {
	switch env.Type {
	case EventEnter:
		s.handleEnter(c, env)
	case EventClose:
		s.handleClose(c)
	default:
		s.handleTalk(c, env)
	}
}

func (s *Server) handleEnter(c *Client, env *Envelope) {
	room, err := s.directory.Get(env.RoomId)
	if err != nil {
		c.queueMessage(respRoomNotFound())
		return
	}

	// repeated join by the same connection is a no-op
	if cur, ok := s.registry.Room(c); ok && cur == room.ExternalId {
		c.queueMessage(respOK())
		return
	}

	if !s.db.MembershipExists(c.member.Id, room.Id) {
		count, err := s.db.CountMemberships(room.Id)
		if err != nil {
			s.log.Println("count memberships:", err)
			c.queueMessage(respInternalError())
			return
		}
		if count >= room.Capacity {
			c.queueMessage(respRoomFull())
			return
		}
	}

	if err := s.db.CreateMembership(c.member.Id, room.Id); err != nil {
		s.log.Println("create membership:", err)
		c.queueMessage(respInternalError())
		return
	}

	s.registry.Add(room.ExternalId, c)
	s.log.Printf("session %s entered room %q", c.sessionId, room.ExternalId)
	c.queueMessage(respOK())
}

func (s *Server) handleTalk(c *Client, env *Envelope) {
	roomId, ok := s.registry.Room(c)
	if !ok || roomId != env.RoomId {
		c.queueMessage(respNotInRoom())
		return
	}

	room, err := s.directory.Get(roomId)
	if err != nil {
		c.queueMessage(respRoomNotFound())
		return
	}

	env.Type = EventTalk
	env.MemberId = c.member.Id
	env.Username = c.member.Username
	if env.RegDate.IsZero() {
		env.RegDate = Now()
	}

	// The durable write and the live fan-out are independent: a store
	// failure is logged and delivery still happens, so the history may
	// lag what connected members saw.
	if err := s.db.CreateMessage(database.Message{
		RoomId:    room.Id,
		MemberId:  c.member.Id,
		Content:   env.Msg,
		Image:     env.Img,
		CreatedAt: env.RegDate,
	}); err != nil {
		s.log.Printf("save message in room %q: %v", roomId, err)
	}

	s.broadcast(roomId, &ServerMessage{Envelope: env})
	s.stats.Incr(statMessagesRelayed)
}

// broadcast delivers msg to every live connection in the room,
// best-effort and in no particular order. A full send queue drops the
// message for that connection only.
func (s *Server) broadcast(roomId string, msg *ServerMessage) {
	for _, peer := range s.registry.Connections(roomId) {
		if !peer.queueMessage(msg) {
			s.stats.Incr(statDroppedSends)
			s.log.Printf("dropped message for session %s: send queue full", peer.sessionId)
		}
	}
}

// handleClose takes the connection out of its room; the websocket itself
// stays open.
func (s *Server) handleClose(c *Client) {
	s.leave(c)
}

// leave removes the connection from both registry indexes and deletes the
// durable membership. When the room ends up with zero durable members and
// zero live connections it is deleted from the directory and the store.
func (s *Server) leave(c *Client) {
	roomId, ok := s.registry.Remove(c)
	if !ok {
		return
	}

	room, err := s.directory.Get(roomId)
	if err != nil {
		return
	}

	if err := s.db.DeleteMembership(c.member.Id, room.Id); err != nil {
		s.log.Printf("delete membership for member %d in room %q: %v", c.member.Id, roomId, err)
		return
	}

	count, err := s.db.CountMemberships(room.Id)
	if err != nil {
		s.log.Println("count memberships:", err)
		return
	}

	if count == 0 && s.registry.Occupancy(roomId) == 0 {
		if err := s.directory.Delete(roomId); err != nil {
			s.log.Printf("delete empty room %q: %v", roomId, err)
			return
		}
		s.stats.Incr(statRoomsDeleted)
		s.log.Printf("deleted empty room %q", roomId)
	}
}

// disconnect performs full cleanup for a connection whose transport is
// gone. A second disconnect for the same connection is a no-op.
func (s *Server) disconnect(c *Client) {
	s.leave(c)
	s.deregisterClient(c)
}

// DeleteRoom is the boundary-triggered delete: it refuses while the room
// has live connections.
func (s *Server) DeleteRoom(externalId string) error {
	if _, err := s.directory.Get(externalId); err != nil {
		return err
	}

	if s.registry.Occupancy(externalId) > 0 {
		return ErrRoomOccupied
	}

	if err := s.directory.Delete(externalId); err != nil {
		return err
	}

	s.stats.Incr(statRoomsDeleted)
	return nil
}

// Shutdown stops every live connection.
func (s *Server) Shutdown(_ context.Context) error {
	s.clientsLock.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsLock.Unlock()

	for _, c := range clients {
		c.stopClient()
	}

	return nil
}
