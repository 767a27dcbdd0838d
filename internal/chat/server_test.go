package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tastebud/server/internal/database"
	"github.com/tastebud/server/internal/stats"
	"github.com/tastebud/server/internal/testutil"
	"github.com/tastebud/server/internal/types"
)

// newTestServer creates a relay with a loaded directory for testing.
func newTestServer(t *testing.T, db *database.MockRepository, su *stats.MockStatsUpdater, rooms []database.Room) *Server {
	su.On("RegisterMetric", mock.Anything).Return(nil).Times(4)
	db.On("ListRooms").Return(rooms, nil).Once()

	directory := NewDirectory(db)
	if err := directory.Load(); err != nil {
		t.Fatalf("failed to load directory: %v", err)
	}

	return NewServer(testutil.TestLogger(t), db, directory, su)
}

func newTestClient(t *testing.T, id int, username string) *Client {
	return &Client{
		sessionId: username,
		member:    types.Member{Id: id, Username: username},
		send:      make(chan *ServerMessage, 16),
		log:       testutil.TestLogger(t),
		stop:      make(chan struct{}),
	}
}

// receive pops the next queued message for the client, failing the test if
// none is pending.
func receive(t *testing.T, c *Client) *ServerMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	default:
		t.Fatal("expected a queued message")
		return nil
	}
}

func TestHandleEnter(t *testing.T) {
	room := database.Room{Id: 1, ExternalId: "abc", Name: "Tasting Club", Capacity: 10}

	t.Run("first join creates membership", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}

		s := newTestServer(t, db, su, []database.Room{room})
		c := newTestClient(t, 1, "alice")

		db.On("MembershipExists", 1, 1).Return(false).Once()
		db.On("CountMemberships", 1).Return(0, nil).Once()
		db.On("CreateMembership", 1, 1).Return(nil).Once()

		s.handleEnter(c, &Envelope{Type: EventEnter, RoomId: "abc"})

		resp := receive(t, c)
		assert.NotNil(t, resp.Response)
		assert.Equal(t, 200, resp.Response.Code)
		assert.Equal(t, 1, s.Occupancy("abc"), "expected one live connection after enter")
	})

	t.Run("repeated join by same connection is a no-op", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}

		s := newTestServer(t, db, su, []database.Room{room})
		c := newTestClient(t, 1, "alice")

		db.On("MembershipExists", 1, 1).Return(false).Once()
		db.On("CountMemberships", 1).Return(0, nil).Once()
		db.On("CreateMembership", 1, 1).Return(nil).Once()

		s.handleEnter(c, &Envelope{Type: EventEnter, RoomId: "abc"})
		s.handleEnter(c, &Envelope{Type: EventEnter, RoomId: "abc"})

		assert.Equal(t, 1, s.Occupancy("abc"))
		db.AssertNumberOfCalls(t, "CreateMembership", 1)
	})

	t.Run("unknown room", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}

		s := newTestServer(t, db, su, nil)
		c := newTestClient(t, 1, "alice")

		s.handleEnter(c, &Envelope{Type: EventEnter, RoomId: "missing"})

		resp := receive(t, c)
		assert.Equal(t, 404, resp.Response.Code)
	})

	t.Run("room at capacity refuses new members", func(t *testing.T) {
		small := database.Room{Id: 2, ExternalId: "tiny", Name: "Chef's Table", Capacity: 1}
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}

		s := newTestServer(t, db, su, []database.Room{small})
		c := newTestClient(t, 7, "late")

		db.On("MembershipExists", 7, 2).Return(false).Once()
		db.On("CountMemberships", 2).Return(1, nil).Once()

		s.handleEnter(c, &Envelope{Type: EventEnter, RoomId: "tiny"})

		resp := receive(t, c)
		assert.Equal(t, 409, resp.Response.Code)
		assert.Equal(t, 0, s.Occupancy("tiny"))
		db.AssertNotCalled(t, "CreateMembership", 7, 2)
	})
}

func TestHandleTalk(t *testing.T) {
	room := database.Room{Id: 1, ExternalId: "abc", Name: "Tasting Club", Capacity: 10}

	t.Run("talk requires entering the room first", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}

		s := newTestServer(t, db, su, []database.Room{room})
		c := newTestClient(t, 1, "alice")

		s.handleTalk(c, &Envelope{Type: EventTalk, RoomId: "abc", Msg: "hello"})

		resp := receive(t, c)
		assert.Equal(t, 403, resp.Response.Code)
		db.AssertNotCalled(t, "CreateMessage", mock.Anything)
	})

	t.Run("talk is persisted and fanned out", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		su.On("Incr", statMessagesRelayed).Return(nil).Once()

		s := newTestServer(t, db, su, []database.Room{room})
		alice := newTestClient(t, 1, "alice")
		bob := newTestClient(t, 2, "bob")

		s.registry.Add("abc", alice)
		s.registry.Add("abc", bob)

		db.On("CreateMessage", mock.MatchedBy(func(msg database.Message) bool {
			return msg.RoomId == 1 && msg.MemberId == 1 && msg.Content == "hello"
		})).Return(nil).Once()

		s.handleTalk(alice, &Envelope{Type: EventTalk, RoomId: "abc", Msg: "hello"})

		got := receive(t, bob)
		assert.NotNil(t, got.Envelope, "expected bob to receive the relayed envelope")
		assert.Equal(t, EventTalk, got.Envelope.Type)
		assert.Equal(t, "hello", got.Envelope.Msg)
		assert.Equal(t, 1, got.Envelope.MemberId, "expected envelope to carry the sender's member id")
		assert.False(t, got.Envelope.RegDate.IsZero(), "expected server-assigned timestamp")

		// the sender is a live connection in the room and receives it too
		got = receive(t, alice)
		assert.NotNil(t, got.Envelope)
	})

	t.Run("store failure does not abort delivery", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		su.On("Incr", statMessagesRelayed).Return(nil).Once()

		s := newTestServer(t, db, su, []database.Room{room})
		alice := newTestClient(t, 1, "alice")
		bob := newTestClient(t, 2, "bob")

		s.registry.Add("abc", alice)
		s.registry.Add("abc", bob)

		db.On("CreateMessage", mock.Anything).Return(assert.AnError).Once()

		s.handleTalk(alice, &Envelope{Type: EventTalk, RoomId: "abc", Msg: "hello"})

		got := receive(t, bob)
		assert.NotNil(t, got.Envelope, "expected delivery despite store failure")
	})

	t.Run("full send queue drops for that connection only", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		su.On("Incr", statMessagesRelayed).Return(nil).Once()
		su.On("Incr", statDroppedSends).Return(nil).Once()

		s := newTestServer(t, db, su, []database.Room{room})
		alice := newTestClient(t, 1, "alice")
		slow := newTestClient(t, 2, "slow")
		slow.send = make(chan *ServerMessage) // unbuffered and never read

		s.registry.Add("abc", alice)
		s.registry.Add("abc", slow)

		db.On("CreateMessage", mock.Anything).Return(nil).Once()

		s.handleTalk(alice, &Envelope{Type: EventTalk, RoomId: "abc", Msg: "hello"})

		got := receive(t, alice)
		assert.NotNil(t, got.Envelope, "expected healthy connection to receive the message")
	})
}

func TestLeaveAndRoomDeletion(t *testing.T) {
	room := database.Room{Id: 1, ExternalId: "abc", Name: "Tasting Club", Capacity: 10}

	t.Run("room survives while durable occupancy is nonzero", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}

		s := newTestServer(t, db, su, []database.Room{room})
		alice := newTestClient(t, 1, "alice")
		s.registry.Add("abc", alice)

		db.On("DeleteMembership", 1, 1).Return(nil).Once()
		db.On("CountMemberships", 1).Return(1, nil).Once()

		s.handleClose(alice)

		assert.Equal(t, 0, s.Occupancy("abc"))
		_, err := s.directory.Get("abc")
		assert.NoError(t, err, "expected room to survive while a member remains")
		db.AssertNotCalled(t, "DeleteRoom", 1)
	})

	t.Run("room is deleted when both occupancies reach zero", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		su.On("Incr", statRoomsDeleted).Return(nil).Once()

		s := newTestServer(t, db, su, []database.Room{room})
		bob := newTestClient(t, 2, "bob")
		s.registry.Add("abc", bob)

		db.On("DeleteMembership", 2, 1).Return(nil).Once()
		db.On("CountMemberships", 1).Return(0, nil).Once()
		db.On("DeleteRoom", 1).Return(nil).Once()

		s.handleClose(bob)

		_, err := s.directory.Get("abc")
		assert.ErrorIs(t, err, ErrRoomNotFound, "expected empty room to be deleted")
	})

	t.Run("room survives while live connections remain", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}

		s := newTestServer(t, db, su, []database.Room{room})
		alice := newTestClient(t, 1, "alice")
		bob := newTestClient(t, 2, "bob")
		s.registry.Add("abc", alice)
		s.registry.Add("abc", bob)

		// alice's durable membership is the last one, but bob is still live
		db.On("DeleteMembership", 1, 1).Return(nil).Once()
		db.On("CountMemberships", 1).Return(0, nil).Once()

		s.handleClose(alice)

		_, err := s.directory.Get("abc")
		assert.NoError(t, err, "expected room to survive while a live connection remains")
		db.AssertNotCalled(t, "DeleteRoom", 1)
	})
}

func TestDisconnect(t *testing.T) {
	room := database.Room{Id: 1, ExternalId: "abc", Name: "Tasting Club", Capacity: 10}

	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	su := &stats.MockStatsUpdater{}
	su.On("Incr", statLiveConnections).Return(nil).Once()
	su.On("Decr", statLiveConnections).Return(nil).Once()
	su.On("Incr", statRoomsDeleted).Return(nil).Once()

	s := newTestServer(t, db, su, []database.Room{room})
	alice := newTestClient(t, 1, "alice")

	s.RegisterClient(alice)
	s.registry.Add("abc", alice)

	db.On("DeleteMembership", 1, 1).Return(nil).Once()
	db.On("CountMemberships", 1).Return(0, nil).Once()
	db.On("DeleteRoom", 1).Return(nil).Once()

	s.disconnect(alice)

	assert.Equal(t, 0, s.Occupancy("abc"))
	_, ok := s.registry.Room(alice)
	assert.False(t, ok, "expected reverse index entry removed on disconnect")

	// a second disconnect for the same connection is a no-op
	s.disconnect(alice)
	db.AssertNumberOfCalls(t, "DeleteMembership", 1)
}

func TestDeleteRoom(t *testing.T) {
	room := database.Room{Id: 1, ExternalId: "abc", Name: "Tasting Club", Capacity: 10}

	t.Run("refuses while connections are live", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}

		s := newTestServer(t, db, su, []database.Room{room})
		s.registry.Add("abc", newTestClient(t, 1, "alice"))

		err := s.DeleteRoom("abc")
		assert.ErrorIs(t, err, ErrRoomOccupied)
		db.AssertNotCalled(t, "DeleteRoom", 1)
	})

	t.Run("deletes an idle room", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		su.On("Incr", statRoomsDeleted).Return(nil).Once()

		s := newTestServer(t, db, su, []database.Room{room})
		db.On("DeleteRoom", 1).Return(nil).Once()

		assert.NoError(t, s.DeleteRoom("abc"))

		_, err := s.directory.Get("abc")
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})

	t.Run("unknown room", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}

		s := newTestServer(t, db, su, nil)
		assert.ErrorIs(t, s.DeleteRoom("missing"), ErrRoomNotFound)
	})
}

// Full walk through the tasting-club scenario: create, two members enter,
// one talks, both leave, the room is gone.
func TestTastingClubScenario(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.Anything).Return(nil)
	su.On("Decr", mock.Anything).Return(nil)

	s := newTestServer(t, db, su, nil)

	db.On("CreateRoom", mock.Anything).Return(
		database.Room{Id: 1, ExternalId: "club", Name: "Tasting Club", Capacity: 10, Kind: "recipe"}, nil).Once()

	room, err := s.Directory().Create("Tasting Club", 10, "recipe")
	assert.NoError(t, err)

	alice := newTestClient(t, 1, "alice")
	bob := newTestClient(t, 2, "bob")

	db.On("MembershipExists", 1, 1).Return(false).Once()
	db.On("MembershipExists", 2, 1).Return(false).Once()
	db.On("CountMemberships", 1).Return(0, nil).Once()
	db.On("CountMemberships", 1).Return(1, nil).Once()
	db.On("CreateMembership", 1, 1).Return(nil).Once()
	db.On("CreateMembership", 2, 1).Return(nil).Once()

	s.handleEnter(alice, &Envelope{Type: EventEnter, RoomId: room.ExternalId})
	s.handleEnter(bob, &Envelope{Type: EventEnter, RoomId: room.ExternalId})
	receive(t, alice)
	receive(t, bob)

	db.On("CreateMessage", mock.MatchedBy(func(msg database.Message) bool {
		return msg.Content == "hello" && msg.MemberId == 1
	})).Return(nil).Once()

	s.handleTalk(alice, &Envelope{Type: EventTalk, RoomId: room.ExternalId, Msg: "hello"})

	got := receive(t, bob)
	assert.Equal(t, "hello", got.Envelope.Msg)
	assert.Equal(t, 1, got.Envelope.MemberId)

	// alice leaves: one durable member remains, room survives
	db.On("DeleteMembership", 1, 1).Return(nil).Once()
	db.On("CountMemberships", 1).Return(1, nil).Once()
	s.handleClose(alice)
	assert.Equal(t, 1, s.Occupancy(room.ExternalId))
	_, err = s.Directory().Get(room.ExternalId)
	assert.NoError(t, err)

	// bob leaves: both occupancies hit zero, room is deleted
	db.On("DeleteMembership", 2, 1).Return(nil).Once()
	db.On("CountMemberships", 1).Return(0, nil).Once()
	db.On("DeleteRoom", 1).Return(nil).Once()
	s.handleClose(bob)

	_, err = s.Directory().Get(room.ExternalId)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
