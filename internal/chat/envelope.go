package chat

import (
	"net/http"
	"time"
)

type EventType string

const (
	EventEnter EventType = "ENTER"
	EventTalk  EventType = "TALK"
	EventClose EventType = "CLOSE"
)

// Envelope is the wire format for chat events. The same shape is used
// inbound and for fan-out to room participants. MemberId and Username are
// always overwritten with the authenticated member of the connection.
type Envelope struct {
	Type     EventType `json:"type"`
	RoomId   string    `json:"room_id"`
	MemberId int       `json:"member_id"`
	Username string    `json:"username,omitempty"`
	Msg      string    `json:"msg,omitempty"`
	Img      string    `json:"img,omitempty"`
	RegDate  time.Time `json:"reg_date"`
}

// ServerMessage is outbound traffic: a relayed envelope, a response to the
// sending connection, or both.
type ServerMessage struct {
	Envelope *Envelope `json:"envelope,omitempty"`
	Response *Response `json:"response,omitempty"`
}

type Response struct {
	Code      int       `json:"code"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func respOK() *ServerMessage {
	return &ServerMessage{
		Response: &Response{
			Code:      http.StatusOK,
			Timestamp: Now(),
		},
	}
}

func respRoomNotFound() *ServerMessage {
	return &ServerMessage{
		Response: &Response{
			Code:      http.StatusNotFound,
			Error:     "room not found",
			Timestamp: Now(),
		},
	}
}

func respNotInRoom() *ServerMessage {
	return &ServerMessage{
		Response: &Response{
			Code:      http.StatusForbidden,
			Error:     "not in room",
			Timestamp: Now(),
		},
	}
}

func respRoomFull() *ServerMessage {
	return &ServerMessage{
		Response: &Response{
			Code:      http.StatusConflict,
			Error:     "room is full",
			Timestamp: Now(),
		},
	}
}

func respInvalidMessage() *ServerMessage {
	return &ServerMessage{
		Response: &Response{
			Code:      http.StatusBadRequest,
			Error:     "invalid message format",
			Timestamp: Now(),
		},
	}
}

func respInternalError() *ServerMessage {
	return &ServerMessage{
		Response: &Response{
			Code:      http.StatusInternalServerError,
			Error:     "internal server error",
			Timestamp: Now(),
		},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
