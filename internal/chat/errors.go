package chat

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotInRoom    = errors.New("connection has not entered the room")
	ErrRoomOccupied = errors.New("room has live connections")
	ErrRoomFull     = errors.New("room is at capacity")
	ErrNotLoaded    = errors.New("room directory not loaded")
)
