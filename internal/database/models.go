package database

import "time"

type Member struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Room struct {
	Id         int
	ExternalId string
	Name       string
	Capacity   int
	Kind       string
	CreatedAt  time.Time
}

type Membership struct {
	Id        int
	RoomId    int
	MemberId  int
	Username  string
	CreatedAt time.Time
}

type Message struct {
	Id        int
	RoomId    int
	MemberId  int
	Content   string
	Image     string
	CreatedAt time.Time
}

type CreateMemberParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type UpdateMemberParams struct {
	MemberId     int
	Username     string
	PasswordHash string
}

type CreateRoomParams struct {
	ExternalId string
	Name       string
	Capacity   int
	Kind       string
}
