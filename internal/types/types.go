package types

import (
	"time"
)

type Member struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Room struct {
	Id          int       `json:"id"`
	ExternalId  string    `json:"external_id"`
	Name        string    `json:"name"`
	Capacity    int       `json:"capacity"`
	Kind        string    `json:"kind"`
	MemberCount int       `json:"member_count,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

type Membership struct {
	Id        int       `json:"id"`
	Member    Member    `json:"member"`
	Room      Room      `json:"room"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Message struct {
	Id        int       `json:"id"`
	RoomId    string    `json:"room_id"`
	MemberId  int       `json:"member_id"`
	Content   string    `json:"content"`
	Image     string    `json:"image,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
