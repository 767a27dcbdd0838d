package database

type Repository interface {
	Ping() error

	CreateMember(params CreateMemberParams) (Member, error)
	UpdateMember(params UpdateMemberParams) (Member, error)
	GetMemberById(memberId int) (Member, error)
	GetMemberByEmail(email string) (Member, error)

	CreateRoom(params CreateRoomParams) (Room, error)
	GetRoomByExternalId(externalId string) (Room, error)
	ListRooms() ([]Room, error)
	ListRoomsByCreation() ([]Room, error)
	DeleteRoom(id int) error

	CreateMembership(memberId, roomId int) error
	DeleteMembership(memberId, roomId int) error
	MembershipExists(memberId, roomId int) bool
	CountMemberships(roomId int) (int, error)
	ListRoomsForMember(memberId int) ([]Room, error)

	CreateMessage(msg Message) error
	RecentMessages(roomId, limit int) ([]Message, error)
}
