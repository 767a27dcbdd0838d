package database

import (
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepository) CreateMember(params CreateMemberParams) (Member, error) {
	args := m.Called(params)
	return args.Get(0).(Member), args.Error(1)
}

func (m *MockRepository) UpdateMember(params UpdateMemberParams) (Member, error) {
	args := m.Called(params)
	return args.Get(0).(Member), args.Error(1)
}

func (m *MockRepository) GetMemberById(memberId int) (Member, error) {
	args := m.Called(memberId)
	return args.Get(0).(Member), args.Error(1)
}

func (m *MockRepository) GetMemberByEmail(email string) (Member, error) {
	args := m.Called(email)
	return args.Get(0).(Member), args.Error(1)
}

func (m *MockRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockRepository) GetRoomByExternalId(externalId string) (Room, error) {
	args := m.Called(externalId)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockRepository) ListRooms() ([]Room, error) {
	args := m.Called()
	return args.Get(0).([]Room), args.Error(1)
}

func (m *MockRepository) ListRoomsByCreation() ([]Room, error) {
	args := m.Called()
	return args.Get(0).([]Room), args.Error(1)
}

func (m *MockRepository) DeleteRoom(id int) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockRepository) CreateMembership(memberId, roomId int) error {
	args := m.Called(memberId, roomId)
	return args.Error(0)
}

func (m *MockRepository) DeleteMembership(memberId, roomId int) error {
	args := m.Called(memberId, roomId)
	return args.Error(0)
}

func (m *MockRepository) MembershipExists(memberId, roomId int) bool {
	args := m.Called(memberId, roomId)
	return args.Bool(0)
}

func (m *MockRepository) CountMemberships(roomId int) (int, error) {
	args := m.Called(roomId)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) ListRoomsForMember(memberId int) ([]Room, error) {
	args := m.Called(memberId)
	return args.Get(0).([]Room), args.Error(1)
}

func (m *MockRepository) CreateMessage(msg Message) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockRepository) RecentMessages(roomId, limit int) ([]Message, error) {
	args := m.Called(roomId, limit)
	return args.Get(0).([]Message), args.Error(1)
}
