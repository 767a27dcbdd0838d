package database

import (
	"fmt"
	"time"
)

func (db *PgRepository) CreateMember(params CreateMemberParams) (Member, error) {
	res := db.conn.QueryRow(
		"INSERT INTO members (username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, username, email, created_at, updated_at",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var m Member
	err := res.Scan(
		&m.Id,
		&m.Username,
		&m.EmailAddress,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	return m, err
}

func (db *PgRepository) UpdateMember(params UpdateMemberParams) (Member, error) {
	res := db.conn.QueryRow(
		"UPDATE members SET username = $2, password_hash = $3, updated_at = $4 "+
			"WHERE id = $1 RETURNING id, username, email, created_at, updated_at",
		params.MemberId,
		params.Username,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var m Member
	err := res.Scan(
		&m.Id,
		&m.Username,
		&m.EmailAddress,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	return m, err
}

func (db *PgRepository) GetMemberById(memberId int) (Member, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, created_at, updated_at FROM members "+
			"WHERE id = $1 LIMIT 1",
		memberId,
	)

	var m Member
	err := row.Scan(
		&m.Id,
		&m.Username,
		&m.EmailAddress,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	return m, err
}

func (db *PgRepository) GetMemberByEmail(email string) (Member, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at, updated_at FROM members "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var m Member
	err := row.Scan(
		&m.Id,
		&m.Username,
		&m.EmailAddress,
		&m.PasswordHash,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	return m, err
}

func (db *PgRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	res := db.conn.QueryRow(
		"INSERT INTO rooms (external_id, name, capacity, kind, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, external_id, name, capacity, kind, created_at",
		params.ExternalId,
		params.Name,
		params.Capacity,
		params.Kind,
		time.Now().UTC(),
	)

	var room Room
	err := res.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Name,
		&room.Capacity,
		&room.Kind,
		&room.CreatedAt,
	)

	return room, err
}

func (db *PgRepository) GetRoomByExternalId(externalId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, name, capacity, kind, created_at FROM rooms "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Name,
		&room.Capacity,
		&room.Kind,
		&room.CreatedAt,
	)

	return room, err
}

func (db *PgRepository) listRooms(query string) ([]Room, error) {
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(
			&room.Id,
			&room.ExternalId,
			&room.Name,
			&room.Capacity,
			&room.Kind,
			&room.CreatedAt,
		); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

func (db *PgRepository) ListRooms() ([]Room, error) {
	return db.listRooms(
		"SELECT id, external_id, name, capacity, kind, created_at FROM rooms",
	)
}

func (db *PgRepository) ListRoomsByCreation() ([]Room, error) {
	return db.listRooms(
		"SELECT id, external_id, name, capacity, kind, created_at FROM rooms ORDER BY created_at",
	)
}

// DeleteRoom removes the room along with its memberships and messages.
func (db *PgRepository) DeleteRoom(id int) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec("DELETE FROM memberships WHERE room_id = $1", id)
	if err != nil {
		return err
	}

	_, err = tx.Exec("DELETE FROM messages WHERE room_id = $1", id)
	if err != nil {
		return err
	}

	_, err = tx.Exec("DELETE FROM rooms WHERE id = $1", id)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// CreateMembership is idempotent: inserting an existing (member, room)
// pair is a no-op.
func (db *PgRepository) CreateMembership(memberId, roomId int) error {
	_, err := db.conn.Exec(
		"INSERT INTO memberships (member_id, room_id, created_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (member_id, room_id) DO NOTHING",
		memberId,
		roomId,
		time.Now().UTC(),
	)

	return err
}

func (db *PgRepository) DeleteMembership(memberId, roomId int) error {
	_, err := db.conn.Exec(
		"DELETE FROM memberships WHERE member_id = $1 AND room_id = $2",
		memberId,
		roomId,
	)

	return err
}

func (db *PgRepository) MembershipExists(memberId, roomId int) bool {
	res := db.conn.QueryRow(
		"SELECT id FROM memberships WHERE member_id = $1 AND room_id = $2 LIMIT 1",
		memberId,
		roomId,
	)

	var id int
	return res.Scan(&id) == nil
}

func (db *PgRepository) CountMemberships(roomId int) (int, error) {
	row := db.conn.QueryRow(
		"SELECT COUNT(*) FROM memberships WHERE room_id = $1",
		roomId,
	)

	var count int
	err := row.Scan(&count)

	return count, err
}

func (db *PgRepository) ListRoomsForMember(memberId int) ([]Room, error) {
	rows, err := db.conn.Query(
		"SELECT r.id, r.external_id, r.name, r.capacity, r.kind, r.created_at "+
			"FROM rooms r JOIN memberships ms ON r.id = ms.room_id "+
			"WHERE ms.member_id = $1 ORDER BY ms.created_at",
		memberId,
	)
	if err != nil {
		return nil, fmt.Errorf("list rooms for member: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(
			&room.Id,
			&room.ExternalId,
			&room.Name,
			&room.Capacity,
			&room.Kind,
			&room.CreatedAt,
		); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

func (db *PgRepository) CreateMessage(msg Message) error {
	_, err := db.conn.Exec(
		"INSERT INTO messages (room_id, member_id, content, image, created_at) "+
			"VALUES ($1, $2, $3, $4, $5)",
		msg.RoomId,
		msg.MemberId,
		msg.Content,
		msg.Image,
		msg.CreatedAt,
	)

	return err
}

// RecentMessages returns the most recent messages for a room, newest first.
func (db *PgRepository) RecentMessages(roomId, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(
		"SELECT id, room_id, member_id, content, image, created_at FROM messages "+
			"WHERE room_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2",
		roomId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.Id, &msg.RoomId, &msg.MemberId, &msg.Content, &msg.Image, &msg.CreatedAt); err != nil {
			return nil, err
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
