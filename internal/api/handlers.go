package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tastebud/server/internal/chat"
	"github.com/tastebud/server/internal/database"
	"github.com/tastebud/server/internal/search"
	"github.com/tastebud/server/internal/types"
)

const (
	maxRoomNameLen  = 20
	maxRoomCapacity = 30
	defaultRoomKind = "recipe"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type UpdateAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreateRoomRequest struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Kind     string `json:"kind"`
}

type OccupancyResponse struct {
	RoomId      string `json:"room_id"`
	MemberCount int    `json:"member_count"`
	LiveCount   int    `json:"live_count"`
}

func (s *App) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *App) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("health check:", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *App) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newMember, err := s.db.CreateMember(database.CreateMemberParams{
		Username:     req.Username,
		EmailAddress: req.Email,
		PasswordHash: pwdHash,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, types.Member{
		Id:           newMember.Id,
		Username:     newMember.Username,
		EmailAddress: newMember.EmailAddress,
		CreatedAt:    newMember.CreatedAt,
		UpdatedAt:    newMember.UpdatedAt,
	})
}

func (s *App) account(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		memberId, ok := MemberId(r.Context())
		if !ok {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		member, err := s.db.GetMemberById(memberId)
		if err != nil {
			var errResp *ApiError
			if errors.Is(err, sql.ErrNoRows) {
				errResp = NewNotFoundError()
			} else {
				errResp = NewInternalServerError(err)
			}
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		s.writeJson(w, http.StatusOK, types.Member{
			Id:           member.Id,
			Username:     member.Username,
			EmailAddress: member.EmailAddress,
			CreatedAt:    member.CreatedAt,
			UpdatedAt:    member.UpdatedAt,
		})
	case http.MethodPut:
		memberId, ok := MemberId(r.Context())
		if !ok {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		var req UpdateAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		if req.Username == "" || req.Password == "" {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		pwdHash, err := hashPassword(req.Password)
		if err != nil {
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		member, err := s.db.UpdateMember(database.UpdateMemberParams{
			MemberId:     memberId,
			Username:     req.Username,
			PasswordHash: pwdHash,
		})
		if err != nil {
			var errResp *ApiError
			if errors.Is(err, sql.ErrNoRows) {
				errResp = NewNotFoundError()
			} else {
				errResp = NewInternalServerError(err)
			}
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		s.writeJson(w, http.StatusOK, types.Member{
			Id:           member.Id,
			Username:     member.Username,
			EmailAddress: member.EmailAddress,
			CreatedAt:    member.CreatedAt,
			UpdatedAt:    member.UpdatedAt,
		})
	default:
		errResp := NewMethodNotAllowedError()
		s.writeJson(w, errResp.StatusCode, errResp)
	}
}

func (s *App) session(w http.ResponseWriter, r *http.Request) {
	memberId, ok := MemberId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	member, err := s.db.GetMemberById(memberId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, types.Member{
		Id:           member.Id,
		Username:     member.Username,
		EmailAddress: member.EmailAddress,
		CreatedAt:    member.CreatedAt,
		UpdatedAt:    member.UpdatedAt,
	})
}

func (s *App) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if lr.Email == "" || lr.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	member, err := s.db.GetMemberByEmail(lr.Email)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(member.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	token, err := s.createJwtForSession(member.Id, defaultJwtExpiration)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))

	s.writeJson(w, http.StatusOK, types.Member{
		Id:           member.Id,
		Username:     member.Username,
		EmailAddress: member.EmailAddress,
		CreatedAt:    member.CreatedAt,
		UpdatedAt:    member.UpdatedAt,
	})
}

func (s *App) logout(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired token
	http.SetCookie(w, createJwtCookie("", -time.Hour))
	w.WriteHeader(http.StatusNoContent)
}

func (s *App) createRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// name and capacity limits are boundary rules, not relay rules
	if req.Name == "" || len(req.Name) > maxRoomNameLen {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if req.Capacity < 1 || req.Capacity > maxRoomCapacity {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if req.Kind == "" {
		req.Kind = defaultRoomKind
	}

	room, err := s.cs.Directory().Create(req.Name, req.Capacity, req.Kind)
	if err != nil {
		s.log.Println("create room:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, toApiRoom(room, 0))
}

func (s *App) listRooms(w http.ResponseWriter, r *http.Request) {
	var rooms []database.Room
	if r.URL.Query().Get("sort") == "created" {
		rooms = s.cs.Directory().ListByCreation()
	} else {
		rooms = s.cs.Directory().List()
	}

	apiRooms := make([]types.Room, 0, len(rooms))
	for _, room := range rooms {
		apiRooms = append(apiRooms, toApiRoom(room, 0))
	}

	s.writeJson(w, http.StatusOK, apiRooms)
}

func (s *App) roomDetail(w http.ResponseWriter, r *http.Request) {
	externalId := r.URL.Query().Get("id")
	if externalId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.cs.Directory().Get(externalId)
	if err != nil {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	count, err := s.db.CountMemberships(room.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, toApiRoom(room, count))
}

func (s *App) roomOccupancy(w http.ResponseWriter, r *http.Request) {
	externalId := r.URL.Query().Get("id")
	if externalId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.cs.Directory().Get(externalId)
	if err != nil {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	count, err := s.db.CountMemberships(room.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, OccupancyResponse{
		RoomId:      room.ExternalId,
		MemberCount: count,
		LiveCount:   s.cs.Occupancy(room.ExternalId),
	})
}

func (s *App) myRooms(w http.ResponseWriter, r *http.Request) {
	memberId, ok := MemberId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	rooms, err := s.db.ListRoomsForMember(memberId)
	if err != nil {
		s.log.Println("list rooms for member:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	apiRooms := make([]types.Room, 0, len(rooms))
	for _, room := range rooms {
		apiRooms = append(apiRooms, toApiRoom(room, 0))
	}

	s.writeJson(w, http.StatusOK, apiRooms)
}

func (s *App) deleteRoom(w http.ResponseWriter, r *http.Request) {
	externalId := r.URL.Query().Get("id")
	if externalId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.cs.DeleteRoom(externalId); err != nil {
		var errResp *ApiError
		switch {
		case errors.Is(err, chat.ErrRoomNotFound):
			errResp = NewNotFoundError()
		case errors.Is(err, chat.ErrRoomOccupied):
			errResp = NewConflictError("room has live connections")
		default:
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *App) getMessages(w http.ResponseWriter, r *http.Request) {
	externalId := r.URL.Query().Get("room_id")
	if externalId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.cs.Directory().Get(externalId)
	if err != nil {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages, err := s.db.RecentMessages(room.Id, s.historyLimit)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	apiMessages := make([]types.Message, 0, len(messages))
	for _, msg := range messages {
		apiMessages = append(apiMessages, types.Message{
			Id:        msg.Id,
			RoomId:    room.ExternalId,
			MemberId:  msg.MemberId,
			Content:   msg.Content,
			Image:     msg.Image,
			Timestamp: msg.CreatedAt,
		})
	}

	s.writeJson(w, http.StatusOK, apiMessages)
}

func (s *App) searchRecipes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	results, err := s.search.Search(r.Context(), query)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, search.ErrUnavailable) {
			errResp = NewServiceUnavailableError(err)
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, results)
}

func (s *App) recommendations(w http.ResponseWriter, r *http.Request) {
	memberId, ok := MemberId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	results, err := s.search.Recommend(r.Context(), memberId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, search.ErrUnavailable) {
			errResp = NewServiceUnavailableError(err)
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, results)
}

func (s *App) serveWs(w http.ResponseWriter, r *http.Request) {
	memberId, ok := MemberId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	member, err := s.db.GetMemberById(memberId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := chat.NewClient(types.Member{
		Id:           member.Id,
		Username:     member.Username,
		EmailAddress: member.EmailAddress,
		CreatedAt:    member.CreatedAt,
		UpdatedAt:    member.UpdatedAt,
	}, conn, s.cs, s.log)

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}

func toApiRoom(room database.Room, memberCount int) types.Room {
	return types.Room{
		Id:          room.Id,
		ExternalId:  room.ExternalId,
		Name:        room.Name,
		Capacity:    room.Capacity,
		Kind:        room.Kind,
		MemberCount: memberCount,
		CreatedAt:   room.CreatedAt,
	}
}
