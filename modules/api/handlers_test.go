package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nasif-muhamed/LearNerd-sub001/auth"
	domain "github.com/nasif-muhamed/LearNerd-sub001/domain/chat"
	"github.com/nasif-muhamed/LearNerd-sub001/modules/broadcast"
	"github.com/nasif-muhamed/LearNerd-sub001/modules/chat"
	"github.com/nasif-muhamed/LearNerd-sub001/modules/uploads"
)

var (
	student = domain.Participant{UserID: "student-1", FullName: "Asha Nair"}
	tutor   = domain.Participant{UserID: "tutor-1", FullName: "Maya Thomas"}
)

type testServer struct {
	module  *Module
	service *chat.Service
	auth    *auth.Manager
	addr    string
}

func (s *testServer) httpURL(path string) string {
	return "http://" + s.addr + path
}

func (s *testServer) wsURL(roomID, token string) string {
	return fmt.Sprintf("ws://%s/ws/rooms/%s?token=%s", s.addr, roomID, token)
}

func (s *testServer) token(t *testing.T, p domain.Participant, role auth.Role) string {
	t.Helper()
	token, err := s.auth.Generate(p.UserID, p.FullName, role)
	require.NoError(t, err)
	return token
}

func (s *testServer) dial(t *testing.T, roomID, token string) *gorillaws.Conn {
	t.Helper()
	conn, resp, err := gorillaws.DefaultDialer.Dial(s.wsURL(roomID, token), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	service := chat.NewService(db)
	require.NoError(t, service.Migrate())

	hub := broadcast.NewHub()
	hubCtx, cancel := context.WithCancel(context.Background())
	go hub.Run(hubCtx)
	t.Cleanup(func() {
		cancel()
		hub.Wait()
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	m := &Module{
		chat:    service,
		hub:     hub,
		auth:    auth.NewManager(auth.DefaultConfig()),
		uploads: uploads.NewMemoryObjectStore(),
		port:    "0",
		baseURL: "http://" + ln.Addr().String(),
	}
	require.NoError(t, m.StartOnListener(ln))
	t.Cleanup(func() { _ = m.app.Shutdown() })

	s := &testServer{module: m, service: service, auth: m.auth, addr: ln.Addr().String()}

	require.Eventually(t, func() bool {
		resp, err := http.Get(s.httpURL("/health"))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	return s
}

func readFrame(t *testing.T, conn *gorillaws.Conn) broadcast.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame broadcast.Frame
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func writeFrame(t *testing.T, conn *gorillaws.Conn, frame map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

func TestSocketAuth(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.service.CreateRoom(
		domain.Room{ID: "d1", RoomType: domain.RoomOneToOne}, []domain.Participant{student, tutor}))

	t.Run("invalid token", func(t *testing.T) {
		_, resp, err := gorillaws.DefaultDialer.Dial(s.wsURL("d1", "garbage"), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("non-member", func(t *testing.T) {
		outsider := s.token(t, domain.Participant{UserID: "stranger", FullName: "Nobody"}, auth.RoleStudent)
		_, resp, err := gorillaws.DefaultDialer.Dial(s.wsURL("d1", outsider), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		resp.Body.Close()
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestPresenceFanOut(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.service.CreateRoom(
		domain.Room{ID: "d1", RoomType: domain.RoomOneToOne}, []domain.Participant{student, tutor}))

	studentConn := s.dial(t, "d1", s.token(t, student, auth.RoleStudent))

	// The first joiner sees only the room snapshot for itself.
	frame := readFrame(t, studentConn)
	require.Equal(t, "room_online_status", frame.Type)
	require.Equal(t, 1, frame.OnlineUserCount)

	tutorConn := s.dial(t, "d1", s.token(t, tutor, auth.RoleTutor))

	frame = readFrame(t, studentConn)
	require.Equal(t, "online_status", frame.Type)
	require.Equal(t, tutor.UserID, frame.UserID)
	require.True(t, frame.IsOnline)

	frame = readFrame(t, studentConn)
	require.Equal(t, "room_online_status", frame.Type)
	require.Equal(t, 2, frame.OnlineUserCount)

	tutorConn.Close()

	frame = readFrame(t, studentConn)
	require.Equal(t, "online_status", frame.Type)
	require.Equal(t, tutor.UserID, frame.UserID)
	require.False(t, frame.IsOnline)

	frame = readFrame(t, studentConn)
	require.Equal(t, "room_online_status", frame.Type)
	require.Equal(t, 1, frame.OnlineUserCount)
}

func TestTypingRelay(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.service.CreateRoom(
		domain.Room{ID: "d1", RoomType: domain.RoomOneToOne}, []domain.Participant{student, tutor}))

	studentConn := s.dial(t, "d1", s.token(t, student, auth.RoleStudent))
	readFrame(t, studentConn) // own room snapshot

	tutorConn := s.dial(t, "d1", s.token(t, tutor, auth.RoleTutor))
	readFrame(t, studentConn) // tutor online_status
	readFrame(t, studentConn) // room snapshot
	readFrame(t, tutorConn)   // own room snapshot

	writeFrame(t, tutorConn, map[string]any{"type": "typing", "is_typing": true})

	frame := readFrame(t, studentConn)
	require.Equal(t, "typing", frame.Type)
	require.NotNil(t, frame.User)
	require.Equal(t, tutor.UserID, frame.User.UserID)
	require.True(t, frame.IsTyping)
}

func TestReadReceiptFlow(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.service.CreateRoom(
		domain.Room{ID: "d1", RoomType: domain.RoomOneToOne}, []domain.Participant{student, tutor}))
	_, err := s.service.Append("d1", tutor, "unread message", domain.MessageText)
	require.NoError(t, err)

	studentConn := s.dial(t, "d1", s.token(t, student, auth.RoleStudent))
	readFrame(t, studentConn)

	tutorConn := s.dial(t, "d1", s.token(t, tutor, auth.RoleTutor))
	readFrame(t, studentConn)
	readFrame(t, studentConn)
	readFrame(t, tutorConn)

	writeFrame(t, studentConn, map[string]any{"type": "read_receipt", "message": "unused"})

	frame := readFrame(t, tutorConn)
	require.Equal(t, "read_receipt", frame.Type)
	require.Equal(t, student.UserID, frame.UserID)

	history, err := s.service.History("d1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, domain.ReadYes, history[0].IsRead)
}

func TestMessageIntentPersists(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.service.CreateRoom(
		domain.Room{ID: "d1", RoomType: domain.RoomOneToOne}, []domain.Participant{student, tutor}))

	studentConn := s.dial(t, "d1", s.token(t, student, auth.RoleStudent))
	readFrame(t, studentConn)

	writeFrame(t, studentConn, map[string]any{"type": "message", "message": "hello there"})

	require.Eventually(t, func() bool {
		history, err := s.service.History("d1")
		return err == nil && len(history) == 1 && history[0].Content == "hello there"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestMessageIntentExpiredRoom(t *testing.T) {
	s := newTestServer(t)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, s.service.CreateRoom(
		domain.Room{ID: "old", RoomType: domain.RoomOneToOne, ExpiresAt: &past},
		[]domain.Participant{student, tutor}))

	conn := s.dial(t, "old", s.token(t, student, auth.RoleStudent))
	readFrame(t, conn)

	writeFrame(t, conn, map[string]any{"type": "message", "message": "too late"})

	frame := readFrame(t, conn)
	require.Equal(t, "error", frame.Type)
	require.Contains(t, frame.Error, "expired")

	history, err := s.service.History("old")
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestRESTRoomsAndHistory(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.service.CreateRoom(
		domain.Room{ID: "d1", RoomType: domain.RoomOneToOne}, []domain.Participant{student, tutor}))
	require.NoError(t, s.service.CreateRoom(
		domain.Room{ID: "g1", RoomType: domain.RoomGroup, Name: "Go Study Group"},
		[]domain.Participant{student, tutor}))
	_, err := s.service.Append("d1", tutor, "welcome", domain.MessageText)
	require.NoError(t, err)

	token := s.token(t, student, auth.RoleStudent)

	t.Run("missing token", func(t *testing.T) {
		resp, err := http.Get(s.httpURL("/api/v1/rooms"))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("list one_to_one with selection pin", func(t *testing.T) {
		var body RoomListResponse
		getJSON(t, s.httpURL("/api/v1/rooms?room_type=one_to_one&selected=d1"), token, &body)
		require.Len(t, body.Rooms, 1)
		require.Equal(t, "d1", body.Rooms[0].ID)
		require.True(t, body.Rooms[0].SelectedDefault)
		require.Equal(t, 1, body.Rooms[0].UnreadCount)
	})

	t.Run("list group", func(t *testing.T) {
		var body RoomListResponse
		getJSON(t, s.httpURL("/api/v1/rooms?room_type=group"), token, &body)
		require.Len(t, body.Rooms, 1)
		require.Equal(t, "g1", body.Rooms[0].ID)
	})

	t.Run("history", func(t *testing.T) {
		var body HistoryResponse
		getJSON(t, s.httpURL("/api/v1/rooms/d1/messages"), token, &body)
		require.Len(t, body.Messages, 1)
		require.Equal(t, "welcome", body.Messages[0].Content)
	})

	t.Run("history forbidden for non-member", func(t *testing.T) {
		outsider := s.token(t, domain.Participant{UserID: "stranger", FullName: "Nobody"}, auth.RoleStudent)
		req, err := http.NewRequest(http.MethodGet, s.httpURL("/api/v1/rooms/d1/messages"), nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+outsider)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestMeetingEndpoint(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.service.CreateRoom(
		domain.Room{ID: "g1", RoomType: domain.RoomGroup, Name: "Go Study Group"},
		[]domain.Participant{student, tutor}))

	meetingBody, err := json.Marshal(MeetingRequest{
		Meeting: &domain.Meeting{ID: "mtg-1", Title: "Office hours", Active: true, StartedAt: time.Now()},
	})
	require.NoError(t, err)

	t.Run("student forbidden", func(t *testing.T) {
		resp := postJSON(t, s.httpURL("/api/v1/rooms/g1/meeting"), s.token(t, student, auth.RoleStudent), meetingBody)
		require.Equal(t, http.StatusForbidden, resp)
	})

	t.Run("tutor sets and clears", func(t *testing.T) {
		tutorToken := s.token(t, tutor, auth.RoleTutor)
		require.Equal(t, http.StatusNoContent, postJSON(t, s.httpURL("/api/v1/rooms/g1/meeting"), tutorToken, meetingBody))

		room, err := s.service.Room("g1", student.UserID)
		require.NoError(t, err)
		require.NotNil(t, room.Meeting)
		require.Equal(t, "mtg-1", room.Meeting.ID)

		clearBody, err := json.Marshal(MeetingRequest{})
		require.NoError(t, err)
		require.Equal(t, http.StatusNoContent, postJSON(t, s.httpURL("/api/v1/rooms/g1/meeting"), tutorToken, clearBody))

		room, err = s.service.Room("g1", student.UserID)
		require.NoError(t, err)
		require.Nil(t, room.Meeting)
	})
}

func TestUploadRoundTrip(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, student, auth.RoleStudent)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "diagram.png")
	require.NoError(t, err)
	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, s.httpURL("/api/v1/uploads"), &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var upload UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&upload))
	require.Contains(t, upload.URL, "/api/v1/uploads/")
	require.Contains(t, upload.URL, "diagram.png")

	// Download is public, no bearer token.
	got, err := http.Get(upload.URL)
	require.NoError(t, err)
	defer got.Body.Close()
	require.Equal(t, http.StatusOK, got.StatusCode)
	data, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

func getJSON(t *testing.T, url, token string, out any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func postJSON(t *testing.T, url, token string, body []byte) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}
