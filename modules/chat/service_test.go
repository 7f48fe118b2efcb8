package chat

import (
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	domain "github.com/nasif-muhamed/LearNerd-sub001/domain/chat"
)

var (
	asha = domain.Participant{UserID: "student-1", FullName: "Asha Nair"}
	maya = domain.Participant{UserID: "tutor-1", FullName: "Maya Thomas"}
	ravi = domain.Participant{UserID: "student-2", FullName: "Ravi Menon"}
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	service := NewService(db)
	if err := service.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return service
}

func mustCreateRoom(t *testing.T, service *Service, room domain.Room, members ...domain.Participant) {
	t.Helper()
	if err := service.CreateRoom(room, members); err != nil {
		t.Fatalf("CreateRoom(%s) unexpected error: %v", room.ID, err)
	}
}

func TestService_RoomsPartitions(t *testing.T) {
	service := newTestService(t)

	mustCreateRoom(t, service, domain.Room{ID: "d1", RoomType: domain.RoomOneToOne}, asha, maya)
	mustCreateRoom(t, service, domain.Room{ID: "g1", RoomType: domain.RoomGroup, Name: "Go Study Group"}, asha, maya, ravi)
	mustCreateRoom(t, service, domain.Room{ID: "d2", RoomType: domain.RoomOneToOne}, maya, ravi)

	direct, err := service.Rooms(asha.UserID, domain.RoomOneToOne)
	if err != nil {
		t.Fatalf("Rooms() unexpected error: %v", err)
	}
	if len(direct) != 1 || direct[0].ID != "d1" {
		t.Fatalf("Rooms(one_to_one) = %v, want [d1]", direct)
	}

	peer, ok := direct[0].Peer()
	if !ok || peer.UserID != maya.UserID {
		t.Errorf("Peer() = %v, %v, want tutor-1", peer, ok)
	}

	group, err := service.Rooms(asha.UserID, domain.RoomGroup)
	if err != nil {
		t.Fatalf("Rooms() unexpected error: %v", err)
	}
	if len(group) != 1 || group[0].ID != "g1" {
		t.Fatalf("Rooms(group) = %v, want [g1]", group)
	}
	if len(group[0].Participants) != 3 {
		t.Errorf("group participants = %d, want 3 (viewer included)", len(group[0].Participants))
	}
}

func TestService_AppendValidation(t *testing.T) {
	service := newTestService(t)
	mustCreateRoom(t, service, domain.Room{ID: "d1", RoomType: domain.RoomOneToOne}, asha, maya)

	tests := []struct {
		name    string
		roomID  string
		sender  domain.Participant
		content string
		wantErr error
	}{
		{
			name:    "valid message",
			roomID:  "d1",
			sender:  asha,
			content: "hello",
		},
		{
			name:    "whitespace only",
			roomID:  "d1",
			sender:  asha,
			content: "   \n\t  ",
			wantErr: ErrMessageEmpty,
		},
		{
			name:    "unknown room",
			roomID:  "nope",
			sender:  asha,
			content: "hello",
			wantErr: ErrRoomNotFound,
		},
		{
			name:    "non-member",
			roomID:  "d1",
			sender:  ravi,
			content: "hello",
			wantErr: ErrNotMember,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := service.Append(tt.roomID, tt.sender, tt.content, domain.MessageText)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Append() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Append() unexpected error: %v", err)
			}
			if msg.ID == "" {
				t.Error("Append() message ID should not be empty")
			}
			if msg.IsRead != domain.ReadNo {
				t.Errorf("Append() IsRead = %q, want %q", msg.IsRead, domain.ReadNo)
			}
		})
	}
}

func TestService_AppendExpiredRoom(t *testing.T) {
	service := newTestService(t)

	past := time.Now().Add(-time.Hour)
	mustCreateRoom(t, service, domain.Room{ID: "expired", RoomType: domain.RoomOneToOne, ExpiresAt: &past}, asha, maya)
	mustCreateRoom(t, service, domain.Room{ID: "temp", RoomType: domain.RoomOneToOne, ExpiresAt: &past, TempChat: true}, asha, maya)

	if _, err := service.Append("expired", asha, "too late", domain.MessageText); !errors.Is(err, ErrRoomExpired) {
		t.Fatalf("Append(expired) error = %v, want ErrRoomExpired", err)
	}

	// Temp chats keep accepting sends past their expiry.
	if _, err := service.Append("temp", asha, "still fine", domain.MessageText); err != nil {
		t.Fatalf("Append(temp) unexpected error: %v", err)
	}
}

func TestService_HistoryAndUnread(t *testing.T) {
	service := newTestService(t)
	mustCreateRoom(t, service, domain.Room{ID: "d1", RoomType: domain.RoomOneToOne}, asha, maya)

	contents := []string{"first", "second", "third"}
	for _, content := range contents {
		if _, err := service.Append("d1", maya, content, domain.MessageText); err != nil {
			t.Fatalf("Append() unexpected error: %v", err)
		}
	}
	if _, err := service.Append("d1", asha, "reply", domain.MessageText); err != nil {
		t.Fatalf("Append() unexpected error: %v", err)
	}

	history, err := service.History("d1")
	if err != nil {
		t.Fatalf("History() unexpected error: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("History() returned %d messages, want 4", len(history))
	}
	for i, want := range contents {
		if history[i].Content != want {
			t.Errorf("History()[%d] = %q, want %q", i, history[i].Content, want)
		}
	}

	// Only the tutor's messages count as unread for the student.
	rooms, err := service.Rooms(asha.UserID, domain.RoomOneToOne)
	if err != nil {
		t.Fatalf("Rooms() unexpected error: %v", err)
	}
	if rooms[0].UnreadCount != 3 {
		t.Errorf("UnreadCount = %d, want 3", rooms[0].UnreadCount)
	}
	if rooms[0].LastMessage == nil || rooms[0].LastMessage.Content != "reply" {
		t.Errorf("LastMessage = %v, want reply", rooms[0].LastMessage)
	}
}

func TestService_MarkRead(t *testing.T) {
	service := newTestService(t)
	mustCreateRoom(t, service, domain.Room{ID: "d1", RoomType: domain.RoomOneToOne}, asha, maya)

	for _, content := range []string{"one", "two"} {
		if _, err := service.Append("d1", maya, content, domain.MessageText); err != nil {
			t.Fatalf("Append() unexpected error: %v", err)
		}
	}
	if _, err := service.Append("d1", asha, "mine", domain.MessageText); err != nil {
		t.Fatalf("Append() unexpected error: %v", err)
	}

	flipped, err := service.MarkRead("d1", asha.UserID)
	if err != nil {
		t.Fatalf("MarkRead() unexpected error: %v", err)
	}
	if flipped != 2 {
		t.Errorf("MarkRead() flipped %d rows, want 2", flipped)
	}

	history, err := service.History("d1")
	if err != nil {
		t.Fatalf("History() unexpected error: %v", err)
	}
	for _, msg := range history {
		want := domain.ReadYes
		if msg.Sender.UserID == asha.UserID {
			want = domain.ReadNo
		}
		if msg.IsRead != want {
			t.Errorf("message %q IsRead = %q, want %q", msg.Content, msg.IsRead, want)
		}
	}

	// A second receipt finds nothing left to flip.
	flipped, err = service.MarkRead("d1", asha.UserID)
	if err != nil {
		t.Fatalf("MarkRead() unexpected error: %v", err)
	}
	if flipped != 0 {
		t.Errorf("second MarkRead() flipped %d rows, want 0", flipped)
	}
}

func TestService_SetMeeting(t *testing.T) {
	service := newTestService(t)
	mustCreateRoom(t, service, domain.Room{ID: "g1", RoomType: domain.RoomGroup, Name: "Go Study Group"}, asha, maya)

	meeting := &domain.Meeting{ID: "mtg-1", Title: "Office hours", Active: true, StartedAt: time.Now()}
	if err := service.SetMeeting("g1", meeting); err != nil {
		t.Fatalf("SetMeeting() unexpected error: %v", err)
	}

	room, err := service.Room("g1", asha.UserID)
	if err != nil {
		t.Fatalf("Room() unexpected error: %v", err)
	}
	if room.Meeting == nil || room.Meeting.ID != "mtg-1" || !room.Meeting.Active {
		t.Fatalf("Room().Meeting = %v, want active mtg-1", room.Meeting)
	}

	if err := service.SetMeeting("g1", nil); err != nil {
		t.Fatalf("SetMeeting(nil) unexpected error: %v", err)
	}
	room, err = service.Room("g1", asha.UserID)
	if err != nil {
		t.Fatalf("Room() unexpected error: %v", err)
	}
	if room.Meeting != nil {
		t.Errorf("Room().Meeting = %v, want nil after clear", room.Meeting)
	}

	if err := service.SetMeeting("missing", meeting); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("SetMeeting(missing) error = %v, want ErrRoomNotFound", err)
	}
}

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "valid", content: "hello"},
		{name: "empty", content: "", wantErr: ErrMessageEmpty},
		{name: "too long", content: string(make([]byte, MaxMessageLength+1)), wantErr: ErrMessageTooLong},
		{name: "invalid utf8", content: string([]byte{0xff, 0xfe}), wantErr: ErrMessageInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateMessage(tt.content); !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateMessage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
