package chat

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-monolith/mono"
	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/nasif-muhamed/LearNerd-sub001/domain/chat"
	"github.com/nasif-muhamed/LearNerd-sub001/events"
)

// Service provides room and message operations over the sqlite store.
type Service struct {
	db  *gorm.DB
	bus mono.EventBus
}

// NewService creates a service over an opened database.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// SetEventBus wires the event bus used for MessageSent fan-out.
func (s *Service) SetEventBus(bus mono.EventBus) {
	s.bus = bus
}

// Migrate creates the chat tables.
func (s *Service) Migrate() error {
	return s.db.AutoMigrate(&RoomRecord{}, &MemberRecord{}, &MessageRecord{})
}

// CreateRoom persists a room and its membership. Used by seeding and
// admin tooling; rooms are never deleted.
func (s *Service) CreateRoom(room domain.Room, members []domain.Participant) error {
	rec := RoomRecord{
		ID:        room.ID,
		RoomType:  string(room.RoomType),
		Name:      room.Name,
		Image:     room.Image,
		ExpiresAt: room.ExpiresAt,
		TempChat:  room.TempChat,
		CreatedAt: time.Now(),
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if room.Meeting != nil {
		data, err := json.Marshal(room.Meeting)
		if err != nil {
			return err
		}
		rec.Meeting = data
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		for _, m := range members {
			member := MemberRecord{
				RoomID:   rec.ID,
				UserID:   m.UserID,
				FullName: m.FullName,
				Image:    m.Image,
			}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// IsMember reports whether the user belongs to the room.
func (s *Service) IsMember(roomID, userID string) bool {
	var count int64
	s.db.Model(&MemberRecord{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count)
	return count > 0
}

// Room loads one room as seen by the viewer.
func (s *Service) Room(roomID, viewerID string) (domain.Room, error) {
	var rec RoomRecord
	if err := s.db.First(&rec, "id = ?", roomID).Error; err != nil {
		return domain.Room{}, ErrRoomNotFound
	}
	return s.toDomain(rec, viewerID)
}

// Rooms lists one partition of the viewer's rooms, each carrying the
// denormalized last-message summary and the viewer's unread counter.
func (s *Service) Rooms(viewerID string, roomType domain.RoomType) ([]domain.Room, error) {
	var memberships []MemberRecord
	if err := s.db.Where("user_id = ?", viewerID).Find(&memberships).Error; err != nil {
		return nil, err
	}

	roomIDs := make([]string, 0, len(memberships))
	for _, m := range memberships {
		roomIDs = append(roomIDs, m.RoomID)
	}
	if len(roomIDs) == 0 {
		return []domain.Room{}, nil
	}

	var recs []RoomRecord
	if err := s.db.Where("id IN ? AND room_type = ?", roomIDs, string(roomType)).
		Order("created_at").Find(&recs).Error; err != nil {
		return nil, err
	}

	rooms := make([]domain.Room, 0, len(recs))
	for _, rec := range recs {
		room, err := s.toDomain(rec, viewerID)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (s *Service) toDomain(rec RoomRecord, viewerID string) (domain.Room, error) {
	var members []MemberRecord
	if err := s.db.Where("room_id = ?", rec.ID).Find(&members).Error; err != nil {
		return domain.Room{}, err
	}

	room := domain.Room{
		ID:        rec.ID,
		RoomType:  domain.RoomType(rec.RoomType),
		Name:      rec.Name,
		Image:     rec.Image,
		ExpiresAt: rec.ExpiresAt,
		TempChat:  rec.TempChat,
	}
	for _, m := range members {
		if room.RoomType == domain.RoomOneToOne && m.UserID == viewerID {
			continue
		}
		room.Participants = append(room.Participants, domain.Participant{
			UserID:   m.UserID,
			FullName: m.FullName,
			Image:    m.Image,
		})
	}

	if len(rec.Meeting) > 0 {
		var meeting domain.Meeting
		if err := json.Unmarshal(rec.Meeting, &meeting); err == nil {
			room.Meeting = &meeting
		}
	}

	var unread int64
	s.db.Model(&MessageRecord{}).
		Where("room_id = ? AND sender_id <> ? AND is_read = ?", rec.ID, viewerID, string(domain.ReadNo)).
		Count(&unread)
	room.UnreadCount = int(unread)

	var last MessageRecord
	err := s.db.Where("room_id = ?", rec.ID).Order("timestamp DESC").First(&last).Error
	if err == nil {
		room.LastMessage = &domain.LastMessage{
			Content:     last.Content,
			MessageType: domain.MessageType(last.MessageType),
			Timestamp:   last.Timestamp,
		}
	}

	return room, nil
}

// History returns the room's messages in chronological order.
func (s *Service) History(roomID string) ([]domain.Message, error) {
	var recs []MessageRecord
	if err := s.db.Where("room_id = ?", roomID).Order("timestamp").Find(&recs).Error; err != nil {
		return nil, err
	}

	msgs := make([]domain.Message, 0, len(recs))
	for _, rec := range recs {
		msgs = append(msgs, toDomainMessage(rec))
	}
	return msgs, nil
}

func toDomainMessage(rec MessageRecord) domain.Message {
	return domain.Message{
		ID:          rec.ID,
		RoomID:      rec.RoomID,
		Sender:      domain.Participant{UserID: rec.SenderID, FullName: rec.SenderName},
		Content:     rec.Content,
		MessageType: domain.MessageType(rec.MessageType),
		Timestamp:   rec.Timestamp,
		IsRead:      domain.ReadState(rec.IsRead),
	}
}

// Append validates, persists and publishes a new message. Sends into
// an expired non-temp one-to-one room are rejected.
func (s *Service) Append(roomID string, sender domain.Participant, content string, messageType domain.MessageType) (domain.Message, error) {
	content = strings.TrimSpace(content)
	if err := ValidateMessage(content); err != nil {
		return domain.Message{}, err
	}

	var rec RoomRecord
	if err := s.db.First(&rec, "id = ?", roomID).Error; err != nil {
		return domain.Message{}, ErrRoomNotFound
	}
	if !s.IsMember(roomID, sender.UserID) {
		return domain.Message{}, ErrNotMember
	}
	room := domain.Room{
		RoomType:  domain.RoomType(rec.RoomType),
		ExpiresAt: rec.ExpiresAt,
		TempChat:  rec.TempChat,
	}
	if domain.ComposerLocked(&room, time.Now()) {
		return domain.Message{}, ErrRoomExpired
	}

	msgRec := MessageRecord{
		ID:          uuid.New().String(),
		RoomID:      roomID,
		SenderID:    sender.UserID,
		SenderName:  sender.FullName,
		Content:     content,
		MessageType: string(messageType),
		Timestamp:   time.Now(),
		IsRead:      string(domain.ReadNo),
	}
	if err := s.db.Create(&msgRec).Error; err != nil {
		return domain.Message{}, fmt.Errorf("failed to store message: %w", err)
	}

	msg := toDomainMessage(msgRec)
	s.publishMessageSent(roomID, msg)
	return msg, nil
}

func (s *Service) publishMessageSent(roomID string, msg domain.Message) {
	if s.bus == nil {
		return
	}
	event := events.MessageSentEvent{RoomID: roomID, Message: msg}
	if err := events.MessageSentV1.Publish(s.bus, event, nil); err != nil {
		log.Printf("[chat] failed to publish MessageSent: %v", err)
	}
}

// MarkRead applies a room-level receipt: every message the reader did
// not send flips to read. Returns how many rows flipped.
func (s *Service) MarkRead(roomID, readerID string) (int64, error) {
	res := s.db.Model(&MessageRecord{}).
		Where("room_id = ? AND sender_id <> ? AND is_read = ?", roomID, readerID, string(domain.ReadNo)).
		Update("is_read", string(domain.ReadYes))
	return res.RowsAffected, res.Error
}

// SetMeeting replaces the room's live-meeting descriptor and publishes
// the change.
func (s *Service) SetMeeting(roomID string, meeting *domain.Meeting) error {
	var rec RoomRecord
	if err := s.db.First(&rec, "id = ?", roomID).Error; err != nil {
		return ErrRoomNotFound
	}

	var data []byte
	if meeting != nil {
		encoded, err := json.Marshal(meeting)
		if err != nil {
			return err
		}
		data = encoded
	}
	if err := s.db.Model(&RoomRecord{}).Where("id = ?", roomID).Update("meeting", data).Error; err != nil {
		return err
	}

	if s.bus != nil {
		event := events.MeetingStatusChangedEvent{RoomID: roomID, Meeting: meeting}
		if err := events.MeetingStatusChangedV1.Publish(s.bus, event, nil); err != nil {
			log.Printf("[chat] failed to publish MeetingStatusChanged: %v", err)
		}
	}
	return nil
}
