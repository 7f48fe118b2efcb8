package chat

import (
	"errors"
	"time"
	"unicode/utf8"
)

// Validation constants
const (
	MaxMessageLength = 5000
)

// Validation and lifecycle errors
var (
	ErrMessageEmpty   = errors.New("message content cannot be empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
	ErrMessageInvalid = errors.New("message contains invalid characters")
	ErrRoomNotFound   = errors.New("room not found")
	ErrNotMember      = errors.New("user is not a member of the room")
	ErrRoomExpired    = errors.New("room has expired")
)

// RoomRecord is the persisted room row.
type RoomRecord struct {
	ID        string `gorm:"primaryKey"`
	RoomType  string `gorm:"index"`
	Name      string
	Image     string
	ExpiresAt *time.Time
	TempChat  bool
	Meeting   []byte // JSON-encoded live-meeting descriptor, nil when none
	CreatedAt time.Time
}

// MemberRecord links a user to a room.
type MemberRecord struct {
	ID       uint   `gorm:"primaryKey"`
	RoomID   string `gorm:"index:idx_member_room;index:idx_member_room_user,unique"`
	UserID   string `gorm:"index:idx_member_user;index:idx_member_room_user,unique"`
	FullName string
	Image    string
}

// MessageRecord is the persisted message row. IsRead stays a yes/no
// string to match the wire representation.
type MessageRecord struct {
	ID          string `gorm:"primaryKey"`
	RoomID      string `gorm:"index"`
	SenderID    string `gorm:"index"`
	SenderName  string
	Content     string
	MessageType string
	Timestamp   time.Time
	IsRead      string
}

// ValidateMessage validates message content.
func ValidateMessage(content string) error {
	if content == "" {
		return ErrMessageEmpty
	}
	if len(content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if !utf8.ValidString(content) {
		return ErrMessageInvalid
	}
	return nil
}
