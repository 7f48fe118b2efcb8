package chat

import "time"

// RoomType distinguishes direct tutor chats from group/community rooms.
type RoomType string

const (
	RoomOneToOne RoomType = "one_to_one"
	RoomGroup    RoomType = "group"
)

// MessageType is the payload kind carried by a message.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
)

// ReadState tracks whether the other participant has seen a message.
// It stays a two-value enum rather than a bool so "no" remains
// distinguishable from "not applicable" on messages the viewer received.
type ReadState string

const (
	ReadYes ReadState = "yes"
	ReadNo  ReadState = "no"
)

// Participant identifies one user inside a room.
type Participant struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Image    string `json:"image,omitempty"`
}

// Meeting is the live-meeting descriptor attached to group rooms.
type Meeting struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Active    bool      `json:"active"`
	StartedAt time.Time `json:"started_at"`
}

// LastMessage is the denormalized summary shown in the room catalog.
type LastMessage struct {
	Content     string      `json:"content"`
	MessageType MessageType `json:"message_type"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Room represents a chat room. One-to-one rooms carry a single remote
// participant and an optional expiry; group rooms carry the full member
// list, a name/image and an optional live meeting.
type Room struct {
	ID              string        `json:"id"`
	RoomType        RoomType      `json:"room_type"`
	Participants    []Participant `json:"participants"`
	Name            string        `json:"name,omitempty"`
	Image           string        `json:"image,omitempty"`
	ExpiresAt       *time.Time    `json:"expires_at,omitempty"`
	TempChat        bool          `json:"temp_chat"`
	OnlineUserCount int           `json:"online_user_count"`
	LastMessage     *LastMessage  `json:"last_message,omitempty"`
	UnreadCount     int           `json:"unread_count"`
	SelectedDefault bool          `json:"selected_default,omitempty"`
	Meeting         *Meeting      `json:"meeting,omitempty"`
}

// Peer returns the remote participant of a one-to-one room.
func (r *Room) Peer() (Participant, bool) {
	if r.RoomType != RoomOneToOne || len(r.Participants) == 0 {
		return Participant{}, false
	}
	return r.Participants[0], true
}

// Message represents a chat message with server-assigned identity.
type Message struct {
	ID          string      `json:"id"`
	RoomID      string      `json:"room_id,omitempty"`
	Sender      Participant `json:"sender"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"message_type"`
	Timestamp   time.Time   `json:"timestamp"`
	IsRead      ReadState   `json:"is_read"`
}

// TypingState is the ephemeral "who is typing" signal for a room.
// The UI only ever surfaces the most recent remote typer.
type TypingState struct {
	User     Participant `json:"user"`
	IsTyping bool        `json:"is_typing"`
}
