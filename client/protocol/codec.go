// Package protocol implements the JSON frame codec for the realtime
// chat socket. Every frame carries a "type" discriminant; inbound
// frames decode into a closed set of event types so dispatch can be an
// exhaustive type switch instead of string comparisons at every site.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nasif-muhamed/LearNerd-sub001/domain/chat"
)

// Frame type discriminants shared by both directions.
const (
	TypeMessage            = "message"
	TypeTyping             = "typing"
	TypeReadReceipt        = "read_receipt"
	TypeOnlineStatus       = "online_status"
	TypeRoomOnlineStatus   = "room_online_status"
	TypeGroupMeetingStatus = "group_meeting_status"
)

var (
	// ErrUnknownFrameType marks frames with an unrecognized discriminant.
	// Callers drop these silently to stay forward compatible.
	ErrUnknownFrameType = errors.New("protocol: unknown frame type")
	// ErrMalformedFrame marks frames that fail to decode.
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	// ErrEmptyMessage rejects blank outbound content before it reaches the wire.
	ErrEmptyMessage = errors.New("protocol: empty message content")
)

// Event is one decoded inbound frame. The concrete types below are the
// only implementations.
type Event interface {
	eventKind() string
}

// MessageEvent carries a new chat message appended by the server.
type MessageEvent struct {
	Message chat.Message
}

// TypingEvent replaces the room's current typing state.
type TypingEvent struct {
	User     chat.Participant
	IsTyping bool
}

// ReadReceiptEvent is the room-level "caught up" signal from a peer.
type ReadReceiptEvent struct {
	UserID string
}

// OnlineStatusEvent is an incremental presence change for one user.
type OnlineStatusEvent struct {
	UserID   string
	IsOnline bool
}

// RoomOnlineStatusEvent is the authoritative presence snapshot.
type RoomOnlineStatusEvent struct {
	OnlineUserCount int
}

// GroupMeetingStatusEvent replaces the room's live-meeting descriptor.
type GroupMeetingStatusEvent struct {
	Meeting *chat.Meeting
}

func (MessageEvent) eventKind() string            { return TypeMessage }
func (TypingEvent) eventKind() string             { return TypeTyping }
func (ReadReceiptEvent) eventKind() string        { return TypeReadReceipt }
func (OnlineStatusEvent) eventKind() string       { return TypeOnlineStatus }
func (RoomOnlineStatusEvent) eventKind() string   { return TypeRoomOnlineStatus }
func (GroupMeetingStatusEvent) eventKind() string { return TypeGroupMeetingStatus }

// inboundFrame is the superset of every inbound frame shape.
type inboundFrame struct {
	Type            string           `json:"type"`
	Message         *chat.Message    `json:"message,omitempty"`
	User            chat.Participant `json:"user,omitempty"`
	UserID          string           `json:"user_id,omitempty"`
	IsTyping        bool             `json:"is_typing,omitempty"`
	IsOnline        bool             `json:"is_online,omitempty"`
	OnlineUserCount int              `json:"online_user_count,omitempty"`
	Meeting         *chat.Meeting    `json:"meeting,omitempty"`
}

// Decode classifies a raw frame into exactly one Event.
func Decode(data []byte) (Event, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch f.Type {
	case TypeMessage:
		if f.Message == nil {
			return nil, fmt.Errorf("%w: message frame without message body", ErrMalformedFrame)
		}
		return MessageEvent{Message: *f.Message}, nil
	case TypeTyping:
		return TypingEvent{User: f.User, IsTyping: f.IsTyping}, nil
	case TypeReadReceipt:
		return ReadReceiptEvent{UserID: f.UserID}, nil
	case TypeOnlineStatus:
		return OnlineStatusEvent{UserID: f.UserID, IsOnline: f.IsOnline}, nil
	case TypeRoomOnlineStatus:
		return RoomOnlineStatusEvent{OnlineUserCount: f.OnlineUserCount}, nil
	case TypeGroupMeetingStatus:
		return GroupMeetingStatusEvent{Meeting: f.Meeting}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrameType, f.Type)
	}
}

type outboundMessage struct {
	Type        string           `json:"type"`
	Message     string           `json:"message"`
	MessageType chat.MessageType `json:"message_type"`
}

type outboundTyping struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
}

type outboundReadReceipt struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// EncodeMessage builds a message-send intent. Whitespace-only content
// is rejected here so no caller can push a blank message to the wire.
func EncodeMessage(content string, messageType chat.MessageType) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	return json.Marshal(outboundMessage{
		Type:        TypeMessage,
		Message:     content,
		MessageType: messageType,
	})
}

// EncodeTyping builds a typing intent.
func EncodeTyping(isTyping bool) ([]byte, error) {
	return json.Marshal(outboundTyping{Type: TypeTyping, IsTyping: isTyping})
}

// EncodeReadReceipt builds a read-receipt intent for a message id.
func EncodeReadReceipt(messageID string) ([]byte, error) {
	return json.Marshal(outboundReadReceipt{Type: TypeReadReceipt, Message: messageID})
}
