package events

import (
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/nasif-muhamed/LearNerd-sub001/domain/chat"
)

// MessageSentEvent is emitted when a message is appended to a room.
type MessageSentEvent struct {
	RoomID  string       `json:"room_id"`
	Message chat.Message `json:"message"`
}

// MeetingStatusChangedEvent is emitted when a group room's live-meeting
// descriptor is replaced.
type MeetingStatusChangedEvent struct {
	RoomID  string        `json:"room_id"`
	Meeting *chat.Meeting `json:"meeting"`
}

// Event definitions for the chat domain.
var (
	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		"chat",
		"MessageSent",
		"v1",
	)

	MeetingStatusChangedV1 = helper.EventDefinition[MeetingStatusChangedEvent](
		"chat",
		"MeetingStatusChanged",
		"v1",
	)
)
