package api

import "github.com/nasif-muhamed/LearNerd-sub001/domain/chat"

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// RoomListResponse wraps one partition of the viewer's rooms.
type RoomListResponse struct {
	Rooms []chat.Room `json:"rooms"`
}

// HistoryResponse wraps a room's message history in chronological order.
type HistoryResponse struct {
	Messages []chat.Message `json:"messages"`
}

// MeetingRequest sets or clears a group room's live meeting. A nil
// meeting clears it.
type MeetingRequest struct {
	Meeting *chat.Meeting `json:"meeting"`
}

// UploadResponse returns the public URL of a stored attachment.
type UploadResponse struct {
	URL string `json:"url"`
}

// clientFrame is the superset of intents a room socket may send.
// Content of a message intent rides in the "message" field.
type clientFrame struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	MessageType string `json:"message_type"`
	IsTyping    bool   `json:"is_typing"`
}
