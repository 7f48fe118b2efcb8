// Package store holds the ordered, append-only view of each room's
// messages plus the global unread index consumed by navigation UI.
package store

import (
	"iter"
	"sync"

	"github.com/nasif-muhamed/LearNerd-sub001/domain/chat"
)

// MessageStore keeps one ordered message sequence per room. History is
// seeded once on room selection; live frames append after that. Each
// frame is trusted to represent a new event, so there is no id-based
// dedup step.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[string][]chat.Message
}

// NewMessageStore creates an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[string][]chat.Message),
	}
}

// SetHistory installs the REST history snapshot for a room, replacing
// anything previously held for it.
func (s *MessageStore) SetHistory(roomID string, history []chat.Message) {
	msgs := make([]chat.Message, len(history))
	copy(msgs, history)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[roomID] = msgs
}

// Append adds a message to the end of the room's sequence.
func (s *MessageStore) Append(roomID string, msg chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[roomID] = append(s.messages[roomID], msg)
}

// Messages returns a restartable sequence over the room's messages in
// order. Each iteration walks a consistent snapshot.
func (s *MessageStore) Messages(roomID string) iter.Seq[chat.Message] {
	return func(yield func(chat.Message) bool) {
		s.mu.RLock()
		snapshot := make([]chat.Message, len(s.messages[roomID]))
		copy(snapshot, s.messages[roomID])
		s.mu.RUnlock()

		for _, m := range snapshot {
			if !yield(m) {
				return
			}
		}
	}
}

// Len returns the number of messages held for a room.
func (s *MessageStore) Len(roomID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[roomID])
}

// Last returns the most recent message in the room, if any.
func (s *MessageStore) Last(roomID string) (chat.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[roomID]
	if len(msgs) == 0 {
		return chat.Message{}, false
	}
	return msgs[len(msgs)-1], true
}

// MarkRoomRead applies a room-level "caught up" receipt from the peer:
// every message the viewer sent that was still unread flips to read.
// Messages from the other party are untouched; their read state is not
// tracked from the viewer's perspective. Returns how many flipped.
func (s *MessageStore) MarkRoomRead(roomID, selfID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	flipped := 0
	msgs := s.messages[roomID]
	for i := range msgs {
		if msgs[i].Sender.UserID == selfID && msgs[i].IsRead == chat.ReadNo {
			msgs[i].IsRead = chat.ReadYes
			flipped++
		}
	}
	return flipped
}

// Forget drops a room's messages.
func (s *MessageStore) Forget(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, roomID)
}
