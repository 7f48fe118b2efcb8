package store

import "sync"

// UnreadIndex maps room id to unread count. It is written by the chat
// core and rendered by navigation UI elsewhere; the counts seeded from
// the server are opaque and never recomputed locally.
type UnreadIndex struct {
	mu     sync.RWMutex
	counts map[string]int
}

// NewUnreadIndex creates an empty index.
func NewUnreadIndex() *UnreadIndex {
	return &UnreadIndex{counts: make(map[string]int)}
}

// Seed installs the server-reported counter for a room.
func (u *UnreadIndex) Seed(roomID string, count int) {
	if count < 0 {
		count = 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.counts[roomID] = count
}

// Increment bumps a room's unread count by one.
func (u *UnreadIndex) Increment(roomID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.counts[roomID]++
}

// Reset zeroes a room's unread count. Idempotent.
func (u *UnreadIndex) Reset(roomID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.counts[roomID] = 0
}

// Get returns a room's unread count.
func (u *UnreadIndex) Get(roomID string) int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.counts[roomID]
}

// Total returns the sum across all rooms. Never negative: counts only
// move through Seed/Increment/Reset.
func (u *UnreadIndex) Total() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	total := 0
	for _, c := range u.counts {
		total += c
	}
	return total
}
