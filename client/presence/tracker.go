// Package presence derives per-room online participant counts from
// incremental and snapshot presence events. Counts include the viewing
// user; display helpers subtract self.
package presence

import "sync"

// Tracker maintains online_user_count per room. Presence is entirely
// server-push: snapshots are authoritative, increments are applied only
// when the subject is not the viewing user.
type Tracker struct {
	selfID string

	mu     sync.RWMutex
	counts map[string]int
}

// NewTracker creates a tracker for the viewing user.
func NewTracker(selfID string) *Tracker {
	return &Tracker{
		selfID: selfID,
		counts: make(map[string]int),
	}
}

// Seed installs the count reported with the initial room fetch.
func (t *Tracker) Seed(roomID string, count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[roomID] = count
}

// ApplyIncrement applies an online_status event. Self-originated events
// are ignored: the viewer's own connect echo must not move the count.
func (t *Tracker) ApplyIncrement(roomID, userID string, isOnline bool) {
	if userID == t.selfID {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if isOnline {
		t.counts[roomID]++
		return
	}
	if t.counts[roomID] > 0 {
		t.counts[roomID]--
	}
}

// ApplySnapshot overwrites the count with the authoritative value from
// a room_online_status frame.
func (t *Tracker) ApplySnapshot(roomID string, count int) {
	if count < 0 {
		count = 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[roomID] = count
}

// Count returns the raw online_user_count, including self.
func (t *Tracker) Count(roomID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts[roomID]
}

// PeerOnline is the one-to-one display rule: Online iff anyone besides
// the viewer is connected.
func (t *Tracker) PeerOnline(roomID string) bool {
	return t.OthersOnline(roomID) > 0
}

// OthersOnline is the group display rule: the "N online" figure shown
// alongside total member count.
func (t *Tracker) OthersOnline(roomID string) int {
	n := t.Count(roomID) - 1
	if n < 0 {
		return 0
	}
	return n
}

// Forget drops a room's presence state.
func (t *Tracker) Forget(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counts, roomID)
}
