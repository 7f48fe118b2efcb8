package chat

import "time"

// IsExpired reports whether a one-to-one room is past its expiry.
// Rooms without an expiry never expire, and expiry does not apply to
// group rooms at all.
func IsExpired(room *Room, now time.Time) bool {
	if room.RoomType != RoomOneToOne || room.ExpiresAt == nil {
		return false
	}
	return now.After(*room.ExpiresAt)
}

// ComposerLocked reports whether sending must be disabled for the room.
// Display of the expiry notice and enforcement are separate checks: a
// temp chat still shows as expired but keeps its composer usable.
func ComposerLocked(room *Room, now time.Time) bool {
	return IsExpired(room, now) && !room.TempChat
}

// ExpiryNotice formats the expiry date for the read-only banner.
// It returns "" when the room has no expiry set.
func ExpiryNotice(room *Room) string {
	if room.ExpiresAt == nil {
		return ""
	}
	return "This chat expired on " + room.ExpiresAt.Format("Jan 2, 2006 3:04 PM")
}
