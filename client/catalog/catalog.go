// Package catalog holds the room list across both partitions,
// independent of which room is currently connected. Selection drives
// the connection manager through a hook and zeroes the selected room's
// unread entry exactly once.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nasif-muhamed/LearNerd-sub001/client/rest"
	"github.com/nasif-muhamed/LearNerd-sub001/client/store"
	"github.com/nasif-muhamed/LearNerd-sub001/domain/chat"
)

// SelectHook fires when a room becomes the active selection.
type SelectHook func(room chat.Room)

// Catalog is the client-side room list. Rooms are fetched once per
// Load; afterwards they are mutated locally only by presence, meeting
// and last-message updates.
type Catalog struct {
	rooms  rest.RoomService
	unread *store.UnreadIndex
	logger *slog.Logger

	mu       sync.RWMutex
	byID     map[string]*chat.Room
	oneToOne []string
	group    []string
	activeID string
	onSelect SelectHook
}

// New creates a catalog backed by the given room service.
func New(rooms rest.RoomService, unread *store.UnreadIndex, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		rooms:  rooms,
		unread: unread,
		logger: logger,
		byID:   make(map[string]*chat.Room),
	}
}

// OnSelect registers the selection hook. Must be set before Load so a
// selectedDefault room can auto-select.
func (c *Catalog) OnSelect(hook SelectHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSelect = hook
}

// Load fetches both partitions concurrently and seeds the unread index
// from the server-reported counters (kept opaque, never recomputed).
// A room flagged selectedDefault auto-selects without a user action.
func (c *Catalog) Load(ctx context.Context) error {
	var oneToOne, group []chat.Room

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		oneToOne, err = c.rooms.Rooms(ctx, chat.RoomOneToOne)
		return err
	})
	g.Go(func() error {
		var err error
		group, err = c.rooms.Rooms(ctx, chat.RoomGroup)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	c.mu.Lock()
	c.byID = make(map[string]*chat.Room, len(oneToOne)+len(group))
	c.oneToOne = c.oneToOne[:0]
	c.group = c.group[:0]
	var defaultRoom *chat.Room
	for i := range oneToOne {
		room := oneToOne[i]
		c.byID[room.ID] = &room
		c.oneToOne = append(c.oneToOne, room.ID)
		c.unread.Seed(room.ID, room.UnreadCount)
		if room.SelectedDefault && defaultRoom == nil {
			defaultRoom = &room
		}
	}
	for i := range group {
		room := group[i]
		c.byID[room.ID] = &room
		c.group = append(c.group, room.ID)
		c.unread.Seed(room.ID, room.UnreadCount)
		if room.SelectedDefault && defaultRoom == nil {
			defaultRoom = &room
		}
	}
	c.mu.Unlock()

	c.logger.Info("room catalog loaded", "one_to_one", len(oneToOne), "group", len(group))

	if defaultRoom != nil {
		return c.Select(defaultRoom.ID)
	}
	return nil
}

// Select makes the room the active selection, zeroes its unread entry
// once and fires the selection hook. Re-selecting the already active
// room is a no-op so a deep-link default and a user click cannot
// double-fire.
func (c *Catalog) Select(roomID string) error {
	c.mu.Lock()
	room, ok := c.byID[roomID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("catalog: unknown room %q", roomID)
	}
	if c.activeID == roomID {
		c.mu.Unlock()
		return nil
	}
	c.activeID = roomID
	hook := c.onSelect
	selected := *room
	c.mu.Unlock()

	c.unread.Reset(roomID)
	if hook != nil {
		hook(selected)
	}
	return nil
}

// Deselect clears the active selection.
func (c *Catalog) Deselect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeID = ""
}

// Active returns the currently selected room.
func (c *Catalog) Active() (chat.Room, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	room, ok := c.byID[c.activeID]
	if !ok {
		return chat.Room{}, false
	}
	return *room, true
}

// Room returns a room by id.
func (c *Catalog) Room(roomID string) (chat.Room, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	room, ok := c.byID[roomID]
	if !ok {
		return chat.Room{}, false
	}
	return *room, true
}

// OneToOne returns the direct-chat partition in fetch order.
func (c *Catalog) OneToOne() []chat.Room {
	return c.partition(func() []string { return c.oneToOne })
}

// Group returns the group/community partition in fetch order.
func (c *Catalog) Group() []chat.Room {
	return c.partition(func() []string { return c.group })
}

func (c *Catalog) partition(ids func() []string) []chat.Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]chat.Room, 0, len(ids()))
	for _, id := range ids() {
		if room, ok := c.byID[id]; ok {
			out = append(out, *room)
		}
	}
	return out
}

// UpdateLastMessage refreshes a room's denormalized summary.
func (c *Catalog) UpdateLastMessage(roomID string, last chat.LastMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if room, ok := c.byID[roomID]; ok {
		room.LastMessage = &last
	}
}

// SetMeeting replaces a room's live-meeting descriptor.
func (c *Catalog) SetMeeting(roomID string, meeting *chat.Meeting) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if room, ok := c.byID[roomID]; ok {
		room.Meeting = meeting
	}
}
