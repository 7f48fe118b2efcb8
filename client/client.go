// Package client composes the realtime chat core: room catalog,
// connection manager, protocol dispatch, message store, presence and
// typing state. Selecting a room fetches its history, then opens its
// socket; inbound frames fan out to the stores, and outbound actions
// flow back through the active session.
package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nasif-muhamed/LearNerd-sub001/auth"
	"github.com/nasif-muhamed/LearNerd-sub001/client/attach"
	"github.com/nasif-muhamed/LearNerd-sub001/client/catalog"
	"github.com/nasif-muhamed/LearNerd-sub001/client/connection"
	"github.com/nasif-muhamed/LearNerd-sub001/client/presence"
	"github.com/nasif-muhamed/LearNerd-sub001/client/protocol"
	"github.com/nasif-muhamed/LearNerd-sub001/client/rest"
	"github.com/nasif-muhamed/LearNerd-sub001/client/store"
	"github.com/nasif-muhamed/LearNerd-sub001/client/typing"
	"github.com/nasif-muhamed/LearNerd-sub001/domain/chat"
)

var (
	// ErrNotConnected rejects user actions while no room socket is open
	// (no selection yet, or the connection is degraded).
	ErrNotConnected = errors.New("client: no active room connection")
	// ErrRoomExpired rejects sends into an expired non-temp one-to-one room.
	ErrRoomExpired = errors.New("client: room has expired")
)

// Config wires a RoomClient to its collaborators.
type Config struct {
	// HTTPBaseURL serves the room list, history and upload endpoints.
	HTTPBaseURL string
	// WSBaseURL serves the per-room socket endpoint.
	WSBaseURL string
	// Self is the viewing user.
	Self chat.Participant
	// Tokens authorizes both REST calls and socket upgrades.
	Tokens auth.TokenSource
	Logger *slog.Logger
}

// RoomClient is the realtime chat core for one viewing user.
type RoomClient struct {
	self   chat.Participant
	tokens auth.TokenSource
	logger *slog.Logger

	Catalog  *catalog.Catalog
	Unread   *store.UnreadIndex
	Messages *store.MessageStore
	Presence *presence.Tracker

	history  rest.HistoryService
	manager  *connection.Manager
	pipeline *attach.Pipeline

	mu       sync.Mutex
	session  *connection.Session
	typing   *typing.Coordinator
	connErr  error
	roomErrs map[string]error
}

// New builds a RoomClient. It performs no I/O; call Open to load the
// room catalog.
func New(cfg Config) (*RoomClient, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	restClient := rest.NewClient(cfg.HTTPBaseURL, cfg.Tokens)
	uploader, err := attach.NewHTTPUploader(cfg.HTTPBaseURL + "/api/v1/uploads")
	if err != nil {
		return nil, err
	}

	unread := store.NewUnreadIndex()
	c := &RoomClient{
		self:     cfg.Self,
		tokens:   cfg.Tokens,
		logger:   logger,
		Catalog:  catalog.New(restClient, unread, logger),
		Unread:   unread,
		Messages: store.NewMessageStore(),
		Presence: presence.NewTracker(cfg.Self.UserID),
		history:  restClient,
		manager:  connection.NewManager(cfg.WSBaseURL, logger),
		pipeline: attach.NewPipeline(uploader, logger),
		roomErrs: make(map[string]error),
	}
	c.Catalog.OnSelect(c.activateRoom)
	return c, nil
}

// Open loads the room catalog. A selectedDefault room connects
// immediately via the selection hook.
func (c *RoomClient) Open(ctx context.Context) error {
	return c.Catalog.Load(ctx)
}

// SelectRoom switches the active room: the previous socket is torn
// down, the new room's unread entry is zeroed once, its history is
// fetched, and only then is the new socket opened.
func (c *RoomClient) SelectRoom(roomID string) error {
	return c.Catalog.Select(roomID)
}

// activateRoom is the selection hook. Connection failures leave the
// client in a degraded state for the room: history stays readable,
// sends are rejected, and a fresh selection is required to re-attempt.
func (c *RoomClient) activateRoom(room chat.Room) {
	c.mu.Lock()
	oldTyping := c.typing
	c.typing = nil
	c.session = nil
	c.connErr = nil
	c.mu.Unlock()

	// Flush typing(false) while the old socket is still open; the
	// manager closes it as part of activating the new room.
	if oldTyping != nil {
		oldTyping.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// History first, socket second: the socket is strictly causally
	// after subscription, so live frames are purely additive.
	history, err := c.history.History(ctx, room.ID)
	c.mu.Lock()
	if err != nil {
		c.roomErrs[room.ID] = err
		c.logger.Warn("history fetch failed", "room_id", room.ID, "error", err)
	} else {
		delete(c.roomErrs, room.ID)
	}
	c.mu.Unlock()
	c.Messages.SetHistory(room.ID, history)
	c.Presence.Seed(room.ID, room.OnlineUserCount)

	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.setDegraded(room.ID, err)
		return
	}

	handler := &sessionHandler{client: c, ready: make(chan struct{})}
	sess, err := c.manager.Activate(ctx, room.ID, token, handler)
	if err != nil {
		c.setDegraded(room.ID, err)
		return
	}
	handler.sess = sess
	close(handler.ready)

	c.mu.Lock()
	c.session = sess
	c.typing = typing.New(sess, nil, nil, c.logger)
	c.mu.Unlock()
}

func (c *RoomClient) setDegraded(roomID string, err error) {
	c.mu.Lock()
	c.connErr = err
	c.mu.Unlock()
	c.logger.Error("room connection degraded", "room_id", roomID, "error", err)
}

// sessionHandler routes one session's decoded events into the client
// state. ready gates dispatch until the session pointer is published.
type sessionHandler struct {
	client *RoomClient
	sess   *connection.Session
	ready  chan struct{}
}

// HandleEvent implements connection.EventHandler with the dispatch
// rules for each inbound frame kind.
func (h *sessionHandler) HandleEvent(roomID string, ev protocol.Event) {
	<-h.ready
	c := h.client

	switch ev := ev.(type) {
	case protocol.MessageEvent:
		msg := ev.Message
		msg.RoomID = roomID
		c.Messages.Append(roomID, msg)
		c.Catalog.UpdateLastMessage(roomID, chat.LastMessage{
			Content:     msg.Content,
			MessageType: msg.MessageType,
			Timestamp:   msg.Timestamp,
		})
		if msg.Sender.UserID != c.self.UserID {
			// Received while viewing: acknowledge immediately, and a
			// real message supersedes any typing indicator.
			if err := h.sess.SendReadReceipt(msg.ID); err != nil {
				c.logger.Debug("read receipt dropped", "message_id", msg.ID, "error", err)
			}
			if t := c.currentTyping(); t != nil {
				t.ClearRemote()
			}
		}

	case protocol.TypingEvent:
		if ev.User.UserID == c.self.UserID {
			return
		}
		if t := c.currentTyping(); t != nil {
			t.Observe(ev.User, ev.IsTyping)
		}

	case protocol.ReadReceiptEvent:
		// Room-level "caught up" signal from the peer: everything the
		// viewer sent is now read. Self echoes change nothing.
		if ev.UserID != c.self.UserID {
			c.Messages.MarkRoomRead(roomID, c.self.UserID)
		}

	case protocol.OnlineStatusEvent:
		c.Presence.ApplyIncrement(roomID, ev.UserID, ev.IsOnline)

	case protocol.RoomOnlineStatusEvent:
		c.Presence.ApplySnapshot(roomID, ev.OnlineUserCount)

	case protocol.GroupMeetingStatusEvent:
		c.Catalog.SetMeeting(roomID, ev.Meeting)
	}
}

func (c *RoomClient) currentTyping() *typing.Coordinator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}

func (c *RoomClient) currentSession() *connection.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SendText sends a text message to the active room. The composer is
// locked for expired non-temp one-to-one rooms; a degraded connection
// rejects sends while history stays readable.
func (c *RoomClient) SendText(content string) error {
	room, ok := c.Catalog.Active()
	if !ok {
		return ErrNotConnected
	}
	if chat.ComposerLocked(&room, time.Now()) {
		return ErrRoomExpired
	}

	sess := c.currentSession()
	if sess == nil {
		return ErrNotConnected
	}
	if err := sess.SendMessage(content, chat.MessageText); err != nil {
		return err
	}
	if t := c.currentTyping(); t != nil {
		t.MessageSent()
	}
	return nil
}

// SendImage uploads the attachment, then sends the image message with
// its URL. Nothing is sent when the upload fails.
func (c *RoomClient) SendImage(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	room, ok := c.Catalog.Active()
	if !ok {
		return "", ErrNotConnected
	}
	if chat.ComposerLocked(&room, time.Now()) {
		return "", ErrRoomExpired
	}

	sess := c.currentSession()
	if sess == nil {
		return "", ErrNotConnected
	}
	url, err := c.pipeline.SendImage(ctx, sess, filename, contentType, r)
	if err != nil {
		return "", err
	}
	if t := c.currentTyping(); t != nil {
		t.MessageSent()
	}
	return url, nil
}

// Keystroke records local input for typing signalling.
func (c *RoomClient) Keystroke(content string) {
	if t := c.currentTyping(); t != nil {
		t.Keystroke(content)
	}
}

// RemoteTyping returns the remote typer currently shown for the active
// room, if any.
func (c *RoomClient) RemoteTyping() (chat.TypingState, bool) {
	if t := c.currentTyping(); t != nil {
		return t.Remote()
	}
	return chat.TypingState{}, false
}

// Degraded reports whether the active room's connection failed. History
// already fetched stays readable in this state.
func (c *RoomClient) Degraded() (error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connErr, c.connErr != nil
}

// RoomError returns the history-fetch error recorded for a room, if
// any. Errors are scoped per room and never affect the catalog.
func (c *RoomClient) RoomError(roomID string) (error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	err, ok := c.roomErrs[roomID]
	return err, ok
}

// Close tears down the active session and flushes a final typing stop
// if one is pending.
func (c *RoomClient) Close() {
	c.mu.Lock()
	t := c.typing
	c.typing = nil
	c.session = nil
	c.mu.Unlock()

	if t != nil {
		t.Close()
	}
	c.manager.Dispose()
	c.Catalog.Deselect()
}
