// Package connection owns the live socket for the active room. At most
// one session is open at a time; activating a new room closes the
// previous session before the new socket is dialed, and a closed
// session never delivers another event to its handler.
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nasif-muhamed/LearNerd-sub001/client/protocol"
	"github.com/nasif-muhamed/LearNerd-sub001/domain/chat"
)

var (
	// ErrConnectionFailed is returned when the socket cannot be opened or
	// authenticated. Non-fatal: history already fetched stays readable.
	ErrConnectionFailed = errors.New("connection: failed to open socket")
	// ErrSocketClosed rejects sends on a session that is no longer open.
	ErrSocketClosed = errors.New("connection: socket closed")
)

// EventHandler receives decoded inbound events for one room. Events are
// delivered from a single goroutine in transport order.
type EventHandler interface {
	HandleEvent(roomID string, ev protocol.Event)
}

// Manager opens one socket per active room selection.
type Manager struct {
	baseURL string
	dialer  *websocket.Dialer
	logger  *slog.Logger

	mu     sync.Mutex
	active *Session
}

// NewManager creates a manager dialing against baseURL
// (e.g. "ws://localhost:3000").
func NewManager(baseURL string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		baseURL: baseURL,
		dialer:  websocket.DefaultDialer,
		logger:  logger,
	}
}

// Activate opens a socket for roomID authorized by token and starts
// delivering decoded events to handler. Any previously active session
// is closed first, so a late frame from the old room can never reach
// the new room's state. The returned session must be closed by the
// caller on deselection; the manager does not auto-retry on failure.
func (m *Manager) Activate(ctx context.Context, roomID, token string, handler EventHandler) (*Session, error) {
	m.mu.Lock()
	prev := m.active
	m.active = nil
	m.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	endpoint := fmt.Sprintf("%s/ws/rooms/%s?token=%s", m.baseURL, url.PathEscape(roomID), url.QueryEscape(token))
	conn, _, err := m.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		m.logger.Error("socket dial failed", "room_id", roomID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	s := &Session{
		roomID:  roomID,
		conn:    conn,
		handler: handler,
		logger:  m.logger,
		closed:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.readLoop()

	m.mu.Lock()
	m.active = s
	m.mu.Unlock()

	m.logger.Info("socket opened", "room_id", roomID)
	return s, nil
}

// Dispose closes the active session, if any.
func (m *Manager) Dispose() {
	m.mu.Lock()
	s := m.active
	m.active = nil
	m.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

// Session is one live socket bound to a room.
type Session struct {
	roomID  string
	conn    *websocket.Conn
	handler EventHandler
	logger  *slog.Logger

	writeMu   sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// RoomID returns the room this session is bound to.
func (s *Session) RoomID() string { return s.roomID }

// IsOpen reports whether the session still accepts sends.
func (s *Session) IsOpen() bool {
	select {
	case <-s.closed:
		return false
	default:
		return true
	}
}

// Close tears the session down. It is idempotent and does not return
// until the read loop has stopped, so no handler fires after Close.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
	s.wg.Wait()
}

// SendMessage sends a message intent with the given payload kind.
func (s *Session) SendMessage(content string, messageType chat.MessageType) error {
	data, err := protocol.EncodeMessage(content, messageType)
	if err != nil {
		return err
	}
	return s.send(data)
}

// SendTyping sends a typing intent.
func (s *Session) SendTyping(isTyping bool) error {
	data, err := protocol.EncodeTyping(isTyping)
	if err != nil {
		return err
	}
	return s.send(data)
}

// SendReadReceipt acknowledges a message id.
func (s *Session) SendReadReceipt(messageID string) error {
	data, err := protocol.EncodeReadReceipt(messageID)
	if err != nil {
		return err
	}
	return s.send(data)
}

func (s *Session) send(data []byte) error {
	if !s.IsOpen() {
		return ErrSocketClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", ErrSocketClosed, err)
	}
	return nil
}

func (s *Session) readLoop() {
	defer s.wg.Done()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.IsOpen() {
				s.logger.Warn("socket read failed", "room_id", s.roomID, "error", err)
			}
			return
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			// Unknown frame kinds are expected from newer servers;
			// malformed frames are dropped the same way.
			s.logger.Debug("dropping frame", "room_id", s.roomID, "error", err)
			continue
		}

		// Re-check after the blocking read so a session closed while we
		// were waiting cannot deliver a stale event.
		if !s.IsOpen() {
			return
		}
		s.handler.HandleEvent(s.roomID, ev)
	}
}
