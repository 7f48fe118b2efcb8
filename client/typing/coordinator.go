// Package typing rate-limits outgoing typing signals and expires stale
// incoming typing state locally.
package typing

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nasif-muhamed/LearNerd-sub001/domain/chat"
)

const (
	// ResendWindow gates typing(true) re-sends during continuous input.
	ResendWindow = 2 * time.Second
	// StopDelay is how long after the last keystroke typing(false) fires.
	StopDelay = 3 * time.Second
	// RemoteExpiry clears a remote typer that never sent a stop signal.
	RemoteExpiry = 5 * time.Second
)

// Sender is the outbound side of the socket the coordinator writes to.
type Sender interface {
	SendTyping(isTyping bool) error
}

// Timer is a cancellable delayed callback.
type Timer interface {
	Stop() bool
}

// TimerFunc schedules f after d. Defaults to time.AfterFunc.
type TimerFunc func(d time.Duration, f func()) Timer

type realTimer struct{ *time.Timer }

func stdTimer(d time.Duration, f func()) Timer {
	return realTimer{time.AfterFunc(d, f)}
}

// Coordinator owns both directions of typing state for one session:
// outbound keystroke signalling and the single remote typer the UI
// surfaces.
type Coordinator struct {
	sender   Sender
	now      func() time.Time
	newTimer TimerFunc
	logger   *slog.Logger

	mu        sync.Mutex
	lastSent  time.Time
	stopTimer Timer

	remote      *chat.TypingState
	remoteTimer Timer
}

// New creates a coordinator sending through sender. now and newTimer
// may be nil for the wall clock and time.AfterFunc.
func New(sender Sender, now func() time.Time, newTimer TimerFunc, logger *slog.Logger) *Coordinator {
	if now == nil {
		now = time.Now
	}
	if newTimer == nil {
		newTimer = stdTimer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		sender:   sender,
		now:      now,
		newTimer: newTimer,
		logger:   logger,
	}
}

// Keystroke records one local input event. Blank content never starts
// a typing signal; clearing the input does not stop one either (stop is
// purely timer- or send-driven).
func (c *Coordinator) Keystroke(content string) {
	if strings.TrimSpace(content) == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.lastSent.IsZero() || now.Sub(c.lastSent) >= ResendWindow {
		if err := c.sender.SendTyping(true); err != nil {
			c.logger.Debug("typing signal dropped", "error", err)
		} else {
			c.lastSent = now
		}
	}

	// Reset, not queue: only the latest keystroke's stop timer survives.
	if c.stopTimer != nil {
		c.stopTimer.Stop()
	}
	c.stopTimer = c.newTimer(StopDelay, c.fireStop)
}

func (c *Coordinator) fireStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimer = nil
	c.lastSent = time.Time{}
	if err := c.sender.SendTyping(false); err != nil {
		c.logger.Debug("typing stop dropped", "error", err)
	}
}

// MessageSent cancels the pending stop timer and sends typing(false)
// synchronously so the peer never sees "typing" after the message
// already arrived.
func (c *Coordinator) MessageSent() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopTimer != nil {
		c.stopTimer.Stop()
		c.stopTimer = nil
	}
	c.lastSent = time.Time{}
	if err := c.sender.SendTyping(false); err != nil {
		c.logger.Debug("typing stop dropped", "error", err)
	}
}

// Close flushes a final typing(false) if one may be pending and stops
// all timers. Safe to call with the socket already gone.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.stopTimer != nil || !c.lastSent.IsZero()
	if c.stopTimer != nil {
		c.stopTimer.Stop()
		c.stopTimer = nil
	}
	if c.remoteTimer != nil {
		c.remoteTimer.Stop()
		c.remoteTimer = nil
	}
	c.remote = nil
	if pending {
		_ = c.sender.SendTyping(false)
	}
}

// Observe replaces the remote typing state from an inbound frame. A
// typing(true) that is never followed by a stop expires locally.
func (c *Coordinator) Observe(user chat.Participant, isTyping bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.remoteTimer != nil {
		c.remoteTimer.Stop()
		c.remoteTimer = nil
	}
	if !isTyping {
		c.remote = nil
		return
	}
	c.remote = &chat.TypingState{User: user, IsTyping: true}
	c.remoteTimer = c.newTimer(RemoteExpiry, c.expireRemote)
}

func (c *Coordinator) expireRemote() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remoteTimer = nil
	c.remote = nil
}

// ClearRemote drops the remote typing state. Called when a message
// frame arrives from the room, which supersedes any typing signal.
func (c *Coordinator) ClearRemote() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remoteTimer != nil {
		c.remoteTimer.Stop()
		c.remoteTimer = nil
	}
	c.remote = nil
}

// Remote returns the current remote typer, if any.
func (c *Coordinator) Remote() (chat.TypingState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remote == nil {
		return chat.TypingState{}, false
	}
	return *c.remote, true
}
