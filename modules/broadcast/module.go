package broadcast

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/nasif-muhamed/LearNerd-sub001/events"
)

// Module consumes chat events and fans them out to room sockets.
type Module struct {
	hub       *Hub
	cancelHub context.CancelFunc
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.EventConsumerModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new broadcast module.
func NewModule() *Module {
	return &Module{
		hub: NewHub(),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "broadcast"
}

// GetHub returns the hub so the API module can register room sockets.
func (m *Module) GetHub() *Hub {
	return m.hub
}

// Start launches the hub loop.
func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	log.Println("[broadcast] module started, hub running")
	return nil
}

// Stop shuts the hub down and waits for it to drain.
func (m *Module) Stop(_ context.Context) error {
	clientCount := m.hub.ClientCount()
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	log.Printf("[broadcast] module stopped, %d clients were connected", clientCount)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// RegisterEventConsumers subscribes to the chat module's events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageSentV1, m.handleMessageSent, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.MeetingStatusChangedV1, m.handleMeetingStatusChanged, m,
	); err != nil {
		return fmt.Errorf("failed to register MeetingStatusChanged consumer: %w", err)
	}

	log.Println("[broadcast] registered event consumers: MessageSent, MeetingStatusChanged")
	return nil
}

func (m *Module) handleMessageSent(_ context.Context, event events.MessageSentEvent, _ *mono.Msg) error {
	log.Printf("[broadcast] broadcasting message from %s in room %s", event.Message.Sender.UserID, event.RoomID)

	msg := event.Message
	m.hub.Broadcast(event.RoomID, Frame{
		Type:    "message",
		Message: &msg,
	})
	return nil
}

func (m *Module) handleMeetingStatusChanged(_ context.Context, event events.MeetingStatusChangedEvent, _ *mono.Msg) error {
	log.Printf("[broadcast] broadcasting meeting status for room %s", event.RoomID)

	m.hub.Broadcast(event.RoomID, Frame{
		Type:    "group_meeting_status",
		Meeting: event.Meeting,
	})
	return nil
}
