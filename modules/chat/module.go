package chat

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-monolith/mono"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nasif-muhamed/LearNerd-sub001/events"
)

// Module wraps the chat service for the mono framework.
type Module struct {
	db      *gorm.DB
	service *Service
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule opens the sqlite store and creates the chat module. The
// database path comes from CHAT_DB_PATH (":memory:" works for tests).
func NewModule() (*Module, error) {
	path := os.Getenv("CHAT_DB_PATH")
	if path == "" {
		path = "learnerd-chat.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open chat database: %w", err)
	}

	service := NewService(db)
	if err := service.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate chat schema: %w", err)
	}

	return &Module{db: db, service: service}, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// Service exposes the chat service for direct injection into the API
// module from main.go.
func (m *Module) Service() *Service {
	return m.service
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.service.SetEventBus(bus)
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageSentV1.ToBase(),
		events.MeetingStatusChangedV1.ToBase(),
	}
}

// Start logs readiness; the store is already open and migrated.
func (m *Module) Start(_ context.Context) error {
	log.Println("[chat] module started")
	return nil
}

// Stop closes the underlying database.
func (m *Module) Stop(_ context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	log.Println("[chat] module stopped")
	return sqlDB.Close()
}

// Health reports store availability.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	sqlDB, err := m.db.DB()
	healthy := err == nil && sqlDB.Ping() == nil
	return mono.HealthStatus{
		Healthy: healthy,
		Message: "operational",
	}
}
