package uploads

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-monolith/mono"
)

// Module provides attachment storage. It uses NATS JetStream Object
// Store when UPLOADS_NATS_URL is set and falls back to an in-process
// store otherwise, so the server runs without external infrastructure.
type Module struct {
	natsURL string
	bucket  string

	jsStore *JetStreamObjectStore
	store   ObjectStore
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new uploads module.
func NewModule() *Module {
	bucket := os.Getenv("UPLOADS_BUCKET")
	if bucket == "" {
		bucket = "chat-attachments"
	}
	return &Module{
		natsURL: os.Getenv("UPLOADS_NATS_URL"),
		bucket:  bucket,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "uploads"
}

// Store exposes the object store for the API module.
func (m *Module) Store() ObjectStore {
	return m.store
}

// Start connects the configured backend. It is idempotent so main.go
// can open the store early to hand it to the API module.
func (m *Module) Start(ctx context.Context) error {
	if m.store != nil {
		return nil
	}
	if m.natsURL == "" {
		m.store = NewMemoryObjectStore()
		log.Println("[uploads] module started with in-memory store")
		return nil
	}

	jsStore, err := NewJetStreamObjectStore(m.natsURL, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}
	if err := jsStore.Init(ctx); err != nil {
		jsStore.Close()
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	m.jsStore = jsStore
	m.store = jsStore
	log.Printf("[uploads] module started (NATS: %s, bucket: %s)", m.natsURL, m.bucket)
	return nil
}

// Stop closes the backend connection if one is open.
func (m *Module) Stop(_ context.Context) error {
	if m.jsStore != nil {
		m.jsStore.Close()
	}
	log.Println("[uploads] module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.jsStore != nil {
		healthy := m.jsStore.IsConnected()
		message := "connected"
		if !healthy {
			message = "disconnected"
		}
		return mono.HealthStatus{
			Healthy: healthy,
			Message: message,
			Details: map[string]any{
				"backend": "jetstream",
				"bucket":  m.bucket,
			},
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"backend": "memory",
		},
	}
}
