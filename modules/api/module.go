package api

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/nasif-muhamed/LearNerd-sub001/auth"
	"github.com/nasif-muhamed/LearNerd-sub001/modules/broadcast"
	"github.com/nasif-muhamed/LearNerd-sub001/modules/chat"
	"github.com/nasif-muhamed/LearNerd-sub001/modules/uploads"
)

// Module is the HTTP surface: the room and history REST API, the
// attachment endpoints and the per-room WebSocket.
type Module struct {
	app     *fiber.App
	chat    *chat.Service
	hub     *broadcast.Hub
	auth    *auth.Manager
	uploads uploads.ObjectStore
	port    string
	baseURL string
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.DependentModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new API module.
func NewModule() *Module {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	baseURL := os.Getenv("PUBLIC_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + port
	}
	return &Module{
		port:    port,
		baseURL: baseURL,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"chat", "broadcast", "uploads"}
}

// SetDependencyServiceContainer is required by DependentModule. The
// concrete dependencies are injected directly from main.go.
func (m *Module) SetDependencyServiceContainer(_ string, _ mono.ServiceContainer) {}

// SetChatService sets the chat service (called from main.go).
func (m *Module) SetChatService(service *chat.Service) {
	m.chat = service
}

// SetHub sets the broadcast hub (called from main.go).
func (m *Module) SetHub(hub *broadcast.Hub) {
	m.hub = hub
}

// SetAuth sets the token manager (called from main.go).
func (m *Module) SetAuth(manager *auth.Manager) {
	m.auth = manager
}

// SetUploads sets the attachment store (called from main.go).
func (m *Module) SetUploads(store uploads.ObjectStore) {
	m.uploads = store
}

func (m *Module) setup() error {
	if m.chat == nil {
		return fmt.Errorf("chat service dependency not set")
	}
	if m.hub == nil {
		return fmt.Errorf("broadcast hub dependency not set")
	}
	if m.auth == nil {
		return fmt.Errorf("auth manager dependency not set")
	}
	if m.uploads == nil {
		return fmt.Errorf("uploads store dependency not set")
	}

	m.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
		BodyLimit:             16 * 1024 * 1024,
	})

	m.app.Use(recover.New())
	m.app.Use(loggerMiddleware())

	m.setupRoutes()
	return nil
}

// Start initializes the Fiber HTTP server.
func (m *Module) Start(_ context.Context) error {
	if err := m.setup(); err != nil {
		return err
	}

	go func() {
		if err := m.app.Listen(":" + m.port); err != nil {
			log.Printf("[api] HTTP server error: %v", err)
		}
	}()

	log.Printf("[api] HTTP server started on :%s", m.port)
	return nil
}

// StartOnListener runs the server on a prepared listener. Tests use it
// to bind an ephemeral port.
func (m *Module) StartOnListener(ln net.Listener) error {
	if err := m.setup(); err != nil {
		return err
	}

	go func() {
		if err := m.app.Listener(ln); err != nil {
			log.Printf("[api] HTTP server error: %v", err)
		}
	}()
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *Module) Stop(_ context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("[api] shutting down HTTP server")
	return m.app.Shutdown()
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port":              m.port,
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}

// loggerMiddleware returns a Fiber middleware for request logging.
func loggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Upgrade") == "websocket" {
			return c.Next()
		}
		err := c.Next()
		log.Printf("[api] %s %s %d", c.Method(), c.Path(), c.Response().StatusCode())
		return err
	}
}
