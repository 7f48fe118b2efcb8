package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	gonanoid "github.com/jaevor/go-nanoid"

	"github.com/nasif-muhamed/LearNerd-sub001/auth"
	domain "github.com/nasif-muhamed/LearNerd-sub001/domain/chat"
	"github.com/nasif-muhamed/LearNerd-sub001/modules/broadcast"
	"github.com/nasif-muhamed/LearNerd-sub001/modules/uploads"
)

const claimsKey = "claims"

// setupRoutes configures all HTTP routes.
func (m *Module) setupRoutes() {
	m.app.Get("/health", m.healthHandler)

	// Attachment download is public so image URLs render without a token.
	m.app.Get("/api/v1/uploads/:name", m.getUpload)

	api := m.app.Group("/api/v1", m.requireAuth)
	api.Get("/rooms", m.listRooms)
	api.Get("/rooms/:id/messages", m.getHistory)
	api.Post("/rooms/:id/meeting", m.setMeeting)
	api.Post("/uploads", m.postUpload)

	// The socket authenticates during the upgrade request so bad tokens
	// and non-members are rejected with a plain HTTP status.
	m.app.Use("/ws/rooms/:id", m.upgradeRoomSocket)
	m.app.Get("/ws/rooms/:id", websocket.New(m.handleRoomSocket))
}

// healthHandler handles GET /health.
func (m *Module) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":            "api",
			"connected_clients": m.hub.ClientCount(),
		},
	})
}

// requireAuth validates the bearer token and stashes the claims.
func (m *Module) requireAuth(c *fiber.Ctx) error {
	header := c.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Missing bearer token",
		})
	}

	claims, err := m.auth.Validate(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid or expired token",
		})
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

func claimsFrom(c *fiber.Ctx) *auth.Claims {
	return c.Locals(claimsKey).(*auth.Claims)
}

// listRooms handles GET /api/v1/rooms?room_type=.
func (m *Module) listRooms(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	roomType := domain.RoomType(c.Query("room_type", string(domain.RoomOneToOne)))
	if roomType != domain.RoomOneToOne && roomType != domain.RoomGroup {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "Unknown room_type",
		})
	}

	rooms, err := m.chat.Rooms(claims.UserID, roomType)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list rooms",
		})
	}

	// The caller may pin one room so the client opens it immediately.
	if selected := c.Query("selected"); selected != "" {
		for i := range rooms {
			if rooms[i].ID == selected {
				rooms[i].SelectedDefault = true
			}
		}
	}

	for i := range rooms {
		rooms[i].OnlineUserCount = m.hub.RoomUserCount(rooms[i].ID)
	}

	return c.JSON(RoomListResponse{Rooms: rooms})
}

// getHistory handles GET /api/v1/rooms/:id/messages.
func (m *Module) getHistory(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	roomID := c.Params("id")

	if !m.chat.IsMember(roomID, claims.UserID) {
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
			Error:   "forbidden",
			Message: "Not a member of this room",
		})
	}

	messages, err := m.chat.History(roomID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "history_failed",
			Message: "Failed to load history",
		})
	}

	return c.JSON(HistoryResponse{Messages: messages})
}

// setMeeting handles POST /api/v1/rooms/:id/meeting. Tutors and admins
// manage live meetings; a null meeting clears the descriptor.
func (m *Module) setMeeting(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	roomID := c.Params("id")

	if claims.Role == auth.RoleStudent {
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
			Error:   "forbidden",
			Message: "Only tutors can manage meetings",
		})
	}
	if !m.chat.IsMember(roomID, claims.UserID) {
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
			Error:   "forbidden",
			Message: "Not a member of this room",
		})
	}

	var req MeetingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := m.chat.SetMeeting(roomID, req.Meeting); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Room not found",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// postUpload handles POST /api/v1/uploads (multipart form, field "file").
func (m *Module) postUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Missing file field",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Unreadable file",
		})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Unreadable file",
		})
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	name := objectName(fileHeader.Filename)
	if _, err := m.uploads.Put(c.UserContext(), name, data, contentType); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "upload_failed",
			Message: "Failed to store attachment",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(UploadResponse{
		URL: m.baseURL + "/api/v1/uploads/" + name,
	})
}

// getUpload handles GET /api/v1/uploads/:name.
func (m *Module) getUpload(c *fiber.Ctx) error {
	name := c.Params("name")

	data, info, err := m.uploads.Get(c.UserContext(), name)
	if err != nil {
		if errors.Is(err, uploads.ErrObjectNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Error:   "not_found",
				Message: "Attachment not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "download_failed",
			Message: "Failed to load attachment",
		})
	}

	c.Set(fiber.HeaderContentType, info.ContentType)
	return c.Send(data)
}

// objectName prefixes the original filename with a short random id so
// repeated uploads of the same file never collide.
func objectName(filename string) string {
	gen, err := gonanoid.Standard(12)
	if err != nil {
		return uuid.New().String() + "-" + filename
	}
	return gen() + "-" + filename
}

// upgradeRoomSocket authenticates the upgrade request for /ws/rooms/:id.
func (m *Module) upgradeRoomSocket(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	claims, err := m.auth.Validate(c.Query("token"))
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}
	if !m.chat.IsMember(c.Params("id"), claims.UserID) {
		return c.SendStatus(fiber.StatusForbidden)
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

// handleRoomSocket runs the per-room socket loop.
func (m *Module) handleRoomSocket(c *websocket.Conn) {
	claims := c.Locals(claimsKey).(*auth.Claims)
	roomID := c.Params("id")

	client := &broadcast.Client{
		ID: uuid.New().String(),
		User: domain.Participant{
			UserID:   claims.UserID,
			FullName: claims.FullName,
		},
		RoomID: roomID,
		Conn:   c,
	}

	m.hub.Register(client)
	defer m.hub.Unregister(client)

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[api] read error from %s: %v", claims.UserID, err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			_ = client.Send(broadcast.Frame{Type: "error", Error: "invalid frame"})
			continue
		}

		switch frame.Type {
		case "message":
			m.handleMessageIntent(client, frame)
		case "typing":
			user := client.User
			m.hub.BroadcastExcept(roomID, claims.UserID, broadcast.Frame{
				Type:     "typing",
				User:     &user,
				IsTyping: frame.IsTyping,
			})
		case "read_receipt":
			if _, err := m.chat.MarkRead(roomID, claims.UserID); err != nil {
				log.Printf("[api] failed to mark room %s read: %v", roomID, err)
				continue
			}
			m.hub.BroadcastExcept(roomID, claims.UserID, broadcast.Frame{
				Type:   "read_receipt",
				UserID: claims.UserID,
			})
		default:
			// Unknown intents are dropped to stay forward compatible.
		}
	}
}

func (m *Module) handleMessageIntent(client *broadcast.Client, frame clientFrame) {
	messageType := domain.MessageType(frame.MessageType)
	if messageType == "" {
		messageType = domain.MessageText
	}

	// The appended message reaches every room socket through the event
	// bus, sender included.
	if _, err := m.chat.Append(client.RoomID, client.User, frame.Message, messageType); err != nil {
		_ = client.Send(broadcast.Frame{Type: "error", Error: err.Error()})
	}
}
