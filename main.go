package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/nasif-muhamed/LearNerd-sub001/auth"
	domain "github.com/nasif-muhamed/LearNerd-sub001/domain/chat"
	"github.com/nasif-muhamed/LearNerd-sub001/modules/api"
	"github.com/nasif-muhamed/LearNerd-sub001/modules/broadcast"
	"github.com/nasif-muhamed/LearNerd-sub001/modules/chat"
	"github.com/nasif-muhamed/LearNerd-sub001/modules/uploads"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== LearNerd Chat - Realtime Messaging Server ===")

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	chatModule, err := chat.NewModule()
	if err != nil {
		log.Fatalf("Failed to create chat module: %v", err)
	}
	broadcastModule := broadcast.NewModule()
	uploadsModule := uploads.NewModule()
	apiModule := api.NewModule()

	authManager := auth.NewManager(auth.DefaultConfig())

	// The hub, chat service and attachment store are injected manually;
	// they are in-process dependencies, not bus services.
	apiModule.SetChatService(chatModule.Service())
	apiModule.SetHub(broadcastModule.GetHub())
	apiModule.SetAuth(authManager)

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies.
	app.Register(chatModule)      // room/message store + event emitter
	app.Register(broadcastModule) // room socket hub + event consumer
	app.Register(uploadsModule)   // attachment object store
	app.Register(apiModule)       // HTTP + WebSocket surface

	// The uploads store only exists after the module starts, so wire it
	// just before the API module starts listening. Registration order
	// above guarantees uploads starts first.
	startCtx := context.Background()
	if err := uploadsModule.Start(startCtx); err != nil {
		log.Fatalf("Failed to start uploads module: %v", err)
	}
	apiModule.SetUploads(uploadsModule.Store())

	if err := app.Start(startCtx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	seedDemoData(chatModule.Service())
	printStartupInfo(authManager)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

// seedDemoData creates a few rooms on first boot. Creates with fixed
// ids fail once the rooms exist, which keeps reseeding harmless.
func seedDemoData(service *chat.Service) {
	student := domain.Participant{UserID: "student-1", FullName: "Asha Nair"}
	tutor := domain.Participant{UserID: "tutor-1", FullName: "Maya Thomas"}

	expiry := time.Now().Add(30 * 24 * time.Hour)
	rooms := []struct {
		room    domain.Room
		members []domain.Participant
	}{
		{
			room: domain.Room{
				ID:        "room-direct-1",
				RoomType:  domain.RoomOneToOne,
				ExpiresAt: &expiry,
			},
			members: []domain.Participant{student, tutor},
		},
		{
			room: domain.Room{
				ID:       "room-temp-1",
				RoomType: domain.RoomOneToOne,
				TempChat: true,
			},
			members: []domain.Participant{student, tutor},
		},
		{
			room: domain.Room{
				ID:       "room-community-1",
				RoomType: domain.RoomGroup,
				Name:     "Go Study Group",
			},
			members: []domain.Participant{student, tutor},
		},
	}

	for _, seed := range rooms {
		if err := service.CreateRoom(seed.room, seed.members); err == nil {
			log.Printf("[seed] created room %s", seed.room.ID)
		}
	}
}

func printStartupInfo(authManager *auth.Manager) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	studentToken, _ := authManager.Generate("student-1", "Asha Nair", auth.RoleStudent)
	tutorToken, _ := authManager.Generate("tutor-1", "Maya Thomas", auth.RoleTutor)

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health                        - Health check")
	log.Println("  GET    /api/v1/rooms?room_type=       - List rooms (one_to_one | group)")
	log.Println("  GET    /api/v1/rooms/:id/messages     - Message history")
	log.Println("  POST   /api/v1/rooms/:id/meeting      - Set/clear live meeting (tutor)")
	log.Println("  POST   /api/v1/uploads                - Upload an attachment")
	log.Println("  GET    /api/v1/uploads/:name          - Download an attachment")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s):", port)
	log.Println("  GET    /ws/rooms/:id?token=<jwt>      - Per-room chat socket")
	log.Println("")
	log.Println("Demo tokens:")
	log.Printf("  student: %s", studentToken)
	log.Printf("  tutor:   %s", tutorToken)
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
