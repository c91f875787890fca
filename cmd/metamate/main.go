package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/metamate-app/metamate/internal/api"
	"github.com/metamate-app/metamate/internal/chat"
	"github.com/metamate-app/metamate/internal/config"
	"github.com/metamate-app/metamate/internal/db"
	"github.com/metamate-app/metamate/internal/google"
	"github.com/metamate-app/metamate/internal/llm"
	"github.com/metamate-app/metamate/internal/scheduler"
	"github.com/metamate-app/metamate/internal/translate"
)

var (
	configFile  = flag.String("config", os.ExpandEnv("$HOME/.metamate/config.yaml"), "Path to configuration file")
	authOnly    = flag.Bool("auth", false, "Run Google OAuth flow only")
	syncOnce    = flag.Bool("sync-meetings", false, "Materialize pending meetings once and exit")
	showVersion = flag.Bool("version", false, "Show version")
)

const VERSION = "0.1.0"

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("metamate v%s\n", VERSION)
		os.Exit(0)
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *authOnly {
		if err := google.Authorize(ctx, &cfg.Google); err != nil {
			log.Fatalf("Authentication failed: %v", err)
		}
		log.Println("Authentication successful!")
		os.Exit(0)
	}

	location, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		log.Printf("Invalid timezone %s, using local: %v", cfg.Schedule.Timezone, err)
		location = time.Local
	}

	database, err := db.Init(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	llmClient, err := llm.NewGeminiClient(&cfg.Gemini, database)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}
	defer llmClient.Close()

	translator := translate.NewClient(&cfg.Translate)

	pipeline := chat.NewPipeline(database, llmClient, translator, &cfg.Chat, location)

	// Calendar is optional; without credentials the server still chats and
	// records tasks, meetings just stay pending.
	var calendarClient *google.CalendarClient
	if cfg.Google.ClientID != "" && cfg.Google.ClientID != "YOUR_CLIENT_ID_HERE" {
		calendarClient, err = google.NewCalendarClient(ctx, &cfg.Google, location)
		if err != nil {
			log.Printf("Calendar unavailable, meetings will stay pending: %v", err)
		}
	} else {
		log.Println("Google credentials not configured, calendar scheduling disabled")
	}

	sched := scheduler.New(database, calendarClient, pipeline.Sessions, &cfg.Schedule, location)

	if *syncOnce {
		sched.RunMeetingSync()
		log.Println("Meeting sync complete!")
		os.Exit(0)
	}

	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	server := api.NewServer(database, pipeline, &cfg.API)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
