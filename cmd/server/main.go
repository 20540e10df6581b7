package main

import (
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"casaview/config"
	"casaview/handlers"
	"casaview/internal/database"
	"casaview/internal/player"
	"casaview/services/cameras"
	"casaview/services/events"
	"casaview/utils"
)

func main() {
	configPath := flag.String("config", "data/settings.json", "path to the settings file")
	flag.Parse()

	configManager := config.NewManager(*configPath)
	settings, err := configManager.Load()
	if err != nil {
		log.Fatalf("[main] failed to load settings: %v", err)
	}

	setupLogging(settings.Log)

	db, err := database.NewDB(database.Config{DatabasePath: settings.Database.Path})
	if err != nil {
		log.Fatalf("[main] failed to open database: %v", err)
	}
	defer db.Close()

	eventsService := events.NewService(slog.With("component", "events"))
	cameraService := cameras.NewService(configManager, db.Cameras, eventsService)
	manager := player.NewManager(nil, player.ConfigFromSettings(settings.Player))

	router := utils.NewRouter()
	handlers.NewCamerasHandler(cameraService).RegisterRoutes(router)
	handlers.NewStreamHandler(cameraService, nil).RegisterRoutes(router)
	handlers.NewViewHandler(cameraService, manager, eventsService).RegisterRoutes(router)
	handlers.NewEventsHandler(eventsService).RegisterRoutes(router)

	server := &http.Server{
		Addr:              settings.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// No write timeout: MJPEG proxies and viewer sockets are
		// long-lived by design.
	}

	go func() {
		log.Printf("[main] casaview listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("[main] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Stop playback first so viewer sockets drain before the listener
	// closes under them.
	manager.StopAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] shutdown error: %v", err)
	}

	log.Printf("[main] goodbye")
}

// setupLogging routes slog and the standard logger to stderr, and
// additionally to a rotated file when one is configured.
func setupLogging(cfg config.LogSettings) {
	var out io.Writer = os.Stderr
	if cfg.File != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(handler))
	log.SetOutput(out)
}
