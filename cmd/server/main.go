package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/blugelabs/bluge"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"wavelength/auth"
	"wavelength/domain/event"
	"wavelength/infrastructure/api"
	"wavelength/infrastructure/storage"
	"wavelength/infrastructure/ws"
	"wavelength/internal"
	"wavelength/observability"
	"wavelength/runtime"
	"wavelength/runtime/workers"
	"wavelength/services"
	"wavelength/sink"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for servers and background workers.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Durable stores (BadgerDB + Bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	messageRepository := storage.NewMessageRepository(db, logger)
	conversationRepository := storage.NewConversationRepository(db, logger)
	presenceRepository := storage.NewPresenceRepository(db)
	searchIndex := storage.NewSearchIndex(blugeWriter, logger)

	// 3. Realtime core
	monitoring := observability.NewMonitoringManager()
	registry := runtime.NewRegistry()
	presence := runtime.NewPresence()
	typing := runtime.NewTypingTable()
	coordinator := runtime.NewCoordinator(logger, registry, presence, typing, monitoring,
		config.EventBufferSize, config.TypingTTL, config.SinkTimeout)

	// 4. Services & auth
	tokens := auth.NewTokenManager(config.JwtSecret, config.AuthTokenDuration)
	messageService := services.NewMessageService(logger, messageRepository, conversationRepository,
		searchIndex, coordinator, monitoring)
	conversationService := services.NewConversationService(logger, conversationRepository)

	// 5. Supervision & workers
	sup := workers.NewSupervisor(logger, coordinator.Telemetry())
	timeline := sink.NewTimeline()
	lastSeen := sink.NewLastSeenSink(presenceRepository, logger)

	counter := event.NewCounter()
	handlers := []event.Handler{
		event.NewChannelCapacityHandler(logger, config.LowCapacityThreshold),
		event.NewWorkerRestartedAfterPanicHandler(logger, counter),
		event.NewDeliveryHandler(logger, counter),
	}

	sup.Add(
		workers.NewEventFanout(logger, coordinator.Events(), timeline, lastSeen),
		workers.NewTypingExpiryWorker(logger, coordinator, config.TypingSweepInterval),
		workers.NewTelemetryWorker(logger, coordinator.Telemetry(), handlers),
		workers.NewChannelCapacityWorker(logger, []workers.NamedChannel{
			{Name: "events", Channel: coordinator.Events()},
			{Name: "telemetry", Channel: coordinator.Telemetry()},
		}, coordinator.Telemetry(), config.MetricInterval),
		workers.NewHealthWorker(logger, config.MetricInterval),
	)

	// 6. Observability endpoints
	observability.StartMetricsServer(config.MetricsPort, "/metrics")
	if logger.Enabled(ctx, slog.LevelDebug) {
		internal.StartDebugServer(db, monitoring, config.DebugPort)
		logger.Info("Debug inspector available",
			"url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
	}

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)

	go func() {
		logger.Info("Starting workers...")
		sup.Run(ctx)
	}()

	// 8. Socket server
	wsHandler := ws.NewHandler(logger, coordinator, messageService, conversationRepository,
		tokens, config.PingInterval, config.ReadTimeout, config.WriteTimeout)
	wsMux := http.NewServeMux()
	wsMux.HandleFunc("/ws", wsHandler.HandleWebSocket)
	wsServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.SocketPort),
		Handler: wsMux,
	}
	go func() {
		logger.Info("Socket server listening", "addr", wsServer.Addr)
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("socket server error: %w", err)
		}
	}()

	// 9. HTTP API
	apiServer := api.NewServer(logger, messageService, conversationService,
		coordinator, presenceRepository, tokens, config.ApiPort)
	go func() {
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("api server error: %w", err)
		}
	}()

	// 10. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 11. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.WriteTimeout)
	defer cancel()
	_ = wsServer.Shutdown(shutdownCtx)
	_ = apiServer.Shutdown(shutdownCtx)
	sup.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}
