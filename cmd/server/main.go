package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"duochat/auth"
	"duochat/domain"
	"duochat/infrastructure/httpapi"
	"duochat/infrastructure/ws"
	"duochat/internal"
	"duochat/observability"
	"duochat/projection"
	"duochat/repositories"
	"duochat/runtime"
	"duochat/runtime/workers"
	"duochat/services"
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

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting. Deferred cleanup (database close, sequence
// release) is guaranteed to execute before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	identities := config.Identities()
	if len(identities) == 0 {
		return exitConfig, fmt.Errorf("WHITELIST must name at least one identity")
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	auth.SetSigningKey([]byte(config.JWTSigningKey))

	// 2. Database (BadgerDB)
	// A storage failure here is fatal: the process must not start
	// accepting connections it cannot back with history.
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return exitRuntime, fmt.Errorf("opening badger at %s: %w", config.BadgerFilepath, err)
	}
	defer db.Close()

	repository, err := repositories.NewMessageRepository(db, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer repository.Close()

	// 3. Core wiring
	monitoring := observability.NewManager()
	whitelist := domain.NewWhitelist(identities)
	registry := runtime.NewRegistry(whitelist)
	timeline := projection.NewTimeline(repository, logger)

	hub := ws.NewHub(logger, monitoring)
	chatService := services.NewChatService(hub, registry, repository, timeline, whitelist, monitoring, logger, config.AllowLegacyJoin)
	hub.BindHandler(chatService)

	authService := services.NewAuthService(config.SecretPhraseHash, config.AuthTokenDuration)

	// 4. Supervision
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	supervisor := workers.NewSupervisor(logger)
	supervisor.Add(hub, workers.NewHealthWorker(logger, monitoring, config.HealthInterval))

	supervisorDone := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(supervisorDone)
	}()

	// 5. HTTP surface
	mux := httpapi.SetupRoutes(
		httpapi.LoginHandler(authService, logger),
		httpapi.LivenessHandler(monitoring),
		httpapi.StatsHandler(monitoring),
		ws.UpgradeHandler(hub, logger),
	)
	server := httpapi.CreateServer(fmt.Sprintf("%s:%d", config.Host, config.Port), mux)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()
	logger.Info("Server listening", "addr", server.Addr, "identities", len(identities))

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return exitRuntime, err
		}
	}

	_ = httpapi.ShutdownServer(server, config.ShutdownTimeout, logger)
	supervisor.Stop()
	<-supervisorDone

	return exitOK, nil
}
