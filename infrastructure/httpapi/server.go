package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// CreateServer configures the HTTP server with production timeouts.
// WebSocket connections are hijacked after the handshake, so these
// deadlines only bound plain HTTP exchanges.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// ShutdownServer drains the HTTP server, waiting up to timeout for active
// requests to finish.
func ShutdownServer(server *http.Server, timeout time.Duration, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown error", "err", err)
		return err
	}
	log.Info("HTTP server shutdown completed")
	return nil
}
