package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rocketscienceinc/blackjack-backend/internal/repository"
)

// Start - starts the lobby HTTP API. The API only touches the lobby
// mirror in Redis; live play goes through the WebSocket server.
func Start(ctx context.Context, logger *slog.Logger, port string, lobby repository.LobbyRepository) error {
	h := newHandlers(logger, lobby)

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", h.ping)
	mux.HandleFunc("/tables", h.tables)
	mux.HandleFunc("/tables/join", h.joinTable)
	mux.HandleFunc("/tables/leave", h.leaveTable)
	mux.HandleFunc("/tables/", h.getTable)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
