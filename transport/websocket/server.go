package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/blackjack-backend/internal/protocol"
)

type roomManager interface {
	JoinRoom(connID, roomCode, playerName string) error

	PlaceBet(roomCode, connID string, amount int) error
	ConfirmBet(roomCode, connID string) error
	CancelBet(roomCode, connID string) error
	StartBetting(roomCode, connID string, durationMS int) error

	DealCards(roomCode, connID string) error
	Hit(roomCode, connID string) error
	Stand(roomCode, connID string) error
	DealerReveal(roomCode, connID string) error
	DealerHit(roomCode, connID string) error
	DealerStand(roomCode, connID string) error

	ResetGame(roomCode, connID string) error
	DealerExit(roomCode, connID string) error
	Disconnect(roomCode, connID string)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Server terminates the WebSocket connections and routes every decoded
// message into the room manager. It also implements the manager's
// notifier: outbound fan-out filters the client table by room code.
type Server struct {
	logger *slog.Logger
	rooms  roomManager

	clients   map[string]*Client
	clientsMu sync.RWMutex

	handlers map[string]func(client *Client, msg *protocol.Message) error
}

func New(logger *slog.Logger, rooms roomManager) *Server {
	server := &Server{
		logger:  logger.With("component", "websocket"),
		rooms:   rooms,
		clients: make(map[string]*Client),

		handlers: make(map[string]func(*Client, *protocol.Message) error),
	}

	server.handlers[protocol.ActionJoinRoom] = server.handleJoinRoom
	server.handlers[protocol.ActionPlaceBet] = server.handlePlaceBet
	server.handlers[protocol.ActionConfirmBet] = server.handleConfirmBet
	server.handlers[protocol.ActionCancelBet] = server.handleCancelBet
	server.handlers[protocol.ActionStartBetting] = server.handleStartBetting
	server.handlers[protocol.ActionDealCards] = server.handleDealCards
	server.handlers[protocol.ActionHit] = server.handleHit
	server.handlers[protocol.ActionStand] = server.handleStand
	server.handlers[protocol.ActionDealerReveal] = server.handleDealerReveal
	server.handlers[protocol.ActionDealerHit] = server.handleDealerHit
	server.handlers[protocol.ActionDealerStand] = server.handleDealerStand
	server.handlers[protocol.ActionResetGame] = server.handleResetGame
	server.handlers[protocol.ActionDealerExit] = server.handleDealerExit

	return server
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", that.upgradeToWebSocket)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
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

// upgradeToWebSocket - upgrades the connection and starts the client
// pumps.
func (that *Server) upgradeToWebSocket(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeConnection")

	conn, err := upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	client := newClient(that, conn)
	that.registerClient(client)

	log.Info("WebSocket connection established", "connID", client.ID)

	go client.readPump()
	go client.writePump()
}

func (that *Server) registerClient(client *Client) {
	that.clientsMu.Lock()
	defer that.clientsMu.Unlock()
	that.clients[client.ID] = client
}

func (that *Server) unregisterClient(client *Client) {
	that.clientsMu.Lock()
	defer that.clientsMu.Unlock()
	delete(that.clients, client.ID)
}

// ToRoom - broadcasts a message to every connection in the room.
func (that *Server) ToRoom(roomCode string, msg *protocol.Message) {
	that.ToRoomExcept(roomCode, "", msg)
}

// ToRoomExcept - broadcasts to the room, skipping one connection. Used
// when the dealer and the players must see different views of the same
// event.
func (that *Server) ToRoomExcept(roomCode, exceptConnID string, msg *protocol.Message) {
	that.clientsMu.RLock()
	defer that.clientsMu.RUnlock()

	for _, client := range that.clients {
		if client.ID == exceptConnID || client.Room() != roomCode {
			continue
		}
		client.Send(msg)
	}
}

// ToConn - unicasts a message to a single connection.
func (that *Server) ToConn(connID string, msg *protocol.Message) {
	that.clientsMu.RLock()
	client, ok := that.clients[connID]
	that.clientsMu.RUnlock()

	if !ok {
		that.logger.Warn("connection not found", "connID", connID)
		return
	}

	client.Send(msg)
}
