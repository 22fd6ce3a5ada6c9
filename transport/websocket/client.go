package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/blackjack-backend/internal/protocol"
)

const (
	writeWait = 10 * time.Second

	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	sendBufferSize = 256
)

// Client is one WebSocket connection. The connection id doubles as the
// participant id inside a room; a reconnecting player gets a new Client
// and the room manager reattaches their seat to the new id.
type Client struct {
	ID string

	server *Server
	conn   *websocket.Conn
	send   chan []byte

	mu       sync.RWMutex
	roomCode string
	closed   bool
}

func newClient(server *Server, conn *websocket.Conn) *Client {
	return &Client{
		ID:     uuid.New().String(),
		server: server,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
}

// readPump - reads and dispatches inbound messages until the connection
// drops, then funnels the drop into the room manager.
func (that *Client) readPump() {
	log := that.server.logger.With("method", "readPump", "connID", that.ID)

	defer func() {
		that.disconnect()
		that.conn.Close()
	}()

	that.conn.SetReadLimit(maxMessageSize)
	_ = that.conn.SetReadDeadline(time.Now().Add(pongWait))
	that.conn.SetPongHandler(func(string) error {
		return that.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := that.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("failed to read message", "error", err)
			}
			return
		}

		var msg protocol.Message
		if err = json.Unmarshal(raw, &msg); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			that.Send(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg, "malformed message"))
			continue
		}

		that.server.dispatch(that, &msg)
	}
}

// writePump - drains the send channel and keeps the connection alive
// with pings.
func (that *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		that.conn.Close()
	}()

	for {
		select {
		case data, ok := <-that.send:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = that.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := that.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := that.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send - queues a message; a client that cannot keep up is dropped
// rather than allowed to block the room. The read lock is held across
// the channel send: close takes the write lock, so the channel can
// never be closed out from under an in-flight send.
func (that *Client) Send(msg *protocol.Message) {
	data, err := msg.Encode()
	if err != nil {
		that.server.logger.Error("failed to encode message", "action", msg.Action, "error", err)
		return
	}

	that.mu.RLock()
	if that.closed {
		that.mu.RUnlock()
		return
	}

	select {
	case that.send <- data:
		that.mu.RUnlock()
	default:
		that.mu.RUnlock()
		that.server.logger.Warn("send buffer full, closing connection", "connID", that.ID)
		that.close()
	}
}

func (that *Client) disconnect() {
	that.server.unregisterClient(that)
	that.close()

	if roomCode := that.Room(); roomCode != "" {
		that.server.rooms.Disconnect(roomCode, that.ID)
	}
}

func (that *Client) close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.closed {
		that.closed = true
		close(that.send)
	}
}

func (that *Client) SetRoom(roomCode string) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.roomCode = roomCode
}

func (that *Client) Room() string {
	that.mu.RLock()
	defer that.mu.RUnlock()
	return that.roomCode
}
