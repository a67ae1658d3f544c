package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/afroash/weatherstation/internal/models"
)

// Constants for WebSocket timeouts
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 8
)

// StreamHandler pushes every new snapshot to connected dashboard clients
type StreamHandler struct {
	upgrader       websocket.Upgrader
	authToken      string
	allowedOrigins []string
	logger         zerolog.Logger

	mutex   sync.RWMutex
	clients map[string]*StreamClient
}

// StreamClient represents an active dashboard connection
type StreamClient struct {
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
	Dropped     int       `json:"dropped"`

	conn *websocket.Conn
	send chan *models.Message
}

// NewStreamHandler creates a new stream handler. An empty authToken leaves
// the stream open.
func NewStreamHandler(authToken string, logger zerolog.Logger, allowedOrigins ...string) *StreamHandler {
	h := &StreamHandler{
		authToken:      authToken,
		allowedOrigins: allowedOrigins,
		logger:         logger,
		clients:        make(map[string]*StreamClient),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// checkOrigin validates the incoming request's Origin against the configured allowlist
func (h *StreamHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// No Origin header means same-origin request
	if origin == "" {
		return true
	}

	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}

	h.logger.Warn().Str("origin", origin).Msg("Rejected stream connection: origin not in allowlist")
	return false
}

// ServeHTTP upgrades the request and streams snapshots until the client leaves
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.validateToken(r.Header.Get("Authorization")) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	h.handleConnection(conn)
}

// validateToken checks the "Bearer <token>" header when a token is configured
func (h *StreamHandler) validateToken(authHeader string) bool {
	if h.authToken == "" {
		return true
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return false
	}
	return strings.TrimPrefix(authHeader, "Bearer ") == h.authToken
}

// handleConnection registers the client, runs its writer and blocks on the
// read loop until the connection closes.
func (h *StreamHandler) handleConnection(conn *websocket.Conn) {
	key := conn.RemoteAddr().String()
	client := &StreamClient{
		RemoteAddr:  key,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan *models.Message, sendBuffer),
	}

	h.mutex.Lock()
	h.clients[key] = client
	h.mutex.Unlock()
	h.logger.Info().Str("client", key).Msg("Stream client connected")

	done := make(chan struct{})
	go h.writeLoop(client, done)

	defer func() {
		h.removeClient(key)
		close(done)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Clients never send data; reading only surfaces close and pong frames
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Str("client", key).Msg("Stream error")
			}
			return
		}
	}
}

// writeLoop sends queued messages and keepalive pings to one client
func (h *StreamHandler) writeLoop(client *StreamClient, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case msg := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteJSON(msg); err != nil {
				h.logger.Warn().Err(err).Str("client", client.RemoteAddr).Msg("Failed to send snapshot")
				client.conn.Close()
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.conn.Close()
				return
			}
		}
	}
}

// Broadcast queues a snapshot for every client. A client whose queue is
// full misses the message rather than stalling the station.
func (h *StreamHandler) Broadcast(snap models.SnapshotMessage) {
	msg, err := models.NewMessage(models.MessageTypeSnapshot, snap)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create snapshot message")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, client := range h.clients {
		select {
		case client.send <- msg:
		default:
			client.Dropped++
			h.logger.Warn().Str("client", client.RemoteAddr).Msg("Stream client too slow, dropping snapshot")
		}
	}
}

// removeClient removes a client from the active map
func (h *StreamHandler) removeClient(key string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.clients, key)
	h.logger.Info().Str("client", key).Msg("Stream client disconnected")
}

// Clients returns a list of currently connected clients
func (h *StreamHandler) Clients() []StreamClient {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	clients := make([]StreamClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, StreamClient{
			RemoteAddr:  c.RemoteAddr,
			ConnectedAt: c.ConnectedAt,
			Dropped:     c.Dropped,
		})
	}
	return clients
}
