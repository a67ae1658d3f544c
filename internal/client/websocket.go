package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/afroash/weatherstation/internal/models"
)

// WebSocketConfig holds configuration for the websocket publisher
type WebSocketConfig struct {
	URL       string
	AuthToken string
	Timeout   time.Duration
}

// WebSocketPublisher uploads batches over a short-lived websocket session:
// dial, send one batch, wait for the server's ack, close. The station sleeps
// between cycles, so no connection is kept open.
type WebSocketPublisher struct {
	url     string
	token   string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewWebSocketPublisher creates a websocket publisher
func NewWebSocketPublisher(config WebSocketConfig, logger zerolog.Logger) *WebSocketPublisher {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebSocketPublisher{
		url:     config.URL,
		token:   config.AuthToken,
		timeout: timeout,
		logger:  logger,
	}
}

// Name identifies the destination in logs.
func (p *WebSocketPublisher) Name() string {
	return "websocket"
}

// Publish sends msgs as one batch and waits for the server to acknowledge it.
func (p *WebSocketPublisher) Publish(ctx context.Context, msgs []models.SnapshotMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dial(ctx)
	if err != nil {
		return err
	}
	defer p.close(conn)

	deadline, _ := ctx.Deadline()
	conn.SetWriteDeadline(deadline)
	conn.SetReadDeadline(deadline)

	batch := models.BatchMessage{Snapshots: msgs, Count: len(msgs)}
	msg, err := models.NewMessage(models.MessageTypeBatch, batch)
	if err != nil {
		return fmt.Errorf("failed to create batch message: %w", err)
	}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	if err := p.awaitAck(conn); err != nil {
		return err
	}

	p.logger.Info().Int("count", len(msgs)).Msg("Sent batch of snapshots")
	return nil
}

// dial establishes a WebSocket connection to the server
func (p *WebSocketPublisher) dial(ctx context.Context) (*websocket.Conn, error) {
	p.logger.Debug().Str("url", p.url).Msg("Connecting to server...")

	dialer := websocket.Dialer{
		HandshakeTimeout: p.timeout,
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.token)

	conn, resp, err := dialer.DialContext(ctx, p.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial failed (%s): %v", ErrNotConnected, resp.Status, err)
		}
		return nil, fmt.Errorf("%w: dial failed: %v", ErrNotConnected, err)
	}
	resp.Body.Close()
	return conn, nil
}

// awaitAck reads server messages until the batch is acknowledged or rejected.
func (p *WebSocketPublisher) awaitAck(conn *websocket.Conn) error {
	for {
		var msg models.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("no acknowledgement from server: %w", err)
		}

		switch msg.Type {
		case models.MessageTypeAck:
			return nil
		case models.MessageTypeError:
			var errMsg models.ErrorMessage
			if err := msg.UnmarshalPayload(&errMsg); err != nil {
				return fmt.Errorf("server rejected batch")
			}
			return fmt.Errorf("server rejected batch: %s: %s", errMsg.Code, errMsg.Message)
		default:
			p.logger.Debug().Str("type", string(msg.Type)).Msg("Ignoring message while waiting for ack")
		}
	}
}

// close gracefully shuts down the connection
func (p *WebSocketPublisher) close(conn *websocket.Conn) {
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	conn.Close()
}
